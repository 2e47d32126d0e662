package httpapi

import (
	"net/http"
	"strings"

	"kopuro/internal/domain"
	httpinfra "kopuro/internal/infra/http"
	"kopuro/internal/usecase/issues"
)

const issueNotFound = "Обращение не найдено"

func (s *Server) handleSubmitIssue(w http.ResponseWriter, r *http.Request) {
	var req submitIssueRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		invalidParam(w, "body", "text", "text must not be blank")
		return
	}
	kind, err := domain.ParseSubmissionKind(req.Kind)
	if err != nil {
		invalidParam(w, "body", "submission_type_by_user", err.Error())
		return
	}
	source, err := domain.ParseSubmissionSource(req.Source)
	if err != nil {
		invalidParam(w, "body", "source", err.Error())
		return
	}

	saved, err := s.issues.Submit(r.Context(), issues.SubmitInput{
		Text:           req.Text,
		Kind:           kind,
		Source:         source,
		SourceUserID:   req.SourceUserID,
		SourceUsername: domain.StringPtr(deref(req.SourceUsername)),
		UserFirstName:  domain.StringPtr(deref(req.UserFirstName)),
	})
	if err != nil {
		s.log.Error().Err(err).Str("source_user_id", req.SourceUserID).Msg("httpapi: submit failed")
		httpinfra.WriteError(w, http.StatusInternalServerError, map[string]string{"message": "Не удалось сохранить данные в базу."})
		return
	}

	resp := submitIssueResponse{
		SavedRecordID:      saved.ID,
		OriginalText:       saved.OriginalText,
		Kind:               saved.Kind,
		Source:             saved.Source,
		SourceUserID:       saved.SourceUserID,
		Status:             saved.Status,
		LLMProcessingError: saved.LLMProcessingError,
		Message:            "Обращение успешно обработано и сохранено.",
	}
	if saved.Status == domain.StatusAnalyzed {
		analysis := saved.Analysis
		resp.Analysis = &analysis
	}
	httpinfra.WriteJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleUserIssues(w http.ResponseWriter, r *http.Request) {
	q := userIssuesQuery{SourceUserID: strings.TrimSpace(r.URL.Query().Get("source_user_id"))}
	var ok bool
	if q.Skip, ok = queryInt(w, r, "skip", 0); !ok {
		return
	}
	if q.Limit, ok = queryInt(w, r, "limit", issues.DefaultLimit); !ok {
		return
	}
	if !s.check(w, "query", &q) {
		return
	}
	query := domain.SubmissionUserQuery{Identity: q.SourceUserID, Skip: q.Skip, Limit: q.Limit}
	if raw := r.URL.Query().Get("source"); raw != "" {
		source, err := domain.ParseSubmissionSource(raw)
		if err != nil {
			invalidParam(w, "query", "source", err.Error())
			return
		}
		query.Source = &source
	}

	list, err := s.issues.ListByUser(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleAllIssues(w http.ResponseWriter, r *http.Request) {
	var (
		q  allIssuesQuery
		ok bool
	)
	if q.Skip, ok = queryInt(w, r, "skip", 0); !ok {
		return
	}
	if q.Limit, ok = queryInt(w, r, "limit", issues.DefaultLimit); !ok {
		return
	}
	if !s.check(w, "query", &q) {
		return
	}
	sortBy := strings.TrimSpace(r.URL.Query().Get("sort_by"))
	if sortBy == "" {
		sortBy = "created_at"
	}
	order := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("order")))

	list, err := s.issues.List(r.Context(), domain.SubmissionListQuery{
		Skip:   q.Skip,
		Limit:  q.Limit,
		SortBy: sortBy,
		Desc:   order == "" || order == "desc",
	})
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sub, err := s.issues.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, issueNotFound)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sub)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateIssueRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	patch := domain.SubmissionPatch{
		ResponsibleDepartment: req.ResponsibleDepartment,
		ComplaintCategory:     req.ComplaintCategory,
		ComplaintSubcategory:  req.ComplaintSubcategory,
		AddressText:           req.AddressText,
		Latitude:              req.Latitude,
		Longitude:             req.Longitude,
		District:              req.District,
	}
	if req.Status != nil {
		status, err := domain.ParseSubmissionStatus(*req.Status)
		if err != nil {
			invalidParam(w, "body", "status", err.Error())
			return
		}
		patch.Status = &status
	}
	if req.SeverityLevel != nil {
		severity, err := domain.ParseSeverity(*req.SeverityLevel)
		if err != nil {
			invalidParam(w, "body", "severity_level", err.Error())
			return
		}
		patch.SeverityLevel = &severity
	}

	sub, err := s.issues.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, err, issueNotFound)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sub)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sub, err := s.issues.Resolve(r.Context(), id, issues.ResolveInput{
		Details:    req.ResolutionDetails,
		ResolvedAt: req.ResolvedAt,
	})
	if err != nil {
		s.writeServiceError(w, err, issueNotFound)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sub)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	feedback := strings.TrimSpace(req.UserFeedbackOnResolution)
	if feedback == "" {
		invalidParam(w, "body", "user_feedback_on_resolution", "field required")
		return
	}
	sub, err := s.issues.AddFeedback(r.Context(), id, feedback)
	if err != nil {
		s.writeServiceError(w, err, issueNotFound)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, sub)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
