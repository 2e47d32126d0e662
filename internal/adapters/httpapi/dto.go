package httpapi

import (
	"time"

	"kopuro/internal/domain"
)

type submitIssueRequest struct {
	Text           string  `json:"text" validate:"required"`
	Kind           string  `json:"submission_type_by_user" validate:"required"`
	Source         string  `json:"source" validate:"required"`
	SourceUserID   string  `json:"source_user_id" validate:"required"`
	SourceUsername *string `json:"source_username"`
	UserFirstName  *string `json:"user_first_name"`
}

type submitIssueResponse struct {
	SavedRecordID      int64                   `json:"saved_record_id"`
	OriginalText       string                  `json:"original_text"`
	Kind               domain.SubmissionKind   `json:"submission_type_by_user"`
	Source             domain.SubmissionSource `json:"source"`
	SourceUserID       string                  `json:"source_user_id"`
	Status             domain.SubmissionStatus `json:"status"`
	Analysis           *domain.Analysis        `json:"analysis"`
	LLMProcessingError *string                 `json:"llm_processing_error"`
	Message            string                  `json:"message"`
}

type userIssuesQuery struct {
	SourceUserID string `query:"source_user_id" validate:"required"`
	Skip         int    `query:"skip" validate:"gte=0"`
	Limit        int    `query:"limit" validate:"gte=1,lte=100"`
}

type allIssuesQuery struct {
	Skip  int `query:"skip" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}

type updateIssueRequest struct {
	Status                *string  `json:"status"`
	ResponsibleDepartment *string  `json:"responsible_department"`
	ComplaintCategory     *string  `json:"complaint_category"`
	ComplaintSubcategory  *string  `json:"complaint_subcategory"`
	AddressText           *string  `json:"address_text"`
	Latitude              *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude             *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	District              *string  `json:"district"`
	SeverityLevel         *string  `json:"severity_level"`
}

type resolveRequest struct {
	ResolutionDetails string     `json:"resolution_details" validate:"required,min=10"`
	ResolvedAt        *time.Time `json:"resolved_at"`
}

type feedbackRequest struct {
	UserFeedbackOnResolution string `json:"user_feedback_on_resolution" validate:"required,min=1"`
}

type topAddressesQuery struct {
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}

type registerRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Password string  `json:"password" validate:"required,min=8"`
}

type tokenForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type pageQuery struct {
	Skip  int `query:"skip" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=1,lte=100"`
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
