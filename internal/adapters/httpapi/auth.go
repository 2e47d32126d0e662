package httpapi

import (
	"net/http"
	"strings"

	"kopuro/internal/domain"
	httpinfra "kopuro/internal/infra/http"
	"kopuro/internal/usecase/auth"
)

const adminPageLimit = 100

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	user, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		FullName: domain.StringPtr(deref(req.FullName)),
		Password: req.Password,
	})
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, user)
}

// handleToken принимает форму OAuth2 password flow: username и password.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		invalidParam(w, "body", "form", err.Error())
		return
	}
	form := tokenForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	if !s.check(w, "body", &form) {
		return
	}
	token, err := s.auth.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, token)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := httpinfra.UserFromContext(r.Context())
	httpinfra.WriteJSON(w, http.StatusOK, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := s.adminPage(w, r)
	if !ok {
		return
	}
	users, err := s.auth.ListUsers(r.Context(), page.Skip, page.Limit)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, orEmpty(users))
}

func (s *Server) handleUnconfirmedWorkers(w http.ResponseWriter, r *http.Request) {
	page, ok := s.adminPage(w, r)
	if !ok {
		return
	}
	users, err := s.auth.ListUnconfirmedWorkers(r.Context(), page.Skip, page.Limit)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, orEmpty(users))
}

func (s *Server) handleConfirmWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := s.auth.ConfirmWorker(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "Worker not found")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, user)
}

func (s *Server) adminPage(w http.ResponseWriter, r *http.Request) (pageQuery, bool) {
	var (
		page pageQuery
		ok   bool
	)
	if page.Skip, ok = queryInt(w, r, "skip", 0); !ok {
		return pageQuery{}, false
	}
	if page.Limit, ok = queryInt(w, r, "limit", adminPageLimit); !ok {
		return pageQuery{}, false
	}
	return page, s.check(w, "query", &page)
}
