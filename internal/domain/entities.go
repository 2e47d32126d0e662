package domain

import (
	"strings"
	"time"
)

// Analysis содержит структурированный результат разбора жалобы моделью.
// Все поля необязательные: отсутствующее значение хранится как NULL.
type Analysis struct {
	ResponsibleDepartment *string        `json:"responsible_department"`
	ComplaintType         *ComplaintType `json:"complaint_type"`
	ComplaintCategory     *string        `json:"complaint_category"`
	ComplaintSubcategory  *string        `json:"complaint_subcategory"`
	AddressText           *string        `json:"address_text"`
	Latitude              *float64       `json:"latitude"`
	Longitude             *float64       `json:"longitude"`
	District              *string        `json:"district"`
	SeverityLevel         *Severity      `json:"severity_level"`
	ApplicantData         *string        `json:"applicant_data"`
	OtherDetails          *string        `json:"other_details"`
}

// HasDepartment сообщает, определено ли ответственное ведомство.
func (a Analysis) HasDepartment() bool {
	return a.ResponsibleDepartment != nil && strings.TrimSpace(*a.ResponsibleDepartment) != ""
}

// Submission описывает одно обращение гражданина.
type Submission struct {
	ID             int64            `json:"id"`
	OriginalText   string           `json:"original_complaint_text"`
	Kind           SubmissionKind   `json:"submission_type_by_user"`
	Source         SubmissionSource `json:"source"`
	SourceUserID   string           `json:"source_user_id"`
	SourceUsername *string          `json:"source_username"`
	UserFirstName  *string          `json:"user_first_name"`

	Analysis

	Status                   SubmissionStatus `json:"status"`
	LLMProcessingError       *string          `json:"llm_processing_error"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                *time.Time       `json:"updated_at"`
	ResolvedAt               *time.Time       `json:"resolved_at"`
	ResolutionDetails        *string          `json:"resolution_details"`
	UserFeedbackOnResolution *string          `json:"user_feedback_on_resolution"`
}

// SubmissionPatch перечисляет поля, которые сотрудник может изменить вручную.
// nil означает «не менять».
type SubmissionPatch struct {
	Status                *SubmissionStatus
	ResponsibleDepartment *string
	ComplaintCategory     *string
	ComplaintSubcategory  *string
	AddressText           *string
	Latitude              *float64
	Longitude             *float64
	District              *string
	SeverityLevel         *Severity
}

// Apply переносит заданные поля патча в обращение и обновляет updated_at.
func (s *Submission) Apply(p SubmissionPatch, now time.Time) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ResponsibleDepartment != nil {
		s.ResponsibleDepartment = p.ResponsibleDepartment
	}
	if p.ComplaintCategory != nil {
		s.ComplaintCategory = p.ComplaintCategory
	}
	if p.ComplaintSubcategory != nil {
		s.ComplaintSubcategory = p.ComplaintSubcategory
	}
	if p.AddressText != nil {
		s.AddressText = p.AddressText
	}
	if p.Latitude != nil {
		s.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		s.Longitude = p.Longitude
	}
	if p.District != nil {
		s.District = p.District
	}
	if p.SeverityLevel != nil {
		s.SeverityLevel = p.SeverityLevel
	}
	s.UpdatedAt = &now
}

// AcceptsFeedback сообщает, можно ли оставить отзыв о решении.
func (s Submission) AcceptsFeedback() bool {
	return s.Status == StatusResolved || s.Status == StatusPendingUserFeedback
}

// Comment описывает комментарий с видеоплатформы.
type Comment struct {
	ID                int64
	PlatformCommentID string
	AuthorName        string
	Text              string
	OpinionText       *string
	Topic             *string
	VideoID           string
	ChannelID         string
	ChannelTitle      string
	PublishedAt       *time.Time
	Sentiment         Sentiment
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// User описывает сотрудника или администратора.
type User struct {
	ID                 int64     `json:"id"`
	Email              string    `json:"email"`
	FullName           *string   `json:"full_name"`
	HashedPassword     string    `json:"-"`
	Role               UserRole  `json:"role"`
	IsActive           bool      `json:"is_active"`
	IsConfirmedByAdmin bool      `json:"is_confirmed_by_admin"`
	CreatedAt          time.Time `json:"created_at"`
}

// StringPtr возвращает указатель на обрезанную строку или nil для пустой.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
