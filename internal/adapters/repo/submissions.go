package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

const submissionColumns = `id, original_text, submission_kind, source, source_user_id, source_username, user_first_name,
responsible_department, complaint_type, complaint_category, complaint_subcategory, address_text,
latitude, longitude, district, severity_level, applicant_data, other_details,
llm_processing_error, status, resolution_details, resolved_at, user_feedback_on_resolution,
created_at, updated_at`

// sortColumns сопоставляет имена полей API с колонками таблицы.
var sortColumns = map[string]string{
	"id":                          "id",
	"original_complaint_text":     "original_text",
	"submission_type_by_user":     "submission_kind",
	"source":                      "source",
	"source_user_id":              "source_user_id",
	"source_username":             "source_username",
	"user_first_name":             "user_first_name",
	"responsible_department":      "responsible_department",
	"complaint_type":              "complaint_type",
	"complaint_category":          "complaint_category",
	"complaint_subcategory":       "complaint_subcategory",
	"address_text":                "address_text",
	"latitude":                    "latitude",
	"longitude":                   "longitude",
	"district":                    "district",
	"severity_level":              "severity_level",
	"status":                      "status",
	"created_at":                  "created_at",
	"updated_at":                  "updated_at",
	"resolved_at":                 "resolved_at",
	"user_feedback_on_resolution": "user_feedback_on_resolution",
}

// orderBy возвращает безопасное выражение ORDER BY. Неизвестное поле
// заменяется на created_at.
func orderBy(sortBy string, desc bool) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if col == "id" {
		return fmt.Sprintf("id %s", dir)
	}
	return fmt.Sprintf("%s %s NULLS LAST, id %s", col, dir, dir)
}

// CreateSubmission реализует domain.SubmissionRepo.
func (p *Postgres) CreateSubmission(ctx context.Context, s domain.Submission) (domain.Submission, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	a := s.Analysis
	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO submissions (
    original_text, submission_kind, source, source_user_id, source_username, user_first_name,
    responsible_department, complaint_type, complaint_category, complaint_subcategory, address_text,
    latitude, longitude, district, severity_level, applicant_data, other_details,
    llm_processing_error, status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING `+submissionColumns,
		s.OriginalText, s.Kind.String(), s.Source.String(), s.SourceUserID, s.SourceUsername, s.UserFirstName,
		a.ResponsibleDepartment, enumArg(a.ComplaintType), a.ComplaintCategory, a.ComplaintSubcategory, a.AddressText,
		a.Latitude, a.Longitude, a.District, enumArg(a.SeverityLevel), a.ApplicantData, a.OtherDetails,
		s.LLMProcessingError, s.Status.String(), s.CreatedAt,
	)
	saved, err := scanSubmission(row)
	metrics.ObserveNetworkRequest("postgres", "submissions_insert", "submissions", start, err)
	if err != nil {
		return domain.Submission{}, err
	}
	return saved, nil
}

// GetSubmission реализует domain.SubmissionRepo.
func (p *Postgres) GetSubmission(ctx context.Context, id int64) (domain.Submission, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	s, err := scanSubmission(row)
	metrics.ObserveNetworkRequest("postgres", "submissions_get", "submissions", start, err)
	if err != nil {
		return domain.Submission{}, notFound(err)
	}
	return s, nil
}

// ListSubmissions реализует domain.SubmissionRepo.
func (p *Postgres) ListSubmissions(ctx context.Context, q domain.SubmissionListQuery) ([]domain.Submission, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+submissionColumns+`
FROM submissions
ORDER BY `+orderBy(q.SortBy, q.Desc)+`
OFFSET $1 LIMIT $2`, q.Skip, q.Limit)
	metrics.ObserveNetworkRequest("postgres", "submissions_list", "submissions", start, err)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// ListUserSubmissions ищет обращения по id или username без учёта регистра.
func (p *Postgres) ListUserSubmissions(ctx context.Context, q domain.SubmissionUserQuery) ([]domain.Submission, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+submissionColumns+`
FROM submissions
WHERE (lower(source_user_id) = lower($1) OR lower(source_username) = lower($1))
  AND ($2::text IS NULL OR source = $2)
ORDER BY created_at DESC, id DESC
OFFSET $3 LIMIT $4`, q.Identity, enumArg(q.Source), q.Skip, q.Limit)
	metrics.ObserveNetworkRequest("postgres", "submissions_list_by_user", "submissions", start, err)
	if err != nil {
		return nil, err
	}
	return collectSubmissions(rows)
}

// MutateSubmission блокирует строку, применяет fn и сохраняет изменяемые поля.
func (p *Postgres) MutateSubmission(ctx context.Context, id int64, fn func(*domain.Submission) error) (domain.Submission, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "submissions")
	if err != nil {
		return domain.Submission{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	start := time.Now()
	row := tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id)
	s, err := scanSubmission(row)
	metrics.ObserveNetworkRequest("postgres", "submissions_lock", "submissions", start, err)
	if err != nil {
		return domain.Submission{}, notFound(err)
	}

	if err := fn(&s); err != nil {
		return domain.Submission{}, err
	}

	a := s.Analysis
	start = time.Now()
	row = tx.QueryRow(ctx, `
UPDATE submissions SET
    status = $2,
    responsible_department = $3,
    complaint_category = $4,
    complaint_subcategory = $5,
    address_text = $6,
    latitude = $7,
    longitude = $8,
    district = $9,
    severity_level = $10,
    resolution_details = $11,
    resolved_at = $12,
    user_feedback_on_resolution = $13,
    updated_at = $14
WHERE id = $1
RETURNING `+submissionColumns,
		id, s.Status.String(), a.ResponsibleDepartment, a.ComplaintCategory, a.ComplaintSubcategory,
		a.AddressText, a.Latitude, a.Longitude, a.District, enumArg(a.SeverityLevel),
		s.ResolutionDetails, s.ResolvedAt, s.UserFeedbackOnResolution, s.UpdatedAt,
	)
	saved, err := scanSubmission(row)
	metrics.ObserveNetworkRequest("postgres", "submissions_update", "submissions", start, err)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := p.commit(ctx, tx, "submissions"); err != nil {
		return domain.Submission{}, err
	}
	return saved, nil
}

func collectSubmissions(rows pgx.Rows) ([]domain.Submission, error) {
	defer rows.Close()
	var out []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var (
		s             domain.Submission
		kind, source  string
		status        string
		complaintType *string
		severity      *string
	)
	err := row.Scan(
		&s.ID, &s.OriginalText, &kind, &source, &s.SourceUserID, &s.SourceUsername, &s.UserFirstName,
		&s.ResponsibleDepartment, &complaintType, &s.ComplaintCategory, &s.ComplaintSubcategory, &s.AddressText,
		&s.Latitude, &s.Longitude, &s.District, &severity, &s.ApplicantData, &s.OtherDetails,
		&s.LLMProcessingError, &status, &s.ResolutionDetails, &s.ResolvedAt, &s.UserFeedbackOnResolution,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Submission{}, err
	}
	s.Kind = domain.SubmissionKind(kind)
	s.Source = domain.SubmissionSource(source)
	s.Status = domain.SubmissionStatus(status)
	if complaintType != nil {
		ct := domain.ComplaintType(*complaintType)
		s.ComplaintType = &ct
	}
	if severity != nil {
		sev := domain.Severity(*severity)
		s.SeverityLevel = &sev
	}
	return s, nil
}
