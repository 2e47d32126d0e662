package httpapi

import (
	"net/http"
	"strings"
	"time"

	"kopuro/internal/domain"
	httpinfra "kopuro/internal/infra/http"
)

type filterField uint8

const (
	filterSource filterField = 1 << iota
	filterCategory
	filterDepartment
	filterDistrict
	filterStatus
	filterSeverity
)

const dateOnly = "2006-01-02"

// parseDate принимает RFC 3339 или YYYY-MM-DD (полночь UTC).
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateOnly, raw)
}

// statsFilter читает date_from/date_to и разрешённые для ручки фильтры.
func statsFilter(w http.ResponseWriter, r *http.Request, allowed filterField) (domain.StatsFilter, bool) {
	var f domain.StatsFilter
	q := r.URL.Query()

	for name, dst := range map[string]**time.Time{"date_from": &f.DateFrom, "date_to": &f.DateTo} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			invalidParam(w, "query", name, "invalid date, expected RFC 3339 or YYYY-MM-DD")
			return domain.StatsFilter{}, false
		}
		*dst = &t
	}

	if allowed&filterSource != 0 {
		if raw := strings.TrimSpace(q.Get("source")); raw != "" {
			source, err := domain.ParseSubmissionSource(raw)
			if err != nil {
				invalidParam(w, "query", "source", err.Error())
				return domain.StatsFilter{}, false
			}
			f.Source = &source
		}
	}
	if allowed&filterStatus != 0 {
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := domain.ParseSubmissionStatus(raw)
			if err != nil {
				invalidParam(w, "query", "status", err.Error())
				return domain.StatsFilter{}, false
			}
			f.Status = &status
		}
	}
	if allowed&filterSeverity != 0 {
		if raw := strings.TrimSpace(q.Get("severity")); raw != "" {
			severity, err := domain.ParseSeverity(raw)
			if err != nil {
				invalidParam(w, "query", "severity", err.Error())
				return domain.StatsFilter{}, false
			}
			f.Severity = &severity
		}
	}
	if allowed&filterCategory != 0 {
		f.Category = optionalString(r, "category")
	}
	if allowed&filterDepartment != 0 {
		f.Department = optionalString(r, "department")
	}
	if allowed&filterDistrict != 0 {
		f.District = optionalString(r, "district")
	}
	return f, true
}

func (s *Server) handleOverallStats(w http.ResponseWriter, r *http.Request) {
	f, ok := statsFilter(w, r, filterSource)
	if !ok {
		return
	}
	stats, err := s.issues.OverallStats(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	stats.ByCategory = orEmpty(stats.ByCategory)
	stats.ByStatus = orEmpty(stats.ByStatus)
	stats.ByResponsibleDepartment = orEmpty(stats.ByResponsibleDepartment)
	stats.BySeverity = orEmpty(stats.BySeverity)
	httpinfra.WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParseStatsPeriod(strings.TrimSpace(r.URL.Query().Get("group_by_period")))
	if err != nil {
		invalidParam(w, "query", "group_by_period", "value must be one of: day month year")
		return
	}
	f, ok := statsFilter(w, r, filterCategory|filterDepartment|filterStatus|filterSeverity)
	if !ok {
		return
	}
	points, err := s.issues.Timeline(r.Context(), period, f)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, orEmpty(points))
}

func (s *Server) handleTopAddresses(w http.ResponseWriter, r *http.Request) {
	var (
		q  topAddressesQuery
		ok bool
	)
	if q.Limit, ok = queryInt(w, r, "limit", 1); !ok {
		return
	}
	if !s.check(w, "query", &q) {
		return
	}
	f, ok := statsFilter(w, r, filterCategory|filterDistrict)
	if !ok {
		return
	}
	top, err := s.issues.TopAddresses(r.Context(), q.Limit, f)
	if err != nil {
		s.writeServiceError(w, err, "")
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, orEmpty(top))
}
