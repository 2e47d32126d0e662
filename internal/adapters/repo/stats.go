package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"kopuro/internal/domain"
	"kopuro/internal/infra/metrics"
)

// statsWhere собирает WHERE по фильтру. Плейсхолдеры нумеруются с first.
func statsWhere(f domain.StatsFilter, first int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, first+len(args)-1))
	}
	if f.DateFrom != nil {
		add("created_at >= $%d", *f.DateFrom)
	}
	if before := f.CreatedBefore(); before != nil {
		add("created_at < $%d", *before)
	}
	if f.Source != nil {
		add("source = $%d", f.Source.String())
	}
	if f.Category != nil {
		add("complaint_category = $%d", *f.Category)
	}
	if f.Department != nil {
		add("responsible_department = $%d", *f.Department)
	}
	if f.District != nil {
		add("district = $%d", *f.District)
	}
	if f.Status != nil {
		add("status = $%d", f.Status.String())
	}
	if f.Severity != nil {
		add("severity_level = $%d", f.Severity.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// OverallStats считает общие показатели и разбивки по фильтру.
func (p *Postgres) OverallStats(ctx context.Context, f domain.StatsFilter) (domain.OverallStats, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	where, args := statsWhere(f, 1)
	var out domain.OverallStats

	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM submissions`+where, args...).Scan(&out.TotalIssues)
	metrics.ObserveNetworkRequest("postgres", "stats_total", "submissions", start, err)
	if err != nil {
		return domain.OverallStats{}, err
	}

	err = p.groupCounts(ctx, "stats_by_category", `COALESCE(complaint_category, '`+domain.NoCategoryLabel+`')`, where, args, func(label *string, n int) {
		out.ByCategory = append(out.ByCategory, domain.CategoryCount{Category: *label, Count: n})
	})
	if err != nil {
		return domain.OverallStats{}, err
	}
	err = p.groupCounts(ctx, "stats_by_status", "status", where, args, func(label *string, n int) {
		out.ByStatus = append(out.ByStatus, domain.StatusCount{Status: domain.SubmissionStatus(*label), Count: n})
	})
	if err != nil {
		return domain.OverallStats{}, err
	}
	err = p.groupCounts(ctx, "stats_by_department", `COALESCE(responsible_department, '`+domain.NoDepartmentLabel+`')`, where, args, func(label *string, n int) {
		out.ByResponsibleDepartment = append(out.ByResponsibleDepartment, domain.DepartmentCount{Department: *label, Count: n})
	})
	if err != nil {
		return domain.OverallStats{}, err
	}
	err = p.groupCounts(ctx, "stats_by_severity", "severity_level", where, args, func(label *string, n int) {
		var sev *domain.Severity
		if label != nil {
			s := domain.Severity(*label)
			sev = &s
		}
		out.BySeverity = append(out.BySeverity, domain.SeverityCount{Severity: sev, Count: n})
	})
	if err != nil {
		return domain.OverallStats{}, err
	}
	return out, nil
}

func (p *Postgres) groupCounts(ctx context.Context, op, expr, where string, args []any, emit func(label *string, n int)) error {
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+expr+` AS label, count(*) AS n
FROM submissions`+where+`
GROUP BY label
ORDER BY n DESC, label`, args...)
	metrics.ObserveNetworkRequest("postgres", op, "submissions", start, err)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label *string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return err
		}
		emit(label, n)
	}
	return rows.Err()
}

// Timeline группирует обращения по дню, месяцу или году в UTC.
func (p *Postgres) Timeline(ctx context.Context, period domain.StatsPeriod, f domain.StatsFilter) ([]domain.TimelinePoint, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	where, args := statsWhere(f, 2)
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT date_trunc($1, created_at AT TIME ZONE 'UTC') AS bucket, count(*)
FROM submissions`+where+`
GROUP BY bucket
ORDER BY bucket`, append([]any{string(period)}, args...)...)
	metrics.ObserveNetworkRequest("postgres", "stats_timeline", "submissions", start, err)
	if err != nil {
		return nil, err
	}
	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TimelinePoint, error) {
		var (
			bucket time.Time
			n      int
		)
		if err := row.Scan(&bucket, &n); err != nil {
			return domain.TimelinePoint{}, err
		}
		return domain.TimelinePoint{Period: bucket.Format(period.Layout()), Count: n}, nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// TopAddresses возвращает адреса с наибольшим числом обращений.
func (p *Postgres) TopAddresses(ctx context.Context, limit int, f domain.StatsFilter) ([]domain.AddressCount, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	where, args := statsWhere(f, 2)
	if where == "" {
		where = " WHERE address_text IS NOT NULL"
	} else {
		where += " AND address_text IS NOT NULL"
	}
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT address_text, count(*) AS n
FROM submissions`+where+`
GROUP BY address_text
ORDER BY n DESC, address_text
LIMIT $1`, append([]any{limit}, args...)...)
	metrics.ObserveNetworkRequest("postgres", "stats_top_addresses", "submissions", start, err)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AddressCount, error) {
		var ac domain.AddressCount
		err := row.Scan(&ac.Address, &ac.ComplaintCount)
		return ac, err
	})
}
