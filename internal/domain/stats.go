package domain

import (
	"fmt"
	"time"
)

// Подписи для пустых значений в статистике.
const (
	NoCategoryLabel   = "Не указана"
	NoDepartmentLabel = "Не назначен"
)

// StatsFilter ограничивает выборку для отчётов. Пустые поля не фильтруют.
type StatsFilter struct {
	DateFrom   *time.Time
	DateTo     *time.Time
	Source     *SubmissionSource
	Category   *string
	Department *string
	District   *string
	Status     *SubmissionStatus
	Severity   *Severity
}

// CreatedBefore возвращает верхнюю границу created_at: конец дня date_to.
func (f StatsFilter) CreatedBefore() *time.Time {
	if f.DateTo == nil {
		return nil
	}
	end := f.DateTo.AddDate(0, 0, 1)
	return &end
}

// CategoryCount хранит количество обращений в категории.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// StatusCount хранит количество обращений в статусе.
type StatusCount struct {
	Status SubmissionStatus `json:"status"`
	Count  int              `json:"count"`
}

// DepartmentCount хранит количество обращений по ведомству.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// SeverityCount хранит количество обращений по серьёзности. Severity может быть nil.
type SeverityCount struct {
	Severity *Severity `json:"severity"`
	Count    int       `json:"count"`
}

// OverallStats собирает общую статистику.
type OverallStats struct {
	TotalIssues             int               `json:"total_issues"`
	ByCategory              []CategoryCount   `json:"by_category"`
	ByStatus                []StatusCount     `json:"by_status"`
	ByResponsibleDepartment []DepartmentCount `json:"by_responsible_department"`
	BySeverity              []SeverityCount   `json:"by_severity"`
}

// StatsPeriod задаёт шаг группировки временного ряда.
type StatsPeriod string

const (
	PeriodDay   StatsPeriod = "day"
	PeriodMonth StatsPeriod = "month"
	PeriodYear  StatsPeriod = "year"
)

// ParseStatsPeriod валидирует шаг; пустое значение означает день.
func ParseStatsPeriod(raw string) (StatsPeriod, error) {
	switch p := StatsPeriod(raw); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("неизвестный период %q", raw)
}

// Layout возвращает формат подписи периода.
func (p StatsPeriod) Layout() string {
	switch p {
	case PeriodMonth:
		return "2006-01"
	case PeriodYear:
		return "2006"
	default:
		return "2006-01-02"
	}
}

// TimelinePoint это точка временного ряда.
type TimelinePoint struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// AddressCount хранит адрес и число жалоб по нему.
type AddressCount struct {
	Address        string `json:"address"`
	ComplaintCount int    `json:"complaint_count"`
}
