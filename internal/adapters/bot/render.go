package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"kopuro/internal/adapters/intakeapi"
	"kopuro/internal/adapters/telegram"
	"kopuro/internal/domain"
)

const (
	previewRunes      = 75
	addressRunes      = 50
	errorPreviewRunes = 70
	reasonRunes       = 200
)

func submitResultText(kind domain.SubmissionKind, res intakeapi.SubmitResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Спасибо! Ваша %s принята (ID: #%d, Статус: %s).", kind.Keyword(), res.SavedRecordID, res.Status)

	switch {
	case res.LLMProcessingError != nil && *res.LLMProcessingError != "":
		fmt.Fprintf(&b, "\n\n⚠️ Не удалось полностью автоматически проанализировать жалобу. Причина: %s", truncateRunes(*res.LLMProcessingError, reasonRunes))
	case res.Analysis != nil && res.Analysis.HasDepartment():
		fmt.Fprintf(&b, "\n\nАнализ: Ведомство - %s, Тип - %s.", *res.Analysis.ResponsibleDepartment, complaintTypeLabel(res.Analysis.ComplaintType))
	case res.Status == domain.StatusAnalysisFailed:
		b.WriteString("\n\nАнализ: Не удалось определить ответственное ведомство по тексту.")
	case kind == domain.KindComplaint && res.Status != domain.StatusAnalyzed:
		b.WriteString("\nЖалоба принята, но автоматический анализ не был успешно завершен.")
	case kind == domain.KindRequest:
		b.WriteString("\nПросьба передана специалистам.")
	}
	return b.String()
}

func submitErrorText(err error) string {
	var apiErr *intakeapi.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Ошибка при отправке данных в систему (%d): %s", apiErr.StatusCode, apiErr.Detail)
	}
	return "Ошибка подключения к системе обработки заявок. Попробуйте позже."
}

func complaintTypeLabel(ct *domain.ComplaintType) string {
	if ct == nil {
		return "не определен"
	}
	switch *ct {
	case domain.ComplaintPersonal:
		return "личная"
	case domain.ComplaintPublic:
		return "общегражданская"
	}
	return ct.String()
}

// renderSubmissions форматирует список заявок в HTML. Пользовательский
// текст обрезается до экранирования, чтобы не резать HTML-сущности.
func renderSubmissions(p *bluemonday.Policy, list []domain.Submission) []string {
	blocks := make([]string, 0, len(list))
	for _, s := range list {
		blocks = append(blocks, renderEntry(p, s))
	}
	return telegram.PackBlocks("Ваши заявки:\n\n", blocks)
}

func renderEntry(p *bluemonday.Policy, s domain.Submission) string {
	var b strings.Builder
	field := func(label, value string) {
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", label, p.Sanitize(value))
	}

	field("ID", fmt.Sprint(s.ID))
	field("Тип", s.Kind.Keyword())
	field("Статус", s.Status.String())
	field("Текст", ellipsis(s.OriginalText, previewRunes))
	if s.ResponsibleDepartment != nil {
		field("Отв. ведомство (анализ)", *s.ResponsibleDepartment)
	}
	if s.ComplaintType != nil {
		field("Тип (анализ)", complaintTypeLabel(s.ComplaintType))
	}
	if s.ComplaintCategory != nil {
		field("Категория (анализ)", *s.ComplaintCategory)
	}
	if s.AddressText != nil {
		field("Адрес (анализ)", ellipsis(*s.AddressText, addressRunes))
	}
	if s.SeverityLevel != nil {
		field("Серьезность (анализ)", s.SeverityLevel.String())
	}
	if s.LLMProcessingError != nil {
		field("Ошибка анализа", ellipsis(*s.LLMProcessingError, errorPreviewRunes))
	}
	if s.ResolutionDetails != nil {
		field("Решение", ellipsis(*s.ResolutionDetails, previewRunes))
	}
	date := "N/A"
	if !s.CreatedAt.IsZero() {
		date = s.CreatedAt.Format("2006-01-02 15:04")
	}
	field("Дата", date)
	b.WriteString("\n")
	return b.String()
}

func noticeText(n domain.ResolutionNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ваше обращение #%d отмечено как решённое.", n.SubmissionID)
	if details := strings.TrimSpace(n.ResolutionDetails); details != "" {
		fmt.Fprintf(&b, "\n\nЧто сделано: %s", details)
	}
	fmt.Fprintf(&b, "\n\nПожалуйста, оцените решение: отправьте /feedback %d <ваш отзыв>.", n.SubmissionID)
	return b.String()
}

func ellipsis(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
