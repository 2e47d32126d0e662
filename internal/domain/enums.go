package domain

import (
	"fmt"
	"strings"
)

// SubmissionStatus описывает этап жизненного цикла обращения.
type SubmissionStatus string

const (
	StatusNew                 SubmissionStatus = "new"
	StatusPendingAnalysis     SubmissionStatus = "pending_analysis"
	StatusAnalyzed            SubmissionStatus = "analyzed"
	StatusAnalysisFailed      SubmissionStatus = "analysis_failed"
	StatusInProgress          SubmissionStatus = "in_progress"
	StatusResolved            SubmissionStatus = "resolved"
	StatusRejected            SubmissionStatus = "rejected"
	StatusClosedUnresolved    SubmissionStatus = "closed_unresolved"
	StatusPendingUserFeedback SubmissionStatus = "pending_user_feedback"
)

var submissionStatuses = map[string]SubmissionStatus{
	string(StatusNew):                 StatusNew,
	string(StatusPendingAnalysis):     StatusPendingAnalysis,
	string(StatusAnalyzed):            StatusAnalyzed,
	string(StatusAnalysisFailed):      StatusAnalysisFailed,
	string(StatusInProgress):          StatusInProgress,
	string(StatusResolved):            StatusResolved,
	string(StatusRejected):            StatusRejected,
	string(StatusClosedUnresolved):    StatusClosedUnresolved,
	string(StatusPendingUserFeedback): StatusPendingUserFeedback,
}

// ParseSubmissionStatus переводит строку из БД или запроса в статус.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	if st, ok := submissionStatuses[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return st, nil
	}
	return "", fmt.Errorf("неизвестный статус %q", raw)
}

func (s SubmissionStatus) String() string { return string(s) }

// UnmarshalText проверяет значение при декодировании JSON.
func (s *SubmissionStatus) UnmarshalText(text []byte) error {
	st, err := ParseSubmissionStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// SubmissionKind это тип обращения, выбранный пользователем.
type SubmissionKind string

const (
	KindComplaint SubmissionKind = "complaint"
	KindRequest   SubmissionKind = "request"
)

// Ключевые слова, которыми пользователь выбирает тип обращения в чате.
const (
	ComplaintKeyword = "жалоба"
	RequestKeyword   = "просьба"
)

var submissionKinds = map[string]SubmissionKind{
	string(KindComplaint): KindComplaint,
	string(KindRequest):   KindRequest,
	ComplaintKeyword:      KindComplaint,
	RequestKeyword:        KindRequest,
}

// ParseSubmissionKind принимает как каноничные значения, так и ключевые слова чата.
func ParseSubmissionKind(raw string) (SubmissionKind, error) {
	if kind, ok := submissionKinds[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("неизвестный тип обращения %q", raw)
}

func (k SubmissionKind) String() string { return string(k) }

// Keyword возвращает русское ключевое слово для отображения пользователю.
func (k SubmissionKind) Keyword() string {
	if k == KindRequest {
		return RequestKeyword
	}
	return ComplaintKeyword
}

func (k *SubmissionKind) UnmarshalText(text []byte) error {
	kind, err := ParseSubmissionKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// SubmissionSource описывает канал, через который пришло обращение.
type SubmissionSource string

const (
	SourceTelegram SubmissionSource = "telegram"
	SourceWhatsApp SubmissionSource = "whatsapp"
	SourceWebForm  SubmissionSource = "web_form"
	SourceOther    SubmissionSource = "other"
)

// ParseSubmissionSource валидирует источник.
func ParseSubmissionSource(raw string) (SubmissionSource, error) {
	switch src := SubmissionSource(strings.ToLower(strings.TrimSpace(raw))); src {
	case SourceTelegram, SourceWhatsApp, SourceWebForm, SourceOther:
		return src, nil
	}
	return "", fmt.Errorf("неизвестный источник %q", raw)
}

func (s SubmissionSource) String() string { return string(s) }

func (s *SubmissionSource) UnmarshalText(text []byte) error {
	src, err := ParseSubmissionSource(string(text))
	if err != nil {
		return err
	}
	*s = src
	return nil
}

// Severity задаёт оценку серьёзности проблемы.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severities = map[string]Severity{
	string(SeverityLow):      SeverityLow,
	string(SeverityMedium):   SeverityMedium,
	string(SeverityHigh):     SeverityHigh,
	string(SeverityCritical): SeverityCritical,
	"низкий":                 SeverityLow,
	"средний":                SeverityMedium,
	"высокий":                SeverityHigh,
	"критический":            SeverityCritical,
}

// ParseSeverity понимает и английские значения, и формулировки модели на русском.
func ParseSeverity(raw string) (Severity, error) {
	if sev, ok := severities[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return sev, nil
	}
	return "", fmt.Errorf("неизвестная серьёзность %q", raw)
}

func (s Severity) String() string { return string(s) }

func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// ComplaintType различает личные и общегражданские жалобы.
type ComplaintType string

const (
	ComplaintPersonal ComplaintType = "personal"
	ComplaintPublic   ComplaintType = "public"
)

var complaintTypes = map[string]ComplaintType{
	string(ComplaintPersonal): ComplaintPersonal,
	string(ComplaintPublic):   ComplaintPublic,
	"личная":                  ComplaintPersonal,
	"общегражданская":         ComplaintPublic,
}

// ParseComplaintType принимает значения на обоих языках.
func ParseComplaintType(raw string) (ComplaintType, error) {
	if ct, ok := complaintTypes[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return ct, nil
	}
	return "", fmt.Errorf("неизвестный тип жалобы %q", raw)
}

func (c ComplaintType) String() string { return string(c) }

func (c *ComplaintType) UnmarshalText(text []byte) error {
	ct, err := ParseComplaintType(string(text))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

// Sentiment описывает эмоциональную окраску комментария.
type Sentiment string

const (
	SentimentPositive   Sentiment = "ПОЗИТИВНЫЙ"
	SentimentNegative   Sentiment = "НЕГАТИВНЫЙ"
	SentimentNeutral    Sentiment = "НЕЙТРАЛЬНЫЙ"
	SentimentFrustrated Sentiment = "РАЗОЧАРОВАННЫЙ"
	SentimentAngry      Sentiment = "ЗЛОЙ"
	SentimentExcited    Sentiment = "ВОСТОРЖЕННЫЙ"
	SentimentSad        Sentiment = "ГРУСТНЫЙ"
	SentimentGrateful   Sentiment = "БЛАГОДАРНЫЙ"
	SentimentConfused   Sentiment = "НЕДОУМЕВАЮЩИЙ"
	SentimentSarcastic  Sentiment = "САРКАСТИЧНЫЙ"
	SentimentUnknown    Sentiment = "НЕОПРЕДЕЛЕНО"
)

// SentimentLabels содержит закрытый набор меток, которые может вернуть модель.
var SentimentLabels = []Sentiment{
	SentimentPositive,
	SentimentNegative,
	SentimentNeutral,
	SentimentFrustrated,
	SentimentAngry,
	SentimentExcited,
	SentimentSad,
	SentimentGrateful,
	SentimentConfused,
	SentimentSarcastic,
}

// ParseSentiment возвращает метку или SentimentUnknown, если значение вне набора.
func ParseSentiment(raw string) Sentiment {
	value := Sentiment(strings.ToUpper(strings.TrimSpace(raw)))
	if value == SentimentUnknown {
		return SentimentUnknown
	}
	for _, label := range SentimentLabels {
		if value == label {
			return label
		}
	}
	return SentimentUnknown
}

func (s Sentiment) String() string { return string(s) }
