package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"kopuro/internal/domain"
)

const rawPreviewRunes = 300

var errNotObject = errors.New("top-level JSON value is not an object")

// stripFence снимает обёртку ```json ... ``` или ``` ... ```.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case len(s) >= 7 && strings.EqualFold(s[:7], "```json"):
		s = s[7:]
	case strings.HasPrefix(s, "```"):
		s = s[3:]
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseAnalysis строго разбирает JSON и терпимо раскладывает поля:
// неизвестные ключи игнорируются, значения неподходящего вида становятся nil.
func parseAnalysis(body string) (domain.Analysis, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return domain.Analysis{}, errNotObject
		}
		return domain.Analysis{}, err
	}
	if fields == nil {
		return domain.Analysis{}, errNotObject
	}

	a := domain.Analysis{
		ResponsibleDepartment: stringField(fields["responsible_department"]),
		ComplaintCategory:     stringField(fields["complaint_category"]),
		ComplaintSubcategory:  stringField(fields["complaint_subcategory"]),
		AddressText:           stringField(fields["address_text"]),
		Latitude:              floatField(fields["latitude"]),
		Longitude:             floatField(fields["longitude"]),
		District:              stringField(fields["district"]),
		ApplicantData:         stringField(fields["applicant_data"]),
		OtherDetails:          stringField(fields["other_details"]),
	}
	if raw := stringField(fields["complaint_type"]); raw != nil {
		if ct, err := domain.ParseComplaintType(*raw); err == nil {
			a.ComplaintType = &ct
		}
	}
	if raw := stringField(fields["severity_level"]); raw != nil {
		if sev, err := domain.ParseSeverity(*raw); err == nil {
			a.SeverityLevel = &sev
		}
	}
	return a, nil
}

func stringField(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	// числа, true/false, массивы и объекты считаются значением не того вида
	if raw[0] != '"' {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return domain.StringPtr(s)
}

func floatField(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, ",", ".")), 64)
		if err != nil {
			return nil
		}
		f = v
	default:
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
