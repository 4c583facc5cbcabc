package usecase

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"2-1-2006",
	"02/01/06",
	"2006-01-02",
	"02.01.2006",
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// parseAmount accepts both 35,000.00 and 35.000,00 styles.
func parseAmount(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimLeft(raw, "$€£ ")
	raw = strings.TrimRight(raw, "€$£ ")
	if raw == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")
	switch {
	case lastComma > lastDot:
		// 35.000,00 -> decimal comma
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	default:
		// 35,000.00 -> thousands commas
		raw = strings.ReplaceAll(raw, ",", "")
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// formValue looks up the first non-empty value among aliases, checking query
// answers before form key/values. Keys are matched case-insensitively.
func formValue(forms, answers map[string]string, aliases ...string) string {
	lookup := func(m map[string]string, key string) string {
		for k, v := range m {
			if strings.EqualFold(strings.TrimSpace(k), key) {
				v = strings.TrimSpace(v)
				if isUsableValue(v) {
					return v
				}
			}
		}
		return ""
	}
	for _, alias := range aliases {
		if v := lookup(answers, alias); v != "" {
			return v
		}
		if v := lookup(forms, alias); v != "" {
			return v
		}
	}
	return ""
}

func isUsableValue(v string) bool {
	switch strings.ToLower(v) {
	case "", "not found", "no encontrado", "n/a", "none":
		return false
	}
	return true
}
