package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Date layouts seen in provider payloads, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// parseDate accepts the date formats the provider is known to emit.
// An empty or unparsable value returns ok=false instead of an error so
// callers can decide whether the field is required.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseOptionalDate returns nil for empty values and ok=false only
// when a non-empty value fails to parse.
func parseOptionalDate(value string) (*time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return nil, true
	}
	t, ok := parseDate(value)
	if !ok {
		return nil, false
	}
	return &t, true
}

// parseAmount parses a currency amount from the provider, tolerating
// dollar signs, thousands separators and surrounding whitespace. An
// empty value is a valid zero.
func parseAmount(value string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, true
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amount, true
}
