package tasks

import (
	"strings"
	"time"
)

// Placeholders used in history values when a field is empty.
const (
	placeholderNone       = "None"
	placeholderUnassigned = "Unassigned"
)

// normalizeDate truncates an ISO-8601 timestamp to its date part. Plain
// YYYY-MM-DD strings pass through unchanged. Empty stays empty.
func normalizeDate(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

// normalizeDatePtr normalizes a nullable date; empty strings collapse to nil.
func normalizeDatePtr(p *string) *string {
	if p == nil {
		return nil
	}
	d := normalizeDate(*p)
	if d == "" {
		return nil
	}
	return &d
}

// parseDatePtr normalizes a nullable date input and rejects anything
// that is not a calendar date after truncation. Empty collapses to nil.
func parseDatePtr(p *string) (*string, error) {
	d := normalizeDatePtr(p)
	if d == nil {
		return nil, nil
	}
	if _, err := time.Parse("2006-01-02", *d); err != nil {
		return nil, validationf("invalid due date %q", *p)
	}
	return d, nil
}

func orNone(p *string) string {
	if p == nil || *p == "" {
		return placeholderNone
	}
	return *p
}

func orUnassigned(p *string) string {
	if p == nil || *p == "" {
		return placeholderUnassigned
	}
	return *p
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func strptr(s string) *string { return &s }
