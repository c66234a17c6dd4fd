package importer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Number coerces a raw cell into a float. Every character except digits,
// '.' and '-' is stripped first, so currency prefixes, thousands separators
// and trailing unit text ("kg") are silently discarded. Empty or non-finite
// results become 0. Never returns an error.
func Number(raw string) float64 {
	var b strings.Builder
	for _, c := range raw {
		if (c >= '0' && c <= '9') || c == '.' || c == '-' {
			b.WriteRune(c)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// Magnitude coerces a cell documented as a non-negative magnitude (weight,
// price, count). Negative values clamp to 0.
func Magnitude(raw string) float64 {
	n := Number(raw)
	if n < 0 {
		return 0
	}
	return n
}

// Boolean treats "yes", "true" and "1" (any case) as true; everything else,
// including the empty cell, is false.
func Boolean(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// listDelimiter separates multi-valued cells (e.g. vaccine names).
const listDelimiter = ";"

// List splits a multi-valued cell, trimming tokens and dropping empties.
func List(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, listDelimiter) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// dateLayouts are tried in order for textual date cells. ISO shapes first,
// then the written forms manual exports commonly carry.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// Date parses the possible input shapes for a date value, tried in a fixed
// order: textual layouts, epoch milliseconds, then the store-native
// {seconds} / {_seconds} wrapper (seconds x 1000). Failure yields nil, which
// callers must treat as "unknown", never as epoch zero.
func Date(input interface{}) *time.Time {
	switch v := input.(type) {
	case nil:
		return nil
	case string:
		return dateFromText(v)
	case float64:
		return dateFromMillis(v)
	case int64:
		return dateFromMillis(float64(v))
	case int:
		return dateFromMillis(float64(v))
	case map[string]interface{}:
		return dateFromWrapper(v)
	}
	return nil
}

func dateFromText(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	// A bare numeric string is an epoch-millisecond export
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return dateFromMillis(n)
	}
	return nil
}

func dateFromMillis(ms float64) *time.Time {
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}

func dateFromWrapper(obj map[string]interface{}) *time.Time {
	for _, key := range []string{"seconds", "_seconds"} {
		if raw, ok := obj[key]; ok {
			if secs, ok := asFloat(raw); ok {
				return dateFromMillis(secs * 1000)
			}
		}
	}
	return nil
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
