// Package ingest normalizes extracted rows and lands them in the staging
// table on their natural business key.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateFormats are tried in order. The portals render dates day-first; ISO is
// accepted because the JSON API emits it.
var dateFormats = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"02 Jan 2006",
	"02-Jan-2006",
	"02/01/06",
}

// ParseDateLenient parses a portal-rendered date, trying each known layout
// in turn.
func ParseDateLenient(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

// NormalizePhone reduces a raw mobile value to a bare 10-digit number.
// A leading country code (91) or trunk zero is stripped. Values that do not
// reduce to 10 digits come back as the fallback with ok=false so the caller
// can record a remark.
func NormalizePhone(raw, fallback string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 12 && strings.HasPrefix(d, "91") {
		d = d[2:]
	}
	if len(d) == 11 && strings.HasPrefix(d, "0") {
		d = d[1:]
	}
	if len(d) == 10 {
		return d, true
	}
	return fallback, false
}

// ParseAmount parses a portal-rendered money value. Currency markers, commas
// and whitespace are stripped. An empty value is zero, not an error.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimPrefix(s, "Rs")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", raw)
	}
	return v, nil
}
