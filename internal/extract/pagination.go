package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// PageSignature is a cheap fingerprint of a result page, compared before and
// after a "next" action to prove the listing actually advanced. Any one
// component changing counts as advancement.
type PageSignature struct {
	FirstRowID    string
	PageIndicator string
	FooterRange   string
}

// Empty reports whether no component of the signature could be read.
func (s PageSignature) Empty() bool {
	return s.FirstRowID == "" && s.PageIndicator == "" && s.FooterRange == ""
}

// Equal reports whether two signatures fingerprint the same page.
func (s PageSignature) Equal(o PageSignature) bool {
	return s == o
}

// advanceAttempts is the exact number of "next" attempts allowed against an
// unchanged signature: the original click plus one retry.
const advanceAttempts = 2

// footerRangePattern matches "Showing N to M of T" style footers; the total
// may carry thousands separators.
var footerRangePattern = regexp.MustCompile(`(?i)(?:showing\s+)?(\d+)\s+to\s+(\d+)\s+of\s+([\d,]+)`)

// FooterRange is the parsed "N to M of T" declaration from a listing footer.
type FooterRange struct {
	From  int
	To    int
	Total int
}

// ParseFooterRange extracts the footer range declaration from arbitrary
// footer text. Returns ok=false when no declaration is present.
func ParseFooterRange(text string) (FooterRange, bool) {
	m := footerRangePattern.FindStringSubmatch(text)
	if m == nil {
		return FooterRange{}, false
	}
	from, err1 := strconv.Atoi(m[1])
	to, err2 := strconv.Atoi(m[2])
	total, err3 := strconv.Atoi(strings.ReplaceAll(m[3], ",", ""))
	if err1 != nil || err2 != nil || err3 != nil {
		return FooterRange{}, false
	}
	return FooterRange{From: from, To: to, Total: total}, true
}

// LastPage reports whether the footer declares this to be the final page.
func (f FooterRange) LastPage() bool {
	return f.To >= f.Total
}
