package types

import (
	"fmt"
	"strings"
)

// Remark is a single field-level data-quality annotation attached to a row.
// Remarks accumulate across stages so one row carries its full provenance of
// quality issues.
type Remark struct {
	Stage   string `json:"stage"` // "ingest" or "publish"
	Field   string `json:"field"`
	Message string `json:"message"`
}

// String renders the remark in the stable form stored in the database.
func (r Remark) String() string {
	if r.Field == "" {
		return fmt.Sprintf("[%s] %s", r.Stage, r.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", r.Stage, r.Field, r.Message)
}

// RemarkList is an ordered, duplicate-free collection of remarks.
type RemarkList []Remark

// Add appends a remark unless an identical one is already present.
func (l RemarkList) Add(stage, field, message string) RemarkList {
	return l.Merge(RemarkList{{Stage: stage, Field: field, Message: message}})
}

// Merge combines two lists, keeping first-seen order and dropping exact
// duplicates. The receiver is not modified.
func (l RemarkList) Merge(other RemarkList) RemarkList {
	merged := make(RemarkList, 0, len(l)+len(other))
	seen := make(map[Remark]bool, len(l)+len(other))
	for _, r := range l {
		if !seen[r] {
			merged = append(merged, r)
			seen[r] = true
		}
	}
	for _, r := range other {
		if !seen[r] {
			merged = append(merged, r)
			seen[r] = true
		}
	}
	return merged
}

// Strings renders the list for storage in a text[] column.
func (l RemarkList) Strings() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, len(l))
	for i, r := range l {
		out[i] = r.String()
	}
	return out
}

// ParseRemarks reverses Strings. Lines that do not match the stored form are
// kept as ingest-stage remarks so nothing is lost on round-trip.
func ParseRemarks(lines []string) RemarkList {
	var out RemarkList
	for _, line := range lines {
		out = out.Merge(RemarkList{parseRemark(line)})
	}
	return out
}

func parseRemark(line string) Remark {
	rest, ok := strings.CutPrefix(line, "[")
	if !ok {
		return Remark{Stage: "ingest", Message: line}
	}
	stage, rest, ok := strings.Cut(rest, "] ")
	if !ok {
		return Remark{Stage: "ingest", Message: line}
	}
	if field, msg, ok := strings.Cut(rest, ": "); ok {
		return Remark{Stage: stage, Field: field, Message: msg}
	}
	return Remark{Stage: stage, Message: rest}
}
