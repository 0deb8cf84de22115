package metas

import (
	"fmt"
	"strings"
)

// Kind classifies a recoverable condition found during a run.
type Kind string

const (
	KindMissingField        Kind = "missing_field"
	KindMissingCourt        Kind = "missing_court"
	KindBranchNotRecognized Kind = "branch_not_recognized"
	KindBranchConflict      Kind = "branch_conflict"
	KindDivisionUndefined   Kind = "division_undefined"
	KindPartitionFailed     Kind = "partition_failed"
)

// Kinds lists every diagnostic kind in a stable order.
var Kinds = []Kind{
	KindMissingField,
	KindMissingCourt,
	KindBranchNotRecognized,
	KindBranchConflict,
	KindDivisionUndefined,
	KindPartitionFailed,
}

// Diagnostic records one non-fatal condition. Only the fields relevant to
// Kind are set.
type Diagnostic struct {
	Kind      Kind   `json:"kind"`
	Partition string `json:"partition,omitempty"`
	Court     string `json:"court,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Metric    string `json:"metric,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	var parts []string
	if d.Partition != "" {
		parts = append(parts, "partition "+d.Partition)
	}
	if d.Court != "" {
		parts = append(parts, "court "+d.Court)
	}
	if d.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch %q", d.Branch))
	}
	if d.Metric != "" {
		parts = append(parts, fmt.Sprintf("metric %q", d.Metric))
	}
	s := string(d.Kind)
	if len(parts) > 0 {
		s += ": " + strings.Join(parts, ", ")
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}

// CountByKind tallies diagnostics per kind.
func CountByKind(diags []Diagnostic) map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, d := range diags {
		counts[d.Kind]++
	}
	return counts
}

func quote(s string) string { return fmt.Sprintf("%q", s) }

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
