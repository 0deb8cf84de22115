package metas

import (
	"strings"
)

// CourtPartial is one court's totals within a single batch.
type CourtPartial struct {
	Branch string
	Sums   PartialSum
}

// PartialResult is the output of aggregating one batch.
type PartialResult struct {
	Partition string
	Courts    map[string]*CourtPartial
	// Order lists court codes in first-seen order within the batch.
	Order       []string
	Rows        int
	Diagnostics []Diagnostic
}

// Aggregate reduces one batch of rows into per-court field totals for the
// given fields. It reads only its arguments, so any number of calls may run
// concurrently on disjoint batches.
func Aggregate(partition string, rows []RawRow, fields []string) PartialResult {
	res := PartialResult{
		Partition: partition,
		Courts:    make(map[string]*CourtPartial),
	}
	seen := make(map[string]bool, len(fields))
	conflicts := make(map[[2]string]bool)
	skipped := 0

	for _, row := range rows {
		court := strings.TrimSpace(row.Court)
		if court == "" {
			skipped++
			continue
		}
		branch := strings.TrimSpace(row.Branch)
		res.Rows++

		cp, ok := res.Courts[court]
		if !ok {
			cp = &CourtPartial{Branch: branch, Sums: NewPartialSum(fields)}
			res.Courts[court] = cp
			res.Order = append(res.Order, court)
		} else if branch != cp.Branch && !conflicts[[2]string{court, branch}] {
			conflicts[[2]string{court, branch}] = true
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:      KindBranchConflict,
				Partition: partition,
				Court:     court,
				Branch:    branch,
				Detail:    "keeping first-seen branch " + quote(cp.Branch),
			})
		}

		for _, f := range fields {
			raw, present := row.Fields[f]
			if !present {
				continue
			}
			seen[f] = true
			cp.Sums[f] += Coerce(raw)
		}
	}

	if skipped > 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind:      KindMissingCourt,
			Partition: partition,
			Detail:    plural(skipped, "row") + " without a court code skipped",
		})
	}

	if res.Rows > 0 {
		var missing []string
		for _, f := range fields {
			if !seen[f] {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:      KindMissingField,
				Partition: partition,
				Detail:    "treated as zero: " + strings.Join(missing, ", "),
			})
		}
	}
	return res
}
