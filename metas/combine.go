package metas

import (
	"sort"
)

// Combiner folds per-batch partial results into one record per court.
// Partials must be added in partition order for first-seen branch
// resolution to be reproducible; the totals themselves do not depend on
// order.
type Combiner struct {
	courts    map[string]*CourtRecord
	conflicts map[[2]string]bool
	diags     []Diagnostic
}

// NewCombiner returns an empty Combiner.
func NewCombiner() *Combiner {
	return &Combiner{
		courts:    make(map[string]*CourtRecord),
		conflicts: make(map[[2]string]bool),
	}
}

// Add merges one batch's partials and returns the batch's own diagnostics,
// minus any branch conflict already reported for the same court and branch
// by an earlier batch. Each (court, branch) conflict is reported once per
// run, whether it first shows up inside a batch or across batches.
func (c *Combiner) Add(p PartialResult) []Diagnostic {
	kept := make([]Diagnostic, 0, len(p.Diagnostics))
	for _, d := range p.Diagnostics {
		if d.Kind == KindBranchConflict {
			key := [2]string{d.Court, d.Branch}
			if c.conflicts[key] {
				continue
			}
			c.conflicts[key] = true
		}
		kept = append(kept, d)
	}

	for _, court := range p.Order {
		cp := p.Courts[court]
		rec, ok := c.courts[court]
		if !ok {
			c.courts[court] = &CourtRecord{
				Court:  court,
				Branch: cp.Branch,
				Sums:   cp.Sums.Clone(),
			}
			continue
		}
		rec.Sums.Merge(cp.Sums)
		if cp.Branch != rec.Branch && !c.conflicts[[2]string{court, cp.Branch}] {
			c.conflicts[[2]string{court, cp.Branch}] = true
			c.diags = append(c.diags, Diagnostic{
				Kind:      KindBranchConflict,
				Partition: p.Partition,
				Court:     court,
				Branch:    cp.Branch,
				Detail:    "keeping first-seen branch " + quote(rec.Branch),
			})
		}
	}
	return kept
}

// Records returns the combined records sorted by court code.
func (c *Combiner) Records() []CourtRecord {
	out := make([]CourtRecord, 0, len(c.courts))
	for _, rec := range c.courts {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Court < out[j].Court })
	return out
}

// Diagnostics returns the cross-batch branch conflicts seen so far.
func (c *Combiner) Diagnostics() []Diagnostic {
	return c.diags
}

// Combine folds partials in slice order. The returned diagnostics are the
// cross-batch conflicts only; each partial keeps its own.
func Combine(partials []PartialResult) ([]CourtRecord, []Diagnostic) {
	c := NewCombiner()
	for _, p := range partials {
		c.Add(p)
	}
	return c.Records(), c.Diagnostics()
}
