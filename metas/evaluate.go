package metas

import (
	"fmt"
	"math"
)

// Denominator combines a formula's denominator fields from sums according to
// its mode. Missing fields count as zero.
func (f FormulaSpec) Denominator(sums PartialSum) float64 {
	d := func(i int) float64 {
		if i >= len(f.Denominators) {
			return 0
		}
		return sums.Get(f.Denominators[i])
	}
	switch f.Mode {
	case ModeAddSub:
		return d(0) + d(1) - d(2)
	default:
		return d(0) - d(1)
	}
}

// Apply evaluates the formula against sums. The result is NA when the
// denominator is zero, or when the totals overflowed and the value is not a
// finite number.
func (f FormulaSpec) Apply(sums PartialSum) Value {
	den := f.Denominator(sums)
	if den == 0 || !finite(den) {
		return NA
	}
	v := float64(f.Multiplier) * sums.Get(f.Numerator) / den
	if !finite(v) {
		return NA
	}
	return Some(v)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Evaluate computes every formula for one court, in formula order, and
// reports a DivisionUndefined diagnostic for each NA metric.
func Evaluate(rec CourtRecord, formulas []FormulaSpec) (MetricRecord, []Diagnostic) {
	out := MetricRecord{
		Court:   rec.Court,
		Branch:  rec.Branch,
		Metrics: make([]Metric, 0, len(formulas)),
	}
	var diags []Diagnostic
	for _, f := range formulas {
		v := f.Apply(rec.Sums)
		if !v.Valid {
			detail := fmt.Sprintf("denominator of %s is zero", f.Denominators)
			if f.Denominator(rec.Sums) != 0 {
				detail = fmt.Sprintf("%s over %s is not a finite number", f.Numerator, f.Denominators)
			}
			diags = append(diags, Diagnostic{
				Kind:   KindDivisionUndefined,
				Court:  rec.Court,
				Branch: rec.Branch,
				Metric: f.Name,
				Detail: detail,
			})
		}
		out.Metrics = append(out.Metrics, Metric{Name: f.Name, Value: v})
	}
	return out, diags
}

// Evaluator binds Evaluate to a registry.
type Evaluator struct {
	Registry *Registry
}

// EvaluateCourt resolves the court's formulas and evaluates them. A court
// whose branch has no formulas yields an empty record and a
// BranchNotRecognized diagnostic.
func (e Evaluator) EvaluateCourt(rec CourtRecord) (MetricRecord, []Diagnostic) {
	res, ok := e.Registry.Lookup(rec.Branch, rec.Court)
	if !ok {
		return MetricRecord{Court: rec.Court, Branch: rec.Branch}, []Diagnostic{{
			Kind:   KindBranchNotRecognized,
			Court:  rec.Court,
			Branch: rec.Branch,
			Detail: "no formulas defined; court excluded from metric computation",
		}}
	}
	return Evaluate(rec, res.Formulas)
}
