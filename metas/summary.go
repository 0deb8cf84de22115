package metas

import (
	"sort"
)

// Assemble aligns metric records onto columns, fills every column a record
// does not define with NA, and sorts rows by court code. With
// includeOverall, each row also carries the mean of its non-NA values.
func Assemble(records []MetricRecord, columns []string, includeOverall bool) SummaryTable {
	t := SummaryTable{
		Columns:    append([]string(nil), columns...),
		HasOverall: includeOverall,
		Rows:       make([]SummaryRow, 0, len(records)),
	}
	for _, rec := range records {
		row := SummaryRow{
			Court:  rec.Court,
			Branch: rec.Branch,
			Values: make([]Value, len(columns)),
		}
		for i, col := range columns {
			row.Values[i], _ = rec.Get(col)
		}
		if includeOverall {
			row.Overall = mean(row.Values)
		}
		t.Rows = append(t.Rows, row)
	}
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].Court < t.Rows[j].Court })
	return t
}

func mean(vals []Value) Value {
	var sum float64
	n := 0
	for _, v := range vals {
		if v.Valid {
			sum += v.Float
			n++
		}
	}
	if n == 0 {
		return NA
	}
	return Some(sum / float64(n))
}
