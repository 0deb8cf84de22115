// Package metas computes judicial performance indices ("Metas") per court
// from case-count records: per-batch field sums are merged across batches and
// evaluated against branch-specific ratio formulas.
package metas

import (
	"encoding/json"
	"math"
	"strconv"
)

// RawRow is one case-count record. Fields holds only the columns present in
// the batch the row came from; values are raw cells and are coerced during
// aggregation.
type RawRow struct {
	Court  string
	Branch string
	Fields map[string]string
}

// Mode selects how a formula's denominator fields are combined.
type Mode string

const (
	// ModeAddSub is d0 + d1 - d2.
	ModeAddSub Mode = "ADD_SUB"
	// ModeSub is d0 - d1.
	ModeSub Mode = "SUB"
)

// FormulaSpec describes one metric: multiplier * numerator / denominator.
type FormulaSpec struct {
	Name         string     `yaml:"name" json:"name" validate:"required"`
	Numerator    string     `yaml:"numerator" json:"numerator" validate:"required"`
	Denominators []string   `yaml:"denominator" json:"denominator" validate:"required,dive,required"`
	Mode         Mode       `yaml:"mode" json:"mode" validate:"oneof=ADD_SUB SUB"`
	Multiplier   Multiplier `yaml:"multiplier" json:"multiplier" validate:"gt=0"`
}

// CourtRecord is a court's fully combined totals.
type CourtRecord struct {
	Court  string
	Branch string
	Sums   PartialSum
}

// Value is a metric value or the NA marker.
type Value struct {
	Float float64
	Valid bool
}

// NA is the "not applicable / not computable" marker.
var NA = Value{}

// Some wraps a computed metric value.
func Some(v float64) Value { return Value{Float: v, Valid: true} }

// String renders the value with full precision, or "NA".
func (v Value) String() string {
	if !v.Valid {
		return "NA"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// MarshalJSON encodes NA as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid || math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float)
}

// UnmarshalJSON decodes null as NA.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NA
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// Metric is one named entry of a MetricRecord.
type Metric struct {
	Name  string
	Value Value
}

// MetricRecord holds the metrics one court's branch defines, in formula order.
type MetricRecord struct {
	Court   string
	Branch  string
	Metrics []Metric
}

// Get returns the named metric, or NA when the record does not define it.
func (r MetricRecord) Get(name string) (Value, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return NA, false
}

// OverallColumn is the header of the derived mean-of-metrics column.
const OverallColumn = "Desempenho Geral"

// SummaryRow is one court's metrics aligned to SummaryTable.Columns.
type SummaryRow struct {
	Court   string  `json:"court"`
	Branch  string  `json:"branch"`
	Values  []Value `json:"values"`
	Overall Value   `json:"overall"`
}

// SummaryTable is the engine's output. Every row has exactly len(Columns)
// values.
type SummaryTable struct {
	Columns    []string     `json:"columns"`
	HasOverall bool         `json:"hasOverall"`
	Rows       []SummaryRow `json:"rows"`
}

// Column returns the index of a metric column, or -1.
func (t SummaryTable) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
