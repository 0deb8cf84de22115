package csvio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/zalepa/metas/metas"
)

// SummaryOptions controls the summary CSV layout.
type SummaryOptions struct {
	// Comma is the field separator; zero means ';'.
	Comma rune
	// DecimalComma writes "50,5" instead of "50.5".
	DecimalComma bool
	// Precision is the number of decimals; negative means shortest exact.
	Precision int
}

// WriteSummaryCSV writes the court-code column followed by every metric
// column (and the overall column when present), with NA for inapplicable
// metrics.
func WriteSummaryCSV(w io.Writer, t metas.SummaryTable, opts SummaryOptions) error {
	if opts.Comma == 0 {
		opts.Comma = ';'
	}
	cw := csv.NewWriter(w)
	cw.Comma = opts.Comma

	header := append([]string{DefaultCourtColumn}, t.Columns...)
	if t.HasOverall {
		header = append(header, metas.OverallColumn)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range t.Rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Court)
		for _, v := range r.Values {
			row = append(row, formatValue(v, opts))
		}
		if t.HasOverall {
			row = append(row, formatValue(r.Overall, opts))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v metas.Value, opts SummaryOptions) string {
	if !v.Valid || math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		return "NA"
	}
	s := strconv.FormatFloat(v.Float, 'f', opts.Precision, 64)
	if opts.DecimalComma {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}

// SummaryDocument is the JSON form of a run's output.
type SummaryDocument struct {
	RunID       string             `json:"runId,omitempty"`
	Registry    string             `json:"registryVersion,omitempty"`
	Columns     []string           `json:"columns"`
	HasOverall  bool               `json:"hasOverall"`
	Rows        []SummaryJSONRow   `json:"rows"`
	Diagnostics []metas.Diagnostic `json:"diagnostics"`
}

// SummaryJSONRow keys metric values by column name.
type SummaryJSONRow struct {
	Court   string                 `json:"court"`
	Branch  string                 `json:"branch"`
	Metrics map[string]metas.Value `json:"metrics"`
	Overall *metas.Value           `json:"overall,omitempty"`
}

// NewSummaryDocument builds the JSON document for a table.
func NewSummaryDocument(t metas.SummaryTable, diags []metas.Diagnostic) SummaryDocument {
	doc := SummaryDocument{
		Columns:     t.Columns,
		HasOverall:  t.HasOverall,
		Rows:        make([]SummaryJSONRow, 0, len(t.Rows)),
		Diagnostics: diags,
	}
	if doc.Diagnostics == nil {
		doc.Diagnostics = []metas.Diagnostic{}
	}
	for _, r := range t.Rows {
		jr := SummaryJSONRow{
			Court:   r.Court,
			Branch:  r.Branch,
			Metrics: make(map[string]metas.Value, len(t.Columns)),
		}
		for i, c := range t.Columns {
			jr.Metrics[c] = r.Values[i]
		}
		if t.HasOverall {
			ov := r.Overall
			jr.Overall = &ov
		}
		doc.Rows = append(doc.Rows, jr)
	}
	return doc
}

// Table converts the document back into a SummaryTable.
func (d SummaryDocument) Table() metas.SummaryTable {
	t := metas.SummaryTable{Columns: d.Columns, HasOverall: d.HasOverall}
	for _, jr := range d.Rows {
		row := metas.SummaryRow{Court: jr.Court, Branch: jr.Branch, Values: make([]metas.Value, len(d.Columns))}
		for i, c := range d.Columns {
			row.Values[i] = jr.Metrics[c]
		}
		if jr.Overall != nil {
			row.Overall = *jr.Overall
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// WriteSummaryJSON writes doc indented.
func WriteSummaryJSON(w io.Writer, doc SummaryDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ReadSummaryJSON decodes a document written by WriteSummaryJSON.
func ReadSummaryJSON(r io.Reader) (SummaryDocument, error) {
	var doc SummaryDocument
	err := json.NewDecoder(r).Decode(&doc)
	return doc, err
}
