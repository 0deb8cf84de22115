// Package chart renders per-court metric comparisons from a summary table.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/zalepa/metas/metas"
)

// ErrNoData is returned when no court has a value for the requested metric.
var ErrNoData = errors.New("no court has a value for this metric")

var (
	barPurple  = color.RGBA{R: 102, G: 51, B: 153, A: 255}
	refCrimson = color.RGBA{R: 220, G: 20, B: 60, A: 255}
)

// Bar is one court's value for the charted metric.
type Bar struct {
	Court string
	Value float64
}

// Bars extracts the non-NA values of metric, highest first. Ties are broken
// by court code so output is stable.
func Bars(t metas.SummaryTable, metric string) ([]Bar, error) {
	var get func(metas.SummaryRow) metas.Value
	if metric == metas.OverallColumn && t.HasOverall {
		get = func(r metas.SummaryRow) metas.Value { return r.Overall }
	} else {
		idx := t.Column(metric)
		if idx < 0 {
			return nil, fmt.Errorf("unknown metric %q", metric)
		}
		get = func(r metas.SummaryRow) metas.Value { return r.Values[idx] }
	}

	var bars []Bar
	for _, r := range t.Rows {
		if v := get(r); v.Valid {
			bars = append(bars, Bar{Court: r.Court, Value: v.Float})
		}
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Value != bars[j].Value {
			return bars[i].Value > bars[j].Value
		}
		return bars[i].Court < bars[j].Court
	})
	return bars, nil
}

// Options controls RenderMetric.
type Options struct {
	Metric string
	Title  string
	// Target draws a dashed reference line; zero disables it.
	Target float64
}

// RenderMetric draws a bar chart of one metric across courts and saves it to
// path. The format follows the extension (.png, .svg, .pdf, ...). PDF output
// is validated after writing.
func RenderMetric(path string, t metas.SummaryTable, opts Options) error {
	bars, err := Bars(t, opts.Metric)
	if err != nil {
		return err
	}
	title := opts.Title
	if title == "" {
		title = "Desempenho da " + opts.Metric + " por Tribunal"
	}

	p, err := newBarPlot(title, bars, opts.Target)
	if err != nil {
		return err
	}

	width := vg.Length(len(bars)) * 0.25 * vg.Inch
	if width < 8*vg.Inch {
		width = 8 * vg.Inch
	}
	if err := p.Save(width, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if _, err := VerifyPDF(path); err != nil {
			return err
		}
	}
	return nil
}

func newBarPlot(title string, bars []Bar, target float64) (*plot.Plot, error) {
	// The Liberation font used by the vg backends lacks the em dash glyph.
	title = strings.ReplaceAll(title, "\u2014", "-")

	vals := make(plotter.Values, len(bars))
	names := make([]string, len(bars))
	xys := make(plotter.XYs, len(bars))
	labels := make([]string, len(bars))
	maxY, minY := target, 0.0
	for i, b := range bars {
		vals[i] = b.Value
		names[i] = b.Court
		xys[i] = plotter.XY{X: float64(i), Y: b.Value}
		labels[i] = strconv.FormatFloat(b.Value, 'f', 1, 64)
		maxY = math.Max(maxY, b.Value)
		minY = math.Min(minY, b.Value)
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.BackgroundColor = color.White
	p.Y.Label.Text = "Índice de Desempenho (%)"

	grid := plotter.NewGrid()
	grid.Vertical.Color = nil
	p.Add(grid)

	bc, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return nil, fmt.Errorf("bar chart: %w", err)
	}
	bc.Color = barPurple
	bc.LineStyle.Width = 0
	p.Add(bc)

	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].Font.Size = vg.Points(7)
		lbl.TextStyle[i].XAlign = draw.XCenter
	}
	lbl.Offset = vg.Point{Y: vg.Points(2)}
	p.Add(lbl)

	if target != 0 {
		ref := plotter.NewFunction(func(float64) float64 { return target })
		ref.Color = refCrimson
		ref.Width = vg.Points(2)
		ref.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(ref)
		p.Legend.Add(fmt.Sprintf("Meta (%s%%)", strconv.FormatFloat(target, 'f', -1, 64)), ref)
		p.Legend.Top = true
	}

	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.Y.Min = minY * 1.1
	p.Y.Max = maxY * 1.1
	return p, nil
}
