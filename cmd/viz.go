package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zalepa/metas/chart"
	"github.com/zalepa/metas/csvio"
)

const barWidth = 40

func newVizCmd(a *app) *cobra.Command {
	var (
		metric string
		out    string
		target float64
		title  string
	)
	c := &cobra.Command{
		Use:   "viz <ResumoMetas.json>",
		Short: "Compare one metric across courts",
		Long: `Reads a summary written by "metas run" and shows one metric per court,
highest first. Without --out a bar table is printed to the terminal; with
--out a chart is rendered (.png, .svg or .pdf).

Examples:
  metas viz ResumoMetas.json
  metas viz ResumoMetas.json --metric "Meta 2A"
  metas viz ResumoMetas.json --out desempenho_metas.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			doc, err := csvio.ReadSummaryJSON(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			table := doc.Table()

			if out != "" {
				if err := chart.RenderMetric(out, table, chart.Options{Metric: metric, Title: title, Target: target}); err != nil {
					return err
				}
				a.log().Info("chart rendered", zap.String("path", out), zap.String("metric", metric))
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			}

			bars, err := chart.Bars(table, metric)
			if err != nil {
				return err
			}
			if title == "" {
				title = metric
			}
			renderBarTable(cmd.OutOrStdout(), title, bars, target)
			return nil
		},
	}
	c.Flags().StringVarP(&metric, "metric", "m", "Meta 1", "metric column to show")
	c.Flags().StringVarP(&out, "out", "o", "", "render a chart file instead of a terminal table")
	c.Flags().Float64Var(&target, "target", 100, "reference value (0 = none)")
	c.Flags().StringVar(&title, "title", "", "chart title")
	return c
}

// renderBarTable prints one row per court with a horizontal bar scaled to
// the largest value (or the target, whichever is larger). The target column
// is marked with '│'.
func renderBarTable(w io.Writer, title string, bars []chart.Bar, target float64) {
	maxName := 10
	scale := target
	for _, b := range bars {
		if len(b.Court) > maxName {
			maxName = len(b.Court)
		}
		scale = math.Max(scale, b.Value)
	}

	fmt.Fprintln(w, title)
	if target != 0 {
		fmt.Fprintf(w, "Target: %s\n", formatNum(target))
	}
	fmt.Fprintln(w)

	rowFmt := fmt.Sprintf("%%-%ds  %%10s   %%s\n", maxName)
	fmt.Fprintf(w, rowFmt, "Court", "Value", "")
	fmt.Fprintln(w, strings.Repeat("─", maxName+2+10+3+barWidth+1))

	mark := -1
	if target > 0 && scale > 0 {
		mark = int(math.Round(target / scale * barWidth))
	}
	for _, b := range bars {
		fmt.Fprintf(w, rowFmt, b.Court, formatNum(b.Value), bar(b.Value, scale, mark))
	}
}

func bar(v, scale float64, mark int) string {
	n := 0
	if scale > 0 && v > 0 {
		n = int(math.Round(v / scale * barWidth))
	}
	cells := make([]rune, barWidth+1)
	for i := range cells {
		switch {
		case i < n:
			cells[i] = '█'
		case i == mark:
			cells[i] = '│'
		default:
			cells[i] = ' '
		}
	}
	return strings.TrimRight(string(cells), " ")
}

// numbers groups thousands the way the report tables are read.
var numbers = message.NewPrinter(language.English)

// formatNum prints whole values with thousands separators and everything else
// to one decimal place. NaN is "NA".
func formatNum(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return numbers.Sprintf("%d", int64(v))
	}
	return numbers.Sprintf("%.1f", v)
}
