package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zalepa/metas/chart"
	"github.com/zalepa/metas/csvio"
	"github.com/zalepa/metas/metas"
)

type runOptions struct {
	pattern      string
	outDir       string
	workers      int
	sep          string
	outSep       string
	decimalComma bool
	precision    int
	courtColumn  string
	branchColumn string
	overall      bool
	consolidate  bool
	chartPath    string
	chartMetric  string
	target       float64
	metricsFile  string
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	c := &cobra.Command{
		Use:   "run <input-dir | file.csv>...",
		Short: "Aggregate case-count CSVs and compute every court's Metas",
		Long: `Reads every CSV in the given directories (or the given files), one
partition per file, aggregates them in parallel and writes ResumoMetas.csv and
ResumoMetas.json to --out-dir.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.ErrOrStderr(), args, o)
		},
	}
	f := c.Flags()
	f.StringVar(&o.pattern, "pattern", "*.csv", "file glob used inside input directories")
	f.StringVarP(&o.outDir, "out-dir", "o", ".", "output directory")
	f.IntVarP(&o.workers, "workers", "w", 0, "parallel workers (0 = GOMAXPROCS)")
	f.StringVar(&o.sep, "sep", ",", "input field separator")
	f.StringVar(&o.outSep, "out-sep", ";", "summary CSV field separator")
	f.BoolVar(&o.decimalComma, "decimal-comma", false, "write decimals with a comma")
	f.IntVar(&o.precision, "precision", -1, "decimals in the summary CSV (-1 = exact)")
	f.StringVar(&o.courtColumn, "court-column", csvio.DefaultCourtColumn, "court code column")
	f.StringVar(&o.branchColumn, "branch-column", csvio.DefaultBranchColumn, "branch column")
	f.BoolVar(&o.overall, "overall", false, "append the mean of each court's metrics as \""+metas.OverallColumn+"\"")
	f.BoolVar(&o.consolidate, "consolidate", false, "also write Consolidado.csv with every input row")
	f.StringVar(&o.chartPath, "chart", "", "render a bar chart to this file (.png, .svg, .pdf)")
	f.StringVar(&o.chartMetric, "chart-metric", "Meta 1", "metric to chart")
	f.Float64Var(&o.target, "target", 100, "reference line drawn on the chart (0 = none)")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	return c
}

func (a *app) run(ctx context.Context, stderr io.Writer, inputs []string, o *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := a.log()

	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}
	inSep, err := parseSep(o.sep)
	if err != nil {
		return fmt.Errorf("--sep: %w", err)
	}
	outSep, err := parseSep(o.outSep)
	if err != nil {
		return fmt.Errorf("--out-sep: %w", err)
	}

	var paths []string
	for _, in := range inputs {
		found, err := csvio.Discover(in, o.pattern)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files matching %s found in %v", o.pattern, inputs)
	}
	if err := os.MkdirAll(o.outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if o.consolidate {
		out := filepath.Join(o.outDir, "Consolidado.csv")
		n, err := writeConsolidated(out, paths, inSep)
		if err != nil {
			return fmt.Errorf("consolidate: %w", err)
		}
		log.Info("consolidated inputs", zap.String("path", out), zap.Int("rows", n))
	}

	log.Info("starting run",
		zap.Int("partitions", len(paths)),
		zap.String("registry_version", reg.Version()))

	eng := &metas.Engine{
		Registry:       reg,
		Workers:        o.workers,
		IncludeOverall: o.overall,
		Logger:         log,
	}
	opts := csvio.Options{CourtColumn: o.courtColumn, BranchColumn: o.branchColumn, Comma: inSep}
	started := time.Now()
	res, err := eng.Run(ctx, csvio.Partitions(paths, opts))
	if err != nil {
		return err
	}

	csvOut := filepath.Join(o.outDir, "ResumoMetas.csv")
	jsonOut := filepath.Join(o.outDir, "ResumoMetas.json")
	if err := writeFile(csvOut, func(w io.Writer) error {
		return csvio.WriteSummaryCSV(w, res.Table, csvio.SummaryOptions{
			Comma:        outSep,
			DecimalComma: o.decimalComma,
			Precision:    o.precision,
		})
	}); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	doc := csvio.NewSummaryDocument(res.Table, res.Diagnostics)
	doc.RunID = a.runID
	doc.Registry = reg.Version()
	if err := writeFile(jsonOut, func(w io.Writer) error {
		return csvio.WriteSummaryJSON(w, doc)
	}); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}

	if o.chartPath != "" {
		err := chart.RenderMetric(o.chartPath, res.Table, chart.Options{Metric: o.chartMetric, Target: o.target})
		if err != nil {
			log.Warn("chart not rendered", zap.String("path", o.chartPath), zap.Error(err))
			fmt.Fprintf(stderr, "chart: %v\n", err)
		} else {
			log.Info("chart rendered", zap.String("path", o.chartPath), zap.String("metric", o.chartMetric))
		}
	}

	if o.metricsFile != "" {
		m := newRunMetrics()
		m.observe(res, time.Since(started))
		if err := m.writeTextfile(o.metricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	printRunSummary(stderr, res, csvOut)
	return nil
}

func writeConsolidated(path string, inputs []string, sep rune) (int, error) {
	var n int
	err := writeFile(path, func(w io.Writer) error {
		var err error
		n, err = csvio.Consolidate(w, inputs, sep, ';')
		return err
	})
	return n, err
}

// writeFile creates path and hands it to fill, closing it afterwards.
func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printRunSummary writes one line of totals, then every diagnostic that
// excluded data. Zero denominators and absent fields are only counted.
func printRunSummary(w io.Writer, res *metas.Result, out string) {
	s := res.Stats
	counts := metas.CountByKind(res.Diagnostics)
	fmt.Fprintf(w, "%d partitions (%d failed), %d rows, %d courts (%d excluded) → %s\n",
		s.Partitions, s.FailedPartitions, s.Rows, s.Courts, s.Excluded, filepath.Base(out))
	for _, d := range res.Diagnostics {
		switch d.Kind {
		case metas.KindDivisionUndefined, metas.KindMissingField:
			continue
		}
		fmt.Fprintf(w, "  %s\n", d)
	}
	if n := counts[metas.KindDivisionUndefined]; n > 0 {
		fmt.Fprintf(w, "  %d metrics NA (zero denominator)\n", n)
	}
	if n := counts[metas.KindMissingField]; n > 0 {
		fmt.Fprintf(w, "  %d partitions lacked some formula fields (treated as zero)\n", n)
	}
}
