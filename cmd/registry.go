package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zalepa/metas/metas"
)

func newRegistryCmd(a *app) *cobra.Command {
	var (
		check  bool
		export bool
	)
	c := &cobra.Command{
		Use:   "registry",
		Short: "Show, validate or export the formula registry",
		Long: `Prints every branch's formulas in evaluation order. With --check only
validation is performed; with --export the embedded default registry YAML is
written to stdout as a starting point for a custom table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if export {
				_, err := cmd.OutOrStdout().Write(metas.DefaultRegistryYAML())
				return err
			}
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			if check {
				fmt.Fprintf(cmd.OutOrStdout(), "registry OK: %d branches, %d metrics, %d input fields\n",
					len(reg.Branches()), len(reg.Columns()), len(reg.Fields()))
				return nil
			}
			return printRegistry(cmd.OutOrStdout(), reg)
		},
	}
	c.Flags().BoolVar(&check, "check", false, "validate only")
	c.Flags().BoolVar(&export, "export", false, "write the embedded default registry YAML")
	return c
}

func printRegistry(w io.Writer, reg *metas.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if v := reg.Version(); v != "" {
		fmt.Fprintf(tw, "version %s\n\n", v)
	}
	for _, b := range reg.Branches() {
		fmt.Fprintf(tw, "%s\n", b)
		for _, f := range reg.Formulas(b) {
			fmt.Fprintf(tw, "  %s\t%s\t/ %s\t%s\t× %s\n",
				f.Name, f.Numerator, denominatorExpr(f), f.Mode,
				strconv.FormatFloat(float64(f.Multiplier), 'g', 6, 64))
		}
	}
	for _, u := range reg.Umbrellas() {
		courts := reg.UmbrellaCourts(u)
		codes := make([]string, 0, len(courts))
		for c := range courts {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		fmt.Fprintf(tw, "%s (resolved by court code)\n", u)
		for _, c := range codes {
			fmt.Fprintf(tw, "  %s\t→ %s\n", c, courts[c])
		}
	}
	return tw.Flush()
}

func denominatorExpr(f metas.FormulaSpec) string {
	d := f.Denominators
	switch {
	case f.Mode == metas.ModeAddSub && len(d) == 3:
		return "(" + d[0] + " + " + d[1] + " - " + d[2] + ")"
	case f.Mode == metas.ModeSub && len(d) == 2:
		return "(" + d[0] + " - " + d[1] + ")"
	}
	return "(" + strings.Join(d, ", ") + ")"
}
