package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zalepa/metas/csvio"
)

func newConsolidateCmd(a *app) *cobra.Command {
	var (
		pattern string
		out     string
		sep     string
	)
	c := &cobra.Command{
		Use:   "consolidate <input-dir | file.csv>...",
		Short: "Merge every input CSV into one ';'-separated file",
		Long: `Concatenates the input files into a single CSV whose header is the union
of all input headers. Columns a file lacks are left empty.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inSep, err := parseSep(sep)
			if err != nil {
				return fmt.Errorf("--sep: %w", err)
			}
			var paths []string
			for _, in := range args {
				found, err := csvio.Discover(in, pattern)
				if err != nil {
					return err
				}
				paths = append(paths, found...)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no files matching %s found in %v", pattern, args)
			}
			n, err := writeConsolidated(out, paths, inSep)
			if err != nil {
				return err
			}
			a.log().Info("consolidated inputs", zap.String("path", out), zap.Int("files", len(paths)), zap.Int("rows", n))
			fmt.Fprintf(cmd.ErrOrStderr(), "%d files, %d rows → %s\n", len(paths), n, out)
			return nil
		},
	}
	c.Flags().StringVar(&pattern, "pattern", "*.csv", "file glob used inside input directories")
	c.Flags().StringVarP(&out, "out", "o", "Consolidado.csv", "output file")
	c.Flags().StringVar(&sep, "sep", ",", "input field separator")
	return c
}
