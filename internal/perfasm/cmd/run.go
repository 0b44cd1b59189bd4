package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"perfasm/internal/export"
)

var runCmd = &cobra.Command{
	Use:   "run [profile] [symbol]",
	Short: "Print one listing without the TUI",
	Long: `Generate the listing of a single symbol and exit.
The symbol is matched by name, mangled name or binary:name; without one the
hottest symbol is shown.`,
	Example: `
# Hottest symbol as a table
perfasm run cpu.pb.gz

# A given function as CSV
perfasm run --csv cpu.pb.gz 'a.out:main' > result.csv
  `,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")
		asCSV, _ := cmd.Flags().GetBool("csv")
		if _, err := ResolveCwd(cmd); err != nil {
			return err
		}
		setenvNoColor()

		s, err := openSession(cmd.Context(), cmd, args[0], false)
		if err != nil {
			return err
		}
		defer s.Close()

		query := ""
		if len(args) > 1 {
			query = args[1]
		}
		sym, err := findSymbol(s.viewer.Result(), query)
		if err != nil {
			return err
		}
		if !quiet {
			slog.Info("Generating listing", "symbol", sym.Name, "binary", sym.Binary)
		}

		s.viewer.Select(sym)
		view, err := s.viewer.Render(cmd.Context())
		if err != nil {
			return fmt.Errorf("generate %s: %w", sym.Name, err)
		}

		out := cmd.OutOrStdout()
		if asCSV {
			return export.WriteCSV(out, view.Columns, view.Rows)
		}
		printHeader(out, view)
		return export.WriteTable(out, view.Columns, view.Rows)
	},
}

func init() {
	runCmd.Flags().BoolP("quiet", "q", false, "Do not log progress")
	runCmd.Flags().Bool("csv", false, "Write CSV instead of a table")
}
