package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"perfasm/internal/config"
	"perfasm/internal/disasm"
	"perfasm/internal/export"
	"perfasm/internal/perfasm/styles"
)

// flagConfig receives the parsed flags; config.Resolve merges it over the
// defaults and the config file.
var flagConfig = config.Default()

func init() {
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")
	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	flagConfig.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.Flags().BoolP("help", "h", false, "Help")
	rootCmd.Flags().BoolP("no-tui", "n", false, "Print the hottest symbol without TUI")
	rootCmd.Flags().String("cpuprofile", "", "Write CPU profile to file")
	rootCmd.Flags().String("memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(symbolsCmd)
}

var rootCmd = &cobra.Command{
	Use:   "perfasm [profile]",
	Short: "Terminal disassembly view for CPU profiles",
	Long: `Perfasm shows the instructions of profiled functions next to their sampled cost.
It drives objdump or perf annotate, lets you follow calls into other functions
and back, and exports what you see.`,
	Example: `
# Browse a pprof profile
perfasm cpu.pb.gz

# Binaries were copied off the target
perfasm --app-path ./rootfs/usr/bin --extra-lib-paths ./rootfs/lib:./rootfs/usr/lib cpu.pb.gz

# Annotate with perf instead of objdump
perfasm --annotate --perf-data perf.data cpu.pb.gz
  `,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
		if cpuprofile != "" {
			f, err := os.Create(cpuprofile)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %v", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %v", err)
			}
			defer pprof.StopCPUProfile()
		}

		memprofile, _ := cmd.Flags().GetString("memprofile")
		if memprofile != "" {
			defer func() {
				f, err := os.Create(memprofile)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
					return
				}
				defer f.Close()
				if err := pprof.WriteHeapProfile(f); err != nil {
					fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
				}
			}()
		}

		if _, err := ResolveCwd(cmd); err != nil {
			return err
		}

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		if !term.IsTerminal(os.Stdout.Fd()) {
			noTUI = true
		}
		if noTUI {
			setenvNoColor()
		}

		s, err := openSession(cmd.Context(), cmd, args[0], !noTUI)
		if err != nil {
			return err
		}
		defer s.Close()

		if noTUI {
			return runNoTUI(cmd, s)
		}

		program := tea.NewProgram(
			newModel(cmd.Context(), s),
			tea.WithAltScreen(),
			tea.WithContext(cmd.Context()),
		)
		if _, err := program.Run(); err != nil {
			slog.Error("TUI run error", "error", err)
			return fmt.Errorf("TUI error: %v", err)
		}
		return nil
	},
}

// runNoTUI prints the hottest symbol's listing as a table.
func runNoTUI(cmd *cobra.Command, s *session) error {
	syms := s.viewer.Result().Symbols
	if len(syms) == 0 {
		return fmt.Errorf("no symbols in %s", s.profile.Path)
	}
	s.viewer.Select(syms[0])
	view, err := s.viewer.Render(cmd.Context())
	if err != nil {
		return err
	}
	printHeader(cmd.OutOrStdout(), view)
	return export.WriteTable(cmd.OutOrStdout(), view.Columns, view.Rows)
}

func Execute() {
	// Piped output goes through plain cobra so fang does not style it.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func ResolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		err := os.Chdir(cwd)
		if err != nil {
			return "", fmt.Errorf("failed to change directory: %v", err)
		}
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %v", err)
	}
	return cwd, nil
}

// actionName is used in headers and the menu bar.
func actionName(a disasm.Action) string {
	if a == disasm.ActionAnnotate {
		return "perf annotate"
	}
	return "objdump"
}

// setenvNoColor turns colour off for output that is not a TUI.
func setenvNoColor() {
	os.Setenv(styles.EnvNoColor, "1")
}
