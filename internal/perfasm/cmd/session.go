package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"perfasm/internal/config"
	"perfasm/internal/disasm"
	"perfasm/internal/logging"
	perflog "perfasm/internal/perfasm/log"
	"perfasm/internal/profile"
)

// session is one loaded profile with the viewer over it.
type session struct {
	cfg     config.Config
	profile *profile.Profile
	viewer  *disasm.Viewer
	logger  *logging.LoggerCloser
}

func openSession(ctx context.Context, cmd *cobra.Command, path string, tui bool) (*session, error) {
	fsys := afero.NewOsFs()
	cfg, err := config.Resolve(fsys, cmd.Flags(), &flagConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lc := logging.NewLogger(tui)
	if cfg.Debug {
		lc.SetLevel(log.DebugLevel)
	}
	perflog.Setup(lc.Logger, cfg.Debug)

	absPath, err := filepath.Abs(path)
	if err != nil {
		lc.Close()
		return nil, fmt.Errorf("failed to resolve path: %v", err)
	}

	p, err := profile.Load(ctx, absPath, profile.Options{
		DataPath:       cfg.PerfData,
		AppPath:        cfg.AppPath,
		ExtraLibPaths:  cfg.ExtraLibPaths,
		TargetRoot:     cfg.TargetRoot,
		Arch:           cfg.Arch,
		Approach:       cfg.ApproachValue(),
		Unwind:         cfg.UnwindValue(),
		BranchTraverse: cfg.BranchTraverse,
		Fs:             fsys,
		Logger:         lc.Logger,
	})
	if err != nil {
		lc.Close()
		return nil, err
	}

	cache, err := disasm.NewOutputCache(cfg.CacheSize)
	if err != nil {
		lc.Close()
		return nil, fmt.Errorf("output cache: %w", err)
	}

	viewer := disasm.NewViewer(p.Result, disasm.Config{
		Options: cfg.Options,
		Action:  cfg.Action(),
		Tools:   cfg.Tools,
		Fs:      fsys,
		Runner:  disasm.NewExecRunner(cfg.Timeout),
		Cache:   cache,
		Logger:  lc.Logger,
	})

	lc.Info("session opened",
		"profile", absPath,
		"symbols", len(p.Result.Symbols),
		"arch", viewer.Arch().Name,
		"action", cfg.Action())
	return &session{cfg: cfg, profile: p, viewer: viewer, logger: lc}, nil
}

// Close removes mirrored binaries and closes the log file.
func (s *session) Close() error {
	var result *multierror.Error
	if err := s.viewer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.logger.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// findSymbol looks a symbol up by display name, mangled name or
// "binary:name". An empty query picks the hottest symbol.
func findSymbol(res *disasm.Result, query string) (disasm.Symbol, error) {
	if len(res.Symbols) == 0 {
		return disasm.Symbol{}, fmt.Errorf("profile has no symbols")
	}
	if query == "" {
		return res.Symbols[0], nil
	}
	binary, name, scoped := strings.Cut(query, ":")
	if !scoped || strings.Contains(name, ":") {
		binary, name = "", query
	}
	var partial []disasm.Symbol
	for _, sym := range res.Symbols {
		if binary != "" && sym.Binary != binary {
			continue
		}
		if sym.Name == name || sym.Mangled == name {
			return sym, nil
		}
		if strings.Contains(sym.Name, name) {
			partial = append(partial, sym)
		}
	}
	switch len(partial) {
	case 0:
		return disasm.Symbol{}, fmt.Errorf("symbol %q not found", query)
	case 1:
		return partial[0], nil
	}
	return disasm.Symbol{}, fmt.Errorf("symbol %q is ambiguous: %d matches, first %q", query, len(partial), partial[0].Name)
}

// printHeader writes the symbol line shown above a non-interactive listing.
func printHeader(w io.Writer, view *disasm.View) {
	fmt.Fprintf(w, "%s (%s)\n", view.Symbol.Name, view.Symbol.Binary)
	if view.Command != "" {
		fmt.Fprintf(w, "$ %s\n", view.Command)
	}
	fmt.Fprintln(w)
}
