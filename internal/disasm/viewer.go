package disasm

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Tools overrides the external binaries. Empty fields pick the defaults
// for the session's architecture.
type Tools struct {
	Objdump string `json:"objdump,omitempty" yaml:"objdump"`
	Perf    string `json:"perf,omitempty" yaml:"perf"`
}

// Config wires a Viewer to its collaborators.
type Config struct {
	Options Options
	Action  Action
	Tools   Tools
	Fs      afero.Fs
	Runner  Runner
	Cache   *OutputCache
	Logger  *log.Logger
}

// View is the listing of one symbol together with its per-view caches.
// A new View is created for every symbol change, so the callee map of one
// listing never leaks into another.
type View struct {
	Symbol     Symbol
	Action     Action
	Command    string
	Columns    []string
	Rows       []Row
	Diagnostic bool
	Focus      int

	callees *CalleeResolver
}

// Callees returns the resolved call sites of the view.
func (v *View) Callees() CalleeMap {
	if v == nil || v.callees == nil {
		return nil
	}
	return v.callees.Callees()
}

// Viewer is one profiling session's disassembly page: the loaded Result,
// the symbol being shown, the navigation stack and the current View.
// It is not safe for concurrent use; run Jobs elsewhere and Apply their
// results on the owning goroutine.
type Viewer struct {
	res      *Result
	arch     Arch
	opcodes  Opcodes
	opts     Options
	action   Action
	approach Approach
	tools    Tools

	resolver *PathResolver
	runner   Runner
	cache    *OutputCache
	logger   *log.Logger

	nav      Navigator
	view     *View
	resolved Resolved
	search   SearchState

	seq            uint64
	objdumpVersion string
	disasmDisabled bool
}

// NewViewer starts a session over res.
func NewViewer(res *Result, cfg Config) *Viewer {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner(DefaultTimeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	arch := NormalizeArch(res.Arch)
	if cfg.Tools.Objdump == "" {
		cfg.Tools.Objdump = arch.Objdump
	}
	if cfg.Tools.Perf == "" {
		cfg.Tools.Perf = perfTool
	}
	v := &Viewer{
		res:      res,
		arch:     arch,
		opts:     cfg.Options,
		action:   cfg.Action,
		approach: res.Approach,
		tools:    cfg.Tools,
		resolver: NewPathResolver(cfg.Fs, res, cfg.Logger),
		runner:   cfg.Runner,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
	}
	v.opcodes = OpcodesFor(arch, v.opts.IntelSyntax)
	v.search.Arch = arch
	v.open(Symbol{})
	return v
}

// Result is the session's profile data.
func (v *Viewer) Result() *Result { return v.res }

// Arch is the normalised session architecture.
func (v *Viewer) Arch() Arch { return v.arch }

// Opcodes are the call/return mnemonics for the current syntax.
func (v *Viewer) Opcodes() Opcodes { return v.opcodes }

// Options are the current display toggles.
func (v *Viewer) Options() Options { return v.opts }

// Action is the current generation tool.
func (v *Viewer) Action() Action { return v.action }

// Approach is the current objdump address-selection strategy.
func (v *Viewer) Approach() Approach { return v.approach }

// Current is the symbol being shown.
func (v *Viewer) Current() Symbol { return v.nav.Current() }

// Depth is the number of callers that can be returned to.
func (v *Viewer) Depth() int { return v.nav.Depth() }

// Stack lists the callers, outermost first.
func (v *Viewer) Stack() []Symbol { return v.nav.Stack() }

// CanReturn reports whether "return to caller" is available.
func (v *Viewer) CanReturn() bool { return v.nav.CanReturn() }

// View is the current listing.
func (v *Viewer) View() *View { return v.view }

// Search is the state handed to renderers.
func (v *Viewer) Search() SearchState { return v.search }

// Resolved is where the current symbol's binary was found.
func (v *Viewer) Resolved() Resolved { return v.resolved }

// ObjdumpVersion is the probed objdump version, empty until probed.
func (v *Viewer) ObjdumpVersion() string { return v.objdumpVersion }

// DisassemblyDisabled reports that objdump was found too old to use.
func (v *Viewer) DisassemblyDisabled() bool { return v.disasmDisabled }

// Select shows sym as a new top-level selection, dropping the
// navigation stack.
func (v *Viewer) Select(sym Symbol) {
	v.nav.Reset(sym)
	v.open(sym)
}

// open resets the per-view state for sym.
func (v *Viewer) open(sym Symbol) {
	v.view = &View{
		Symbol:  sym,
		Action:  v.action,
		callees: NewCalleeResolver(v.res.Symbols, v.opcodes.Call),
	}
	v.search.Callees = nil
	v.search.Diagnostic = false
	v.resolved = Resolved{}
	if !sym.Valid() {
		return
	}
	resolved, err := v.resolver.Resolve(sym)
	if err != nil {
		v.logger.Debug("resolve binary", "symbol", sym.Name, "err", err)
	}
	v.resolved = resolved
}

// reopen rebuilds the current view after a display change.
func (v *Viewer) reopen() {
	v.open(v.nav.Current())
}

// SetOptions changes the display toggles.
func (v *Viewer) SetOptions(o Options) {
	v.opts = o
	v.opcodes = OpcodesFor(v.arch, o.IntelSyntax)
	v.reopen()
}

// SetAction switches between objdump and perf annotate.
func (v *Viewer) SetAction(a Action) {
	v.action = a
	v.reopen()
}

// SetApproach switches the objdump address-selection strategy.
func (v *Viewer) SetApproach(a Approach) {
	v.approach = a
	v.reopen()
}

// SetSearch sets the text renderers highlight.
func (v *Viewer) SetSearch(text string) {
	v.search.Text = text
}

// Plan describes the generation of the current view.
func (v *Viewer) Plan() Job {
	v.seq++
	sym := v.nav.Current()
	job := Job{
		Seq:          v.seq,
		Action:       v.action,
		Symbol:       sym,
		Arch:         v.arch,
		Objdump:      v.tools.Objdump,
		Options:      v.opts,
		CheckVersion: v.objdumpVersion == "",
		cache:        v.cache,
	}
	switch {
	case !sym.Valid():
		job.Diagnostic = invalidSymbolDiagnostic()
	case v.action == ActionDisassembly && v.disasmDisabled:
		job.Diagnostic = oldObjdumpDiagnostic(v.objdumpVersion)
	case v.action == ActionAnnotate:
		job.Command = BuildAnnotate(AnnotateRequest{
			Perf:     v.tools.Perf,
			Objdump:  v.tools.Objdump,
			DataPath: v.res.DataPath,
			Symfs:    v.resolved.Symfs,
		}, sym, v.opts)
	default:
		job.Command = BuildDisassembly(v.tools.Objdump, sym, v.resolved.Path, v.approach, v.opts)
	}
	return job
}

// Apply turns a job result into the current view. Results of superseded
// jobs are ignored and Apply reports false.
func (v *Viewer) Apply(r JobResult) bool {
	if r.Seq != v.seq {
		return false
	}
	if r.Err != nil {
		v.logger.Warn("generation failed", "symbol", v.view.Symbol.Name, "err", r.Err)
		return false
	}
	if r.ObjdumpVersion != "" {
		v.objdumpVersion = r.ObjdumpVersion
	}
	if r.DisableDisassembly {
		v.disasmDisabled = true
	}

	view := v.view
	view.Action = v.action
	if view.Action == ActionAnnotate {
		view.Columns = []string{"Assembly", "Percent"}
		view.Rows = ParseAnnotate(r.Text, view.Symbol.Binary, v.opts)
	} else {
		view.Columns = append([]string{"Assembly"}, v.res.EventTypes...)
		view.Rows = ParseDisassembly(r.Text, v.opts)
	}

	if r.Diagnostic != nil {
		view.Diagnostic = true
		view.Command = r.Diagnostic.Command
		v.logger.Debug("diagnostic", "kind", r.Diagnostic.Kind, "msg", r.Diagnostic.Message)
	} else {
		view.Diagnostic = false
		if view.Action == ActionDisassembly {
			Correlate(view.Rows, v.res, view.Symbol)
		}
		view.callees.Resolve(view.Rows)
	}
	padCosts(view.Rows, len(view.Columns)-1)

	v.search.Diagnostic = view.Diagnostic
	v.search.Callees = view.callees.Callees()
	return true
}

func padCosts(rows []Row, n int) {
	for i := range rows {
		for len(rows[i].Costs) < n {
			rows[i].Costs = append(rows[i].Costs, "")
		}
	}
}

// Render plans, runs and applies one generation synchronously.
func (v *Viewer) Render(ctx context.Context) (*View, error) {
	r := v.Plan().Run(ctx, v.runner)
	if r.Err != nil {
		return nil, r.Err
	}
	v.Apply(r)
	return v.view, nil
}

// Runner is the runner jobs should use.
func (v *Viewer) Runner() Runner { return v.runner }

// Activate reacts to a double-click on row idx. Drill-in and return
// change the current symbol and need a regeneration; a jump only moves
// the view's focus.
func (v *Viewer) Activate(idx int) Transition {
	rows := v.view.Rows
	t := v.nav.Decide(rows, idx, v.view.Callees(), v.opcodes)
	switch t.Kind {
	case TransitionDrillIn, TransitionReturn:
		v.nav.Apply(t)
		v.open(v.nav.Current())
	case TransitionJump:
		v.view.Focus = t.Row
	}
	v.logger.Debug("activate", "row", idx, "transition", t.Kind, "symbol", v.nav.Current().Name)
	return t
}

// Regenerates reports whether the transition changed the current symbol.
func (t Transition) Regenerates() bool {
	return t.Kind == TransitionDrillIn || t.Kind == TransitionReturn
}

// ReturnToCaller pops back to the previous symbol. It reports false, and
// changes nothing, when the stack is empty.
func (v *Viewer) ReturnToCaller() bool {
	if _, ok := v.nav.Pop(); !ok {
		return false
	}
	v.open(v.nav.Current())
	return true
}

// Close removes the binaries mirrored during the session.
func (v *Viewer) Close() error {
	return v.resolver.Cleanup()
}
