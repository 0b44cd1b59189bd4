// Package disasm builds cost-annotated instruction listings for profiled
// functions by driving objdump or perf annotate, and tracks the
// caller/callee navigation between those listings.
package disasm

import (
	"strings"
)

// Approach selects how objdump is told which bytes to disassemble.
type Approach string

const (
	ApproachSymbol  Approach = "symbol"  // --disassemble=<mangled>
	ApproachAddress Approach = "address" // --start-address/--stop-address
)

// ParseApproach maps the --disasm-approach value onto an Approach.
// Anything that does not start with "address" means by symbol, matching
// the default of an empty value.
func ParseApproach(s string) Approach {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "address") {
		return ApproachAddress
	}
	return ApproachSymbol
}

// UnwindMethod is the call-chain collection mode the profile was recorded with.
type UnwindMethod string

const (
	UnwindDwarf        UnwindMethod = "dwarf"
	UnwindFramePointer UnwindMethod = "fp"
	UnwindLBR          UnwindMethod = "lbr"
)

// Symbol identifies a function inside a binary.
type Symbol struct {
	Name    string // demangled display name
	Mangled string
	Binary  string // file name of the owning binary
	Path    string // path recorded by the profiler
	RelAddr uint64
	Size    uint64
}

// Valid reports whether the symbol can be disassembled at all.
func (s Symbol) Valid() bool {
	return s.Name != ""
}

// MangledOrName returns the name objdump knows the symbol by.
func (s Symbol) MangledOrName() string {
	if s.Mangled != "" {
		return s.Mangled
	}
	return s.Name
}

// Unsized reports the unresolved-size fallback used by callee matching.
func (s Symbol) Unsized() bool {
	return s.Size == 0 && s.RelAddr == 0
}

// Same reports whether two symbols denote the same callee target.
func (s Symbol) Same(o Symbol) bool {
	if !namesOverlap(s, o.Name) && !namesOverlap(s, o.Mangled) {
		return false
	}
	return s.RelAddr == o.RelAddr || (s.Unsized() && o.Unsized())
}

// namesOverlap reports whether name and either of the symbol's names
// contain one another. Empty names never match.
func namesOverlap(s Symbol, name string) bool {
	if name == "" {
		return false
	}
	for _, n := range []string{s.Mangled, s.Name} {
		if n == "" {
			continue
		}
		if strings.Contains(name, n) || strings.Contains(n, name) {
			return true
		}
	}
	return false
}

// Location is a relative address inside a binary.
type Location struct {
	RelAddr uint64
	File    string
	Line    int
}

// LocationCost holds one cost value per event type.
type LocationCost []float64

// Entry maps the sampled locations of one symbol to their costs.
type Entry struct {
	Costs map[Location]LocationCost
	Total []float64
}

func newEntry(events int) *Entry {
	return &Entry{
		Costs: make(map[Location]LocationCost),
		Total: make([]float64, events),
	}
}

// AddCost accumulates cost for the given event type at loc.
func (e *Entry) AddCost(loc Location, event int, cost float64) {
	lc, ok := e.Costs[loc]
	if !ok {
		lc = make(LocationCost, len(e.Total))
		e.Costs[loc] = lc
	}
	if event < 0 || event >= len(lc) {
		return
	}
	lc[event] += cost
	e.Total[event] += cost
}

// Result is everything a profiling session knows about disassembling
// its symbols. It is owned by one Viewer and replaced wholesale when a
// new profile is loaded.
type Result struct {
	DataPath       string // perf.data handed to perf annotate
	AppPath        string
	TargetRoot     string
	ExtraLibPaths  []string
	Arch           string
	Approach       Approach
	Unwind         UnwindMethod
	BranchTraverse bool
	EventTypes     []string

	// Symbols keeps table order for callee resolution; Entries is keyed
	// by the same values.
	Symbols []Symbol
	Entries map[Symbol]*Entry
}

// NewResult returns an empty Result for the given event types.
func NewResult(events ...string) *Result {
	return &Result{
		Approach:   ApproachSymbol,
		EventTypes: events,
		Entries:    make(map[Symbol]*Entry),
	}
}

// AddSymbol registers sym in table order and returns its entry.
func (r *Result) AddSymbol(sym Symbol) *Entry {
	if e, ok := r.Entries[sym]; ok {
		return e
	}
	e := newEntry(len(r.EventTypes))
	r.Entries[sym] = e
	r.Symbols = append(r.Symbols, sym)
	return e
}

// Entry returns the entry for sym, or an empty one when the symbol was
// never sampled.
func (r *Result) Entry(sym Symbol) *Entry {
	if e, ok := r.Entries[sym]; ok {
		return e
	}
	return newEntry(len(r.EventTypes))
}

// NumEvents is the number of cost columns.
func (r *Result) NumEvents() int {
	return len(r.EventTypes)
}

// ShortTraversal reports the LBR branch-traverse mode in which
// per-instruction costs are meaningless.
func (r *Result) ShortTraversal() bool {
	return r.BranchTraverse && strings.HasPrefix(string(r.Unwind), string(UnwindLBR))
}

// Row is one line of a rendered listing.
type Row struct {
	Index      int
	Text       string
	Address    uint64
	HasAddress bool
	Costs      []string // one cell per column after the text; "" when absent
	Callee     bool
	Diagnostic bool
}

// ExpandTabs replaces tabs with spaces up to the next multiple of eight,
// the way objdump output looks in a terminal.
func ExpandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var sb strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := 8 - col%8
			sb.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		sb.WriteRune(r)
		col++
	}
	return sb.String()
}
