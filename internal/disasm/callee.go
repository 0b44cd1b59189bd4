package disasm

import (
	"maps"
	"strconv"
	"strings"
)

// CalleeMap maps a row index to the symbol its call instruction targets.
type CalleeMap map[int]Symbol

// CalleeResolver resolves the call targets of one view. Resolution runs
// once; later calls return the first map unchanged.
type CalleeResolver struct {
	symbols   []Symbol
	opcode    string
	callees   CalleeMap
	processed bool
	scans     int
}

// NewCalleeResolver resolves against symbols in table order.
func NewCalleeResolver(symbols []Symbol, callOpcode string) *CalleeResolver {
	return &CalleeResolver{symbols: symbols, opcode: callOpcode}
}

// Resolve scans rows for call instructions and marks resolved rows as
// callees. Only the first call per view does any work. The returned map
// is a copy; the resolved set never changes once processed.
func (r *CalleeResolver) Resolve(rows []Row) CalleeMap {
	if r.processed {
		markCallees(rows, r.callees)
		return maps.Clone(r.callees)
	}
	r.callees = make(CalleeMap)
	r.scans++
	for _, row := range rows {
		if row.Diagnostic {
			continue
		}
		if sym, ok := r.lookup(row.Text); ok {
			r.callees[row.Index] = sym
		}
	}
	r.processed = true
	markCallees(rows, r.callees)
	return maps.Clone(r.callees)
}

// Processed reports whether the view's callees were resolved.
func (r *CalleeResolver) Processed() bool {
	return r.processed
}

// Scans is the number of times the symbol table was scanned.
func (r *CalleeResolver) Scans() int {
	return r.scans
}

// Callees returns a copy of the resolved map, nil before Resolve.
func (r *CalleeResolver) Callees() CalleeMap {
	return maps.Clone(r.callees)
}

func markCallees(rows []Row, callees CalleeMap) {
	for i := range rows {
		_, ok := callees[rows[i].Index]
		rows[i].Callee = ok
	}
}

// lookup resolves the target of the call instruction in text, if any.
func (r *CalleeResolver) lookup(text string) (Symbol, bool) {
	offset, name, ok := ParseCallTarget(text, r.opcode)
	if !ok {
		return Symbol{}, false
	}
	for _, sym := range r.symbols {
		if !namesOverlap(sym, name) {
			continue
		}
		if strconv.FormatUint(sym.RelAddr, 16) == offset || sym.Unsized() {
			return sym, true
		}
	}
	return Symbol{}, false
}

// ParseCallTarget splits "<opcode> 401500 <bar+0x10>" into the displayed
// offset "401500" and the name "bar+0x10".
func ParseCallTarget(text, opcode string) (offset, name string, ok bool) {
	end := mnemonicIndex(text, opcode)
	if end < 0 {
		return "", "", false
	}
	parts := strings.Split(strings.TrimSpace(text[end:]), "<")
	if len(parts) < 2 {
		return "", "", false
	}
	offset = strings.TrimSpace(parts[0])
	name = strings.ReplaceAll(parts[1], ">", "")
	return offset, name, name != ""
}
