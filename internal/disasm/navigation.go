package disasm

import (
	"regexp"
	"strings"
)

// TransitionKind names what activating a row does.
type TransitionKind int

const (
	TransitionNone    TransitionKind = iota
	TransitionDrillIn                // push current, open the callee
	TransitionReturn                 // pop back to the caller
	TransitionJump                   // move focus within the current view
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionDrillIn:
		return "drill-in"
	case TransitionReturn:
		return "return"
	case TransitionJump:
		return "jump"
	}
	return "none"
}

// Transition is the outcome of activating a row.
type Transition struct {
	Kind   TransitionKind
	Symbol Symbol // new current symbol for drill-in and return
	Row    int    // focus row for jump
}

// Navigator holds the current symbol and the callers drilled through to
// reach it.
type Navigator struct {
	current Symbol
	stack   []Symbol
}

// Reset starts a fresh top-level selection with an empty stack.
func (n *Navigator) Reset(sym Symbol) {
	n.current = sym
	n.stack = n.stack[:0]
}

// Current is the symbol being viewed.
func (n *Navigator) Current() Symbol {
	return n.current
}

// Depth is the number of un-returned drill-downs.
func (n *Navigator) Depth() int {
	return len(n.stack)
}

// Stack returns the callers, outermost first.
func (n *Navigator) Stack() []Symbol {
	return append([]Symbol(nil), n.stack...)
}

// CanReturn reports whether there is a caller to return to.
func (n *Navigator) CanReturn() bool {
	return len(n.stack) > 0
}

// Push makes callee current and remembers the caller.
func (n *Navigator) Push(callee Symbol) {
	n.stack = append(n.stack, n.current)
	n.current = callee
}

// Pop returns to the most recent caller. It is a no-op on an empty stack.
func (n *Navigator) Pop() (Symbol, bool) {
	if len(n.stack) == 0 {
		return n.current, false
	}
	last := len(n.stack) - 1
	n.current = n.stack[last]
	n.stack = n.stack[:last]
	return n.current, true
}

// Decide computes the transition for activating rows[idx] without
// changing any state.
func (n *Navigator) Decide(rows []Row, idx int, callees CalleeMap, ops Opcodes) Transition {
	if idx < 0 || idx >= len(rows) {
		return Transition{Kind: TransitionNone}
	}
	if sym, ok := callees[idx]; ok {
		return Transition{Kind: TransitionDrillIn, Symbol: sym}
	}
	text := rows[idx].Text
	if HasMnemonic(text, ops.Return) && n.CanReturn() {
		return Transition{Kind: TransitionReturn, Symbol: n.stack[len(n.stack)-1]}
	}
	if target, ok := FindAddressTarget(rows, text); ok {
		return Transition{Kind: TransitionJump, Row: target}
	}
	return Transition{Kind: TransitionNone}
}

// Apply performs the stack mutation of a decided transition.
func (n *Navigator) Apply(t Transition) {
	switch t.Kind {
	case TransitionDrillIn:
		n.Push(t.Symbol)
	case TransitionReturn:
		n.Pop()
	}
}

var addrRefPattern = regexp.MustCompile(`[a-z0-9]+\s*<`)

// FindAddressTarget locates the row whose text starts with an address
// referenced in text as "<addr> <sym>". The last reference that matches
// a row wins.
func FindAddressTarget(rows []Row, text string) (int, bool) {
	target, found := -1, false
	for _, loc := range addrRefPattern.FindAllStringIndex(text, -1) {
		addr := strings.TrimSpace(text[loc[0] : loc[1]-1])
		if addr == "" {
			continue
		}
		for i := range rows {
			if strings.HasPrefix(strings.TrimSpace(rows[i].Text), addr) {
				target, found = i, true
				break
			}
		}
	}
	return target, found
}
