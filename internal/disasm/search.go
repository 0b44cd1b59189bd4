package disasm

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// SearchState is what a renderer needs to style a listing: the search
// text, the architecture for register recognition, which rows are
// resolved call sites and whether the listing is diagnostic text.
type SearchState struct {
	Text       string
	Arch       Arch
	Callees    CalleeMap
	Diagnostic bool
}

// Matches reports a case-insensitive hit of the search text in s.
func (s SearchState) Matches(text string) bool {
	if s.Text == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(s.Text))
}

// IsCallee reports whether row idx is a resolved call site.
func (s SearchState) IsCallee(idx int) bool {
	_, ok := s.Callees[idx]
	return ok
}

// IsRegister reports whether token names a register of the current arch.
func (s SearchState) IsRegister(token string) bool {
	t := strings.ToLower(strings.TrimLeft(token, "%"))
	if t == "" {
		return false
	}
	_, ok := registerSet(s.Arch)[t]
	return ok
}

// SpanKind classifies a piece of row text for styling.
type SpanKind int

const (
	SpanPlain SpanKind = iota
	SpanRegister
	SpanMatch
)

// Span is a styled piece of row text.
type Span struct {
	Text string
	Kind SpanKind
}

// Spans splits text into plain, register and search-hit pieces. Search
// hits take precedence over registers.
func (s SearchState) Spans(text string) []Span {
	var spans []Span
	emit := func(t string, k SpanKind) {
		if t == "" {
			return
		}
		if n := len(spans); n > 0 && spans[n-1].Kind == k {
			spans[n-1].Text += t
			return
		}
		spans = append(spans, Span{Text: t, Kind: k})
	}

	needle := strings.ToLower(s.Text)
	lower := strings.ToLower(text)
	for len(text) > 0 {
		hit := -1
		if needle != "" {
			hit = strings.Index(lower, needle)
		}
		chunk := text
		if hit >= 0 {
			chunk = text[:hit]
		}
		s.registerSpans(chunk, emit)
		if hit < 0 {
			break
		}
		emit(text[hit:hit+len(needle)], SpanMatch)
		text = text[hit+len(needle):]
		lower = lower[hit+len(needle):]
	}
	return spans
}

func (s SearchState) registerSpans(text string, emit func(string, SpanKind)) {
	start := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isWordByte(text[i]) {
			continue
		}
		if word := text[start:i]; word != "" {
			if s.IsRegister(word) {
				emit(word, SpanRegister)
			} else {
				emit(word, SpanPlain)
			}
		}
		if i < len(text) {
			emit(text[i:i+1], SpanPlain)
		}
		start = i + 1
	}
}

func isWordByte(c byte) bool {
	return c == '%' || c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var (
	registersOnce sync.Once
	x86Registers  map[string]struct{}
	armRegisters  map[string]struct{}
	a64Registers  map[string]struct{}
)

func registerSet(a Arch) map[string]struct{} {
	registersOnce.Do(buildRegisterSets)
	switch {
	case a.Name == ArchARMv8:
		return a64Registers
	case a.IsARM():
		return armRegisters
	}
	return x86Registers
}

func buildRegisterSets() {
	x86Registers = make(map[string]struct{})
	for r := x86asm.AL; r <= x86asm.TR7; r++ {
		addRegister(x86Registers, objdumpX86Name(r.String()))
	}
	for i := 0; i < 32; i++ {
		for _, prefix := range []string{"xmm", "ymm", "zmm"} {
			x86Registers[fmt.Sprintf("%s%d", prefix, i)] = struct{}{}
		}
	}

	armRegisters = make(map[string]struct{})
	for r := armasm.R0; r <= armasm.D31; r++ {
		addRegister(armRegisters, r.String())
	}
	for _, alias := range []string{"sp", "lr", "pc", "fp", "ip", "sl"} {
		armRegisters[alias] = struct{}{}
	}

	a64Registers = make(map[string]struct{})
	for r := arm64asm.W0; r <= arm64asm.V31; r++ {
		addRegister(a64Registers, r.String())
	}
	for _, alias := range []string{"sp", "wsp", "lr", "fp", "xzr", "wzr"} {
		a64Registers[alias] = struct{}{}
	}
}

// objdumpX86Name spells an x86asm register the way objdump prints it.
func objdumpX86Name(name string) string {
	for _, m := range []struct{ from, to string }{{"X", "xmm"}, {"M", "mm"}, {"F", "st"}} {
		if n, ok := strings.CutPrefix(name, m.from); ok && n != "" && isDigits(n) {
			if m.to == "st" {
				return m.to
			}
			return m.to + n
		}
	}
	return name
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func addRegister(set map[string]struct{}, name string) {
	if name == "" || strings.HasPrefix(name, "Reg(") {
		return
	}
	set[strings.ToLower(name)] = struct{}{}
}
