package colorize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"perfasm/internal/disasm"
	pstyles "perfasm/internal/perfasm/styles"
)

// stripANSI removes ANSI codes and returns the plain string
func stripANSI(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

var x86 = disasm.NormalizeArch("x86_64")

func TestInstructionNoColor(t *testing.T) {
	t.Setenv(pstyles.EnvNoColor, "1")
	assert.Equal(t, "push   %rbp", Instruction("push   %rbp", x86, false))
}

func TestInstructionKeepsText(t *testing.T) {
	t.Setenv(pstyles.EnvNoColor, "")
	in := "mov    %rsp,%rbp"
	out := Instruction(in, x86, false)
	assert.Equal(t, in, stripANSI(out))
	assert.NotContains(t, out, "\n")
}

func TestLexerFor(t *testing.T) {
	assert.NotNil(t, lexerFor(x86, false))
	assert.NotNil(t, lexerFor(x86, true))
	assert.NotNil(t, lexerFor(disasm.NormalizeArch("armv8"), false))
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		in, addr, rest string
	}{
		{"  401126:\tpush", "  401126:", "\tpush"},
		{"0000000000401126 <main>:", "", "0000000000401126 <main>:"},
		{"Empty symbol ?? is selected", "", "Empty symbol ?? is selected"},
		{"  12:", "  12:", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			addr, rest := splitAddress(tt.in)
			assert.Equal(t, tt.addr, addr)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestPainterRow(t *testing.T) {
	t.Setenv(pstyles.EnvNoColor, "1")
	p := NewPainter(x86, false)
	row := disasm.Row{Text: "  401126:\tpush   %rbp", HasAddress: true, Address: 0x401126}

	t.Run("plain", func(t *testing.T) {
		got := p.Row(row, 0, disasm.SearchState{Arch: x86})
		assert.Equal(t, "  401126:       push   %rbp", stripANSI(got))
	})

	t.Run("search", func(t *testing.T) {
		got := p.Row(row, 0, disasm.SearchState{Arch: x86, Text: "PUSH"})
		assert.Equal(t, "  401126:       push   %rbp", stripANSI(got))
	})

	t.Run("diagnostic", func(t *testing.T) {
		d := disasm.Row{Text: "Empty symbol ?? is selected", Diagnostic: true}
		got := p.Row(d, 0, disasm.SearchState{Arch: x86, Text: "symbol"})
		assert.Equal(t, d.Text, stripANSI(got))
	})

	t.Run("callee", func(t *testing.T) {
		c := disasm.Row{Text: "  40112a:\tcallq  401100 <foo>", Callee: true}
		got := p.Row(c, 4, disasm.SearchState{Arch: x86})
		assert.Contains(t, stripANSI(got), "callq  401100 <foo>")
	})
}

func TestParsePercent(t *testing.T) {
	v, ok := parsePercent(" 75.00% ")
	assert.True(t, ok)
	assert.InDelta(t, 75.0, v, 1e-9)

	_, ok = parsePercent("")
	assert.False(t, ok)
	_, ok = parsePercent("12345")
	assert.False(t, ok)
}

func TestPainterCost(t *testing.T) {
	p := Painter{Theme: pstyles.PlainTheme()}
	assert.Equal(t, "", p.Cost(""))
	assert.Equal(t, "25.00%", stripANSI(p.Cost("25.00%")))
}
