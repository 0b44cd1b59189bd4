// Package colorize paints listing rows for the terminal: chroma syntax
// colours for instructions, lipgloss spans for search hits and registers.
package colorize

import (
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"perfasm/internal/disasm"
	pstyles "perfasm/internal/perfasm/styles"
)

// lexerFor returns the assembly lexer matching the dialect objdump prints
// for a, with fallbacks.
func lexerFor(a disasm.Arch, intel bool) chroma.Lexer {
	var candidates []string
	switch {
	case a.IsARM():
		candidates = []string{"armasm", "gas"}
	case intel:
		candidates = []string{"nasm", "gas"}
	default:
		candidates = []string{"gas", "GAS", "nasm"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func disasmStyle() *chroma.Style {
	for _, name := range []string{styleName, "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Instruction syntax-colours one line of assembly. The text comes back
// unchanged when colours are off or no lexer is available.
func Instruction(text string, a disasm.Arch, intel bool) string {
	if pstyles.NoColor() || strings.TrimSpace(text) == "" {
		return text
	}
	lexer := lexerFor(a, intel)
	if lexer == nil {
		return text
	}
	iterator, err := lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var buf strings.Builder
	if err := terminalFormatter().Format(&buf, disasmStyle(), iterator); err != nil {
		return text
	}
	// Lexers that ensure a trailing newline would break the row layout.
	return strings.ReplaceAll(buf.String(), "\n", "")
}

// splitAddress separates the "  401126:" prefix of an instruction row.
func splitAddress(text string) (addr, rest string) {
	i := 0
	for i < len(text) && text[i] == ' ' {
		i++
	}
	j := i
	for j < len(text) && isHexChar(text[j]) {
		j++
	}
	if j == i || j >= len(text) || text[j] != ':' {
		return "", text
	}
	return text[:j+1], text[j+1:]
}

func isHexChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// Painter renders rows of one view.
type Painter struct {
	Arch  disasm.Arch
	Intel bool
	Theme pstyles.Theme
}

// NewPainter picks the theme from the environment.
func NewPainter(a disasm.Arch, intel bool) Painter {
	return Painter{Arch: a, Intel: intel, Theme: pstyles.CurrentTheme()}
}

// Row paints row idx. Diagnostic text is shown as is; with an active
// search the row is split into register and hit spans; call sites that
// resolve to a known symbol look like links.
func (p Painter) Row(row disasm.Row, idx int, s disasm.SearchState) string {
	text := disasm.ExpandTabs(row.Text)
	if row.Diagnostic || s.Diagnostic {
		return p.Theme.Diagnostic.Render(text)
	}
	if s.Text != "" {
		return p.spans(text, s)
	}

	addr, rest := splitAddress(text)
	var sb strings.Builder
	if addr != "" {
		sb.WriteString(p.Theme.Address.Render(addr))
	}
	if row.Callee || s.IsCallee(idx) {
		sb.WriteString(p.Theme.Callee.Render(rest))
	} else {
		sb.WriteString(Instruction(rest, p.Arch, p.Intel))
	}
	return sb.String()
}

func (p Painter) spans(text string, s disasm.SearchState) string {
	var sb strings.Builder
	for _, sp := range s.Spans(text) {
		switch sp.Kind {
		case disasm.SpanMatch:
			sb.WriteString(p.Theme.Match.Render(sp.Text))
		case disasm.SpanRegister:
			sb.WriteString(p.Theme.Register.Render(sp.Text))
		default:
			sb.WriteString(sp.Text)
		}
	}
	return sb.String()
}

// Cost paints one cost cell, hotter for larger shares.
func (p Painter) Cost(cell string) string {
	pct, ok := parsePercent(cell)
	if !ok {
		return cell
	}
	return p.Theme.Cost(pct).Render(cell)
}

func parsePercent(cell string) (float64, bool) {
	c := strings.TrimSpace(cell)
	if !strings.HasSuffix(c, "%") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(c, "%"), 64)
	return v, err == nil
}
