package disasm

import (
	"bufio"
	"strconv"
	"strings"
)

const maxLineLen = 1 << 20

// lineScanner yields the lines of tool output, tolerating very long
// demangled template names.
func lineScanner(text string) *bufio.Scanner {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	return sc
}

// isDiagnosticLine reports whether line is one of our own diagnostic
// messages rather than tool output.
func isDiagnosticLine(line string) bool {
	for _, p := range diagnosticPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// isHex reports whether s is a non-empty run of hex digits.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// rowBuilder numbers rows and handles the verbatim diagnostic mode shared
// by both grammars.
type rowBuilder struct {
	rows     []Row
	verbatim bool
}

func (b *rowBuilder) add(r Row) {
	r.Index = len(b.rows)
	b.rows = append(b.rows, r)
}

// passthrough emits line unchanged once diagnostic text has been seen.
func (b *rowBuilder) passthrough(line string) bool {
	if !b.verbatim && isDiagnosticLine(line) {
		b.verbatim = true
	}
	if b.verbatim {
		b.add(Row{Text: line, Diagnostic: true})
	}
	return b.verbatim
}

// ParseDisassembly turns objdump output into rows.
//
// Each line is "<address>:<rest>". Blank lines and the "Disassembly of
// section" headers are skipped. With NoShowAddress a hex address token
// is dropped from the row text.
func ParseDisassembly(text string, opts Options) []Row {
	var b rowBuilder
	sc := lineScanner(text)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if b.passthrough(line) {
			continue
		}
		if strings.HasPrefix(line, "Disassembly") {
			continue
		}

		row := Row{Text: line}
		if addrTok, rest, ok := strings.Cut(line, ":"); ok {
			addr := strings.TrimSpace(addrTok)
			if isHex(addr) {
				if v, err := strconv.ParseUint(addr, 16, 64); err == nil {
					row.Address = v
					row.HasAddress = true
				}
				if opts.NoShowAddress {
					row.Text = strings.TrimSpace(rest)
				}
			}
		}
		b.add(row)
	}
	return b.rows
}

// ParseAnnotate turns perf annotate --stdio output into rows for binary.
//
// Lines have the shape "<percent> : <address>: <text>". A "Percent"
// header opens the listing of one binary; only sections naming binary
// are kept. The percent token becomes the single cost cell.
func ParseAnnotate(text, binary string, opts Options) []Row {
	var b rowBuilder
	inScope := false
	sc := lineScanner(text)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if b.passthrough(line) {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "Percent") {
			inScope = binary != "" && strings.Contains(line, binary)
			if inScope {
				b.add(Row{Text: line, Costs: []string{""}})
			}
			continue
		}
		if !inScope {
			continue
		}

		tokens := strings.Split(line, ":")
		if len(tokens) < 2 || tokens[1] == "" {
			continue
		}
		percent := strings.TrimSpace(tokens[0])
		addrTok := strings.TrimSpace(tokens[1])

		rest := tokens[1:]
		if len(rest) > 1 {
			prefix := "\t"
			if opts.NoShowAddress {
				prefix = ""
			}
			rest[1] = prefix + strings.TrimSpace(rest[1])
		}

		row := Row{Costs: []string{""}}
		if isHex(addrTok) {
			if v, err := strconv.ParseUint(addrTok, 16, 64); err == nil {
				row.Address = v
				row.HasAddress = true
			}
			if opts.NoShowAddress {
				rest = rest[1:]
			}
		}
		row.Text = strings.Join(rest, ":")

		if v, err := strconv.ParseFloat(percent, 64); err == nil && v != 0 {
			row.Costs[0] = percent + "%"
		}
		b.add(row)
	}
	return b.rows
}

// DiagnosticRows renders a diagnostic message as verbatim rows.
func DiagnosticRows(msg string) []Row {
	var b rowBuilder
	b.verbatim = true
	sc := lineScanner(msg)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			b.add(Row{Text: line, Diagnostic: true})
		}
	}
	return b.rows
}
