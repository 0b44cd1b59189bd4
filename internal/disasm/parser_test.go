package disasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const objdumpOutput = `
/tmp/a.out:     file format elf64-x86-64


Disassembly of section .text:

0000000000401126 <main>:
  401126:	push   %rbp
  401127:	mov    %rsp,%rbp
  40112a:	callq  401100 <foo>
  40112f:	retq
`

const annotateOutput = ` Percent |	Source code & Disassembly of a.out for cycles (10 samples)
----------------------------------------------
         :	0000000000401126 <main>:
    0.00 :	  401126:	push   %rbp
   60.00 :	  401127:	mov    %rsp,%rbp
 Percent |	Source code & Disassembly of libc.so.6 for cycles (4 samples)
   40.00 :	  12345:	ret
`

func TestParseDisassembly(t *testing.T) {
	rows := ParseDisassembly(objdumpOutput, Options{})
	require.Len(t, rows, 6)

	for i, r := range rows {
		assert.Equal(t, i, r.Index)
		assert.False(t, r.Diagnostic)
		assert.False(t, strings.HasPrefix(r.Text, "Disassembly"))
	}
	assert.False(t, rows[0].HasAddress)
	assert.False(t, rows[1].HasAddress)

	assert.True(t, rows[2].HasAddress)
	assert.Equal(t, uint64(0x401126), rows[2].Address)
	assert.Equal(t, "  401126:\tpush   %rbp", rows[2].Text)
	assert.Equal(t, uint64(0x40112f), rows[5].Address)
}

func TestParseDisassemblyHideAddress(t *testing.T) {
	rows := ParseDisassembly(objdumpOutput, Options{NoShowAddress: true})
	require.Len(t, rows, 6)
	assert.Equal(t, "push   %rbp", rows[2].Text)
	assert.Equal(t, "callq  401100 <foo>", rows[4].Text)
	// The address survives for cost correlation.
	assert.Equal(t, uint64(0x40112a), rows[4].Address)
	assert.Equal(t, "0000000000401126 <main>:", rows[1].Text)
}

func TestParseAnnotate(t *testing.T) {
	rows := ParseAnnotate(annotateOutput, "a.out", Options{})
	require.Len(t, rows, 4)

	assert.Contains(t, rows[0].Text, "Percent")
	assert.Equal(t, []string{""}, rows[0].Costs)

	assert.Equal(t, "\t  401126:\tpush   %rbp", rows[2].Text)
	assert.Equal(t, []string{""}, rows[2].Costs)
	assert.Equal(t, uint64(0x401126), rows[2].Address)

	assert.Equal(t, []string{"60.00%"}, rows[3].Costs)

	for _, r := range rows {
		assert.NotContains(t, r.Text, "12345", "row from another binary leaked")
	}
}

const annotateReentry = ` Percent |	Source code & Disassembly of a.out for cycles (10 samples)
   10.00 :	  401126:	push   %rbp
 Percent |	Source code & Disassembly of libc.so.6 for cycles (4 samples)
   40.00 :	  12345:	ret
 Percent |	Source code & Disassembly of a.out for cycles (10 samples)
   50.00 :	  401127:	mov    %rsp,%rbp
`

func TestParseAnnotateScopeReentry(t *testing.T) {
	rows := ParseAnnotate(annotateReentry, "a.out", Options{})
	require.Len(t, rows, 4)

	for i, r := range rows {
		assert.Equal(t, i, r.Index)
		assert.NotContains(t, r.Text, "12345")
	}
	assert.Contains(t, rows[0].Text, "a.out")
	assert.Contains(t, rows[2].Text, "a.out")

	assert.Equal(t, uint64(0x401126), rows[1].Address)
	assert.Equal(t, []string{"10.00%"}, rows[1].Costs)

	assert.True(t, rows[3].HasAddress)
	assert.Equal(t, uint64(0x401127), rows[3].Address)
	assert.Equal(t, []string{"50.00%"}, rows[3].Costs)
	assert.Equal(t, "\t  401127:\tmov    %rsp,%rbp", rows[3].Text)
}

func TestParseAnnotateScope(t *testing.T) {
	rows := ParseAnnotate(annotateOutput, "libc.so.6", Options{})
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0].Text, "libc.so.6")
	assert.Equal(t, []string{"40.00%"}, rows[1].Costs)

	assert.Empty(t, ParseAnnotate(annotateOutput, "", Options{}))
	assert.Empty(t, ParseAnnotate(annotateOutput, "ld.so", Options{}))
}

func TestParseAnnotateHideAddress(t *testing.T) {
	rows := ParseAnnotate(annotateOutput, "a.out", Options{NoShowAddress: true})
	require.Len(t, rows, 4)
	assert.Equal(t, "push   %rbp", rows[2].Text)
	assert.Equal(t, "mov    %rsp,%rbp", rows[3].Text)
}

func TestParseDiagnosticPassthrough(t *testing.T) {
	text := msgEmptyOutput + " objdump --disassemble=foo a.out\nsecond: line\n\nDisassembly of nothing"

	for name, rows := range map[string][]Row{
		"objdump":  ParseDisassembly(text, Options{NoShowAddress: true}),
		"annotate": ParseAnnotate(text, "a.out", Options{}),
	} {
		t.Run(name, func(t *testing.T) {
			require.Len(t, rows, 3)
			for _, r := range rows {
				assert.True(t, r.Diagnostic)
				assert.False(t, r.HasAddress)
			}
			assert.Equal(t, "second: line", rows[1].Text)
			assert.Equal(t, "Disassembly of nothing", rows[2].Text)
		})
	}
}

func TestDiagnosticRows(t *testing.T) {
	rows := DiagnosticRows("Process timed out: x\nobjdump -d a.out\n")
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].Index)
	assert.True(t, rows[1].Diagnostic)
}

func TestExpandTabs(t *testing.T) {
	assert.Equal(t, "  401126:       push", ExpandTabs("  401126:\tpush"))
	assert.Equal(t, "ab      c", ExpandTabs("ab\tc"))
	assert.Equal(t, "plain", ExpandTabs("plain"))
}
