package cmd

import (
	"context"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfasm/internal/config"
	"perfasm/internal/disasm"
	"perfasm/internal/logging"
	"perfasm/internal/perfasm/styles"
	"perfasm/internal/profile"
)

const mainListing = `
/tmp/a.out:     file format elf64-x86-64


Disassembly of section .text:

0000000000401126 <main>:
  401126:	push   %rbp
  401127:	mov    %rsp,%rbp
  40112a:	callq  401100 <foo>
  40112f:	retq
`

const fooListing = `
Disassembly of section .text:

0000000000401100 <foo>:
  401100:	mov    $0x1,%eax
  401105:	retq
`

var (
	mainSym = disasm.Symbol{Name: "main", Binary: "a.out", Path: "/tmp/a.out", RelAddr: 0x401126, Size: 0x10}
	fooSym  = disasm.Symbol{Name: "foo", Binary: "a.out", Path: "/tmp/a.out", RelAddr: 0x401100, Size: 0x10}
)

// stubRunner answers by command line; unknown commands print nothing.
type stubRunner map[string]string

func (r stubRunner) Run(_ context.Context, cmd disasm.Command) (disasm.Output, error) {
	return disasm.Output{Stdout: []byte(r[cmd.String()])}, nil
}

func newTestSession(t *testing.T) *session {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/tmp/a.out", []byte("elf"), 0o755))

	res := disasm.NewResult("cycles")
	res.Arch = "x86_64"
	e := res.AddSymbol(mainSym)
	e.AddCost(disasm.Location{RelAddr: 0x401126}, 0, 3)
	e.AddCost(disasm.Location{RelAddr: 0x401127}, 0, 1)
	res.AddSymbol(fooSym)

	runner := stubRunner{
		"objdump --disassemble=main --no-show-raw-insn /tmp/a.out": mainListing,
		"objdump --disassemble=foo --no-show-raw-insn /tmp/a.out":  fooListing,
	}
	lc := logging.NewLoggerWithWriter(io.Discard)
	v := disasm.NewViewer(res, disasm.Config{
		Options: disasm.DefaultOptions(),
		Fs:      fsys,
		Runner:  runner,
		Logger:  lc.Logger,
	})
	s := &session{
		cfg: config.Default(),
		profile: &profile.Profile{
			Path:     "/tmp/cpu.pb.gz",
			Result:   res,
			Units:    []string{"count"},
			Totals:   []float64{4},
			Samples:  4,
			Binaries: 1,
		},
		viewer: v,
		logger: lc,
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestModel(t *testing.T) model {
	t.Helper()
	t.Setenv(styles.EnvNoColor, "1")
	return newModel(context.Background(), newTestSession(t))
}

// generated runs cmd and returns the generation it carries.
func generated(t *testing.T, cmd tea.Cmd) viewGeneratedMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if g, ok := msg.(viewGeneratedMsg); ok {
		return g
	}
	batch, ok := msg.(tea.BatchMsg)
	require.True(t, ok, "unexpected message %T", msg)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if g, ok := c().(viewGeneratedMsg); ok {
			return g
		}
	}
	t.Fatal("no generation in batch")
	return viewGeneratedMsg{}
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestSymbolItems(t *testing.T) {
	s := newTestSession(t)
	items := symbolItems(s.profile)
	require.Len(t, items, 2)

	first := items[0].(symbolItem)
	assert.Equal(t, "main", first.sym.Name)
	assert.InDelta(t, 100.0, first.share, 1e-9)
	assert.Equal(t, "main a.out", first.FilterValue())
	assert.Zero(t, items[1].(symbolItem).share)
}

func TestSelectAndGenerate(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.selectSymbol(mainSym)
	m = next.(model)
	assert.Equal(t, viewAsm, m.mode)
	assert.True(t, m.loading)

	m = update(t, m, generated(t, cmd))
	assert.False(t, m.loading)
	require.Len(t, m.rows(), 6)
	assert.Equal(t, 0, m.cursor)

	out := m.asmView()
	assert.Contains(t, out, "main (a.out) [objdump]")
	assert.Contains(t, out, "cycles")
	assert.Contains(t, out, "75.00%")
	assert.Contains(t, out, "push   %rbp")
}

func TestStaleGenerationDropped(t *testing.T) {
	m := newTestModel(t)
	next, first := m.selectSymbol(mainSym)
	m = next.(model)
	next, second := m.selectSymbol(fooSym)
	m = next.(model)

	m = update(t, m, generated(t, first))
	assert.True(t, m.loading)
	assert.Empty(t, m.rows())

	m = update(t, m, generated(t, second))
	assert.False(t, m.loading)
	require.Len(t, m.rows(), 3)
	assert.Equal(t, "foo", m.viewer.Current().Name)
}

func TestDrillInAndBack(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.selectSymbol(mainSym)
	m = update(t, next.(model), generated(t, cmd))

	m.cursor = 4
	next, cmd = m.handleAsmKey("enter")
	m = update(t, next.(model), generated(t, cmd))
	assert.Equal(t, "foo", m.viewer.Current().Name)
	assert.Contains(t, m.title(), "main › foo")

	next, cmd = m.handleAsmKey("backspace")
	m = update(t, next.(model), generated(t, cmd))
	assert.Equal(t, "main", m.viewer.Current().Name)
	assert.False(t, m.viewer.CanReturn())

	next, cmd = m.handleAsmKey("backspace")
	m = next.(model)
	assert.Nil(t, cmd)
	assert.Equal(t, "no caller to return to", m.status)
}

func TestActivatePlainRow(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.selectSymbol(mainSym)
	m = update(t, next.(model), generated(t, cmd))

	m.cursor = 2
	next, cmd = m.handleAsmKey("enter")
	m = next.(model)
	assert.Nil(t, cmd)
	assert.Equal(t, "nothing to follow on this line", m.status)
}

func TestCursorMovement(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.selectSymbol(mainSym)
	m = update(t, next.(model), generated(t, cmd))

	next, _ = m.handleAsmKey("G")
	m = next.(model)
	assert.Equal(t, 5, m.cursor)
	next, _ = m.handleAsmKey("down")
	m = next.(model)
	assert.Equal(t, 5, m.cursor)
	next, _ = m.handleAsmKey("k")
	m = next.(model)
	assert.Equal(t, 4, m.cursor)
	next, _ = m.handleAsmKey("g")
	m = next.(model)
	assert.Equal(t, 0, m.cursor)
}

func TestSearchNavigation(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.selectSymbol(mainSym)
	m = update(t, next.(model), generated(t, cmd))

	m.viewer.SetSearch("RETQ")
	m.nextMatch(0)
	assert.Equal(t, 5, m.cursor)

	m.viewer.SetSearch("%rbp")
	m.nextMatch(1)
	assert.Equal(t, 2, m.cursor, "wraps around")
	m.nextMatch(1)
	assert.Equal(t, 3, m.cursor)
	m.nextMatch(-1)
	assert.Equal(t, 2, m.cursor)

	m.viewer.SetSearch("nowhere")
	m.nextMatch(1)
	assert.Equal(t, `"nowhere" not found`, m.status)
}

func TestToggles(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.selectSymbol(mainSym)
	m = update(t, next.(model), generated(t, cmd))

	next, cmd = m.handleAsmKey("i")
	m = next.(model)
	assert.NotNil(t, cmd)
	assert.True(t, m.loading)
	assert.True(t, m.viewer.Options().IntelSyntax)
	assert.True(t, m.painter.Intel)

	next, _ = m.handleAsmKey("r")
	m = next.(model)
	assert.False(t, m.viewer.Options().NoShowRawInsn)

	next, _ = m.handleAsmKey("a")
	m = next.(model)
	assert.Equal(t, disasm.ActionAnnotate, m.viewer.Action())
	assert.Contains(t, m.title(), "[perf annotate]")

	next, _ = m.handleAsmKey("m")
	m = next.(model)
	assert.Equal(t, disasm.ApproachAddress, m.viewer.Approach())
}

func TestCycleSkipsEmptyAsmView(t *testing.T) {
	m := newTestModel(t)
	m.cycle(1)
	assert.Equal(t, viewInfo, m.mode)
	m.cycle(1)
	assert.Equal(t, viewSymbols, m.mode)
	m.cycle(-1)
	assert.Equal(t, viewInfo, m.mode)
}

func TestWindowResize(t *testing.T) {
	m := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 36, m.bodyHeight())
	assert.Contains(t, m.View(), "Enter: disassemble")
}

func TestInfoView(t *testing.T) {
	m := newTestModel(t)
	m.mode = viewInfo
	out := m.View()
	assert.Contains(t, out, "cpu.pb.gz")
	assert.Contains(t, out, "Tab: cycle")
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"main", "main.csv"},
		{"ns::Foo::bar(int, char const*)", "ns__Foo__bar.csv"},
		{"operator<", "operator.csv"},
		{"??", "result.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exportFileName(disasm.Symbol{Name: tt.name}))
		})
	}
}
