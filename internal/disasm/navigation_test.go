package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigatorStack(t *testing.T) {
	a, b, c := Symbol{Name: "a"}, Symbol{Name: "b"}, Symbol{Name: "c"}

	var n Navigator
	n.Reset(a)
	n.Push(b)
	n.Push(c)
	require.Equal(t, 2, n.Depth())
	assert.Equal(t, []Symbol{a, b}, n.Stack())

	got, ok := n.Pop()
	assert.True(t, ok)
	assert.Equal(t, b, got)

	got, ok = n.Pop()
	assert.True(t, ok)
	assert.Equal(t, a, got)
	assert.False(t, n.CanReturn())

	got, ok = n.Pop()
	assert.False(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, a, n.Current())
}

func TestNavigatorResetDropsStack(t *testing.T) {
	var n Navigator
	n.Reset(Symbol{Name: "a"})
	n.Push(Symbol{Name: "b"})
	n.Reset(Symbol{Name: "z"})
	assert.Equal(t, 0, n.Depth())
	assert.Equal(t, "z", n.Current().Name)
}

func TestNavigatorDecide(t *testing.T) {
	rows := ParseDisassembly(`  401126:	callq  401100 <foo>
  40112b:	jmp    401135 <main+0xf>
  401130:	retq
  401135:	nop
  401136:	mov    %rax,%rbx
`, Options{})
	callees := CalleeMap{0: fooSym}
	ops := OpcodesFor(NormalizeArch("x86_64"), false)

	var n Navigator
	n.Reset(mainSym)

	tests := []struct {
		name string
		row  int
		want Transition
	}{
		{"call drills in", 0, Transition{Kind: TransitionDrillIn, Symbol: fooSym}},
		{"jump moves focus", 1, Transition{Kind: TransitionJump, Row: 3}},
		{"return without caller", 2, Transition{Kind: TransitionNone}},
		{"plain instruction", 4, Transition{Kind: TransitionNone}},
		{"out of range", 9, Transition{Kind: TransitionNone}},
		{"negative", -1, Transition{Kind: TransitionNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Decide(rows, tt.row, callees, ops))
		})
	}

	n.Apply(n.Decide(rows, 0, callees, ops))
	require.Equal(t, fooSym, n.Current())
	require.Equal(t, 1, n.Depth())

	ret := n.Decide(rows, 2, callees, ops)
	assert.Equal(t, TransitionReturn, ret.Kind)
	assert.Equal(t, mainSym, ret.Symbol)
	n.Apply(ret)
	assert.Equal(t, mainSym, n.Current())
	assert.Equal(t, 0, n.Depth())
}

func TestFindAddressTarget(t *testing.T) {
	rows := []Row{
		{Text: "401126:\tpush %rbp"},
		{Text: "  40112a:\tnop"},
		{Text: "  401130:\tnop"},
	}

	idx, ok := FindAddressTarget(rows, "jne    40112a <main+0x4>")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = FindAddressTarget(rows, "cmove  401126 <a>, 401130 <b>")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = FindAddressTarget(rows, "jmp    *%rax")
	assert.False(t, ok)

	_, ok = FindAddressTarget(rows, "jmp    deadbeef <nowhere>")
	assert.False(t, ok)
}

func TestTransitionKindString(t *testing.T) {
	assert.Equal(t, "drill-in", TransitionDrillIn.String())
	assert.Equal(t, "none", TransitionNone.String())
}
