package disasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchMatches(t *testing.T) {
	s := SearchState{Text: "MOV"}
	assert.True(t, s.Matches("  401127:\tmov    %rsp,%rbp"))
	assert.False(t, s.Matches("  401126:\tpush   %rbp"))

	s.Text = ""
	assert.False(t, s.Matches("mov"))
}

func TestSearchIsRegister(t *testing.T) {
	tests := []struct {
		arch  string
		token string
		want  bool
	}{
		{"x86_64", "%rax", true},
		{"x86_64", "RBP", true},
		{"x86_64", "%xmm0", true},
		{"x86_64", "%foo", false},
		{"x86_64", "x0", false},
		{"x86_64", "%ymm12", true},
		{"x86_64", "%st", true},
		{"x86_64", "%mm3", true},
		{"armv7", "r3", true},
		{"armv7", "sp", true},
		{"armv7", "d17", true},
		{"aarch64", "x0", true},
		{"aarch64", "w30", true},
		{"aarch64", "xzr", true},
		{"aarch64", "v31", true},
		{"aarch64", "rax", false},
		{"aarch64", "%", false},
	}
	for _, tt := range tests {
		t.Run(tt.arch+"/"+tt.token, func(t *testing.T) {
			s := SearchState{Arch: NormalizeArch(tt.arch)}
			assert.Equal(t, tt.want, s.IsRegister(tt.token))
		})
	}
}

func TestSearchIsCallee(t *testing.T) {
	s := SearchState{Callees: CalleeMap{3: fooSym}}
	assert.True(t, s.IsCallee(3))
	assert.False(t, s.IsCallee(2))

	var empty SearchState
	assert.False(t, empty.IsCallee(0))
}

func TestSpans(t *testing.T) {
	s := SearchState{Text: "rsp", Arch: NormalizeArch("x86_64")}
	got := s.Spans("mov    %rsp,%rbp")
	assert.Equal(t, []Span{
		{Text: "mov    %", Kind: SpanPlain},
		{Text: "rsp", Kind: SpanMatch},
		{Text: ",", Kind: SpanPlain},
		{Text: "%rbp", Kind: SpanRegister},
	}, got)

	s.Text = ""
	got = s.Spans("push   %rbp")
	assert.Equal(t, []Span{
		{Text: "push   ", Kind: SpanPlain},
		{Text: "%rbp", Kind: SpanRegister},
	}, got)

	assert.Nil(t, s.Spans(""))
}
