package elfx

import (
	"os"
	"runtime"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The test binary itself is the only ELF file guaranteed to exist.
func openSelf(t *testing.T) *Image {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("ELF only")
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	im, err := Open(exe)
	require.NoError(t, err)
	t.Cleanup(func() { _ = im.Close() })
	return im
}

func TestOpenSymbols(t *testing.T) {
	im := openSelf(t)
	require.NotEmpty(t, im.Syms)
	assert.NotZero(t, im.Text.Size)

	for i := 1; i < len(im.Syms); i++ {
		assert.LessOrEqual(t, im.Syms[i-1].Addr, im.Syms[i].Addr)
	}

	sym, ok := im.FindFunctionByName("runtime.main")
	require.True(t, ok)
	assert.NotZero(t, sym.Size)
	assert.True(t, im.InText(sym.Addr))

	got, ok := im.Lookup(sym.Addr + sym.Size/2)
	require.True(t, ok)
	assert.Equal(t, sym.Name, got.Name)
}

func TestOffsetRoundTrip(t *testing.T) {
	im := openSelf(t)
	sym, ok := im.FindFunctionByName("runtime.main")
	require.True(t, ok)

	off, ok := im.VA2Off(sym.Addr)
	require.True(t, ok)
	va, ok := im.Off2VA(off)
	require.True(t, ok)
	assert.Equal(t, sym.Addr, va)
}

func TestLookupMiss(t *testing.T) {
	im := &Image{Syms: []Sym{{Name: "a", Addr: 0x100, Size: 0x10}, {Name: "b", Addr: 0x200}}}

	_, ok := im.Lookup(0x50)
	assert.False(t, ok)
	_, ok = im.Lookup(0x150)
	assert.False(t, ok)

	s, ok := im.Lookup(0x10f)
	assert.True(t, ok)
	assert.Equal(t, "a", s.Name)

	s, ok = im.Lookup(0x200)
	assert.True(t, ok)
	assert.Equal(t, "b", s.Name)
}

func TestArch(t *testing.T) {
	im := openSelf(t)
	want := map[string]string{"amd64": "x86_64", "arm64": "aarch64", "386": "i686", "arm": "armv7"}[runtime.GOARCH]
	if want == "" {
		t.Skip("unmapped GOARCH")
	}
	assert.Equal(t, want, im.Arch())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open("/nonexistent/binary")
	assert.Error(t, err)
}

func TestOpenFs(t *testing.T) {
	self := openSelf(t)
	data, err := os.ReadFile(self.Path)
	require.NoError(t, err)

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/bin/app", data, 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/bin/script", []byte("#!/bin/sh\n"), 0o755))

	im, err := OpenFs(fsys, "/bin/app")
	require.NoError(t, err)
	assert.Equal(t, self.Machine, im.Machine)
	assert.Len(t, im.Syms, len(self.Syms))
	require.NoError(t, im.Close())
	require.NoError(t, im.Close())

	_, err = OpenFs(fsys, "/bin/script")
	assert.ErrorContains(t, err, "/bin/script")
	_, err = OpenFs(fsys, "/bin/missing")
	assert.Error(t, err)
}
