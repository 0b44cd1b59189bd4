// Package elfx opens ELF binaries and exposes their function symbols and
// load segments, so profile addresses can be sized and mapped to the
// virtual addresses objdump prints.
package elfx

import (
	"debug/elf"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

type Image struct {
	Path    string
	File    *elf.File
	Machine elf.Machine
	Loads   []Seg
	Text    Section
	Syms    []Sym // function symbols sorted by address

	closer io.Closer
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

type Sym struct {
	Name    string
	Addr    uint64
	Size    uint64
	Dynamic bool
}

// Open reads the ELF image at path on the OS filesystem.
func Open(path string) (*Image, error) {
	return OpenFs(afero.NewOsFs(), path)
}

// OpenFs reads the ELF image at path through fsys.
func OpenFs(fsys afero.Fs, path string) (*Image, error) {
	r, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	f, err := elf.NewFile(r)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("open elf %s: %w", path, err)
	}

	im := &Image{Path: path, File: f, Machine: f.Machine, closer: r}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	if s := f.Section(".text"); s != nil {
		im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
	} else {
		// Stripped of section headers.
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadSymbols()
	return im, nil
}

// Close closes the underlying file.
func (im *Image) Close() error {
	if im.File == nil {
		return nil
	}
	err := im.File.Close()
	im.File = nil
	if im.closer != nil {
		if cerr := im.closer.Close(); err == nil {
			err = cerr
		}
		im.closer = nil
	}
	return err
}

// loadSymbols merges .symtab and .dynsym function symbols. A static
// entry wins over a dynamic one at the same address.
func (im *Image) loadSymbols() {
	seen := make(map[uint64]bool)
	add := func(syms []elf.Symbol, dynamic bool) {
		for _, s := range syms {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
				continue
			}
			if seen[s.Value] {
				continue
			}
			seen[s.Value] = true
			im.Syms = append(im.Syms, Sym{
				Name:    strings.TrimSuffix(s.Name, "@plt"),
				Addr:    s.Value,
				Size:    s.Size,
				Dynamic: dynamic,
			})
		}
	}
	// Either table may be missing on stripped binaries.
	if syms, err := im.File.Symbols(); err == nil {
		add(syms, false)
	}
	if syms, err := im.File.DynamicSymbols(); err == nil {
		add(syms, true)
	}
	sort.Slice(im.Syms, func(i, j int) bool { return im.Syms[i].Addr < im.Syms[j].Addr })
}

// Lookup returns the function containing va.
func (im *Image) Lookup(va uint64) (Sym, bool) {
	i := sort.Search(len(im.Syms), func(i int) bool { return im.Syms[i].Addr > va }) - 1
	if i < 0 {
		return Sym{}, false
	}
	s := im.Syms[i]
	if va == s.Addr || va < s.Addr+s.Size {
		return s, true
	}
	return Sym{}, false
}

// FindFunctionByName searches for a function by its exact symbol name.
func (im *Image) FindFunctionByName(name string) (Sym, bool) {
	for _, s := range im.Syms {
		if s.Name == name {
			return s, true
		}
	}
	return Sym{}, false
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// Off2VA is the inverse of VA2Off.
func (im *Image) Off2VA(off uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if off >= l.Off && off < l.Off+l.Filesz {
			return l.Vaddr + (off - l.Off), true
		}
	}
	return 0, false
}

// InText reports whether va lies in the executable code.
func (im *Image) InText(va uint64) bool {
	return im.Text.Size != 0 && va >= im.Text.VA && va < im.Text.VA+im.Text.Size
}

// Arch names the machine the way perf records it.
func (im *Image) Arch() string {
	switch im.Machine {
	case elf.EM_X86_64:
		return "x86_64"
	case elf.EM_386:
		return "i686"
	case elf.EM_AARCH64:
		return "aarch64"
	case elf.EM_ARM:
		return "armv7"
	}
	return strings.ToLower(strings.TrimPrefix(im.Machine.String(), "EM_"))
}
