// Package profile turns a pprof profile into the symbol table and per
// instruction costs the disassembly view works from.
package profile

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	pprof "github.com/google/pprof/profile"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"perfasm/internal/disasm"
	"perfasm/internal/elfx"
)

// Options carry the session settings that do not live in the profile.
type Options struct {
	DataPath       string // perf.data handed to perf annotate; defaults to the profile
	AppPath        string
	ExtraLibPaths  []string
	TargetRoot     string
	Arch           string
	Approach       disasm.Approach
	Unwind         disasm.UnwindMethod
	BranchTraverse bool

	Fs     afero.Fs
	Logger *log.Logger
}

// Profile is a loaded profile ready for viewing.
type Profile struct {
	Path     string
	Result   *disasm.Result
	Units    []string
	Totals   []float64 // per event type
	Samples  int
	Skipped  int // samples without symbol information
	Duration time.Duration
	Binaries int // mapped binaries whose ELF symbols were read
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Load reads a pprof file, plain, gzip or zstd compressed.
func Load(ctx context.Context, path string, opts Options) (*Profile, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(opts.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	data, err = decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	p, err := pprof.ParseData(data)
	if err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if opts.DataPath == "" {
		opts.DataPath = path
	}
	out, err := Build(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	out.Path = path
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		// ParseData handles gzip itself.
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// symAgg accumulates the samples of one function before its Symbol key
// is final.
type symAgg struct {
	sym   disasm.Symbol
	costs map[disasm.Location][]float64
	total []float64
}

// Build attributes every sample's leaf cost to the outermost function of
// the leaf location.
func Build(ctx context.Context, p *pprof.Profile, opts Options) (*Profile, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	events := make([]string, len(p.SampleType))
	units := make([]string, len(p.SampleType))
	for i, st := range p.SampleType {
		events[i] = st.Type
		units[i] = st.Unit
	}

	res := disasm.NewResult(events...)
	res.DataPath = opts.DataPath
	res.AppPath = opts.AppPath
	res.ExtraLibPaths = opts.ExtraLibPaths
	res.TargetRoot = opts.TargetRoot
	res.Arch = opts.Arch
	res.Unwind = opts.Unwind
	res.BranchTraverse = opts.BranchTraverse
	if opts.Approach != "" {
		res.Approach = opts.Approach
	}

	images, err := loadImages(ctx, p.Mapping, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, im := range images {
			_ = im.Close()
		}
	}()
	if res.Arch == "" && len(p.Mapping) > 0 {
		if im := images[p.Mapping[0].File]; im != nil {
			res.Arch = im.Arch()
		}
	}

	out := &Profile{
		Result:   res,
		Units:    units,
		Totals:   make([]float64, len(events)),
		Duration: time.Duration(p.DurationNanos),
		Binaries: len(images),
	}

	type key struct{ file, name string }
	aggs := make(map[key]*symAgg)
	for _, s := range p.Sample {
		if len(s.Location) == 0 {
			continue
		}
		leaf := s.Location[0]
		if len(leaf.Line) == 0 || leaf.Line[len(leaf.Line)-1].Function == nil {
			out.Skipped++
			continue
		}
		outer := leaf.Line[len(leaf.Line)-1]
		fn := outer.Function

		var file string
		if leaf.Mapping != nil {
			file = leaf.Mapping.File
		}
		im := images[file]
		addr := relAddr(leaf, im)

		k := key{file, fn.Name}
		a, ok := aggs[k]
		if !ok {
			a = &symAgg{
				sym:   symbolFor(fn, leaf.Mapping, addr, im),
				costs: make(map[disasm.Location][]float64),
				total: make([]float64, len(events)),
			}
			aggs[k] = a
		}

		loc := disasm.Location{RelAddr: addr, File: fn.Filename, Line: int(outer.Line)}
		lc, ok := a.costs[loc]
		if !ok {
			lc = make([]float64, len(events))
			a.costs[loc] = lc
		}
		for ev, v := range s.Value {
			if ev >= len(events) {
				break
			}
			lc[ev] += float64(v)
			a.total[ev] += float64(v)
			out.Totals[ev] += float64(v)
		}
		out.Samples++
	}

	ordered := make([]*symAgg, 0, len(aggs))
	for _, a := range aggs {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if len(a.total) > 0 && a.total[0] != b.total[0] {
			return a.total[0] > b.total[0]
		}
		if a.sym.Name != b.sym.Name {
			return a.sym.Name < b.sym.Name
		}
		return a.sym.Binary < b.sym.Binary
	})
	for _, a := range ordered {
		e := res.AddSymbol(a.sym)
		for loc, lc := range a.costs {
			for ev, v := range lc {
				if v != 0 {
					e.AddCost(loc, ev, v)
				}
			}
		}
	}

	opts.Logger.Debug("profile loaded",
		"symbols", len(res.Symbols),
		"samples", out.Samples,
		"skipped", out.Skipped,
		"binaries", out.Binaries,
		"arch", res.Arch)
	return out, nil
}

// relAddr maps a sampled address to the address objdump prints: the file
// offset inside the mapping, translated to a virtual address when the
// binary's load segments are known.
func relAddr(loc *pprof.Location, im *elfx.Image) uint64 {
	off := loc.Address
	// A location below its mapping is malformed; keep the raw address.
	if m := loc.Mapping; m != nil && loc.Address >= m.Start {
		off = loc.Address - m.Start + m.Offset
	}
	if im != nil {
		if va, ok := im.Off2VA(off); ok {
			return va
		}
	}
	return off
}

func symbolFor(fn *pprof.Function, m *pprof.Mapping, addr uint64, im *elfx.Image) disasm.Symbol {
	mangled := fn.SystemName
	if mangled == "" {
		mangled = fn.Name
	}
	sym := disasm.Symbol{
		Name:    CachedDemangle(fn.Name),
		Mangled: mangled,
	}
	if m != nil && m.File != "" {
		sym.Path = m.File
		sym.Binary = filepath.Base(m.File)
	}
	if im == nil {
		return sym
	}
	if es, ok := im.FindFunctionByName(mangled); ok {
		sym.RelAddr, sym.Size = es.Addr, es.Size
	} else if es, ok := im.Lookup(addr); ok {
		sym.RelAddr, sym.Size = es.Addr, es.Size
	}
	return sym
}

// loadImages opens the ELF file of every distinct mapping in parallel.
// Binaries that cannot be read are left out.
func loadImages(ctx context.Context, mappings []*pprof.Mapping, opts Options) (map[string]*elfx.Image, error) {
	var files []string
	seen := make(map[string]bool)
	for _, m := range mappings {
		if m.File == "" || strings.HasPrefix(m.File, "[") || seen[m.File] {
			continue
		}
		seen[m.File] = true
		files = append(files, m.File)
	}

	images := make([]*elfx.Image, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			images[i] = openImage(file, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, im := range images {
			if im != nil {
				_ = im.Close()
			}
		}
		return nil, fmt.Errorf("read binaries: %w", err)
	}

	out := make(map[string]*elfx.Image, len(files))
	for i, im := range images {
		if im != nil {
			out[files[i]] = im
		}
	}
	return out, nil
}

// openImage tries the recorded path, then the application and extra
// library directories.
func openImage(file string, opts Options) *elfx.Image {
	base := filepath.Base(file)
	candidates := []string{file}
	if opts.AppPath != "" {
		candidates = append(candidates, filepath.Join(opts.AppPath, base))
	}
	for _, dir := range opts.ExtraLibPaths {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, base))
		}
	}
	for _, path := range candidates {
		im, err := elfx.OpenFs(opts.Fs, path)
		if err == nil {
			return im
		}
		opts.Logger.Debug("no symbols", "binary", path, "err", err)
	}
	return nil
}
