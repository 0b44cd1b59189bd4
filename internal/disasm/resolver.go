package disasm

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// DefaultTargetRoot is where binaries are mirrored when no target root
// was configured.
const DefaultTargetRoot = "/tmp"

// Resolved is where a symbol's binary was found.
type Resolved struct {
	Path  string // binary handed to objdump
	Symfs string // --symfs root for perf annotate, empty when not needed
}

// PathResolver finds the binary backing a symbol on disk and mirrors it
// under the target root when the recorded path does not exist.
type PathResolver struct {
	fs            afero.Fs
	appPath       string
	extraLibPaths []string
	targetRoot    string
	arch          Arch
	logger        *log.Logger

	mirrored []string
}

// NewPathResolver returns a resolver over fsys for the session in res.
func NewPathResolver(fsys afero.Fs, res *Result, logger *log.Logger) *PathResolver {
	return &PathResolver{
		fs:            fsys,
		appPath:       res.AppPath,
		extraLibPaths: res.ExtraLibPaths,
		targetRoot:    res.TargetRoot,
		arch:          NormalizeArch(res.Arch),
		logger:        logger,
	}
}

func (p *PathResolver) exists(path string) bool {
	if path == "" {
		return false
	}
	ok, err := afero.Exists(p.fs, path)
	return err == nil && ok
}

// Resolve returns the best path for sym. When nothing exists the best
// guess is returned; the tool run reports the failure.
func (p *PathResolver) Resolve(sym Symbol) (Resolved, error) {
	cur := sym.Path
	if !p.exists(cur) || p.arch.IsARM() {
		cur = filepath.Join(p.appPath, sym.Binary)
	}
	if !p.exists(cur) || p.arch.IsARM() {
		if found, ok := p.searchExtraLibs(sym.Binary); ok {
			cur = found
		}
	}

	var res Resolved
	res.Path = cur
	if !p.exists(cur) {
		p.logger.Debug("binary unresolved", "symbol", sym.Name, "binary", sym.Binary, "guess", cur)
	}

	if sym.Path != "" && !p.exists(sym.Path) {
		root := p.targetRoot
		if root == "" {
			root = DefaultTargetRoot
		}
		if err := p.mirror(cur, filepath.Join(root, sym.Path)); err != nil {
			return res, err
		}
		res.Symfs = root
	}
	return res, nil
}

// searchExtraLibs walks every extra library directory for a file named binary.
func (p *PathResolver) searchExtraLibs(binary string) (string, bool) {
	if binary == "" {
		return "", false
	}
	for _, dir := range p.extraLibPaths {
		if dir == "" {
			continue
		}
		var found string
		err := afero.Walk(p.fs, dir, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !info.IsDir() {
				return nil
			}
			candidate := filepath.Join(path, binary)
			if p.exists(candidate) {
				found = candidate
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !errors.Is(err, filepath.SkipAll) {
			p.logger.Debug("extra lib walk failed", "dir", dir, "err", err)
		}
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// mirror copies src to dst once and remembers dst for Cleanup.
func (p *PathResolver) mirror(src, dst string) error {
	if p.exists(dst) {
		return nil
	}
	if !p.exists(src) {
		return fmt.Errorf("%w: %s", ErrBinaryUnresolved, src)
	}
	if err := p.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	data, err := afero.ReadFile(p.fs, src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := afero.WriteFile(p.fs, dst, data, 0o644); err != nil {
		return fmt.Errorf("write mirror %s: %w", dst, err)
	}
	p.mirrored = append(p.mirrored, dst)
	p.logger.Debug("mirrored binary", "src", src, "dst", dst)
	return nil
}

// Mirrored lists the files created under the target root.
func (p *PathResolver) Mirrored() []string {
	return append([]string(nil), p.mirrored...)
}

// Cleanup removes every mirrored file.
func (p *PathResolver) Cleanup() error {
	var result *multierror.Error
	for _, path := range p.mirrored {
		if err := p.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	p.mirrored = nil
	return result.ErrorOrNil()
}
