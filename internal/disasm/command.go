package disasm

import (
	"fmt"
	"strings"
)

// Options are the display toggles of the listing.
type Options struct {
	NoShowRawInsn bool `json:"noShowRawInsn" yaml:"no_show_raw_insn"`
	NoShowAddress bool `json:"noShowAddress" yaml:"no_show_address"`
	IntelSyntax   bool `json:"intelSyntax" yaml:"intel_syntax"`
}

// DefaultOptions hides raw instruction bytes and keeps addresses.
func DefaultOptions() Options {
	return Options{NoShowRawInsn: true}
}

// Command is an external tool invocation.
type Command struct {
	Name string
	Args []string
}

// String renders the command line the way it is shown in diagnostics.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// With returns a copy of c with extra arguments appended.
func (c Command) With(args ...string) Command {
	out := Command{Name: c.Name, Args: make([]string, 0, len(c.Args)+len(args))}
	out.Args = append(out.Args, c.Args...)
	out.Args = append(out.Args, args...)
	return out
}

// BuildDisassembly returns the objdump invocation for sym inside binPath.
// A by-address request for a symbol of unknown size falls back to by-symbol.
func BuildDisassembly(objdump string, sym Symbol, binPath string, approach Approach, opts Options) Command {
	cmd := Command{Name: objdump}
	if approach == ApproachAddress && sym.Size > 0 {
		start, stop := AddressRange(sym)
		cmd.Args = append(cmd.Args,
			"-d",
			fmt.Sprintf("--start-address=0x%x", start),
			fmt.Sprintf("--stop-address=0x%x", stop),
		)
	} else {
		cmd.Args = append(cmd.Args, "--disassemble="+sym.MangledOrName())
	}
	if opts.NoShowRawInsn {
		cmd.Args = append(cmd.Args, "--no-show-raw-insn")
	}
	if opts.IntelSyntax {
		cmd.Args = append(cmd.Args, "-M", "intel")
	}
	return cmd.With(binPath)
}

// AddressRange is the half-open range [RelAddr, RelAddr+Size) of sym.
func AddressRange(sym Symbol) (start, stop uint64) {
	return sym.RelAddr, sym.RelAddr + sym.Size
}

// AnnotateRequest carries what perf annotate needs beyond the symbol.
type AnnotateRequest struct {
	Perf     string
	Objdump  string
	DataPath string
	Symfs    string
}

// BuildAnnotate returns the perf annotate invocation for sym.
func BuildAnnotate(req AnnotateRequest, sym Symbol, opts Options) Command {
	cmd := Command{Name: req.Perf}
	cmd.Args = append(cmd.Args,
		"annotate", "-f", "--no-source", BareName(sym.Name),
		"--objdump="+req.Objdump,
	)
	if req.Symfs != "" {
		cmd.Args = append(cmd.Args, "--symfs="+req.Symfs)
	}
	cmd.Args = append(cmd.Args, "-i", req.DataPath)
	if !opts.NoShowRawInsn {
		cmd.Args = append(cmd.Args, "--asm-raw")
	}
	if opts.IntelSyntax {
		cmd.Args = append(cmd.Args, "-M", "intel")
	}
	return cmd
}

// BareName strips the parameter list from a demangled name.
func BareName(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		return name[:i]
	}
	return name
}
