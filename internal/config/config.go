// Package config holds the session settings: defaults, an optional YAML
// file and command-line flags, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"perfasm/internal/disasm"
)

// EnvConfig names a config file when --config is not given.
const EnvConfig = "PERFASM_CONFIG"

// Config is everything a session needs besides the profile itself.
type Config struct {
	AppPath        string         `yaml:"app_path,omitempty" json:"app_path,omitempty" jsonschema:"title=Application path,description=Directory searched for binaries before their recorded path"`
	ExtraLibPaths  []string       `yaml:"extra_lib_paths,omitempty" json:"extra_lib_paths,omitempty" jsonschema:"title=Extra library paths,description=Directories searched recursively for shared libraries"`
	TargetRoot     string         `yaml:"target_root,omitempty" json:"target_root,omitempty" jsonschema:"title=Target root,description=Sysroot handed to perf annotate as --symfs"`
	Arch           string         `yaml:"arch,omitempty" json:"arch,omitempty" jsonschema:"title=Architecture,description=Target architecture such as x86_64 or armv8; empty detects it"`
	Approach       string         `yaml:"disasm_approach,omitempty" json:"disasm_approach,omitempty" jsonschema:"title=Disassembly approach,enum=symbol,enum=address"`
	PerfData       string         `yaml:"perf_data,omitempty" json:"perf_data,omitempty" jsonschema:"title=perf.data,description=perf.data for perf annotate; defaults to the profile"`
	Unwind         string         `yaml:"unwind,omitempty" json:"unwind,omitempty" jsonschema:"title=Unwind method,enum=,enum=fp,enum=dwarf,enum=lbr"`
	BranchTraverse bool           `yaml:"branch_traverse,omitempty" json:"branch_traverse,omitempty" jsonschema:"title=Branch traverse,description=Short LBR traversal; per instruction costs are hidden"`
	Annotate       bool           `yaml:"annotate,omitempty" json:"annotate,omitempty" jsonschema:"title=Annotate,description=Start with perf annotate instead of objdump"`
	Options        disasm.Options `yaml:"options" json:"options" jsonschema:"title=Display options"`
	Timeout        time.Duration  `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Ceiling for one tool run"`
	CacheSize      int            `yaml:"cache_size" json:"cache_size" jsonschema:"title=Cache size,description=Tool outputs kept in memory; 0 disables caching,minimum=0"`
	Tools          disasm.Tools   `yaml:"tools,omitempty" json:"tools,omitempty" jsonschema:"title=Tools,description=Override the objdump and perf binaries"`
	Debug          bool           `yaml:"debug,omitempty" json:"debug,omitempty" jsonschema:"title=Debug,description=Enable debug logging"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Approach:  string(disasm.ApproachSymbol),
		Options:   disasm.DefaultOptions(),
		Timeout:   disasm.DefaultTimeout,
		CacheSize: 64,
	}
}

// Validate rejects values the engine cannot act on.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Approach) {
	case "", string(disasm.ApproachSymbol), string(disasm.ApproachAddress):
	default:
		errs = append(errs, fmt.Errorf("unknown disasm approach %q", c.Approach))
	}
	switch disasm.UnwindMethod(strings.ToLower(c.Unwind)) {
	case "", disasm.UnwindFramePointer, disasm.UnwindDwarf, disasm.UnwindLBR:
	default:
		errs = append(errs, fmt.Errorf("unknown unwind method %q", c.Unwind))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.CacheSize < 0 {
		errs = append(errs, errors.New("cache size must not be negative"))
	}
	return errors.Join(errs...)
}

// Load decodes the YAML file at path over c. Unknown keys are errors.
func (c *Config) Load(fsys afero.Fs, path string) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// RegisterFlags registers the command-line flags, with c's values as defaults.
func (c *Config) RegisterFlags(f *pflag.FlagSet) {
	f.StringVar(&c.AppPath, "app-path", c.AppPath, "Directory searched for binaries before their recorded path")
	f.StringVar(&c.TargetRoot, "target-root", c.TargetRoot, "Sysroot for perf annotate")
	f.StringVar(&c.Arch, "arch", c.Arch, "Target architecture; empty detects it from the binaries")
	f.StringVar(&c.Approach, "disasm-approach", c.Approach, "How objdump selects bytes: symbol or address")
	f.StringVar(&c.PerfData, "perf-data", c.PerfData, "perf.data for perf annotate")
	f.StringVar(&c.Unwind, "unwind", c.Unwind, "Unwind method the profile was recorded with: fp, dwarf or lbr")
	f.BoolVar(&c.BranchTraverse, "branch-traverse", c.BranchTraverse, "Profile uses short LBR branch traversal")
	f.BoolVar(&c.Annotate, "annotate", c.Annotate, "Use perf annotate instead of objdump")
	f.BoolVar(&c.Options.IntelSyntax, "intel", c.Options.IntelSyntax, "Intel syntax")
	f.DurationVar(&c.Timeout, "timeout", c.Timeout, "Ceiling for one tool run")
	f.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Tool outputs kept in memory")
	f.StringVar(&c.Tools.Objdump, "objdump", c.Tools.Objdump, "objdump binary")
	f.StringVar(&c.Tools.Perf, "perf", c.Tools.Perf, "perf binary")
	f.Var(newPathList(&c.ExtraLibPaths), "extra-lib-paths", "Colon separated directories searched for shared libraries")
	f.Var(newInvertedBool(&c.Options.NoShowRawInsn), "show-raw-insn", "Show raw instruction bytes")
	f.BoolVar(&c.Options.NoShowAddress, "no-show-address", c.Options.NoShowAddress, "Hide instruction addresses")
	f.Lookup("show-raw-insn").NoOptDefVal = "true"
}

// Resolve builds the effective config once flags are parsed: defaults,
// then the file named by --config or PERFASM_CONFIG, then every flag the
// user actually set. flags must be the Config whose RegisterFlags bound f.
func Resolve(fsys afero.Fs, f *pflag.FlagSet, flags *Config) (Config, error) {
	cfg := Default()

	path, _ := f.GetString("config")
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.Load(fsys, path); err != nil {
			return cfg, err
		}
	}

	f.Visit(func(fl *pflag.Flag) {
		if apply, ok := overrides[fl.Name]; ok {
			apply(&cfg, flags)
		}
	})
	if debug, err := f.GetBool("debug"); err == nil && debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

var overrides = map[string]func(dst, src *Config){
	"app-path":        func(d, s *Config) { d.AppPath = s.AppPath },
	"extra-lib-paths": func(d, s *Config) { d.ExtraLibPaths = s.ExtraLibPaths },
	"target-root":     func(d, s *Config) { d.TargetRoot = s.TargetRoot },
	"arch":            func(d, s *Config) { d.Arch = s.Arch },
	"disasm-approach": func(d, s *Config) { d.Approach = s.Approach },
	"perf-data":       func(d, s *Config) { d.PerfData = s.PerfData },
	"unwind":          func(d, s *Config) { d.Unwind = s.Unwind },
	"branch-traverse": func(d, s *Config) { d.BranchTraverse = s.BranchTraverse },
	"annotate":        func(d, s *Config) { d.Annotate = s.Annotate },
	"intel":           func(d, s *Config) { d.Options.IntelSyntax = s.Options.IntelSyntax },
	"show-raw-insn":   func(d, s *Config) { d.Options.NoShowRawInsn = s.Options.NoShowRawInsn },
	"no-show-address": func(d, s *Config) { d.Options.NoShowAddress = s.Options.NoShowAddress },
	"timeout":         func(d, s *Config) { d.Timeout = s.Timeout },
	"cache-size":      func(d, s *Config) { d.CacheSize = s.CacheSize },
	"objdump":         func(d, s *Config) { d.Tools.Objdump = s.Tools.Objdump },
	"perf":            func(d, s *Config) { d.Tools.Perf = s.Tools.Perf },
}

// ApproachValue is the engine's view of Approach.
func (c Config) ApproachValue() disasm.Approach {
	return disasm.ParseApproach(c.Approach)
}

// UnwindValue is the engine's view of Unwind.
func (c Config) UnwindValue() disasm.UnwindMethod {
	return disasm.UnwindMethod(strings.ToLower(c.Unwind))
}

// Action is the listing the session starts with.
func (c Config) Action() disasm.Action {
	if c.Annotate {
		return disasm.ActionAnnotate
	}
	return disasm.ActionDisassembly
}

// pathList is a colon separated list flag.
type pathList struct{ dst *[]string }

func newPathList(dst *[]string) *pathList { return &pathList{dst: dst} }

func (p *pathList) String() string {
	if p.dst == nil {
		return ""
	}
	return strings.Join(*p.dst, ":")
}

func (p *pathList) Set(s string) error {
	var out []string
	for _, dir := range strings.Split(s, ":") {
		if dir = strings.TrimSpace(dir); dir != "" {
			out = append(out, dir)
		}
	}
	*p.dst = out
	return nil
}

func (p *pathList) Type() string { return "paths" }

// invertedBool exposes a negative option as a positive flag.
type invertedBool struct{ dst *bool }

func newInvertedBool(dst *bool) *invertedBool { return &invertedBool{dst: dst} }

func (b *invertedBool) String() string {
	if b.dst == nil {
		return "false"
	}
	return fmt.Sprint(!*b.dst)
}

func (b *invertedBool) Set(s string) error {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		*b.dst = false
	case "false", "0", "no":
		*b.dst = true
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

func (b *invertedBool) Type() string { return "bool" }
