package disasm

import (
	"bufio"
	"context"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Action is the tool used to produce a listing.
type Action int

const (
	ActionDisassembly Action = iota // objdump
	ActionAnnotate                  // perf annotate
)

func (a Action) String() string {
	if a == ActionAnnotate {
		return "annotate"
	}
	return "disassembly"
}

const (
	perfTool           = "perf"
	perfPackage        = "linux-tools-common"
	minObjdumpVersion  = "2.32"
	annotateVerboseArg = "-v"
)

// Job is one planned listing generation. Running it touches no viewer
// state, so it may run off the UI goroutine.
type Job struct {
	Seq     uint64
	Action  Action
	Symbol  Symbol
	Command Command
	Arch    Arch
	Objdump string
	Options Options

	// CheckVersion asks for an objdump version probe when the output is empty.
	CheckVersion bool
	// Diagnostic short-circuits the run.
	Diagnostic *Diagnostic

	cache *OutputCache
}

// JobResult is the raw outcome of a Job.
type JobResult struct {
	Seq        uint64
	Text       string
	Diagnostic *Diagnostic
	// ObjdumpVersion is set when the version probe ran.
	ObjdumpVersion string
	// DisableDisassembly is set when objdump is older than 2.32.
	DisableDisassembly bool
	// Err is a non-diagnostic failure such as cancellation; the result
	// should be discarded.
	Err error
}

// Run executes the job with r, turning every tool failure into a diagnostic.
func (j Job) Run(ctx context.Context, r Runner) JobResult {
	res := JobResult{Seq: j.Seq}
	if j.Diagnostic != nil {
		res.Diagnostic = j.Diagnostic
		res.Text = j.Diagnostic.Message
		return res
	}
	if out, ok := j.cache.get(j.Command); ok {
		res.Text = out
		return res
	}

	out, err := r.Run(ctx, j.Command)
	switch {
	case errors.Is(err, ErrToolNotFound):
		res.Diagnostic = j.notStarted()
		res.Text = res.Diagnostic.Message
		return res
	case errors.Is(err, ErrToolTimedOut):
		res.Diagnostic = timedOutDiagnostic(j.Command, err)
		res.Text = res.Diagnostic.Message
		return res
	case err != nil:
		res.Err = err
		return res
	}

	text := string(out.Stdout)
	if strings.TrimSpace(text) != "" {
		j.cache.add(j.Command, text)
		res.Text = text
		return res
	}

	diag := emptyOutputDiagnostic(j.Command)
	res.Text = diag.Message
	switch j.Action {
	case ActionDisassembly:
		if j.CheckVersion {
			version := probeObjdumpVersion(ctx, r, j.Objdump)
			res.ObjdumpVersion = version
			if objdumpTooOld(version) {
				diag = oldObjdumpDiagnostic(version)
				res.Text = diag.Message
				res.DisableDisassembly = true
			}
		}
	case ActionAnnotate:
		verbose, err := merged(r).Run(ctx, j.Command.With(annotateVerboseArg, "--stdio"))
		if err == nil {
			res.Text += "\n" + string(verbose.Stdout)
		}
	}
	res.Diagnostic = diag
	return res
}

func (j Job) notStarted() *Diagnostic {
	if j.Action == ActionAnnotate {
		return notStartedDiagnostic(j.Command.Name, perfPackage, j.Command)
	}
	return notStartedDiagnostic(j.Command.Name, j.Arch.installPackage(), j.Command)
}

var versionPattern = regexp.MustCompile(`\d+\.\d+`)

// probeObjdumpVersion runs "objdump -v" and returns the "major.minor"
// of its first line, or "" when it cannot be determined.
func probeObjdumpVersion(ctx context.Context, r Runner, objdump string) string {
	out, err := r.Run(ctx, Command{Name: objdump, Args: []string{"-v"}})
	if err != nil {
		return ""
	}
	sc := bufio.NewScanner(strings.NewReader(string(out.Stdout)))
	if !sc.Scan() {
		return ""
	}
	return versionPattern.FindString(sc.Text())
}

// objdumpTooOld compares versions numerically, so 2.4 sorts before 2.32.
func objdumpTooOld(version string) bool {
	if version == "" {
		return false
	}
	v := "v" + version
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(v, "v"+minObjdumpVersion) < 0
}
