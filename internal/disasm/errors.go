package disasm

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolTimedOut      = errors.New("tool timed out")
	ErrEmptyOutput       = errors.New("empty output")
	ErrToolVersionTooOld = errors.New("tool version too old")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrBinaryUnresolved  = errors.New("binary unresolved")
)

// Diagnostic is a recovered failure that is shown to the user as rows
// instead of instructions.
type Diagnostic struct {
	Kind    error
	Message string
	Command string
}

func (d *Diagnostic) Error() string {
	return d.Message
}

func (d *Diagnostic) Unwrap() error {
	return d.Kind
}

// Prefixes of diagnostic lines; the parsers switch to verbatim output
// once one of them is seen.
const (
	msgNotStarted  = "Process was not started"
	msgEmptyOutput = "Empty output of command"
	msgTimedOut    = "Process timed out"
	msgEmptySymbol = "Empty symbol"
	msgOldObjdump  = "Version of objdump"
)

var diagnosticPrefixes = []string{
	msgNotStarted,
	msgEmptyOutput,
	msgTimedOut,
	msgEmptySymbol,
	msgOldObjdump,
}

func notStartedDiagnostic(tool, pkg string, cmd Command) *Diagnostic {
	return &Diagnostic{
		Kind: ErrToolNotFound,
		Message: fmt.Sprintf("%s. Probably command '%s' not found, but can be installed with 'apt install %s'",
			msgNotStarted, tool, pkg),
		Command: cmd.String(),
	}
}

func emptyOutputDiagnostic(cmd Command) *Diagnostic {
	return &Diagnostic{
		Kind:    ErrEmptyOutput,
		Message: msgEmptyOutput + " " + cmd.String(),
		Command: cmd.String(),
	}
}

func timedOutDiagnostic(cmd Command, err error) *Diagnostic {
	return &Diagnostic{
		Kind:    ErrToolTimedOut,
		Message: fmt.Sprintf("%s: %v: %s", msgTimedOut, err, cmd.String()),
		Command: cmd.String(),
	}
}

func invalidSymbolDiagnostic() *Diagnostic {
	return &Diagnostic{
		Kind:    ErrInvalidSymbol,
		Message: msgEmptySymbol + " ?? is selected",
	}
}

func oldObjdumpDiagnostic(version string) *Diagnostic {
	return &Diagnostic{
		Kind:    ErrToolVersionTooOld,
		Message: fmt.Sprintf("%s should be >= %s. You use objdump with version %s", msgOldObjdump, minObjdumpVersion, version),
	}
}
