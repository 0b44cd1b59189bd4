package disasm

import "strings"

const (
	objdumpHost    = "objdump"
	objdumpARM     = "arm-linux-gnueabi-objdump"
	objdumpAArch64 = "aarch64-linux-gnu-objdump"

	// ArchARMv8 is the canonical label for every 64-bit ARM spelling.
	ArchARMv8 = "armv8"
)

// Arch is a normalised architecture with the objdump binary that handles it.
type Arch struct {
	Name    string
	Objdump string
}

// NormalizeArch lower-cases s and picks the cross objdump for ARM targets.
// "armv8*" and "aarch64*" collapse into ArchARMv8.
func NormalizeArch(s string) Arch {
	name := strings.ToLower(strings.TrimSpace(s))
	a := Arch{Name: name, Objdump: objdumpHost}
	if strings.HasPrefix(name, "arm") {
		a.Objdump = objdumpARM
	}
	if strings.HasPrefix(name, ArchARMv8) || strings.HasPrefix(name, "aarch64") {
		a.Name = ArchARMv8
		a.Objdump = objdumpAArch64
	}
	return a
}

// IsARM reports whether the arch belongs to the ARM family.
func (a Arch) IsARM() bool {
	return strings.HasPrefix(a.Name, "arm")
}

// installPackage names the apt package that ships the objdump for a.
func (a Arch) installPackage() string {
	switch a.Objdump {
	case objdumpAArch64:
		return "binutils-aarch64-linux-gnu"
	case objdumpARM:
		return "binutils-arm-linux-gnueabi"
	}
	return "binutils"
}

// Opcodes are the call and return mnemonics of one syntax dialect.
type Opcodes struct {
	Call   string
	Return string
}

// OpcodesFor returns the mnemonics objdump prints for a in the chosen syntax.
func OpcodesFor(a Arch, intel bool) Opcodes {
	switch {
	case a.IsARM():
		return Opcodes{Call: "bl", Return: "ret"}
	case intel:
		return Opcodes{Call: "call", Return: "ret"}
	default:
		return Opcodes{Call: "callq", Return: "retq"}
	}
}

// mnemonicIndex finds op as a whitespace-separated token in text and
// returns the byte offset just past it, or -1.
func mnemonicIndex(text, op string) int {
	if op == "" {
		return -1
	}
	from := 0
	for {
		i := strings.Index(text[from:], op)
		if i < 0 {
			return -1
		}
		start := from + i
		end := start + len(op)
		before := start == 0 || isSpace(text[start-1])
		after := end == len(text) || isSpace(text[end])
		if before && after {
			return end
		}
		from = start + 1
	}
}

// HasMnemonic reports whether op occurs in text as a whole token.
func HasMnemonic(text, op string) bool {
	return mnemonicIndex(text, op) >= 0
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
