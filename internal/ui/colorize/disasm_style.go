package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

const styleName = "perfasm-dark"

// PerfasmDark registers on package initialization.
var PerfasmDark = styles.Register(chroma.MustNewStyle(styleName, chroma.StyleEntries{
	chroma.Text:           "#D0D0D0",
	chroma.Background:     "bg:#1e1e1e",
	chroma.Comment:        "#6C6C6C",
	chroma.CommentPreproc: "#6C6C6C",

	// Mnemonics
	chroma.Keyword:       "#FFFFFF",
	chroma.KeywordPseudo: "#FFFFFF",
	chroma.NameFunction:  "#FFFFFF",

	// Registers
	chroma.Name:         "#7C9C9D",
	chroma.NameBuiltin:  "#7C9C9D",
	chroma.NameVariable: "#7C9C9D",

	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberBin:     "#FF5F87",
	chroma.LiteralNumberOct:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",
	chroma.LiteralNumberFloat:   "#FF5F87",

	// <symbol+off> references
	chroma.NameLabel:     "#FFD700",
	chroma.NameAttribute: "#FFD700",

	chroma.Operator:    "#D0D0D0",
	chroma.Punctuation: "#D0D0D0",
	chroma.String:      "#EACD53",
}))
