// Package dsl 解析转换任务文件。一个任务声明页面选项以及按顺序输出的内容：
//
//	job "Quarterly report" {
//	  output "report-${date}.pdf"
//	  page Letter landscape margin narrow
//	  meta { author: "Finance" }
//	  sheet "Sales" {
//	    row "Region" "Total"
//	    row "North" 12
//	  }
//	  import "data/q2.xlsx"
//	  flow "Notes" source "https://example.com/notes" {
//	    h2 "Summary"
//	    p "Numbers are preliminary."
//	  }
//	}
package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)(?:pt|mm|cm|in)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[;:,]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	tokenNames       = invertSymbols(dslLexer.Symbols())
	newlineTokenType = mustTokenType("Newline")
	lbraceTokenType  = mustTokenType("LBrace")
	rbraceTokenType  = mustTokenType("RBrace")
	symbolTokenType  = mustTokenType("Symbol")
	stringTokenType  = mustTokenType("String")

	fileParser = participle.MustBuild[File](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// File is the root AST node of a job file.
type File struct {
	Pos        lexer.Position `parser:"" json:"-"`
	Name       StringLiteral  `parser:"Newline* 'job' @String"`
	Statements []*Statement   `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}' Newline*"`
}

// Statement is one entry of the job body.
type Statement struct {
	Meta    *MetaBlock  `parser:"  @@"`
	Sheet   *SheetBlock `parser:"| @@"`
	Flow    *FlowBlock  `parser:"| @@"`
	Command *Command    `parser:"| @@"`
}

// Kind returns the human-readable statement type.
func (s *Statement) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Sheet != nil:
		return "sheet"
	case s.Flow != nil:
		return "flow"
	case s.Command != nil:
		return s.Command.Name
	default:
		return "unknown"
	}
}

// MetaBlock holds document metadata assignments.
type MetaBlock struct {
	Entries []*Assignment `parser:"'meta' '{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident"`
	Value *Lexeme        `parser:"':' @@"`
}

// SheetBlock is an inline table; the first row is the header.
type SheetBlock struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Title StringLiteral  `parser:"'sheet' @String"`
	Rows  []*Row         `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Row lists cell values; strings, numbers and bare words are accepted.
type Row struct {
	Cells []*Lexeme `parser:"'row' @@*"`
}

// FlowBlock is an inline run of headings and paragraphs.
type FlowBlock struct {
	Pos    lexer.Position `parser:"" json:"-"`
	Title  StringLiteral  `parser:"'flow' @String"`
	Source *StringLiteral `parser:"( 'source' @String )?"`
	Lines  []*FlowLine    `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// FlowLine is a tagged text line such as `h2 "Title"` or `p "Body"`.
type FlowLine struct {
	Pos  lexer.Position `parser:"" json:"-"`
	Tag  string         `parser:"@Ident"`
	Text StringLiteral  `parser:"@String"`
}

// Command is a generic `name arg arg...` instruction.
type Command struct {
	Pos  lexer.Position `parser:"" json:"-"`
	Name string         `parser:"@Ident"`
	Args []*Lexeme      `parser:"@@*"`
}

// Lexeme captures a single lexical token.
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse implements participle.Parseable so Lexeme can act as a grammar atom.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	tok := lex.Peek()
	if shouldStopArg(tok) {
		return participle.NextMatch
	}
	lexeme, err := newLexeme(*lex.Next())
	if err != nil {
		return err
	}
	*l = lexeme
	return nil
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses a job file from an io.Reader.
func Parse(r io.Reader) (*File, error) {
	return fileParser.Parse("", r)
}

// ParseString parses a job file from a string.
func ParseString(input string) (*File, error) {
	return fileParser.ParseString("", input)
}

func shouldStopArg(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case newlineTokenType, rbraceTokenType, lbraceTokenType:
		return true
	case symbolTokenType:
		return tok.Value == ";"
	default:
		return false
	}
}

func newLexeme(tok lexer.Token) (Lexeme, error) {
	name, ok := tokenNames[tok.Type]
	if !ok {
		name = fmt.Sprintf("#%d", tok.Type)
	}
	val := tok.Value
	if tok.Type == stringTokenType {
		unquoted, err := strconv.Unquote(tok.Value)
		if err != nil {
			return Lexeme{}, err
		}
		val = unquoted
	}
	return Lexeme{Type: name, Value: val, Raw: tok.Value, Pos: tok.Pos}, nil
}

func invertSymbols(symbols map[string]lexer.TokenType) map[lexer.TokenType]string {
	out := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		out[tt] = name
	}
	return out
}

func mustTokenType(name string) lexer.TokenType {
	tt, ok := dslLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
