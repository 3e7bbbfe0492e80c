// Package content normalizes heterogeneous input into the two unit kinds the
// layout engines understand: tables (spreadsheet grids) and flows (ordered
// heading/paragraph text).
package content

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Kind tags a content unit.
type Kind int

const (
	KindTable Kind = iota
	KindFlow
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindFlow:
		return "flow"
	default:
		return "unknown"
	}
}

// Unit is one independently laid out piece of content. Each unit starts on a
// fresh page.
type Unit interface {
	Kind() Kind
	Name() string
}

// TableUnit is a titled grid. Rows may be shorter or longer than Header.
type TableUnit struct {
	Title  string
	Header []string
	Rows   [][]string
}

func (TableUnit) Kind() Kind     { return KindTable }
func (t TableUnit) Name() string { return t.Title }

// Columns returns the widest row width, header included.
func (t TableUnit) Columns() int {
	n := len(t.Header)
	for _, row := range t.Rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// Cell returns the cell at row/col, or "" when the row is short.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// Block is one paragraph or heading of a flow.
type Block struct {
	Text    string
	Heading bool
	Level   int // 1..6 for headings, 0 for paragraphs
}

// FlowUnit is an ordered run of blocks with an optional provenance line.
type FlowUnit struct {
	Title  string
	Source string
	Blocks []Block
}

func (FlowUnit) Kind() Kind     { return KindFlow }
func (f FlowUnit) Name() string { return f.Title }

// Node is a raw text node as produced by an extractor. Level 1..6 marks a
// heading; anything else is body text.
type Node struct {
	Text  string
	Level int
}

// DefaultTitle names documents whose source has no usable title.
const DefaultTitle = "Untitled Document"

// TableFromSheet trims every cell, drops rows that are entirely empty and
// uses the first remaining row as the header. ok is false when the sheet has
// no raw rows at all.
func TableFromSheet(name string, rows [][]string) (TableUnit, bool) {
	if len(rows) == 0 {
		return TableUnit{Title: name}, false
	}
	kept := make([][]string, 0, len(rows))
	for _, raw := range rows {
		row := make([]string, len(raw))
		empty := true
		for i, cell := range raw {
			row[i] = Clean(cell)
			if row[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		kept = append(kept, row)
	}
	unit := TableUnit{Title: name}
	if len(kept) > 0 {
		unit.Header = kept[0]
		unit.Rows = kept[1:]
	}
	return unit, true
}

// FlowFromNodes drops empty nodes, clamps heading levels and prepends a
// level-1 heading with the title unless some node already carries it.
func FlowFromNodes(title, source string, nodes []Node) FlowUnit {
	title = Collapse(title)
	if title == "" {
		title = DefaultTitle
	}
	blocks := make([]Block, 0, len(nodes)+1)
	hasTitle := false
	for _, n := range nodes {
		text := Collapse(n.Text)
		if text == "" {
			continue
		}
		if text == title {
			hasTitle = true
		}
		b := Block{Text: text}
		if n.Level > 0 {
			b.Heading = true
			b.Level = min(n.Level, 6)
		}
		blocks = append(blocks, b)
	}
	if !hasTitle {
		blocks = append([]Block{{Text: title, Heading: true, Level: 1}}, blocks...)
	}
	return FlowUnit{Title: title, Source: source, Blocks: blocks}
}

// Clean trims a cell value and normalizes it to NFC.
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Collapse normalizes to NFC and folds whitespace runs into single spaces.
func Collapse(s string) string {
	return norm.NFC.String(strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " "))
}
