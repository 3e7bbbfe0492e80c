package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/quire/content"
)

func TestExtractMarkdown(t *testing.T) {
	md := []byte("# Weekly report\n\nSales grew\nby *ten* percent.\n\n## Regions\n\n- north\n- `south`\n\n> quoted line\n\n---\n\n```\ncode\n```\n")
	src := ExtractMarkdown(md, "")
	if src.Title != "Weekly report" {
		t.Fatalf("title = %q", src.Title)
	}
	want := []content.Node{
		{Text: "Weekly report", Level: 1},
		{Text: "Sales grew by ten percent."},
		{Text: "Regions", Level: 2},
		{Text: "north"},
		{Text: "south"},
		{Text: "quoted line"},
		{Text: "code\n"},
	}
	if diff := cmp.Diff(want, src.Nodes); diff != "" {
		t.Fatalf("nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMarkdownKeepsExplicitTitle(t *testing.T) {
	src := ExtractMarkdown([]byte("plain paragraph"), "notes.md")
	if src.Title != "notes.md" {
		t.Fatalf("title = %q", src.Title)
	}
	unit := src.Unit()
	if len(unit.Blocks) != 2 || !unit.Blocks[0].Heading || unit.Blocks[0].Text != "notes.md" {
		t.Fatalf("expected prepended title heading, got %+v", unit.Blocks)
	}
}
