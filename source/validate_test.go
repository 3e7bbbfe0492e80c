package source

import (
	"strings"
	"testing"

	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/layout"
	fpdfrenderer "github.com/ByLCY/quire/renderer/fpdf"
)

func samplePDF(t *testing.T) []byte {
	t.Helper()
	r := fpdfrenderer.NewRenderer()
	g, err := layout.ResolveGeometry(layout.GeometryOptions{})
	if err != nil {
		t.Fatalf("ResolveGeometry: %v", err)
	}
	doc, _, err := layout.Build([]content.Unit{content.FlowFromNodes("Sample", "", []content.Node{{Text: "body"}})},
		layout.BuildOptions{Geometry: g, Table: layout.DefaultTableOptions(), Typesetter: r})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := r.Render(doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return data
}

func TestPDFCPUValidator(t *testing.T) {
	v := PDFCPUValidator{MaxBytes: 1 << 20}
	good := samplePDF(t)

	if got := v.Validate("a.PDF", good); !got.OK {
		t.Fatalf("valid PDF rejected: %s", got.Reason)
	}

	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"a.txt", good, "extension"},
		{"a.pdf", nil, "empty"},
		{"a.pdf", []byte("hello world"), "Invalid PDF"},
		{"a.pdf", []byte("%PDF-1.4\ngarbage"), "corrupted"},
	}
	for _, c := range cases {
		got := v.Validate(c.name, c.data)
		if got.OK || !strings.Contains(got.Reason, c.want) {
			t.Fatalf("Validate(%q) = %+v, want reason containing %q", c.name, got, c.want)
		}
	}

	small := PDFCPUValidator{MaxBytes: 16}
	if got := small.Validate("a.pdf", good); got.OK || !strings.Contains(got.Reason, "limit") {
		t.Fatalf("oversized file should be rejected, got %+v", got)
	}
}
