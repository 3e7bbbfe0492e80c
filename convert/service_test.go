package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/quire/assemble"
	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/convert"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/layout"
	fpdfrenderer "github.com/ByLCY/quire/renderer/fpdf"
	"github.com/ByLCY/quire/source"
)

var fixedNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, mutate func(*config.Config), opts ...convert.Option) *convert.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Renderer = config.RendererFPDF
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]convert.Option{convert.WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := convert.New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func sheet(name string, rows ...[]string) source.Sheet {
	return source.Sheet{Name: name, Rows: rows}
}

func outlineTitles(doc *layout.Document) []string {
	var out []string
	for _, e := range doc.Outline {
		out = append(out, e.Title)
	}
	return out
}

// failingMeasurer 在文本包含 failOn 时拒绝排版，用于触发回退页。
type failingMeasurer struct {
	*fpdfrenderer.Renderer
	failOn string
}

func (m failingMeasurer) LayoutLines(text string, width float64, font layout.Font, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	if strings.Contains(text, m.failOn) {
		return nil, errors.New("measure: 拒绝排版")
	}
	return m.Renderer.LayoutLines(text, width, font, fontSize, lineHeight)
}

type fakeFetcher struct {
	page source.Page
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (source.Page, error) {
	f.urls = append(f.urls, rawURL)
	if f.err != nil {
		return source.Page{}, f.err
	}
	page := f.page
	page.URL = rawURL
	return page, nil
}

func TestConvertTableCSV(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.ConvertTable(context.Background(), "report.csv", []byte("name,value\nalpha,1\nbeta,2\n"))
	if err != nil {
		t.Fatalf("ConvertTable: %v", err)
	}
	if !strings.HasPrefix(string(res.Data), "%PDF-") {
		t.Fatalf("expected PDF output")
	}
	if res.PageCount != 1 || res.FileSizeBytes != int64(len(res.Data)) {
		t.Fatalf("unexpected result: pages=%d size=%d", res.PageCount, res.FileSizeBytes)
	}
	if want := "converted_1706779800000.pdf"; res.Filename != want {
		t.Fatalf("expected filename %q, got %q", want, res.Filename)
	}
	if res.Title != "Sheet1" || len(res.Warnings) != 0 {
		t.Fatalf("unexpected title/warnings: %q %v", res.Title, res.Warnings)
	}
	if !strings.HasPrefix(res.DataURL(), "data:application/pdf;base64,JVBERi") {
		t.Fatalf("unexpected data URL prefix: %.40s", res.DataURL())
	}
}

func TestConvertSheetsKeepsOrder(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.ConvertSheets(context.Background(), []source.Sheet{
		sheet("Alpha", []string{"a"}, []string{"1"}),
		sheet("Beta", []string{"b"}, []string{"2"}),
		sheet("Gamma", []string{"c"}, []string{"3"}),
	})
	if err != nil {
		t.Fatalf("ConvertSheets: %v", err)
	}
	if res.PageCount != 3 {
		t.Fatalf("expected 3 pages, got %d", res.PageCount)
	}
	want := []layout.OutlineEntry{{Title: "Alpha", Page: 0}, {Title: "Beta", Page: 1}, {Title: "Gamma", Page: 2}}
	if diff := cmp.Diff(want, res.Document.Outline); diff != "" {
		t.Fatalf("outline mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertSheetsSkipsEmpty(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.ConvertSheets(context.Background(), []source.Sheet{
		sheet("Empty"),
		sheet("Data", []string{"k"}, []string{"v"}),
	})
	if err != nil {
		t.Fatalf("ConvertSheets: %v", err)
	}
	if res.PageCount != 1 || len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], `"Empty"`) {
		t.Fatalf("expected one page and a skip warning, got %d %v", res.PageCount, res.Warnings)
	}

	_, err = svc.ConvertSheets(context.Background(), []source.Sheet{sheet("A"), sheet("B")})
	if !errs.Is(err, errs.KindExtraction) {
		t.Fatalf("all empty sheets should be an extraction error, got %v", err)
	}
}

func TestConvertSheetsFallback(t *testing.T) {
	svc := newService(t, nil, convert.WithRenderer(failingMeasurer{Renderer: fpdfrenderer.NewRenderer(), failOn: "BOOM"}))
	res, err := svc.ConvertSheets(context.Background(), []source.Sheet{
		sheet("First", []string{"a"}, []string{"1"}),
		sheet("Broken", []string{"a"}, []string{"BOOM"}),
		sheet("Last", []string{"c"}, []string{"3"}),
	})
	if err != nil {
		t.Fatalf("ConvertSheets: %v", err)
	}
	if res.PageCount != 3 {
		t.Fatalf("expected 3 pages, got %d", res.PageCount)
	}
	if diff := cmp.Diff([]string{"First", "Broken", "Last"}, outlineTitles(res.Document)); diff != "" {
		t.Fatalf("outline mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Broken") {
		t.Fatalf("expected a fallback warning for the broken sheet, got %v", res.Warnings)
	}
}

func TestConvertLimits(t *testing.T) {
	small := newService(t, func(c *config.Config) { c.Limits.MaxTableSource = 8 })
	if _, err := small.ConvertTable(context.Background(), "a.csv", []byte("a,b\n1,2\n")); err != nil {
		t.Fatalf("data at the limit should pass, got %v", err)
	}
	if _, err := small.ConvertTable(context.Background(), "a.csv", []byte("a,b\n1,2\n3,4\n")); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("oversized source should be a validation error, got %v", err)
	}

	tiny := newService(t, func(c *config.Config) { c.Limits.MaxOutput = 100 })
	_, err := tiny.ConvertSheets(context.Background(), []source.Sheet{sheet("A", []string{"a"})})
	if !errs.Is(err, errs.KindSizeLimit) {
		t.Fatalf("oversized output should be a size limit error, got %v", err)
	}
}

func TestConvertCancelled(t *testing.T) {
	svc := newService(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.ConvertSheets(ctx, []source.Sheet{sheet("A", []string{"a"})}); err == nil {
		t.Fatalf("cancelled context should fail")
	}
}

const articleHTML = `<html><head><title>Release notes</title></head><body>
<nav>menu</nav>
<article><h1>Release notes</h1><h2>Fixes</h2><p>Tables no longer overflow.</p></article>
</body></html>`

func TestConvertURL(t *testing.T) {
	fetcher := &fakeFetcher{page: source.Page{HTML: []byte(articleHTML)}}
	svc := newService(t, nil, convert.WithFetcher(fetcher))
	res, err := svc.ConvertURL(context.Background(), "  example.com/blog/notes ")
	if err != nil {
		t.Fatalf("ConvertURL: %v", err)
	}
	if diff := cmp.Diff([]string{"https://example.com/blog/notes"}, fetcher.urls); diff != "" {
		t.Fatalf("fetched urls mismatch (-want +got):\n%s", diff)
	}
	if res.Title != "Release notes" || res.SourceURL != "https://example.com/blog/notes" {
		t.Fatalf("unexpected title/source: %q %q", res.Title, res.SourceURL)
	}
	if !strings.HasPrefix(res.Filename, "example.com") || !strings.HasSuffix(res.Filename, "-2024-02-01.pdf") {
		t.Fatalf("unexpected filename %q", res.Filename)
	}
	if res.PageCount != 1 {
		t.Fatalf("expected 1 page, got %d", res.PageCount)
	}
}

func TestConvertURLErrors(t *testing.T) {
	fetcher := &fakeFetcher{err: errs.Fetch("test", "Could not reach the website")}
	svc := newService(t, nil, convert.WithFetcher(fetcher))
	if _, err := svc.ConvertURL(context.Background(), "http://localhost/admin"); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("localhost should be rejected, got %v", err)
	}
	if len(fetcher.urls) != 0 {
		t.Fatalf("rejected URLs must not be fetched")
	}
	if _, err := svc.ConvertURL(context.Background(), "https://example.com"); !errs.Is(err, errs.KindFetch) {
		t.Fatalf("fetch failures should propagate, got %v", err)
	}
}

func TestConvertMarkdownAndHTML(t *testing.T) {
	svc := newService(t, nil)
	res, err := svc.ConvertMarkdown(context.Background(), "notes/readme.md", []byte("# Notes\n\nFirst paragraph.\n\n## Next\n\n- item\n"))
	if err != nil {
		t.Fatalf("ConvertMarkdown: %v", err)
	}
	if res.Filename != "readme.pdf" || res.Title != "Notes" {
		t.Fatalf("unexpected markdown result: %q %q", res.Filename, res.Title)
	}

	res, err = svc.ConvertHTML(context.Background(), "page.html", []byte(articleHTML), "")
	if err != nil {
		t.Fatalf("ConvertHTML: %v", err)
	}
	if res.Filename != "page.pdf" || res.Title != "Release notes" || res.SourceURL != "" {
		t.Fatalf("unexpected html result: %+v", res)
	}
}

func TestMergeDocuments(t *testing.T) {
	svc := newService(t, nil)
	first, err := svc.ConvertSheets(context.Background(), []source.Sheet{
		sheet("A1", []string{"a"}), sheet("A2", []string{"b"}),
	})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.ConvertSheets(context.Background(), []source.Sheet{
		sheet("B1", []string{"a"}), sheet("B2", []string{"b"}), sheet("B3", []string{"c"}),
	})
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	res, err := svc.MergeDocuments(context.Background(), []*layout.Document{first.Document, second.Document})
	if err != nil {
		t.Fatalf("MergeDocuments: %v", err)
	}
	if res.PageCount != 5 || res.FileCount != 2 {
		t.Fatalf("expected 5 pages from 2 sources, got %d/%d", res.PageCount, res.FileCount)
	}
	for i, p := range res.Document.Pages {
		if p.Index != i {
			t.Fatalf("page %d has index %d", i, p.Index)
		}
	}
	if res.Filename != "merged_document.pdf" || res.Title != "Merged Document - 2024-02-01" {
		t.Fatalf("unexpected filename/title: %q %q", res.Filename, res.Title)
	}

	if _, err := svc.MergeDocuments(context.Background(), []*layout.Document{first.Document}); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("single source should be a validation error, got %v", err)
	}
}

func TestMergeFiles(t *testing.T) {
	svc := newService(t, nil)
	var files []assemble.File
	for i, names := range [][]string{{"a", "b"}, {"c", "d", "e"}} {
		var sheets []source.Sheet
		for _, n := range names {
			sheets = append(sheets, sheet(n, []string{n}))
		}
		res, err := svc.ConvertSheets(context.Background(), sheets)
		if err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		files = append(files, assemble.File{Name: names[0] + ".pdf", Data: res.Data})
	}

	res, err := svc.MergeFiles(context.Background(), files)
	if err != nil {
		t.Fatalf("MergeFiles: %v", err)
	}
	if res.PageCount != 5 || res.FileCount != 2 || res.Document != nil {
		t.Fatalf("unexpected merge result: pages=%d files=%d", res.PageCount, res.FileCount)
	}
	if !strings.HasPrefix(string(res.Data), "%PDF-") {
		t.Fatalf("expected PDF output")
	}
	if res.Title != "Merged Document - 2024-02-01" {
		t.Fatalf("unexpected merge title %q", res.Title)
	}
}

func TestRunJob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "q2.csv"), []byte("region,total\nnorth,12\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err := dsl.ParseString(`job "Quarterly" {
  output "q-${date}"
  page Letter landscape
  meta { author: "Finance" }
  sheet "Inline" { row "k" "v"; row "a" 1 }
  import "q2.csv"
  flow "Notes" { p "Numbers are preliminary." }
}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	job, err := dsl.Compile(file, dir, config.Default())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	svc := newService(t, nil)
	res, err := svc.RunJob(context.Background(), job)
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if res.Filename != "q-2024-02-01.pdf" {
		t.Fatalf("unexpected filename %q", res.Filename)
	}
	if diff := cmp.Diff([]string{"Inline", "Sheet1", "Notes"}, outlineTitles(res.Document)); diff != "" {
		t.Fatalf("outline mismatch (-want +got):\n%s", diff)
	}
	meta := res.Document.Meta
	if meta.Title != "Quarterly" || meta.Author != "Finance" || !meta.Created.Equal(fixedNow) {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if p := res.Document.Pages[0]; p.Width <= p.Height {
		t.Fatalf("job page options should apply, got %vx%v", p.Width, p.Height)
	}
}

func TestRunJobEmptySheets(t *testing.T) {
	compile := func(src string) *dsl.Job {
		t.Helper()
		file, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		job, err := dsl.Compile(file, "", config.Default())
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		return job
	}
	svc := newService(t, nil)

	res, err := svc.RunJob(context.Background(), compile(`job "x" { sheet "Empty" { } sheet "Data" { row "k"; row "v" } }`))
	if err != nil {
		t.Fatalf("RunJob: %v", err)
	}
	if diff := cmp.Diff([]string{"Data"}, outlineTitles(res.Document)); diff != "" {
		t.Fatalf("outline mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) == 0 || res.Warnings[0] != `Sheet "Empty" is empty and was skipped` {
		t.Fatalf("expected skip warning, got %v", res.Warnings)
	}

	_, err = svc.RunJob(context.Background(), compile(`job "x" { sheet "A" { } sheet "B" { } }`))
	if !errs.Is(err, errs.KindExtraction) {
		t.Fatalf("all-empty job should be an extraction error, got %v", err)
	}
}

func TestRunJobLimits(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"big.csv":   "a,b\n1,2\n3,4\n5,6\n",
		"notes.md":  "# Notes\n\nThis paragraph is longer than the limit.\n",
		"page.html": articleHTML,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	compile := func(item string) *dsl.Job {
		t.Helper()
		file, err := dsl.ParseString("job \"Limits\" {\n  " + item + "\n}")
		if err != nil {
			t.Fatalf("parse %s: %v", item, err)
		}
		job, err := dsl.Compile(file, dir, config.Default())
		if err != nil {
			t.Fatalf("compile %s: %v", item, err)
		}
		return job
	}

	svc := newService(t, func(c *config.Config) {
		c.Limits.MaxTableSource = 8
		c.Limits.MaxFlowSource = 16
	})
	for _, item := range []string{`import "big.csv"`, `markdown "notes.md"`, `html "page.html"`} {
		if _, err := svc.RunJob(context.Background(), compile(item)); !errs.Is(err, errs.KindValidation) {
			t.Fatalf("%s: oversized source should be a validation error, got %v", item, err)
		}
	}

	fetcher := &fakeFetcher{page: source.Page{HTML: []byte(articleHTML)}}
	web := newService(t, func(c *config.Config) { c.Limits.MaxFlowSource = 16 }, convert.WithFetcher(fetcher))
	_, err := web.RunJob(context.Background(), compile(`url "https://example.com/notes"`))
	if !errs.Is(err, errs.KindFetch) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("oversized page should be a fetch error, got %v", err)
	}

	roomy := newService(t, func(c *config.Config) { c.Limits.MaxTableSource = 64 })
	if _, err := roomy.RunJob(context.Background(), compile(`import "big.csv"`)); err != nil {
		t.Fatalf("source within the limit should pass, got %v", err)
	}
}
