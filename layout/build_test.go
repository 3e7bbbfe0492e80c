package layout

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
)

func smallTable(title string, cells ...string) content.TableUnit {
	return content.TableUnit{Title: title, Header: []string{"k", "v"}, Rows: [][]string{cells}}
}

func TestBuildThreeSheetsThreePages(t *testing.T) {
	units := []content.Unit{smallTable("Alpha", "1", "2"), smallTable("Beta", "3", "4"), smallTable("Gamma", "5", "6")}
	doc, results, err := Build(units, BuildOptions{Geometry: a4(), Table: DefaultTableOptions(), Typesetter: stubTypesetter{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("期望 3 页，实际 %d", doc.PageCount())
	}
	for i, name := range []string{"Alpha", "Beta", "Gamma"} {
		p := doc.Pages[i]
		if p.Index != i || p.Texts[0].Content != name {
			t.Fatalf("第 %d 页应为 %s，实际 index=%d title=%q", i, name, p.Index, p.Texts[0].Content)
		}
		if results[i].Fallback {
			t.Fatalf("%s 不应回退", name)
		}
	}
	wantOutline := []OutlineEntry{{Title: "Alpha", Page: 0}, {Title: "Beta", Page: 1}, {Title: "Gamma", Page: 2}}
	if diff := cmp.Diff(wantOutline, doc.Outline); diff != "" {
		t.Fatalf("大纲 (-want +got):\n%s", diff)
	}
	if w := Warnings(results); len(w) != 0 {
		t.Fatalf("不应有警告: %v", w)
	}
}

func TestBuildFallbackKeepsOtherUnits(t *testing.T) {
	units := []content.Unit{
		smallTable("Alpha", "1", "2"),
		smallTable("Beta", "BOOM", "x"),
		content.FlowUnit{Title: "Notes", Blocks: []content.Block{{Text: "fine"}}},
	}
	doc, results, err := Build(units, BuildOptions{Geometry: a4(), Table: DefaultTableOptions(), Typesetter: stubTypesetter{failOn: "BOOM"}})
	if err != nil {
		t.Fatalf("回退应吸收 LayoutError: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("期望 3 页，实际 %d", doc.PageCount())
	}
	if !results[1].Fallback || results[0].Fallback || results[2].Fallback {
		t.Fatalf("只有 Beta 应回退: %+v", results)
	}
	warnings := Warnings(results)
	if len(warnings) != 1 || !strings.Contains(warnings[0], `"Beta"`) {
		t.Fatalf("警告错误: %v", warnings)
	}

	fb := doc.Pages[1]
	if len(fb.Tables) != 0 {
		t.Fatalf("回退页不应包含表格")
	}
	var all []string
	for _, tb := range fb.Texts {
		all = append(all, tb.Content)
	}
	joined := strings.Join(all, "\n")
	for _, want := range []string{"Beta", "Error displaying table data for sheet: Beta", "k | v", "BOOM | x"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("回退页缺少 %q:\n%s", want, joined)
		}
	}
	if len(doc.Pages[0].Tables) != 1 || doc.Pages[2].Texts[0].Content != "fine" {
		t.Fatalf("其他单元应保持正常排版")
	}
}

func TestBuildFallbackClipsOversizedTitle(t *testing.T) {
	long := content.TableUnit{Title: strings.Repeat("word ", 3000), Header: []string{"k"}, Rows: [][]string{{"v"}}}
	units := []content.Unit{smallTable("Alpha", "1", "2"), long, smallTable("Gamma", "5", "6")}
	doc, results, err := Build(units, BuildOptions{Geometry: a4(), Table: DefaultTableOptions(), Typesetter: EstimateTypesetter{}})
	if err != nil {
		t.Fatalf("超长标题应由回退页吸收: %v", err)
	}
	if doc.PageCount() != 3 || !results[1].Fallback || results[0].Fallback || results[2].Fallback {
		t.Fatalf("期望 3 页且只有第二个单元回退，实际 %d 页 %+v", doc.PageCount(), results)
	}
	fb := doc.Pages[1]
	if len(fb.Texts) == 0 || fb.Texts[0].Font != fontBold {
		t.Fatalf("回退页应以标题开头: %+v", fb.Texts)
	}
	if n := len(fb.Texts[0].Lines); n == 0 || n > fallbackTitleMax {
		t.Fatalf("回退页标题应截为 1..%d 行，实际 %d", fallbackTitleMax, n)
	}
	g := a4()
	for _, tb := range fb.Texts {
		if tb.Y < g.Top()-epsilon || tb.Y+tb.Height > g.Bottom()+epsilon {
			t.Fatalf("回退页内容越界: y=%.2f h=%.2f", tb.Y, tb.Height)
		}
	}
}

func TestFallbackAlwaysOnePage(t *testing.T) {
	g := Geometry{Width: 50, Height: 30, Margin: Uniform(10)}
	pages := layoutFallback(smallTable(strings.Repeat("x", 400), "1", "2"), g, stubTypesetter{failOn: "x"})
	if len(pages) != 1 {
		t.Fatalf("回退结果应恰好一页，实际 %d", len(pages))
	}
}

func TestFallbackPreview(t *testing.T) {
	rows := make([][]string, 20)
	for i := range rows {
		rows[i] = []string{"a", "b"}
	}
	preview := FallbackPreview(content.TableUnit{Title: "t", Header: []string{"h1", "h2"}, Rows: rows})
	lines := strings.Split(preview, "\n")
	if len(lines) != 10 || lines[0] != "h1 | h2" || lines[9] != "a | b" {
		t.Fatalf("预览应包含前 10 行: %q", lines)
	}

	blocks := make([]content.Block, 15)
	for i := range blocks {
		blocks[i] = content.Block{Text: fmt.Sprintf("b%d", i+1)}
	}
	flowLines := strings.Split(FallbackPreview(content.FlowUnit{Title: "f", Blocks: blocks}), "\n")
	if len(flowLines) != 10 || flowLines[9] != "b10" {
		t.Fatalf("流式预览应只包含前 10 个段落: %q", flowLines)
	}

	long := content.FlowUnit{Title: "f", Blocks: []content.Block{{Text: strings.Repeat("é", 800)}}}
	if n := utf8.RuneCountInString(FallbackPreview(long)); n != 500 {
		t.Fatalf("预览应截断为 500 个字符，实际 %d", n)
	}
	if got := FallbackWarning(long); got != "Error displaying content for: f" {
		t.Fatalf("流式回退提示错误: %q", got)
	}
}

func TestBuildValidation(t *testing.T) {
	if _, _, err := Build(nil, BuildOptions{Geometry: a4(), Typesetter: stubTypesetter{}}); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("空输入应返回 ValidationError，实际 %v", err)
	}
	if _, _, err := Build([]content.Unit{smallTable("a")}, BuildOptions{Geometry: a4()}); err == nil {
		t.Fatalf("缺少 Typesetter 应报错")
	}
}

func TestEncodeDebug(t *testing.T) {
	doc, _, err := Build([]content.Unit{smallTable("Alpha", "1", "2")}, BuildOptions{Geometry: a4(), Typesetter: stubTypesetter{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var buf bytes.Buffer
	if err := EncodeDebug(&buf, doc); err != nil {
		t.Fatalf("EncodeDebug: %v", err)
	}
	var view struct {
		Summary []struct {
			Index  int `json:"index"`
			Tables int `json:"tables"`
			Rows   int `json:"rows"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &view); err != nil {
		t.Fatalf("调试 JSON 无法解析: %v", err)
	}
	if len(view.Summary) != 1 || view.Summary[0].Tables != 1 || view.Summary[0].Rows != 2 {
		t.Fatalf("调试概要错误: %+v", view.Summary)
	}
}
