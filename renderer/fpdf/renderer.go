// Package fpdfrenderer 使用 codeberg.org/go-pdf/fpdf 输出 PDF。
//
// 与 canvas 后端相比，它只使用 PDF 核心字体（Helvetica），不嵌入字体文件，
// 输出体积更小，并且会把 Document.Outline 写成 PDF 书签。
package fpdfrenderer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"codeberg.org/go-pdf/fpdf"

	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
)

const (
	coreFamily = "Helvetica"
	// Helvetica 的上升部（1/1000 em）
	coreAscent = 0.718

	tableBorderWidth = 0.2
)

var headerFill = layout.Color{R: 240, G: 240, B: 240}

// Renderer 实现 renderer.Renderer 与 layout.Typesetter。
type Renderer struct {
	mu      sync.Mutex
	measure *fpdf.Fpdf
	tr      func(string) string
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

// NewRenderer 创建使用核心字体的渲染器。
func NewRenderer() *Renderer {
	m := newPDF()
	return &Renderer{measure: m, tr: m.UnicodeTranslatorFromDescriptor("")}
}

func newPDF() *fpdf.Fpdf {
	f := fpdf.New("P", "mm", "A4", "")
	f.SetMargins(0, 0, 0)
	f.SetAutoPageBreak(false, 0)
	return f
}

// LayoutLines 按核心字体的字宽折行，单位均为 mm。
func (r *Renderer) LayoutLines(content string, width float64, font layout.Font, fontSize, lineHeight float64) ([]layout.TextLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.useFont(font, fontSize); err != nil {
		return nil, err
	}
	return layout.WrapText(content, width, lineHeight, r.width), nil
}

// TextWidth 返回最宽一行的宽度（mm）。
func (r *Renderer) TextWidth(content string, font layout.Font, fontSize float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.useFont(font, fontSize); err != nil {
		return 0, err
	}
	maxW := 0.0
	for _, line := range layout.WrapText(content, 0, 0, r.width) {
		maxW = max(maxW, line.Width)
	}
	return maxW, nil
}

func (r *Renderer) useFont(font layout.Font, fontSize float64) error {
	r.measure.SetFont(coreFamily, fontStyle(font), 0)
	r.measure.SetFontUnitSize(fontSize)
	if err := r.measure.Error(); err != nil {
		return fmt.Errorf("设置测量字体失败: %w", err)
	}
	return nil
}

func (r *Renderer) width(s string) float64 {
	return r.measure.GetStringWidth(r.tr(s))
}

// Render 将文档绘制为 PDF。
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	f := newPDF()
	f.SetCompression(doc.Compact)
	applyMeta(f, doc.Meta)

	marks := map[int][]layout.OutlineEntry{}
	for _, e := range doc.Outline {
		marks[e.Page] = append(marks[e.Page], e)
	}

	for i, page := range doc.Pages {
		f.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		for _, e := range marks[i] {
			f.Bookmark(r.tr(e.Title), max(e.Level, 0), 0)
		}
		drawPage(f, r.tr, page)
		if err := f.Error(); err != nil {
			return nil, fmt.Errorf("绘制第 %d 页失败: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func applyMeta(f *fpdf.Fpdf, meta layout.DocumentMeta) {
	f.SetTitle(meta.Title, true)
	f.SetAuthor(meta.Author, true)
	f.SetSubject(meta.Subject, true)
	f.SetKeywords(strings.Join(meta.Keywords, " "), true)
	f.SetCreator(meta.Creator, true)
	if meta.Producer != "" {
		f.SetProducer(meta.Producer, true)
	}
	if !meta.Created.IsZero() {
		f.SetCreationDate(meta.Created)
	}
	if !meta.Modified.IsZero() {
		f.SetModificationDate(meta.Modified)
	}
}

func drawPage(f *fpdf.Fpdf, tr func(string) string, page layout.Page) {
	for _, tb := range page.Texts {
		drawTextBox(f, tr, tb)
	}
	for _, table := range page.Tables {
		if len(table.ColumnWidths) == 0 {
			continue
		}
		f.SetLineWidth(tableBorderWidth)
		f.SetDrawColor(int(table.BorderColor.R), int(table.BorderColor.G), int(table.BorderColor.B))
		for _, row := range table.Rows {
			fill := layout.Color{R: 255, G: 255, B: 255}
			if row.IsHeader {
				fill = headerFill
			}
			f.SetFillColor(int(fill.R), int(fill.G), int(fill.B))
			x := table.X
			for idx, cell := range row.Cells {
				w := table.ColumnWidths[min(idx, len(table.ColumnWidths)-1)]
				f.Rect(x, row.Y, w, row.Height, "FD")
				drawTextBox(f, tr, cell.Text)
				x += w
			}
		}
	}
}

func drawTextBox(f *fpdf.Fpdf, tr func(string) string, tb layout.TextBox) {
	f.SetFont(coreFamily, fontStyle(tb.Font), 0)
	f.SetFontUnitSize(tb.FontSize)
	f.SetTextColor(int(tb.Color.R), int(tb.Color.G), int(tb.Color.B))

	lines := tb.Lines
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: tb.Content, Width: tb.Width, Height: tb.LineHeight}}
	}
	y := tb.Y
	for _, line := range lines {
		y += line.GapBefore
		lh := line.Height
		if lh <= 0 {
			lh = tb.LineHeight
		}
		if line.Content != "" {
			text := tr(line.Content)
			x := tb.X
			switch tb.Align {
			case "center":
				x += (tb.Width - f.GetStringWidth(text)) / 2
			case "right":
				x += tb.Width - f.GetStringWidth(text)
			}
			baseline := y + max(lh-tb.FontSize, 0)/2 + coreAscent*tb.FontSize
			f.Text(x, baseline, text)
		}
		y += lh
	}
}

func fontStyle(font layout.Font) string {
	if font.Bold() {
		return "B"
	}
	return ""
}
