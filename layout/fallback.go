package layout

import (
	"strings"

	"github.com/ByLCY/quire/content"
)

const (
	fallbackRows     = 10
	fallbackChars    = 500
	fallbackWarnPt   = 10.0
	fallbackBodyPt   = 8.0
	fallbackLineMult = 1.3
	fallbackTitleMax = 2 // 回退页标题最多保留的行数
)

// FallbackWarning 返回回退页上显示的提示文字。
func FallbackWarning(unit content.Unit) string {
	if unit.Kind() == content.KindTable {
		return "Error displaying table data for sheet: " + unit.Name()
	}
	return "Error displaying content for: " + unit.Name()
}

// FallbackPreview 返回回退页上的原始内容预览：表格取前 10 行（含表头，
// 单元格以 " | " 连接），流式内容取前 10 个段落按行连接；结果截断为 500 个字符。
func FallbackPreview(unit content.Unit) string {
	var parts []string
	switch u := unit.(type) {
	case content.TableUnit:
		rows := make([][]string, 0, len(u.Rows)+1)
		if len(u.Header) > 0 {
			rows = append(rows, u.Header)
		}
		rows = append(rows, u.Rows...)
		for i, row := range rows {
			if i == fallbackRows {
				break
			}
			parts = append(parts, strings.Join(row, " | "))
		}
	case content.FlowUnit:
		for i, b := range u.Blocks {
			if i == fallbackRows {
				break
			}
			parts = append(parts, b.Text)
		}
	}
	return truncateRunes(strings.Join(parts, "\n"), fallbackChars)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// layoutFallback 为排版失败的单元生成一页回退内容：标题、提示与原始内容预览。
// 标题与预览超出一页的部分被截掉，结果总是恰好一页。
func layoutFallback(unit content.Unit, g Geometry, ts Typesetter) []Page {
	pages, err := fallbackWith(unit, g, ts)
	if err != nil {
		// 排版后端本身可能是失败原因，改用估算宽度再试一次。
		pages, err = fallbackWith(unit, g, EstimateTypesetter{})
	}
	if err != nil {
		return NewWriter(g).Finish()
	}
	return pages
}

func fallbackWith(unit content.Unit, g Geometry, ts Typesetter) ([]Page, error) {
	w := NewWriter(g)
	width := g.PrintableWidth()

	titleSize := Pt(tableTitleSizePt)
	if err := placeLines(w, unit.Name(), width, fontBold, titleSize, ColorText, ts, fallbackTitleMax); err != nil {
		return nil, err
	}
	if rest := w.Top() + titleBlock - w.Cursor(); rest > 0 {
		w.Skip(rest)
	}

	warnSize := Pt(fallbackWarnPt)
	if err := placeLines(w, FallbackWarning(unit), width, fontRegular, warnSize, ColorWarn, ts, 0); err != nil {
		return nil, err
	}
	w.Skip(warnSize)

	bodySize := Pt(fallbackBodyPt)
	if err := placeLines(w, FallbackPreview(unit), width, fontRegular, bodySize, ColorText, ts, 0); err != nil {
		return nil, err
	}
	pages := w.Finish()
	return pages[:1], nil
}

// placeLines 排版文本并只放入当前页能容纳的行；limit 大于 0 时最多放入 limit 行。
func placeLines(w *Writer, text string, width float64, font Font, size float64, color Color, ts Typesetter, limit int) error {
	lh := size * fallbackLineMult
	lines, err := layoutLines(ts, text, width, font, size, lh)
	if err != nil {
		return err
	}
	box := TextBox{
		X:          w.Geometry().Margin.Left,
		Y:          w.Cursor(),
		Width:      width,
		LineHeight: lh,
		Font:       font,
		FontSize:   size,
		Color:      color,
	}
	var kept []string
	for i, line := range lines {
		if (limit > 0 && i == limit) || !w.Fits(line.Height) {
			break
		}
		w.Skip(line.Height)
		box.Lines = append(box.Lines, line)
		box.Height += line.Height
		kept = append(kept, line.Content)
	}
	if len(box.Lines) == 0 {
		return nil
	}
	box.Content = strings.Join(kept, "\n")
	return w.Place(box)
}
