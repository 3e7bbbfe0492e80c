package layout

import (
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
)

// 表格排版参数：字号以 pt 给出，其余为 mm。
const (
	tableTitleSizePt  = 16.0
	tableHeaderSizePt = 9.0
	tableBodySizePt   = 8.0
	tableLineFactor   = 1.15
	cellPadding       = 2.0
	titleBlock        = 20.0
)

var (
	fontRegular = Font{Family: FamilyBody}
	fontBold    = Font{Family: FamilyBody, Style: StyleBold}
)

// LayoutTable 将一个表格单元排入 w。调用方需保证 w 处于新页顶部。
// 标题占据第一页顶部的 titleBlock；行放不下时换页，并按需重复表头。
func LayoutTable(unit content.TableUnit, w *Writer, opts TableOptions, ts Typesetter) error {
	if ts == nil {
		return errs.Layout("layout.table", "缺少排版后端 Typesetter")
	}
	g := w.Geometry()
	if err := placeTitle(w, unit.Title, ts); err != nil {
		return err
	}
	columns := unit.Columns()
	if columns == 0 {
		return nil
	}

	widths, err := columnWidths(unit, columns, g.PrintableWidth(), opts.FitToPage, ts)
	if err != nil {
		return err
	}
	t := &tableWriter{w: w, widths: widths, x: g.Margin.Left}

	var header *TableRow
	if len(unit.Header) > 0 {
		row, err := buildRow(unit.Header, widths, true, ts)
		if err != nil {
			return err
		}
		header = &row
		if err := t.add(row); err != nil {
			return err
		}
	}

	for _, cells := range unit.Rows {
		row, err := buildRow(cells, widths, false, ts)
		if err != nil {
			return err
		}
		if row.Height > g.PrintableHeight()+epsilon {
			return errs.Layout("layout.table", "表格 %q 的行高 %.2fmm 超过页面可用高度", unit.Title, row.Height)
		}
		if !w.Fits(row.Height) {
			if err := t.flush(); err != nil {
				return err
			}
			w.Break()
			if header != nil && opts.RepeatHeader && header.Height+row.Height <= g.PrintableHeight()+epsilon {
				if err := t.add(*header); err != nil {
					return err
				}
			}
		}
		if err := t.add(row); err != nil {
			return err
		}
	}
	return t.flush()
}

// placeTitle 在页面顶部放置 16pt 粗体标题并预留标题区域。
func placeTitle(w *Writer, title string, ts Typesetter) error {
	g := w.Geometry()
	size := Pt(tableTitleSizePt)
	lh := size * tableLineFactor
	lines, err := layoutLines(ts, title, g.PrintableWidth(), fontBold, size, lh)
	if err != nil {
		return err
	}
	h := linesHeight(lines)
	y, _, err := w.Advance(max(titleBlock, h))
	if err != nil {
		return err
	}
	return w.Place(TextBox{
		Content:    title,
		X:          g.Margin.Left,
		Y:          y,
		Width:      g.PrintableWidth(),
		LineHeight: lh,
		Font:       fontBold,
		FontSize:   size,
		Color:      ColorText,
		Lines:      lines,
		Height:     h,
	})
}

// tableWriter 把同一页上的连续行收集为一个 TableBox 片段。
type tableWriter struct {
	w       *Writer
	widths  []float64
	x       float64
	segment *TableBox
}

func (t *tableWriter) add(row TableRow) error {
	// 片段必须在换页之前放入当前页。
	if !t.w.Fits(row.Height) {
		if err := t.flush(); err != nil {
			return err
		}
	}
	y, _, err := t.w.Advance(row.Height)
	if err != nil {
		return err
	}
	if t.segment == nil {
		total := 0.0
		for _, cw := range t.widths {
			total += cw
		}
		t.segment = &TableBox{
			X:            t.x,
			Y:            y,
			Width:        total,
			ColumnWidths: append([]float64(nil), t.widths...),
			BorderColor:  ColorBorder,
		}
	}
	t.segment.Rows = append(t.segment.Rows, positionRow(row, t.x, y, t.widths))
	return nil
}

func (t *tableWriter) flush() error {
	if t.segment == nil || len(t.segment.Rows) == 0 {
		t.segment = nil
		return nil
	}
	seg := *t.segment
	t.segment = nil
	return t.w.Place(seg)
}

// buildRow 排版一行单元格（坐标尚未确定）。缺失的单元格按空白处理。
func buildRow(cells []string, widths []float64, header bool, ts Typesetter) (TableRow, error) {
	font, size := fontRegular, Pt(tableBodySizePt)
	if header {
		font, size = fontBold, Pt(tableHeaderSizePt)
	}
	lh := size * tableLineFactor
	row := TableRow{IsHeader: header, Cells: make([]TableCell, len(widths))}
	maxHeight := 0.0
	for i, cw := range widths {
		inner := cw - 2*cellPadding
		if inner <= 0 {
			return TableRow{}, errs.Layout("layout.table", "第 %d 列宽度 %.2fmm 不足以容纳内边距", i+1, cw)
		}
		text := content.Cell(cells, i)
		lines, err := layoutLines(ts, text, inner, font, size, lh)
		if err != nil {
			return TableRow{}, err
		}
		h := linesHeight(lines)
		row.Cells[i] = TableCell{Text: TextBox{
			Content:    text,
			Width:      inner,
			LineHeight: lh,
			Font:       font,
			FontSize:   size,
			Color:      ColorText,
			Lines:      lines,
			Height:     h,
		}}
		maxHeight = max(maxHeight, h)
	}
	row.Height = maxHeight + 2*cellPadding
	return row, nil
}

// positionRow 将行及其单元格移动到 (x, y)。
func positionRow(row TableRow, x, y float64, widths []float64) TableRow {
	out := row
	out.Y = y
	out.Cells = make([]TableCell, len(row.Cells))
	cx := x
	for i, cell := range row.Cells {
		tb := cell.Text.clone()
		tb.X = cx + cellPadding
		tb.Y = y + cellPadding
		out.Cells[i] = TableCell{Text: tb}
		cx += widths[i]
	}
	return out
}

// columnWidths 计算列宽。fit 时平均分配；否则使用自然宽度，总宽超出时
// 窄于平均值的列保留自然宽度，其余列平分剩余宽度。
func columnWidths(unit content.TableUnit, columns int, printable float64, fit bool, ts Typesetter) ([]float64, error) {
	widths := make([]float64, columns)
	fair := printable / float64(columns)
	if fit {
		for i := range widths {
			widths[i] = fair
		}
		return widths, nil
	}

	measure := func(text string, font Font, sizePt float64) (float64, error) {
		if text == "" {
			return 0, nil
		}
		w, err := ts.TextWidth(text, font, Pt(sizePt))
		if err != nil {
			return 0, errs.Wrap(errs.KindLayout, "layout.table", err, "测量单元格宽度失败")
		}
		return w, nil
	}
	for i := range widths {
		cw, err := measure(content.Cell(unit.Header, i), fontBold, tableHeaderSizePt)
		if err != nil {
			return nil, err
		}
		widths[i] = cw
	}
	for _, row := range unit.Rows {
		for i := range widths {
			cw, err := measure(content.Cell(row, i), fontRegular, tableBodySizePt)
			if err != nil {
				return nil, err
			}
			widths[i] = max(widths[i], cw)
		}
	}
	total := 0.0
	for i := range widths {
		widths[i] += 2 * cellPadding
		total += widths[i]
	}
	if total <= printable+epsilon {
		return widths, nil
	}

	remainder := printable
	wide := 0
	for _, cw := range widths {
		if cw < fair {
			remainder -= cw
		} else {
			wide++
		}
	}
	share := remainder / float64(wide)
	for i, cw := range widths {
		if cw >= fair {
			widths[i] = share
		}
	}
	return widths, nil
}
