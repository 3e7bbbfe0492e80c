package layout

import (
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
)

// 流式排版参数（pt）。
const (
	flowLineHeightPt  = 14.0
	flowBodySizePt    = 9.0
	flowSourceSizePt  = 8.0
	flowSourceGapPt   = 20.0
	headingBaseSizePt = 16.0
	headingMinSizePt  = 10.0
)

// HeadingSizePt 返回标题字号：max(16 - 2*level, 10)，level 限定在 1..6。
func HeadingSizePt(level int) float64 {
	level = min(max(level, 1), 6)
	return max(headingBaseSizePt-2*float64(level), headingMinSizePt)
}

// LayoutFlow 将一个流式单元排入 w。每行使用固定行高，行放不下时换页，
// 段落可以跨页。来源行只出现在第一页顶部，不占用流式光标之外的空间。
func LayoutFlow(unit content.FlowUnit, w *Writer, ts Typesetter) error {
	if ts == nil {
		return errs.Layout("layout.flow", "缺少排版后端 Typesetter")
	}
	g := w.Geometry()
	width := g.PrintableWidth()
	lh := Pt(flowLineHeightPt)

	if unit.Source != "" {
		size := Pt(flowSourceSizePt)
		text := "Source: " + unit.Source
		lines, err := layoutLines(ts, text, width, fontRegular, size, size*tableLineFactor)
		if err != nil {
			return err
		}
		h := linesHeight(lines)
		if err := w.Place(TextBox{
			Content:    text,
			X:          g.Margin.Left,
			Y:          w.Cursor(),
			Width:      width,
			LineHeight: size * tableLineFactor,
			Font:       fontRegular,
			FontSize:   size,
			Color:      ColorMuted,
			Lines:      lines,
			Height:     h,
		}); err != nil {
			return err
		}
		w.Skip(max(Pt(flowSourceGapPt), h))
	}

	for _, block := range unit.Blocks {
		font, sizePt := fontRegular, flowBodySizePt
		if block.Heading {
			font, sizePt = fontBold, HeadingSizePt(block.Level)
		}
		size := Pt(sizePt)
		lines, err := layoutLines(ts, block.Text, width, font, size, lh)
		if err != nil {
			return err
		}
		frag := &fragment{w: w, proto: TextBox{
			X:          g.Margin.Left,
			Width:      width,
			LineHeight: lh,
			Font:       font,
			FontSize:   size,
			Color:      ColorText,
		}}
		for _, line := range lines {
			line.Height = lh
			line.GapBefore = 0
			if err := frag.add(line); err != nil {
				return err
			}
		}
		if err := frag.flush(); err != nil {
			return err
		}
		w.Skip(lh * 0.5)
		if block.Heading {
			w.Skip(lh * 0.5)
		}
	}
	return nil
}

// fragment 把同一页上的连续行合并为一个 TextBox。
type fragment struct {
	w     *Writer
	proto TextBox
	box   *TextBox
}

func (f *fragment) add(line TextLine) error {
	if !f.w.Fits(line.Height) {
		if err := f.flush(); err != nil {
			return err
		}
	}
	y, _, err := f.w.Advance(line.Height)
	if err != nil {
		return err
	}
	if f.box == nil {
		box := f.proto
		box.Y = y
		f.box = &box
	}
	if f.box.Content != "" {
		f.box.Content += " "
	}
	f.box.Content += line.Content
	f.box.Lines = append(f.box.Lines, line)
	f.box.Height += line.Height
	return nil
}

func (f *fragment) flush() error {
	if f.box == nil {
		return nil
	}
	box := *f.box
	f.box = nil
	return f.w.Place(box)
}
