package layout

import (
	"github.com/ByLCY/quire/errs"
)

const epsilon = 1e-6

// Box 是可以放入页面的已定位元素：TextBox 或 TableBox。
type Box interface {
	top() float64
	height() float64
	appendTo(p *Page)
}

func (tb TextBox) top() float64 { return tb.Y }
func (tb TextBox) height() float64 { return tb.Height }
func (tb TextBox) appendTo(p *Page) { p.Texts = append(p.Texts, tb) }
func (t TableBox) top() float64 { return t.Y }
func (t TableBox) height() float64 { return t.Height() }
func (t TableBox) appendTo(p *Page) { p.Tables = append(p.Tables, t) }

// Writer 维护当前打开的页面与内容光标，负责分页。
// 已提交的页面不再修改；页码从 0 开始连续递增。
type Writer struct {
	geo       Geometry
	committed []Page
	open      *Page
	cursorY   float64
}

// NewWriter 创建一个写入器并打开第一页。
func NewWriter(g Geometry) *Writer {
	w := &Writer{geo: g}
	w.openPage()
	return w
}

// Geometry 返回写入器使用的页面几何。
func (w *Writer) Geometry() Geometry { return w.geo }

// Top 返回内容区域顶部。
func (w *Writer) Top() float64 { return w.geo.Top() }

// Bottom 返回内容区域底部。
func (w *Writer) Bottom() float64 { return w.geo.Bottom() }

// Cursor 返回当前页的内容光标。
func (w *Writer) Cursor() float64 { return w.cursorY }

// PageIndex 返回当前打开页的序号。
func (w *Writer) PageIndex() int {
	w.ensureOpen()
	return w.open.Index
}

// Fits 报告高度为 h 的内容能否放在当前光标处而不越过底部。
func (w *Writer) Fits(h float64) bool {
	if w.open == nil {
		return w.geo.Top()+h <= w.geo.Bottom()+epsilon
	}
	return w.cursorY+h <= w.geo.Bottom()+epsilon
}

// Advance 为高度 h 的内容预留空间并返回其顶部坐标。
// 当前页放不下时先换页（broke=true）；h 超过整页可用高度时返回 LayoutError。
func (w *Writer) Advance(h float64) (y float64, broke bool, err error) {
	if h < 0 {
		return 0, false, errs.Layout("layout.writer", "内容高度不能为负：%g", h)
	}
	if h > w.geo.PrintableHeight()+epsilon {
		return 0, false, errs.Layout("layout.writer", "内容高度 %.2fmm 超过页面可用高度 %.2fmm", h, w.geo.PrintableHeight())
	}
	w.ensureOpen()
	if !w.Fits(h) {
		w.Break()
		broke = true
	}
	y = w.cursorY
	w.cursorY += h
	return y, broke, nil
}

// Skip 将光标下移 gap；越过底部时由下一次 Advance 负责换页。
func (w *Writer) Skip(gap float64) {
	if gap <= 0 {
		return
	}
	w.ensureOpen()
	w.cursorY += gap
}

// Break 提交当前页并打开新页，光标回到内容区域顶部。
func (w *Writer) Break() {
	w.Commit()
	w.openPage()
}

// Commit 提交当前页；之后的写入会打开新页。
func (w *Writer) Commit() {
	if w.open == nil {
		return
	}
	w.open.CursorY = w.cursorY
	w.committed = append(w.committed, *w.open)
	w.open = nil
}

// Place 将元素放入当前页，元素必须完整落在内容区域内。
func (w *Writer) Place(b Box) error {
	w.ensureOpen()
	top := b.top()
	if top < w.geo.Top()-epsilon || top+b.height() > w.geo.Bottom()+epsilon {
		return errs.Layout("layout.writer", "元素超出内容区域：y=%.2f h=%.2f 区域=[%.2f, %.2f]", top, b.height(), w.geo.Top(), w.geo.Bottom())
	}
	b.appendTo(w.open)
	return nil
}

// Finish 提交剩余页面并返回全部页面。末尾的空白页会被丢弃，
// 但结果至少包含一页。
func (w *Writer) Finish() []Page {
	if w.open != nil {
		empty := len(w.open.Texts) == 0 && len(w.open.Tables) == 0
		if empty && len(w.committed) > 0 {
			w.open = nil
		} else {
			w.Commit()
		}
	}
	if len(w.committed) == 0 {
		w.openPage()
		w.Commit()
	}
	out := w.committed
	w.committed = nil
	return out
}

func (w *Writer) ensureOpen() {
	if w.open == nil {
		w.openPage()
	}
}

func (w *Writer) openPage() {
	w.open = &Page{
		Index:  len(w.committed),
		Width:  w.geo.Width,
		Height: w.geo.Height,
		Margin: w.geo.Margin,
	}
	w.cursorY = w.geo.Top()
}
