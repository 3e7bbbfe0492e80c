package layout

import (
	"testing"

	"github.com/ByLCY/quire/errs"
)

func testGeometry() Geometry {
	return Geometry{Width: 100, Height: 100, Margin: Uniform(10)}
}

func TestWriterAdvanceBreaks(t *testing.T) {
	w := NewWriter(testGeometry())
	for i, want := range []struct {
		y     float64
		broke bool
		page  int
	}{{10, false, 0}, {40, false, 0}, {10, true, 1}} {
		y, broke, err := w.Advance(30)
		if err != nil {
			t.Fatalf("Advance #%d: %v", i, err)
		}
		if y != want.y || broke != want.broke || w.PageIndex() != want.page {
			t.Fatalf("Advance #%d = (y=%g broke=%v page=%d)，期望 (%g %v %d)", i, y, broke, w.PageIndex(), want.y, want.broke, want.page)
		}
		if err := w.Place(TextBox{Content: "x", Y: y, Height: 30}); err != nil {
			t.Fatalf("Place #%d: %v", i, err)
		}
	}
	pages := w.Finish()
	if len(pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(pages))
	}
	for i, p := range pages {
		if p.Index != i {
			t.Fatalf("页码应连续递增：pages[%d].Index=%d", i, p.Index)
		}
	}
	if pages[0].CursorY != 70 || len(pages[0].Texts) != 2 {
		t.Fatalf("第一页状态异常: cursor=%g texts=%d", pages[0].CursorY, len(pages[0].Texts))
	}
}

func TestWriterRejectsOversizedContent(t *testing.T) {
	w := NewWriter(testGeometry())
	if _, _, err := w.Advance(80.5); !errs.Is(err, errs.KindLayout) {
		t.Fatalf("超过可用高度应返回 LayoutError，实际 %v", err)
	}
	if _, _, err := w.Advance(80); err != nil {
		t.Fatalf("恰好等于可用高度应允许: %v", err)
	}
	if err := w.Place(TextBox{Y: 85, Height: 10}); !errs.Is(err, errs.KindLayout) {
		t.Fatalf("越过底部的元素应被拒绝，实际 %v", err)
	}
	if err := w.Place(TextBox{Y: 5, Height: 1}); !errs.Is(err, errs.KindLayout) {
		t.Fatalf("高于顶部的元素应被拒绝，实际 %v", err)
	}
}

func TestWriterFinishDropsTrailingBlankPage(t *testing.T) {
	w := NewWriter(testGeometry())
	if err := w.Place(TextBox{Y: 10, Height: 5}); err != nil {
		t.Fatalf("Place: %v", err)
	}
	w.Break()
	if pages := w.Finish(); len(pages) != 1 {
		t.Fatalf("末尾空白页应被丢弃，实际 %d 页", len(pages))
	}

	if pages := NewWriter(testGeometry()).Finish(); len(pages) != 1 {
		t.Fatalf("空写入器也应返回一页，实际 %d 页", len(pages))
	}
}

func TestWriterSkipDefersBreak(t *testing.T) {
	w := NewWriter(testGeometry())
	w.Skip(75)
	if w.Fits(10) {
		t.Fatalf("光标在 85 时 10mm 不应放得下")
	}
	y, broke, err := w.Advance(10)
	if err != nil || !broke || y != 10 {
		t.Fatalf("Advance 应换页后返回顶部: y=%g broke=%v err=%v", y, broke, err)
	}
}
