package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type debugView struct {
	Summary  []pageSummary `json:"summary"`
	Document *Document     `json:"document"`
}

type pageSummary struct {
	Index   int     `json:"index"`
	Texts   int     `json:"texts"`
	Tables  int     `json:"tables"`
	Rows    int     `json:"rows"`
	CursorY float64 `json:"cursorY"`
	Free    float64 `json:"free"` // 光标下方剩余高度（mm）
}

// EncodeDebug 将文档连同每页概要编码为缩进 JSON。
func EncodeDebug(w io.Writer, doc *Document) error {
	view := debugView{Document: doc}
	for _, p := range doc.Pages {
		s := pageSummary{Index: p.Index, Texts: len(p.Texts), Tables: len(p.Tables), CursorY: p.CursorY}
		for _, t := range p.Tables {
			s.Rows += len(t.Rows)
		}
		s.Free = p.Height - p.Margin.Bottom - p.CursorY
		view.Summary = append(view.Summary, s)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

// WriteDebugJSON 将布局结果输出为 JSON 文件，便于调试或可视化。
func WriteDebugJSON(doc *Document, path string) error {
	if doc == nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建调试文件失败: %w", err)
	}
	if err := EncodeDebug(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("写入调试 JSON 失败: %w", err)
	}
	return f.Close()
}
