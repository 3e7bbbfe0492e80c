package layout

import "time"

// 该文件定义布局结果，供布局计算、文档合并、渲染与调试 JSON 共用。
// 所有坐标、尺寸、字号与行高均以毫米（mm）保存。

// Document 保存布局后的页面与文档级信息。Build 返回后视为只读。
type Document struct {
	Pages   []Page         `json:"pages"`
	Meta    DocumentMeta   `json:"meta"`
	Outline []OutlineEntry `json:"outline,omitempty"`
	// Compact 要求渲染器尽量压缩输出（流压缩、对象流），不影响页面内容。
	Compact bool `json:"compact,omitempty"`
}

// PageCount 返回文档页数。
func (d *Document) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// OutlineEntry 对应 PDF 书签，Page 为 0 起始的页序号。
type OutlineEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
	Level int    `json:"level"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	Creator  string    `json:"creator,omitempty"`
	Producer string    `json:"producer,omitempty"`
	Keywords []string  `json:"keywords,omitempty"`
	Created  time.Time `json:"created,omitzero"`
	Modified time.Time `json:"modified,omitzero"`
}

// Page 记录页面尺寸、边距与可以直接渲染的元素。
// Index 在所属文档中从 0 开始连续递增；CursorY 为提交时内容光标的位置。
type Page struct {
	Index   int        `json:"index"`
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
	Margin  Margin     `json:"margin"`
	CursorY float64    `json:"cursorY"`
	Texts   []TextBox  `json:"texts"`
	Tables  []TableBox `json:"tables"`
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Uniform 返回四边相同的边距。
func Uniform(v float64) Margin {
	return Margin{Top: v, Right: v, Bottom: v, Left: v}
}

// Font 描述文本使用的字体族与样式（regular / bold）。
type Font struct {
	Family string `json:"family"`
	Style  string `json:"style,omitempty"`
}

// Bold 报告字体是否为粗体。
func (f Font) Bold() bool { return f.Style == StyleBold }

const (
	FamilyBody   = "Body"
	StyleRegular = ""
	StyleBold    = "bold"
)

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

var (
	ColorText   = Color{R: 30, G: 30, B: 30}
	ColorMuted  = Color{R: 128, G: 128, B: 128}
	ColorWarn   = Color{R: 180, G: 40, B: 40}
	ColorBorder = Color{R: 200, G: 200, B: 200}
)

// TextBox 表示一个已经排好坐标的文本块。
type TextBox struct {
	Content    string     `json:"content"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	LineHeight float64    `json:"lineHeight"`
	Font       Font       `json:"font"`
	FontSize   float64    `json:"fontSize"`
	Color      Color      `json:"color"`
	Lines      []TextLine `json:"lines"`
	Height     float64    `json:"height"`
	Align      string     `json:"align,omitempty"` // left/center/right（默认 left）
}

// FontSizePt 返回以 pt 表示的字号。
func (tb TextBox) FontSizePt() float64 { return tb.FontSize * MmToPt }

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// TableBox 保存一页之内的表格片段。
type TableBox struct {
	X            float64    `json:"x"`
	Y            float64    `json:"y"`
	Width        float64    `json:"width"`
	ColumnWidths []float64  `json:"columnWidths"`
	Rows         []TableRow `json:"rows"`
	BorderColor  Color      `json:"borderColor"`
}

// Height 返回片段内所有行的高度之和。
func (t TableBox) Height() float64 {
	h := 0.0
	for _, row := range t.Rows {
		h += row.Height
	}
	return h
}

// TableRow 记录每一行的高度与单元格；Cells 与 ColumnWidths 一一对应。
type TableRow struct {
	Y        float64     `json:"y"`
	Height   float64     `json:"height"`
	IsHeader bool        `json:"isHeader"`
	Cells    []TableCell `json:"cells"`
}

// TableCell 复用 TextBox 作为单元格内容。
type TableCell struct {
	Text TextBox `json:"text"`
}

// clone 深拷贝页面，合并文档时使用，保证源文档不被修改。
func (p Page) clone() Page {
	out := p
	if p.Texts != nil {
		out.Texts = make([]TextBox, len(p.Texts))
		for i, tb := range p.Texts {
			out.Texts[i] = tb.clone()
		}
	}
	if p.Tables != nil {
		out.Tables = make([]TableBox, len(p.Tables))
		for i, t := range p.Tables {
			nt := t
			nt.ColumnWidths = append([]float64(nil), t.ColumnWidths...)
			nt.Rows = make([]TableRow, len(t.Rows))
			for j, row := range t.Rows {
				nr := row
				nr.Cells = make([]TableCell, len(row.Cells))
				for k, cell := range row.Cells {
					nr.Cells[k] = TableCell{Text: cell.Text.clone()}
				}
				nt.Rows[j] = nr
			}
			out.Tables[i] = nt
		}
	}
	return out
}

func (tb TextBox) clone() TextBox {
	out := tb
	if tb.Lines != nil {
		out.Lines = append([]TextLine(nil), tb.Lines...)
	}
	return out
}

// ClonePages 深拷贝一组页面，并从 start 开始重新编号。
func ClonePages(pages []Page, start int) []Page {
	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = p.clone()
		out[i].Index = start + i
	}
	return out
}
