package layout

// Typesetter 负责测量文本并根据宽度约束将文本拆成可绘制的行。
// 约定：width、fontSize 与 lineHeight 均为毫米（mm）。
type Typesetter interface {
	LayoutLines(content string, width float64, font Font, fontSize, lineHeight float64) ([]TextLine, error)
	TextWidth(content string, font Font, fontSize float64) (float64, error)
}

// TableOptions 控制表格排版。
type TableOptions struct {
	FitToPage    bool // 平均分配列宽；否则按自然宽度
	RepeatHeader bool // 续页重复表头
}

// DefaultTableOptions 返回默认表格选项：自然列宽、续页重复表头。
func DefaultTableOptions() TableOptions {
	return TableOptions{RepeatHeader: true}
}

// BuildOptions 配置布局阶段所需的依赖。
type BuildOptions struct {
	Geometry   Geometry
	Table      TableOptions
	Typesetter Typesetter
	Meta       DocumentMeta
}
