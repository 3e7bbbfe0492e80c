package layout

import (
	"strings"

	"github.com/ByLCY/quire/errs"
)

// Geometry 描述一页的绝对尺寸与边距（mm）。
type Geometry struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin Margin  `json:"margin"`
}

// PrintableWidth 返回左右边距之间的可用宽度。
func (g Geometry) PrintableWidth() float64 { return g.Width - g.Margin.Left - g.Margin.Right }

// PrintableHeight 返回上下边距之间的可用高度。
func (g Geometry) PrintableHeight() float64 { return g.Height - g.Margin.Top - g.Margin.Bottom }

// Top 返回内容区域顶部的 y 坐标。
func (g Geometry) Top() float64 { return g.Margin.Top }

// Bottom 返回内容区域底部的 y 坐标。
func (g Geometry) Bottom() float64 { return g.Height - g.Margin.Bottom }

// GeometryOptions 是页面几何的语义化选择，取值不区分大小写。
type GeometryOptions struct {
	PageSize    string  // A4 / A3 / Letter / Legal
	Orientation string  // portrait / landscape
	Margins     string  // none / minimum / narrow / normal / wide
	Override    *Margin // 非空时覆盖 Margins
}

const (
	Portrait  = "portrait"
	Landscape = "landscape"
)

var pagePresets = map[string][2]float64{
	"A4":     {210, 297},
	"A3":     {297, 420},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

var marginPresets = map[string]float64{
	"none":    0,
	"minimum": 0.25 * InToMm,
	"narrow":  0.5 * InToMm,
	"normal":  1 * InToMm,
	"wide":    1.5 * InToMm,
}

// MarginNames 返回边距预设名称，按边距从小到大排列。
func MarginNames() []string { return []string{"none", "minimum", "narrow", "normal", "wide"} }

// PageSizes 返回支持的纸张名称。
func PageSizes() []string { return []string{"A4", "A3", "Letter", "Legal"} }

// ResolveGeometry 将纸张、方向与边距选项转换为绝对几何。
// 未知的边距名称按 normal 处理，未知的方向按 portrait 处理。
func ResolveGeometry(opts GeometryOptions) (Geometry, error) {
	size := strings.ToUpper(strings.TrimSpace(opts.PageSize))
	if size == "" {
		size = "A4"
	}
	base, ok := pagePresets[size]
	if !ok {
		return Geometry{}, errs.Config("layout.geometry", "暂不支持的纸张尺寸：%s", opts.PageSize)
	}
	width, height := base[0], base[1]
	if strings.EqualFold(strings.TrimSpace(opts.Orientation), Landscape) {
		width, height = height, width
	}
	if width <= 0 || height <= 0 {
		return Geometry{}, errs.Config("layout.geometry", "纸张 %s 的尺寸无效：%gx%g", opts.PageSize, width, height)
	}

	g := Geometry{Width: width, Height: height, Margin: Uniform(ResolveMargin(opts.Margins))}
	if opts.Override != nil {
		g.Margin = *opts.Override
	}
	if g.Margin.Top < 0 || g.Margin.Right < 0 || g.Margin.Bottom < 0 || g.Margin.Left < 0 {
		return Geometry{}, errs.Config("layout.geometry", "边距不能为负数")
	}
	if g.PrintableWidth() <= 0 || g.PrintableHeight() <= 0 {
		return Geometry{}, errs.Config("layout.geometry", "可用区域必须为正：%.2fx%.2f", g.PrintableWidth(), g.PrintableHeight())
	}
	return g, nil
}

// ResolveMargin 返回边距名称对应的毫米值，未知名称返回 normal。
func ResolveMargin(name string) float64 {
	if v, ok := marginPresets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v
	}
	return marginPresets["normal"]
}
