package layout

import (
	"fmt"

	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
)

// UnitResult 是单个内容单元的排版结果。Fallback 为 true 时 Pages 只含一页回退内容，
// Warning 说明原因。
type UnitResult struct {
	Unit     content.Unit
	Pages    []Page
	Fallback bool
	Warning  string
}

// LayoutUnit 在独立的 Writer 上排版一个单元。LayoutError 会被回退页面吸收，
// 其他错误原样返回。
func LayoutUnit(unit content.Unit, opts BuildOptions) (UnitResult, error) {
	if unit == nil {
		return UnitResult{}, errs.Validation("layout.build", "内容单元为空")
	}
	w := NewWriter(opts.Geometry)
	var err error
	switch u := unit.(type) {
	case content.TableUnit:
		err = LayoutTable(u, w, opts.Table, opts.Typesetter)
	case content.FlowUnit:
		err = LayoutFlow(u, w, opts.Typesetter)
	default:
		return UnitResult{}, errs.Validation("layout.build", "不支持的内容单元类型 %T", unit)
	}
	if err == nil {
		return UnitResult{Unit: unit, Pages: w.Finish()}, nil
	}
	if !errs.Is(err, errs.KindLayout) {
		return UnitResult{}, err
	}

	return UnitResult{
		Unit:     unit,
		Pages:    layoutFallback(unit, opts.Geometry, opts.Typesetter),
		Fallback: true,
		Warning:  fmt.Sprintf("%s %q could not be laid out and was replaced by a fallback page: %v", unit.Kind(), unit.Name(), err),
	}, nil
}

// Build 依次排版各单元并按顺序拼接页面。每个单元从新页开始，
// 页码在拼接时重新编号；每个单元在大纲中占一项。
func Build(units []content.Unit, opts BuildOptions) (*Document, []UnitResult, error) {
	if len(units) == 0 {
		return nil, nil, errs.Validation("layout.build", "没有可排版的内容")
	}
	if opts.Typesetter == nil {
		return nil, nil, fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	g := opts.Geometry
	if g.PrintableWidth() <= 0 || g.PrintableHeight() <= 0 {
		return nil, nil, errs.Config("layout.build", "页面可用区域必须为正")
	}

	doc := &Document{Meta: opts.Meta}
	results := make([]UnitResult, 0, len(units))
	for _, unit := range units {
		res, err := LayoutUnit(unit, opts)
		if err != nil {
			return nil, nil, err
		}
		start := len(doc.Pages)
		doc.Outline = append(doc.Outline, OutlineEntry{Title: unit.Name(), Page: start})
		doc.Pages = append(doc.Pages, ClonePages(res.Pages, start)...)
		results = append(results, res)
	}
	return doc, results, nil
}

// Warnings 收集所有回退单元的警告。
func Warnings(results []UnitResult) []string {
	var out []string
	for _, r := range results {
		if r.Warning != "" {
			out = append(out, r.Warning)
		}
	}
	return out
}
