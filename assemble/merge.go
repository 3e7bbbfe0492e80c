// Package assemble 把已经分页的文档按顺序合并为一个文档，不做重新排版。
package assemble

import (
	"fmt"
	"strings"
	"time"

	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/layout"
)

const (
	DefaultFilename = "merged_document.pdf"
	DefaultTitle    = "Merged Document - ${date}"
)

// Request 描述一次文档合并。
type Request struct {
	Sources          []*layout.Document
	OutputFilename   string
	IncludeBookmarks bool
	MaintainQuality  bool
	Title            string // 支持 ${date} 等模板变量
	Author           string
	Creator          string
	Producer         string
	Now              time.Time
}

// Merge 依次深拷贝各来源文档的页面并重新编号。来源文档不会被修改。
func Merge(req Request) (*layout.Document, error) {
	const op = "assemble.merge"
	if len(req.Sources) < 2 {
		return nil, errs.Validation(op, "At least 2 PDF files are required for merging")
	}
	total := 0
	for i, src := range req.Sources {
		if src == nil {
			return nil, errs.Validation(op, "Invalid file at position %d: document is empty", i+1)
		}
		total += len(src.Pages)
	}

	now := nowOr(req.Now)
	out := &layout.Document{
		Pages:   make([]layout.Page, 0, total),
		Compact: req.MaintainQuality,
		Meta: layout.DocumentMeta{
			Title:    MergeTitle(req.Title, now),
			Author:   req.Author,
			Creator:  req.Creator,
			Producer: req.Producer,
			Created:  now,
			Modified: now,
		},
	}
	for i, src := range req.Sources {
		start := len(out.Pages)
		out.Pages = append(out.Pages, layout.ClonePages(src.Pages, start)...)
		if req.IncludeBookmarks && len(src.Pages) > 0 {
			out.Outline = append(out.Outline, sourceOutline(src, i, start)...)
		}
	}
	return out, nil
}

// sourceOutline 生成一个来源文档的书签：顶层条目加上其自身大纲（下移一级）。
func sourceOutline(src *layout.Document, idx, start int) []layout.OutlineEntry {
	title := strings.TrimSpace(src.Meta.Title)
	if title == "" {
		title = fmt.Sprintf("Document %d", idx+1)
	}
	entries := []layout.OutlineEntry{{Title: title, Page: start}}
	for _, e := range src.Outline {
		if e.Page < 0 || e.Page >= len(src.Pages) {
			continue
		}
		entries = append(entries, layout.OutlineEntry{Title: e.Title, Page: start + e.Page, Level: e.Level + 1})
	}
	return entries
}

// MergeTitle 展开合并文档的标题模板，空模板使用 DefaultTitle。
func MergeTitle(tmpl string, now time.Time) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTitle
	}
	return binding.Interpolate(tmpl, binding.Standard(now))
}

// OutputFilename 返回带 .pdf 后缀的输出文件名；name 可以包含模板变量。
func OutputFilename(name string, now time.Time) string {
	name = strings.TrimSpace(binding.Interpolate(name, binding.Standard(now)))
	if name == "" {
		name = DefaultFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
