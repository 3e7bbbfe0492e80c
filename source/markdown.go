package source

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ByLCY/quire/content"
)

// ExtractMarkdown 将 Markdown 文本转换为流式正文。title 为空时使用第一个一级标题。
func ExtractMarkdown(data []byte, title string) FlowSource {
	doc := goldmark.New().Parser().Parse(text.NewReader(data))

	var nodes []content.Node
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		nodes = appendMarkdownBlock(nodes, child, data)
	}
	if title == "" {
		for _, n := range nodes {
			if n.Level == 1 {
				title = n.Text
				break
			}
		}
	}
	return FlowSource{Title: title, Nodes: nodes}
}

func appendMarkdownBlock(nodes []content.Node, n ast.Node, src []byte) []content.Node {
	switch b := n.(type) {
	case *ast.Heading:
		return append(nodes, content.Node{Text: inlineText(b, src), Level: b.Level})
	case *ast.Paragraph, *ast.TextBlock:
		return append(nodes, content.Node{Text: inlineText(b, src)})
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(src))
		}
		return append(nodes, content.Node{Text: sb.String()})
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return nodes
	default:
		// 列表、引用等容器：逐个展开子块
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			nodes = appendMarkdownBlock(nodes, c, src)
		}
		return nodes
	}
}

// inlineText 收集行内节点的纯文本，软换行折叠为空格。
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.URL(src))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
