package source

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
)

// FlowSource 是从网页或 Markdown 中提取出的正文。
type FlowSource struct {
	Title string
	URL   string
	Nodes []content.Node
}

// Unit 转换为 FlowUnit。
func (s FlowSource) Unit() content.FlowUnit {
	return content.FlowFromNodes(s.Title, s.URL, s.Nodes)
}

// 依次尝试的正文根节点选择器，最后退回 body。
var rootSelectors = []func(*html.Node) bool{
	isTag("article"),
	isTag("main"),
	hasClass("post-content"),
	hasClass("entry-content"),
	hasClass("content"),
	isTag("body"),
}

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

var blockTags = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
	"p": 0, "li": 0, "blockquote": 0, "div": 0,
}

// ExtractHTML 解析 HTML 并按文档顺序收集标题、段落、列表项、引用与不含
// 其它块元素的 div 的文本。
func ExtractHTML(r io.Reader, pageURL string) (FlowSource, error) {
	const op = "source.html"
	doc, err := html.Parse(r)
	if err != nil {
		return FlowSource{}, errs.Wrap(errs.KindExtraction, op, err, "HTML 解析失败")
	}

	src := FlowSource{URL: pageURL}
	if t := find(doc, isTag("title")); t != nil {
		src.Title = content.Collapse(textContent(t))
	}

	var root *html.Node
	for _, match := range rootSelectors {
		if root = find(doc, match); root != nil {
			break
		}
	}
	if root == nil {
		return FlowSource{}, errs.Extraction(op, "Could not extract readable content from the webpage")
	}
	src.Nodes = collectBlocks(root)
	return src, nil
}

func collectBlocks(root *html.Node) []content.Node {
	var nodes []content.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if skippedTags[c.Data] {
				continue
			}
			if level, ok := blockTags[c.Data]; ok && (c.Data != "div" || !containsBlock(c)) {
				if text := content.Collapse(textContent(c)); text != "" {
					nodes = append(nodes, content.Node{Text: text, Level: level})
				}
			}
			walk(c)
		}
	}
	walk(root)
	return nodes
}

func containsBlock(n *html.Node) bool {
	return find(n, func(c *html.Node) bool {
		if c == n || c.Type != html.ElementNode {
			return false
		}
		_, ok := blockTags[c.Data]
		return ok
	}) != nil
}

// textContent 拼接子树中的全部文本，跳过脚本与样式。
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedTags[n.Data] {
				return
			}
			if n.Data == "br" {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// find 深度优先查找第一个满足条件的节点（包括 n 本身）。
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func isTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func hasClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == "class" && strings.Contains(" "+strings.Join(strings.Fields(a.Val), " ")+" ", " "+class+" ") {
				return true
			}
		}
		return false
	}
}
