package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ByLCY/quire/errs"
)

// WrapText 在词边界处贪心折行，返回每行内容与宽度。
// 单个词宽于行宽时独占一行并允许溢出，不在词内拆分；显式换行符总是换行。
// measure 返回字符串的宽度（mm）；width <= 0 表示不限宽度。
func WrapText(content string, width, lineHeight float64, measure func(string) float64) []TextLine {
	limit := width
	unlimited := limit <= 0

	var lines []TextLine
	var builder strings.Builder
	current := 0.0
	pendingSpace := ""

	emit := func() {
		lines = append(lines, TextLine{Content: builder.String(), Width: current, Height: lineHeight})
		builder.Reset()
		current = 0
		pendingSpace = ""
	}

	for _, token := range tokenize(content) {
		if token == "\n" {
			emit()
			continue
		}
		if isSpaceToken(token) {
			if builder.Len() > 0 {
				pendingSpace += token
			}
			continue
		}
		tokenWidth := measure(token)
		if builder.Len() > 0 {
			spaceWidth := measure(pendingSpace)
			if !unlimited && current+spaceWidth+tokenWidth > limit+epsilon {
				emit()
			} else {
				builder.WriteString(pendingSpace)
				current += spaceWidth
			}
		}
		pendingSpace = ""
		builder.WriteString(token)
		current += tokenWidth
	}
	emit()
	return lines
}

func tokenize(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func isSpaceToken(token string) bool {
	r, _ := utf8.DecodeRuneInString(token)
	return unicode.IsSpace(r)
}

// EstimateTypesetter 按字符数估算宽度（每个字符约 0.5 个字号），
// 用于没有字体数据的场景，例如测试或纯文本预估。
type EstimateTypesetter struct {
	Factor float64 // 每个字符的宽度与字号之比，<=0 时为 0.5
}

func (e EstimateTypesetter) factor() float64 {
	if e.Factor <= 0 {
		return 0.5
	}
	return e.Factor
}

func (e EstimateTypesetter) measure(fontSize float64) func(string) float64 {
	f := e.factor()
	return func(s string) float64 {
		return float64(utf8.RuneCountInString(s)) * fontSize * f
	}
}

// LayoutLines 实现 Typesetter。
func (e EstimateTypesetter) LayoutLines(content string, width float64, _ Font, fontSize, lineHeight float64) ([]TextLine, error) {
	return WrapText(content, width, lineHeight, e.measure(fontSize)), nil
}

// TextWidth 实现 Typesetter，多行文本取最宽的一行。
func (e EstimateTypesetter) TextWidth(content string, _ Font, fontSize float64) (float64, error) {
	m := e.measure(fontSize)
	maxW := 0.0
	for _, line := range strings.Split(content, "\n") {
		if w := m(line); w > maxW {
			maxW = w
		}
	}
	return maxW, nil
}

// layoutLines 调用排版后端并将失败统一为 LayoutError；结果至少包含一行。
func layoutLines(ts Typesetter, content string, width float64, font Font, fontSize, lineHeight float64) ([]TextLine, error) {
	lines, err := ts.LayoutLines(content, width, font, fontSize, lineHeight)
	if err != nil {
		return nil, errs.Wrap(errs.KindLayout, "layout.text", err, "文本排版失败")
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Height: lineHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = lineHeight
		}
	}
	lines[0].GapBefore = 0
	return lines, nil
}

// linesHeight 返回多行文本的总高度。
func linesHeight(lines []TextLine) float64 {
	h := 0.0
	for _, l := range lines {
		h += l.GapBefore + l.Height
	}
	return h
}
