package dsl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/layout"
)

// ItemKind 区分任务中的内容来源。
type ItemKind int

const (
	ItemUnit     ItemKind = iota // 内联的 sheet/flow
	ItemTable                    // import "file.xlsx|csv"
	ItemMarkdown                 // markdown "notes.md"
	ItemHTML                     // html "page.html"
	ItemURL                      // url "https://..."
)

// Item 是任务中按顺序输出的一项内容。
type Item struct {
	Kind ItemKind
	Unit content.Unit // ItemUnit
	Path string       // ItemTable/ItemMarkdown/ItemHTML，已相对任务文件解析
	URL  string       // ItemURL
}

// Job 是解析并校验后的转换任务。
type Job struct {
	Name     string
	Output   string
	Renderer string
	Page     config.Page
	Table    config.Table
	Meta     layout.DocumentMeta
	Items    []Item
	Warnings []string // 编译时跳过的内容
}

// Load 读取任务文件，相对路径以任务文件所在目录为基准。
func Load(path string, base config.Config) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "dsl.load", err, "读取任务文件失败")
	}
	defer f.Close()
	ast, err := Parse(f)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, "dsl.parse", err, fmt.Sprintf("解析任务文件 %s 失败", path))
	}
	return Compile(ast, filepath.Dir(path), base)
}

// Compile 把语法树转换为 Job。base 提供未在任务中声明的选项。
func Compile(file *File, dir string, base config.Config) (*Job, error) {
	job := &Job{
		Name:     string(file.Name),
		Output:   base.Merge.OutputFilename,
		Renderer: base.Renderer,
		Page:     base.Page,
		Table:    base.Table,
		Meta:     layout.DocumentMeta{Title: string(file.Name)},
	}
	for _, st := range file.Statements {
		var err error
		switch {
		case st.Meta != nil:
			err = job.applyMeta(st.Meta)
		case st.Sheet != nil:
			unit, ok := sheetUnit(st.Sheet)
			if !ok {
				job.Warnings = append(job.Warnings, fmt.Sprintf("Sheet %q is empty and was skipped", unit.Title))
				break
			}
			job.Items = append(job.Items, Item{Kind: ItemUnit, Unit: unit})
		case st.Flow != nil:
			unit, ferr := flowUnit(st.Flow)
			if ferr != nil {
				err = ferr
				break
			}
			job.Items = append(job.Items, Item{Kind: ItemUnit, Unit: unit})
		case st.Command != nil:
			err = job.applyCommand(st.Command, dir)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(job.Items) == 0 && len(job.Warnings) == 0 {
		return nil, errs.Config("dsl.compile", "任务 %q 没有声明任何内容", job.Name)
	}
	return job, nil
}

func (j *Job) applyMeta(m *MetaBlock) error {
	for _, a := range m.Entries {
		v := a.Value.Value
		switch a.Key {
		case "title":
			j.Meta.Title = v
		case "author":
			j.Meta.Author = v
		case "subject":
			j.Meta.Subject = v
		case "creator":
			j.Meta.Creator = v
		case "keywords":
			for _, k := range strings.Split(v, ",") {
				if k = strings.TrimSpace(k); k != "" {
					j.Meta.Keywords = append(j.Meta.Keywords, k)
				}
			}
		default:
			return posError(a.Pos, "未知的 meta 字段 %q", a.Key)
		}
	}
	return nil
}

func (j *Job) applyCommand(c *Command, dir string) error {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.Value
	}
	switch c.Name {
	case "output":
		if len(args) != 1 {
			return posError(c.Pos, "output 需要一个文件名")
		}
		j.Output = args[0]
	case "renderer":
		if len(args) != 1 || (args[0] != config.RendererCanvas && args[0] != config.RendererFPDF) {
			return posError(c.Pos, "renderer 只能是 %s 或 %s", config.RendererCanvas, config.RendererFPDF)
		}
		j.Renderer = args[0]
	case "page":
		return j.applyPage(c.Pos, args)
	case "fit":
		on, err := toggle(c.Pos, args)
		if err != nil {
			return err
		}
		j.Table.FitToPage = on
	case "repeat-header":
		on, err := toggle(c.Pos, args)
		if err != nil {
			return err
		}
		j.Table.RepeatHeader = on
	case "import", "markdown", "html":
		if len(args) != 1 {
			return posError(c.Pos, "%s 需要一个文件路径", c.Name)
		}
		kind := map[string]ItemKind{"import": ItemTable, "markdown": ItemMarkdown, "html": ItemHTML}[c.Name]
		j.Items = append(j.Items, Item{Kind: kind, Path: resolvePath(dir, args[0])})
	case "url":
		if len(args) != 1 {
			return posError(c.Pos, "url 需要一个地址")
		}
		j.Items = append(j.Items, Item{Kind: ItemURL, URL: args[0]})
	default:
		return posError(c.Pos, "未知指令 %q", c.Name)
	}
	return nil
}

// applyPage 解析 `page <size> [portrait|landscape] [margin <name>|<len>...]`。
func (j *Job) applyPage(pos lexer.Position, args []string) error {
	if len(args) == 0 {
		return posError(pos, "page 需要纸张尺寸")
	}
	page := j.Page
	page.Size = args[0]
	for i := 1; i < len(args); i++ {
		switch arg := args[i]; arg {
		case layout.Portrait, layout.Landscape:
			page.Orientation = arg
		case "margin":
			rest := args[i+1:]
			if len(rest) == 0 {
				return posError(pos, "margin 需要取值")
			}
			if _, ok := layout.ParseLength(rest[0]); !ok {
				page.Margins = rest[0]
				i++
				continue
			}
			m, n, err := parseMargins(pos, rest)
			if err != nil {
				return err
			}
			page.Override = &m
			i += n
		default:
			return posError(pos, "无法识别的页面参数 %q", arg)
		}
	}
	if _, err := layout.ResolveGeometry(page.Geometry()); err != nil {
		return posError(pos, "%v", err)
	}
	j.Page = page
	return nil
}

// parseMargins 支持 1 个（四边相同）、2 个（上下/左右）或 4 个（上右下左）长度。
func parseMargins(pos lexer.Position, args []string) (layout.Margin, int, error) {
	var vals []float64
	for _, a := range args {
		l, ok := layout.ParseLength(a)
		if !ok {
			break
		}
		vals = append(vals, l.ToMM())
	}
	switch len(vals) {
	case 1:
		return layout.Uniform(vals[0]), 1, nil
	case 2:
		return layout.Margin{Top: vals[0], Bottom: vals[0], Left: vals[1], Right: vals[1]}, 2, nil
	case 4:
		return layout.Margin{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}, 4, nil
	default:
		return layout.Margin{}, 0, posError(pos, "margin 需要 1、2 或 4 个长度，得到 %d 个", len(vals))
	}
}

func toggle(pos lexer.Position, args []string) (bool, error) {
	if len(args) == 0 {
		return true, nil
	}
	switch args[0] {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, posError(pos, "开关只能是 on 或 off，得到 %q", args[0])
}

// sheetUnit 转换内联表格；没有任何行时 ok 为 false。
func sheetUnit(s *SheetBlock) (content.TableUnit, bool) {
	rows := make([][]string, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = make([]string, len(r.Cells))
		for k, c := range r.Cells {
			rows[i][k] = c.Value
		}
	}
	return content.TableFromSheet(string(s.Title), rows)
}

func flowUnit(f *FlowBlock) (content.Unit, error) {
	nodes := make([]content.Node, 0, len(f.Lines))
	for _, line := range f.Lines {
		level := 0
		switch line.Tag {
		case "p", "li", "quote":
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level = int(line.Tag[1] - '0')
		default:
			return nil, posError(line.Pos, "未知的段落标记 %q", line.Tag)
		}
		nodes = append(nodes, content.Node{Text: string(line.Text), Level: level})
	}
	source := ""
	if f.Source != nil {
		source = string(*f.Source)
	}
	return content.FlowFromNodes(string(f.Title), source, nodes), nil
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) || dir == "" {
		return p
	}
	return filepath.Join(dir, p)
}

func posError(pos lexer.Position, format string, args ...any) error {
	return errs.Config("dsl.compile", "%d:%d: %s", pos.Line, pos.Column, fmt.Sprintf(format, args...))
}
