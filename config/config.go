// Package config 定义转换服务的配置：命名默认值、JSON 加载与一次性校验。
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/source"
)

const (
	MB = 1 << 20

	RendererCanvas = "canvas"
	RendererFPDF   = "fpdf"
)

// Config 汇总页面、表格、合并、网页抓取、尺寸限制与日志配置。
type Config struct {
	Page     Page   `json:"page"`
	Table    Table  `json:"table"`
	Merge    Merge  `json:"merge"`
	Flow     Flow   `json:"flow"`
	Limits   Limits `json:"limits"`
	Renderer string `json:"renderer"`
	Log      Log    `json:"log"`
}

// Page 是语义化的页面几何选项。
type Page struct {
	Size        string         `json:"size"`
	Orientation string         `json:"orientation"`
	Margins     string         `json:"margins"`
	Override    *layout.Margin `json:"override,omitempty"`
}

// Geometry 返回对应的几何选项。
func (p Page) Geometry() layout.GeometryOptions {
	return layout.GeometryOptions{PageSize: p.Size, Orientation: p.Orientation, Margins: p.Margins, Override: p.Override}
}

type Table struct {
	FitToPage    bool `json:"fitToPage"`
	RepeatHeader bool `json:"repeatHeader"`
}

// Options 返回表格排版选项。
func (t Table) Options() layout.TableOptions {
	return layout.TableOptions{FitToPage: t.FitToPage, RepeatHeader: t.RepeatHeader}
}

// Merge 控制文档合并。Title 支持 ${date} 等模板变量。
type Merge struct {
	OutputFilename   string `json:"outputFilename"`
	IncludeBookmarks bool   `json:"includeBookmarks"`
	MaintainQuality  bool   `json:"maintainQuality"`
	Title            string `json:"title"`
	Author           string `json:"author"`
	Creator          string `json:"creator"`
	Producer         string `json:"producer"` // 二进制合并时由 pdfcpu 覆盖
}

// Flow 控制网页抓取。
type Flow struct {
	Timeout            Duration `json:"timeout"`
	UserAgent          string   `json:"userAgent"`
	WaitForNetworkIdle bool     `json:"waitForNetworkIdle"`
	BrowserPath        string   `json:"browserPath,omitempty"`
}

// Limits 以字节为单位。
type Limits struct {
	MaxTableSource int64 `json:"maxTableSource"`
	MaxMergeFile   int64 `json:"maxMergeFile"`
	MaxMergeTotal  int64 `json:"maxMergeTotal"`
	MaxOutput      int64 `json:"maxOutput"`
	MaxFlowSource  int64 `json:"maxFlowSource"`
	MaxImage       int64 `json:"maxImage"`
}

type Log struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default 返回命名默认值。
func Default() Config {
	return Config{
		Page:  Page{Size: "A4", Orientation: layout.Portrait, Margins: "normal"},
		Table: Table{FitToPage: false, RepeatHeader: true},
		Merge: Merge{
			OutputFilename:   "merged_document.pdf",
			IncludeBookmarks: true,
			MaintainQuality:  true,
			Title:            "Merged Document - ${date}",
			Author:           "Quire PDF Merger",
			Creator:          "Quire",
			Producer:         "quire",
		},
		Flow: Flow{Timeout: Duration(30 * time.Second), UserAgent: source.DefaultUserAgent},
		Limits: Limits{
			MaxTableSource: 25 * MB,
			MaxMergeFile:   50 * MB,
			MaxMergeTotal:  200 * MB,
			MaxOutput:      100 * MB,
			MaxFlowSource:  10 * MB,
			MaxImage:       20 * MB,
		},
		Renderer: RendererCanvas,
		Log:      Log{Level: "info"},
	}
}

// Load 读取 JSON 配置文件并叠加到默认值上。未知字段视为错误。
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errs.Wrap(errs.KindConfig, "config.load", err, "读取配置文件失败")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errs.Wrap(errs.KindConfig, "config.load", err, fmt.Sprintf("解析配置文件 %s 失败", path))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 校验配置；失败时返回 ConfigError。未知的边距名称不算错误，按 normal 处理。
func (c Config) Validate() error {
	if _, err := layout.ResolveGeometry(c.Page.Geometry()); err != nil {
		return err
	}
	switch strings.ToLower(c.Page.Orientation) {
	case "", layout.Portrait, layout.Landscape:
	default:
		return errs.Config("config.validate", "不支持的页面方向：%s", c.Page.Orientation)
	}
	switch c.Renderer {
	case RendererCanvas, RendererFPDF:
	default:
		return errs.Config("config.validate", "未知的渲染器：%s", c.Renderer)
	}
	if c.Flow.Timeout <= 0 {
		return errs.Config("config.validate", "抓取超时必须为正")
	}
	for name, v := range map[string]int64{
		"maxTableSource": c.Limits.MaxTableSource,
		"maxMergeFile":   c.Limits.MaxMergeFile,
		"maxMergeTotal":  c.Limits.MaxMergeTotal,
		"maxOutput":      c.Limits.MaxOutput,
		"maxFlowSource":  c.Limits.MaxFlowSource,
		"maxImage":       c.Limits.MaxImage,
	} {
		if v <= 0 {
			return errs.Config("config.validate", "limits.%s 必须为正", name)
		}
	}
	return nil
}

// Duration 在 JSON 中写作 "30s" 这样的字符串，也接受毫秒数。
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("无效的时长 %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("时长必须是字符串或毫秒数: %w", err)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}
