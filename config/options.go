package config

import (
	"bytes"
	"encoding/json"

	"github.com/ByLCY/quire/errs"
)

// Options 是单次请求携带的扁平选项，字段缺省时保留基础配置中的值。
type Options struct {
	Orientation        *string `json:"orientation"`
	PageSize           *string `json:"pageSize"`
	Margins            *string `json:"margins"`
	FitToPage          *bool   `json:"fitToPage"`
	RepeatHeader       *bool   `json:"repeatHeader"`
	OutputFilename     *string `json:"outputFilename"`
	IncludeBookmarks   *bool   `json:"includeBookmarks"`
	MaintainQuality    *bool   `json:"maintainQuality"`
	WaitForNetworkIdle *bool   `json:"waitForNetworkIdle"`
	Renderer           *string `json:"renderer"`
}

// ParseOptions 解析请求选项并叠加到 base 上。空载荷返回 base；
// 格式错误的载荷返回 ConfigError，不会静默替换为默认值。
func ParseOptions(payload []byte, base Config) (Config, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return base, nil
	}
	var opts Options
	if err := json.Unmarshal(payload, &opts); err != nil {
		return base, errs.Wrap(errs.KindConfig, "config.options", err, "选项格式错误")
	}
	cfg := opts.Apply(base)
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Apply 返回叠加了非空字段的新配置。
func (o Options) Apply(base Config) Config {
	cfg := base
	setString(&cfg.Page.Orientation, o.Orientation)
	setString(&cfg.Page.Size, o.PageSize)
	setString(&cfg.Page.Margins, o.Margins)
	setBool(&cfg.Table.FitToPage, o.FitToPage)
	setBool(&cfg.Table.RepeatHeader, o.RepeatHeader)
	setString(&cfg.Merge.OutputFilename, o.OutputFilename)
	setBool(&cfg.Merge.IncludeBookmarks, o.IncludeBookmarks)
	setBool(&cfg.Merge.MaintainQuality, o.MaintainQuality)
	setBool(&cfg.Flow.WaitForNetworkIdle, o.WaitForNetworkIdle)
	setString(&cfg.Renderer, o.Renderer)
	if o.Margins != nil {
		cfg.Page.Override = nil
	}
	return cfg
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
