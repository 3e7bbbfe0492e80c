package convert

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/ByLCY/quire/layout"
)

// Result 是一次转换或合并的输出。
type Result struct {
	Filename       string           `json:"filename"`
	Data           []byte           `json:"-"`
	FileSizeBytes  int64            `json:"fileSizeBytes"`
	PageCount      int              `json:"pageCount"`
	ProcessingTime time.Duration    `json:"-"`
	Warnings       []string         `json:"warnings,omitempty"`
	Title          string           `json:"title,omitempty"`
	SourceURL      string           `json:"sourceUrl,omitempty"`
	FileCount      int              `json:"fileCount,omitempty"`
	Document       *layout.Document `json:"-"` // 二进制合并时为 nil
}

// Encoded 返回 base64 编码的 PDF。
func (r Result) Encoded() string {
	return base64.StdEncoding.EncodeToString(r.Data)
}

// DataURL 返回可直接下载的 data URL。
func (r Result) DataURL() string {
	return "data:application/pdf;base64," + r.Encoded()
}

// MarshalJSON 把处理时间输出为秒。
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		ProcessingTimeSeconds float64 `json:"processingTimeSeconds"`
	}{plain(r), r.ProcessingTime.Seconds()})
}
