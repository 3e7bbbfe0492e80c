package source

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Verdict 是单个 PDF 文件的校验结论。
type Verdict struct {
	OK     bool
	Reason string
}

// Validator 校验待合并的 PDF 文件。
type Validator interface {
	Validate(name string, data []byte) Verdict
}

var pdfMagic = []byte("%PDF")

var configDirOnce sync.Once

// PDFConfig 返回不读写用户配置目录的宽松校验配置。
func PDFConfig() *model.Configuration {
	configDirOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PDFCPUValidator 依次检查扩展名、文件头、大小，最后交给 pdfcpu 做结构校验。
type PDFCPUValidator struct {
	MaxBytes int64 // <=0 表示不限制
}

func (v PDFCPUValidator) Validate(name string, data []byte) Verdict {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return Verdict{Reason: "File must have .pdf extension"}
	}
	if len(data) == 0 {
		return Verdict{Reason: "File is empty"}
	}
	if v.MaxBytes > 0 && int64(len(data)) > v.MaxBytes {
		return Verdict{Reason: fmt.Sprintf("File size exceeds %dMB limit", v.MaxBytes>>20)}
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return Verdict{Reason: "Invalid PDF file format"}
	}
	if err := api.Validate(bytes.NewReader(data), PDFConfig()); err != nil {
		return Verdict{Reason: fmt.Sprintf("PDF file is corrupted or encrypted: %v", err)}
	}
	return Verdict{OK: true}
}
