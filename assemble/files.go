package assemble

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/source"
)

// File 是一个待合并的 PDF 文件。
type File struct {
	Name string
	Data []byte
}

// Limits 以字节为单位，<=0 表示不限制。
type Limits struct {
	MaxFile   int64
	MaxTotal  int64
	MaxOutput int64
}

// FileRequest 描述一次 PDF 文件合并。
type FileRequest struct {
	Files            []File
	OutputFilename   string
	IncludeBookmarks bool
	MaintainQuality  bool
	Title            string // 支持 ${date} 等模板变量，空时使用 DefaultTitle
	Author           string
	Creator          string
	Subject          string
	Limits           Limits
	Validator        source.Validator // 为 nil 时使用 source.PDFCPUValidator
	Now              time.Time
}

// FileResult 是合并后的 PDF。
type FileResult struct {
	Filename   string
	Title      string
	Data       []byte
	PageCount  int
	FileCount  int
	InputBytes int64
	Warnings   []string
}

// MergeFiles 按顺序合并 PDF 文件。每个文件先通过校验；书签是尽力而为的，
// 失败时只记录警告。
func MergeFiles(req FileRequest) (FileResult, error) {
	const op = "assemble.files"
	if len(req.Files) < 2 {
		return FileResult{}, errs.Validation(op, "At least 2 PDF files are required for merging")
	}
	validator := req.Validator
	if validator == nil {
		validator = source.PDFCPUValidator{MaxBytes: req.Limits.MaxFile}
	}

	conf := source.PDFConfig()
	var total int64
	readers := make([]io.ReadSeeker, 0, len(req.Files))
	counts := make([]int, 0, len(req.Files))
	for i, f := range req.Files {
		if req.Limits.MaxFile > 0 && int64(len(f.Data)) > req.Limits.MaxFile {
			return FileResult{}, errs.Validation(op, "Invalid file at position %d: File size exceeds %dMB limit", i+1, req.Limits.MaxFile>>20)
		}
		if v := validator.Validate(f.Name, f.Data); !v.OK {
			return FileResult{}, errs.Validation(op, "Invalid file at position %d: %s", i+1, v.Reason)
		}
		total += int64(len(f.Data))
		if req.Limits.MaxTotal > 0 && total > req.Limits.MaxTotal {
			return FileResult{}, errs.Validation(op, "Total size of all files exceeds %dMB limit", req.Limits.MaxTotal>>20)
		}
		n, err := api.PageCount(bytes.NewReader(f.Data), conf)
		if err != nil {
			return FileResult{}, errs.Wrap(errs.KindValidation, op, err, fmt.Sprintf("Invalid file at position %d", i+1))
		}
		counts = append(counts, n)
		readers = append(readers, bytes.NewReader(f.Data))
	}

	conf.WriteObjectStream = req.MaintainQuality
	conf.WriteXRefStream = req.MaintainQuality

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, conf); err != nil {
		return FileResult{}, errs.Wrap(errs.KindProcessing, op, err, "Failed to merge PDF files")
	}
	now := nowOr(req.Now)
	props := req.infoProperties(now)
	data, err := stampInfo(buf.Bytes(), props, conf)
	if err != nil {
		return FileResult{}, errs.Wrap(errs.KindProcessing, op, err, "Failed to set document metadata")
	}

	res := FileResult{
		Filename:   OutputFilename(req.OutputFilename, now),
		Title:      props["Title"],
		FileCount:  len(req.Files),
		InputBytes: total,
	}
	for _, n := range counts {
		res.PageCount += n
	}

	if req.IncludeBookmarks {
		marked, err := addFileBookmarks(data, req.Files, counts)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("bookmarks were not added: %v", err))
		} else {
			data = marked
		}
	}

	if req.Limits.MaxOutput > 0 && int64(len(data)) > req.Limits.MaxOutput {
		return FileResult{}, errs.SizeLimit(op, "Merged PDF is too large (%d bytes, limit %dMB)", len(data), req.Limits.MaxOutput>>20)
	}
	res.Data = data
	return res, nil
}

// infoProperties 返回写入文档信息字典的条目。Producer 与日期由 pdfcpu 在写出时设置。
func (req FileRequest) infoProperties(now time.Time) map[string]string {
	props := map[string]string{"Title": MergeTitle(req.Title, now)}
	for k, v := range map[string]string{"Author": req.Author, "Creator": req.Creator, "Subject": req.Subject} {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// stampInfo 把元数据写入合并结果的信息字典。
func stampInfo(data []byte, props map[string]string, merged *model.Configuration) ([]byte, error) {
	conf := source.PDFConfig()
	conf.WriteObjectStream = merged.WriteObjectStream
	conf.WriteXRefStream = merged.WriteXRefStream
	var out bytes.Buffer
	if err := api.AddProperties(bytes.NewReader(data), &out, props, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// addFileBookmarks 为每个输入文件添加一个指向其首页的顶层书签。
func addFileBookmarks(data []byte, files []File, counts []int) ([]byte, error) {
	bms := make([]pdfcpu.Bookmark, 0, len(files))
	page := 1
	for i, f := range files {
		if counts[i] == 0 {
			continue
		}
		title := f.Name
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		bms = append(bms, pdfcpu.Bookmark{Title: title, PageFrom: page})
		page += counts[i]
	}
	var out bytes.Buffer
	if err := api.AddBookmarks(bytes.NewReader(data), &out, bms, true, source.PDFConfig()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
