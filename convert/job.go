package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/quire/assemble"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/source"
)

// RunJob 按任务文件声明的顺序读取各项内容，排版为一个文档。
// 任务中的页面、表格与渲染设置覆盖服务配置。
func (s *Service) RunJob(ctx context.Context, job *dsl.Job) (Result, error) {
	const op = "convert.job"
	if job == nil {
		return Result{}, s.fail(op, errs.Validation(op, "任务为空"))
	}
	cfg := s.cfg
	cfg.Page = job.Page
	cfg.Table = job.Table
	cfg.Renderer = job.Renderer
	svc, err := s.WithConfig(cfg)
	if err != nil {
		return Result{}, s.fail(op, err)
	}

	s.logger.Info("job started", zap.String("job", job.Name), zap.Int("items", len(job.Items)))
	var units []content.Unit
	warnings := append([]string(nil), job.Warnings...)
	for i, item := range job.Items {
		if err := ctx.Err(); err != nil {
			return Result{}, s.fail(op, errs.Wrap(errs.KindInternal, op, err, "任务已取消"))
		}
		got, warns, err := svc.itemUnits(ctx, item)
		if err != nil {
			return Result{}, s.fail(op, fmt.Errorf("第 %d 项: %w", i+1, err))
		}
		units = append(units, got...)
		warnings = append(warnings, warns...)
	}
	if len(units) == 0 {
		return Result{}, s.fail(op, errs.Extraction(op, "No data found in any sheet"))
	}

	now := s.now()
	meta := job.Meta
	meta.Creator = firstNonEmpty(meta.Creator, cfg.Merge.Creator)
	meta.Producer = cfg.Merge.Producer
	meta.Created, meta.Modified = now, now

	res, err := svc.ConvertUnits(ctx, units, Target{
		Filename: assemble.OutputFilename(job.Output, now),
		Title:    meta.Title,
		Meta:     &meta,
	})
	if err != nil {
		return Result{}, err
	}
	res.Warnings = append(warnings, res.Warnings...)
	res.FileCount = len(job.Items)
	return res, nil
}

func (s *Service) itemUnits(ctx context.Context, item dsl.Item) ([]content.Unit, []string, error) {
	const op = "convert.job"
	limits := s.cfg.Limits
	switch item.Kind {
	case dsl.ItemUnit:
		return []content.Unit{item.Unit}, nil, nil
	case dsl.ItemTable:
		data, err := readSource(item.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := checkSize(op, data, limits.MaxTableSource); err != nil {
			return nil, nil, err
		}
		sheets, err := source.ReadSheets(item.Path, data)
		if err != nil {
			return nil, nil, err
		}
		units, warns := sheetUnits(sheets)
		return units, warns, nil
	case dsl.ItemMarkdown:
		data, err := readSource(item.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := checkSize(op, data, limits.MaxFlowSource); err != nil {
			return nil, nil, err
		}
		return []content.Unit{source.ExtractMarkdown(data, "").Unit()}, nil, nil
	case dsl.ItemHTML:
		data, err := readSource(item.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := checkSize(op, data, limits.MaxFlowSource); err != nil {
			return nil, nil, err
		}
		src, err := source.ExtractHTML(bytes.NewReader(data), "")
		if err != nil {
			return nil, nil, err
		}
		return []content.Unit{src.Unit()}, nil, nil
	case dsl.ItemURL:
		normalized, err := source.NormalizeURL(item.URL)
		if err != nil {
			return nil, nil, err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Flow.Timeout.Std())
		defer cancel()
		page, err := s.fetcherFor().Fetch(fetchCtx, normalized)
		if err != nil {
			return nil, nil, err
		}
		if err := checkPageSize(op, page.HTML, limits.MaxFlowSource); err != nil {
			return nil, nil, err
		}
		src, err := source.ExtractHTML(bytes.NewReader(page.HTML), normalized)
		if err != nil {
			return nil, nil, err
		}
		return []content.Unit{src.Unit()}, nil, nil
	}
	return nil, nil, errs.Validation(op, "未知的任务项类型 %d", item.Kind)
}

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "convert.job", err, fmt.Sprintf("读取 %s 失败", path))
	}
	return data, nil
}

// pdfName 把输入文件名换成 .pdf 扩展名；为空时按时间生成。
func pdfName(name string, now time.Time) string {
	base := filepath.Base(name)
	if name == "" || base == "." || base == string(filepath.Separator) {
		return fmt.Sprintf("converted_%d.pdf", now.UnixMilli())
	}
	ext := filepath.Ext(base)
	if ext == ".pdf" {
		return base
	}
	return base[:len(base)-len(ext)] + ".pdf"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
