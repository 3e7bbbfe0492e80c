// Package convert wires sources, the layout engine, renderers and the
// assembler into the conversions exposed by the CLI.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/quire/assemble"
	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/logging"
	"github.com/ByLCY/quire/renderer"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
	fpdfrenderer "github.com/ByLCY/quire/renderer/fpdf"
	"github.com/ByLCY/quire/source"
)

// browserSettle 是无头浏览器在 body 就绪后额外等待网络请求的时间。
const browserSettle = 500 * time.Millisecond

// Service 执行转换。它只持有不可变的配置与协作对象，可被并发使用。
type Service struct {
	cfg       config.Config
	renderer  renderer.Measurer
	injected  bool // renderer 由 WithRenderer 注入
	fetcher   source.Fetcher
	validator source.Validator
	logger    *zap.Logger
	now       func() time.Time
}

// New 校验配置并创建服务。
func New(cfg config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger)
	if s.renderer == nil {
		s.renderer = NewRenderer(cfg.Renderer)
	}
	return s, nil
}

// NewRenderer 按名称创建渲染后端，未知名称使用 canvas。
func NewRenderer(name string) renderer.Measurer {
	if name == config.RendererFPDF {
		return fpdfrenderer.NewRenderer()
	}
	return canvasrenderer.NewRenderer()
}

// Config 返回服务使用的配置。
func (s *Service) Config() config.Config { return s.cfg }

// WithConfig 返回使用新配置的服务副本，用于单次请求的选项。
// 渲染后端变化时重新创建；显式注入的协作对象保持不变。
func (s *Service) WithConfig(cfg config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := *s
	out.cfg = cfg
	if cfg.Renderer != s.cfg.Renderer && !s.injected {
		out.renderer = NewRenderer(cfg.Renderer)
	}
	return &out, nil
}

// ConvertTable 将 .csv/.xlsx 文件转换为 PDF，每张表从新页开始。
func (s *Service) ConvertTable(ctx context.Context, filename string, data []byte) (Result, error) {
	const op = "convert.table"
	if err := checkSize(op, data, s.cfg.Limits.MaxTableSource); err != nil {
		return Result{}, s.fail(op, err)
	}
	sheets, err := source.ReadSheets(filename, data)
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	return s.ConvertSheets(ctx, sheets)
}

// ConvertSheets 排版已读取的工作表。空表被跳过并记录警告；全部为空时返回 ExtractionError。
func (s *Service) ConvertSheets(ctx context.Context, sheets []source.Sheet) (Result, error) {
	const op = "convert.sheets"
	units, warnings := sheetUnits(sheets)
	if len(units) == 0 {
		return Result{}, s.fail(op, errs.Extraction(op, "No data found in any sheet"))
	}
	title := units[0].Name()
	res, err := s.ConvertUnits(ctx, units, Target{
		Filename: fmt.Sprintf("converted_%d.pdf", s.now().UnixMilli()),
		Title:    title,
	})
	if err != nil {
		return Result{}, err
	}
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

func sheetUnits(sheets []source.Sheet) ([]content.Unit, []string) {
	var units []content.Unit
	var warnings []string
	for _, sh := range sheets {
		unit, ok := content.TableFromSheet(sh.Name, sh.Rows)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Sheet %q is empty and was skipped", sh.Name))
			continue
		}
		units = append(units, unit)
	}
	return units, warnings
}

// ConvertURL 抓取网页、提取正文并排版为 PDF。抓取受配置的超时限制。
func (s *Service) ConvertURL(ctx context.Context, rawURL string) (Result, error) {
	const op = "convert.url"
	normalized, err := source.NormalizeURL(rawURL)
	if err != nil {
		return Result{}, s.fail(op, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Flow.Timeout.Std())
	defer cancel()
	start := time.Now()
	page, err := s.fetcherFor().Fetch(fetchCtx, normalized)
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	s.logger.Debug("page fetched",
		zap.String("url", normalized),
		zap.Int("bytes", len(page.HTML)),
		zap.Duration("duration", time.Since(start)),
	)
	if err := checkPageSize(op, page.HTML, s.cfg.Limits.MaxFlowSource); err != nil {
		return Result{}, s.fail(op, err)
	}

	src, err := source.ExtractHTML(bytes.NewReader(page.HTML), normalized)
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	return s.convertFlow(ctx, src, source.FilenameForURL(normalized, s.now()))
}

// checkSize 校验上传内容的大小。
func checkSize(op string, data []byte, limit int64) error {
	if int64(len(data)) > limit {
		return errs.Validation(op, "File size exceeds %dMB limit", limit/config.MB)
	}
	return nil
}

// checkPageSize 校验抓取到的网页大小；浏览器抓取不受 HTTP 读取上限约束。
func checkPageSize(op string, html []byte, limit int64) error {
	if int64(len(html)) > limit {
		return errs.Fetch(op, "The webpage is too large (more than %dMB)", limit/config.MB)
	}
	return nil
}

func (s *Service) fetcherFor() source.Fetcher {
	if s.fetcher != nil {
		return s.fetcher
	}
	if s.cfg.Flow.WaitForNetworkIdle {
		return &source.BrowserFetcher{ExecPath: s.cfg.Flow.BrowserPath, UserAgent: s.cfg.Flow.UserAgent, Settle: browserSettle}
	}
	return &source.HTTPFetcher{UserAgent: s.cfg.Flow.UserAgent, MaxBytes: s.cfg.Limits.MaxFlowSource}
}

// ConvertHTML 排版本地 HTML 文件。pageURL 可为空，非空时作为来源行输出。
func (s *Service) ConvertHTML(ctx context.Context, name string, data []byte, pageURL string) (Result, error) {
	const op = "convert.html"
	if err := checkSize(op, data, s.cfg.Limits.MaxFlowSource); err != nil {
		return Result{}, s.fail(op, err)
	}
	src, err := source.ExtractHTML(bytes.NewReader(data), pageURL)
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	return s.convertFlow(ctx, src, pdfName(name, s.now()))
}

// ConvertMarkdown 排版 Markdown 文本，文档标题取第一个一级标题。
func (s *Service) ConvertMarkdown(ctx context.Context, name string, data []byte) (Result, error) {
	const op = "convert.markdown"
	if err := checkSize(op, data, s.cfg.Limits.MaxFlowSource); err != nil {
		return Result{}, s.fail(op, err)
	}
	return s.convertFlow(ctx, source.ExtractMarkdown(data, ""), pdfName(name, s.now()))
}

func (s *Service) convertFlow(ctx context.Context, src source.FlowSource, filename string) (Result, error) {
	unit := src.Unit()
	return s.ConvertUnits(ctx, []content.Unit{unit}, Target{Filename: filename, Title: unit.Title, SourceURL: src.URL})
}

// Target 描述输出文件的名称与元数据。
type Target struct {
	Filename  string
	Title     string
	SourceURL string
	Meta      *layout.DocumentMeta // 非空时覆盖默认元数据
}

// ConvertUnits 排版并渲染一组内容单元。排版失败的单元被替换为回退页并产生警告；
// 渲染结果超过输出上限时返回 SizeLimitError。
func (s *Service) ConvertUnits(ctx context.Context, units []content.Unit, target Target) (Result, error) {
	const op = "convert.units"
	if err := ctx.Err(); err != nil {
		return Result{}, s.fail(op, errs.Wrap(errs.KindInternal, op, err, "转换已取消"))
	}
	start := time.Now()
	g, err := layout.ResolveGeometry(s.cfg.Page.Geometry())
	if err != nil {
		return Result{}, s.fail(op, err)
	}

	meta := s.meta(target.Title)
	if target.Meta != nil {
		meta = *target.Meta
	}
	doc, results, err := layout.Build(units, layout.BuildOptions{
		Geometry:   g,
		Table:      s.cfg.Table.Options(),
		Typesetter: s.renderer,
		Meta:       meta,
	})
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	doc.Compact = true
	for _, r := range results {
		if r.Fallback {
			s.logger.Warn("unit replaced by fallback page",
				zap.String("unit", r.Unit.Name()),
				zap.String("kind", r.Unit.Kind().String()),
				zap.String("reason", r.Warning),
			)
		}
	}

	res, err := s.render(op, doc, target.Filename)
	if err != nil {
		return Result{}, err
	}
	res.Title = meta.Title
	res.SourceURL = target.SourceURL
	res.Warnings = layout.Warnings(results)
	res.ProcessingTime = time.Since(start)
	s.logger.Info("conversion finished",
		zap.String("filename", res.Filename),
		zap.Int("units", len(units)),
		zap.Int("pages", res.PageCount),
		zap.Int64("bytes", res.FileSizeBytes),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("duration", res.ProcessingTime),
	)
	return res, nil
}

// MergeDocuments 合并已排版的文档，不做重新排版。
func (s *Service) MergeDocuments(ctx context.Context, docs []*layout.Document) (Result, error) {
	const op = "convert.merge"
	if err := ctx.Err(); err != nil {
		return Result{}, s.fail(op, errs.Wrap(errs.KindInternal, op, err, "合并已取消"))
	}
	start := time.Now()
	now := s.now()
	m := s.cfg.Merge
	doc, err := assemble.Merge(assemble.Request{
		Sources:          docs,
		OutputFilename:   m.OutputFilename,
		IncludeBookmarks: m.IncludeBookmarks,
		MaintainQuality:  m.MaintainQuality,
		Title:            m.Title,
		Author:           m.Author,
		Creator:          m.Creator,
		Producer:         m.Producer,
		Now:              now,
	})
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	res, err := s.render(op, doc, assemble.OutputFilename(m.OutputFilename, now))
	if err != nil {
		return Result{}, err
	}
	res.Title = doc.Meta.Title
	res.FileCount = len(docs)
	res.ProcessingTime = time.Since(start)
	s.logger.Info("documents merged",
		zap.String("filename", res.Filename),
		zap.Int("sources", len(docs)),
		zap.Int("pages", res.PageCount),
		zap.Duration("duration", res.ProcessingTime),
	)
	return res, nil
}

// MergeFiles 合并现有 PDF 文件。
func (s *Service) MergeFiles(ctx context.Context, files []assemble.File) (Result, error) {
	const op = "convert.mergefiles"
	if err := ctx.Err(); err != nil {
		return Result{}, s.fail(op, errs.Wrap(errs.KindInternal, op, err, "合并已取消"))
	}
	start := time.Now()
	m, l := s.cfg.Merge, s.cfg.Limits
	out, err := assemble.MergeFiles(assemble.FileRequest{
		Files:            files,
		OutputFilename:   m.OutputFilename,
		IncludeBookmarks: m.IncludeBookmarks,
		MaintainQuality:  m.MaintainQuality,
		Title:            m.Title,
		Author:           m.Author,
		Creator:          m.Creator,
		Limits:           assemble.Limits{MaxFile: l.MaxMergeFile, MaxTotal: l.MaxMergeTotal, MaxOutput: l.MaxOutput},
		Validator:        s.validator,
		Now:              s.now(),
	})
	if err != nil {
		return Result{}, s.fail(op, err)
	}
	for _, w := range out.Warnings {
		s.logger.Warn("merge warning", zap.String("warning", w))
	}
	res := Result{
		Filename:       out.Filename,
		Data:           out.Data,
		FileSizeBytes:  int64(len(out.Data)),
		PageCount:      out.PageCount,
		Warnings:       out.Warnings,
		FileCount:      out.FileCount,
		Title:          out.Title,
		ProcessingTime: time.Since(start),
	}
	s.logger.Info("files merged",
		zap.String("filename", res.Filename),
		zap.Int("files", res.FileCount),
		zap.Int("pages", res.PageCount),
		zap.Int64("bytes", res.FileSizeBytes),
		zap.Duration("duration", res.ProcessingTime),
	)
	return res, nil
}

func (s *Service) render(op string, doc *layout.Document, filename string) (Result, error) {
	data, err := s.renderer.Render(doc)
	if err != nil {
		return Result{}, s.fail(op, errs.Wrap(errs.KindInternal, op, err, "渲染 PDF 失败"))
	}
	if limit := s.cfg.Limits.MaxOutput; int64(len(data)) > limit {
		return Result{}, s.fail(op, errs.SizeLimit(op,
			"Generated PDF is too large (%d bytes, limit %dMB). The content is too extensive.", len(data), limit/config.MB))
	}
	return Result{
		Filename:      filename,
		Data:          data,
		FileSizeBytes: int64(len(data)),
		PageCount:     doc.PageCount(),
		Document:      doc,
	}, nil
}

func (s *Service) meta(title string) layout.DocumentMeta {
	now := s.now()
	return layout.DocumentMeta{
		Title:    title,
		Creator:  s.cfg.Merge.Creator,
		Producer: s.cfg.Merge.Producer,
		Created:  now,
		Modified: now,
	}
}

// fail 记录失败并原样返回错误。
func (s *Service) fail(op string, err error) error {
	s.logger.Warn("conversion failed",
		zap.String("op", op),
		zap.String("category", errs.KindOf(err).String()),
		zap.Error(err),
	)
	return err
}
