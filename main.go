package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/quire/assemble"
	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/convert"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/errs"
	"github.com/ByLCY/quire/imaging"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/logging"
)

const usage = `用法: quire <command> [flags] <args>

命令:
  table     <file.csv|file.xlsx>   表格转换为 PDF，每张表从新页开始
  url       <address>              抓取网页正文并转换为 PDF
  html      <file.html>            本地 HTML 转换为 PDF
  markdown  <file.md>              Markdown 转换为 PDF
  merge     <a.pdf> <b.pdf> ...    按顺序合并 PDF 文件
  job       <file.quire>           执行任务文件
  image     <file>                 调用外部命令去除图片背景

使用 "quire <command> -h" 查看各命令的参数。
`

// cliFlags 是各子命令共用的参数。
type cliFlags struct {
	out, debug, configPath, options string
	logLevel                        string
	opts                            config.Options
	source                          string
	quality, command                string
}

func newFlagSet(name string, f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&f.out, "out", "", "PDF 输出路径，默认使用生成的文件名")
	fs.StringVar(&f.debug, "debug", "", "布局调试 JSON 输出路径")
	fs.StringVar(&f.configPath, "config", "", "JSON 配置文件")
	fs.StringVar(&f.options, "options", "", "JSON 格式的单次选项，例如 {\"pageSize\":\"Letter\"}")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别：debug, info, warn, error")
	optString(fs, &f.opts.PageSize, "page", "纸张尺寸："+strings.Join(layout.PageSizes(), ", "))
	optString(fs, &f.opts.Orientation, "orientation", "页面方向：portrait, landscape")
	optString(fs, &f.opts.Margins, "margins", "边距："+strings.Join(layout.MarginNames(), ", "))
	optBool(fs, &f.opts.FitToPage, "fit", "表格按页宽等分列宽")
	optBool(fs, &f.opts.RepeatHeader, "repeat-header", "表格跨页时重复表头")
	optString(fs, &f.opts.Renderer, "renderer", "渲染器：canvas, fpdf")
	optString(fs, &f.opts.OutputFilename, "name", "合并输出文件名，支持 ${date} 等变量")
	optBool(fs, &f.opts.IncludeBookmarks, "bookmarks", "合并时为每个文件添加书签")
	optBool(fs, &f.opts.MaintainQuality, "maintain-quality", "合并时压缩对象流")
	optBool(fs, &f.opts.WaitForNetworkIdle, "browser", "使用无头浏览器抓取网页")
	switch name {
	case "html":
		fs.StringVar(&f.source, "source", "", "HTML 的来源地址，输出在标题下方")
	case "image":
		fs.StringVar(&f.quality, "quality", string(imaging.Standard), "处理质量：standard, high")
		fs.StringVar(&f.command, "command", "", "背景去除命令，例如 \"python3 scripts/background_removal.py\"")
	}
	return fs
}

// optString 注册只在显式传入时生效的字符串参数。
func optString(fs *flag.FlagSet, dst **string, name, help string) {
	fs.Func(name, help, func(v string) error {
		*dst = &v
		return nil
	})
}

func optBool(fs *flag.FlagSet, dst **bool, name, help string) {
	fs.BoolFunc(name, help, func(v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		*dst = &b
		return nil
	})
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("无法识别的开关值 %q", v)
}

func main() {
	os.Exit(realMain())
}

// realMain 执行子命令并返回进程退出码。
func realMain() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		fmt.Print(usage)
		return 0
	}
	var f cliFlags
	fs := newFlagSet(cmd, &f)
	if err := fs.Parse(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "解析参数失败: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cmd, fs.Args(), f, cfg, logger); err != nil {
		logger.Error("命令执行失败",
			zap.String("command", cmd),
			zap.String("category", errs.KindOf(err).String()),
			zap.Error(err),
		)
		return 1
	}
	return 0
}

// loadConfig 依次叠加默认值、配置文件、-options 与命令行参数。
func loadConfig(f cliFlags) (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg, err := config.ParseOptions([]byte(f.options), cfg)
	if err != nil {
		return cfg, err
	}
	cfg = f.opts.Apply(cfg)
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

// run 按子命令调用转换服务并写出结果。
func run(ctx context.Context, cmd string, args []string, f cliFlags, cfg config.Config, logger *zap.Logger) error {
	if cmd == "image" {
		return runImage(ctx, args, f, cfg, logger)
	}
	svc, err := convert.New(cfg, convert.WithLogger(logger))
	if err != nil {
		return err
	}

	var res convert.Result
	switch cmd {
	case "table", "html", "markdown":
		if len(args) != 1 {
			return fmt.Errorf("%s 需要一个输入文件", cmd)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("无法读取 %s: %w", args[0], err)
		}
		switch cmd {
		case "table":
			res, err = svc.ConvertTable(ctx, args[0], data)
		case "html":
			res, err = svc.ConvertHTML(ctx, args[0], data, f.source)
		default:
			res, err = svc.ConvertMarkdown(ctx, args[0], data)
		}
		if err != nil {
			return err
		}
	case "url":
		if len(args) != 1 {
			return fmt.Errorf("url 需要一个网址")
		}
		if res, err = svc.ConvertURL(ctx, args[0]); err != nil {
			return err
		}
	case "merge":
		files := make([]assemble.File, 0, len(args))
		for _, p := range args {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("无法读取 %s: %w", p, err)
			}
			files = append(files, assemble.File{Name: filepath.Base(p), Data: data})
		}
		if res, err = svc.MergeFiles(ctx, files); err != nil {
			return err
		}
	case "job":
		if len(args) != 1 {
			return fmt.Errorf("job 需要一个任务文件")
		}
		job, err := dsl.Load(args[0], cfg)
		if err != nil {
			return err
		}
		if res, err = svc.RunJob(ctx, job); err != nil {
			return err
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("未知命令 %q", cmd)
	}

	if f.debug != "" && res.Document != nil {
		if err := writeDebug(res.Document, f.debug); err != nil {
			return err
		}
	}
	out := f.out
	if out == "" {
		out = res.Filename
	}
	if err := writeFile(out, res.Data); err != nil {
		return err
	}
	fmt.Printf("已生成 PDF：%s（%d 页，%d 字节，%.2f 秒）\n", out, res.PageCount, res.FileSizeBytes, res.ProcessingTime.Seconds())
	for _, w := range res.Warnings {
		fmt.Printf("  警告：%s\n", w)
	}
	return nil
}

func runImage(ctx context.Context, args []string, f cliFlags, cfg config.Config, logger *zap.Logger) error {
	if len(args) != 1 {
		return fmt.Errorf("image 需要一个输入图片")
	}
	parts := strings.Fields(f.command)
	if len(parts) == 0 {
		return errs.Config("main.image", "需要通过 -command 指定背景去除命令")
	}
	quality, err := imaging.ParseQuality(f.quality)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("无法读取 %s: %w", args[0], err)
	}
	var remover imaging.Remover = imaging.CommandRemover{
		Command:  parts[0],
		Args:     parts[1:],
		Timeout:  2 * time.Minute,
		MaxBytes: cfg.Limits.MaxImage,
	}
	res, err := remover.Process(ctx, data, quality)
	if err != nil {
		return err
	}
	out := f.out
	if out == "" {
		base := filepath.Base(args[0])
		out = strings.TrimSuffix(base, filepath.Ext(base)) + "-no-bg.png"
	}
	if err := writeFile(out, res.Data); err != nil {
		return err
	}
	logger.Info("background removed", zap.String("output", out), zap.Stringer("result", res))
	fmt.Printf("已生成图片：%s（%dx%d，%d 字节）\n", out, res.Width, res.Height, res.Bytes)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

func writeDebug(doc *layout.Document, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(doc, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
