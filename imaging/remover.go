// Package imaging 调用外部进程去除图片背景。进程按
// `<command> [args...] <input> <output> --quality <standard|high>` 调用，
// 将 PNG 写入 output，并可在标准输出打印一行 JSON 结果。
package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/ByLCY/quire/errs"
)

// Quality 选择处理质量。
type Quality string

const (
	Standard Quality = "standard"
	High     Quality = "high"
)

// ParseQuality 解析质量参数，空字符串视为 standard。
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return Standard, nil
	case Standard, High:
		return q, nil
	}
	return "", errs.Validation("imaging.quality", "Invalid quality %q. Use standard or high.", s)
}

const (
	// DefaultMaxBytes 是输入图片的默认上限。
	DefaultMaxBytes = 20 << 20
	defaultTimeout  = 2 * time.Minute
)

// Result 是去除背景后的 PNG 以及元信息。
type Result struct {
	Data        []byte        `json:"-"`
	Quality     Quality       `json:"quality"`
	InputFormat string        `json:"inputFormat"`
	Format      string        `json:"format"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Bytes       int           `json:"fileSize"`
	Model       string        `json:"modelUsed,omitempty"`
	Duration    time.Duration `json:"processingTime"`
}

// Remover 去除图片背景。调用是同步的，失败不会重试。
type Remover interface {
	Process(ctx context.Context, img []byte, quality Quality) (Result, error)
}

// CommandRemover 通过外部命令处理图片，每次调用使用独立的临时目录。
type CommandRemover struct {
	Command  string
	Args     []string
	Timeout  time.Duration // 为 0 时使用 2 分钟
	MaxBytes int64         // 为 0 时使用 DefaultMaxBytes
}

// scriptReport 是进程在标准输出打印的结果。
type scriptReport struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Model   string `json:"model_used"`
}

// Process 校验输入、运行命令并读取输出图片。
func (r CommandRemover) Process(ctx context.Context, img []byte, quality Quality) (Result, error) {
	const op = "imaging.process"
	start := time.Now()
	if quality == "" {
		quality = Standard
	}
	format, err := r.check(img, quality)
	if err != nil {
		return Result{}, err
	}
	if r.Command == "" {
		return Result{}, errs.Config(op, "未配置背景去除命令")
	}

	dir, err := os.MkdirTemp("", "quire-imaging-")
	if err != nil {
		return Result{}, errs.Wrap(errs.KindProcessing, op, err, "创建临时目录失败")
	}
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "input."+format)
	out := filepath.Join(dir, "output.png")
	if err := os.WriteFile(in, img, 0o600); err != nil {
		return Result{}, errs.Wrap(errs.KindProcessing, op, err, "写入临时文件失败")
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, r.Args...), in, out, "--quality", string(quality))
	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	cmd.WaitDelay = time.Second
	runErr := cmd.Run()
	report, parsed := parseReport(stdout.Bytes())

	if runErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return Result{}, errs.New(errs.KindProcessing, op, "Background removal timed out after %s", timeout)
		case parsed && report.Error != "":
			return Result{}, errs.New(errs.KindProcessing, op, "%s", report.Error)
		case strings.TrimSpace(stderr.String()) != "":
			return Result{}, errs.New(errs.KindProcessing, op, "%s", strings.TrimSpace(stderr.String()))
		}
		return Result{}, errs.Wrap(errs.KindProcessing, op, runErr, "Background removal failed")
	}
	if parsed && !report.Success {
		msg := report.Error
		if msg == "" {
			msg = "Background removal failed"
		}
		return Result{}, errs.New(errs.KindProcessing, op, "%s", msg)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindProcessing, op, err, "进程没有生成输出图片")
	}
	cfg, outFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, errs.Wrap(errs.KindProcessing, op, err, "输出图片无法解析")
	}
	return Result{
		Data:        data,
		Quality:     quality,
		InputFormat: format,
		Format:      outFormat,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Bytes:       len(data),
		Model:       report.Model,
		Duration:    time.Since(start),
	}, nil
}

// check 校验大小与格式，返回识别出的输入格式。
func (r CommandRemover) check(img []byte, quality Quality) (string, error) {
	const op = "imaging.check"
	if _, err := ParseQuality(string(quality)); err != nil {
		return "", err
	}
	if len(img) == 0 {
		return "", errs.Validation(op, "No image file provided")
	}
	limit := r.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if int64(len(img)) > limit {
		return "", errs.Validation(op, "File size too large. Please upload an image smaller than %dMB.", limit>>20)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", errs.Validation(op, "Invalid file type. Please upload a JPEG, PNG, or WebP image.")
	}
	switch format {
	case "jpeg", "png", "webp":
		return format, nil
	}
	return "", errs.Validation(op, "Invalid file type. Please upload a JPEG, PNG, or WebP image.")
}

// parseReport 读取标准输出最后一行 JSON；没有 JSON 时 ok 为 false。
func parseReport(stdout []byte) (scriptReport, bool) {
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(last, "{") {
		return scriptReport{}, false
	}
	var rep scriptReport
	if err := json.Unmarshal([]byte(last), &rep); err != nil {
		return scriptReport{}, false
	}
	return rep, true
}

// String 便于日志输出。
func (r Result) String() string {
	return fmt.Sprintf("%s %dx%d %dB (%s, %s)", r.Format, r.Width, r.Height, r.Bytes, r.Quality, r.Duration.Round(time.Millisecond))
}
