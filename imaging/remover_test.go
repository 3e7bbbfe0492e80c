package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/ByLCY/quire/errs"
)

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// shellRemover 用 sh 模拟外部脚本：$1 输入，$2 输出，$4 质量。
func shellRemover(t *testing.T, script string) CommandRemover {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return CommandRemover{Command: "sh", Args: []string{"-c", script, "remover"}, Timeout: 10 * time.Second}
}

func TestProcessCopiesOutput(t *testing.T) {
	r := shellRemover(t, `cp "$1" "$2" && echo '{"success": true, "model_used": "u2net-'"$4"'"}'`)
	res, err := r.Process(context.Background(), tinyPNG(t, 3, 2), High)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Format != "png" || res.InputFormat != "png" || res.Width != 3 || res.Height != 2 {
		t.Fatalf("unexpected metadata: %+v", res)
	}
	if res.Quality != High || res.Model != "u2net-high" || res.Bytes != len(res.Data) {
		t.Fatalf("unexpected report: %+v", res)
	}
}

func TestProcessWithoutReport(t *testing.T) {
	r := shellRemover(t, `cp "$1" "$2"`)
	res, err := r.Process(context.Background(), tinyPNG(t, 1, 1), "")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Quality != Standard || res.Model != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestProcessFailures(t *testing.T) {
	img := tinyPNG(t, 1, 1)
	cases := map[string]string{
		"reported":  `echo '{"success": false, "error": "model unavailable"}'; exit 1`,
		"stderr":    `echo "boom" >&2; exit 3`,
		"no output": `echo '{"success": true}'`,
		"bad png":   `echo "not an image" > "$2"`,
	}
	for name, script := range cases {
		_, err := shellRemover(t, script).Process(context.Background(), img, Standard)
		if !errs.Is(err, errs.KindProcessing) {
			t.Fatalf("%s: expected processing error, got %v", name, err)
		}
	}

	_, err := shellRemover(t, `echo '{"success": false, "error": "model unavailable"}'; exit 1`).Process(context.Background(), img, Standard)
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("reported error should surface, got %v", err)
	}
}

func TestProcessTimeout(t *testing.T) {
	r := shellRemover(t, `sleep 5`)
	r.Timeout = 100 * time.Millisecond
	_, err := r.Process(context.Background(), tinyPNG(t, 1, 1), Standard)
	if !errs.Is(err, errs.KindProcessing) || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestProcessValidatesInput(t *testing.T) {
	r := CommandRemover{Command: "true"}
	if _, err := r.Process(context.Background(), nil, Standard); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("empty input should be a validation error, got %v", err)
	}
	if _, err := r.Process(context.Background(), []byte("GIF89a not really"), Standard); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("unknown format should be a validation error, got %v", err)
	}
	if _, err := r.Process(context.Background(), tinyPNG(t, 1, 1), "ultra"); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("unknown quality should be a validation error, got %v", err)
	}
	small := CommandRemover{Command: "true", MaxBytes: 10}
	if _, err := small.Process(context.Background(), tinyPNG(t, 4, 4), Standard); !errs.Is(err, errs.KindValidation) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("oversized input should be a validation error, got %v", err)
	}
	if _, err := (CommandRemover{}).Process(context.Background(), tinyPNG(t, 1, 1), Standard); !errs.Is(err, errs.KindConfig) {
		t.Fatalf("missing command should be a config error, got %v", err)
	}
}

func TestParseQuality(t *testing.T) {
	for in, want := range map[string]Quality{"": Standard, "HIGH": High, " standard ": Standard} {
		got, err := ParseQuality(in)
		if err != nil || got != want {
			t.Fatalf("ParseQuality(%q) = %q, %v", in, got, err)
		}
	}
}
