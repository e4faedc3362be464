package scanning

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner runs an external command. It lets tests stub the tesseract binary.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		slog.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// TesseractConfig configures the local tesseract OCR scanner
type TesseractConfig struct {
	Binary      string // binary name or absolute path; defaults to "tesseract"
	Lang        string // defaults to "eng"
	PSM         int    // page segmentation mode; 4 suits receipts (single column of variable sizes)
	TessdataDir string
	Timeout     time.Duration
}

// Tesseract implements the Scanner interface with the tesseract CLI
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
}

// NewTesseract creates a new Tesseract Scanner instance
func NewTesseract(cfg TesseractConfig) (*Tesseract, error) {
	return NewTesseractWithRunner(cfg, execRunner{})
}

// NewTesseractWithRunner creates a Tesseract scanner with a custom command runner for testing
func NewTesseractWithRunner(cfg TesseractConfig, runner Runner) (*Tesseract, error) {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM == 0 {
		cfg.PSM = 4
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	return &Tesseract{cfg: cfg, runner: runner}, nil
}

// ScanLines runs OCR over the receipt and returns its text lines
func (t *Tesseract) ScanLines(imageData []byte, contentType string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.Timeout)
	defer cancel()

	pngData, err := toPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	// tesseract stdin stdout -l <lang> --psm <n>
	args := []string{"stdin", "stdout", "-l", t.cfg.Lang, "--psm", fmt.Sprintf("%d", t.cfg.PSM)}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}

	out, errb, err := t.runner.Run(ctx, pngData, t.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("running tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	return cleanLines(strings.Split(string(out), "\n")), nil
}

// Close is a no-op; every scan is its own process
func (t *Tesseract) Close() error {
	return nil
}
