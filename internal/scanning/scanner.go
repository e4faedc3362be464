package scanning

import (
	"context"
	"fmt"
	"time"
)

// Scanner turns a receipt photo or PDF into the text lines printed on it
type Scanner interface {
	// ScanLines recognizes the receipt's text, one entry per printed line, top to bottom
	ScanLines(imageData []byte, contentType string) ([]string, error)
	// Close closes the scanner and releases resources
	Close() error
}

// transcriber sends a PNG to a vision model and returns the model's raw answer
type transcriber func(ctx context.Context, pngData []byte) (string, error)

// transcribe runs the steps every model-backed scanner shares: rasterize the
// upload, ask the model for a transcription and parse its answer into lines.
func transcribe(timeout time.Duration, imageData []byte, contentType string, model transcriber) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pngData, err := toPNG(imageData, contentType)
	if err != nil {
		return nil, err
	}

	answer, err := model(ctx, pngData)
	if err != nil {
		return nil, err
	}

	lines, err := parseLinesJSON(answer)
	if err != nil {
		return nil, fmt.Errorf("parsing transcription: %w", err)
	}
	return lines, nil
}
