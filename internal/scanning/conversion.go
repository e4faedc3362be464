package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrUnsupportedFormat is returned for uploads that are neither a photo nor a PDF
var ErrUnsupportedFormat = errors.New("unsupported image format (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF)")

// pdfDPI keeps the small print on pump receipts legible to OCR
const pdfDPI = 300

type format int

const (
	formatUnknown format = iota
	formatPNG
	formatJPEG
	formatGIF
	formatHEIC
	formatPDF
)

var signatures = []struct {
	prefix string
	format format
}{
	{"\x89PNG\r\n\x1a\n", formatPNG},
	{"\xff\xd8\xff", formatJPEG},
	{"GIF87a", formatGIF},
	{"GIF89a", formatGIF},
	{"%PDF-", formatPDF},
}

// heicBrands are the ISO-BMFF ftyp brands written by phone cameras
var heicBrands = []string{"heic", "heix", "heif", "hevc", "mif1", "msf1"}

// sniff identifies an upload by its leading bytes. The declared content type
// only decides when the bytes are not recognized.
func sniff(data []byte, contentType string) format {
	if hasHEICBrand(data) {
		return formatHEIC
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(data, []byte(sig.prefix)) {
			return sig.format
		}
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "application/pdf":
		return formatPDF
	case strings.Contains(ct, "heic"), strings.Contains(ct, "heif"):
		return formatHEIC
	}
	return formatUnknown
}

func hasHEICBrand(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	for _, b := range heicBrands {
		if brand == b {
			return true
		}
	}
	return false
}

// toPNG returns the upload as PNG, the one format every scanner accepts.
// PNG input is returned as is; PDFs contribute their first page.
func toPNG(data []byte, contentType string) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data")
	}

	var (
		img image.Image
		err error
	)
	switch sniff(data, contentType) {
	case formatPNG:
		return data, nil
	case formatPDF:
		img, err = renderFirstPage(data)
	case formatHEIC:
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	case formatJPEG, formatGIF:
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			err = fmt.Errorf("decoding image: %w", err)
		}
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func renderFirstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.ImageDPI(0, pdfDPI)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}
