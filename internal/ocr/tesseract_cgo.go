//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

type tesseract struct {
	opts Options
}

func newEngine(opts Options) (engine, error) {
	return &tesseract{opts: opts}, nil
}

func (t *tesseract) client() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if t.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(t.opts.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return client, nil
}

// words runs word-level recognition on img. Tesseract reports boxes relative to the
// encoded image, whose origin is always (0, 0).
func (t *tesseract) words(ctx context.Context, img image.Image) ([]Word, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client, err := t.client()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		words = append(words, Word{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds:     box.Box,
		})
	}
	return words, nil
}

func (t *tesseract) version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
