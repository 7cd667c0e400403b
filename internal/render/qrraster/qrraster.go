// Package qrraster turns a QR symbol matrix into raster image bytes suitable
// for embedding into a rendered document. Symbol construction is delegated
// to the QR library; this package owns only scale, margin, and encoding, and
// is fully deterministic for identical input.
package qrraster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
)

// Level mirrors the QR error-correction levels.
type Level = qrcode.RecoveryLevel

const (
	LevelLow     = qrcode.Low
	LevelMedium  = qrcode.Medium
	LevelHigh    = qrcode.High
	LevelHighest = qrcode.Highest
)

// Options controls rasterization. SizePx is the desired edge length; the
// effective size is the largest integer-scaled grid not exceeding it, so
// modules stay square and the output stays byte-stable.
type Options struct {
	SizePx        int
	MarginModules int
	Level         Level
}

// Encode builds the symbol for payload and rasterizes it to PNG bytes.
func Encode(payload string, opts Options) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qrraster: empty payload")
	}
	if opts.SizePx <= 0 {
		opts.SizePx = 256
	}
	if opts.MarginModules < 0 {
		opts.MarginModules = 0
	}

	symbol, err := qrcode.New(payload, opts.Level)
	if err != nil {
		return nil, fmt.Errorf("qrraster: build symbol: %w", err)
	}
	// The library's own quiet zone is disabled; margin is ours to control.
	symbol.DisableBorder = true
	matrix := symbol.Bitmap()
	dim := len(matrix)
	if dim == 0 {
		return nil, fmt.Errorf("qrraster: empty symbol matrix")
	}

	grid := dim + 2*opts.MarginModules
	scale := opts.SizePx / grid
	if scale < 1 {
		scale = 1
	}
	edge := grid * scale

	img := image.NewGray(image.Rect(0, 0, edge, edge))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	offset := opts.MarginModules * scale
	for y, row := range matrix {
		for x, dark := range row {
			if !dark {
				continue
			}
			paintModule(img, offset+x*scale, offset+y*scale, scale)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qrraster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func paintModule(img *image.Gray, x0, y0, scale int) {
	for dy := 0; dy < scale; dy++ {
		for dx := 0; dx < scale; dx++ {
			img.SetGray(x0+dx, y0+dy, color.Gray{Y: 0})
		}
	}
}
