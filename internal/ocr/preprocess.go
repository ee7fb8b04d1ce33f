package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// MaxPageWidth is the widest raster sent to the engine, A4 at 300 DPI.
const MaxPageWidth = 2480

// Preprocess converts img to grayscale, downscales it to MaxPageWidth and
// stretches contrast between the 1st and 99th luminance percentiles.
func Preprocess(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var gray *image.Gray
	if w > MaxPageWidth {
		scaledH := h * MaxPageWidth / w
		if scaledH < 1 {
			scaledH = 1
		}
		gray = image.NewGray(image.Rect(0, 0, MaxPageWidth, scaledH))
		draw.CatmullRom.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	} else {
		gray = image.NewGray(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}
	stretchContrast(gray)
	return gray
}

func stretchContrast(g *image.Gray) {
	b := g.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return
	}
	var hist [256]int
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	lo, hi := percentile(hist, total, 0.01), percentile(hist, total, 0.99)
	if hi-lo < 16 {
		return
	}
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		switch {
		case v <= lo:
			lut[v] = 0
		case v >= hi:
			lut[v] = 255
		default:
			lut[v] = uint8((v - lo) * 255 / (hi - lo))
		}
	}
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for i, v := range row {
			row[i] = lut[v]
		}
	}
}

func percentile(hist [256]int, total int, q float64) int {
	target := int(float64(total) * q)
	seen := 0
	for v, n := range hist {
		seen += n
		if seen > target {
			return v
		}
	}
	return 255
}

// preparePage loads a rendered page, preprocesses it and re-encodes it as PNG.
func preparePage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img)); err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	return buf.Bytes(), nil
}
