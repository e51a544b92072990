package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// BandStats summarises the brightness of a footer strip.
type BandStats struct {
	AvgBrightness float64 `json:"avg_brightness"`
	MinBrightness uint8   `json:"min_brightness"`
	MaxBrightness uint8   `json:"max_brightness"`
	Contrast      int     `json:"contrast"`

	// MeanColor is the average colour of the strip as "#rrggbb".
	MeanColor string `json:"mean_color"`
}

// MeasureBand computes brightness statistics and the mean colour of img.
func MeasureBand(img image.Image) BandStats {
	b := img.Bounds()
	if b.Empty() {
		return BandStats{MeanColor: "#000000"}
	}

	gray := Grayscale(img)
	var sum float64
	lo, hi := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		sum += float64(v)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var rs, gs, bs float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rs += float64(r >> 8)
			gs += float64(g >> 8)
			bs += float64(bl >> 8)
		}
	}
	n := float64(b.Dx() * b.Dy())
	mean := colorful.Color{R: rs / n / 255, G: gs / n / 255, B: bs / n / 255}.Clamped()

	return BandStats{
		AvgBrightness: math.Round(sum/float64(len(gray.Pix))*10) / 10,
		MinBrightness: lo,
		MaxBrightness: hi,
		Contrast:      int(hi) - int(lo),
		MeanColor:     mean.Hex(),
	}
}

// Dark reports whether the strip is dark enough to be inverted before text
// recognition.
func (s BandStats) Dark() bool {
	return s.AvgBrightness < invertBelow
}

// Grayscale converts img to 8-bit luminance, one byte per pixel, with its
// bounds rebased to the origin.
func Grayscale(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		// bild writes the luminance into R, G and B alike.
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// OCR preprocessing parameters.
const (
	invertBelow = 120.0 // average brightness under which a strip is inverted
	ocrGain     = 2.5
	ocrBias     = 10.0
	ocrUpscale  = 4
	morphRadius = 1.0
)

// PrepareForOCR turns a footer strip into a high-contrast, dark-on-light,
// upscaled grayscale image suited to a text recogniser. Dark strips are
// inverted, a linear gain is applied, small gaps are closed with a
// dilate/erode pass, and the result is scaled up 4x.
func PrepareForOCR(img image.Image) image.Image {
	stats := MeasureBand(img)

	var work image.Image = effect.Grayscale(img)
	if stats.Dark() {
		work = effect.Invert(work)
	}

	work = adjust.Apply(work, func(c color.RGBA) color.RGBA {
		return color.RGBA{R: gain(c.R), G: gain(c.G), B: gain(c.B), A: c.A}
	})

	work = effect.Erode(effect.Dilate(work, morphRadius), morphRadius)

	return Upscale(work, ocrUpscale)
}

func gain(v uint8) uint8 {
	f := math.Abs(float64(v)*ocrGain + ocrBias)
	if f > 255 {
		f = 255
	}
	return uint8(f)
}
