package imaging

import (
	"image"
	"math"
)

// Thresholds for classifying a grayscale row as part of the telemetry footer.
const (
	footerDarkMean    = 80.0  // rows brighter than this are scene content
	footerUniformStd  = 30.0  // low variance: solid colour band
	footerTextSpread  = 100.0 // high max-min: light text on dark band
	footerMinHeight   = 5     // bands this short are noise
	footerScanFrac    = 0.20  // scan window as a fraction of height
	footerScanRows    = 200   // scan window in rows
	footerFallbackPct = 0.08  // fallback band height as a fraction of height
)

// Boundary is the row range of the footer band: rows [Start, Start+Height).
type Boundary struct {
	Start    int  `json:"row_start"`
	Height   int  `json:"height"`
	Fallback bool `json:"fallback"`
}

// RowStats holds the intensity statistics of a single grayscale row.
type RowStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  uint8   `json:"min"`
	Max  uint8   `json:"max"`
}

// FooterLike reports whether the row looks like part of a dark telemetry band:
// it must be dark, and either uniform or carrying high-contrast text.
func (s RowStats) FooterLike() bool {
	if s.Mean >= footerDarkMean {
		return false
	}
	uniform := s.Std < footerUniformStd
	text := float64(s.Max)-float64(s.Min) > footerTextSpread
	return uniform || text
}

// DetectFooter locates the telemetry footer band at the bottom of img.
//
// Rows are scanned from the bottom edge upward inside a window covering the
// larger of the bottom 20% or the last 200 rows. The topmost row of the
// contiguous footer-like run attached to the bottom is the band start; the scan
// stops at the first non-footer row once a footer row has been seen.
//
// Bands of 5 rows or less, and runs that never meet a non-footer row before the
// top of the window (uniformly dark frames), fall back to the bottom 8% of the
// image. DetectFooter never returns a zero or negative height for a non-empty
// image.
func DetectFooter(img image.Image) Boundary {
	height := img.Bounds().Dy()
	if height <= 0 {
		return Boundary{Fallback: true}
	}

	gray := Grayscale(img)

	scanStart := int(float64(height) * (1 - footerScanFrac))
	if alt := height - footerScanRows; alt < scanStart {
		scanStart = alt
	}
	if scanStart < -1 {
		scanStart = -1
	}

	start := height
	closed := false
	for y := height - 1; y > scanStart; y-- {
		if grayRowStats(gray, y).FooterLike() {
			start = y
			continue
		}
		if start < height {
			closed = true
			break
		}
	}

	bandHeight := height - start
	if bandHeight > footerMinHeight && closed {
		return Boundary{Start: start, Height: bandHeight}
	}
	return FallbackBoundary(height)
}

// FallbackBoundary returns the fixed bottom-8% band for an image of the given
// height, at least one row tall.
func FallbackBoundary(height int) Boundary {
	h := int(float64(height) * footerFallbackPct)
	if h < 1 {
		h = 1
	}
	if h > height {
		h = height
	}
	return Boundary{Start: height - h, Height: h, Fallback: true}
}

// FallbackHeight returns the bottom-8% band height for an image height.
func FallbackHeight(height int) int {
	return int(float64(height) * footerFallbackPct)
}

// RowIntensity computes the statistics of row y (0-based from the top) of img.
func RowIntensity(img image.Image, y int) RowStats {
	return grayRowStats(Grayscale(img), y)
}

func grayRowStats(gray *image.Gray, y int) RowStats {
	b := gray.Bounds()
	width := b.Dx()
	if width == 0 {
		return RowStats{}
	}

	off := gray.PixOffset(b.Min.X, b.Min.Y+y)
	row := gray.Pix[off : off+width]

	var sum float64
	lo, hi := uint8(255), uint8(0)
	for _, v := range row {
		sum += float64(v)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	mean := sum / float64(width)

	var sq float64
	for _, v := range row {
		d := float64(v) - mean
		sq += d * d
	}

	return RowStats{
		Mean: mean,
		Std:  math.Sqrt(sq / float64(width)),
		Min:  lo,
		Max:  hi,
	}
}
