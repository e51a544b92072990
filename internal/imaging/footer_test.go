package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// createFooterImage returns a white frame whose bottom bandRows rows are black
// with a sparse row of white "text" pixels through the middle of the band.
func createFooterImage(width, height, bandRows int) *image.RGBA {
	img := createInMemoryImage(width, height, color.White)
	for y := height - bandRows; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.Black)
		}
	}
	if bandRows > 2 {
		mid := height - bandRows/2
		for x := 0; x < width; x += 10 {
			img.Set(x, mid, color.White)
		}
	}
	return img
}

func TestDetectFooter_Band(t *testing.T) {
	img := createFooterImage(100, 300, 30)

	b := DetectFooter(img)
	if b.Fallback {
		t.Fatal("expected a detected band, got fallback")
	}
	if b.Start != 270 || b.Height != 30 {
		t.Errorf("boundary: got start=%d height=%d, want start=270 height=30", b.Start, b.Height)
	}
}

func TestDetectFooter_DecodedJPEG(t *testing.T) {
	data, err := EncodeJPEG(createFooterImage(96, 304, 32), 95)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode failed: %v", err)
	}
	if _, ok := img.(*image.YCbCr); !ok {
		t.Fatalf("decoded type: got %T, want *image.YCbCr", img)
	}

	b := DetectFooter(img)
	if b.Fallback {
		t.Fatal("expected a detected band, got fallback")
	}
	if b.Start < 271 || b.Start > 273 {
		t.Errorf("start: got %d, want ~272", b.Start)
	}
	if b.Start+b.Height != 304 {
		t.Errorf("band should reach the bottom edge, got %+v", b)
	}
}

func TestDetectFooter_Fallback(t *testing.T) {
	tests := []struct {
		name       string
		img        image.Image
		wantStart  int
		wantHeight int
	}{
		{"uniform white", createInMemoryImage(200, 100, color.White), 92, 8},
		{"uniform black", createInMemoryImage(100, 100, color.Black), 92, 8},
		{"band of five rows", createFooterImage(100, 300, 5), 276, 24},
		{"tiny image", createInMemoryImage(10, 3, color.White), 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := DetectFooter(tt.img)
			if !b.Fallback {
				t.Errorf("expected fallback, got %+v", b)
			}
			if b.Start != tt.wantStart || b.Height != tt.wantHeight {
				t.Errorf("boundary: got start=%d height=%d, want start=%d height=%d",
					b.Start, b.Height, tt.wantStart, tt.wantHeight)
			}
		})
	}
}

func TestDetectFooter_SixRowBand(t *testing.T) {
	b := DetectFooter(createFooterImage(100, 300, 6))
	if b.Fallback {
		t.Fatal("a six-row band should be accepted")
	}
	if b.Start != 294 || b.Height != 6 {
		t.Errorf("boundary: got start=%d height=%d, want start=294 height=6", b.Start, b.Height)
	}
}

func TestDetectFooter_DarkRunBeyondWindow(t *testing.T) {
	// Dark from row 500 down: the run reaches past the scan window without
	// meeting a scene row, so the detector falls back.
	img := createFooterImage(100, 1000, 500)

	b := DetectFooter(img)
	if !b.Fallback {
		t.Fatalf("expected fallback, got %+v", b)
	}
	if b.Height != 80 {
		t.Errorf("fallback height: got %d, want 80", b.Height)
	}
}

func TestDetectFooter_NeverNonPositive(t *testing.T) {
	sizes := [][2]int{{1, 1}, {5, 2}, {50, 12}, {640, 480}, {7, 1500}}
	for _, s := range sizes {
		for _, c := range []color.Color{color.White, color.Black, color.RGBA{90, 90, 90, 255}} {
			b := DetectFooter(createInMemoryImage(s[0], s[1], c))
			if b.Height <= 0 {
				t.Errorf("%dx%d: non-positive height %d", s[0], s[1], b.Height)
			}
			if b.Start < 0 || b.Start+b.Height > s[1] {
				t.Errorf("%dx%d: boundary %+v outside image", s[0], s[1], b)
			}
		}
	}
}

func TestRowStats_FooterLike(t *testing.T) {
	tests := []struct {
		name  string
		stats RowStats
		want  bool
	}{
		{"solid dark", RowStats{Mean: 10, Std: 2, Min: 5, Max: 15}, true},
		{"dark with text", RowStats{Mean: 40, Std: 70, Min: 0, Max: 255}, true},
		{"bright", RowStats{Mean: 200, Std: 5, Min: 190, Max: 210}, false},
		{"dark noisy low spread", RowStats{Mean: 60, Std: 35, Min: 20, Max: 110}, false},
		{"mean at threshold", RowStats{Mean: 80, Std: 0, Min: 80, Max: 80}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.FooterLike(); got != tt.want {
				t.Errorf("FooterLike() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRowIntensity(t *testing.T) {
	img := createInMemoryImage(10, 4, color.Black)
	for x := 0; x < 10; x += 2 {
		img.Set(x, 1, color.White)
	}

	s := RowIntensity(img, 1)
	if s.Min != 0 || s.Max < 250 {
		t.Errorf("min/max: got %d/%d, want 0/~255", s.Min, s.Max)
	}
	if s.Mean < 120 || s.Mean > 135 {
		t.Errorf("mean: got %.1f, want ~127.5", s.Mean)
	}

	s = RowIntensity(img, 0)
	if s.Mean != 0 || s.Std != 0 {
		t.Errorf("black row: got mean=%.1f std=%.1f, want 0/0", s.Mean, s.Std)
	}
}

func TestFallbackBoundary(t *testing.T) {
	b := FallbackBoundary(1000)
	if b.Start != 920 || b.Height != 80 || !b.Fallback {
		t.Errorf("FallbackBoundary(1000) = %+v", b)
	}
	if got := FallbackHeight(1000); got != 80 {
		t.Errorf("FallbackHeight(1000) = %d, want 80", got)
	}
}
