package footer

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// RegionReport describes one debug region.
type RegionReport struct {
	Hypothesis
	Stats         imaging.BandStats `json:"stats"`
	Inverted      bool              `json:"inverted"`
	OriginalPath  string            `json:"original_path"`
	ProcessedPath string            `json:"processed_path"`
	OCRText       string            `json:"ocr_text,omitempty"`
	OCRError      string            `json:"ocr_error,omitempty"`
	Parsed        *Analysis         `json:"parsed,omitempty"`
}

// DebugReport is the result of a footer debug dump.
type DebugReport struct {
	Image    string           `json:"image"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Boundary imaging.Boundary `json:"boundary"`
	Regions  []RegionReport   `json:"regions"`
	Files    []string         `json:"files_saved"`
}

// Debugger saves every footer region of a frame for inspection. Recognizer
// is optional; when it is set and ready, each processed strip is also read
// and parsed.
type Debugger struct {
	Recognizer TextRecognizer
	Parser     *Parser
	Log        logrus.FieldLogger
}

// DebugRegions returns the full-width regions dumped for a boundary: the
// detected band, plus 5 rows, plus 20%, and the plain bottom 8%.
func DebugRegions(b imaging.Boundary, imageHeight int) []Hypothesis {
	hs := Hypotheses(b, imageHeight)
	fb := min(max(imaging.FallbackHeight(imageHeight), 1), imageHeight)
	hs[len(hs)-1] = Hypothesis{Label: "fallback_8%", Start: imageHeight - fb, Height: fb}
	hs[0].Label = "detected"
	hs[1].Label = "detected+5px"
	hs[2].Label = "detected+20%"
	return hs
}

// Run writes a grayscale and an OCR-preprocessed PNG for each region of img
// into dir, named after name, and returns their statistics.
func (d Debugger) Run(ctx context.Context, img image.Image, name, dir string) (*DebugReport, error) {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	parser := d.Parser
	if parser == nil {
		parser = NewParser()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}

	bounds := img.Bounds()
	report := &DebugReport{
		Image:    name,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Boundary: imaging.DetectFooter(img),
	}

	ocrReady := d.Recognizer != nil && d.Recognizer.Ready() == nil
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	for _, h := range DebugRegions(report.Boundary, bounds.Dy()) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		crop, err := imaging.Crop(img, imaging.Region{
			X1: bounds.Min.X,
			Y1: bounds.Min.Y + h.Start,
			X2: bounds.Max.X,
			Y2: bounds.Max.Y,
		})
		if err != nil {
			return report, err
		}

		rr := RegionReport{Hypothesis: h, Stats: imaging.MeasureBand(crop)}
		rr.Inverted = rr.Stats.Dark()

		stem := fmt.Sprintf("debug_footer_%s_%s", base, strings.ReplaceAll(h.Label, "%", "pct"))
		rr.OriginalPath = filepath.Join(dir, stem+"_original.png")
		rr.ProcessedPath = filepath.Join(dir, stem+"_processed.png")

		if err := imaging.SavePNG(imaging.Grayscale(crop), rr.OriginalPath); err != nil {
			return report, fmt.Errorf("failed to save %s: %w", rr.OriginalPath, err)
		}
		processed := imaging.PrepareForOCR(crop)
		if err := imaging.SavePNG(processed, rr.ProcessedPath); err != nil {
			return report, fmt.Errorf("failed to save %s: %w", rr.ProcessedPath, err)
		}
		report.Files = append(report.Files, rr.OriginalPath, rr.ProcessedPath)

		if ocrReady {
			text, err := d.Recognizer.Recognize(ctx, processed)
			if err != nil {
				rr.OCRError = err.Error()
			} else {
				rr.OCRText = text
				a := parser.Analyze(text)
				rr.Parsed = &a
			}
		}

		log.WithFields(logrus.Fields{
			"region":   h.Label,
			"rows":     h.Height,
			"avg":      rr.Stats.AvgBrightness,
			"contrast": rr.Stats.Contrast,
		}).Debug("footer region dumped")
		report.Regions = append(report.Regions, rr)
	}
	return report, nil
}
