package footer

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

func TestDebugRegions(t *testing.T) {
	hs := DebugRegions(imaging.Boundary{Start: 270, Height: 30}, 300)

	labels := []string{"detected", "detected+5px", "detected+20%", "fallback_8%"}
	heights := []int{30, 35, 36, 24}
	for i, h := range hs {
		if h.Label != labels[i] || h.Height != heights[i] {
			t.Errorf("region %d = %+v, want %s/%d", i, h, labels[i], heights[i])
		}
		if h.Start+h.Height != 300 {
			t.Errorf("region %s does not end at the bottom edge", h.Label)
		}
	}
}

func TestDebugger_Run(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecognizer{text: "23°C 73°F CT5"}
	d := Debugger{Recognizer: rec, Log: quietLogger()}

	report, err := d.Run(context.Background(), createFooterFrame(120, 300, 30), "IMG_0001.JPG", dir)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(report.Regions) != 4 {
		t.Fatalf("got %d regions, want 4", len(report.Regions))
	}
	if len(report.Files) != 8 {
		t.Errorf("got %d files, want 8", len(report.Files))
	}
	for _, f := range report.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("debug file missing: %v", err)
		}
		if !strings.Contains(f, "debug_footer_IMG_0001_") {
			t.Errorf("unexpected file name %s", f)
		}
	}
	if !strings.HasSuffix(report.Files[7], "fallback_8pct_processed.png") {
		t.Errorf("last file = %s", report.Files[7])
	}

	first := report.Regions[0]
	if !first.Inverted {
		t.Error("dark footer band should be inverted")
	}
	if first.Stats.MeanColor != "#000000" {
		t.Errorf("MeanColor = %s, want #000000", first.Stats.MeanColor)
	}
	if first.Parsed == nil || first.Parsed.Fields["Camera_ID"] != "CT5" {
		t.Errorf("parsed = %+v", first.Parsed)
	}
	if rec.calls != 4 {
		t.Errorf("recognizer called %d times, want 4", rec.calls)
	}
}

func TestDebugger_NoRecognizer(t *testing.T) {
	d := Debugger{Log: quietLogger()}

	report, err := d.Run(context.Background(), createFooterFrame(40, 100, 10), "frame.png", t.TempDir())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, r := range report.Regions {
		if r.OCRText != "" || r.Parsed != nil {
			t.Errorf("region %s ran OCR without a recognizer", r.Label)
		}
	}
}
