package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	env := filepath.Join(t.TempDir(), "missing.env")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--env-file", env, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFrame(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 100; x++ {
			c := color.RGBA{210, 210, 210, 255}
			if y >= 270 {
				c = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseCmd(t *testing.T) {
	out, err := runCmd(t, "parse", "2024/04/16", "14:14:59", "21C", "70F", "CT10")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var got struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("bad output %q: %v", out, err)
	}
	if got.Fields["Camera_ID"] != "CT10" || got.Fields["Temperature_F"] != "70°F" {
		t.Errorf("fields = %v", got.Fields)
	}
}

func TestInspectCmd(t *testing.T) {
	path := writeFrame(t)
	if err := os.WriteFile(strings.TrimSuffix(path, ".png")+"_metadata.txt", []byte("Species: Kudu\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "--oracle", "none", "inspect", path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out, `"Species": "Kudu"`) {
		t.Errorf("output = %s", out)
	}
}

func TestExtractCmd_NoOracle(t *testing.T) {
	_, err := runCmd(t, "--oracle", "none", "extract", writeFrame(t))
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestDebugFooterCmd(t *testing.T) {
	out := t.TempDir()
	stdout, err := runCmd(t, "--oracle", "none", "debug-footer", writeFrame(t), "--out", out)
	if err != nil {
		t.Fatalf("debug-footer failed: %v", err)
	}
	if !strings.Contains(stdout, `"files_saved"`) {
		t.Errorf("output = %s", stdout)
	}
	files, _ := filepath.Glob(filepath.Join(out, "debug_footer_frame_*.png"))
	if len(files) != 8 {
		t.Errorf("got %d debug files, want 8", len(files))
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "camtrap-metadata dev") || !strings.Contains(out, "OCR:") {
		t.Errorf("output = %s", out)
	}
}

func TestInvalidOracle(t *testing.T) {
	if _, err := runCmd(t, "--oracle", "psychic", "parse", "x"); err == nil {
		t.Error("expected invalid oracle error")
	}
}
