package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// ErrUnavailable is returned when Tesseract or its language data cannot be
// used.
var ErrUnavailable = errors.New("tesseract unavailable")

// FooterWhitelist restricts recognition to the characters that appear in
// camera-trap footers.
const FooterWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz°CF%:/-"

// Tesseract page segmentation modes used for footers.
const (
	PSMSingleBlock = 6
	PSMSingleLine  = 7
	PSMSingleWord  = 8
)

// Mode is one recognition pass.
type Mode struct {
	Name      string `json:"name"`
	PSM       int    `json:"psm"`
	Whitelist string `json:"whitelist,omitempty"`
}

// FooterModes are tried in order for every strip: block, line and word
// segmentation restricted to FooterWhitelist, then an unrestricted block pass.
var FooterModes = []Mode{
	{Name: "block", PSM: PSMSingleBlock, Whitelist: FooterWhitelist},
	{Name: "line", PSM: PSMSingleLine, Whitelist: FooterWhitelist},
	{Name: "word", PSM: PSMSingleWord, Whitelist: FooterWhitelist},
	{Name: "block-open", PSM: PSMSingleBlock},
}

// Config configures an Engine.
type Config struct {
	// Language is the Tesseract language code. Defaults to "eng".
	Language string

	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string

	// Modes overrides FooterModes.
	Modes []Mode
}

// Engine recognises text in preprocessed footer strips. Each call uses its
// own Tesseract client, so an Engine is safe for concurrent use.
type Engine struct {
	language string
	prefix   string
	modes    []Mode
}

// New creates an engine. It does not touch Tesseract until first use.
func New(cfg Config) *Engine {
	e := &Engine{
		language: cfg.Language,
		prefix:   cfg.TessdataPrefix,
		modes:    cfg.Modes,
	}
	if e.language == "" {
		e.language = "eng"
	}
	if len(e.modes) == 0 {
		e.modes = FooterModes
	}
	return e
}

// Pass is the text produced by one mode.
type Pass struct {
	Mode Mode   `json:"mode"`
	Text string `json:"text"`
	Err  string `json:"error,omitempty"`
}

// Recognize runs every mode over img and returns the longest trimmed result.
// img should already be preprocessed (see imaging.PrepareForOCR).
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	passes, err := e.RecognizeAll(ctx, img)
	if err != nil {
		return "", err
	}
	best := ""
	for _, p := range passes {
		if len(p.Text) > len(best) {
			best = p.Text
		}
	}
	return best, nil
}

// RecognizeAll runs every mode over img and returns each result. A failing
// mode is recorded in its Pass; an error is returned only when Tesseract is
// unavailable or every mode failed.
func (e *Engine) RecognizeAll(ctx context.Context, img image.Image) ([]Pass, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	passes := make([]Pass, 0, len(e.modes))
	failed := 0
	var lastErr error
	for _, m := range e.modes {
		if err := ctx.Err(); err != nil {
			return passes, err
		}
		text, err := e.recognize(data, m)
		p := Pass{Mode: m, Text: strings.TrimSpace(text)}
		if err != nil {
			p.Err = err.Error()
			failed++
			lastErr = err
		}
		passes = append(passes, p)
	}
	if failed == len(e.modes) {
		return passes, fmt.Errorf("ocr failed: %w", lastErr)
	}
	return passes, nil
}

// Language returns the configured language code.
func (e *Engine) Language() string {
	return e.language
}

// Info describes the OCR backend.
type Info struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Language  string `json:"language"`
	Backend   string `json:"backend"`
	Error     string `json:"error,omitempty"`
}

// Info reports whether the engine can run and which Tesseract it uses.
func (e *Engine) Info() Info {
	info := Info{Language: e.language, Backend: backendName}
	if err := e.Ready(); err != nil {
		info.Error = err.Error()
		return info
	}
	info.Available = true
	info.Version = e.version()
	return info
}
