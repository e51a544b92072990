//go:build cgo

package ocr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/otiai10/gosseract/v2"
)

const backendName = "gosseract"

// Ready checks that Tesseract is linked and has data for the configured
// language.
func (e *Engine) Ready() error {
	if e.prefix != "" {
		if _, err := os.Stat(filepath.Join(e.prefix, e.language+".traineddata")); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for _, l := range langs {
		if l == e.language {
			return nil
		}
	}
	return fmt.Errorf("%w: no traineddata for %q", ErrUnavailable, e.language)
}

func (e *Engine) version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}

func (e *Engine) recognize(png []byte, m Mode) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if e.prefix != "" {
		if err := client.SetTessdataPrefix(e.prefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(m.PSM)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if m.Whitelist != "" {
		if err := client.SetWhitelist(m.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%s pass failed: %w", m.Name, err)
	}
	return text, nil
}
