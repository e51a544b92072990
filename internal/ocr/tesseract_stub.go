//go:build !cgo

package ocr

import "fmt"

const backendName = "none (built without cgo)"

// Ready always fails: gosseract needs cgo.
func (e *Engine) Ready() error {
	return fmt.Errorf("%w: built without cgo", ErrUnavailable)
}

func (e *Engine) version() string { return "" }

func (e *Engine) recognize(png []byte, m Mode) (string, error) {
	return "", ErrUnavailable
}
