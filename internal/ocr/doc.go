// Package ocr recognises footer text with Tesseract (via gosseract/v2).
//
// Engine implements the raw-text recognizer used by footer.FromText. Each
// strip is read several times with different page segmentation modes and
// the longest result is kept, since Tesseract often drops or merges tokens
// on short, single-line footers.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Builds without cgo compile a stub whose Ready always returns
// ErrUnavailable, so the rest of the tool still works with a vision oracle
// or with no oracle at all.
package ocr
