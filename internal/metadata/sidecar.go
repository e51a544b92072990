package metadata

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	sidecarSuffix    = "_metadata.txt"
	sidecarGenerator = "Camera Trap Metadata Editor"
	sidecarTimestamp = "2006-01-02 15:04:05"
)

// SidecarPath returns the sidecar file for an image: the image path with its
// extension replaced by "_metadata.txt".
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + sidecarSuffix
}

// ReadSidecar loads the sidecar record of imagePath. A missing sidecar yields
// an empty record and no error.
func ReadSidecar(imagePath string) (*Record, error) {
	f, err := os.Open(SidecarPath(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return NewRecord(), nil
	}
	if err != nil {
		return NewRecord(), fmt.Errorf("failed to open sidecar: %w", err)
	}
	defer f.Close()

	rec, err := ParseSidecar(f)
	if err != nil {
		return rec, fmt.Errorf("failed to read sidecar: %w", err)
	}
	return rec, nil
}

// ParseSidecar reads "key: value" lines. Blank lines, "#" comments and lines
// without a colon are skipped. The value is everything after the first colon.
func ParseSidecar(r io.Reader) (*Record, error) {
	rec := NewRecord()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		rec.Set(Key(strings.TrimSpace(key)), value)
	}
	return rec, scanner.Err()
}

// FormatSidecar renders rec in sidecar form: three comment header lines
// naming the image, the generator and the update time, a blank line, then one
// "key: value" line per non-empty value.
func FormatSidecar(imageName string, rec *Record, now time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Metadata for %s\n", imageName)
	fmt.Fprintf(&buf, "# Generated by %s\n", sidecarGenerator)
	fmt.Fprintf(&buf, "# Last updated: %s\n\n", now.Format(sidecarTimestamp))

	for _, k := range rec.Keys() {
		v := rec.Value(k)
		if v == "" {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\n", k, singleLine(v))
	}
	return buf.Bytes()
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}

// WriteSidecar replaces the sidecar of imagePath with rec.
func WriteSidecar(imagePath string, rec *Record, now time.Time) error {
	data := FormatSidecar(filepath.Base(imagePath), rec, now)
	if err := os.WriteFile(SidecarPath(imagePath), data, 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}
