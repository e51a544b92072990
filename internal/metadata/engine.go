package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// FooterSource reads telemetry fields from the footer of an image file.
type FooterSource interface {
	ExtractFile(ctx context.Context, path string) (Fields, error)
}

// SaveResult describes which stores a Save updated.
type SaveResult struct {
	SidecarPath string `json:"sidecar_path"`

	// EmbeddedWritten is true when the image's EXIF block was rewritten.
	EmbeddedWritten bool `json:"embedded_written"`

	// EmbeddedErr holds the embedded write failure, if any. The sidecar has
	// already been written when it is set.
	EmbeddedErr error `json:"-"`
}

// Partial reports whether the sidecar was saved but the embedded write failed.
func (r SaveResult) Partial() bool {
	return r.EmbeddedErr != nil
}

// Engine merges sidecar, embedded and footer metadata and persists edits.
// It holds no per-image state and is safe for concurrent use.
type Engine struct {
	footer FooterSource
	log    logrus.FieldLogger
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithFooter sets the source used to fill missing footer fields. Without one,
// records contain only stored metadata.
func WithFooter(f FooterSource) Option {
	return func(e *Engine) { e.footer = f }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the time source used for sidecar headers and EXIF
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a merge engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Get returns the merged record for the image at path.
//
// Sidecar values win over embedded ones key by key. When any of
// Temperature_C, Temperature_F or Camera_ID is still missing, the footer
// source is asked and its fields are added beneath, never replacing a key
// already present. Store and extraction failures are logged and the record
// built so far is returned.
func (e *Engine) Get(ctx context.Context, path string) (*Record, error) {
	log := e.log.WithField("image", filepath.Base(path))

	rec, err := ReadSidecar(path)
	if err != nil {
		log.WithError(err).Warn("sidecar unreadable")
	}

	embedded, err := ReadEmbedded(path)
	if err != nil {
		log.WithError(err).Debug("no embedded metadata")
	}
	rec.Merge(embedded)

	missing := rec.Missing(FooterKeys...)
	if len(missing) == 0 || e.footer == nil {
		return rec, nil
	}

	if err := ctx.Err(); err != nil {
		return rec, err
	}

	fields, err := e.footer.ExtractFile(ctx, path)
	if err != nil {
		log.WithError(err).WithField("missing", missing).Warn("footer extraction failed")
		return rec, nil
	}
	rec.Fill(fields)

	log.WithFields(logrus.Fields{
		"missing": len(missing),
		"found":   len(fields),
	}).Debug("footer fields merged")
	return rec, nil
}

// Save writes rec to the sidecar, then to the embedded EXIF block for JPEG
// and TIFF files.
//
// An error is returned only when the sidecar write fails. Embedded write
// failures, including formats whose block cannot be rewritten, are logged and
// reported in SaveResult.EmbeddedErr; the sidecar is not rolled back.
func (e *Engine) Save(path string, rec *Record) (SaveResult, error) {
	log := e.log.WithField("image", filepath.Base(path))
	now := e.now()

	res := SaveResult{SidecarPath: SidecarPath(path)}
	if err := WriteSidecar(path, rec, now); err != nil {
		return res, fmt.Errorf("failed to save metadata for %s: %w", filepath.Base(path), err)
	}

	if !imaging.HasEXIFContainer(path) {
		log.Debug("format carries no exif, sidecar only")
		return res, nil
	}

	if err := WriteEmbedded(path, rec, now); err != nil {
		log.WithError(err).Warn("embedded metadata not written")
		res.EmbeddedErr = err
		return res, nil
	}
	res.EmbeddedWritten = true

	log.WithField("keys", rec.Len()).Info("metadata saved")
	return res, nil
}
