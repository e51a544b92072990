package footer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
	"github.com/ironsheep/camtrap-metadata/internal/metadata"
)

// ErrUnavailable is returned when no oracle is configured or the configured
// one cannot be reached. It is distinct from a failed read of one region.
var ErrUnavailable = errors.New("footer oracle unavailable")

// Oracle reads telemetry fields from a footer crop.
type Oracle interface {
	// Ready returns nil when the oracle can accept requests.
	Ready() error

	// ReadFooter returns the fields found in img. An empty result means the
	// crop was readable but held nothing usable.
	ReadFooter(ctx context.Context, img image.Image) (metadata.Fields, error)
}

// TextRecognizer returns the raw text in an image.
type TextRecognizer interface {
	Ready() error
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// FromText adapts a raw-text recognizer into an Oracle whose output is run
// through parser. A nil parser uses NewParser.
func FromText(r TextRecognizer, parser *Parser) Oracle {
	if parser == nil {
		parser = NewParser()
	}
	return textOracle{recognizer: r, parser: parser}
}

type textOracle struct {
	recognizer TextRecognizer
	parser     *Parser
}

func (o textOracle) Ready() error {
	return o.recognizer.Ready()
}

func (o textOracle) ReadFooter(ctx context.Context, img image.Image) (metadata.Fields, error) {
	text, err := o.recognizer.Recognize(ctx, imaging.PrepareForOCR(img))
	if err != nil {
		return nil, err
	}
	return o.parser.Parse(text), nil
}

// Hypothesis is one candidate footer region: the bottom Height rows of the
// image, starting at row Start.
type Hypothesis struct {
	Label  string `json:"label"`
	Start  int    `json:"row_start"`
	Height int    `json:"height"`
}

// Hypothesis labels in the order they are tried.
const (
	LabelExact    = "exact"
	LabelPlus5    = "exact+5px"
	LabelGrow20   = "exact+20%"
	LabelFallback = "fallback"
)

// Hypotheses returns the ordered regions tried for a detected boundary in an
// image of the given height: the exact band, the band plus 5 rows, the band
// grown by 20%, and the larger of the band or the bottom 8%. Heights are
// clamped to the image and every region ends at the bottom edge.
func Hypotheses(b imaging.Boundary, imageHeight int) []Hypothesis {
	h := b.Height
	candidates := []struct {
		label  string
		height int
	}{
		{LabelExact, h},
		{LabelPlus5, h + 5},
		{LabelGrow20, int(float64(h) * 1.2)},
		{LabelFallback, max(h, imaging.FallbackHeight(imageHeight))},
	}

	out := make([]Hypothesis, 0, len(candidates))
	for _, c := range candidates {
		height := min(max(c.height, 1), imageHeight)
		out = append(out, Hypothesis{Label: c.label, Start: imageHeight - height, Height: height})
	}
	return out
}

// Outcome reports how an extraction went.
type Outcome struct {
	Fields   metadata.Fields  `json:"fields"`
	Boundary imaging.Boundary `json:"boundary"`

	// Hypothesis is the label of the region that produced Fields, or ""
	// when every region came back empty.
	Hypothesis string `json:"hypothesis,omitempty"`

	// Attempts is the number of regions submitted to the oracle.
	Attempts int `json:"attempts"`
}

// Extractor locates the footer of a frame and asks an oracle to read it.
// Extractor is safe for concurrent use when its oracle is.
type Extractor struct {
	oracle Oracle
	cache  *imaging.ImageCache
	log    logrus.FieldLogger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithCache decodes files through cache.
func WithCache(c *imaging.ImageCache) ExtractorOption {
	return func(e *Extractor) { e.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) ExtractorOption {
	return func(e *Extractor) { e.log = l }
}

// NewExtractor creates an extractor around oracle. A nil oracle makes every
// extraction return ErrUnavailable.
func NewExtractor(oracle Oracle, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		oracle: oracle,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.cache == nil {
		e.cache = imaging.NewImageCache()
	}
	return e
}

// Ready reports whether the oracle can accept requests.
func (e *Extractor) Ready() error {
	if e.oracle == nil {
		return ErrUnavailable
	}
	if err := e.oracle.Ready(); err != nil {
		if errors.Is(err, ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Extract returns the footer fields of img.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (metadata.Fields, error) {
	out, err := e.Run(ctx, img)
	return out.Fields, err
}

// ExtractFile decodes the image at path and returns its footer fields.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (metadata.Fields, error) {
	if err := e.Ready(); err != nil {
		return metadata.Fields{}, err
	}
	img, err := e.cache.Load(path)
	if err != nil {
		return metadata.Fields{}, err
	}
	out, err := e.run(ctx, img, e.log.WithField("image", filepath.Base(path)))
	return out.Fields, err
}

// Run tries each region hypothesis in order, over the right half of the
// frame, and stops at the first non-empty result. Later hypotheses are never
// submitted. Per-region oracle errors are logged and the next region is
// tried; exhausting every region yields empty fields and no error.
//
// If the oracle is not ready, no region is submitted and ErrUnavailable is
// returned.
func (e *Extractor) Run(ctx context.Context, img image.Image) (Outcome, error) {
	if err := e.Ready(); err != nil {
		return Outcome{Fields: metadata.Fields{}}, err
	}
	return e.run(ctx, img, e.log)
}

func (e *Extractor) run(ctx context.Context, img image.Image, log logrus.FieldLogger) (Outcome, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	out := Outcome{Fields: metadata.Fields{}, Boundary: imaging.DetectFooter(img)}
	if width < 2 || height < 1 {
		return out, nil
	}

	for _, h := range Hypotheses(out.Boundary, height) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		region := imaging.Region{
			X1: bounds.Min.X + width/2,
			Y1: bounds.Min.Y + h.Start,
			X2: bounds.Max.X,
			Y2: bounds.Max.Y,
		}
		crop, err := imaging.Crop(img, region)
		if err != nil {
			log.WithError(err).WithField("hypothesis", h.Label).Debug("footer crop skipped")
			continue
		}

		out.Attempts++
		fields, err := e.oracle.ReadFooter(ctx, crop)
		hlog := log.WithFields(logrus.Fields{"hypothesis": h.Label, "rows": h.Height})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			hlog.WithError(err).Warn("footer read failed")
			continue
		}
		if fields.Empty() {
			hlog.Debug("footer region empty")
			continue
		}

		out.Fields = fields
		out.Hypothesis = h.Label
		hlog.WithField("fields", len(fields)).Info("footer fields extracted")
		return out, nil
	}

	log.WithField("attempts", out.Attempts).Info("no footer fields found")
	return out, nil
}
