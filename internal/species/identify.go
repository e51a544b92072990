package species

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
	"github.com/ironsheep/camtrap-metadata/internal/metadata"
	"github.com/ironsheep/camtrap-metadata/internal/vision"
)

// ErrInvalidSelection is returned when a selection has no area inside the
// image.
var ErrInvalidSelection = errors.New("invalid selection")

// Model answers a prompt about an image. vision.Client satisfies it.
type Model interface {
	Ready() error
	Ask(ctx context.Context, prompt string, img image.Image) (string, error)
}

// Selection is a user-drawn rectangle in image pixels.
type Selection struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region clamps the selection to img and converts it to a crop region.
func (s Selection) Region(img image.Image) (imaging.Region, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return imaging.Region{}, fmt.Errorf("%w: width and height must be positive, got %dx%d", ErrInvalidSelection, s.Width, s.Height)
	}
	b := img.Bounds()
	r := imaging.ClampRegion(img, imaging.Region{
		X1: b.Min.X + s.X,
		Y1: b.Min.Y + s.Y,
		X2: b.Min.X + s.X + s.Width,
		Y2: b.Min.Y + s.Y + s.Height,
	})
	if r.Width() <= 0 || r.Height() <= 0 {
		return imaging.Region{}, fmt.Errorf("%w: selection lies outside the image", ErrInvalidSelection)
	}
	return r, nil
}

// Identification is a model's answer about the animals in a selection.
type Identification struct {
	Species        string `json:"species"`
	ScientificName string `json:"scientific_name"`
	Confidence     string `json:"confidence"`
	Count          int    `json:"count"`
	Behavior       string `json:"behavior,omitempty"`
	Description    string `json:"description"`
	Habitat        string `json:"habitat,omitempty"`
}

// Apply writes the identification onto the reserved keys of rec.
// Existing values are replaced; blank results leave them untouched.
func (id *Identification) Apply(rec *metadata.Record) {
	rec.Set(metadata.Species, id.Species)
	rec.Set(metadata.ScientificName, id.ScientificName)
	if id.Count > 0 {
		rec.Set(metadata.Count, strconv.Itoa(id.Count))
	}
	rec.Set(metadata.AIConfidence, id.Confidence)
	rec.Set(metadata.Behavior, id.Behavior)

	notes := id.Description
	if id.Habitat != "" {
		if notes != "" {
			notes += " "
		}
		notes += "Habitat: " + id.Habitat
	}
	rec.Set(metadata.Notes, notes)
}

// Identifier asks a vision model which animals appear in part of a frame.
type Identifier struct {
	model    Model
	template string
	location string
	region   string
	log      logrus.FieldLogger
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithTemplate replaces DefaultTemplate.
func WithTemplate(t string) Option {
	return func(id *Identifier) {
		if strings.TrimSpace(t) != "" {
			id.template = t
		}
	}
}

// WithLocation sets the location context substituted into the prompt.
func WithLocation(location, region string) Option {
	return func(id *Identifier) {
		if location != "" {
			id.location = location
		}
		if region != "" {
			id.region = region
		}
	}
}

// WithLogger sets the identifier's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(id *Identifier) { id.log = log }
}

// NewIdentifier creates an identifier backed by model.
func NewIdentifier(model Model, opts ...Option) *Identifier {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	id := &Identifier{
		model:    model,
		template: DefaultTemplate,
		location: DefaultLocation,
		region:   DefaultRegion,
		log:      discard,
	}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// Prompt returns the rendered prompt sent with every request.
func (id *Identifier) Prompt() string {
	return RenderPrompt(id.template, id.location, id.region)
}

// Ready reports whether the underlying model can be called. Failures wrap
// vision.ErrUnavailable.
func (id *Identifier) Ready() error {
	if id.model == nil {
		return fmt.Errorf("%w: no vision provider configured", vision.ErrUnavailable)
	}
	if err := id.model.Ready(); err != nil {
		if errors.Is(err, vision.ErrUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", vision.ErrUnavailable, err)
	}
	return nil
}

// Identify crops sel out of img and asks the model about it.
func (id *Identifier) Identify(ctx context.Context, img image.Image, sel Selection) (*Identification, error) {
	if err := id.Ready(); err != nil {
		return nil, err
	}
	r, err := sel.Region(img)
	if err != nil {
		return nil, err
	}
	crop, err := imaging.Crop(img, r)
	if err != nil {
		return nil, err
	}

	reply, err := id.model.Ask(ctx, id.Prompt(), crop)
	if err != nil {
		return nil, fmt.Errorf("species identification failed: %w", err)
	}

	result := ParseReply(reply)
	id.log.WithFields(logrus.Fields{
		"species":    result.Species,
		"confidence": result.Confidence,
		"count":      result.Count,
		"region":     fmt.Sprintf("%d,%d %dx%d", r.X1, r.Y1, r.Width(), r.Height()),
	}).Debug("species identified")
	return result, nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseReply extracts an Identification from a model reply. A reply with no
// JSON object yields species "Unknown" at Low confidence; a malformed object
// yields "Analysis Complete" at Medium confidence with a count of one. In both
// cases the raw reply becomes the description.
func ParseReply(reply string) *Identification {
	match := jsonObject.FindString(reply)
	if match == "" {
		return &Identification{Species: "Unknown", Confidence: "Low", Description: reply}
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return &Identification{Species: "Analysis Complete", Confidence: "Medium", Count: 1, Description: reply}
	}

	return &Identification{
		Species:        stringField(raw, "species"),
		ScientificName: stringField(raw, "scientific_name"),
		Confidence:     stringField(raw, "confidence"),
		Count:          countField(raw["count"]),
		Behavior:       stringField(raw, "behavior"),
		Description:    stringField(raw, "description"),
		Habitat:        stringField(raw, "habitat"),
	}
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// countField accepts numbers and strings such as "2" or "3 adults".
func countField(v any) int {
	switch c := v.(type) {
	case float64:
		if c < 0 {
			return 0
		}
		return int(c)
	case string:
		if m := leadingInt.FindStringSubmatch(c); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
	}
	return 0
}
