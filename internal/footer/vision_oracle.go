package footer

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/ironsheep/camtrap-metadata/internal/metadata"
)

// VisionModel answers a text prompt about an image.
type VisionModel interface {
	Ready() error
	Ask(ctx context.Context, prompt string, img image.Image) (string, error)
}

// DefaultPrompt asks a vision model for the footer fields as JSON.
const DefaultPrompt = `This image is the telemetry footer of a camera trap photo.
Read it and return a JSON object with exactly these keys:

{
  "DateTime": "YYYY-MM-DD HH:MM:SS",
  "Temperature_C": "number only, e.g. 21",
  "Temperature_F": "number only, e.g. 70",
  "Camera_ID": "identifier such as CT10 or CIT11"
}

The date usually looks like 2024/04/16, the time like 14:14:59 and the
temperature like 21°C 70°F or 21C 70F. Use null for any value you cannot read.
Return only the JSON object.`

// NewVisionOracle returns an Oracle that sends each crop to model with
// prompt. An empty prompt uses DefaultPrompt.
func NewVisionOracle(model VisionModel, prompt string) Oracle {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	return visionOracle{model: model, prompt: prompt}
}

type visionOracle struct {
	model  VisionModel
	prompt string
}

func (o visionOracle) Ready() error {
	return o.model.Ready()
}

func (o visionOracle) ReadFooter(ctx context.Context, img image.Image) (metadata.Fields, error) {
	reply, err := o.model.Ask(ctx, o.prompt, img)
	if err != nil {
		return nil, err
	}
	return ParseVisionReply(reply)
}

var bareNumber = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

// ParseVisionReply decodes a model's JSON footer reply. Markdown code fences
// are stripped, null and blank values dropped, and bare temperature numbers
// get their unit appended. Other values are kept as the model wrote them.
func ParseVisionReply(reply string) (metadata.Fields, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(StripFences(reply)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse vision reply: %w", err)
	}

	fields := make(metadata.Fields)
	for _, k := range []metadata.Key{metadata.DateTime, metadata.TemperatureC, metadata.TemperatureF, metadata.CameraID} {
		v, ok := raw[string(k)]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" || strings.EqualFold(s, "null") {
			continue
		}
		switch k {
		case metadata.TemperatureC:
			s = withUnit(s, "C")
		case metadata.TemperatureF:
			s = withUnit(s, "F")
		}
		fields[k] = s
	}
	return fields, nil
}

func withUnit(s, unit string) string {
	if bareNumber.MatchString(s) {
		return s + "°" + unit
	}
	trimmed := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(strings.TrimSuffix(s, unit)), "°"), " ")
	if bareNumber.MatchString(trimmed) {
		return trimmed + "°" + unit
	}
	return s
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		return strings.TrimSpace(s)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}
