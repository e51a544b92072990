package footer

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/ironsheep/camtrap-metadata/internal/metadata"
)

type fakeModel struct {
	reply   string
	err     error
	ready   error
	prompts []string
}

func (m *fakeModel) Ready() error { return m.ready }

func (m *fakeModel) Ask(ctx context.Context, prompt string, img image.Image) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func TestParseVisionReply(t *testing.T) {
	reply := "Here you go:\n```json\n{\"DateTime\": \"2024-04-16 14:14:59\", \"Temperature_C\": 21, " +
		"\"Temperature_F\": \"70\", \"Camera_ID\": \"ct10\", \"Extra\": \"x\"}\n```"

	fields, err := ParseVisionReply(reply)
	if err != nil {
		t.Fatalf("ParseVisionReply failed: %v", err)
	}

	want := metadata.Fields{
		metadata.DateTime:     "2024-04-16 14:14:59",
		metadata.TemperatureC: "21°C",
		metadata.TemperatureF: "70°F",
		metadata.CameraID:     "ct10",
	}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %q, want %q", k, fields[k], v)
		}
	}
}

func TestParseVisionReply_NullsAndUnits(t *testing.T) {
	fields, err := ParseVisionReply(`{"DateTime": null, "Temperature_C": "21°C", "Temperature_F": "70 F", "Camera_ID": ""}`)
	if err != nil {
		t.Fatalf("ParseVisionReply failed: %v", err)
	}
	if _, ok := fields[metadata.DateTime]; ok {
		t.Error("null DateTime should be dropped")
	}
	if _, ok := fields[metadata.CameraID]; ok {
		t.Error("blank Camera_ID should be dropped")
	}
	if fields[metadata.TemperatureC] != "21°C" {
		t.Errorf("Temperature_C = %q", fields[metadata.TemperatureC])
	}
	if fields[metadata.TemperatureF] != "70°F" {
		t.Errorf("Temperature_F = %q", fields[metadata.TemperatureF])
	}
}

func TestParseVisionReply_NotJSON(t *testing.T) {
	if _, err := ParseVisionReply("I cannot read this footer."); err == nil {
		t.Error("expected an error for a non-JSON reply")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json {} ", "{}"},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVisionOracle(t *testing.T) {
	model := &fakeModel{reply: `{"Camera_ID": "CT14"}`}
	oracle := NewVisionOracle(model, "")

	fields, err := oracle.ReadFooter(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("ReadFooter failed: %v", err)
	}
	if fields[metadata.CameraID] != "CT14" {
		t.Errorf("Camera_ID = %q", fields[metadata.CameraID])
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], "Temperature_C") {
		t.Error("default prompt not sent")
	}

	model.err = errors.New("timeout")
	if _, err := oracle.ReadFooter(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4))); err == nil {
		t.Error("model error should propagate")
	}

	model.ready = errors.New("no key")
	if oracle.Ready() == nil {
		t.Error("Ready should report the model state")
	}
}
