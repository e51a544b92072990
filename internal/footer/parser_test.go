package footer

import (
	"testing"

	"github.com/ironsheep/camtrap-metadata/internal/metadata"
)

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name string
		text string
		want metadata.Fields
	}{
		{
			name: "full footer",
			text: "🔋 80% 2024/04/17 08:31:56 28°C 82°F CT14",
			want: metadata.Fields{
				metadata.TemperatureC: "28°C",
				metadata.TemperatureF: "82°F",
				metadata.CameraID:     "CT14",
				metadata.DateTime:     "2024-04-17 08:31:56",
			},
		},
		{
			name: "no degree signs",
			text: "2024/04/16 14:14:59 21C 70F CT10",
			want: metadata.Fields{
				metadata.TemperatureC: "21°C",
				metadata.TemperatureF: "70°F",
				metadata.CameraID:     "CT10",
				metadata.DateTime:     "2024-04-16 14:14:59",
			},
		},
		{
			name: "negative celsius",
			text: "-3°C 27°F cit11",
			want: metadata.Fields{
				metadata.TemperatureC: "-3°C",
				metadata.TemperatureF: "27°F",
				metadata.CameraID:     "CIT11",
			},
		},
		{
			name: "unspaced units",
			text: "23°C73°F CT5",
			want: metadata.Fields{
				metadata.TemperatureC: "23°C",
				metadata.TemperatureF: "73°F",
				metadata.CameraID:     "CT5",
			},
		},
		{
			name: "ordinal sign misread as degree",
			text: "23ºC 73ºF CT2",
			want: metadata.Fields{
				metadata.TemperatureC: "23°C",
				metadata.TemperatureF: "73°F",
				metadata.CameraID:     "CT2",
			},
		},
		{
			name: "camera id fallback without temperature",
			text: "garbled text CT19",
			want: metadata.Fields{metadata.CameraID: "CT19"},
		},
		{
			name: "empty",
			text: "   ",
			want: metadata.Fields{},
		},
		{
			name: "nothing recognisable",
			text: "lorem ipsum",
			want: metadata.Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Parse(%q)[%s] = %q, want %q", tt.text, k, got[k], v)
				}
			}
		})
	}
}

func TestParse_TemperatureValidation(t *testing.T) {
	p := NewParser()

	accepted := p.Analyze("23°C 73°F")
	if accepted.Fields[metadata.TemperatureC] != "23°C" || accepted.Fields[metadata.TemperatureF] != "73°F" {
		t.Errorf("(23,73) should be accepted, got %v", accepted.Fields)
	}
	if accepted.TemperaturePattern != 1 {
		t.Errorf("TemperaturePattern = %d, want 1", accepted.TemperaturePattern)
	}

	rejected := p.Analyze("23°C 90°F")
	if _, ok := rejected.Fields[metadata.TemperatureC]; ok {
		t.Errorf("(23,90) should be rejected, got %v", rejected.Fields)
	}
	if len(rejected.Rejected) == 0 {
		t.Error("rejection should be reported")
	}

	outOfRange := p.Analyze("60°C 140°F")
	if _, ok := outOfRange.Fields[metadata.TemperatureF]; ok {
		t.Errorf("out of range reading accepted: %v", outOfRange.Fields)
	}
}

func TestParse_AnchorBeatsFallback(t *testing.T) {
	p := NewParser()

	a := p.Analyze("2024/04/16 14:14:59 21C 70F CT10")
	if a.CameraIDSource != CameraIDFromAnchor {
		t.Errorf("CameraIDSource = %q, want %q", a.CameraIDSource, CameraIDFromAnchor)
	}

	a = p.Analyze("2024/04/16 14:14:59 CT10")
	if a.CameraIDSource != CameraIDFromFallback || a.Fields[metadata.CameraID] != "CT10" {
		t.Errorf("fallback: got source=%q id=%q", a.CameraIDSource, a.Fields[metadata.CameraID])
	}
}

func TestParse_InvalidDate(t *testing.T) {
	got := NewParser().Parse("2024/02/30 25:61:00")
	if _, ok := got[metadata.DateTime]; ok {
		t.Errorf("impossible date accepted: %v", got)
	}
}

func TestCheckTemperature(t *testing.T) {
	tests := []struct {
		c, f int
		ok   bool
	}{
		{23, 73, true},
		{23, 90, false},
		{-20, -4, true},
		{-21, -6, false},
		{50, 122, true},
		{0, 35, true},
		{0, 36, false},
	}
	for _, tt := range tests {
		if got := checkTemperature(tt.c, tt.f) == ""; got != tt.ok {
			t.Errorf("checkTemperature(%d, %d) ok = %v, want %v", tt.c, tt.f, got, tt.ok)
		}
	}
}
