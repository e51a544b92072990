package footer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ironsheep/camtrap-metadata/internal/metadata"
)

// Physical limits for a camera-trap temperature reading.
const (
	minCelsius    = -20
	maxCelsius    = 50
	minFahrenheit = -4
	maxFahrenheit = 122
	maxUnitDrift  = 3.0
	minCameraID   = 2
)

// Temperature patterns, strictest first. Group 1 is Celsius, group 2 is
// Fahrenheit. A leading "(?:^|[^\d-])" stands in for a word boundary so that a
// minus sign stays attached to its number.
var temperaturePatterns = []string{
	`(?:^|[^\d-])(-?\d{1,2})°C\s+(-?\d{1,3})°F\b`,
	`(?:^|[^\d-])(-?\d{1,2})°C\s*(-?\d{1,3})°F\b`,
	`(?:^|[^\d-])(-?\d{1,2})C\s*(-?\d{1,3})F\b`,
	`\d{2,4}\s*(-?[0-5]?\d)°C\s*(-?\d{1,3})°F\b`,
	`\d{2,4}\s*(-?[0-5]?\d)C\s*(-?\d{1,3})F\b`,
	`(-?\d{1,2})°C.*?(-?\d{1,3})°F`,
	`(-?[0-5]?\d)°C\s*(-?\d{1,3})°F`,
}

// Camera ID patterns tried when no Fahrenheit anchor yields one. They match a
// letters-then-digits token at the very end of the text.
var cameraIDFallbacks = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z]{2,6}\d{1,4}[A-Z]*)$`),
	regexp.MustCompile(`([A-Z]+\d+[A-Z]*)$`),
}

var (
	dateTimePattern = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})\s+(\d{1,2}):(\d{2}):(\d{2})`)
	degreeVariants  = strings.NewReplacer("º", "°", "˚", "°", "⁰", "°")
)

// Camera ID source labels reported by Analyze.
const (
	CameraIDFromAnchor   = "fahrenheit_anchor"
	CameraIDFromFallback = "fallback"
)

// Analysis is the detailed outcome of parsing one footer text.
type Analysis struct {
	Fields metadata.Fields `json:"fields"`

	// TemperaturePattern is the 1-based index of the accepted temperature
	// pattern, or 0 when no reading passed validation.
	TemperaturePattern int `json:"temperature_pattern"`

	// CameraIDSource tells how Camera_ID was found.
	CameraIDSource string `json:"camera_id_source,omitempty"`

	// Rejected lists candidate readings that failed range or unit checks.
	Rejected []string `json:"rejected,omitempty"`
}

// Parser extracts telemetry fields from recognised footer text.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	temperatures []*regexp.Regexp
}

// NewParser compiles the footer patterns.
func NewParser() *Parser {
	p := &Parser{}
	for _, expr := range temperaturePatterns {
		p.temperatures = append(p.temperatures, regexp.MustCompile(expr))
	}
	return p
}

// Parse returns the fields found in text. Unparseable text yields an empty
// map.
func (p *Parser) Parse(text string) metadata.Fields {
	return p.Analyze(text).Fields
}

// Analyze parses text and reports which rules fired.
//
// Temperature readings are accepted only when Celsius lies in [-20, 50],
// Fahrenheit in [-4, 122], and the two agree within 3°F; otherwise the next
// pattern is tried. Camera_ID is the token following the accepted Fahrenheit
// value, falling back to a trailing letters-then-digits token.
func (p *Parser) Analyze(text string) Analysis {
	a := Analysis{Fields: make(metadata.Fields)}
	text = strings.TrimSpace(degreeVariants.Replace(text))
	if text == "" {
		return a
	}

	fahrenheit := ""
	for i, re := range p.temperatures {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		c, errC := strconv.Atoi(m[1])
		f, errF := strconv.Atoi(m[2])
		if errC != nil || errF != nil {
			continue
		}
		if reason := checkTemperature(c, f); reason != "" {
			a.Rejected = append(a.Rejected, fmt.Sprintf("pattern %d: %d°C %d°F %s", i+1, c, f, reason))
			continue
		}
		a.Fields[metadata.TemperatureC] = fmt.Sprintf("%d°C", c)
		a.Fields[metadata.TemperatureF] = fmt.Sprintf("%d°F", f)
		a.TemperaturePattern = i + 1
		fahrenheit = m[2]
		break
	}

	if fahrenheit != "" {
		if id := anchoredCameraID(text, fahrenheit); id != "" {
			a.Fields[metadata.CameraID] = id
			a.CameraIDSource = CameraIDFromAnchor
		}
	}
	if _, ok := a.Fields[metadata.CameraID]; !ok {
		for _, re := range cameraIDFallbacks {
			if m := re.FindStringSubmatch(text); m != nil && len(m[1]) >= minCameraID {
				a.Fields[metadata.CameraID] = strings.ToUpper(m[1])
				a.CameraIDSource = CameraIDFromFallback
				break
			}
		}
	}

	if dt, ok := parseDateTime(text); ok {
		a.Fields[metadata.DateTime] = dt
	}
	return a
}

// checkTemperature returns why a reading is implausible, or "".
func checkTemperature(c, f int) string {
	if c < minCelsius || c > maxCelsius || f < minFahrenheit || f > maxFahrenheit {
		return "out of range"
	}
	expected := float64(c)*9/5 + 32
	if math.Abs(float64(f)-expected) > maxUnitDrift {
		return fmt.Sprintf("unit mismatch (expected ~%.0f°F)", expected)
	}
	return ""
}

func anchoredCameraID(text, fahrenheit string) string {
	f := regexp.QuoteMeta(fahrenheit)
	anchors := []string{
		`(?i)(?:^|[^\d])` + f + `°F\s*([A-Z0-9]+)`,
		`(?i)(?:^|[^\d])` + f + `F\s*([A-Z0-9]+)`,
		`(?i)(?:^|[^\d])` + f + `°F\s*([A-Z]+\d+)`,
		`(?i)(?:^|[^\d])` + f + `°F\s*(\w+)`,
	}
	for _, expr := range anchors {
		m := regexp.MustCompile(expr).FindStringSubmatch(text)
		if m == nil {
			continue
		}
		id := strings.ToUpper(m[1])
		if len(id) >= minCameraID && isAlnum(id) {
			return id
		}
	}
	return ""
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// parseDateTime finds a "YYYY/MM/DD HH:MM:SS" stamp and returns it as
// "YYYY-MM-DD HH:MM:SS" if it is a real calendar time.
func parseDateTime(text string) (string, bool) {
	m := dateTimePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	parts := make([]int, 6)
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return "", false
		}
		parts[i] = n
	}
	t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)
	if t.Year() != parts[0] || int(t.Month()) != parts[1] || t.Day() != parts[2] ||
		t.Hour() != parts[3] || t.Minute() != parts[4] || t.Second() != parts[5] {
		return "", false
	}
	return t.Format("2006-01-02 15:04:05"), true
}
