package footer

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// TemplateFooter is suggested when no OCR candidate contains a digit.
const TemplateFooter = "🔋 80% 2024/04/17 08:31:56 28°C 82°F CT14"

// Correction replaces every occurrence of From with To.
type Correction struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Corrections is an ordered replacement dictionary for common OCR misreads.
// Entries are applied in order, each to the output of the previous one.
type Corrections []Correction

// DefaultCorrections returns the built-in dictionary of common footer
// misreads.
func DefaultCorrections() Corrections {
	return Corrections{
		{From: "Y7E", To: "82°F"},
		{From: "CTI4", To: "CT14"},
		{From: "CI19", To: "CT19"},
		{From: "280", To: "28°C"},
		{From: "316", To: "31°C"},
		{From: "& a", To: "🔋"},
		{From: "?", To: " "},
	}
}

type correctionsFile struct {
	Corrections Corrections `yaml:"corrections"`
}

// LoadCorrections reads a YAML dictionary of the form
//
//	corrections:
//	  - from: CTI4
//	    to: CT14
//
// A missing file yields DefaultCorrections.
func LoadCorrections(path string) (Corrections, error) {
	if path == "" {
		return DefaultCorrections(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultCorrections(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corrections: %w", err)
	}

	var f correctionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse corrections %s: %w", path, err)
	}
	out := f.Corrections[:0]
	for _, c := range f.Corrections {
		if c.From != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// Apply runs every replacement over s in order.
func (c Corrections) Apply(s string) string {
	for _, r := range c {
		s = strings.ReplaceAll(s, r.From, r.To)
	}
	return s
}

var (
	footerNoise = regexp.MustCompile(`[^\p{L}\p{N}_\s°:/🔋%-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Suggestion is a proposed manual footer text.
type Suggestion struct {
	Text     string `json:"suggested_text"`
	Original string `json:"original_ocr,omitempty"`
	Template bool   `json:"template"`
}

// SuggestCorrection picks the longest candidate containing a digit, applies
// dict, replaces characters outside letters, digits, whitespace and °:/🔋%-
// with spaces, and collapses runs of whitespace. With no usable candidate
// it suggests TemplateFooter.
func SuggestCorrection(candidates []string, dict Corrections) Suggestion {
	best := ""
	for _, c := range candidates {
		if utf8.RuneCountInString(c) > utf8.RuneCountInString(best) && strings.ContainsAny(c, "0123456789") {
			best = c
		}
	}
	if best == "" {
		return Suggestion{Text: TemplateFooter, Template: true}
	}

	text := dict.Apply(best)
	text = footerNoise.ReplaceAllString(text, " ")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	return Suggestion{Text: text, Original: best}
}
