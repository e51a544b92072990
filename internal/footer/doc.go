// Package footer reads the telemetry strip that camera traps burn into the
// bottom of each frame: date and time, temperature in both units, battery
// level and camera identifier.
//
// # Extraction
//
// An Extractor detects the footer band, then submits up to four region
// hypotheses over the right half of the frame to an Oracle, in order:
//
//	exact       the detected band
//	exact+5px   the band plus five rows
//	exact+20%   the band grown by a fifth
//	fallback    the larger of the band or the bottom 8%
//
// The first hypothesis that yields any field wins and the rest are not
// tried. The left half is skipped because many cameras draw a moon-phase or
// logo glyph there.
//
// # Oracles
//
// Vision models return structured JSON and are trusted as-is (see
// NewVisionOracle). Plain text recognizers are wrapped with FromText, which
// runs the recognised text through a Parser that validates temperatures and
// anchors the camera ID on the Fahrenheit reading.
package footer
