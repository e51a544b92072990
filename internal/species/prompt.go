package species

import (
	"fmt"
	"os"
	"strings"
)

// Default location context used when none is configured.
const (
	DefaultLocation = "Namibia, Africa"
	DefaultRegion   = "Southern Africa"
)

// DefaultTemplate is the identification prompt. {location},
// {location_upper} and {region} are substituted before each request.
const DefaultTemplate = `Analyze this camera trap image crop from {location_upper} and identify any animals present.

IMPORTANT CONTEXT: This image is from a camera trap in {location}, so focus on wildlife species native to or commonly found in {region} ecosystems.

Please provide:
1. Species name (common and scientific name)
2. Confidence level (High/Medium/Low), more confident if it matches known {region} species
3. Count of individuals visible
4. Brief description including behavior/posture
5. Habitat context if visible (desert, savanna, woodland, etc.)

If uncertain between similar species, mention the most likely candidates for {location}. If no animals are clearly visible, indicate that.

Format your response as JSON with keys: species, scientific_name, confidence, count, behavior, description, habitat`

// RenderPrompt fills the location placeholders in template.
func RenderPrompt(template, location, region string) string {
	return strings.NewReplacer(
		"{location_upper}", strings.ToUpper(location),
		"{location}", location,
		"{region}", region,
	).Replace(template)
}

// LoadTemplate reads a prompt template from path. An empty path returns
// DefaultTemplate.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read species prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("species prompt %s is empty", path)
	}
	return string(data), nil
}
