package vision

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// Gemini calls Google Gemini through the generative-ai-go SDK.
type Gemini struct {
	cfg Config
}

// NewGemini returns a Gemini client. Model defaults to gemini-1.5-flash.
func NewGemini(cfg Config) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &Gemini{cfg: cfg}
}

func (g *Gemini) Name() string { return ProviderGemini + "/" + g.cfg.Model }

func (g *Gemini) Ready() error {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY not set", ErrUnavailable)
	}
	return nil
}

func (g *Gemini) Ask(ctx context.Context, prompt string, img image.Image) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", err
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	opts := []option.ClientOption{option.WithAPIKey(g.cfg.APIKey)}
	if g.cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(g.cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.cfg.Model)
	model.SetTemperature(float32(g.cfg.Temperature))
	if g.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(g.cfg.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt), genai.ImageData("png", data))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return geminiText(resp)
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return strings.TrimSpace(sb.String()), nil
}
