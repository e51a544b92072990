package vision

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// DefaultOpenAIURL is the OpenAI API base.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAI calls the chat completions endpoint with the image attached as a
// PNG data URI at high detail.
type OpenAI struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI returns an OpenAI client. Model defaults to gpt-4o.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &OpenAI{cfg: cfg, client: httpClient(cfg.Timeout)}
}

func (o *OpenAI) Name() string { return ProviderOpenAI + "/" + o.cfg.Model }

func (o *OpenAI) Ready() error {
	if strings.TrimSpace(o.cfg.APIKey) == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY not set", ErrUnavailable)
	}
	return nil
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Ask(ctx context.Context, prompt string, img image.Image) (string, error) {
	if err := o.Ready(); err != nil {
		return "", err
	}
	encoded, err := imaging.Base64PNG(img)
	if err != nil {
		return "", err
	}

	body := openAIRequest{
		Model: o.cfg.Model,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &openAIImageURL{
					URL:    "data:image/png;base64," + encoded,
					Detail: "high",
				}},
			},
		}},
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}

	var response openAIResponse
	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + o.cfg.APIKey}
	if err := postJSON(ctx, o.client, url, headers, body, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
