package vision

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/ironsheep/camtrap-metadata/internal/imaging"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama calls a local Ollama server's /api/generate endpoint with the image
// attached.
type Ollama struct {
	cfg    Config
	client *http.Client
}

// NewOllama returns an Ollama client. Model defaults to llava.
func NewOllama(cfg Config) *Ollama {
	if cfg.Model == "" {
		cfg.Model = "llava"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	return &Ollama{cfg: cfg, client: httpClient(cfg.Timeout)}
}

func (o *Ollama) Name() string { return ProviderOllama + "/" + o.cfg.Model }

// Ready only validates configuration; the server is not probed.
func (o *Ollama) Ready() error {
	if strings.TrimSpace(o.cfg.BaseURL) == "" {
		return fmt.Errorf("%w: OLLAMA_URL not set", ErrUnavailable)
	}
	return nil
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

func (o *Ollama) Ask(ctx context.Context, prompt string, img image.Image) (string, error) {
	if err := o.Ready(); err != nil {
		return "", err
	}
	encoded, err := imaging.Base64PNG(img)
	if err != nil {
		return "", err
	}

	options := map[string]any{"temperature": o.cfg.Temperature}
	if o.cfg.MaxTokens > 0 {
		options["num_predict"] = o.cfg.MaxTokens
	}
	body := ollamaRequest{
		Model:   o.cfg.Model,
		Prompt:  prompt,
		Images:  []string{encoded},
		Stream:  false,
		Options: options,
	}

	var response struct {
		Response string `json:"response"`
	}
	url := strings.TrimRight(o.cfg.BaseURL, "/") + "/api/generate"
	if err := postJSON(ctx, o.client, url, nil, body, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
