package nlu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

// Gemini implements Classifier and Summarizer against the Gemini API.
// A zero API key leaves it disabled: every call fails closed with
// ErrDisabled before any network traffic.
type Gemini struct {
	apiKey string
	model  string
}

func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{apiKey: apiKey, model: model}
}

var (
	_ Classifier = (*Gemini)(nil)
	_ Summarizer = (*Gemini)(nil)
)

// Classify sends the message and context window to the model and parses the
// strict-JSON response into an Intent.
func (g *Gemini) Classify(ctx context.Context, message, contextWindow string, now time.Time) (*domain.Intent, error) {
	if g.apiKey == "" {
		return nil, ErrDisabled
	}

	prompt := buildClassifyPrompt(contextWindow, now)

	raw, err := g.generate(ctx, prompt, message)
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}

	clean := cleanModelJSON(raw)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("Classify: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	intent, err := intentFromMap(parsed)
	if err != nil {
		return nil, fmt.Errorf("Classify: %w", err)
	}
	return intent, nil
}

// Summarize produces the conversational query summary. Empty output is a
// valid result meaning "use the template".
func (g *Gemini) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	if g.apiKey == "" {
		return "", ErrDisabled
	}

	prompt := buildSummarizePrompt(req)

	text, err := g.generate(ctx, prompt, "Summarize the result.")
	if err != nil {
		return "", fmt.Errorf("Summarize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (g *Gemini) generate(ctx context.Context, system, user string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: system},
				{Text: user},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the strict-JSON instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only from the first '{' to the last '}' if junk remains.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
