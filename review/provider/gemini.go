package provider

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// Gemini is an Oracle backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	retry  RetryPolicy
}

// NewGemini builds a client. An empty apiKey falls back to application default credentials.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	cfg := &genai.ClientConfig{}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, &OracleError{Provider: "gemini", Err: err}
	}
	return &Gemini{client: client, model: model, retry: DefaultRetryPolicy}, nil
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", &OracleError{Provider: "gemini", Err: errors.New("client is nil")}
	}

	content := genai.NewContentFromText(prompt, genai.RoleUser)
	var resp *genai.GenerateContentResponse
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		r, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", &OracleError{Provider: "gemini", Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &OracleError{Provider: "gemini", Err: errors.New("no response candidates")}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
