// internal/insights/collaborator.go
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stockpilot/inventory-agent/internal/config"
)

// TextCollaborator phrases a structured explanation as prose. Implementations
// must stay optional: the explainer falls back to a template whenever a
// collaborator is absent or failing.
type TextCollaborator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// geminiCollaborator calls the text-generation collaborator's generateContent
// endpoint. One retry with backoff, then the caller's fallback takes over.
type geminiCollaborator struct {
	client *resty.Client
	apiKey string
	model  string
}

type generateContentRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewTextCollaborator returns nil when no API key is configured; the
// explainer treats nil as "template only".
func NewTextCollaborator(cfg config.InsightsConfig) TextCollaborator {
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		return nil
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.RequestTimeout)
	client.SetRetryCount(1)
	client.SetRetryWaitTime(500 * time.Millisecond)

	return &geminiCollaborator{
		client: client,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (g *geminiCollaborator) GenerateText(ctx context.Context, prompt string) (string, error) {
	var body generateContentRequest
	body.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	body.Contents[0].Parts = append(body.Contents[0].Parts, struct {
		Text string `json:"text"`
	}{Text: prompt})

	var payload generateContentResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&payload).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
	if err != nil {
		return "", fmt.Errorf("text collaborator call failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("text collaborator call failed: status %d", resp.StatusCode())
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("text collaborator returned no candidates")
	}
	return payload.Candidates[0].Content.Parts[0].Text, nil
}
