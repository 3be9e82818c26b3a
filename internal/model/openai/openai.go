// Package openai adapts the teacher's internal/ai/openai client
// (kiliankoe-gptdash/backend/internal/ai/openai/openai.go) to
// model.Provider, additionally extracting the usage object the teacher's
// client decoded and discarded.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiliankoe/partyquorum/internal/model"
)

type Client struct {
	APIKey  string
	BaseURL string
	http    *http.Client
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

func (c *Client) CompleteWithSystem(ctx context.Context, modelID string, systemPrompt string, prompt string) (string, model.Usage, error) {
	if c.APIKey == "" {
		return "", model.Usage{}, errors.New("missing AI_GATEWAY_API_KEY")
	}
	if systemPrompt == "" {
		systemPrompt = "You are a concise AI. Answer briefly in 1-2 sentences."
	}

	payload := map[string]any{
		"model": modelID,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.8,
		"max_tokens":  200,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", model.Usage{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", model.Usage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", model.Usage{}, fmt.Errorf("openai status %d", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", model.Usage{}, err
	}
	if len(out.Choices) == 0 {
		return "", model.Usage{}, errors.New("no choices")
	}
	usage := model.Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens}
	return strings.TrimSpace(out.Choices[0].Message.Content), usage, nil
}
