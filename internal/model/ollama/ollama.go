// Package ollama adapts the datenspuren variant of the teacher's ollama
// client (kiliankoe-gptdash/datenspuren/backend/internal/ai/ollama/ollama.go)
// to model.Provider, additionally decoding the prompt_eval_count/eval_count
// fields Ollama's /api/chat response carries but the teacher's client
// ignored.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiliankoe/partyquorum/internal/model"
)

type Client struct {
	Host string
	http *http.Client
}

func New(host string) *Client {
	if host == "" {
		host = "http://localhost:11434"
	}
	return &Client{Host: strings.TrimRight(host, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

func (c *Client) CompleteWithSystem(ctx context.Context, modelID string, systemPrompt string, prompt string) (string, model.Usage, error) {
	if systemPrompt == "" {
		systemPrompt = "You are a concise AI. Answer briefly in 1-2 sentences."
	}
	payload := map[string]any{
		"model": modelID,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return "", model.Usage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", model.Usage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", model.Usage{}, fmt.Errorf("ollama status %d", resp.StatusCode)
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		PromptEvalCount int64 `json:"prompt_eval_count"`
		EvalCount       int64 `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", model.Usage{}, err
	}
	usage := model.Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount}
	return strings.TrimSpace(out.Message.Content), usage, nil
}
