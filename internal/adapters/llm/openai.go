package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIEngine implements ports.AnalysisEngine over any OpenAI-compatible
// chat completions API: OpenAI, Azure, Together, Gemini's compatibility
// endpoint, or a local Ollama /v1.
type OpenAIEngine struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	defaultModel string
}

func NewOpenAIEngine(baseURL, apiKey, defaultModel string) *OpenAIEngine {
	if defaultModel == "" {
		defaultModel = "gpt-4o-mini"
	}
	return &OpenAIEngine{
		client:       &http.Client{Timeout: 120 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: defaultModel,
	}
}

func (e *OpenAIEngine) GenerateText(ctx context.Context, prompt string) (string, error) {
	return e.GenerateTextWithModel(ctx, prompt, "")
}

func (e *OpenAIEngine) GenerateTextWithModel(ctx context.Context, prompt string, modelID string) (string, error) {
	if modelID == "" {
		modelID = e.defaultModel
	}

	payload := map[string]interface{}{
		"model": modelID,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/chat/completions", bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}
