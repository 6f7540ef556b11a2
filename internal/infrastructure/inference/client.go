package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SpeechCorpus/internal/domain"
	"SpeechCorpus/internal/ports"
)

// Client talks to the inference service hosting the red-line classifier and
// the sentiment model.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.RedLineClassifier = (*Client)(nil)
var _ ports.SentimentScorer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Classify sends the sentence for red-line scoring.
func (c *Client) Classify(ctx context.Context, text string) (*domain.RedLineScore, error) {
	var resp struct {
		ModelLanguage    string   `json:"model_language"`
		ModelName        string   `json:"model_name"`
		ModelType        string   `json:"model_type"`
		ModelVersion     string   `json:"model_version"`
		ModelPerformance *float64 `json:"model_performance"`
		Prediction       float64  `json:"prediction"`
	}
	if err := c.post(ctx, "/redline", map[string]any{"text": text}, &resp); err != nil {
		return nil, fmt.Errorf("classify red line: %w", err)
	}

	return &domain.RedLineScore{
		ModelLanguage:    resp.ModelLanguage,
		ModelName:        resp.ModelName,
		ModelType:        resp.ModelType,
		ModelVersion:     resp.ModelVersion,
		ModelPerformance: resp.ModelPerformance,
		Prediction:       resp.Prediction,
	}, nil
}

// Score sends the sentence for sentiment prediction.
func (c *Client) Score(ctx context.Context, text string) (*domain.Sentiment, error) {
	var resp struct {
		ModelName       string  `json:"model_name"`
		TokenizerName   string  `json:"tokenizer_name"`
		Prediction      float64 `json:"prediction"`
		PredictionLabel string  `json:"prediction_label"`
	}
	if err := c.post(ctx, "/sentiment", map[string]any{"text": text}, &resp); err != nil {
		return nil, fmt.Errorf("score sentiment: %w", err)
	}

	return &domain.Sentiment{
		ModelName:       resp.ModelName,
		TokenizerName:   resp.TokenizerName,
		Prediction:      resp.Prediction,
		PredictionLabel: resp.PredictionLabel,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
