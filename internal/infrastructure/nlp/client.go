package nlp

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

// Client talks to the language-model service that provides sentence
// segmentation with token-level annotations and sentence embeddings.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Segmenter = (*Client)(nil)
var _ ports.Embedder = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenPayload struct {
	Text      string            `json:"text"`
	Lemma     string            `json:"lemma"`
	POS       string            `json:"pos"`
	Dep       string            `json:"dep"`
	Head      int               `json:"head"`
	LeftEdge  int               `json:"left_edge"`
	RightEdge int               `json:"right_edge"`
	StartChar int               `json:"start_char"`
	Morph     map[string]string `json:"morph"`
	IsAlpha   bool              `json:"is_alpha"`
	IsStop    bool              `json:"is_stop"`
	IsPunct   bool              `json:"is_punct"`
}

type entityPayload struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type sentencePayload struct {
	Text     string          `json:"text"`
	Tokens   []tokenPayload  `json:"tokens"`
	Entities []entityPayload `json:"entities"`
}

// Segment sends batched (id, text) pairs and maps parsed sentences back to
// their correlation ids.
func (c *Client) Segment(ctx context.Context, items []ports.SegmentItem) (map[string][]domain.ParsedSentence, error) {
	if len(items) == 0 {
		return map[string][]domain.ParsedSentence{}, nil
	}

	type item struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	payload := struct {
		Items []item `json:"items"`
	}{Items: make([]item, 0, len(items))}
	for _, it := range items {
		payload.Items = append(payload.Items, item{ID: it.ID, Text: it.Text})
	}

	var resp struct {
		Results []struct {
			ID        string            `json:"id"`
			Sentences []sentencePayload `json:"sentences"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/parse", payload, &resp); err != nil {
		return nil, fmt.Errorf("segment batch: %w", err)
	}

	parsed := make(map[string][]domain.ParsedSentence, len(resp.Results))
	for _, result := range resp.Results {
		sentences := make([]domain.ParsedSentence, 0, len(result.Sentences))
		for _, sent := range result.Sentences {
			sentences = append(sentences, toParsedSentence(sent))
		}
		parsed[result.ID] = sentences
	}
	return parsed, nil
}

// Embed requests a sentence vector with the producing model's metadata.
func (c *Client) Embed(ctx context.Context, text string) (*domain.Embedding, error) {
	payload := map[string]any{"text": text}

	var resp struct {
		ModelLanguage string    `json:"model_language"`
		ModelName     string    `json:"model_name"`
		Vector        []float64 `json:"vector"`
	}
	if err := c.post(ctx, "/embed", payload, &resp); err != nil {
		return nil, fmt.Errorf("embed sentence: %w", err)
	}

	return &domain.Embedding{
		ModelLanguage: resp.ModelLanguage,
		ModelName:     resp.ModelName,
		Vector:        resp.Vector,
	}, nil
}

func toParsedSentence(sent sentencePayload) domain.ParsedSentence {
	parsed := domain.ParsedSentence{
		Text:     sent.Text,
		Tokens:   make([]domain.Token, 0, len(sent.Tokens)),
		Entities: make([]domain.EntitySpan, 0, len(sent.Entities)),
	}
	for i, tok := range sent.Tokens {
		parsed.Tokens = append(parsed.Tokens, domain.Token{
			Index:     i,
			Text:      tok.Text,
			Lemma:     tok.Lemma,
			POS:       tok.POS,
			Dep:       tok.Dep,
			Head:      tok.Head,
			LeftEdge:  tok.LeftEdge,
			RightEdge: tok.RightEdge,
			StartChar: tok.StartChar,
			Morph:     tok.Morph,
			IsAlpha:   tok.IsAlpha,
			IsStop:    tok.IsStop,
			IsPunct:   tok.IsPunct,
		})
	}
	for _, ent := range sent.Entities {
		parsed.Entities = append(parsed.Entities, domain.EntitySpan{
			Label: ent.Label,
			Start: ent.Start,
			End:   ent.End,
		})
	}
	return parsed
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
