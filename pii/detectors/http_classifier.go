package pii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPTokenClassifier implements TokenClassifier against a model server
// exposing POST {baseURL}/classify. Different server generations name the
// label key "entity" or "entity_group"; both are normalized into the
// canonical TokenPrediction here so no pass ever sees the difference.
type HTTPTokenClassifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTokenClassifier creates a classifier for the given model server.
func NewHTTPTokenClassifier(baseURL string) *HTTPTokenClassifier {
	return &HTTPTokenClassifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetName returns the name of this classifier.
func (c *HTTPTokenClassifier) GetName() string {
	return "http_token_classifier"
}

// rawPrediction tolerates both key namings for the BIO label.
type rawPrediction struct {
	Word        string  `json:"word"`
	Entity      string  `json:"entity"`
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// Classify sends text to the model server and normalizes its response.
func (c *HTTPTokenClassifier) Classify(ctx context.Context, text string) ([]TokenPrediction, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d", resp.StatusCode)
	}

	var payload struct {
		Predictions []rawPrediction `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}

	predictions := make([]TokenPrediction, 0, len(payload.Predictions))
	for _, p := range payload.Predictions {
		label := p.Entity
		if label == "" {
			label = p.EntityGroup
		}
		if label == "" {
			continue
		}
		predictions = append(predictions, TokenPrediction{
			Word:     p.Word,
			Label:    label,
			Score:    p.Score,
			StartPos: p.Start,
			EndPos:   p.End,
		})
	}
	return predictions, nil
}

// Close implements the TokenClassifier interface.
func (c *HTTPTokenClassifier) Close() error {
	return nil
}
