package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/itish2003/rag-eval/models"
)

// HTTPScorer delegates scoring to an external evaluation service.
// Request: {"question":"...","answer":"...","contexts":["..."]}
// Response: {"metrics":{"Faithfulness":{"value":0.9,"reason":"...","pass":true}}}
type HTTPScorer struct {
	endpoint   string
	httpClient *http.Client
}

type httpScoreResponse struct {
	Metrics models.SubsystemMetrics `json:"metrics"`
	Error   string                  `json:"error,omitempty"`
}

func NewHTTPScorer(endpoint string, httpClient *http.Client) *HTTPScorer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPScorer{endpoint: endpoint, httpClient: httpClient}
}

func (s *HTTPScorer) Score(ctx context.Context, in EvaluationInput) (models.SubsystemMetrics, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scoring request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: scoring request to %s: %v", ErrProviderUnavailable, s.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: scorer at %s returned %s: %s", ErrProviderUnavailable, s.endpoint, resp.Status, bytes.TrimSpace(msg))
	}

	var out httpScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode scoring response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("scorer at %s: %s", s.endpoint, out.Error)
	}
	if out.Metrics == nil {
		out.Metrics = models.SubsystemMetrics{}
	}
	return out.Metrics, nil
}
