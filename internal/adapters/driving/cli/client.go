package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/poller"
)

// SearchClient talks to the public search API of a recommender server.
type SearchClient struct {
	baseURL string
	http    *http.Client
}

var _ poller.Fetcher = (*SearchClient)(nil)

// NewSearchClient creates a client for the server at baseURL.
func NewSearchClient(baseURL string, timeout time.Duration) *SearchClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SearchClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type submitBody struct {
	Query         string       `json:"query"`
	SessionID     string       `json:"sessionId,omitempty"`
	Timestamp     int64        `json:"timestamp"`
	ClientContext submitSource `json:"clientContext"`
}

type submitSource struct {
	Source string `json:"source"`
	Locale string `json:"locale,omitempty"`
}

// Acknowledgement is the intake response of the server.
type Acknowledgement struct {
	SessionID    string `json:"sessionId"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime"`
	Dispatched   bool   `json:"dispatched"`
	Preview      struct {
		EstimatedCount int      `json:"estimatedCount"`
		Categories     []string `json:"categories"`
		ProcessingTime string   `json:"processingTime"`
	} `json:"preview"`
}

type pollBody struct {
	Found   bool                  `json:"found"`
	Data    *domain.ResultPayload `json:"data"`
	Message string                `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Submit posts a query and returns the acknowledgement.
func (c *SearchClient) Submit(ctx context.Context, query, sessionID string) (*Acknowledgement, error) {
	body, err := json.Marshal(submitBody{
		Query:         query,
		SessionID:     sessionID,
		Timestamp:     time.Now().UnixMilli(),
		ClientContext: submitSource{Source: "catalogctl"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var ack Acknowledgement
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &ack, nil
}

// Fetch reads the result for a session. A 200 with found=false means not ready yet.
func (c *SearchClient) Fetch(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
	endpoint := c.baseURL + "/api/v1/search/" + url.PathEscape(sessionID) + "/results"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, statusError(resp)
	}

	var body pollBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("failed to decode results: %w", err)
	}
	if !body.Found || body.Data == nil {
		return nil, false, nil
	}
	return body.Data, true, nil
}

func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, eb.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
