package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Ensure OpenAIAssistants implements ReasoningService
var _ driven.ReasoningService = (*OpenAIAssistants)(nil)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4-turbo"

	// runPollInterval is how often Query checks a run's status
	runPollInterval = time.Second

	// maxRunWait bounds a single Query
	maxRunWait = 45 * time.Second
)

// OpenAIAssistants implements ReasoningService on the OpenAI Assistants API.
// A snapshot becomes a file with purpose "assistants"; an agent is an
// assistant with file_search over a vector store holding that file.
type OpenAIAssistants struct {
	apiKey       string
	model        string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewOpenAIAssistants creates a new OpenAI assistants adapter
func NewOpenAIAssistants(apiKey, model, baseURL string) (*OpenAIAssistants, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAIAssistants{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		pollInterval: runPollInterval,
		maxWait:      maxRunWait,
	}, nil
}

// Provider returns domain.ProviderOpenAI
func (o *OpenAIAssistants) Provider() domain.ReasoningProvider {
	return domain.ProviderOpenAI
}

// Model returns the default model for new assistants
func (o *OpenAIAssistants) Model() string {
	return o.model
}

// apiError is the error envelope returned by every endpoint
type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

type fileResponse struct {
	ID    string `json:"id"`
	Bytes int64  `json:"bytes"`
}

// UploadSnapshot uploads the artifact as an assistants file
func (o *OpenAIAssistants) UploadSnapshot(ctx context.Context, name string, r io.Reader) (*domain.ContentHandle, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	var file fileResponse
	if err := o.do(ctx, http.MethodPost, "/files", mw.FormDataContentType(), &body, &file); err != nil {
		return nil, fmt.Errorf("failed to upload snapshot: %w", err)
	}
	if file.ID == "" {
		return nil, fmt.Errorf("upload returned no file id")
	}

	return &domain.ContentHandle{
		ID:       file.ID,
		Provider: domain.ProviderOpenAI,
		Bytes:    file.Bytes,
	}, nil
}

type assistantRequest struct {
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Instructions  string        `json:"instructions"`
	Model         string        `json:"model"`
	Tools         []toolSpec    `json:"tools"`
	ToolResources toolResources `json:"tool_resources"`
}

type toolSpec struct {
	Type string `json:"type"`
}

type toolResources struct {
	FileSearch struct {
		VectorStores []vectorStore `json:"vector_stores"`
	} `json:"file_search"`
}

type vectorStore struct {
	FileIDs []string `json:"file_ids"`
}

type idResponse struct {
	ID string `json:"id"`
}

// CreateAgent creates a new assistant bound to spec.ContentHandle
func (o *OpenAIAssistants) CreateAgent(ctx context.Context, spec domain.AgentSpec) (string, error) {
	if spec.ContentHandle == "" {
		return "", fmt.Errorf("content handle required: %w", domain.ErrInvalidInput)
	}
	model := spec.Model
	if model == "" {
		model = o.model
	}

	req := assistantRequest{
		Name:         spec.Name,
		Description:  spec.Description,
		Instructions: spec.Instructions,
		Model:        model,
		Tools:        []toolSpec{{Type: "file_search"}},
	}
	req.ToolResources.FileSearch.VectorStores = []vectorStore{{FileIDs: []string{spec.ContentHandle}}}

	var assistant idResponse
	if err := o.doJSON(ctx, http.MethodPost, "/assistants", req, &assistant); err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}
	if assistant.ID == "" {
		return "", fmt.Errorf("create assistant returned no id")
	}
	return assistant.ID, nil
}

type threadRunRequest struct {
	AssistantID string `json:"assistant_id"`
	Thread      struct {
		Messages []threadMessage `json:"messages"`
	} `json:"thread"`
}

type threadMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runResponse struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// Query starts a thread run against the assistant, waits for it to finish
// and returns the assistant's text reply.
func (o *OpenAIAssistants) Query(ctx context.Context, reg *domain.AgentRegistration, query string) (string, error) {
	if reg == nil || reg.AgentID == "" {
		return "", domain.ErrNoActiveAgent
	}

	ctx, cancel := context.WithTimeout(ctx, o.maxWait)
	defer cancel()

	req := threadRunRequest{AssistantID: reg.AgentID}
	req.Thread.Messages = []threadMessage{{Role: "user", Content: query}}

	var run runResponse
	if err := o.doJSON(ctx, http.MethodPost, "/threads/runs", req, &run); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for run.Status == "queued" || run.Status == "in_progress" {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("run %s did not finish: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}
		path := fmt.Sprintf("/threads/%s/runs/%s", run.ThreadID, run.ID)
		if err := o.doJSON(ctx, http.MethodGet, path, nil, &run); err != nil {
			return "", fmt.Errorf("failed to check run: %w", err)
		}
	}

	if run.Status != "completed" {
		if run.LastError != nil {
			return "", fmt.Errorf("run %s %s: %s", run.ID, run.Status, run.LastError.Message)
		}
		return "", fmt.Errorf("run %s ended with status %s", run.ID, run.Status)
	}

	var messages messageList
	path := fmt.Sprintf("/threads/%s/messages?order=desc&limit=10", run.ThreadID)
	if err := o.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}

	for _, m := range messages.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, block := range m.Content {
			if block.Type == "text" {
				return block.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("run %s produced no text answer", run.ID)
}

// Close releases idle connections
func (o *OpenAIAssistants) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OpenAIAssistants) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return o.do(ctx, method, path, contentType, body, out)
}

// do makes a request to the OpenAI API and decodes the response into out
func (o *OpenAIAssistants) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, o.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var apiErr apiError
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
		return fmt.Errorf("OpenAI API error: %s (type: %s, code: %s)",
			apiErr.Error.Message, apiErr.Error.Type, apiErr.Error.Code)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
