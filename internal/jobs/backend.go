package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aimeuniverse/contentsync/internal/domain"
)

// maxBackendResponseBytes bounds a backend response body.
const maxBackendResponseBytes = 20 << 20

// ProgressFunc reports processing progress as a percentage in [0, 100].
type ProgressFunc func(progress int)

// Backend processes one claimed job against a content record and
// returns the derived result. Implementations must honor ctx and may
// report progress through the callback.
type Backend interface {
	Name() string
	Process(ctx context.Context, job *domain.Job, rec *domain.ContentRecord, report ProgressFunc) (string, error)
}

// HTTPBackend sends a content record to an external HTTP processing
// service (a whisper-style transcription endpoint) and returns the
// service's result text.
type HTTPBackend struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPBackend creates an HTTP processing backend. The per-job
// timeout is enforced by the caller's context; the client itself sets
// no deadline.
func NewHTTPBackend(name, url, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		name:   name,
		url:    url,
		apiKey: apiKey,
		client: &http.Client{},
	}
}

// Name returns the backend's registry name.
func (b *HTTPBackend) Name() string {
	return b.name
}

type backendRequest struct {
	JobID     string `json:"job_id"`
	RecordID  string `json:"record_id"`
	Provider  string `json:"provider"`
	Title     string `json:"title"`
	MediaURL  string `json:"media_url"`
	RequestAt string `json:"request_at"`
}

type backendResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Process submits the record's media URL and waits for the result.
func (b *HTTPBackend) Process(
	ctx context.Context,
	job *domain.Job,
	rec *domain.ContentRecord,
	report ProgressFunc,
) (string, error) {
	payload, marshalErr := json.Marshal(backendRequest{
		JobID:     job.ID,
		RecordID:  rec.ID,
		Provider:  rec.Provider,
		Title:     rec.Title,
		MediaURL:  rec.ExternalURL,
		RequestAt: time.Now().UTC().Format(time.RFC3339),
	})
	if marshalErr != nil {
		return "", fmt.Errorf("failed to marshal backend request: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if reqErr != nil {
		return "", fmt.Errorf("failed to create backend request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	report(10)

	resp, doErr := b.client.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("backend request failed: %w", doErr)
	}
	defer resp.Body.Close()

	report(80)

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponseBytes))
	if readErr != nil {
		return "", fmt.Errorf("failed to read backend response: %w", readErr)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out backendResponse
	if unmarshalErr := json.Unmarshal(body, &out); unmarshalErr != nil {
		return "", fmt.Errorf("failed to decode backend response: %w", unmarshalErr)
	}
	if out.Error != "" {
		return "", fmt.Errorf("backend reported error: %s", out.Error)
	}

	return out.Result, nil
}

// truncate shortens s for inclusion in an error message.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
