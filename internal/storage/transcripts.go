package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// defaultSearchTimeout bounds one search round trip.
const defaultSearchTimeout = 10 * time.Second

// transcriptMapping is the index mapping for transcript documents.
const transcriptMapping = `{
	"mappings": {
		"properties": {
			"job_id":            {"type": "keyword"},
			"content_record_id": {"type": "keyword"},
			"provider":          {"type": "keyword"},
			"kind":              {"type": "keyword"},
			"title":             {"type": "text"},
			"transcript":        {"type": "text"},
			"completed_at":      {"type": "date"}
		}
	}
}`

// TranscriptDocument is the indexed shape of one completed job result.
type TranscriptDocument struct {
	JobID           string    `json:"job_id"`
	ContentRecordID string    `json:"content_record_id"`
	Provider        string    `json:"provider"`
	Kind            string    `json:"kind"`
	Title           string    `json:"title"`
	Transcript      string    `json:"transcript"`
	CompletedAt     time.Time `json:"completed_at"`
}

// TranscriptHit is one search result with its relevance score.
type TranscriptHit struct {
	TranscriptDocument
	Score float64 `json:"score"`
}

// TranscriptStore indexes completed job results and serves full-text
// search over them. Documents are keyed by content record, so a
// reprocessed record replaces its previous transcript.
type TranscriptStore struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewTranscriptStore creates a transcript store over the given index.
func NewTranscriptStore(client *es.Client, index string, log logger.Logger) *TranscriptStore {
	return &TranscriptStore{client: client, index: index, log: log}
}

// EnsureIndex creates the transcript index with its mapping when it
// does not exist yet.
func (s *TranscriptStore) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists(
		[]string{s.index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected index check response: %s", res.String())
	}

	createRes, createErr := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(transcriptMapping))),
	)
	if createErr != nil {
		return fmt.Errorf("failed to create index: %w", createErr)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("index creation returned error: %s", createRes.String())
	}

	s.log.Info("created transcript index", logger.String("index", s.index))
	return nil
}

// StoreResult indexes one completed job result. It implements the job
// runner's result sink.
func (s *TranscriptStore) StoreResult(
	ctx context.Context,
	job *domain.Job,
	rec *domain.ContentRecord,
	result string,
) error {
	doc := TranscriptDocument{
		JobID:           job.ID,
		ContentRecordID: rec.ID,
		Provider:        rec.Provider,
		Kind:            rec.Kind,
		Title:           rec.Title,
		Transcript:      result,
		CompletedAt:     time.Now().UTC(),
	}

	body, marshalErr := json.Marshal(doc)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal transcript document: %w", marshalErr)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(rec.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index transcript: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("transcript indexing returned error: %s", res.String())
	}

	s.log.Debug("indexed transcript",
		logger.String("content_record_id", rec.ID),
		logger.String("job_id", job.ID),
	)

	return nil
}

// Search runs a full-text query over transcripts and titles.
func (s *TranscriptStore) Search(ctx context.Context, query string, limit int) ([]TranscriptHit, error) {
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSearchTimeout)
	defer cancel()

	searchBody := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"transcript", "title^2"},
			},
		},
		"size": limit,
	}

	body, marshalErr := json.Marshal(searchBody)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", marshalErr)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search returned error: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64            `json:"_score"`
				Source TranscriptDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", decodeErr)
	}

	hits := make([]TranscriptHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, TranscriptHit{
			TranscriptDocument: h.Source,
			Score:              h.Score,
		})
	}

	return hits, nil
}
