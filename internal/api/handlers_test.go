package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimeuniverse/contentsync/internal/api"
	"github.com/aimeuniverse/contentsync/internal/consensus"
	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/jobs"
	"github.com/aimeuniverse/contentsync/internal/logger"
	"github.com/aimeuniverse/contentsync/internal/storage"
	"github.com/aimeuniverse/contentsync/internal/syncer"
)

// stubSync returns a canned run report.
type stubSync struct {
	report  *domain.SyncRunReport
	err     error
	lastReq syncer.Request
}

func (s *stubSync) Run(_ context.Context, req syncer.Request) (*domain.SyncRunReport, error) {
	s.lastReq = req
	return s.report, s.err
}

// stubJobs serves canned jobs.
type stubJobs struct {
	job        *domain.Job
	created    bool
	enqueueErr error
	getErr     error
	retryErr   error
}

func (s *stubJobs) Enqueue(_ context.Context, _, _ string) (*domain.Job, bool, error) {
	if s.enqueueErr != nil {
		return nil, false, s.enqueueErr
	}
	return s.job, s.created, nil
}

func (s *stubJobs) Retry(_ context.Context, _ string) (*domain.Job, error) {
	if s.retryErr != nil {
		return nil, s.retryErr
	}
	return s.job, nil
}

func (s *stubJobs) Get(_ context.Context, _ string) (*domain.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.job, nil
}

func (s *stubJobs) List(_ context.Context, _ string, limit, _ int) ([]*domain.Job, int, error) {
	if s.job == nil {
		return []*domain.Job{}, 0, nil
	}
	_ = limit
	return []*domain.Job{s.job}, 1, nil
}

func (s *stubJobs) Stats(_ context.Context) (map[string]int, error) {
	return map[string]int{"pending": 2, "completed": 5}, nil
}

// stubVotes delegates to a real tracker over an in-memory repo.
type stubVotes struct {
	tracker *consensus.Tracker
}

func (s *stubVotes) RecordVote(ctx context.Context, in consensus.VoteInput) (*domain.ValidationVote, error) {
	return s.tracker.RecordVote(ctx, in)
}

func (s *stubVotes) GetConsensus(ctx context.Context, chunkID string) (*domain.ConsensusScore, error) {
	return s.tracker.GetConsensus(ctx, chunkID)
}

func (s *stubVotes) ListVotes(ctx context.Context, recordID string) ([]*domain.ValidationVote, error) {
	return s.tracker.ListVotes(ctx, recordID)
}

// memVoteRepo is an append-only vote store.
type memVoteRepo struct {
	votes []*domain.ValidationVote
}

func (m *memVoteRepo) Create(_ context.Context, v *domain.ValidationVote) error {
	m.votes = append(m.votes, v)
	return nil
}

func (m *memVoteRepo) ListByChunk(_ context.Context, chunkID string) ([]*domain.ValidationVote, error) {
	var out []*domain.ValidationVote
	for _, v := range m.votes {
		if v.ChunkID != nil && *v.ChunkID == chunkID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVoteRepo) ListByRecord(_ context.Context, recordID string) ([]*domain.ValidationVote, error) {
	var out []*domain.ValidationVote
	for _, v := range m.votes {
		if v.ContentRecordID == recordID {
			out = append(out, v)
		}
	}
	return out, nil
}

// stubSearcher returns canned transcript hits.
type stubSearcher struct {
	hits []storage.TranscriptHit
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]storage.TranscriptHit, error) {
	return s.hits, nil
}

// stubStates serves a fixed state list.
type stubStates struct {
	states []*domain.SyncState
}

func (s *stubStates) GetOrCreate(context.Context, string) (*domain.SyncState, error) {
	return nil, database.ErrNotFound
}
func (s *stubStates) List(context.Context) ([]*domain.SyncState, error) { return s.states, nil }
func (s *stubStates) AcquireLease(context.Context, string, time.Time) error {
	return nil
}
func (s *stubStates) ReleaseLease(context.Context, string) error { return nil }
func (s *stubStates) MarkSuccess(context.Context, string, string, bool, int) error {
	return nil
}
func (s *stubStates) MarkError(context.Context, string, string, int) error { return nil }
func (s *stubStates) ResetQuotaIfElapsed(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

// stubContent serves a fixed record list.
type stubContent struct {
	records     []*domain.ContentRecord
	lastFilters database.ContentFilters
}

func (s *stubContent) GetByProviderKey(context.Context, string, string) (*domain.ContentRecord, error) {
	return nil, database.ErrNotFound
}
func (s *stubContent) GetByID(context.Context, string) (*domain.ContentRecord, error) {
	return nil, database.ErrNotFound
}
func (s *stubContent) Insert(context.Context, *domain.ContentRecord) error        { return nil }
func (s *stubContent) UpdateIfNewer(context.Context, *domain.ContentRecord) error { return nil }
func (s *stubContent) ListChanged(_ context.Context, filters database.ContentFilters) ([]*domain.ContentRecord, error) {
	s.lastFilters = filters
	return s.records, nil
}
func (s *stubContent) CountByProvider(context.Context) (map[string]int, error) {
	return map[string]int{"github": 12}, nil
}

// stubRuns serves run history.
type stubRuns struct {
	runs []*domain.SyncRun
}

func (s *stubRuns) Create(context.Context, *domain.SyncRun) error { return nil }
func (s *stubRuns) ListRecent(context.Context, int) ([]*domain.SyncRun, error) {
	return s.runs, nil
}

type testEnv struct {
	sync    *stubSync
	jobs    *stubJobs
	content *stubContent
	router  http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		sync: &stubSync{report: &domain.SyncRunReport{RunID: "run-1"}},
		jobs: &stubJobs{},
		content: &stubContent{records: []*domain.ContentRecord{
			{ID: "rec-1", Provider: "github", Kind: "document"},
		}},
	}

	env.router = api.SetupRouter(api.Deps{
		Sync:        env.sync,
		Jobs:        env.jobs,
		Votes:       &stubVotes{tracker: consensus.NewTracker(&memVoteRepo{}, logger.NewNop())},
		Transcripts: &stubSearcher{hits: []storage.TranscriptHit{{Score: 1.5}}},
		States:      &stubStates{states: []*domain.SyncState{{Provider: "github"}}},
		Content:     env.content,
		Runs:        &stubRuns{runs: []*domain.SyncRun{{ID: "run-1"}}},
		Logger:      logger.NewNop(),
	})

	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerSync(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/sync", map[string]any{
		"providers":       []string{"github"},
		"force_full_sync": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"github"}, env.sync.lastReq.Providers)
	assert.True(t, env.sync.lastReq.Force)

	var report domain.SyncRunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "run-1", report.RunID)
}

func TestTriggerSyncNoProviders(t *testing.T) {
	env := newTestEnv()
	env.sync.report = nil
	env.sync.err = syncer.ErrNoProviders

	rec := env.do(t, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncStatus(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/v1/sync/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Providers    []domain.SyncState `json:"providers"`
		RecordCounts map[string]int     `json:"record_counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "github", body.Providers[0].Provider)
	assert.Equal(t, 12, body.RecordCounts["github"])
}

func TestCreateJobStatusCodes(t *testing.T) {
	env := newTestEnv()
	env.jobs.job = &domain.Job{ID: "job-1", Status: domain.JobStatusPending}

	env.jobs.created = true
	rec := env.do(t, http.MethodPost, "/api/v1/jobs", map[string]string{
		"content_record_id": "rec-1",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	env.jobs.created = false
	rec = env.do(t, http.MethodPost, "/api/v1/jobs", map[string]string{
		"content_record_id": "rec-1",
	})
	assert.Equal(t, http.StatusOK, rec.Code, "existing in-flight job returns 200")
}

func TestCreateJobQueueFull(t *testing.T) {
	env := newTestEnv()
	env.jobs.enqueueErr = jobs.ErrQueueFull

	rec := env.do(t, http.MethodPost, "/api/v1/jobs", map[string]string{
		"content_record_id": "rec-1",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCreateJobMissingRecordID(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/jobs", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobNotFound(t *testing.T) {
	env := newTestEnv()
	env.jobs.getErr = database.ErrNotFound

	rec := env.do(t, http.MethodGet, "/api/v1/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryJobConflict(t *testing.T) {
	env := newTestEnv()
	env.jobs.retryErr = database.ErrConflict

	rec := env.do(t, http.MethodPost, "/api/v1/jobs/job-1/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSearchRequiresQuery(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/v1/jobs/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/jobs/search?q=ceremony", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecordVoteAndConsensus(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/validations", map[string]any{
		"content_record_id": "rec-1",
		"chunk_id":          "chunk-1",
		"validator_type":    "staff",
		"vote_score":        1,
		"confidence":        0.8,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/validations", map[string]any{
		"content_record_id": "rec-1",
		"chunk_id":          "chunk-1",
		"validator_type":    "community",
		"vote_score":        -1,
		"confidence":        0.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/consensus/chunk-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var score domain.ConsensusScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &score))
	assert.Equal(t, 2, score.VoteCount)
	assert.InDelta(t, 0.15, score.Overall, 1e-9)
}

func TestRecordVoteRejectsBadScore(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/validations", map[string]any{
		"content_record_id": "rec-1",
		"validator_type":    "staff",
		"vote_score":        5,
		"confidence":        0.8,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeFeedParsesSince(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet,
		"/api/v1/contentrecords?since=2026-03-01T00:00:00Z&provider=github&kind=document", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, env.content.lastFilters.Since)
	assert.Equal(t, 2026, env.content.lastFilters.Since.Year())
	assert.Equal(t, "github", env.content.lastFilters.Provider)
	assert.Equal(t, "document", env.content.lastFilters.Kind)

	rec = env.do(t, http.MethodGet, "/api/v1/contentrecords?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSyncInternalError(t *testing.T) {
	env := newTestEnv()
	env.sync.report = nil
	env.sync.err = errors.New("database gone")

	rec := env.do(t, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
