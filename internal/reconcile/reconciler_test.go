package reconcile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimeuniverse/contentsync/internal/database"
	"github.com/aimeuniverse/contentsync/internal/domain"
	"github.com/aimeuniverse/contentsync/internal/events"
	"github.com/aimeuniverse/contentsync/internal/logger"
	"github.com/aimeuniverse/contentsync/internal/reconcile"
)

func testLogger() logger.Logger {
	return logger.NewNop()
}

// fakeContentRepo is an in-memory ContentRepositoryInterface keyed by
// (provider, provider_record_id).
type fakeContentRepo struct {
	records        map[string]*domain.ContentRecord
	insertConflict bool
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{records: make(map[string]*domain.ContentRecord)}
}

func key(provider, providerRecordID string) string {
	return provider + "/" + providerRecordID
}

func (f *fakeContentRepo) GetByProviderKey(_ context.Context, provider, providerRecordID string) (*domain.ContentRecord, error) {
	rec, ok := f.records[key(provider, providerRecordID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeContentRepo) GetByID(_ context.Context, id string) (*domain.ContentRecord, error) {
	for _, rec := range f.records {
		if rec.ID == id {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeContentRepo) Insert(_ context.Context, rec *domain.ContentRecord) error {
	k := key(rec.Provider, rec.ProviderRecordID)
	if _, exists := f.records[k]; exists || f.insertConflict {
		if f.insertConflict {
			// Simulate losing an insert race: the row appears between
			// the read and the insert.
			f.insertConflict = false
			raced := *rec
			raced.ID = "raced-id"
			raced.Fingerprint = "raced-fingerprint"
			f.records[k] = &raced
		}
		return database.ErrConflict
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("id-%d", len(f.records)+1)
	}
	clone := *rec
	f.records[k] = &clone
	return nil
}

func (f *fakeContentRepo) UpdateIfNewer(_ context.Context, rec *domain.ContentRecord) error {
	k := key(rec.Provider, rec.ProviderRecordID)
	existing, ok := f.records[k]
	if !ok {
		return database.ErrConflict
	}
	if existing.ProviderUpdatedAt != nil && rec.ProviderUpdatedAt != nil &&
		existing.ProviderUpdatedAt.After(*rec.ProviderUpdatedAt) {
		return database.ErrConflict
	}
	updated := *rec
	updated.ID = existing.ID
	f.records[k] = &updated
	return nil
}

func (f *fakeContentRepo) ListChanged(_ context.Context, _ database.ContentFilters) ([]*domain.ContentRecord, error) {
	return nil, nil
}

func (f *fakeContentRepo) CountByProvider(_ context.Context) (map[string]int, error) {
	return nil, nil
}

// capturingPublisher records every published upsert event.
type capturingPublisher struct {
	published []events.ContentUpserted
	failWith  error
}

func (p *capturingPublisher) PublishUpsert(
	_ context.Context,
	recordID, provider, kind, fingerprint string,
	change events.ChangeType,
) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, events.ContentUpserted{
		ContentRecordID: recordID,
		Provider:        provider,
		Kind:            kind,
		Fingerprint:     fingerprint,
		Change:          change,
	})
	return nil
}

func rawRecord(id, fingerprint string) domain.RawRecord {
	return domain.RawRecord{
		ProviderRecordID: id,
		Kind:             string(domain.KindDocument),
		Title:            "Title " + id,
		Body:             "Body " + id,
		Fingerprint:      fingerprint,
	}
}

func TestReconcileCreatesNewRecords(t *testing.T) {
	repo := newFakeContentRepo()
	pub := &capturingPublisher{}
	r := reconcile.NewReconciler(repo, pub, testLogger())

	records := []domain.RawRecord{
		rawRecord("a", "fp-a"),
		rawRecord("b", "fp-b"),
	}

	result, err := r.Reconcile(context.Background(), "github", records)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Unchanged)
	require.Len(t, pub.published, 2)
	assert.Equal(t, events.ChangeCreated, pub.published[0].Change)
}

func TestReconcileIsIdempotent(t *testing.T) {
	repo := newFakeContentRepo()
	pub := &capturingPublisher{}
	r := reconcile.NewReconciler(repo, pub, testLogger())

	records := []domain.RawRecord{
		rawRecord("a", "fp-a"),
		rawRecord("b", "fp-b"),
		rawRecord("c", "fp-c"),
	}

	first, err := r.Reconcile(context.Background(), "airtable", records)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)

	second, err := r.Reconcile(context.Background(), "airtable", records)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Unchanged)
	assert.Len(t, pub.published, 3, "second pass must not publish")
}

func TestReconcileClassifiesAcrossRuns(t *testing.T) {
	repo := newFakeContentRepo()
	pub := &capturingPublisher{}
	r := reconcile.NewReconciler(repo, pub, testLogger())
	ctx := context.Background()

	// Seed two records, then sync a batch of ten where eight are new.
	seed := []domain.RawRecord{
		rawRecord("s1", "fp-s1"),
		rawRecord("s2", "fp-s2"),
	}
	_, err := r.Reconcile(ctx, "youtube", seed)
	require.NoError(t, err)

	batch := make([]domain.RawRecord, 0, 10)
	batch = append(batch, seed...)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("n%d", i)
		batch = append(batch, rawRecord(id, "fp-"+id))
	}

	result, err := r.Reconcile(ctx, "youtube", batch)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Unchanged)

	// One record's content changes; the rest are untouched.
	batch[0].Fingerprint = "fp-s1-v2"
	batch[0].Body = "revised body"

	result, err = r.Reconcile(ctx, "youtube", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 9, result.Unchanged)

	stored, err := repo.GetByProviderKey(ctx, "youtube", "s1")
	require.NoError(t, err)
	assert.Equal(t, "fp-s1-v2", stored.Fingerprint)
	assert.Equal(t, "revised body", stored.Body)
}

func TestReconcileInsertRaceFallsThroughToUpdate(t *testing.T) {
	repo := newFakeContentRepo()
	repo.insertConflict = true
	pub := &capturingPublisher{}
	r := reconcile.NewReconciler(repo, pub, testLogger())

	result, err := r.Reconcile(context.Background(), "github", []domain.RawRecord{
		rawRecord("a", "fp-a"),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	stored, err := repo.GetByProviderKey(context.Background(), "github", "a")
	require.NoError(t, err)
	assert.Equal(t, "raced-id", stored.ID, "internal ID from the winning insert is kept")
	assert.Equal(t, "fp-a", stored.Fingerprint)
}

func TestReconcileIgnoresStaleRevision(t *testing.T) {
	repo := newFakeContentRepo()
	pub := &capturingPublisher{}
	r := reconcile.NewReconciler(repo, pub, testLogger())
	ctx := context.Background()

	newer := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	current := rawRecord("a", "fp-current")
	current.ProviderUpdatedAt = &newer
	_, err := r.Reconcile(ctx, "airtable", []domain.RawRecord{current})
	require.NoError(t, err)

	stale := rawRecord("a", "fp-stale")
	stale.ProviderUpdatedAt = &older

	result, err := r.Reconcile(ctx, "airtable", []domain.RawRecord{stale})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Unchanged)

	stored, err := repo.GetByProviderKey(ctx, "airtable", "a")
	require.NoError(t, err)
	assert.Equal(t, "fp-current", stored.Fingerprint, "stale batch must not downgrade the record")
}

// TestReconcileUnchangedTouchesNoRows drives the real repository through
// sqlmock: a record whose fingerprint matches the stored row must produce
// only the lookup SELECT, never an UPDATE or INSERT.
func TestReconcileUnchangedTouchesNoRows(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewContentRepository(db)

	now := time.Now()
	columns := []string{
		"id", "provider", "provider_record_id", "kind", "title", "body",
		"external_url", "attributes", "fingerprint", "provider_created_at",
		"provider_updated_at", "last_synced_at", "inserted_at", "updated_at",
	}
	mock.ExpectQuery("SELECT (.+) FROM content_records WHERE provider = \\$1 AND provider_record_id = \\$2").
		WithArgs("github", "a").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"rec-1", "github", "a", string(domain.KindDocument), "Title a", "Body a",
			"", []byte(`{}`), "fp-a", nil, nil, now, now, now,
		))

	r := reconcile.NewReconciler(repo, nil, testLogger())

	result, recErr := r.Reconcile(context.Background(), "github", []domain.RawRecord{
		rawRecord("a", "fp-a"),
	})
	require.NoError(t, recErr)
	assert.Equal(t, 1, result.Unchanged)

	require.NoError(t, mock.ExpectationsWereMet(), "unchanged record must not write")
}

func TestReconcilePublishFailureDoesNotFailRun(t *testing.T) {
	repo := newFakeContentRepo()
	pub := &capturingPublisher{failWith: errors.New("stream unavailable")}
	r := reconcile.NewReconciler(repo, pub, testLogger())

	result, err := r.Reconcile(context.Background(), "github", []domain.RawRecord{
		rawRecord("a", "fp-a"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}
