package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeaseExpired(t *testing.T) {
	now := time.Now()
	old := now.Add(-time.Hour)
	recent := now.Add(-time.Minute)
	ttl := 30 * time.Minute

	tests := []struct {
		name  string
		state SyncState
		want  bool
	}{
		{"not syncing", SyncState{}, false},
		{"syncing without start time", SyncState{IsSyncing: true}, true},
		{"fresh lease", SyncState{IsSyncing: true, SyncStartedAt: &recent}, false},
		{"stale lease", SyncState{IsSyncing: true, SyncStartedAt: &old}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.LeaseExpired(now, ttl))
		})
	}
}

func TestAggregate(t *testing.T) {
	r := SyncRunReport{
		Providers: []ProviderReport{
			{Status: OutcomeSuccess, ItemsSeen: 10, NewItems: 3, UpdatedItems: 2},
			{Status: OutcomeSkipped},
			{Status: OutcomeError, ItemsSeen: 1},
		},
	}

	r.Aggregate()

	assert.Equal(t, 11, r.TotalSeen)
	assert.Equal(t, 3, r.TotalNew)
	assert.Equal(t, 2, r.TotalUpdate)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
}

func TestAggregateIsIdempotent(t *testing.T) {
	r := SyncRunReport{
		Providers: []ProviderReport{{Status: OutcomeSuccess, ItemsSeen: 5}},
	}

	r.Aggregate()
	r.Aggregate()

	assert.Equal(t, 5, r.TotalSeen)
	assert.Equal(t, 1, r.Succeeded)
}

func TestJSONBMapScan(t *testing.T) {
	var m JSONBMap
	assert.NoError(t, m.Scan([]byte(`{"a": 1, "b": "x"}`)))
	assert.Equal(t, float64(1), m["a"])
	assert.Equal(t, "x", m["b"])

	var fromString JSONBMap
	assert.NoError(t, fromString.Scan(`{"c": true}`))
	assert.Equal(t, true, fromString["c"])

	var null JSONBMap
	assert.NoError(t, null.Scan(nil))
	assert.Nil(t, null)

	var empty JSONBMap
	assert.NoError(t, empty.Scan([]byte{}))
	assert.NotNil(t, empty)

	var bad JSONBMap
	assert.Error(t, bad.Scan(42))
}

func TestJSONBMapValue(t *testing.T) {
	var nilMap *JSONBMap
	v, err := nilMap.Value()
	assert.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	empty := JSONBMap{}
	v, err = empty.Value()
	assert.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	m := JSONBMap{"k": "v"}
	v, err = m.Value()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(v.([]byte)))
}

func TestValidValidatorType(t *testing.T) {
	for _, vt := range []ValidatorType{
		ValidatorCommunity, ValidatorStaff, ValidatorElder, ValidatorExpert, ValidatorAutomated,
	} {
		assert.True(t, ValidValidatorType(vt), string(vt))
	}
	assert.False(t, ValidValidatorType("intern"))
}
