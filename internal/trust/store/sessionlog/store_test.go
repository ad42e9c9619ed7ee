package sessionlog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ghostauth/internal/profiling"
	"ghostauth/internal/trust/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRecord(user string, score int) *models.SessionRecord {
	return &models.SessionRecord{
		ID:         uuid.New(),
		UserID:     user,
		SessionID:  "s-" + user,
		IP:         "192.0.2.1",
		MacID:      "mac",
		DeviceUUID: "dev",
		Features:   profiling.FeatureVector{Battery: 50, TimeOfDay: 9.25},
		AuraHash:   strings.Repeat("ab", 32),
		TrustScore: score,
		Timestamp:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryStoreIsAppendOnly(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first := newRecord("u1", 100)
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, newRecord("u2", 40)))
	require.NoError(t, store.Append(ctx, newRecord("u1", 90)))

	first.TrustScore = 0

	got, err := store.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100, got[0].TrustScore, "stored record is a copy")
	assert.Equal(t, 90, got[1].TrustScore)
}

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, *models.SessionRecord) error { return f.err }

func TestMultiFansOut(t *testing.T) {
	a, b := NewInMemoryStore(), NewInMemoryStore()
	multi := NewMulti(a, b)
	require.NoError(t, multi.Append(context.Background(), newRecord("u1", 77)))

	for _, store := range []*InMemoryStore{a, b} {
		got, err := store.ListByUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}
}

func TestMultiReportsFailure(t *testing.T) {
	boom := errors.New("broker down")
	healthy := NewInMemoryStore()
	err := NewMulti(healthy, failingSink{err: boom}).Append(context.Background(), newRecord("u1", 77))
	assert.ErrorIs(t, err, boom)

	got, _ := healthy.ListByUser(context.Background(), "u1")
	assert.Len(t, got, 1, "successful sinks keep their record")
}
