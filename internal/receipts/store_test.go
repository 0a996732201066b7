package receipts

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/store"
)

func newTestStore(t *testing.T) (*Store, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, time.Hour)
	require.NoError(t, err)
	return s, db
}

func testReceipt(id string) *models.Receipt {
	return &models.Receipt{
		ID:         id,
		ModelID:    "sentiment",
		ModelName:  "Sentiment",
		Status:     models.StatusProving,
		CreatedAt:  time.Now().UTC(),
		ModelHash:  "0xaa",
		InputHash:  "0xbb",
		OutputHash: "0xcc",
		Output: models.InferenceOutput{
			RawOutput:      []int32{10, -3},
			PredictedClass: 0,
			Label:          "POSITIVE",
			Confidence:     0.77,
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(testReceipt("r1")))

	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, models.StatusProving, got.Status)
	assert.Equal(t, "POSITIVE", got.Output.Label)
	assert.Nil(t, got.CompletedAt)
}

func TestGetUnknown(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get("missing")
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "receipt", nf.Kind)
}

func TestGetFallsThroughToDurable(t *testing.T) {
	s, db := newTestStore(t)

	// Write only to the durable tier, bypassing the cache.
	require.NoError(t, db.InsertReceipt(testReceipt("cold")))

	got, err := s.Get("cold")
	require.NoError(t, err)
	assert.Equal(t, "cold", got.ID)

	// Second read is served from the repopulated cache.
	again, err := s.Get("cold")
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
}

func terminalFields() models.TransitionFields {
	size := 192
	prove := int64(1200)
	verify := int64(40)
	return models.TransitionFields{
		ProofHash:    "0xdd",
		Proof:        []byte{1, 2, 3},
		ProofSize:    &size,
		ProveTimeMs:  &prove,
		VerifyTimeMs: &verify,
	}
}

func TestTransitionToVerified(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(testReceipt("r1")))

	r, err := s.Transition("r1", models.StatusProving, models.StatusVerified, terminalFields())
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, r.Status)
	assert.Equal(t, "0xdd", r.ProofHash)
	require.NotNil(t, r.ProveTimeMs)
	assert.EqualValues(t, 1200, *r.ProveTimeMs)
	require.NotNil(t, r.CompletedAt)

	proof, err := s.GetProof("r1")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, proof)
}

func TestIllegalTransitionRejected(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(testReceipt("r1")))

	_, err := s.Transition("r1", models.StatusVerified, models.StatusProving, models.TransitionFields{})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestTerminalIsFrozen(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(testReceipt("r1")))

	_, err := s.Transition("r1", models.StatusProving, models.StatusFailed, models.TransitionFields{Error: "timeout"})
	require.NoError(t, err)

	// The row is no longer proving, so a second CAS must lose.
	_, err = s.Transition("r1", models.StatusProving, models.StatusVerified, terminalFields())
	assert.ErrorIs(t, err, ErrConflict)

	r, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, "timeout", r.Error)
}

func TestConcurrentTransitionExactlyOneWins(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(testReceipt("r1")))

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transition("r1", models.StatusProving, models.StatusVerified, terminalFields())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.True(t, errors.Is(err, ErrConflict))
		}
	}
	assert.Equal(t, 1, wins, "exactly one racing transition must succeed")
}

func TestRecoverInterrupted(t *testing.T) {
	s, db := newTestStore(t)

	old := testReceipt("stale")
	old.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, db.InsertReceipt(old))

	fresh := testReceipt("fresh")
	require.NoError(t, s.Create(fresh))

	n, err := s.RecoverInterrupted(10 * time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	r, err := s.Get("stale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, "interrupted", r.Error)

	r, err = s.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProving, r.Status)
}

func TestStatsAndRecent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Create(testReceipt("r1")))

	r2 := testReceipt("r2")
	r2.ModelID = "authorization"
	r2.CreatedAt = r2.CreatedAt.Add(time.Second)
	require.NoError(t, s.Create(r2))

	_, err := s.Transition("r1", models.StatusProving, models.StatusVerified, terminalFields())
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalProofs)
	assert.EqualValues(t, 1, stats.Verified)
	assert.EqualValues(t, 1, stats.Proving)
	assert.EqualValues(t, 1, stats.ByModel["sentiment"])
	assert.EqualValues(t, 1, stats.ByModel["authorization"])
	require.NotNil(t, stats.AvgProveTimeMs)
	assert.InDelta(t, 1200, *stats.AvgProveTimeMs, 0.001)

	recent, err := s.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r2", recent[0].ID, "most recent first")
	assert.Equal(t, "POSITIVE", recent[0].Label)
}
