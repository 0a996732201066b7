package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/store"
)

type fakeProver struct {
	mu        sync.Mutex
	proof     []byte
	proveErr  error
	verifyErr error
	delay     time.Duration
	proved    int
	verified  int
}

func (f *fakeProver) Prove(modelID string, input, output []int32) ([]byte, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.proved++
	f.mu.Unlock()
	return f.proof, f.proveErr
}

func (f *fakeProver) Verify(modelID string, proof []byte, output []int32) error {
	f.mu.Lock()
	f.verified++
	f.mu.Unlock()
	return f.verifyErr
}

func (f *fakeProver) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proved, f.verified
}

type recordingEvents struct {
	mu        sync.Mutex
	completed []*models.Receipt
}

func (e *recordingEvents) ReceiptCompleted(r *models.Receipt) {
	e.mu.Lock()
	e.completed = append(e.completed, r)
	e.mu.Unlock()
}

func (e *recordingEvents) ids() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.completed))
	for _, r := range e.completed {
		out = append(out, r.ID)
	}
	return out
}

func newTestStore(t *testing.T) *receipts.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := receipts.New(db, time.Minute)
	require.NoError(t, err)
	return s
}

func seedReceipt(t *testing.T, s *receipts.Store, id string) {
	t.Helper()
	require.NoError(t, s.Create(&models.Receipt{
		ID:      id,
		ModelID: "sentiment",
		Status:  models.StatusProving,
		Output: models.InferenceOutput{
			RawOutput:      []int32{-3, 12},
			PredictedClass: 1,
			Label:          "positive",
			Confidence:     0.8,
		},
		CreatedAt: time.Now().UTC(),
	}))
}

func waitForTerminal(t *testing.T, s *receipts.Store, id string) *models.Receipt {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := s.Get(id)
		require.NoError(t, err)
		if r.Status.Terminal() {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("receipt %s never reached a terminal status", id)
	return nil
}

func TestOrchestratorVerifiedPath(t *testing.T) {
	s := newTestStore(t)
	seedReceipt(t, s, "r1")

	prover := &fakeProver{proof: []byte{0xaa, 0xbb, 0xcc}}
	events := &recordingEvents{}
	o := New(s, prover, Options{Workers: 1, Timeout: time.Second, Events: events})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	require.NoError(t, o.Enqueue(ctx, Job{ReceiptID: "r1", ModelID: "sentiment", Output: []int32{1, 2}}))

	r := waitForTerminal(t, s, "r1")
	assert.Equal(t, models.StatusVerified, r.Status)
	assert.NotEmpty(t, r.ProofHash)
	require.NotNil(t, r.ProofSize)
	assert.Equal(t, 3, *r.ProofSize)
	require.NotNil(t, r.ProveTimeMs)
	require.NotNil(t, r.VerifyTimeMs)

	proved, verified := prover.counts()
	assert.Equal(t, 1, proved)
	assert.Equal(t, 1, verified)
	assert.Equal(t, []string{"r1"}, events.ids())

	proof, err := s.GetProof("r1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, proof)
}

func TestOrchestratorProveError(t *testing.T) {
	s := newTestStore(t)
	seedReceipt(t, s, "r2")

	prover := &fakeProver{proveErr: errors.New("constraint system unsatisfied")}
	o := New(s, prover, Options{Workers: 1, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	require.NoError(t, o.Enqueue(ctx, Job{ReceiptID: "r2", ModelID: "sentiment"}))

	r := waitForTerminal(t, s, "r2")
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, "proof generation failed", r.Error)

	_, verified := prover.counts()
	assert.Zero(t, verified, "failed proofs must not be verified")
}

func TestOrchestratorVerifyError(t *testing.T) {
	s := newTestStore(t)
	seedReceipt(t, s, "r3")

	prover := &fakeProver{proof: []byte{1}, verifyErr: errors.New("pairing check failed")}
	o := New(s, prover, Options{Workers: 1, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	require.NoError(t, o.Enqueue(ctx, Job{ReceiptID: "r3", ModelID: "sentiment"}))

	r := waitForTerminal(t, s, "r3")
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, "proof verification failed", r.Error)
	assert.Empty(t, r.ProofHash)
}

func TestOrchestratorTimeout(t *testing.T) {
	s := newTestStore(t)
	seedReceipt(t, s, "r4")

	prover := &fakeProver{proof: []byte{1}, delay: 500 * time.Millisecond}
	o := New(s, prover, Options{Workers: 1, Timeout: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	require.NoError(t, o.Enqueue(ctx, Job{ReceiptID: "r4", ModelID: "sentiment"}))

	r := waitForTerminal(t, s, "r4")
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, "timeout", r.Error)

	// The straggling Prove finishes after the timeout; the terminal status
	// must not change.
	time.Sleep(600 * time.Millisecond)
	r, err := s.Get("r4")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, r.Status)
}

func TestOrchestratorRecoverInterrupted(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	s, err := receipts.New(db, time.Minute)
	require.NoError(t, err)

	stale := &models.Receipt{
		ID:        "stale",
		ModelID:   "sentiment",
		Status:    models.StatusProving,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.InsertReceipt(stale))
	seedReceipt(t, s, "fresh")

	o := New(s, &fakeProver{}, Options{})
	n, err := o.RecoverInterrupted(10 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	r, err := s.Get("stale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, r.Status)
	assert.Equal(t, "interrupted", r.Error)

	r, err = s.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProving, r.Status)
}

func TestOrchestratorConcurrentJobs(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		seedReceipt(t, s, id)
	}

	events := &recordingEvents{}
	o := New(s, &fakeProver{proof: []byte{9}}, Options{Workers: 2, Timeout: time.Second, Events: events})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, o.Enqueue(ctx, Job{ReceiptID: id, ModelID: "sentiment"}))
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		r := waitForTerminal(t, s, id)
		assert.Equal(t, models.StatusVerified, r.Status)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, events.ids())
}
