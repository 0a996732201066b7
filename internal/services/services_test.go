package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigoflow/proof-service/internal/inference"
	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/orchestrator"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/registry"
	"github.com/aigoflow/proof-service/internal/store"
	"github.com/aigoflow/proof-service/internal/zk"
)

// authModel is a small authorization model over structured fields: one-hot
// encoded field values scored against two classes, labels denied/authorized.
func authModel() (*models.Model, *inference.Weights, *inference.Vocab) {
	m := &models.Model{
		ID:          "payment_auth",
		Name:        "Payment Authorizer",
		InputType:   models.InputTypeFields,
		InputDim:    4,
		Labels:      []string{"DENIED", "AUTHORIZED"},
		TraceLength: 65536,
		Fields: []models.FieldSchema{
			{Name: "budget", Min: 0, Max: 100},
			{Name: "trust", Min: 0, Max: 10},
			{Name: "amount", Min: 0, Max: 100},
			{Name: "risk", Min: 0, Max: 10},
		},
		ModelHash: "0xabc",
	}
	w := &inference.Weights{
		Op:      inference.OpAffine,
		Weights: [][]int32{{-1, -2, 3, 5}, {2, 4, 1, 5}},
		Bias:    []int32{0, 1},
	}
	v := &inference.Vocab{OneHot: map[string]int{
		"budget_10": 0,
		"trust_5":   1,
		"amount_8":  2,
		"risk_0":    3,
	}}
	return m, w, v
}

type env struct {
	registry *registry.Registry
	engine   *zk.Engine
	store    *receipts.Store
	orch     *orchestrator.Orchestrator
	prove    *ProveService
}

// blockedProver parks every Prove call until released, so tests can
// observe the in-flight proving state deterministically.
type blockedProver struct {
	release chan struct{}
}

func (p *blockedProver) Prove(modelID string, input, output []int32) ([]byte, error) {
	<-p.release
	return []byte{0xf0}, nil
}

func (p *blockedProver) Verify(modelID string, proof []byte, output []int32) error {
	return nil
}

func newEnv(t *testing.T, prover orchestrator.Prover) *env {
	t.Helper()
	m, w, v := authModel()

	reg := registry.New()
	reg.Register(m, w, v)

	engine := zk.NewEngine()
	_, err := engine.Preprocess(m.ID, w, m.TraceLength)
	require.NoError(t, err)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rs, err := receipts.New(db, time.Minute)
	require.NoError(t, err)

	if prover == nil {
		prover = engine
	}
	orch := orchestrator.New(rs, prover, orchestrator.Options{Workers: 1, Timeout: 30 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	orch.Start(ctx)

	return &env{
		registry: reg,
		engine:   engine,
		store:    rs,
		orch:     orch,
		prove:    NewProveService(reg, engine, rs, orch, nil, "http://localhost:3000"),
	}
}

func authRequest() *ProveRequest {
	return &ProveRequest{
		ModelID: "payment_auth",
		Input: models.ProveInput{
			Fields: map[string]int{"budget": 10, "trust": 5, "amount": 8, "risk": 0},
		},
	}
}

func waitTerminal(t *testing.T, s *receipts.Store, id string) *models.Receipt {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		r, err := s.Get(id)
		require.NoError(t, err)
		if r.Status.Terminal() {
			return r
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("receipt %s never reached a terminal status", id)
	return nil
}

func TestProveRespondsBeforeProofCompletes(t *testing.T) {
	release := make(chan struct{})
	e := newEnv(t, &blockedProver{release: release})
	defer close(release)

	res, err := e.prove.Prove(context.Background(), authRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusProving, res.Status)
	assert.NotEmpty(t, res.ReceiptID)
	assert.Equal(t, "http://localhost:3000/receipt/"+res.ReceiptID, res.ReceiptURL)
	assert.Contains(t, []string{"DENIED", "AUTHORIZED"}, res.Output.Label)
	assert.Equal(t, "clawproof:"+res.ReceiptID+":"+res.Output.Label+":proving", res.ProofString)

	// The receipt is durable and visible while the prover is still parked.
	r, err := e.store.Get(res.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProving, r.Status)
	assert.Empty(t, r.ProofHash)
}

func TestProveEndToEndVerified(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.prove.Prove(context.Background(), authRequest())
	require.NoError(t, err)
	// One-hot input [1,1,1,1]:
	//   DENIED     = -1 -2 +3 +5     = 5
	//   AUTHORIZED = +2 +4 +1 +5 + 1 = 13
	assert.Equal(t, "AUTHORIZED", res.Output.Label)
	assert.Equal(t, []int32{5, 13}, res.Output.RawOutput)

	r := waitTerminal(t, e.store, res.ReceiptID)
	assert.Equal(t, models.StatusVerified, r.Status)
	assert.NotEmpty(t, r.ProofHash)
	require.NotNil(t, r.ProofSize)
	assert.Positive(t, *r.ProofSize)
}

func TestProveUnknownModel(t *testing.T) {
	e := newEnv(t, nil)
	req := authRequest()
	req.ModelID = "nope"

	_, err := e.prove.Prove(context.Background(), req)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "model", nf.Kind)
}

func TestProveModelStillLoading(t *testing.T) {
	e := newEnv(t, nil)

	m, w, _ := authModel()
	m = &models.Model{
		ID: "fresh", Name: "Fresh", InputType: models.InputTypeRaw,
		InputDim: m.InputDim, Labels: m.Labels, TraceLength: m.TraceLength,
	}
	e.registry.Register(m, w, nil)

	_, err := e.prove.Prove(context.Background(), &ProveRequest{ModelID: "fresh", Input: models.ProveInput{Raw: []int32{1, 2, 3, 4}}})
	var loading *models.ModelLoadingError
	require.ErrorAs(t, err, &loading)
}

func TestProveRejectsHTTPWebhook(t *testing.T) {
	e := newEnv(t, nil)
	req := authRequest()
	req.WebhookURL = "http://example.com/hook"

	_, err := e.prove.Prove(context.Background(), req)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestBatchTooLarge(t *testing.T) {
	e := newEnv(t, nil)
	batch := &BatchRequest{}
	for i := 0; i < MaxBatchSize+1; i++ {
		batch.Requests = append(batch.Requests, *authRequest())
	}

	_, err := e.prove.ProveBatch(context.Background(), batch)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestBatchAllOrNothing(t *testing.T) {
	e := newEnv(t, nil)

	bad := authRequest()
	bad.Input.Fields["risk"] = 99 // above the declared max
	batch := &BatchRequest{Requests: []ProveRequest{*authRequest(), *bad}}

	_, err := e.prove.ProveBatch(context.Background(), batch)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)

	// An unknown model anywhere in the batch rejects it the same way.
	ghost := authRequest()
	ghost.ModelID = "ghost"
	batch = &BatchRequest{Requests: []ProveRequest{*authRequest(), *authRequest(), *ghost}}
	_, err = e.prove.ProveBatch(context.Background(), batch)
	require.ErrorAs(t, err, &ve)

	// The valid requests must not have produced any receipt.
	stats, err := e.store.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalProofs)
}

func TestBatchSubmitsAll(t *testing.T) {
	e := newEnv(t, nil)

	batch := &BatchRequest{Requests: []ProveRequest{*authRequest(), *authRequest()}}
	res, err := e.prove.ProveBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	require.Len(t, res.Results, 2)
	assert.NotEqual(t, res.Results[0].ReceiptID, res.Results[1].ReceiptID)
}

func TestVerifyServiceRecomputes(t *testing.T) {
	e := newEnv(t, nil)
	vs := NewVerifyService(e.store, e.engine)

	res, err := e.prove.Prove(context.Background(), authRequest())
	require.NoError(t, err)
	waitTerminal(t, e.store, res.ReceiptID)

	v, err := vs.Verify(res.ReceiptID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, models.StatusVerified, v.Status)
}

func TestVerifyServiceNonVerifiedReceipt(t *testing.T) {
	release := make(chan struct{})
	e := newEnv(t, &blockedProver{release: release})
	defer close(release)
	vs := NewVerifyService(e.store, e.engine)

	res, err := e.prove.Prove(context.Background(), authRequest())
	require.NoError(t, err)

	v, err := vs.Verify(res.ReceiptID)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, models.StatusProving, v.Status)
	assert.NotEmpty(t, v.Reason)

	_, err = vs.Verify("missing")
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestHealthReflectsReadiness(t *testing.T) {
	e := newEnv(t, nil)
	hs := NewHealthService(e.registry, e.engine, e.orch)

	h := hs.Check()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.ModelsTotal)
	assert.Equal(t, 1, h.ModelsReady)
	assert.Equal(t, zk.ProofSystem, h.ProofSystem)

	m, w, v := authModel()
	m2 := *m
	m2.ID = "second"
	e.registry.Register(&m2, w, v)
	assert.Equal(t, "loading", hs.Check().Status)
}
