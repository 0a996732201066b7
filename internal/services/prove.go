// Package services implements the request-scoped operations behind the
// HTTP surface: proof submission, batch submission, verification, model
// upload and the read-side projections. Handlers stay thin; everything
// with domain meaning lives here.
package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/proof-service/internal/crypto"
	"github.com/aigoflow/proof-service/internal/inference"
	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/orchestrator"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/registry"
	"github.com/aigoflow/proof-service/internal/webhook"
	"github.com/aigoflow/proof-service/internal/zk"
)

// ProveRequest is one proof submission. Exactly one of the input forms
// must be set, matching the model's declared input type.
type ProveRequest struct {
	ModelID    string            `json:"model_id"`
	Input      models.ProveInput `json:"input"`
	WebhookURL string            `json:"webhook_url,omitempty"`
}

// ProveResult is returned immediately after inference, while the proof is
// still being generated in the background.
type ProveResult struct {
	ReceiptID   string                 `json:"receipt_id"`
	ReceiptURL  string                 `json:"receipt_url"`
	ModelID     string                 `json:"model_id"`
	Output      models.InferenceOutput `json:"output"`
	Status      models.Status          `json:"status"`
	ProofString string                 `json:"proof_string"`
}

// ProveService runs inference synchronously, persists the receipt and
// hands proof generation to the orchestrator.
type ProveService struct {
	registry *registry.Registry
	engine   *zk.Engine
	store    *receipts.Store
	orch     *orchestrator.Orchestrator
	events   *EventPublisher
	baseURL  string
}

func NewProveService(reg *registry.Registry, engine *zk.Engine, store *receipts.Store, orch *orchestrator.Orchestrator, events *EventPublisher, baseURL string) *ProveService {
	return &ProveService{
		registry: reg,
		engine:   engine,
		store:    store,
		orch:     orch,
		events:   events,
		baseURL:  baseURL,
	}
}

// resolve validates everything that can fail before any state is written:
// webhook shape, model existence and proving-key readiness, input shape.
func (s *ProveService) resolve(req *ProveRequest) (*models.Model, []int32, error) {
	if req.WebhookURL != "" {
		if err := webhook.ValidateURL(req.WebhookURL); err != nil {
			return nil, nil, err
		}
	}
	m, ok := s.registry.Get(req.ModelID)
	if !ok {
		return nil, nil, models.NotFound("model", req.ModelID)
	}
	if !s.engine.Ready(m.ID) {
		return nil, nil, &models.ModelLoadingError{ModelID: m.ID}
	}
	vocab, _ := s.registry.Vocab(m.ID)
	input, err := inference.BuildInput(m, req.Input, vocab)
	if err != nil {
		return nil, nil, err
	}
	return m, input, nil
}

// Validate checks a request without side effects. Batch submission uses
// it to reject the whole batch before creating any receipt.
func (s *ProveService) Validate(req *ProveRequest) error {
	_, _, err := s.resolve(req)
	return err
}

// Prove runs the full submission path: validate, infer, persist, enqueue.
// The returned result reflects status proving; callers poll the receipt
// or register a webhook for the terminal status.
func (s *ProveService) Prove(ctx context.Context, req *ProveRequest) (*ProveResult, error) {
	m, input, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	weights, _ := s.registry.Weights(m.ID)
	out, err := inference.Run(weights, input, m.Labels)
	if err != nil {
		return nil, err
	}

	outputHash, err := crypto.HashCanonicalJSON(out)
	if err != nil {
		return nil, fmt.Errorf("hashing output: %w", err)
	}

	r := &models.Receipt{
		ID:         ulid.MustNew(ulid.Now(), rand.Reader).String(),
		ModelID:    m.ID,
		ModelName:  m.Name,
		Status:     models.StatusProving,
		CreatedAt:  time.Now().UTC(),
		ModelHash:  m.ModelHash,
		InputHash:  crypto.HashTensor(input),
		OutputHash: outputHash,
		Output:     *out,
	}
	if err := s.store.Create(r); err != nil {
		return nil, fmt.Errorf("persisting receipt: %w", err)
	}
	s.events.ReceiptCreated(r)

	if err := s.orch.Enqueue(ctx, orchestrator.Job{
		ReceiptID:  r.ID,
		ModelID:    m.ID,
		Input:      input,
		Output:     out.RawOutput,
		WebhookURL: req.WebhookURL,
	}); err != nil {
		return nil, fmt.Errorf("enqueueing proof job: %w", err)
	}

	slog.Info("Proof submitted",
		"receipt_id", r.ID,
		"model_id", m.ID,
		"label", out.Label,
		"pending", s.orch.Pending())

	return &ProveResult{
		ReceiptID:   r.ID,
		ReceiptURL:  s.baseURL + "/receipt/" + r.ID,
		ModelID:     m.ID,
		Output:      *out,
		Status:      r.Status,
		ProofString: r.ProofString(),
	}, nil
}
