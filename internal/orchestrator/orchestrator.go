// Package orchestrator drives receipts from proving to a terminal status.
// Proof generation is memory-intensive, so jobs run on a bounded worker
// pool; request handlers only enqueue and never wait for completion.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aigoflow/proof-service/internal/crypto"
	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/webhook"
)

// Prover is the contract with the external proving collaborator. Neither
// call is preemptible: a timeout stops the orchestrator from waiting but
// does not halt the underlying computation.
type Prover interface {
	Prove(modelID string, input, output []int32) ([]byte, error)
	Verify(modelID string, proof []byte, output []int32) error
}

// Events receives terminal-state notifications; nil-safe implementations
// are the caller's responsibility.
type Events interface {
	ReceiptCompleted(r *models.Receipt)
}

// Job is the transient in-flight proof computation for one receipt. It is
// owned exclusively by the worker pool and discarded at terminal status.
type Job struct {
	ReceiptID  string
	ModelID    string
	Input      []int32
	Output     []int32
	WebhookURL string
}

type Orchestrator struct {
	store    *receipts.Store
	prover   Prover
	webhooks *webhook.Dispatcher
	events   Events

	jobs    chan Job
	workers int
	timeout time.Duration
}

type Options struct {
	Workers  int
	Timeout  time.Duration
	Queue    int
	Webhooks *webhook.Dispatcher
	Events   Events
}

func New(store *receipts.Store, prover Prover, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Queue < 1 {
		opts.Queue = 256
	}
	return &Orchestrator{
		store:    store,
		prover:   prover,
		webhooks: opts.Webhooks,
		events:   opts.Events,
		jobs:     make(chan Job, opts.Queue),
		workers:  opts.Workers,
		timeout:  opts.Timeout,
	}
}

// Start launches the worker pool. Workers drain until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		go o.worker(ctx, i)
	}
	slog.Info("Proof orchestrator started", "workers", o.workers, "timeout", o.timeout)
}

// Enqueue hands a receipt's proof job to the pool. The receipt is already
// durable, so the send blocks briefly under a full queue rather than
// losing the job.
func (o *Orchestrator) Enqueue(ctx context.Context, job Job) error {
	select {
	case o.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports queued-but-unstarted jobs.
func (o *Orchestrator) Pending() int {
	return len(o.jobs)
}

// RecoverInterrupted sweeps receipts stuck in proving from a previous
// process. Call once before Start.
func (o *Orchestrator) RecoverInterrupted(grace time.Duration) (int64, error) {
	return o.store.RecoverInterrupted(grace)
}

func (o *Orchestrator) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.jobs:
			o.run(ctx, job)
		}
	}
}

type proveResult struct {
	proof []byte
	err   error
}

func (o *Orchestrator) run(ctx context.Context, job Job) {
	slog.Info("Starting proof generation", "receipt_id", job.ReceiptID, "model_id", job.ModelID)

	proveStart := time.Now()
	resultCh := make(chan proveResult, 1)
	go func() {
		proof, err := o.prover.Prove(job.ModelID, job.Input, job.Output)
		resultCh <- proveResult{proof: proof, err: err}
	}()

	var res proveResult
	if o.timeout > 0 {
		select {
		case res = <-resultCh:
		case <-time.After(o.timeout):
			// The computation keeps running; we just stop waiting for it.
			o.fail(job, "timeout")
			return
		case <-ctx.Done():
			return
		}
	} else {
		select {
		case res = <-resultCh:
		case <-ctx.Done():
			return
		}
	}
	proveTime := time.Since(proveStart).Milliseconds()

	if res.err != nil {
		slog.Error("Proof generation failed", "receipt_id", job.ReceiptID, "error", res.err)
		o.fail(job, "proof generation failed")
		return
	}

	proofHash := crypto.Keccak256(res.proof)
	proofSize := len(res.proof)

	// Self-check before publishing: a proof is never marked verified
	// without this independent verification passing.
	verifyStart := time.Now()
	if err := o.prover.Verify(job.ModelID, res.proof, job.Output); err != nil {
		slog.Error("Proof self-check failed", "receipt_id", job.ReceiptID, "error", err)
		o.fail(job, "proof verification failed")
		return
	}
	verifyTime := time.Since(verifyStart).Milliseconds()

	r, err := o.store.Transition(job.ReceiptID, models.StatusProving, models.StatusVerified,
		models.TransitionFields{
			ProofHash:    proofHash,
			Proof:        res.proof,
			ProofSize:    &proofSize,
			ProveTimeMs:  &proveTime,
			VerifyTimeMs: &verifyTime,
		})
	if err != nil {
		slog.Error("Receipt transition failed", "receipt_id", job.ReceiptID, "error", err)
		return
	}

	slog.Info("Proof verified",
		"receipt_id", job.ReceiptID,
		"proof_size", proofSize,
		"prove_time_ms", proveTime,
		"verify_time_ms", verifyTime)

	o.notify(job, r)
}

func (o *Orchestrator) fail(job Job, reason string) {
	r, err := o.store.Transition(job.ReceiptID, models.StatusProving, models.StatusFailed,
		models.TransitionFields{Error: reason})
	if err != nil {
		if !errors.Is(err, receipts.ErrConflict) {
			slog.Error("Failed-state transition error", "receipt_id", job.ReceiptID, "error", err)
		}
		return
	}
	o.notify(job, r)
}

func (o *Orchestrator) notify(job Job, r *models.Receipt) {
	if o.events != nil {
		o.events.ReceiptCompleted(r)
	}
	if o.webhooks != nil && job.WebhookURL != "" {
		o.webhooks.Enqueue(job.WebhookURL, r)
	}
}
