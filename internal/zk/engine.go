// Package zk wraps the SNARK collaborator: a groth16/BN254 engine with a
// per-model preprocessing cache. Model registration compiles the inference
// circuit once (the expensive step); proving and verification reuse the
// cached keys.
package zk

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/aigoflow/proof-service/internal/inference"
)

const ProofSystem = "groth16 SNARK (BN254)"

// BudgetError reports a model whose circuit does not fit its declared
// trace length.
type BudgetError struct {
	Constraints int
	Budget      int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("circuit needs %d constraints, exceeding trace length budget %d", e.Constraints, e.Budget)
}

type preprocessed struct {
	ccs         constraint.ConstraintSystem
	pk          groth16.ProvingKey
	vk          groth16.VerifyingKey
	inputDim    int
	outputDim   int
	constraints int
}

// Engine holds one preprocessing entry per model id. Reads vastly outnumber
// inserts, so entries live behind an RWMutex.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*preprocessed
}

func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*preprocessed)}
}

// Preprocess compiles and sets up the circuit for a model, enforcing the
// trace length budget against the compiled constraint count. Safe to call
// concurrently; the last writer for an id wins (descriptors are immutable,
// so repeated preprocessing is idempotent).
func (e *Engine) Preprocess(modelID string, w *inference.Weights, traceLength int) (int, error) {
	circuit := newInferenceCircuit(w.Weights, w.Bias, len(w.Weights[0]))
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return 0, fmt.Errorf("circuit compilation failed: %w", err)
	}

	nb := ccs.GetNbConstraints()
	if traceLength > 0 && nb > traceLength {
		return nb, &BudgetError{Constraints: nb, Budget: traceLength}
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nb, fmt.Errorf("groth16 setup failed: %w", err)
	}

	e.mu.Lock()
	e.cache[modelID] = &preprocessed{
		ccs:         ccs,
		pk:          pk,
		vk:          vk,
		inputDim:    len(w.Weights[0]),
		outputDim:   len(w.Weights),
		constraints: nb,
	}
	e.mu.Unlock()

	slog.Info("Model preprocessed", "model_id", modelID, "constraints", nb)
	return nb, nil
}

// Ready reports whether proving material exists for the model.
func (e *Engine) Ready(modelID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.cache[modelID]
	return ok
}

// Loaded returns the number of preprocessed models.
func (e *Engine) Loaded() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func (e *Engine) get(modelID string) (*preprocessed, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.cache[modelID]
	if !ok {
		return nil, fmt.Errorf("no preprocessing available for model %s", modelID)
	}
	return p, nil
}

// Prove generates a serialized proof that output is the model's inference
// result on input. The input stays private; the output scores are the
// public witness.
func (e *Engine) Prove(modelID string, input, output []int32) ([]byte, error) {
	p, err := e.get(modelID)
	if err != nil {
		return nil, err
	}
	if len(input) != p.inputDim || len(output) != p.outputDim {
		return nil, fmt.Errorf("witness shape (%d,%d) does not match circuit (%d,%d)",
			len(input), len(output), p.inputDim, p.outputDim)
	}

	witness, err := frontend.NewWitness(assignment(input, output), ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness construction failed: %w", err)
	}

	proof, err := groth16.Prove(p.ccs, p.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("proof generation failed: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("proof serialization failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks a serialized proof against the model's verifying key and
// the claimed output. It is the independent self-check run before any
// receipt is published as verified, and the recomputation path for /verify.
func (e *Engine) Verify(modelID string, proofBytes []byte, output []int32) error {
	p, err := e.get(modelID)
	if err != nil {
		return err
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("proof deserialization failed: %w", err)
	}

	public, err := frontend.NewWitness(assignment(nil, output), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness construction failed: %w", err)
	}

	if err := groth16.Verify(proof, p.vk, public); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}
