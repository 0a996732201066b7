package zk

import (
	"errors"
	"testing"

	"github.com/aigoflow/proof-service/internal/inference"
)

func smallWeights() *inference.Weights {
	return &inference.Weights{
		Op:      inference.OpAffine,
		Weights: [][]int32{{2, -1}, {1, 3}},
		Bias:    []int32{1, -2},
	}
}

func TestProveVerifyRoundtrip(t *testing.T) {
	e := NewEngine()
	if _, err := e.Preprocess("m1", smallWeights(), 1<<14); err != nil {
		t.Fatal(err)
	}
	if !e.Ready("m1") || e.Loaded() != 1 {
		t.Fatal("engine should report m1 ready")
	}

	input := []int32{3, 4}
	output, err := inference.Forward(smallWeights(), input)
	if err != nil {
		t.Fatal(err)
	}

	proof, err := e.Prove("m1", input, output)
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) == 0 {
		t.Fatal("empty proof bytes")
	}

	if err := e.Verify("m1", proof, output); err != nil {
		t.Errorf("valid proof rejected: %v", err)
	}
}

func TestVerifyRejectsTamperedOutput(t *testing.T) {
	e := NewEngine()
	if _, err := e.Preprocess("m1", smallWeights(), 1<<14); err != nil {
		t.Fatal(err)
	}

	input := []int32{3, 4}
	output, _ := inference.Forward(smallWeights(), input)
	proof, err := e.Prove("m1", input, output)
	if err != nil {
		t.Fatal(err)
	}

	tampered := append([]int32(nil), output...)
	tampered[0]++
	if err := e.Verify("m1", proof, tampered); err == nil {
		t.Error("tampered output must not verify")
	}
}

func TestProveWrongOutputFails(t *testing.T) {
	e := NewEngine()
	if _, err := e.Preprocess("m1", smallWeights(), 1<<14); err != nil {
		t.Fatal(err)
	}

	// Claiming an output the model did not produce must fail at proving.
	if _, err := e.Prove("m1", []int32{3, 4}, []int32{999, 999}); err == nil {
		t.Error("unsatisfiable witness must not prove")
	}
}

func TestTraceBudget(t *testing.T) {
	e := NewEngine()
	_, err := e.Preprocess("tiny", smallWeights(), 1)
	var budgetErr *BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("expected BudgetError, got %v", err)
	}
	if e.Ready("tiny") {
		t.Error("rejected model must not be cached")
	}
}

func TestUnknownModel(t *testing.T) {
	e := NewEngine()
	if _, err := e.Prove("ghost", []int32{1}, []int32{1}); err == nil {
		t.Error("expected error for unknown model")
	}
	if err := e.Verify("ghost", nil, []int32{1}); err == nil {
		t.Error("expected error for unknown model")
	}
}
