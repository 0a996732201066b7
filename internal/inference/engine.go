package inference

import (
	"fmt"
	"math"

	"github.com/aigoflow/proof-service/internal/models"
)

// Forward computes the quantized affine pass y = W*x + b. It is pure:
// identical (weights, input) always yield identical scores, independent of
// call order or concurrent load.
func Forward(w *Weights, input []int32) ([]int32, error) {
	if len(w.Weights) == 0 {
		return nil, fmt.Errorf("empty weight matrix")
	}
	if len(input) != len(w.Weights[0]) {
		return nil, fmt.Errorf("input length %d does not match weight columns %d", len(input), len(w.Weights[0]))
	}

	out := make([]int32, len(w.Weights))
	for i, row := range w.Weights {
		acc := int64(w.Bias[i])
		for j, c := range row {
			acc += int64(c) * int64(input[j])
		}
		// The recorded score must be exactly the value the proving
		// circuit asserts; a truncated accumulator would make every
		// proof on this output fail.
		if acc > math.MaxInt32 || acc < math.MinInt32 {
			return nil, fmt.Errorf("score overflow at output %d", i)
		}
		out[i] = int32(acc)
	}
	return out, nil
}

// Run executes a forward pass and derives the prediction: argmax class,
// label (falling back to class_<i> past the label set), and confidence as
// the winning score's share of total absolute mass.
func Run(w *Weights, input []int32, labels []string) (*models.InferenceOutput, error) {
	raw, err := Forward(w, input)
	if err != nil {
		return nil, err
	}

	predIdx := 0
	for i, v := range raw {
		if v > raw[predIdx] {
			predIdx = i
		}
	}

	label := fmt.Sprintf("class_%d", predIdx)
	if predIdx < len(labels) {
		label = labels[predIdx]
	}

	var total float64
	for _, v := range raw {
		total += math.Abs(float64(v))
	}
	confidence := 0.0
	if total > 0 {
		confidence = math.Abs(float64(raw[predIdx])) / total
	}

	return &models.InferenceOutput{
		RawOutput:      raw,
		PredictedClass: predIdx,
		Label:          label,
		Confidence:     confidence,
	}, nil
}
