// Package inference is the deterministic wrapper around the numeric
// execution engine: a pure function of (model, input) to output. The
// engine's native weight format is a single quantized affine layer; the
// proving circuit asserts exactly this computation.
package inference

import (
	"encoding/json"
	"fmt"
)

// OpAffine is the only operation in the engine's supported operator set.
const OpAffine = "affine"

// Weights is the on-disk weight format: y = W*x + b over int32.
type Weights struct {
	Op      string    `json:"op"`
	Weights [][]int32 `json:"weights"`
	Bias    []int32   `json:"bias"`
}

// UnsupportedOpError names the offending operation so registration can
// fail with a specific reason.
type UnsupportedOpError struct {
	Op string
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("unsupported operation %q: engine supports [%s]", e.Op, OpAffine)
}

// ParseWeights decodes and structurally validates a weight file. Shape
// defects are caught here, at registration, not at inference time.
func ParseWeights(data []byte, inputDim, numLabels int) (*Weights, error) {
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed weight file: %w", err)
	}
	if w.Op != OpAffine {
		return nil, &UnsupportedOpError{Op: w.Op}
	}
	if len(w.Weights) != numLabels {
		return nil, fmt.Errorf("weight rows %d do not match %d labels", len(w.Weights), numLabels)
	}
	if len(w.Bias) != numLabels {
		return nil, fmt.Errorf("bias length %d does not match %d labels", len(w.Bias), numLabels)
	}
	for i, row := range w.Weights {
		if len(row) != inputDim {
			return nil, fmt.Errorf("weight row %d has %d columns, expected input_dim %d", i, len(row), inputDim)
		}
	}
	return &w, nil
}
