package zk

import "github.com/consensys/gnark/frontend"

// inferenceCircuit proves the quantized affine inference relation
// y = W*x + b. The weight matrix and bias are compiled in as circuit
// constants, so the verifying key binds a specific model; the input stays
// private and only the output scores are public.
type inferenceCircuit struct {
	Input  []frontend.Variable `gnark:",secret"`
	Output []frontend.Variable `gnark:",public"`

	weights [][]int32
	bias    []int32
}

func newInferenceCircuit(weights [][]int32, bias []int32, inputDim int) *inferenceCircuit {
	return &inferenceCircuit{
		Input:   make([]frontend.Variable, inputDim),
		Output:  make([]frontend.Variable, len(weights)),
		weights: weights,
		bias:    bias,
	}
}

func (c *inferenceCircuit) Define(api frontend.API) error {
	for i := range c.weights {
		acc := frontend.Variable(int64(c.bias[i]))
		for j := range c.Input {
			acc = api.Add(acc, api.Mul(c.Input[j], int64(c.weights[i][j])))
		}
		api.AssertIsEqual(acc, c.Output[i])
	}
	return nil
}

// assignment builds a witness-only copy of the circuit shape. Field
// elements are assigned from the signed scores; negative values reduce
// modulo the scalar field, matching the in-circuit constant arithmetic.
func assignment(input, output []int32) *inferenceCircuit {
	c := &inferenceCircuit{
		Input:  make([]frontend.Variable, len(input)),
		Output: make([]frontend.Variable, len(output)),
	}
	for i, v := range input {
		c.Input[i] = int64(v)
	}
	for i, v := range output {
		c.Output[i] = int64(v)
	}
	return c
}
