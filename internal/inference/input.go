package inference

import (
	"fmt"

	"github.com/aigoflow/proof-service/internal/models"
)

// MaxTextLen bounds text inputs before vectorization.
const MaxTextLen = 10000

// MaxRawMagnitude bounds each element of a raw input vector. Text and
// field inputs are small by construction; raw vectors are caller
// supplied and must stay far from int32 score overflow.
const MaxRawMagnitude = 1 << 20

// BuildInput validates a prove input against the model's contract and
// vectorizes it. This is request-time validation, distinct from the
// registration-time checks in the registry.
func BuildInput(m *models.Model, in models.ProveInput, vocab *Vocab) ([]int32, error) {
	switch m.InputType {
	case models.InputTypeText:
		if in.Text == nil {
			return nil, models.InvalidWithHint(
				"text input required for this model",
				`provide {"input": {"text": "..."}}`)
		}
		if len(*in.Text) > MaxTextLen {
			return nil, models.Invalid("text input exceeds maximum length of %d characters", MaxTextLen)
		}
		if vocab == nil || vocab.TfIdf == nil {
			return nil, fmt.Errorf("vocabulary not loaded for model %s", m.ID)
		}
		return BuildTfIdf(*in.Text, vocab.TfIdf, m.InputDim), nil

	case models.InputTypeFields:
		if in.Fields == nil {
			return nil, models.InvalidWithHint(
				"field inputs required for this model",
				`provide {"input": {"fields": {"field_name": value}}}`)
		}
		fieldNames := make([]string, 0, len(m.Fields))
		for _, schema := range m.Fields {
			fieldNames = append(fieldNames, schema.Name)
			if value, ok := in.Fields[schema.Name]; ok {
				if value < schema.Min || value > schema.Max {
					return nil, models.Invalid("field %q value %d outside range [%d, %d]",
						schema.Name, value, schema.Min, schema.Max)
				}
			}
		}
		if vocab == nil || vocab.OneHot == nil {
			return nil, fmt.Errorf("vocabulary not loaded for model %s", m.ID)
		}
		return BuildOneHot(in.Fields, fieldNames, vocab.OneHot, m.InputDim), nil

	case models.InputTypeRaw:
		if in.Raw == nil {
			return nil, models.InvalidWithHint(
				"raw input vector required for this model",
				fmt.Sprintf(`provide {"input": {"raw": [...]}} with %d elements`, m.InputDim))
		}
		if len(in.Raw) != m.InputDim {
			return nil, models.Invalid("raw input length %d does not match expected %d", len(in.Raw), m.InputDim)
		}
		for i, v := range in.Raw {
			if v > MaxRawMagnitude || v < -MaxRawMagnitude {
				return nil, models.Invalid("raw input element %d magnitude exceeds %d", i, MaxRawMagnitude)
			}
		}
		vec := make([]int32, len(in.Raw))
		copy(vec, in.Raw)
		return vec, nil
	}

	return nil, fmt.Errorf("model %s has unknown input type %q", m.ID, m.InputType)
}
