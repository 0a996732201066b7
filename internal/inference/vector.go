package inference

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var tokenizer = regexp.MustCompile(`\w+|[^\w\s]`)

// TfIdfEntry maps a token to its vector index and scaled idf weight
// (idf * 1000, quantized to int32 to stay in fixed-point arithmetic).
type TfIdfEntry struct {
	Index int
	IDF   int32
}

// Vocab is the per-model vocabulary used to vectorize text or structured
// field inputs. Raw-input models carry no vocabulary.
type Vocab struct {
	TfIdf  map[string]TfIdfEntry
	OneHot map[string]int
}

// LoadVocab reads a vocabulary file. Two layouts exist: a flat
// word -> {index, idf} object for text models, and a
// {"vocab_mapping": {key -> {index}}} object for structured-field models.
func LoadVocab(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("malformed vocab file %s: %w", path, err)
	}

	if mapping, ok := root["vocab_mapping"]; ok {
		var entries map[string]struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal(mapping, &entries); err != nil {
			return nil, fmt.Errorf("malformed vocab_mapping in %s: %w", path, err)
		}
		oneHot := make(map[string]int, len(entries))
		for key, e := range entries {
			oneHot[key] = e.Index
		}
		return &Vocab{OneHot: oneHot}, nil
	}

	tfidf := make(map[string]TfIdfEntry, len(root))
	for word, raw := range root {
		var e struct {
			Index int     `json:"index"`
			IDF   float64 `json:"idf"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		tfidf[word] = TfIdfEntry{Index: e.Index, IDF: int32(e.IDF * 1000)}
	}
	return &Vocab{TfIdf: tfidf}, nil
}

// BuildTfIdf vectorizes text: tokens are lowercased, looked up in the
// vocabulary, and their scaled idf accumulated at the token's index.
func BuildTfIdf(text string, vocab map[string]TfIdfEntry, dim int) []int32 {
	vec := make([]int32, dim)
	for _, token := range tokenizer.FindAllString(text, -1) {
		if e, ok := vocab[strings.ToLower(token)]; ok && e.Index < dim {
			vec[e.Index] += e.IDF
		}
	}
	return vec
}

// BuildOneHot vectorizes structured fields: each present field contributes
// a single 1 at the index of its "<field>_<value>" vocabulary key.
func BuildOneHot(fields map[string]int, fieldNames []string, vocab map[string]int, dim int) []int32 {
	vec := make([]int32, dim)
	for _, name := range fieldNames {
		value, ok := fields[name]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%s_%d", name, value)
		if idx, ok := vocab[key]; ok && idx < dim {
			vec[idx] = 1
		}
	}
	return vec
}
