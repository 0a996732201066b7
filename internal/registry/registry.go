// Package registry holds the immutable descriptors of provable models.
// Built-in models are scanned from disk at startup; uploads register at
// runtime. Reads vastly outnumber inserts, so the mapping lives behind a
// reader-writer lock and lookups never observe a partially-registered
// model.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aigoflow/proof-service/internal/crypto"
	"github.com/aigoflow/proof-service/internal/inference"
	"github.com/aigoflow/proof-service/internal/models"
)

const (
	DescriptorFile = "model.json"
	WeightsFile    = "weights.json"
	VocabFile      = "vocab.json"
)

type entry struct {
	model   *models.Model
	weights *inference.Weights
	vocab   *inference.Vocab
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register makes a model visible atomically. The descriptor, weights and
// vocabulary are installed under one write lock, so a concurrent Get never
// sees a half-registered model.
func (r *Registry) Register(m *models.Model, w *inference.Weights, v *inference.Vocab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[m.ID]; !exists {
		r.order = append(r.order, m.ID)
	}
	r.entries[m.ID] = &entry{model: m, weights: w, vocab: v}
}

func (r *Registry) Get(id string) (*models.Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.model, true
}

// Weights returns the loaded weight matrix for a model.
func (r *Registry) Weights(id string) (*inference.Weights, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.weights, true
}

// Vocab returns the model's vocabulary, nil for raw-input models.
func (r *Registry) Vocab(id string) (*inference.Vocab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.vocab, true
}

// List returns models in registration order.
func (r *Registry) List() []*models.Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Model, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			out = append(out, e.model)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ScanDir loads every model directory under base containing a descriptor
// and a weight file. Directories that fail validation are skipped with the
// reason returned in the error list; sound models still register.
func (r *Registry) ScanDir(base string, uploaded bool) []error {
	dirents, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []error{err}
	}

	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() {
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		dir := filepath.Join(base, name)
		if _, err := os.Stat(filepath.Join(dir, DescriptorFile)); err != nil {
			continue
		}
		if err := r.loadDir(dir, uploaded); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

func (r *Registry) loadDir(dir string, uploaded bool) error {
	raw, err := os.ReadFile(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return err
	}
	m, err := ParseDescriptor(raw)
	if err != nil {
		return err
	}
	m.Uploaded = uploaded

	if _, exists := r.Get(m.ID); exists {
		return nil
	}

	weightsPath := filepath.Join(dir, WeightsFile)
	weightBytes, err := os.ReadFile(weightsPath)
	if err != nil {
		return err
	}
	w, err := inference.ParseWeights(weightBytes, m.InputDim, len(m.Labels))
	if err != nil {
		return err
	}

	var vocab *inference.Vocab
	if m.InputType != models.InputTypeRaw {
		vocab, err = inference.LoadVocab(filepath.Join(dir, VocabFile))
		if err != nil {
			return fmt.Errorf("vocabulary: %w", err)
		}
	}

	m.ModelHash = crypto.Keccak256(weightBytes)
	r.Register(m, w, vocab)
	return nil
}

// ParseDescriptor decodes and validates a descriptor document against the
// registration schema.
func ParseDescriptor(raw []byte) (*models.Model, error) {
	if err := ValidateDescriptor(raw); err != nil {
		return nil, err
	}
	var m models.Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, models.Invalid("malformed descriptor: %v", err)
	}
	if _, ok := models.ParseInputType(string(m.InputType)); !ok {
		return nil, models.Invalid("unknown input_type %q", m.InputType)
	}
	return &m, nil
}

// MarshalDescriptor renders a model back to descriptor form, as written
// next to uploaded weight files.
func MarshalDescriptor(m *models.Model) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
