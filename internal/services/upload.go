package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/proof-service/internal/crypto"
	"github.com/aigoflow/proof-service/internal/inference"
	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/registry"
	"github.com/aigoflow/proof-service/internal/store"
	"github.com/aigoflow/proof-service/internal/zk"
)

// UploadResult acknowledges an accepted model before its proving key is
// ready. Status moves to ready once background preprocessing finishes.
type UploadResult struct {
	ModelID   string `json:"model_id"`
	Name      string `json:"name"`
	ModelHash string `json:"model_hash"`
	Status    string `json:"status"`
}

// UploadService accepts custom models: a descriptor plus weights (and an
// optional vocabulary), validated and registered under a fresh id.
type UploadService struct {
	registry *registry.Registry
	engine   *zk.Engine
	db       *store.DB
	dir      string
	maxBytes int64
}

func NewUploadService(reg *registry.Registry, engine *zk.Engine, db *store.DB, dir string, maxBytes int64) *UploadService {
	return &UploadService{registry: reg, engine: engine, db: db, dir: dir, maxBytes: maxBytes}
}

func readPart(file multipart.File, limit int64, name string) ([]byte, error) {
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, models.Invalid("%s exceeds the %d byte upload limit", name, limit)
	}
	return data, nil
}

// Upload validates and registers a model from multipart form parts. The
// uploaded id is the descriptor id suffixed with a fresh ULID fragment,
// so uploads never collide with built-ins or with each other.
func (s *UploadService) Upload(descriptorPart, weightsPart, vocabPart multipart.File) (*UploadResult, error) {
	descriptorBytes, err := readPart(descriptorPart, s.maxBytes, "descriptor")
	if err != nil {
		return nil, err
	}
	weightBytes, err := readPart(weightsPart, s.maxBytes, "weights")
	if err != nil {
		return nil, err
	}
	var vocabBytes []byte
	if vocabPart != nil {
		if vocabBytes, err = readPart(vocabPart, s.maxBytes, "vocabulary"); err != nil {
			return nil, err
		}
	}

	m, err := registry.ParseDescriptor(descriptorBytes)
	if err != nil {
		return nil, err
	}
	if m.InputType != models.InputTypeRaw && vocabBytes == nil {
		return nil, models.InvalidWithHint(
			fmt.Sprintf("input type %q requires a vocabulary", m.InputType),
			"attach a vocab file to the upload form")
	}

	weights, err := inference.ParseWeights(weightBytes, m.InputDim, len(m.Labels))
	if err != nil {
		return nil, err
	}

	suffix := strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String()[:8])
	m.ID = m.ID + "_" + suffix
	m.ModelHash = crypto.Keccak256(weightBytes)
	m.Uploaded = true
	now := time.Now().UTC()
	m.UploadedAt = &now

	modelDir := filepath.Join(s.dir, m.ID)
	if err := s.writeModelDir(modelDir, m, weightBytes, vocabBytes); err != nil {
		os.RemoveAll(modelDir)
		return nil, fmt.Errorf("persisting model files: %w", err)
	}

	var vocab *inference.Vocab
	if vocabBytes != nil {
		if vocab, err = inference.LoadVocab(filepath.Join(modelDir, registry.VocabFile)); err != nil {
			os.RemoveAll(modelDir)
			return nil, err
		}
	}

	if err := s.db.InsertModelRecord(m); err != nil {
		os.RemoveAll(modelDir)
		return nil, fmt.Errorf("recording model: %w", err)
	}

	s.registry.Register(m, weights, vocab)

	// Circuit compilation and key setup take a while; run them off the
	// request path. Prove requests see ModelLoadingError until ready.
	go func() {
		start := time.Now()
		constraints, err := s.engine.Preprocess(m.ID, weights, m.TraceLength)
		if err != nil {
			slog.Error("Uploaded model preprocessing failed", "model_id", m.ID, "error", err)
			return
		}
		slog.Info("Uploaded model ready",
			"model_id", m.ID,
			"constraints", constraints,
			"elapsed", time.Since(start))
	}()

	slog.Info("Model uploaded", "model_id", m.ID, "name", m.Name, "input_type", m.InputType)

	return &UploadResult{
		ModelID:   m.ID,
		Name:      m.Name,
		ModelHash: m.ModelHash,
		Status:    "preprocessing",
	}, nil
}

func (s *UploadService) writeModelDir(dir string, m *models.Model, weightBytes, vocabBytes []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	descriptor, err := registry.MarshalDescriptor(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, registry.DescriptorFile), descriptor, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, registry.WeightsFile), weightBytes, 0o644); err != nil {
		return err
	}
	if vocabBytes != nil {
		if err := os.WriteFile(filepath.Join(dir, registry.VocabFile), vocabBytes, 0o644); err != nil {
			return err
		}
	}
	return nil
}
