// Package receipts is the store facade over two independent tiers: the
// sqlite durable record (write-of-record) and a bigcache read accelerator.
// Every mutation writes the durable tier first; cache entries may be
// evicted at any time and are rebuilt from sqlite on the next read.
package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/store"
)

// ErrConflict signals an illegal or lost status transition. It is a
// programming-error signal, not a user-facing condition.
var ErrConflict = errors.New("receipt status conflict")

type Store struct {
	db    *store.DB
	cache *bigcache.BigCache
}

func New(db *store.DB, cacheTTL time.Duration) (*Store, error) {
	cfg := bigcache.DefaultConfig(cacheTTL)
	cfg.Verbose = false
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, cache: cache}, nil
}

// Create persists a new receipt, durable tier first. A storage failure
// here fails the originating request: a receipt is never handed to a
// caller without being durably recorded.
func (s *Store) Create(r *models.Receipt) error {
	if err := s.db.InsertReceipt(r); err != nil {
		return err
	}
	s.cacheSet(r)
	return nil
}

// Get reads through the cache; a miss falls to sqlite and repopulates.
func (s *Store) Get(id string) (*models.Receipt, error) {
	if data, err := s.cache.Get(id); err == nil {
		var r models.Receipt
		if err := json.Unmarshal(data, &r); err == nil {
			return &r, nil
		}
	}

	r, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(r)
	return r, nil
}

// Transition applies one edge of the state machine atomically. The durable
// tier performs a compare-and-set on the current status; exactly one of
// any set of racing callers succeeds, the rest get ErrConflict.
func (s *Store) Transition(id string, from, to models.Status, f models.TransitionFields) (*models.Receipt, error) {
	if !from.CanTransition(to) {
		return nil, ErrConflict
	}

	ok, err := s.db.TransitionReceipt(id, from, to, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Row missing or its status moved on since the caller read it.
		if _, getErr := s.db.GetReceipt(id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}

	r, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, err
	}
	s.cacheSet(r)
	return r, nil
}

// GetProof returns the stored proof bytes from the durable tier. Proof
// bytes are deliberately kept out of the cache.
func (s *Store) GetProof(id string) ([]byte, error) {
	return s.db.GetProof(id)
}

// RecoverInterrupted fails proving receipts older than grace and drops the
// whole cache so stale proving entries cannot be served.
func (s *Store) RecoverInterrupted(grace time.Duration) (int64, error) {
	n, err := s.db.MarkInterrupted(grace)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := s.cache.Reset(); err != nil {
			slog.Warn("Receipt cache reset failed", "error", err)
		}
	}
	return n, nil
}

func (s *Store) Stats() (*models.Stats, error) {
	return s.db.Stats()
}

func (s *Store) ListRecent(limit int) ([]*models.Summary, error) {
	return s.db.ListRecent(limit)
}

func (s *Store) cacheSet(r *models.Receipt) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.cache.Set(r.ID, data); err != nil {
		// Cache failures are invisible to callers; sqlite remains correct.
		slog.Debug("Receipt cache set failed", "receipt_id", r.ID, "error", err)
	}
}
