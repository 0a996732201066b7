package services

import (
	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/receipts"
)

// MetricsService exposes the read-side aggregates over the receipt store.
type MetricsService struct {
	store *receipts.Store
}

func NewMetricsService(store *receipts.Store) *MetricsService {
	return &MetricsService{store: store}
}

func (s *MetricsService) Stats() (*models.Stats, error) {
	return s.store.Stats()
}

// Recent lists the newest receipts. Limits outside [1, 50] clamp to the
// defaults rather than erroring; this endpoint backs a dashboard.
func (s *MetricsService) Recent(limit int) ([]*models.Summary, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.store.ListRecent(limit)
}
