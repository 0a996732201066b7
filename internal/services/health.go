package services

import (
	"github.com/aigoflow/proof-service/internal/registry"
	"github.com/aigoflow/proof-service/internal/zk"
)

const Version = "0.3.0"

type HealthStatus struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ProofSystem string `json:"proof_system"`
	ModelsTotal int    `json:"models_total"`
	ModelsReady int    `json:"models_ready"`
	PendingJobs int    `json:"pending_jobs"`
}

type pendingCounter interface {
	Pending() int
}

// HealthService reports liveness plus model readiness. Status degrades to
// "loading" while any registered model still lacks its proving key.
type HealthService struct {
	registry *registry.Registry
	engine   *zk.Engine
	orch     pendingCounter
}

func NewHealthService(reg *registry.Registry, engine *zk.Engine, orch pendingCounter) *HealthService {
	return &HealthService{registry: reg, engine: engine, orch: orch}
}

func (s *HealthService) Check() *HealthStatus {
	total := s.registry.Len()
	ready := s.engine.Loaded()
	status := "ok"
	if ready < total {
		status = "loading"
	}
	pending := 0
	if s.orch != nil {
		pending = s.orch.Pending()
	}
	return &HealthStatus{
		Status:      status,
		Version:     Version,
		ProofSystem: zk.ProofSystem,
		ModelsTotal: total,
		ModelsReady: ready,
		PendingJobs: pending,
	}
}
