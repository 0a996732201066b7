package services

import (
	"github.com/aigoflow/proof-service/internal/models"
	"github.com/aigoflow/proof-service/internal/receipts"
	"github.com/aigoflow/proof-service/internal/zk"
)

// VerifyResult reports an on-demand re-verification of a stored proof.
type VerifyResult struct {
	Valid     bool          `json:"valid"`
	ReceiptID string        `json:"receipt_id"`
	Status    models.Status `json:"status"`
	Reason    string        `json:"reason,omitempty"`
}

// VerifyService re-runs cryptographic verification against the stored
// proof bytes rather than trusting the recorded status.
type VerifyService struct {
	store  *receipts.Store
	engine *zk.Engine
}

func NewVerifyService(store *receipts.Store, engine *zk.Engine) *VerifyService {
	return &VerifyService{store: store, engine: engine}
}

func (s *VerifyService) Verify(receiptID string) (*VerifyResult, error) {
	r, err := s.store.Get(receiptID)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{ReceiptID: r.ID, Status: r.Status}
	if r.Status != models.StatusVerified {
		res.Reason = "receipt has no verified proof"
		return res, nil
	}

	proof, err := s.store.GetProof(r.ID)
	if err != nil {
		return nil, err
	}
	if len(proof) == 0 {
		res.Reason = "proof bytes missing"
		return res, nil
	}

	if err := s.engine.Verify(r.ModelID, proof, r.Output.RawOutput); err != nil {
		res.Reason = "proof verification failed"
		return res, nil
	}
	res.Valid = true
	return res, nil
}
