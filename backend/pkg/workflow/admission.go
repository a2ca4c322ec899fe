package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// CreateTransactionRequest is the validated command for a new spending
// request. Deadline and Priority stay local; they are never submitted to
// the ledger.
type CreateTransactionRequest struct {
	Receiver    string
	AmountEther decimal.Decimal
	Purpose     string
	Comment     string
	Deadline    string
	Priority    models.Priority
}

// CreateTransactionResult reports the ledger-assigned id and receipt.
type CreateTransactionResult struct {
	TxID   string `json:"tx_id"`
	TxHash string `json:"tx_hash"`
}

// CreateTransaction admits a spending request: validate the command, check
// the institution's remote balance, submit to the ledger, and persist the
// locally-owned metadata under the ledger-assigned id.
//
// The balance check is advisory. The ledger re-validates sufficiency at
// submission, so a passing check followed by a rejected receipt is a normal
// outcome, and the rejection is the authoritative failure.
func (s *Service) CreateTransaction(ctx context.Context, claims *auth.Claims, req CreateTransactionRequest) (CreateTransactionResult, error) {
	req.Receiver = strings.TrimSpace(req.Receiver)
	req.Purpose = strings.TrimSpace(req.Purpose)
	if req.Receiver == "" {
		return CreateTransactionResult{}, apperr.New(apperr.InvalidArgument, "receiver address required")
	}
	if len(req.Purpose) < 2 {
		return CreateTransactionResult{}, apperr.New(apperr.InvalidArgument, "purpose must be at least 2 characters")
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(req.Priority) {
		return CreateTransactionResult{}, apperr.Newf(apperr.InvalidArgument, "unknown priority %q", req.Priority)
	}
	wei, ok := models.EtherToWei(req.AmountEther)
	if !ok {
		return CreateTransactionResult{}, apperr.New(apperr.InvalidArgument, "amount must be a positive whole number of wei")
	}

	inst, err := s.institution(claims.InstitutionID)
	if err != nil {
		return CreateTransactionResult{}, err
	}

	// Serialize admission and submission per institution so a concurrent
	// writer cannot spend the balance between the check and the submit.
	lock := s.store.InstitutionLock(inst.ID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.ledger.GetBalance(ctx, inst.RemoteID)
	if err != nil {
		return CreateTransactionResult{}, classifyLedgerErr(err, "balance query")
	}
	if wei.GreaterThan(balance) {
		return CreateTransactionResult{}, apperr.Newf(apperr.InsufficientFunds,
			"amount %s exceeds institution balance %s", wei, balance)
	}

	receipt, err := s.ledger.SubmitTransaction(ctx, inst.RemoteID, req.Receiver, wei, req.Purpose, req.Comment)
	if err != nil {
		return CreateTransactionResult{}, classifyLedgerErr(err, "transaction submission")
	}

	err = s.store.Update(func(state *localstore.State) error {
		state.Transactions[receipt.AssignedID] = models.LocalTransaction{
			ID:            receipt.AssignedID,
			InstitutionID: inst.ID,
			CreatorID:     claims.SubjectID,
			Deadline:      req.Deadline,
			Priority:      req.Priority,
			SubmitReceipt: receipt.TxHash,
			CachedStatus:  models.StatusPending,
			CreatedAt:     time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		// The ledger effect is final; only the metadata write failed.
		return CreateTransactionResult{TxID: receipt.AssignedID, TxHash: receipt.TxHash}, err
	}

	s.log.Info("transaction admitted",
		zap.String("institution_id", inst.ID),
		zap.String("tx_id", receipt.AssignedID),
		zap.String("creator", claims.SubjectID))
	return CreateTransactionResult{TxID: receipt.AssignedID, TxHash: receipt.TxHash}, nil
}
