package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// ReviewResult reports the outcome of a finalized review.
type ReviewResult struct {
	TxID     string `json:"tx_id"`
	Decision string `json:"decision"`
	TxHash   string `json:"tx_hash"`
}

// Review drives the review state machine for one transaction.
//
// Legal transitions: Pending -> {Approved, Declined, Review} and
// Review -> {Approved, Declined, Review}. Approved and Declined are
// terminal: any current status outside {Pending, Review} is Unprocessable.
//
// The current status is read from the remote record, which is the ground
// truth; a transaction with no local record is still reviewable. The local
// cache is only written after the ledger confirms the review
// (write-after-confirm), so it can never show a status the ledger has not
// finalized.
func (s *Service) Review(ctx context.Context, claims *auth.Claims, txID, decision, auditorComment string) (ReviewResult, error) {
	target, ok := models.ParseDecision(decision)
	if !ok {
		return ReviewResult{}, apperr.Newf(apperr.InvalidArgument,
			"decision must be Approved, Declined or Review; got %q", decision)
	}

	inst, err := s.institution(claims.InstitutionID)
	if err != nil {
		return ReviewResult{}, err
	}

	lock := s.store.InstitutionLock(inst.ID)
	lock.Lock()
	defer lock.Unlock()

	remote, err := s.ledger.GetTransaction(ctx, txID)
	if err != nil {
		return ReviewResult{}, classifyLedgerErr(err, "transaction lookup")
	}
	if remote.InstitutionRemote != inst.RemoteID {
		return ReviewResult{}, apperr.New(apperr.Forbidden, "transaction belongs to another institution")
	}
	if remote.Status != models.StatusPending && remote.Status != models.StatusReview {
		return ReviewResult{}, apperr.Newf(apperr.Unprocessable,
			"transaction is %s and can no longer be reviewed", remote.Status)
	}

	receipt, err := s.ledger.SubmitReview(ctx, txID, target, auditorComment)
	if err != nil {
		// No local mutation on failure. On a timeout in particular the
		// cache keeps its previous value; the next reconciled read shows
		// whatever the ledger finalized.
		return ReviewResult{}, classifyLedgerErr(err, "review submission")
	}

	err = s.store.Update(func(state *localstore.State) error {
		local, ok := state.Transactions[txID]
		if !ok {
			// Reviewing a transaction we never saw created; cache what
			// the ledger now holds.
			local = models.LocalTransaction{
				ID:            txID,
				InstitutionID: inst.ID,
				CreatedAt:     time.Now().UTC(),
			}
		}
		local.CachedStatus = target
		local.CachedAuditorComment = auditorComment
		local.ReviewReceipt = receipt.TxHash
		local.ReviewedAt = time.Now().UTC()
		state.Transactions[txID] = local
		return nil
	})

	result := ReviewResult{TxID: txID, Decision: decision, TxHash: receipt.TxHash}
	if err != nil {
		// Remote review is final; surface the storage failure but keep
		// the receipt so the caller knows the decision stuck.
		return result, err
	}

	s.log.Info("transaction reviewed",
		zap.String("tx_id", txID),
		zap.String("decision", decision),
		zap.String("auditor", claims.SubjectID))
	return result, nil
}
