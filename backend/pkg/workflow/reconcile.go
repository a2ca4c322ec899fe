package workflow

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/ledger"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// Merge combines one remote record with its optional local record into the
// single transaction view. All remote-owned fields come from the remote
// record unconditionally; deadline, priority and the review receipt come
// from the local record when present. Pure: same inputs, same output.
func Merge(remote ledger.Transaction, local *models.LocalTransaction) models.TransactionView {
	view := models.TransactionView{
		ID:                remote.ID,
		InstitutionRemote: remote.InstitutionRemote,
		Creator:           remote.Creator,
		Receiver:          remote.Receiver,
		Amount:            remote.Amount,
		Purpose:           remote.Purpose,
		Comment:           remote.Comment,
		Status:            remote.Status,
		StatusName:        remote.Status.String(),
		AuditorComment:    remote.AuditorComment,
		CreatedAt:         remote.CreatedAt,
	}
	if local != nil {
		view.Deadline = local.Deadline
		view.Priority = local.Priority
		view.ReviewReceipt = local.ReviewReceipt
	}
	return view
}

// ListTransactions produces the reconciled transaction list for the caller's
// institution. The ledger's id list is the ground truth for membership and
// order; a transaction absent locally is still returned with degraded
// metadata. Individual record fetches that fail are logged and omitted from
// this one response rather than failing the whole read.
func (s *Service) ListTransactions(ctx context.Context, institutionID string) ([]models.TransactionView, error) {
	inst, err := s.institution(institutionID)
	if err != nil {
		return nil, err
	}

	ids, err := s.ledger.ListTransactionIDs(ctx, inst.RemoteID)
	if err != nil {
		return nil, classifyLedgerErr(err, "transaction list query")
	}

	// Locally-known metadata, scoped to this institution through the
	// transaction index so no other institution's record can contribute.
	knownIDs := s.store.TransactionIDs(institutionID)
	locals := make(map[string]models.LocalTransaction, len(knownIDs))
	s.store.View(func(state *localstore.State) {
		for _, id := range knownIDs {
			if lt, ok := state.Transactions[id]; ok {
				locals[id] = lt
			}
		}
	})

	views := make([]models.TransactionView, 0, len(ids))
	for _, id := range ids {
		remote, err := s.ledger.GetTransaction(ctx, id)
		if err != nil {
			s.log.Warn("skipping transaction in reconciled list",
				zap.String("tx_id", id), zap.Error(err))
			continue
		}
		var local *models.LocalTransaction
		if lt, ok := locals[id]; ok {
			local = &lt
		}
		views = append(views, Merge(remote, local))
	}
	return views, nil
}

// SummaryMetrics aggregates the reconciled list for the dashboard.
type SummaryMetrics struct {
	TotalTransactions   int             `json:"total_transactions"`
	TotalSpent          decimal.Decimal `json:"total_spent"`
	PendingTransactions int             `json:"pending_transactions"`
	AvgTransaction      decimal.Decimal `json:"avg_transaction"`
}

// AssociateSummary is the roster entry exposed by the summary view; no
// credential material leaves the store.
type AssociateSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Address  string `json:"address"`
}

// InstitutionSummary is the reconciled dashboard view of one institution.
type InstitutionSummary struct {
	Institution struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Location string `json:"location"`
		RemoteID string `json:"remote_id"`
	} `json:"institution"`
	Balance    decimal.Decimal    `json:"balance"`
	Associates []AssociateSummary `json:"associates"`
	Metrics    SummaryMetrics     `json:"metrics"`
}

// Summary assembles balance, roster and spending metrics for an institution.
// Spending metrics are computed over the reconciled list, so the ledger's
// view of approvals is what counts as spent.
func (s *Service) Summary(ctx context.Context, institutionID string) (InstitutionSummary, error) {
	inst, err := s.institution(institutionID)
	if err != nil {
		return InstitutionSummary{}, err
	}

	balance, err := s.ledger.GetBalance(ctx, inst.RemoteID)
	if err != nil {
		return InstitutionSummary{}, classifyLedgerErr(err, "balance query")
	}

	views, err := s.ListTransactions(ctx, institutionID)
	if err != nil {
		return InstitutionSummary{}, err
	}

	var summary InstitutionSummary
	summary.Institution.ID = inst.ID
	summary.Institution.Name = inst.Name
	summary.Institution.Location = inst.Location
	summary.Institution.RemoteID = inst.RemoteID
	summary.Balance = balance

	roster := s.store.AssociateIDs(institutionID)
	s.store.View(func(state *localstore.State) {
		for _, id := range roster {
			if a, ok := state.Associates[id]; ok {
				summary.Associates = append(summary.Associates, AssociateSummary{
					ID:       a.ID,
					Username: a.Username,
					Address:  a.WalletAddress,
				})
			}
		}
	})

	approved := 0
	totalSpent := decimal.Zero
	for _, v := range views {
		summary.Metrics.TotalTransactions++
		switch v.Status {
		case models.StatusPending:
			summary.Metrics.PendingTransactions++
		case models.StatusApproved:
			approved++
			totalSpent = totalSpent.Add(v.Amount)
		}
	}
	summary.Metrics.TotalSpent = totalSpent
	if approved > 0 {
		summary.Metrics.AvgTransaction = totalSpent.DivRound(decimal.NewFromInt(int64(approved)), 0)
	} else {
		summary.Metrics.AvgTransaction = decimal.Zero
	}
	return summary, nil
}
