package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openaudit/budgetledger/backend/pkg/ledger"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
	"github.com/openaudit/budgetledger/backend/pkg/workflow"
)

func TestMergePrefersRemoteOwnedFields(t *testing.T) {
	remote := ledger.Transaction{
		ID:                "7",
		InstitutionRemote: "1",
		Creator:           "0xcreator",
		Receiver:          "0xreceiver",
		Amount:            ether("3"),
		Purpose:           "Supplies",
		Status:            models.StatusApproved,
		AuditorComment:    "fine",
		CreatedAt:         1700000000,
	}
	local := &models.LocalTransaction{
		ID:            "7",
		Deadline:      "2026-10-01",
		Priority:      models.PriorityUrgent,
		ReviewReceipt: "0xreviewhash",
		// Stale cache diverging from the remote record: must lose.
		CachedStatus:    models.StatusPending,
		CachedAuditorComment: "stale",
	}

	view := workflow.Merge(remote, local)

	require.Equal(t, models.StatusApproved, view.Status)
	require.Equal(t, "Approved", view.StatusName)
	require.Equal(t, "fine", view.AuditorComment)
	require.Equal(t, "2026-10-01", view.Deadline)
	require.Equal(t, models.PriorityUrgent, view.Priority)
	require.Equal(t, "0xreviewhash", view.ReviewReceipt)
}

func TestMergeWithoutLocalRecordDegradesMetadata(t *testing.T) {
	remote := ledger.Transaction{ID: "7", Status: models.StatusPending, Amount: ether("1")}

	view := workflow.Merge(remote, nil)

	require.Equal(t, "7", view.ID)
	require.Empty(t, view.Deadline)
	require.Empty(t, view.Priority)
	require.Empty(t, view.ReviewReceipt)
}

func TestMergeIsIdempotent(t *testing.T) {
	remote := ledger.Transaction{ID: "7", Status: models.StatusReview, Amount: ether("2")}
	local := &models.LocalTransaction{ID: "7", Priority: models.PriorityLow}

	first := workflow.Merge(remote, local)
	second := workflow.Merge(remote, local)
	require.Equal(t, first, second)
}

func TestListTransactionsRemoteIsGroundTruthForMembership(t *testing.T) {
	f := newFixture(t)
	reg, auditor := f.register(t, "Acme")
	assoc := f.associateClaims(t, auditor)

	_, err := f.svc.Deposit(context.Background(), auditor, reg.InstitutionID, "auditor-pass", ether("10"))
	require.NoError(t, err)

	var txIDs []string
	for _, amount := range []string{"1", "2", "3"} {
		res, err := f.svc.CreateTransaction(context.Background(), assoc, workflow.CreateTransactionRequest{
			Receiver:    "0xreceiver",
			AmountEther: ether(amount),
			Purpose:     "Supplies",
		})
		require.NoError(t, err)
		txIDs = append(txIDs, res.TxID)
	}

	// Remove one local record: it must still appear, metadata degraded.
	require.NoError(t, f.store.Update(func(state *localstore.State) error {
		delete(state.Transactions, txIDs[1])
		return nil
	}))

	views, err := f.svc.ListTransactions(context.Background(), reg.InstitutionID)
	require.NoError(t, err)
	require.Len(t, views, 3)

	// Order follows the ledger's assignment order.
	for i, v := range views {
		require.Equal(t, txIDs[i], v.ID)
	}
	require.Empty(t, views[1].Priority)
	require.Equal(t, models.PriorityMedium, views[0].Priority)
}

func TestListTransactionsSkipsFailingFetches(t *testing.T) {
	f := newFixture(t)
	reg, auditor := f.register(t, "Acme")
	assoc := f.associateClaims(t, auditor)

	_, err := f.svc.Deposit(context.Background(), auditor, reg.InstitutionID, "auditor-pass", ether("10"))
	require.NoError(t, err)

	for _, amount := range []string{"1", "2"} {
		_, err := f.svc.CreateTransaction(context.Background(), assoc, workflow.CreateTransactionRequest{
			Receiver:    "0xreceiver",
			AmountEther: ether(amount),
			Purpose:     "Supplies",
		})
		require.NoError(t, err)
	}

	// Every per-record fetch fails transiently: the read must not fail as
	// a whole, the offending records are omitted from this one response.
	f.fake.ErrOn["GetTransaction"] = ledger.ErrTimeout

	views, err := f.svc.ListTransactions(context.Background(), reg.InstitutionID)
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestSummaryMetrics(t *testing.T) {
	f := newFixture(t)
	reg, auditor := f.register(t, "Acme")
	assoc := f.associateClaims(t, auditor)

	_, err := f.svc.Deposit(context.Background(), auditor, reg.InstitutionID, "auditor-pass", ether("10"))
	require.NoError(t, err)

	approved, err := f.svc.CreateTransaction(context.Background(), assoc, workflow.CreateTransactionRequest{
		Receiver: "0xreceiver", AmountEther: ether("3"), Purpose: "Supplies",
	})
	require.NoError(t, err)
	_, err = f.svc.CreateTransaction(context.Background(), assoc, workflow.CreateTransactionRequest{
		Receiver: "0xreceiver", AmountEther: ether("2"), Purpose: "Travel",
	})
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), auditor, approved.TxID, "Approved", "ok")
	require.NoError(t, err)

	summary, err := f.svc.Summary(context.Background(), reg.InstitutionID)
	require.NoError(t, err)

	require.Equal(t, "Acme", summary.Institution.Name)
	require.Equal(t, 2, summary.Metrics.TotalTransactions)
	require.Equal(t, 1, summary.Metrics.PendingTransactions)

	wei3, _ := models.EtherToWei(ether("3"))
	require.True(t, summary.Metrics.TotalSpent.Equal(wei3), "total spent = %s", summary.Metrics.TotalSpent)

	// 10 deposited minus 3 approved.
	wei7, _ := models.EtherToWei(ether("7"))
	require.True(t, summary.Balance.Equal(wei7), "balance = %s", summary.Balance)

	require.Len(t, summary.Associates, 1)
	require.Equal(t, "bob", summary.Associates[0].Username)
}

func TestListTransactionsScopesLocalMetadataToInstitution(t *testing.T) {
	f := newFixture(t)
	reg, auditor := f.register(t, "Acme")
	assoc := f.associateClaims(t, auditor)

	_, err := f.svc.Deposit(context.Background(), auditor, reg.InstitutionID, "auditor-pass", ether("10"))
	require.NoError(t, err)

	created, err := f.svc.CreateTransaction(context.Background(), assoc, workflow.CreateTransactionRequest{
		Receiver:    "0xreceiver",
		AmountEther: ether("3"),
		Purpose:     "Supplies",
		Priority:    models.PriorityUrgent,
	})
	require.NoError(t, err)

	// Reassign the local record to another institution: its metadata must
	// no longer contribute to Acme's reconciled list.
	require.NoError(t, f.store.Update(func(state *localstore.State) error {
		lt := state.Transactions[created.TxID]
		lt.InstitutionID = "99999999"
		state.Transactions[created.TxID] = lt
		return nil
	}))

	views, err := f.svc.ListTransactions(context.Background(), reg.InstitutionID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, created.TxID, views[0].ID)
	require.Empty(t, views[0].Priority)
}
