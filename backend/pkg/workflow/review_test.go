package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/ledger"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
	"github.com/openaudit/budgetledger/backend/pkg/workflow"
)

// setupPending registers Acme, deposits 5.0 and creates a 3.0 transaction.
func setupPending(t *testing.T, f *fixture) (string, *auth.Claims) {
	t.Helper()
	reg, aud := f.register(t, "Acme")
	assoc := f.associateClaims(t, aud)

	_, err := f.svc.Deposit(context.Background(), aud, reg.InstitutionID, "auditor-pass", ether("5"))
	require.NoError(t, err)

	result, err := f.svc.CreateTransaction(context.Background(), assoc, workflow.CreateTransactionRequest{
		Receiver:    "0xreceiver",
		AmountEther: ether("3"),
		Purpose:     "Supplies",
	})
	require.NoError(t, err)
	return result.TxID, aud
}

func TestReviewApprovesPendingTransaction(t *testing.T) {
	f := newFixture(t)
	txID, auditor := setupPending(t, f)

	result, err := f.svc.Review(context.Background(), auditor, txID, "Approved", "looks good")
	require.NoError(t, err)
	require.Equal(t, "Approved", result.Decision)
	require.NotEmpty(t, result.TxHash)

	remote, err := f.fake.GetTransaction(context.Background(), txID)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, remote.Status)
	require.Equal(t, "looks good", remote.AuditorComment)

	// Local cache follows the confirmed remote outcome.
	f.store.View(func(state *localstore.State) {
		local := state.Transactions[txID]
		require.Equal(t, models.StatusApproved, local.CachedStatus)
		require.Equal(t, result.TxHash, local.ReviewReceipt)
	})
}

func TestReviewTerminalStatusIsUnprocessable(t *testing.T) {
	for _, terminal := range []string{"Approved", "Declined"} {
		t.Run(terminal, func(t *testing.T) {
			f := newFixture(t)
			txID, auditor := setupPending(t, f)

			_, err := f.svc.Review(context.Background(), auditor, txID, terminal, "")
			require.NoError(t, err)

			submits := f.fake.CallCount("SubmitReview")

			_, err = f.svc.Review(context.Background(), auditor, txID, "Approved", "again")
			requireKind(t, err, "unprocessable")

			// No further submit, no local mutation.
			require.Equal(t, submits, f.fake.CallCount("SubmitReview"))
			f.store.View(func(state *localstore.State) {
				require.NotEqual(t, "again", state.Transactions[txID].CachedAuditorComment)
			})
		})
	}
}

func TestReviewReentrantFromReviewState(t *testing.T) {
	f := newFixture(t)
	txID, auditor := setupPending(t, f)

	_, err := f.svc.Review(context.Background(), auditor, txID, "Review", "need receipts")
	require.NoError(t, err)

	// Review -> Declined is legal.
	_, err = f.svc.Review(context.Background(), auditor, txID, "Declined", "no receipts")
	require.NoError(t, err)

	remote, err := f.fake.GetTransaction(context.Background(), txID)
	require.NoError(t, err)
	require.Equal(t, models.StatusDeclined, remote.Status)
}

func TestReviewInvalidDecisionBeforeAnyRemoteCall(t *testing.T) {
	f := newFixture(t)
	txID, auditor := setupPending(t, f)

	lookups := f.fake.CallCount("GetTransaction")

	_, err := f.svc.Review(context.Background(), auditor, txID, "Maybe", "")
	requireKind(t, err, "invalid_argument")

	require.Equal(t, lookups, f.fake.CallCount("GetTransaction"))
	require.Zero(t, f.fake.CallCount("SubmitReview"))
}

func TestReviewSubmitFailureLeavesCacheUntouched(t *testing.T) {
	for name, injected := range map[string]error{
		"timeout":  ledger.ErrTimeout,
		"rejected": ledger.ErrRejected,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			txID, auditor := setupPending(t, f)

			f.fake.ErrOn["SubmitReview"] = injected

			_, err := f.svc.Review(context.Background(), auditor, txID, "Approved", "late")
			require.Error(t, err)

			f.store.View(func(state *localstore.State) {
				local := state.Transactions[txID]
				require.Equal(t, models.StatusPending, local.CachedStatus)
				require.Empty(t, local.ReviewReceipt)
			})
		})
	}
}

func TestReviewTimeoutSurfacesTimeoutKind(t *testing.T) {
	f := newFixture(t)
	txID, auditor := setupPending(t, f)

	f.fake.ErrOn["SubmitReview"] = ledger.ErrTimeout

	_, err := f.svc.Review(context.Background(), auditor, txID, "Approved", "")
	requireKind(t, err, "timeout")
}

func TestReviewForeignInstitutionForbidden(t *testing.T) {
	f := newFixture(t)
	txID, _ := setupPending(t, f)

	_, other := f.register(t, "Globex")

	_, err := f.svc.Review(context.Background(), other, txID, "Approved", "")
	requireKind(t, err, "forbidden")
	require.Zero(t, f.fake.CallCount("SubmitReview"))
}

func TestReviewUnknownTransactionNotFound(t *testing.T) {
	f := newFixture(t)
	_, auditor := f.register(t, "Acme")

	_, err := f.svc.Review(context.Background(), auditor, "999", "Approved", "")
	requireKind(t, err, "not_found")
}

func TestReviewWorksWithoutLocalRecord(t *testing.T) {
	f := newFixture(t)
	txID, auditor := setupPending(t, f)

	// Drop the local record: the transaction still exists remotely.
	require.NoError(t, f.store.Update(func(state *localstore.State) error {
		delete(state.Transactions, txID)
		return nil
	}))

	_, err := f.svc.Review(context.Background(), auditor, txID, "Approved", "ok")
	require.NoError(t, err)

	f.store.View(func(state *localstore.State) {
		local, ok := state.Transactions[txID]
		require.True(t, ok)
		require.Equal(t, models.StatusApproved, local.CachedStatus)
	})
}
