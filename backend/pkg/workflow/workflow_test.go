package workflow_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/ledger/ledgertest"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
	"github.com/openaudit/budgetledger/backend/pkg/workflow"
)

type fixture struct {
	svc   *workflow.Service
	fake  *ledgertest.Fake
	store *localstore.Store
	auth  *auth.Service
}

func requireKind(t *testing.T, err error, kind string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, string(apperr.KindOf(err)), "error was: %v", err)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := localstore.Open(t.TempDir(), false, zap.NewNop())
	require.NoError(t, err)

	fake := ledgertest.New()
	authSvc := auth.NewService("test-secret", "test")
	return &fixture{
		svc:   workflow.NewService(store, fake, authSvc, zap.NewNop()),
		fake:  fake,
		store: store,
		auth:  authSvc,
	}
}

// register creates an institution and returns its registration result plus
// auditor claims.
func (f *fixture) register(t *testing.T, name string) (workflow.RegistrationResult, *auth.Claims) {
	t.Helper()
	reg, err := f.svc.RegisterInstitution(context.Background(), name, "Lagos", "auditor-pass")
	require.NoError(t, err)

	claims := &auth.Claims{
		SubjectID:     reg.AuditorID,
		Role:          models.RoleAuditor,
		InstitutionID: reg.InstitutionID,
	}
	return reg, claims
}

func (f *fixture) associateClaims(t *testing.T, auditorClaims *auth.Claims) *auth.Claims {
	t.Helper()
	res, err := f.svc.CreateAssociate(auditorClaims, "bob", "bob-password", "auditor-pass")
	require.NoError(t, err)
	return &auth.Claims{
		SubjectID:     res.AssociateID,
		Role:          models.RoleAssociate,
		InstitutionID: auditorClaims.InstitutionID,
	}
}

func ether(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TestSpendingApprovalFlow walks one request through its whole life:
// registration, funding, admission, review, terminal state.
func TestSpendingApprovalFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, auditor := f.register(t, "Acme")

	balance, err := f.fake.GetBalance(ctx, reg.RemoteID)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	_, err = f.svc.Deposit(ctx, auditor, reg.InstitutionID, "auditor-pass", ether("5"))
	require.NoError(t, err)

	bob := f.associateClaims(t, auditor)
	created, err := f.svc.CreateTransaction(ctx, bob, workflow.CreateTransactionRequest{
		Receiver:    "0xR",
		AmountEther: ether("3"),
		Purpose:     "Supplies",
	})
	require.NoError(t, err)

	views, err := f.svc.ListTransactions(ctx, reg.InstitutionID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, models.StatusPending, views[0].Status)

	_, err = f.svc.Review(ctx, auditor, created.TxID, "Approved", "approved for Q4")
	require.NoError(t, err)

	views, err = f.svc.ListTransactions(ctx, reg.InstitutionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, views[0].Status)
	require.Equal(t, "approved for Q4", views[0].AuditorComment)

	_, err = f.svc.Review(ctx, auditor, created.TxID, "Declined", "too late")
	requireKind(t, err, "unprocessable")
}

func TestRegisterInstitutionDuplicateNameCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	f.register(t, "Acme")

	_, err := f.svc.RegisterInstitution(context.Background(), "acme", "Abuja", "password1")
	require.Error(t, err)
	requireKind(t, err, "conflict")
}

func TestRegisterInstitutionValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterInstitution(context.Background(), "A", "Lagos", "password1")
	requireKind(t, err, "invalid_argument")

	_, err = f.svc.RegisterInstitution(context.Background(), "Acme", "Lagos", "short")
	requireKind(t, err, "invalid_argument")

	// Nothing reached the ledger.
	require.Zero(t, f.fake.CallCount("SubmitRegistration"))
}

func TestDepositRequiresStepUpPassword(t *testing.T) {
	f := newFixture(t)
	reg, claims := f.register(t, "Acme")

	_, err := f.svc.Deposit(context.Background(), claims, reg.InstitutionID, "wrong-pass", ether("5"))
	requireKind(t, err, "forbidden")
	require.Zero(t, f.fake.CallCount("SubmitDeposit"))

	_, err = f.svc.Deposit(context.Background(), claims, reg.InstitutionID, "auditor-pass", ether("5"))
	require.NoError(t, err)
}

func TestThemeConfig(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, "default", f.svc.GetTheme())
	require.NoError(t, f.svc.SetTheme("dark"))
	require.Equal(t, "dark", f.svc.GetTheme())

	err := f.svc.SetTheme("neon")
	requireKind(t, err, "invalid_argument")
	require.Equal(t, "dark", f.svc.GetTheme())
}
