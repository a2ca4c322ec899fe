// Package ledgertest provides an in-memory ledger.Client for tests: it
// mimics the budget-ledger chaincode's observable behavior and lets tests
// inject per-operation failures.
package ledgertest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openaudit/budgetledger/backend/pkg/ledger"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// Fake is an in-memory ledger. Zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	balances map[string]decimal.Decimal
	txs      map[string]ledger.Transaction
	txOrder  map[string][]string // remoteID -> tx ids in creation order

	nextInst int
	nextTx   int

	// ErrOn injects an error for the named operation, e.g.
	// "SubmitReview": ledger.ErrTimeout. Checked before any state change.
	ErrOn map[string]error

	// Calls records operation names in invocation order.
	Calls []string
}

func New() *Fake {
	return &Fake{
		balances: map[string]decimal.Decimal{},
		txs:      map[string]ledger.Transaction{},
		txOrder:  map[string][]string{},
		ErrOn:    map[string]error{},
	}
}

func (f *Fake) fail(op string) error {
	f.Calls = append(f.Calls, op)
	if err, ok := f.ErrOn[op]; ok && err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CallCount returns how many times op was invoked.
func (f *Fake) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *Fake) SubmitRegistration(_ context.Context, name, location, auditorAddress string) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SubmitRegistration"); err != nil {
		return ledger.Receipt{}, err
	}
	f.nextInst++
	id := strconv.Itoa(f.nextInst)
	f.balances[id] = decimal.Zero
	return ledger.Receipt{TxHash: "regtx-" + id, AssignedID: id}, nil
}

func (f *Fake) SubmitDeposit(_ context.Context, remoteID string, amount decimal.Decimal) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SubmitDeposit"); err != nil {
		return ledger.Receipt{}, err
	}
	bal, ok := f.balances[remoteID]
	if !ok {
		return ledger.Receipt{}, fmt.Errorf("SubmitDeposit: %w", ledger.ErrRejected)
	}
	f.balances[remoteID] = bal.Add(amount)
	return ledger.Receipt{TxHash: "deptx-" + remoteID}, nil
}

func (f *Fake) SubmitTransaction(_ context.Context, remoteID, receiver string, amount decimal.Decimal, purpose, comment string) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SubmitTransaction"); err != nil {
		return ledger.Receipt{}, err
	}
	if _, ok := f.balances[remoteID]; !ok {
		return ledger.Receipt{}, fmt.Errorf("SubmitTransaction: %w", ledger.ErrRejected)
	}
	if amount.GreaterThan(f.balances[remoteID]) {
		return ledger.Receipt{}, fmt.Errorf("SubmitTransaction: insufficient balance: %w", ledger.ErrRejected)
	}
	f.nextTx++
	id := strconv.Itoa(f.nextTx)
	f.txs[id] = ledger.Transaction{
		ID:                id,
		InstitutionRemote: remoteID,
		Creator:           "creator-" + id,
		Receiver:          receiver,
		Amount:            amount,
		Purpose:           purpose,
		Comment:           comment,
		Status:            models.StatusPending,
		CreatedAt:         time.Now().Unix(),
	}
	f.txOrder[remoteID] = append(f.txOrder[remoteID], id)
	return ledger.Receipt{TxHash: "txhash-" + id, AssignedID: id}, nil
}

func (f *Fake) SubmitReview(_ context.Context, txID string, status models.TxStatus, auditorComment string) (ledger.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("SubmitReview"); err != nil {
		return ledger.Receipt{}, err
	}
	tx, ok := f.txs[txID]
	if !ok {
		return ledger.Receipt{}, fmt.Errorf("SubmitReview: %w", ledger.ErrRejected)
	}
	if tx.Status != models.StatusPending && tx.Status != models.StatusReview {
		return ledger.Receipt{}, fmt.Errorf("SubmitReview: not editable: %w", ledger.ErrRejected)
	}
	if status == models.StatusApproved {
		bal := f.balances[tx.InstitutionRemote]
		f.balances[tx.InstitutionRemote] = bal.Sub(tx.Amount)
	}
	tx.Status = status
	tx.AuditorComment = auditorComment
	f.txs[txID] = tx
	return ledger.Receipt{TxHash: "revtx-" + txID}, nil
}

func (f *Fake) GetBalance(_ context.Context, remoteID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetBalance"); err != nil {
		return decimal.Zero, err
	}
	bal, ok := f.balances[remoteID]
	if !ok {
		return decimal.Zero, fmt.Errorf("GetBalance: %w", ledger.ErrNotFound)
	}
	return bal, nil
}

func (f *Fake) ListTransactionIDs(_ context.Context, remoteID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListTransactionIDs"); err != nil {
		return nil, err
	}
	ids := f.txOrder[remoteID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (f *Fake) GetTransaction(_ context.Context, txID string) (ledger.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetTransaction"); err != nil {
		return ledger.Transaction{}, err
	}
	tx, ok := f.txs[txID]
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("GetTransaction: %w", ledger.ErrNotFound)
	}
	return tx, nil
}

// SetBalance overrides an institution's balance directly.
func (f *Fake) SetBalance(remoteID string, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[remoteID] = amount
}

// SetStatus overrides a transaction's status directly.
func (f *Fake) SetStatus(txID string, status models.TxStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := f.txs[txID]
	tx.Status = status
	f.txs[txID] = tx
}

var _ ledger.Client = (*Fake)(nil)
