// Package ledger adapts the workflow onto the remote append-only ledger.
// The ledger is the sole authority for balances and for the remote-owned
// fields of a transaction; every submit blocks until finality or a timeout.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// ErrRejected marks an authoritative failure: the ledger evaluated the
// submission and refused it. Retrying without changing the input is useless.
var ErrRejected = errors.New("rejected by ledger")

// ErrTimeout marks a finality timeout. The submission may still land; the
// caller must re-query before resubmitting.
var ErrTimeout = errors.New("ledger finality timeout")

// ErrNotFound marks a query for an id the ledger does not know.
var ErrNotFound = errors.New("not found on ledger")

// Receipt is returned by every submit operation after finality.
type Receipt struct {
	// TxHash identifies the ledger transaction that carried the submission.
	TxHash string
	// AssignedID is the ledger-assigned identifier, when the operation
	// creates one (registration, transaction creation).
	AssignedID string
}

// Transaction is the remote-owned record, immutable once mined except for
// the review-mutable Status and AuditorComment.
type Transaction struct {
	ID                string
	InstitutionRemote string
	Creator           string
	Receiver          string
	Amount            decimal.Decimal // integer minor units (wei)
	Purpose           string
	Comment           string
	Status            models.TxStatus
	AuditorComment    string
	CreatedAt         int64
}

// Client is the remote ledger collaborator. Submits block until finality or
// deadline; queries are read-only and carry no local freshness guarantee.
type Client interface {
	SubmitRegistration(ctx context.Context, name, location, auditorAddress string) (Receipt, error)
	SubmitDeposit(ctx context.Context, remoteID string, amount decimal.Decimal) (Receipt, error)
	SubmitTransaction(ctx context.Context, remoteID, receiver string, amount decimal.Decimal, purpose, comment string) (Receipt, error)
	SubmitReview(ctx context.Context, txID string, status models.TxStatus, auditorComment string) (Receipt, error)
	GetBalance(ctx context.Context, remoteID string) (decimal.Decimal, error)
	ListTransactionIDs(ctx context.Context, remoteID string) ([]string, error)
	GetTransaction(ctx context.Context, txID string) (Transaction, error)
}
