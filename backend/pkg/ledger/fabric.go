package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/fabric-sdk-go/pkg/common/errors/status"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// FabricConfig carries the connection settings for the budget-ledger channel.
type FabricConfig struct {
	ConnectionProfile string
	ChannelName       string
	ContractName      string
	MSPID             string
	CertPath          string
	KeyPath           string
	WalletDir         string
	// FinalityTimeout bounds each submit; queries retry within it.
	FinalityTimeout time.Duration
}

// FabricClient implements Client over a Fabric gateway connection.
type FabricClient struct {
	gw       *gateway.Gateway
	contract *gateway.Contract
	timeout  time.Duration
	log      *zap.Logger
}

var _ Client = (*FabricClient)(nil)

// NewFabricClient connects to the gateway and binds the budget-ledger contract.
func NewFabricClient(cfg FabricConfig, log *zap.Logger) (*FabricClient, error) {
	wallet, err := gateway.NewFileSystemWallet(cfg.WalletDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if !wallet.Exists("appUser") {
		if err := populateWallet(wallet, cfg.MSPID, cfg.CertPath, cfg.KeyPath); err != nil {
			return nil, fmt.Errorf("failed to populate wallet: %w", err)
		}
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(cfg.ConnectionProfile))),
		gateway.WithIdentity(wallet, "appUser"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %w", err)
	}

	network, err := gw.GetNetwork(cfg.ChannelName)
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to get network: %w", err)
	}

	timeout := cfg.FinalityTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &FabricClient{
		gw:       gw,
		contract: network.GetContract(cfg.ContractName),
		timeout:  timeout,
		log:      log,
	}, nil
}

func (c *FabricClient) Close() {
	c.gw.Close()
}

// submitEnvelope is the JSON result every mutating chaincode function returns.
type submitEnvelope struct {
	TxID       string `json:"tx_id"`
	AssignedID string `json:"assigned_id,omitempty"`
}

// submit runs one attempt bounded by the finality timeout. A timeout is
// retryable only after re-querying: the transaction may still commit.
func (c *FabricClient) submit(ctx context.Context, fn string, args ...string) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		payload []byte
		err     error
	}
	done := make(chan result, 1)
	go func() {
		payload, err := c.contract.SubmitTransaction(fn, args...)
		done <- result{payload, err}
	}()

	select {
	case <-ctx.Done():
		c.log.Warn("ledger submit timed out", zap.String("fn", fn))
		return Receipt{}, fmt.Errorf("%s: %w", fn, ErrTimeout)
	case r := <-done:
		if r.err != nil {
			c.log.Warn("ledger submit rejected", zap.String("fn", fn), zap.Error(r.err))
			return Receipt{}, fmt.Errorf("%s: %w: %v", fn, ErrRejected, r.err)
		}
		var env submitEnvelope
		if err := json.Unmarshal(r.payload, &env); err != nil {
			return Receipt{}, fmt.Errorf("%s: decode receipt: %w", fn, err)
		}
		return Receipt{TxHash: env.TxID, AssignedID: env.AssignedID}, nil
	}
}

// evaluate runs a read-only query, retrying transient transport failures
// with exponential backoff until the context deadline. Deterministic
// chaincode failures are never retried; a missing record surfaces as
// ErrNotFound on the first attempt.
func (c *FabricClient) evaluate(ctx context.Context, fn string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return evaluateWithRetry(ctx, fn, policy, func() ([]byte, error) {
		return c.contract.EvaluateTransaction(fn, args...)
	})
}

func evaluateWithRetry(ctx context.Context, fn string, policy backoff.BackOff, query func() ([]byte, error)) ([]byte, error) {
	var payload []byte
	op := func() error {
		var err error
		payload, err = query()
		switch {
		case err == nil:
			return nil
		case isMissingRecordErr(err):
			return backoff.Permanent(fmt.Errorf("%s: %w", fn, ErrNotFound))
		case isChaincodeErr(err):
			return backoff.Permanent(fmt.Errorf("%s: %w: %v", fn, ErrRejected, err))
		default:
			return err
		}
	}

	err := backoff.Retry(op, policy)
	switch {
	case err == nil:
		return payload, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRejected):
		return nil, err
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%s: %w", fn, ErrTimeout)
	default:
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
}

// isMissingRecordErr matches the contract's lookup failure messages.
func isMissingRecordErr(err error) bool {
	return strings.Contains(err.Error(), "does not exist")
}

// isChaincodeErr reports whether the error was produced by chaincode
// evaluation rather than transport.
func isChaincodeErr(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch s.Group {
	case status.ChaincodeStatus, status.EndorserServerStatus:
		return true
	}
	return false
}

func (c *FabricClient) SubmitRegistration(ctx context.Context, name, location, auditorAddress string) (Receipt, error) {
	return c.submit(ctx, "RegisterInstitution", name, location, auditorAddress)
}

func (c *FabricClient) SubmitDeposit(ctx context.Context, remoteID string, amount decimal.Decimal) (Receipt, error) {
	return c.submit(ctx, "Deposit", remoteID, amount.String())
}

func (c *FabricClient) SubmitTransaction(ctx context.Context, remoteID, receiver string, amount decimal.Decimal, purpose, comment string) (Receipt, error) {
	return c.submit(ctx, "CreateTransaction", remoteID, receiver, amount.String(), purpose, comment)
}

func (c *FabricClient) SubmitReview(ctx context.Context, txID string, status models.TxStatus, auditorComment string) (Receipt, error) {
	return c.submit(ctx, "ReviewTransaction", txID, strconv.Itoa(int(status)), auditorComment)
}

func (c *FabricClient) GetBalance(ctx context.Context, remoteID string) (decimal.Decimal, error) {
	payload, err := c.evaluate(ctx, "GetBalance", remoteID)
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(string(payload))
	if err != nil {
		return decimal.Zero, fmt.Errorf("GetBalance: decode %q: %w", payload, err)
	}
	return bal, nil
}

func (c *FabricClient) ListTransactionIDs(ctx context.Context, remoteID string) ([]string, error) {
	payload, err := c.evaluate(ctx, "GetTxIdsForInstitution", remoteID)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		return nil, fmt.Errorf("GetTxIdsForInstitution: decode: %w", err)
	}
	return ids, nil
}

// remoteTx matches the JSON the chaincode stores per transaction.
type remoteTx struct {
	ID                string `json:"id"`
	InstitutionRemote string `json:"institution_id"`
	Creator           string `json:"creator"`
	Receiver          string `json:"receiver"`
	Amount            string `json:"amount"`
	Purpose           string `json:"purpose"`
	Comment           string `json:"comment"`
	Status            int    `json:"status"`
	AuditorComment    string `json:"auditor_comment"`
	CreatedAt         int64  `json:"created_at"`
}

func (c *FabricClient) GetTransaction(ctx context.Context, txID string) (Transaction, error) {
	payload, err := c.evaluate(ctx, "GetTransaction", txID)
	if err != nil {
		return Transaction{}, err
	}
	if len(payload) == 0 {
		return Transaction{}, fmt.Errorf("GetTransaction %s: %w", txID, ErrNotFound)
	}
	var raw remoteTx
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Transaction{}, fmt.Errorf("GetTransaction: decode: %w", err)
	}
	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("GetTransaction: amount %q: %w", raw.Amount, err)
	}
	return Transaction{
		ID:                raw.ID,
		InstitutionRemote: raw.InstitutionRemote,
		Creator:           raw.Creator,
		Receiver:          raw.Receiver,
		Amount:            amount,
		Purpose:           raw.Purpose,
		Comment:           raw.Comment,
		Status:            models.TxStatus(raw.Status),
		AuditorComment:    raw.AuditorComment,
		CreatedAt:         raw.CreatedAt,
	}, nil
}

func populateWallet(wallet *gateway.Wallet, mspID, certPath, keyPath string) error {
	cert, err := os.ReadFile(filepath.Clean(certPath))
	if err != nil {
		return err
	}

	key, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return err
	}

	identity := gateway.NewX509Identity(mspID, string(cert), string(key))

	return wallet.Put("appUser", identity)
}
