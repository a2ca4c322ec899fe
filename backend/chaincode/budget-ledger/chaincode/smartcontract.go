package chaincode

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// SmartContract manages institutional budgets: registration, deposits,
// spending requests and auditor reviews. Amounts are integer wei carried as
// decimal strings.
type SmartContract struct {
	contractapi.Contract
}

// submitResult is returned by every mutating function so callers get the
// ledger transaction id and any assigned identifier in one payload.
type submitResult struct {
	TxID       string `json:"tx_id"`
	AssignedID string `json:"assigned_id,omitempty"`
}

func (s *SmartContract) nextID(ctx contractapi.TransactionContextInterface, counterKey string) (string, error) {
	raw, err := ctx.GetStub().GetState(counterKey)
	if err != nil {
		return "", fmt.Errorf("failed to read counter %s: %v", counterKey, err)
	}
	next := int64(1)
	if raw != nil {
		cur, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return "", fmt.Errorf("corrupt counter %s: %v", counterKey, err)
		}
		next = cur + 1
	}
	if err := ctx.GetStub().PutState(counterKey, []byte(strconv.FormatInt(next, 10))); err != nil {
		return "", err
	}
	return strconv.FormatInt(next, 10), nil
}

func parseAmount(amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a base-10 integer", amount)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return v, nil
}

// RegisterInstitution creates an institution account with a zero balance and
// returns its assigned id.
func (s *SmartContract) RegisterInstitution(ctx contractapi.TransactionContextInterface, name, location, auditor string) (*submitResult, error) {
	if name == "" || location == "" || auditor == "" {
		return nil, fmt.Errorf("name, location and auditor are required")
	}

	id, err := s.nextID(ctx, KeyInstCounter)
	if err != nil {
		return nil, err
	}

	inst := Institution{
		ID:       id,
		Name:     name,
		Location: location,
		Auditor:  auditor,
		Balance:  "0",
	}
	raw, _ := json.Marshal(inst)
	if err := ctx.GetStub().PutState(KeyInstitution+id, raw); err != nil {
		return nil, err
	}
	if err := ctx.GetStub().PutState(KeyInstitutionTxs+id, []byte("[]")); err != nil {
		return nil, err
	}

	return &submitResult{TxID: ctx.GetStub().GetTxID(), AssignedID: id}, nil
}

func (s *SmartContract) getInstitution(ctx contractapi.TransactionContextInterface, id string) (*Institution, error) {
	raw, err := ctx.GetStub().GetState(KeyInstitution + id)
	if err != nil {
		return nil, fmt.Errorf("failed to read institution %s: %v", id, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("institution %s does not exist", id)
	}
	var inst Institution
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *SmartContract) putInstitution(ctx contractapi.TransactionContextInterface, inst *Institution) error {
	raw, _ := json.Marshal(inst)
	return ctx.GetStub().PutState(KeyInstitution+inst.ID, raw)
}

// Deposit credits an institution's balance.
func (s *SmartContract) Deposit(ctx contractapi.TransactionContextInterface, institutionID, amount string) (*submitResult, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	inst, err := s.getInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	balance, _ := new(big.Int).SetString(inst.Balance, 10)
	inst.Balance = new(big.Int).Add(balance, value).String()
	if err := s.putInstitution(ctx, inst); err != nil {
		return nil, err
	}

	return &submitResult{TxID: ctx.GetStub().GetTxID()}, nil
}

// CreateTransaction records a spending request. The requested amount must
// not exceed the institution's balance at creation time; funds only move
// when the request is approved.
func (s *SmartContract) CreateTransaction(ctx contractapi.TransactionContextInterface, institutionID, receiver, amount, purpose, comment string) (*submitResult, error) {
	value, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	if receiver == "" {
		return nil, fmt.Errorf("receiver is required")
	}
	inst, err := s.getInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	balance, _ := new(big.Int).SetString(inst.Balance, 10)
	if value.Cmp(balance) > 0 {
		return nil, fmt.Errorf("insufficient institution balance")
	}

	id, err := s.nextID(ctx, KeyTxCounter)
	if err != nil {
		return nil, err
	}

	ts, err := ctx.GetStub().GetTxTimestamp()
	if err != nil {
		return nil, err
	}

	tx := Transaction{
		ID:            id,
		InstitutionID: institutionID,
		Creator:       clientID(ctx),
		Receiver:      receiver,
		Amount:        value.String(),
		Purpose:       purpose,
		Comment:       comment,
		Status:        StatusPending,
		CreatedAt:     ts.GetSeconds(),
	}
	raw, _ := json.Marshal(tx)
	if err := ctx.GetStub().PutState(KeyTransaction+id, raw); err != nil {
		return nil, err
	}

	if err := s.appendTxID(ctx, institutionID, id); err != nil {
		return nil, err
	}

	return &submitResult{TxID: ctx.GetStub().GetTxID(), AssignedID: id}, nil
}

func (s *SmartContract) appendTxID(ctx contractapi.TransactionContextInterface, institutionID, txID string) error {
	raw, err := ctx.GetStub().GetState(KeyInstitutionTxs + institutionID)
	if err != nil {
		return err
	}
	var ids []string
	if raw != nil {
		if err := json.Unmarshal(raw, &ids); err != nil {
			return err
		}
	}
	ids = append(ids, txID)
	updated, _ := json.Marshal(ids)
	return ctx.GetStub().PutState(KeyInstitutionTxs+institutionID, updated)
}

// ReviewTransaction applies an auditor decision. Only Pending and Review
// transactions are editable; approving one moves the funds out of the
// institution's balance.
func (s *SmartContract) ReviewTransaction(ctx contractapi.TransactionContextInterface, txID, status, auditorComment string) (*submitResult, error) {
	target, err := strconv.Atoi(status)
	if err != nil || target < StatusApproved || target > StatusReview {
		return nil, fmt.Errorf("status must be %d, %d or %d", StatusApproved, StatusDeclined, StatusReview)
	}

	raw, err := ctx.GetStub().GetState(KeyTransaction + txID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction %s: %v", txID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("transaction %s does not exist", txID)
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}

	if tx.Status != StatusPending && tx.Status != StatusReview {
		return nil, fmt.Errorf("transaction %s is not editable", txID)
	}

	if target == StatusApproved {
		inst, err := s.getInstitution(ctx, tx.InstitutionID)
		if err != nil {
			return nil, err
		}
		balance, _ := new(big.Int).SetString(inst.Balance, 10)
		amount, _ := new(big.Int).SetString(tx.Amount, 10)
		if amount.Cmp(balance) > 0 {
			return nil, fmt.Errorf("insufficient institution balance")
		}
		inst.Balance = new(big.Int).Sub(balance, amount).String()
		if err := s.putInstitution(ctx, inst); err != nil {
			return nil, err
		}
	}

	tx.Status = target
	tx.AuditorComment = auditorComment
	updated, _ := json.Marshal(tx)
	if err := ctx.GetStub().PutState(KeyTransaction+txID, updated); err != nil {
		return nil, err
	}

	return &submitResult{TxID: ctx.GetStub().GetTxID()}, nil
}

// GetBalance returns an institution's balance in wei.
func (s *SmartContract) GetBalance(ctx contractapi.TransactionContextInterface, institutionID string) (string, error) {
	inst, err := s.getInstitution(ctx, institutionID)
	if err != nil {
		return "", err
	}
	return inst.Balance, nil
}

// GetTxIdsForInstitution returns the ids of an institution's transactions in
// creation order.
func (s *SmartContract) GetTxIdsForInstitution(ctx contractapi.TransactionContextInterface, institutionID string) ([]string, error) {
	raw, err := ctx.GetStub().GetState(KeyInstitutionTxs + institutionID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("institution %s does not exist", institutionID)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetTransaction returns one transaction record.
func (s *SmartContract) GetTransaction(ctx contractapi.TransactionContextInterface, txID string) (*Transaction, error) {
	raw, err := ctx.GetStub().GetState(KeyTransaction + txID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction %s: %v", txID, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("transaction %s does not exist", txID)
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func clientID(ctx contractapi.TransactionContextInterface) string {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "unknown"
	}
	return id
}
