// Package workflow implements the admission-and-review core: institution
// registration, the admission check gating transaction creation, the review
// state machine, and the read-side reconciliation of local metadata with
// ledger facts.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/ledger"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// Service wires the local store, the remote ledger and the identity
// collaborator into the spending-request workflow.
type Service struct {
	store  *localstore.Store
	ledger ledger.Client
	auth   *auth.Service
	log    *zap.Logger
}

func NewService(store *localstore.Store, lc ledger.Client, authSvc *auth.Service, log *zap.Logger) *Service {
	return &Service{store: store, ledger: lc, auth: authSvc, log: log}
}

// RegistrationResult is returned after a successful institution registration.
type RegistrationResult struct {
	InstitutionID  string `json:"institution_id"`
	AuditorID      string `json:"auditor_id"`
	AuditorAddress string `json:"auditor_address"`
	RemoteID       string `json:"remote_id"`
}

// RegisterInstitution creates the institution and its auditor atomically:
// the ledger registration runs first, and only a finalized remote id is
// persisted locally.
func (s *Service) RegisterInstitution(ctx context.Context, name, location, auditorPassword string) (RegistrationResult, error) {
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	if len(name) < 2 {
		return RegistrationResult{}, apperr.New(apperr.InvalidArgument, "institution name must be at least 2 characters")
	}
	if len(location) < 2 {
		return RegistrationResult{}, apperr.New(apperr.InvalidArgument, "location must be at least 2 characters")
	}
	if len(auditorPassword) < 6 {
		return RegistrationResult{}, apperr.New(apperr.InvalidArgument, "auditor password must be at least 6 characters")
	}

	if _, exists := s.store.InstitutionByName(name); exists {
		return RegistrationResult{}, apperr.Newf(apperr.Conflict, "institution name %q already exists", name)
	}

	address, err := auth.NewWalletAddress()
	if err != nil {
		return RegistrationResult{}, err
	}
	secret, err := auth.NewCredentialSecret()
	if err != nil {
		return RegistrationResult{}, err
	}
	passwordHash, err := s.auth.HashPassword(auditorPassword)
	if err != nil {
		return RegistrationResult{}, err
	}

	receipt, err := s.ledger.SubmitRegistration(ctx, name, location, address)
	if err != nil {
		return RegistrationResult{}, classifyLedgerErr(err, "institution registration")
	}

	var result RegistrationResult
	err = s.store.Update(func(state *localstore.State) error {
		// Re-check under the write lock: a concurrent registration may
		// have taken the name while the ledger call was in flight.
		for _, inst := range state.Institutions {
			if strings.EqualFold(inst.Name, name) {
				return apperr.Newf(apperr.Conflict, "institution name %q already exists", name)
			}
		}

		now := time.Now().UTC()
		instID := localstore.NewInstitutionID(state)
		auditorID := localstore.NewAuditorID(state)

		state.Institutions[instID] = models.Institution{
			ID:        instID,
			Name:      name,
			Location:  location,
			AuditorID: auditorID,
			RemoteID:  receipt.AssignedID,
			CreatedAt: now,
		}
		state.Auditors[auditorID] = models.Auditor{
			ID:               auditorID,
			InstitutionID:    instID,
			WalletAddress:    address,
			CredentialSecret: secret,
			PasswordHash:     passwordHash,
			CreatedAt:        now,
		}

		result = RegistrationResult{
			InstitutionID:  instID,
			AuditorID:      auditorID,
			AuditorAddress: address,
			RemoteID:       receipt.AssignedID,
		}
		return nil
	})
	if err != nil {
		return RegistrationResult{}, err
	}

	s.log.Info("institution registered",
		zap.String("institution_id", result.InstitutionID),
		zap.String("remote_id", result.RemoteID))
	return result, nil
}

// Deposit submits funds to the institution's ledger account. The caller must
// be the institution's auditor and re-confirm their password (step-up).
func (s *Service) Deposit(ctx context.Context, claims *auth.Claims, institutionID, password string, amountEther decimal.Decimal) (ledger.Receipt, error) {
	wei, ok := models.EtherToWei(amountEther)
	if !ok {
		return ledger.Receipt{}, apperr.New(apperr.InvalidArgument, "amount must be a positive whole number of wei")
	}

	inst, auditor, err := s.institutionWithAuditor(institutionID)
	if err != nil {
		return ledger.Receipt{}, err
	}
	if !s.auth.ComparePassword(password, auditor.PasswordHash) {
		return ledger.Receipt{}, apperr.New(apperr.Forbidden, "auditor password confirmation failed")
	}

	lock := s.store.InstitutionLock(institutionID)
	lock.Lock()
	defer lock.Unlock()

	receipt, err := s.ledger.SubmitDeposit(ctx, inst.RemoteID, wei)
	if err != nil {
		return ledger.Receipt{}, classifyLedgerErr(err, "deposit")
	}

	s.log.Info("deposit finalized",
		zap.String("institution_id", institutionID),
		zap.String("tx_hash", receipt.TxHash))
	return receipt, nil
}

// GetTheme returns the current theme configuration.
func (s *Service) GetTheme() string {
	var theme string
	s.store.View(func(state *localstore.State) {
		theme = state.Config.Theme
	})
	if theme == "" {
		theme = "default"
	}
	return theme
}

// SetTheme updates the theme configuration. Role enforcement happens at the
// access-policy boundary; this validates the value only.
func (s *Service) SetTheme(theme string) error {
	if !models.ValidTheme(theme) {
		return apperr.New(apperr.InvalidArgument, "theme must be one of: default, dark, light")
	}
	return s.store.Update(func(state *localstore.State) error {
		state.Config.Theme = theme
		state.Config.LastUpdated = time.Now().UTC()
		return nil
	})
}

func (s *Service) institution(institutionID string) (models.Institution, error) {
	var (
		inst models.Institution
		ok   bool
	)
	s.store.View(func(state *localstore.State) {
		inst, ok = state.Institutions[institutionID]
	})
	if !ok {
		return models.Institution{}, apperr.Newf(apperr.NotFound, "institution %s not found", institutionID)
	}
	return inst, nil
}

func (s *Service) institutionWithAuditor(institutionID string) (models.Institution, models.Auditor, error) {
	var (
		inst      models.Institution
		auditor   models.Auditor
		okInst    bool
		okAuditor bool
	)
	s.store.View(func(state *localstore.State) {
		inst, okInst = state.Institutions[institutionID]
		if okInst {
			auditor, okAuditor = state.Auditors[inst.AuditorID]
		}
	})
	if !okInst {
		return models.Institution{}, models.Auditor{}, apperr.Newf(apperr.NotFound, "institution %s not found", institutionID)
	}
	if !okAuditor {
		return models.Institution{}, models.Auditor{}, apperr.Newf(apperr.Internal, "institution %s has no auditor record", institutionID)
	}
	return inst, auditor, nil
}

// classifyLedgerErr maps ledger client errors onto the workflow taxonomy.
func classifyLedgerErr(err error, op string) error {
	switch {
	case errors.Is(err, ledger.ErrTimeout):
		return apperr.Wrap(apperr.Timeout, op+" did not reach finality; re-query before retrying", err)
	case errors.Is(err, ledger.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, op+" target not found on ledger", err)
	case errors.Is(err, ledger.ErrRejected):
		return apperr.Wrap(apperr.Unprocessable, op+" rejected by ledger", err)
	default:
		return apperr.Wrap(apperr.Internal, op+" failed", err)
	}
}
