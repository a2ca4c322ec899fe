package workflow

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

// LoginResult carries a signed token plus the public identity it binds.
type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID            string      `json:"id"`
		InstitutionID string      `json:"institution_id"`
		Role          models.Role `json:"role"`
		Address       string      `json:"address"`
	} `json:"user"`
}

// LoginAuditor authenticates an institution's auditor by password.
func (s *Service) LoginAuditor(institutionID, password string) (LoginResult, error) {
	_, auditor, err := s.institutionWithAuditor(institutionID)
	if err != nil {
		return LoginResult{}, err
	}
	if !s.auth.ComparePassword(password, auditor.PasswordHash) {
		return LoginResult{}, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	return s.issueLogin(auditor.ID, models.RoleAuditor, institutionID, auditor.WalletAddress)
}

// LoginAssociate authenticates an associate by id and password.
func (s *Service) LoginAssociate(institutionID, associateID, password string) (LoginResult, error) {
	var (
		assoc models.Associate
		ok    bool
	)
	s.store.View(func(state *localstore.State) {
		assoc, ok = state.Associates[associateID]
	})
	if !ok || assoc.InstitutionID != institutionID {
		return LoginResult{}, apperr.New(apperr.NotFound, "associate not found")
	}
	if !s.auth.ComparePassword(password, assoc.PasswordHash) {
		return LoginResult{}, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	return s.issueLogin(assoc.ID, models.RoleAssociate, institutionID, assoc.WalletAddress)
}

func (s *Service) issueLogin(subjectID string, role models.Role, institutionID, address string) (LoginResult, error) {
	token, err := s.auth.IssueToken(subjectID, role, institutionID, address)
	if err != nil {
		return LoginResult{}, err
	}
	var result LoginResult
	result.Token = token
	result.User.ID = subjectID
	result.User.InstitutionID = institutionID
	result.User.Role = role
	result.User.Address = address
	return result, nil
}

// CreateAssociateResult reports the new roster entry.
type CreateAssociateResult struct {
	AssociateID string `json:"associate_id"`
	Username    string `json:"username"`
	Address     string `json:"address"`
}

// CreateAssociate adds a spending identity to the caller's institution.
// The bearer token alone is not enough: the auditor's password is
// re-verified as a step-up confirmation before the roster mutates. At most
// two associates may exist per institution.
func (s *Service) CreateAssociate(claims *auth.Claims, username, password, auditorPassword string) (CreateAssociateResult, error) {
	username = strings.TrimSpace(username)
	if len(username) < 2 {
		return CreateAssociateResult{}, apperr.New(apperr.InvalidArgument, "username must be at least 2 characters")
	}
	if len(password) < 6 {
		return CreateAssociateResult{}, apperr.New(apperr.InvalidArgument, "password must be at least 6 characters")
	}

	_, auditor, err := s.institutionWithAuditor(claims.InstitutionID)
	if err != nil {
		return CreateAssociateResult{}, err
	}
	if !s.auth.ComparePassword(auditorPassword, auditor.PasswordHash) {
		return CreateAssociateResult{}, apperr.New(apperr.Forbidden, "auditor password confirmation failed")
	}

	address, err := auth.NewWalletAddress()
	if err != nil {
		return CreateAssociateResult{}, err
	}
	passwordHash, err := s.auth.HashPassword(password)
	if err != nil {
		return CreateAssociateResult{}, err
	}

	var result CreateAssociateResult
	err = s.store.Update(func(state *localstore.State) error {
		count := 0
		for _, a := range state.Associates {
			if a.InstitutionID != claims.InstitutionID {
				continue
			}
			count++
			if strings.EqualFold(a.Username, username) {
				return apperr.Newf(apperr.Conflict, "username %q already exists in this institution", username)
			}
		}
		if count >= models.MaxAssociatesPerInstitution {
			return apperr.Newf(apperr.Unprocessable,
				"institution already has the maximum of %d associates", models.MaxAssociatesPerInstitution)
		}

		id := localstore.NewAssociateID(state)
		state.Associates[id] = models.Associate{
			ID:            id,
			InstitutionID: claims.InstitutionID,
			Username:      username,
			WalletAddress: address,
			PasswordHash:  passwordHash,
			CreatedAt:     time.Now().UTC(),
		}
		result = CreateAssociateResult{AssociateID: id, Username: username, Address: address}
		return nil
	})
	if err != nil {
		return CreateAssociateResult{}, err
	}

	s.log.Info("associate created",
		zap.String("institution_id", claims.InstitutionID),
		zap.String("associate_id", result.AssociateID))
	return result, nil
}
