// Package models holds the request payloads accepted by the budget service.
// Each handler decodes into one of these before anything reaches the
// workflow components.
package models

import (
	"github.com/shopspring/decimal"

	core "github.com/openaudit/budgetledger/backend/pkg/models"
)

type RegisterInstitutionRequest struct {
	Name            string `json:"name"`
	Location        string `json:"location"`
	AuditorPassword string `json:"auditorPassword"`
}

type DepositRequest struct {
	AuditorPassword string          `json:"auditorPassword"`
	AmountEther     decimal.Decimal `json:"amountEther"`
}

type LoginAuditorRequest struct {
	InstitutionID string `json:"institutionId"`
	Password      string `json:"password"`
}

type LoginAssociateRequest struct {
	InstitutionID string `json:"institutionId"`
	AssociateID   string `json:"associateId"`
	Password      string `json:"password"`
}

type CreateAssociateRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	AuditorPassword string `json:"auditorPassword"`
}

type CreateTransactionRequest struct {
	Receiver    string          `json:"receiver"`
	AmountEther decimal.Decimal `json:"amountEther"`
	Purpose     string          `json:"purpose"`
	Comment     string          `json:"comment"`
	Deadline    string          `json:"deadline"`
	Priority    core.Priority   `json:"priority"`
}

type ReviewRequest struct {
	Decision       string `json:"decision"`
	AuditorComment string `json:"auditorComment"`
}

type ThemeRequest struct {
	Theme string `json:"theme"`
}
