// Package models holds the entities shared between the local store, the
// workflow components and the HTTP surface.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus mirrors the status enum the remote ledger stores for a transaction.
type TxStatus int

const (
	StatusPending TxStatus = iota
	StatusApproved
	StatusDeclined
	StatusReview
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusDeclined:
		return "Declined"
	case StatusReview:
		return "Review"
	default:
		return "Unknown"
	}
}

// ParseDecision maps an auditor decision name to its ledger status value.
// Only the three reviewable outcomes are legal decisions; Pending is not.
func ParseDecision(decision string) (TxStatus, bool) {
	switch decision {
	case "Approved":
		return StatusApproved, true
	case "Declined":
		return StatusDeclined, true
	case "Review":
		return StatusReview, true
	default:
		return 0, false
	}
}

// Priority is locally-owned transaction metadata, never sent to the ledger.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the four known levels.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Role is the subject role bound into an access token.
type Role string

const (
	RoleAuditor   Role = "auditor"
	RoleAssociate Role = "associate"
)

// Institution is created once at registration. RemoteID is the ledger's
// opaque identifier and is immutable once assigned.
type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	AuditorID string    `json:"auditor_id"`
	RemoteID  string    `json:"remote_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Auditor is the single reviewing identity of an institution, created
// atomically with it. CredentialSecret never leaves the store.
type Auditor struct {
	ID               string    `json:"id"`
	InstitutionID    string    `json:"institution_id"`
	WalletAddress    string    `json:"wallet_address"`
	CredentialSecret string    `json:"credential_secret"`
	PasswordHash     string    `json:"password_hash"`
	CreatedAt        time.Time `json:"created_at"`
}

// Associate is a spending identity. At most two exist per institution.
type Associate struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"wallet_address"`
	PasswordHash  string    `json:"password_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaxAssociatesPerInstitution is enforced at creation time and re-checked
// during startup validation.
const MaxAssociatesPerInstitution = 2

// LocalTransaction is the locally-owned slice of a transaction: fields the
// remote ledger never sees, plus a cache of the ledger's review outcome.
// The cached Status/AuditorComment are never authoritative; reconciliation
// always prefers the remote value.
type LocalTransaction struct {
	ID                   string    `json:"id"`
	InstitutionID        string    `json:"institution_id"`
	CreatorID            string    `json:"creator_id"`
	Deadline             string    `json:"deadline,omitempty"`
	Priority             Priority  `json:"priority,omitempty"`
	SubmitReceipt        string    `json:"submit_receipt,omitempty"`
	ReviewReceipt        string    `json:"review_receipt,omitempty"`
	CachedStatus         TxStatus  `json:"cached_status"`
	CachedAuditorComment string    `json:"cached_auditor_comment,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	ReviewedAt           time.Time `json:"reviewed_at,omitempty"`
}

// Config is the process-wide singleton; mutation is auditor-only.
type Config struct {
	Theme       string    `json:"theme"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// ValidTheme reports whether t is an accepted theme name.
func ValidTheme(t string) bool {
	switch t {
	case "default", "dark", "light":
		return true
	}
	return false
}

// TransactionView is the reconciled read model: remote-owned fields merged
// with locally-owned metadata when a local record exists.
type TransactionView struct {
	ID                string          `json:"id"`
	InstitutionRemote string          `json:"institution_remote_id"`
	Creator           string          `json:"creator"`
	Receiver          string          `json:"receiver"`
	Amount            decimal.Decimal `json:"amount"`
	Purpose           string          `json:"purpose"`
	Comment           string          `json:"comment"`
	Status            TxStatus        `json:"status"`
	StatusName        string          `json:"status_name"`
	AuditorComment    string          `json:"auditor_comment"`
	CreatedAt         int64           `json:"created_at"`

	// Locally-owned; zero-valued when no local record exists.
	Deadline      string   `json:"deadline,omitempty"`
	Priority      Priority `json:"priority,omitempty"`
	ReviewReceipt string   `json:"review_receipt,omitempty"`
}
