package chaincode

// Institution is the on-ledger account holding an institution's balance.
type Institution struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Auditor  string `json:"auditor"`
	Balance  string `json:"balance"` // integer wei, decimal string
}

// Transaction is a spending request recorded on the ledger. Status and
// AuditorComment are the only fields mutable after creation.
type Transaction struct {
	ID             string `json:"id"`
	InstitutionID  string `json:"institution_id"`
	Creator        string `json:"creator"`
	Receiver       string `json:"receiver"`
	Amount         string `json:"amount"` // integer wei, decimal string
	Purpose        string `json:"purpose"`
	Comment        string `json:"comment"`
	Status         int    `json:"status"`
	AuditorComment string `json:"auditor_comment"`
	CreatedAt      int64  `json:"created_at"`
}

// Transaction status values.
const (
	StatusPending  = 0
	StatusApproved = 1
	StatusDeclined = 2
	StatusReview   = 3
)

// State key prefixes and counters.
const (
	KeyInstitution    = "INST_"
	KeyTransaction    = "TX_"
	KeyInstitutionTxs = "INSTTXS_"
	KeyInstCounter    = "COUNTER_INST"
	KeyTxCounter      = "COUNTER_TX"
)
