package localstore

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Identifier shapes carried over from the existing data files: 8-digit
// institution ids, AUD-prefixed auditor ids, EMP-prefixed associate ids.

func randomDigits(min, max int64) string {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min))
	if err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return fmt.Sprintf("%d", min+n.Int64())
}

// NewInstitutionID returns an 8-digit id unused in state.
func NewInstitutionID(state *State) string {
	for {
		id := randomDigits(10000000, 100000000)
		if _, ok := state.Institutions[id]; !ok {
			return id
		}
	}
}

// NewAuditorID returns an AUD-prefixed id unused in state.
func NewAuditorID(state *State) string {
	for {
		id := "AUD" + randomDigits(1000, 10000)
		if _, ok := state.Auditors[id]; !ok {
			return id
		}
	}
}

// NewAssociateID returns an EMP-prefixed id unused in state.
func NewAssociateID(state *State) string {
	for {
		id := "EMP" + randomDigits(1000, 10000)
		if _, ok := state.Associates[id]; !ok {
			return id
		}
	}
}
