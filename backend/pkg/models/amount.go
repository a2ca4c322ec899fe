package models

import (
	"github.com/shopspring/decimal"
)

// weiPerEther converts between the caller-facing ether denomination and the
// integer minor units the ledger accounts in.
var weiPerEther = decimal.New(1, 18)

// EtherToWei converts an ether-denominated amount to integer wei. Amounts
// that are not positive or do not land on a whole number of wei are invalid.
func EtherToWei(ether decimal.Decimal) (decimal.Decimal, bool) {
	if !ether.IsPositive() {
		return decimal.Zero, false
	}
	wei := ether.Mul(weiPerEther)
	if !wei.IsInteger() {
		return decimal.Zero, false
	}
	return wei, true
}

// WeiToEther converts integer wei back to the ether denomination for display.
func WeiToEther(wei decimal.Decimal) decimal.Decimal {
	return wei.Div(weiPerEther)
}
