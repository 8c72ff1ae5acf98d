package domain

import "math"

// Balance is an amount in the ledger's smallest unit.
type Balance uint64

// SaturatingAdd returns b+o, clamped at the maximum balance.
func (b Balance) SaturatingAdd(o Balance) Balance {
	if b > math.MaxUint64-o {
		return math.MaxUint64
	}
	return b + o
}

// SaturatingSub returns b-o, clamped at zero.
func (b Balance) SaturatingSub(o Balance) Balance {
	if o > b {
		return 0
	}
	return b - o
}

// Min returns the smaller of b and o.
func (b Balance) Min(o Balance) Balance {
	if o < b {
		return o
	}
	return b
}

// IsZero reports whether b is zero.
func (b Balance) IsZero() bool {
	return b == 0
}

// Forfeited is value slashed from an account's reserve. It is handed to a
// slash sink exactly once; the registry does not track it afterwards.
type Forfeited struct {
	Source AccountID
	Amount Balance
}
