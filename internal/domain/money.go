package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the decimal precision of the settlement stablecoin.
const TokenDecimals = 6

var unitScale = big.NewInt(1_000_000)

// Amount is a token amount in base units (micro-units for a 6-decimal coin).
// On-chain transfer values are uint256, so the backing integer is a big.Int,
// matching how the chain gateway reports them.
type Amount struct {
	units *big.Int
}

// NewAmount creates an Amount from base units.
func NewAmount(units *big.Int) Amount {
	return Amount{units: new(big.Int).Set(units)}
}

// ParseAmount parses a decimal string like "0.50" into an Amount.
// More than six fractional digits is an error, not a silent truncation.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return Amount{}, fmt.Errorf("negative amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > TokenDecimals {
		return Amount{}, fmt.Errorf("amount %q exceeds %d decimal places", s, TokenDecimals)
	}
	frac += strings.Repeat("0", TokenDecimals-len(frac))

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	f := big.NewInt(0)
	if frac != "" {
		if f, ok = new(big.Int).SetString(frac, 10); !ok {
			return Amount{}, fmt.Errorf("invalid amount %q", s)
		}
	}

	units := new(big.Int).Mul(w, unitScale)
	units.Add(units, f)
	return Amount{units: units}, nil
}

// Units returns a copy of the base-unit integer value.
func (a Amount) Units() *big.Int {
	if a.units == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.units)
}

// IsZero reports whether the amount is unset or zero.
func (a Amount) IsZero() bool {
	return a.units == nil || a.units.Sign() == 0
}

// Equal reports exact base-unit equality.
func (a Amount) Equal(other Amount) bool {
	return a.Units().Cmp(other.Units()) == 0
}

// WithinTolerance reports whether other deviates from a by at most tolBps
// basis points, relative to a. Relative rather than absolute: prices scale
// from cents to whole units and a fixed epsilon would not.
func (a Amount) WithinTolerance(other Amount, tolBps int64) bool {
	expected := a.Units()
	paid := other.Units()

	diff := new(big.Int).Sub(expected, paid)
	diff.Abs(diff)
	// |expected - paid| * 10000 <= expected * tolBps
	lhs := diff.Mul(diff, big.NewInt(10_000))
	rhs := new(big.Int).Mul(expected, big.NewInt(tolBps))
	return lhs.Cmp(rhs) <= 0
}

// String renders the amount as a fixed six-decimal string, e.g. "0.500000".
func (a Amount) String() string {
	units := a.Units()
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(units, unitScale, frac)
	fs := frac.String()
	return whole.String() + "." + strings.Repeat("0", TokenDecimals-len(fs)) + fs
}
