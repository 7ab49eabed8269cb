package ledger

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the ledger currency's minor-unit scale (kobo per naira).
const MinorUnitsPerMajor = 100

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "₦"

// MaxAmount bounds every ledger amount and running total: ten trillion
// naira in kobo.
const MaxAmount Money = 1_000_000_000_000_000

// Money is an amount in the single ledger currency, held as integer minor units.
type Money int64

// FromMajor converts a whole major-unit amount to Money.
func FromMajor(major int64) Money {
	return Money(major * MinorUnitsPerMajor)
}

func (m Money) Int64() int64 { return int64(m) }

// Add returns m+o. ok is false when the sum wraps or leaves
// [-MaxAmount, MaxAmount].
func (m Money) Add(o Money) (sum Money, ok bool) {
	sum = m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, false
	}
	return sum, sum.InRange()
}

// InRange reports whether |m| <= MaxAmount.
func (m Money) InRange() bool { return m <= MaxAmount && m >= -MaxAmount }

func (m Money) Sub(o Money) Money { return m - o }

func (m Money) IsNegative() bool { return m < 0 }

func (m Money) IsZero() bool { return m == 0 }

func (m Money) IsPositive() bool { return m > 0 }

// Decimal returns the amount in minor units as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// ApplyPercentage returns round(m * p / 100), rounding half-up to the minor unit.
func (m Money) ApplyPercentage(p Percentage) Money {
	v := m.Decimal().Mul(p.Decimal()).Div(decimal.NewFromInt(100))
	return Money(RoundHalfUp(v, 0).IntPart())
}

// Sum adds a list of amounts with the same bounds as Add.
func Sum(amounts ...Money) (Money, bool) {
	var total Money
	for _, a := range amounts {
		next, ok := total.Add(a)
		if !ok {
			return 0, false
		}
		total = next
	}
	return total, true
}

// String formats the amount as "₦25,000,000.00".
func (m Money) String() string {
	v := int64(m)
	neg := v < 0
	if neg {
		v = -v
	}
	major := v / MinorUnitsPerMajor
	minor := v % MinorUnitsPerMajor

	s := strconv.FormatInt(major, 10)
	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 6)
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(CurrencySymbol)

	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	b.WriteByte('.')
	if minor < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(minor, 10))
	return b.String()
}

// RoundHalfUp rounds d to the given number of decimal places, ties away from zero.
// Ledger amounts are never negative where this is used, so this is half-up.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}
