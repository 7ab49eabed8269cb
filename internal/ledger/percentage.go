package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	zeroPercent    = decimal.Zero
	hundredPercent = decimal.NewFromInt(100)
)

// Percentage is a rate in the closed range [0, 100].
type Percentage struct {
	d decimal.Decimal
}

// NewPercentage validates and wraps d.
func NewPercentage(d decimal.Decimal) (Percentage, error) {
	if d.LessThan(zeroPercent) || d.GreaterThan(hundredPercent) {
		return Percentage{}, fmt.Errorf("percentage %s outside [0,100]", d.String())
	}
	return Percentage{d: d}, nil
}

// ParsePercentage parses a string such as "2.5".
func ParsePercentage(s string) (Percentage, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percentage{}, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	return NewPercentage(d)
}

// ParsePercentageUnchecked parses without range validation. It is used when
// reading stored rows so out-of-range data surfaces as an integrity error
// instead of a scan failure.
func ParsePercentageUnchecked(s string) (Percentage, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percentage{}, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	return Percentage{d: d}, nil
}

// MustPercentage is for constants and tests.
func MustPercentage(s string) Percentage {
	p, err := ParsePercentage(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Percentage) Decimal() decimal.Decimal { return p.d }

func (p Percentage) String() string { return p.d.String() }

func (p Percentage) Equal(o Percentage) bool { return p.d.Equal(o.d) }

// Valid reports whether p lies in [0,100]. A zero-value Percentage is valid (0%).
func (p Percentage) Valid() bool {
	return !p.d.LessThan(zeroPercent) && !p.d.GreaterThan(hundredPercent)
}

func (p Percentage) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.d.String())
}

func (p *Percentage) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	parsed, err := NewPercentage(d)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Ratio returns part/whole*100 rounded half-up to places decimals. A zero whole yields 0.
func Ratio(part, whole Money, places int32) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return RoundHalfUp(part.Decimal().Mul(hundredPercent).Div(whole.Decimal()), places)
}
