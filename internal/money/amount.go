// Package money holds the fixed-point amount type used for fees, pools and payouts.
// Amounts are integers in base units (1 unit = 10^-18 of the display currency).
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Decimals is the number of base-unit digits behind the display point.
const Decimals = 18

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrOverflow  = errors.New("amount overflow")
	ErrDivByZero = errors.New("division by zero")
)

// Amount is a non-negative integer quantity of base units.
// The zero value is a valid zero amount.
type Amount struct {
	i sdkmath.Int
}

// Zero returns a zero amount.
func Zero() Amount {
	return Amount{i: sdkmath.ZeroInt()}
}

// FromBase builds an amount from a base-unit count.
func FromBase(units int64) (Amount, error) {
	if units < 0 {
		return Amount{}, ErrNegative
	}
	return Amount{i: sdkmath.NewInt(units)}, nil
}

// MustFromBase is FromBase for constants and tests.
func MustFromBase(units int64) Amount {
	a, err := FromBase(units)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseBase parses an integer string of base units.
func ParseBase(s string) (Amount, error) {
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return Amount{}, fmt.Errorf("invalid base amount %q", s)
	}
	if i.IsNegative() {
		return Amount{}, ErrNegative
	}
	return Amount{i: i}, nil
}

// Parse parses a display-unit decimal such as "0.01" into base units.
// More than Decimals fractional digits is rejected rather than rounded.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, ErrNegative
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return Amount{}, fmt.Errorf("invalid amount %q: more than %d decimals", s, Decimals)
	}
	return Amount{i: sdkmath.NewIntFromBigInt(shifted.BigInt())}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) int() sdkmath.Int {
	if a.i.IsNil() {
		return sdkmath.ZeroInt()
	}
	return a.i
}

// Add returns a+b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, err := a.int().SafeAdd(b.int())
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return Amount{i: sum}, nil
}

// Sub returns a-b; the result may not go negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff, err := a.int().SafeSub(b.int())
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	if diff.IsNegative() {
		return Amount{}, ErrNegative
	}
	return Amount{i: diff}, nil
}

// QuoInt divides by n, truncating. The remainder is returned separately.
func (a Amount) QuoInt(n uint64) (quo Amount, rem Amount, err error) {
	if n == 0 {
		return Amount{}, Amount{}, ErrDivByZero
	}
	d := sdkmath.NewIntFromUint64(n)
	q, err := a.int().SafeQuo(d)
	if err != nil {
		return Amount{}, Amount{}, err
	}
	r, err := a.int().SafeMod(d)
	if err != nil {
		return Amount{}, Amount{}, err
	}
	return Amount{i: q}, Amount{i: r}, nil
}

// MulInt multiplies by n.
func (a Amount) MulInt(n uint64) (Amount, error) {
	p, err := a.int().SafeMul(sdkmath.NewIntFromUint64(n))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrOverflow, err)
	}
	return Amount{i: p}, nil
}

func (a Amount) Equal(b Amount) bool { return a.int().Equal(b.int()) }
func (a Amount) LT(b Amount) bool    { return a.int().LT(b.int()) }
func (a Amount) GT(b Amount) bool    { return a.int().GT(b.int()) }
func (a Amount) IsZero() bool        { return a.int().IsZero() }

// BigInt returns a copy of the underlying integer.
func (a Amount) BigInt() *big.Int {
	return a.int().BigInt()
}

// String renders base units.
func (a Amount) String() string {
	return a.int().String()
}

// Display renders the amount in display units, trailing zeros trimmed.
func (a Amount) Display() string {
	return decimal.NewFromBigInt(a.int().BigInt(), -Decimals).String()
}

// MarshalJSON encodes base units as a JSON string so clients never lose precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a base-unit string.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("amount must be a string of base units: %w", err)
	}
	parsed, err := ParseBase(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the amount as TEXT.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan reads TEXT, BLOB or INTEGER columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero()
		return nil
	case int64:
		parsed, err := FromBase(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		return a.Scan(string(v))
	case string:
		parsed, err := ParseBase(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}
}
