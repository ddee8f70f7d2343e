package domain

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Fraction is an exact non-negative rational number p/q.
// A zero denominator denotes an undefined value which evaluates to zero.
type Fraction struct {
	p uint64
	q uint64
}

// NewFraction builds a fraction from signed components. The sign is normalized
// into the numerator; a negative result is rejected with ErrInvalidArgument.
func NewFraction(p, q int64) (Fraction, error) {
	if p != 0 && (p < 0) != (q < 0) {
		return Fraction{}, fmt.Errorf("%w: negative fraction %d/%d", ErrInvalidArgument, p, q)
	}
	return Fraction{p: abs64(p), q: abs64(q)}, nil
}

// FractionOf builds a fraction from unsigned components.
func FractionOf(p, q uint64) Fraction {
	return Fraction{p: p, q: q}
}

func abs64(v int64) uint64 {
	if v < 0 {
		return uint64(^v) + 1
	}
	return uint64(v)
}

// P returns the numerator.
func (f Fraction) P() uint64 { return f.p }

// Q returns the denominator.
func (f Fraction) Q() uint64 { return f.q }

// Undefined reports whether the denominator is zero.
func (f Fraction) Undefined() bool { return f.q == 0 }

// Float64 returns p/q, or 0 when q is zero.
func (f Fraction) Float64() float64 {
	if f.q == 0 {
		return 0
	}
	return float64(f.p) / float64(f.q)
}

// Float32 returns p/q, or 0 when q is zero.
func (f Fraction) Float32() float32 {
	if f.q == 0 {
		return 0
	}
	return float32(f.p) / float32(f.q)
}

// Int64 returns the truncated quotient, or 0 when q is zero.
// Quotients above math.MaxInt64 saturate.
func (f Fraction) Int64() int64 {
	if f.q == 0 {
		return 0
	}
	v := f.p / f.q
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Int returns the truncated quotient, or 0 when q is zero.
func (f Fraction) Int() int {
	v := f.Int64()
	if v > math.MaxInt {
		return math.MaxInt
	}
	return int(v)
}

// Compare returns -1, 0 or +1 comparing a and b by cross-multiplication.
// Products are computed at 128 bits so they never overflow.
func Compare(a, b Fraction) int {
	lhsHi, lhsLo := bits.Mul64(a.p, b.q)
	rhsHi, rhsLo := bits.Mul64(b.p, a.q)
	switch {
	case lhsHi < rhsHi:
		return -1
	case lhsHi > rhsHi:
		return 1
	case lhsLo < rhsLo:
		return -1
	case lhsLo > rhsLo:
		return 1
	}
	return 0
}

// Equal reports whether f and g denote the same rational value.
func (f Fraction) Equal(g Fraction) bool { return Compare(f, g) == 0 }

// Less reports whether f is strictly smaller than g.
func (f Fraction) Less(g Fraction) bool { return Compare(f, g) < 0 }

// Reduced returns f divided through by gcd(p, q).
func (f Fraction) Reduced() Fraction {
	g := gcd(f.p, f.q)
	if g <= 1 {
		return f
	}
	return Fraction{p: f.p / g, q: f.q / g}
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (f Fraction) String() string {
	return strconv.FormatUint(f.p, 10) + "/" + strconv.FormatUint(f.q, 10)
}

// ParseFraction converts a decimal string such as "1.5", ".25" or "2e-3" into
// an exact fraction with a power-of-ten denominator. The complete string must
// be a valid number.
func ParseFraction(s string) (Fraction, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return Fraction{}, fmt.Errorf("%w: empty number", ErrInvalidArgument)
	}

	mantissa, exp := str, ""
	if i := strings.IndexAny(str, "eE"); i >= 0 {
		mantissa, exp = str[:i], str[i+1:]
		if exp == "" {
			return Fraction{}, fmt.Errorf("%w: malformed exponent in %q", ErrInvalidArgument, s)
		}
	}

	negative := false
	switch {
	case strings.HasPrefix(mantissa, "-"):
		negative = true
		mantissa = mantissa[1:]
	case strings.HasPrefix(mantissa, "+"):
		mantissa = mantissa[1:]
	}

	intPart, fracPart := mantissa, ""
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		intPart, fracPart = mantissa[:i], mantissa[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return Fraction{}, fmt.Errorf("%w: no digits in %q", ErrInvalidArgument, s)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Fraction{}, fmt.Errorf("%w: malformed number %q", ErrInvalidArgument, s)
	}

	exponent := 0
	if exp != "" {
		e, err := strconv.Atoi(exp)
		if err != nil {
			return Fraction{}, fmt.Errorf("%w: malformed exponent in %q", ErrInvalidArgument, s)
		}
		exponent = e
	}
	exponent -= len(fracPart)

	digits := strings.TrimLeft(intPart+fracPart, "0")
	if digits == "" {
		return Fraction{p: 0, q: 1}, nil
	}
	if negative {
		return Fraction{}, fmt.Errorf("%w: negative fraction %q", ErrInvalidArgument, s)
	}

	p, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Fraction{}, fmt.Errorf("%w: %q out of range", ErrInvalidArgument, s)
	}
	q := uint64(1)
	for ; exponent > 0; exponent-- {
		hi, lo := bits.Mul64(p, 10)
		if hi != 0 {
			return Fraction{}, fmt.Errorf("%w: %q out of range", ErrInvalidArgument, s)
		}
		p = lo
	}
	for ; exponent < 0; exponent++ {
		hi, lo := bits.Mul64(q, 10)
		if hi != 0 {
			return Fraction{}, fmt.Errorf("%w: %q out of range", ErrInvalidArgument, s)
		}
		q = lo
	}
	return Fraction{p: p, q: q}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
