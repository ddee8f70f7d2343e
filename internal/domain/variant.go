package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// VariantKind is the tag of a Variant.
type VariantKind uint8

const (
	VariantInvalid VariantKind = iota
	VariantBool
	VariantUint64
	VariantFloat64
)

// String returns a human-readable representation of the kind.
func (k VariantKind) String() string {
	switch k {
	case VariantBool:
		return "bool"
	case VariantUint64:
		return "uint64"
	case VariantFloat64:
		return "float64"
	default:
		return "invalid"
	}
}

// Variant is an immutable tagged configuration value.
// Two variants are equal iff they have the same kind and the same payload.
type Variant struct {
	kind VariantKind
	b    bool
	u    uint64
	f    float64
}

// NewBool returns a boolean variant.
func NewBool(v bool) Variant {
	return Variant{kind: VariantBool, b: v}
}

// NewFloat64 returns a floating point variant.
func NewFloat64(v float64) Variant {
	return Variant{kind: VariantFloat64, f: v}
}

// NewUint64 returns an unsigned integer variant. Negative input is rejected.
func NewUint64(v int64) (Variant, error) {
	if v < 0 {
		return Variant{}, fmt.Errorf("%w: uint64 variant may not be negative (%d)", ErrInvalidArgument, v)
	}
	return Variant{kind: VariantUint64, u: uint64(v)}, nil
}

// Uint64Variant returns an unsigned integer variant from an already unsigned value.
func Uint64Variant(v uint64) Variant {
	return Variant{kind: VariantUint64, u: v}
}

// Kind returns the variant tag.
func (v Variant) Kind() VariantKind { return v.kind }

// IsValid reports whether v was built by a constructor.
func (v Variant) IsValid() bool { return v.kind != VariantInvalid }

// Bool returns the boolean payload; ok is false for other kinds.
func (v Variant) Bool() (value, ok bool) {
	return v.b, v.kind == VariantBool
}

// Uint64 returns the integer payload; ok is false for other kinds.
func (v Variant) Uint64() (uint64, bool) {
	return v.u, v.kind == VariantUint64
}

// Float64 returns the floating point payload; ok is false for other kinds.
func (v Variant) Float64() (float64, bool) {
	return v.f, v.kind == VariantFloat64
}

// Value returns the payload as an interface value, or nil for an invalid variant.
func (v Variant) Value() any {
	switch v.kind {
	case VariantBool:
		return v.b
	case VariantUint64:
		return v.u
	case VariantFloat64:
		return v.f
	default:
		return nil
	}
}

func (v Variant) String() string {
	switch v.kind {
	case VariantBool:
		return strconv.FormatBool(v.b)
	case VariantUint64:
		return strconv.FormatUint(v.u, 10)
	case VariantFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

// ParseVariant converts s to a variant of the given kind.
// Integers accept SI suffixes ("1M", "250k"); booleans follow ParseBool.
func ParseVariant(kind VariantKind, s string) (Variant, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case VariantBool:
		return NewBool(ParseBool(s)), nil
	case VariantUint64:
		if strings.HasPrefix(s, "-") {
			return Variant{}, fmt.Errorf("%w: uint64 variant may not be negative (%s)", ErrInvalidArgument, s)
		}
		u, err := ParseSize(s)
		if err != nil {
			return Variant{}, err
		}
		return Uint64Variant(u), nil
	case VariantFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Variant{}, fmt.Errorf("%w: %q is not a number", ErrInvalidArgument, s)
		}
		return NewFloat64(f), nil
	default:
		return Variant{}, fmt.Errorf("%w: variant kind %s", ErrInvalidArgument, kind)
	}
}
