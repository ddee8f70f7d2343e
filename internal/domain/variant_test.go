package domain

import (
	"errors"
	"testing"
)

func TestNewUint64(t *testing.T) {
	if _, err := NewUint64(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("NewUint64(-1) error = %v, want ErrInvalidArgument", err)
	}

	v, err := NewUint64(5)
	if err != nil {
		t.Fatalf("NewUint64(5) unexpected error: %v", err)
	}
	if got := v.Value(); got != uint64(5) {
		t.Errorf("Value() = %v, want 5", got)
	}
	if u, ok := v.Uint64(); !ok || u != 5 {
		t.Errorf("Uint64() = %d, %v, want 5, true", u, ok)
	}
}

func TestVariant_NoCoercion(t *testing.T) {
	b := NewBool(true)
	if _, ok := b.Uint64(); ok {
		t.Error("bool variant should not convert to uint64")
	}
	if _, ok := b.Float64(); ok {
		t.Error("bool variant should not convert to float64")
	}

	f := NewFloat64(1)
	u := Uint64Variant(1)
	if f == u {
		t.Error("float64(1) and uint64(1) variants must not be equal")
	}
}

func TestVariant_ValueSemantics(t *testing.T) {
	set := map[Variant]int{}
	set[NewBool(true)]++
	set[NewBool(true)]++
	set[Uint64Variant(7)]++
	set[NewFloat64(2.5)]++

	if len(set) != 3 {
		t.Fatalf("len(set) = %d, want 3", len(set))
	}
	if set[NewBool(true)] != 2 {
		t.Errorf("bool key count = %d, want 2", set[NewBool(true)])
	}
	if (Variant{}).IsValid() {
		t.Error("zero Variant should be invalid")
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		kind    VariantKind
		in      string
		want    Variant
		wantErr bool
	}{
		{VariantUint64, "1M", Uint64Variant(1000000), false},
		{VariantUint64, "250", Uint64Variant(250), false},
		{VariantUint64, "-1", Variant{}, true},
		{VariantBool, "yes", NewBool(true), false},
		{VariantBool, "off", NewBool(false), false},
		{VariantFloat64, "3.3", NewFloat64(3.3), false},
		{VariantFloat64, "x", Variant{}, true},
		{VariantInvalid, "1", Variant{}, true},
	}

	for _, tt := range tests {
		got, err := ParseVariant(tt.kind, tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseVariant(%s, %q) error = %v, want ErrInvalidArgument", tt.kind, tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVariant(%s, %q) unexpected error: %v", tt.kind, tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVariant(%s, %q) = %v, want %v", tt.kind, tt.in, got, tt.want)
		}
	}
}

func TestConfigKey_Check(t *testing.T) {
	if err := KeySamplerate.Check(Uint64Variant(1000)); err != nil {
		t.Errorf("Check() unexpected error: %v", err)
	}
	if err := KeySamplerate.Check(NewBool(true)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Check() error = %v, want ErrInvalidArgument", err)
	}
	if err := ConfigKey(999).Check(NewBool(true)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Check() error = %v, want ErrNotFound", err)
	}

	k, err := ParseConfigKey("limit-samples")
	if err != nil || k != KeyLimitSamples {
		t.Errorf("ParseConfigKey() = %v, %v, want limit_samples", k, err)
	}
	if _, err := ParseConfigKey("bogus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ParseConfigKey(bogus) error = %v, want ErrNotFound", err)
	}
	if len(ConfigKeys()) != 10 {
		t.Errorf("len(ConfigKeys()) = %d, want 10", len(ConfigKeys()))
	}
}

func TestBackendError(t *testing.T) {
	cause := errors.New("usb timeout")
	err := NewBackendError("config_set", NewHandle(KindDevice, 3), cause)

	if !errors.Is(err, ErrBackendFailure) {
		t.Error("BackendError should match ErrBackendFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("BackendError should unwrap to its cause")
	}
	if got, want := err.Error(), "sigcap: backend failure: config_set device#3: usb timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if NewBackendError("x", Handle{}, nil) != nil {
		t.Error("NewBackendError(nil) should return nil")
	}
}
