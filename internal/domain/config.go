package domain

import (
	"fmt"
	"strings"
)

// ConfigKey identifies a device configuration option.
type ConfigKey uint16

const (
	KeySamplerate ConfigKey = iota + 1
	KeyLimitSamples
	KeyLimitMsec
	KeyCaptureRatio
	KeyContinuous
	KeyRLE
	KeyVoltageThreshold
	KeyPatternAmplitude
	KeyNumLogicChannels
	KeyNumAnalogChannels
)

type keyInfo struct {
	name string
	kind VariantKind
	desc string
}

var keyTable = map[ConfigKey]keyInfo{
	KeySamplerate:        {"samplerate", VariantUint64, "Sample rate in Hz"},
	KeyLimitSamples:      {"limit_samples", VariantUint64, "Number of samples to acquire"},
	KeyLimitMsec:         {"limit_msec", VariantUint64, "Acquisition time limit in ms"},
	KeyCaptureRatio:      {"capture_ratio", VariantUint64, "Pre-trigger capture ratio in percent"},
	KeyContinuous:        {"continuous", VariantBool, "Continuous sampling"},
	KeyRLE:               {"rle", VariantBool, "Run length encoding"},
	KeyVoltageThreshold:  {"voltage_threshold", VariantFloat64, "Logic threshold voltage"},
	KeyPatternAmplitude:  {"pattern_amplitude", VariantFloat64, "Analog pattern amplitude"},
	KeyNumLogicChannels:  {"num_logic_channels", VariantUint64, "Number of logic channels"},
	KeyNumAnalogChannels: {"num_analog_channels", VariantUint64, "Number of analog channels"},
}

// ConfigKeys returns all known keys in declaration order.
func ConfigKeys() []ConfigKey {
	keys := make([]ConfigKey, 0, len(keyTable))
	for k := KeySamplerate; k <= KeyNumAnalogChannels; k++ {
		keys = append(keys, k)
	}
	return keys
}

// ParseConfigKey looks a key up by name ("samplerate", "limit-samples", ...).
func ParseConfigKey(name string) (ConfigKey, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for k, info := range keyTable {
		if info.name == n {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: config key %q", ErrNotFound, name)
}

// Kind returns the variant kind values of this key must carry.
func (k ConfigKey) Kind() VariantKind {
	return keyTable[k].kind
}

// Description returns a short description of the key.
func (k ConfigKey) Description() string {
	return keyTable[k].desc
}

// Valid reports whether k is a known key.
func (k ConfigKey) Valid() bool {
	_, ok := keyTable[k]
	return ok
}

func (k ConfigKey) String() string {
	if info, ok := keyTable[k]; ok {
		return info.name
	}
	return fmt.Sprintf("key(%d)", uint16(k))
}

// Check verifies that v is acceptable for k.
func (k ConfigKey) Check(v Variant) error {
	info, ok := keyTable[k]
	if !ok {
		return fmt.Errorf("%w: config key %d", ErrNotFound, uint16(k))
	}
	if v.Kind() != info.kind {
		return fmt.Errorf("%w: %s expects %s, got %s", ErrInvalidArgument, info.name, info.kind, v.Kind())
	}
	return nil
}
