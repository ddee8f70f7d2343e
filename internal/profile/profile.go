// Package profile loads capture profiles from TOML or YAML files and
// applies them to devices and sessions.
//
// A profile in TOML:
//
//	name = "uart"
//	driver = "demo"
//	channels = ["D0", "D1"]
//	trigger = "D0=f"
//
//	[config]
//	samplerate = "1M"
//	limit_samples = 100000
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

// Profile is a reusable capture setup.
type Profile struct {
	Name string `toml:"name" yaml:"name"`
	// Driver restricts the profile to devices of this driver.
	Driver string `toml:"driver" yaml:"driver"`
	// Model restricts the profile to devices whose model contains it.
	Model string `toml:"model" yaml:"model"`
	// Config maps key names to values. Strings are parsed with SI suffixes.
	Config map[string]any `toml:"config" yaml:"config"`
	// Channels lists the enabled channels; empty leaves channels untouched.
	Channels []string `toml:"channels" yaml:"channels"`
	Trigger  string   `toml:"trigger" yaml:"trigger"`
}

// Load reads a profile, choosing the format by file extension.
func Load(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(b, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Parse decodes a profile. format is ".toml", ".yaml" or ".yml".
func Parse(data []byte, format string) (*Profile, error) {
	var p Profile
	switch strings.ToLower(format) {
	case ".toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, &p); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: profile format %q", domain.ErrNotSupported, format)
	}
	if _, err := p.Variants(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Variants converts the config section into typed values.
func (p *Profile) Variants() (map[domain.ConfigKey]domain.Variant, error) {
	out := make(map[domain.ConfigKey]domain.Variant, len(p.Config))
	for name, raw := range p.Config {
		key, err := domain.ParseConfigKey(name)
		if err != nil {
			return nil, err
		}
		v, err := toVariant(key.Kind(), raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[key] = v
	}
	return out, nil
}

func toVariant(kind domain.VariantKind, raw any) (domain.Variant, error) {
	switch v := raw.(type) {
	case string:
		return domain.ParseVariant(kind, v)
	case bool:
		if kind == domain.VariantBool {
			return domain.NewBool(v), nil
		}
	case int:
		return intVariant(kind, int64(v))
	case int64:
		return intVariant(kind, v)
	case uint64:
		if kind == domain.VariantUint64 {
			return domain.Uint64Variant(v), nil
		}
		if kind == domain.VariantFloat64 {
			return domain.NewFloat64(float64(v)), nil
		}
	case float64:
		if kind == domain.VariantFloat64 {
			return domain.NewFloat64(v), nil
		}
	}
	return domain.Variant{}, fmt.Errorf("%w: %v (%T) is not a %s", domain.ErrInvalidArgument, raw, raw, kind)
}

func intVariant(kind domain.VariantKind, n int64) (domain.Variant, error) {
	switch kind {
	case domain.VariantUint64:
		return domain.NewUint64(n)
	case domain.VariantFloat64:
		return domain.NewFloat64(float64(n)), nil
	}
	return domain.Variant{}, fmt.Errorf("%w: %d is not a %s", domain.ErrInvalidArgument, n, kind)
}

// Matches reports whether the profile targets dev.
func (p *Profile) Matches(dev *sigcap.Device) bool {
	if p.Driver != "" && dev.Driver().Name() != p.Driver {
		return false
	}
	if p.Model != "" && !strings.Contains(strings.ToLower(dev.Model()), strings.ToLower(p.Model)) {
		return false
	}
	return true
}

// Apply writes the configuration and channel selection to dev. Keys are
// applied in key order.
func (p *Profile) Apply(dev *sigcap.Device) error {
	if !p.Matches(dev) {
		return fmt.Errorf("%w: profile %s does not match %s", domain.ErrInvalidArgument, p.Name, dev)
	}
	values, err := p.Variants()
	if err != nil {
		return err
	}
	keys := make([]domain.ConfigKey, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if err := dev.SetConfig(k, values[k]); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	return EnableChannels(dev, p.Channels)
}

// EnableChannels enables exactly the named channels of dev. An empty list
// leaves the selection alone; an unknown name yields ErrNotFound before
// anything changes.
func EnableChannels(dev *sigcap.Device, names []string) error {
	if len(names) == 0 {
		return nil
	}
	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := dev.Channel(name); err != nil {
			return err
		}
		enabled[name] = true
	}
	for _, ch := range dev.Channels().Items() {
		if ch.Enabled() == enabled[ch.Name()] {
			continue
		}
		if err := ch.SetEnabled(enabled[ch.Name()]); err != nil {
			return fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
	}
	return nil
}

// ApplySession installs the profile trigger on s. An empty trigger clears
// any installed one.
func (p *Profile) ApplySession(s *sigcap.Session) error {
	if p.Trigger == "" {
		return s.SetTrigger(nil)
	}
	_, err := s.ParseTrigger(p.Trigger)
	return err
}
