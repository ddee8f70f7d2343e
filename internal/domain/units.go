package domain

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

var siPrefixes = []string{"", "k", "M", "G", "T", "P", "E"}

// FormatSI renders x in its natural SI form, e.g. 3000000 "Hz" → "3 MHz"
// and 31500 "W" → "31.5 kW".
func FormatSI(x uint64, unit string) string {
	i := 0
	divisor := uint64(1)
	for x/divisor >= 1000 && i < len(siPrefixes)-1 {
		divisor *= 1000
		i++
	}
	quot := x / divisor
	frac := ""
	if i > 0 {
		frac = fmt.Sprintf(".%0*d", i*3, x%divisor)
		frac = strings.TrimRight(frac, "0")
		frac = strings.TrimSuffix(frac, ".")
	}
	return fmt.Sprintf("%d%s %s%s", quot, frac, siPrefixes[i], unit)
}

// FormatSampleRate renders a sample rate in Hz.
func FormatSampleRate(hz uint64) string {
	return FormatSI(hz, "Hz")
}

var sizeMultipliers = map[byte]uint64{
	'k': 1e3, 'K': 1e3,
	'm': 1e6, 'M': 1e6,
	'g': 1e9, 'G': 1e9,
	't': 1e12, 'T': 1e12,
	'p': 1e15, 'P': 1e15,
	'e': 1e18, 'E': 1e18,
}

// ParseSize parses a size or rate with an optional SI multiplier and an
// optional "Hz" suffix: "200", "1.5M", "20 kHz".
func ParseSize(s string) (uint64, error) {
	str := strings.TrimSpace(s)
	if len(str) >= 2 && strings.EqualFold(str[len(str)-2:], "hz") {
		str = strings.TrimSpace(str[:len(str)-2])
	}
	if str == "" {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidArgument)
	}

	multiplier := uint64(1)
	if m, ok := sizeMultipliers[str[len(str)-1]]; ok {
		multiplier = m
		str = strings.TrimSpace(str[:len(str)-1])
	}

	f, err := ParseFraction(str)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q", ErrInvalidArgument, s)
	}
	hi, lo := bits.Mul64(f.P(), multiplier)
	if hi != 0 {
		return 0, fmt.Errorf("%w: size %q out of range", ErrInvalidArgument, s)
	}
	return lo / f.Q(), nil
}

var periodUnits = []struct {
	suffix string
	q      uint64
}{
	{"fs", 1e15},
	{"ps", 1e12},
	{"ns", 1e9},
	{"us", 1e6},
	{"ms", 1e3},
	{"s", 1},
}

// ParsePeriod parses a time period with a mandatory unit suffix ("10ns",
// "250 us") into an exact fraction of seconds.
func ParsePeriod(s string) (Fraction, error) {
	str := strings.TrimSpace(s)
	for _, u := range periodUnits {
		if !strings.HasSuffix(str, u.suffix) {
			continue
		}
		num := strings.TrimSpace(strings.TrimSuffix(str, u.suffix))
		p, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			return Fraction{}, fmt.Errorf("%w: period %q", ErrInvalidArgument, s)
		}
		return FractionOf(p, u.q), nil
	}
	return Fraction{}, fmt.Errorf("%w: period %q needs a time unit", ErrInvalidArgument, s)
}

// ParseBool treats an empty string as true, as in "header:samplerate=1M"
// option strings, and accepts true/yes/on/1 case-insensitively.
func ParseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return true
	}
	for _, prefix := range []string{"true", "yes", "on", "1"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
