package cliconfig

import (
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bft-labs/sigcap/internal/domain"
)

// sizeValue is a pflag.Value accepting SI sizes such as "1M" or "20kHz".
type sizeValue uint64

func (v *sizeValue) String() string { return strconv.FormatUint(uint64(*v), 10) }
func (v *sizeValue) Type() string   { return "size" }

func (v *sizeValue) Set(s string) error {
	n, err := domain.ParseSize(s)
	if err != nil {
		return err
	}
	*v = sizeValue(n)
	return nil
}

// SizeVar defines a size flag backed by dst.
func SizeVar(fs *pflag.FlagSet, dst *uint64, name, usage string) {
	fs.Var((*sizeValue)(dst), name, usage)
}

// ChangedFlags returns the names of the flags set on the command line.
func ChangedFlags(fs *pflag.FlagSet) map[string]bool {
	changed := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}
