package ports

import "github.com/bft-labs/sigcap/pkg/log"

// Logger is the structured logging port used by the core.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for core packages.
var (
	String   = log.String
	Int      = log.Int
	Uint64   = log.Uint64
	Bool     = log.Bool
	Duration = log.Duration
	Err      = log.Err
	Any      = log.Any
)

// Discard drops every log entry.
var Discard Logger = log.Discard
