// Package domain contains the core value types and entities for sigcap.
//
// This package is the innermost layer of the Clean Architecture. It has no
// dependencies on infrastructure concerns (backends, logging, configuration)
// and contains only pure value semantics.
//
// # Value Types
//
//   - [Fraction]: An exact non-negative rational (sample rates, time bases)
//   - [Variant]: A tagged configuration value (bool, uint64, float64)
//   - [Handle]: An opaque typed reference to a backend resource
//   - [ConfigKey]: A device configuration key and the variant kind it carries
//   - [Packet]: One unit of captured data delivered during a session
//
// # Design Principles
//
// Domain values are:
//   - Immutable after construction
//   - Comparable, so they can be used as map keys
//   - Validated at construction; an invalid value never escapes a constructor
package domain
