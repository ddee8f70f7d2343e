// Package ports defines the interfaces (ports) that connect the session core
// to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// core needs from external systems without specifying how those needs are
// fulfilled.
//
// # Port Interfaces
//
//   - [Backend]: The native acquisition library (drivers, devices, sessions)
//   - [FormatLister]: Optional backend capability listing input/output formats
//   - [ChannelEnabler], [TriggerSetter]: Optional channel and trigger control
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The core (pkg/sigcap) depends only on these interfaces. Adapters
// (internal/adapters) implement them with concrete backends such as the
// simulated demo backend or the USB enumeration backend.
package ports
