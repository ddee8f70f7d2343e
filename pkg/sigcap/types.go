package sigcap

import (
	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/ports"
)

// Value types re-exported from the domain layer.
type (
	Fraction   = domain.Fraction
	Variant    = domain.Variant
	Handle     = domain.Handle
	Kind       = domain.Kind
	ConfigKey  = domain.ConfigKey
	Packet     = domain.Packet
	PacketType = domain.PacketType

	HeaderPacket  = domain.Header
	EndPacket     = domain.End
	TriggerPacket = domain.Trigger
	LogicPacket   = domain.Logic
	AnalogPacket  = domain.Analog
	MetaPacket    = domain.Meta

	BackendError = domain.BackendError
)

// Backend types re-exported from the ports layer.
type (
	Backend          = ports.Backend
	ChannelType      = ports.ChannelType
	DriverDescriptor = ports.DriverDescriptor
	DeviceDescriptor = ports.DeviceDescriptor
	FormatDescriptor = ports.FormatDescriptor
)

// Errors returned by sigcap operations. Match them with errors.Is.
var (
	ErrInvalidArgument = domain.ErrInvalidArgument
	ErrInvalidState    = domain.ErrInvalidState
	ErrBackendFailure  = domain.ErrBackendFailure
	ErrNotFound        = domain.ErrNotFound
	ErrNotSupported    = domain.ErrNotSupported
	ErrShutdownTimeout = domain.ErrShutdownTimeout
)

const (
	KeySamplerate        = domain.KeySamplerate
	KeyLimitSamples      = domain.KeyLimitSamples
	KeyLimitMsec         = domain.KeyLimitMsec
	KeyCaptureRatio      = domain.KeyCaptureRatio
	KeyContinuous        = domain.KeyContinuous
	KeyRLE               = domain.KeyRLE
	KeyVoltageThreshold  = domain.KeyVoltageThreshold
	KeyPatternAmplitude  = domain.KeyPatternAmplitude
	KeyNumLogicChannels  = domain.KeyNumLogicChannels
	KeyNumAnalogChannels = domain.KeyNumAnalogChannels
)

const (
	PacketHeader  = domain.PacketHeader
	PacketEnd     = domain.PacketEnd
	PacketLogic   = domain.PacketLogic
	PacketAnalog  = domain.PacketAnalog
	PacketTrigger = domain.PacketTrigger
	PacketMeta    = domain.PacketMeta
)

const (
	ChannelLogic  = ports.ChannelLogic
	ChannelAnalog = ports.ChannelAnalog
)

// Constructors re-exported from the domain layer.
var (
	NewFraction    = domain.NewFraction
	FractionOf     = domain.FractionOf
	ParseFraction  = domain.ParseFraction
	NewBool        = domain.NewBool
	NewFloat64     = domain.NewFloat64
	NewUint64      = domain.NewUint64
	Uint64Variant  = domain.Uint64Variant
	ParseConfigKey = domain.ParseConfigKey
)
