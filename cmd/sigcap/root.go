package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/sigcap/internal/cliconfig"
	"github.com/bft-labs/sigcap/pkg/log"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

const longHelp = `Enumerate signal acquisition devices and run captures.

The demo backend simulates a logic analyzer and an analog source, so every
command works without hardware. The usb backend lists supported USB
instruments.

Configuration is read from $HOME/.sigcap/config.toml, then SIGCAP_*
environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  sigcap drivers
  sigcap scan --backend usb
  sigcap capture --driver demo --samplerate 1M --samples 10k --trigger "D0=r"
  sigcap capture --profile uart.toml --watch --metrics-addr :9090
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries state shared by the subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	zl      zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "sigcap",
		Short:         "Enumerate signal acquisition devices and run captures",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.sigcap/config.toml)")
	pf.StringVar(&a.cfg.Backend, "backend", a.cfg.Backend, "acquisition backend: demo or usb")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn, error")
	pf.DurationVar(&a.cfg.Interval, "interval", a.cfg.Interval, "demo backend packet interval")
	pf.IntVar(&a.cfg.ChunkSize, "chunk-size", a.cfg.ChunkSize, "demo backend samples per packet")
	pf.DurationVar(&a.cfg.ShutdownTimeout, "shutdown-timeout", a.cfg.ShutdownTimeout, "time allowed for plugins to stop")

	root.AddCommand(
		newDriversCmd(a),
		newScanCmd(a),
		newFormatsCmd(a),
		newCaptureCmd(a),
	)

	return root
}

// loadConfig applies file, environment and flag configuration in that order
// of increasing precedence.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := cliconfig.ChangedFlags(cmd.Flags())

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.zl = cliconfig.Logger(cmd.ErrOrStderr(), a.cfg.LogLevel)
	a.zl.Debug().Interface("config", a.cfg).Msg("configuration")
	return nil
}

func (a *app) logger() log.Logger {
	return log.NewZerologAdapterWithLogger(a.zl)
}

// openContext creates the backend named in the configuration and a Context
// over it. The returned function destroys both.
func (a *app) openContext(opts ...sigcap.Option) (*sigcap.Context, func(), error) {
	logger := a.logger()

	var backend sigcap.Backend
	var shutdown func() error
	switch a.cfg.Backend {
	case cliconfig.BackendUSB:
		usb := sigcap.NewUSBBackend(logger)
		backend, shutdown = usb, usb.Shutdown
	default:
		backend = sigcap.NewDemoBackend(sigcap.DemoBackendConfig{
			Interval:  a.cfg.Interval,
			ChunkSize: a.cfg.ChunkSize,
			Logger:    logger,
		})
	}

	opts = append([]sigcap.Option{
		sigcap.WithLogger(logger),
		sigcap.WithShutdownTimeout(a.cfg.ShutdownTimeout),
	}, opts...)
	sc, err := sigcap.New(backend, opts...)
	if err != nil {
		if shutdown != nil {
			_ = shutdown()
		}
		return nil, nil, err
	}

	closeAll := func() {
		if err := sc.Destroy(); err != nil {
			a.zl.Warn().Err(err).Msg("destroy context")
		}
		if shutdown != nil {
			if err := shutdown(); err != nil {
				a.zl.Warn().Err(err).Msg("shutdown backend")
			}
		}
	}
	return sc, closeAll, nil
}
