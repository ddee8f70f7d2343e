package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/sigcap/internal/cliconfig"
	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/profile"
	"github.com/bft-labs/sigcap/pkg/sigcap"
	"github.com/bft-labs/sigcap/plugins/metrics"
	"github.com/bft-labs/sigcap/plugins/profilewatcher"
)

func newCaptureCmd(a *app) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Run a capture and print the packets",
		Long: `Open the first device found by --driver, configure it from the profile and
flags, and print every packet until the sample or time limit is reached or
the command is interrupted.

With --watch the command keeps running after the capture ends. Each change
to the profile file is applied to the device and starts a new capture.`,
		Example: `  sigcap capture --samplerate 1M --samples 1k
  sigcap capture --driver demo-analog --duration 200ms
  sigcap capture --trigger "D0=r,D1=1" --channels D0,D1,D2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCapture(cmd, quiet)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.cfg.Driver, "driver", a.cfg.Driver, "driver to capture with")
	cliconfig.SizeVar(f, &a.cfg.Samplerate, "samplerate", "sample rate, e.g. 1M or 200kHz")
	cliconfig.SizeVar(f, &a.cfg.Samples, "samples", "number of samples to capture, e.g. 10k")
	f.DurationVar(&a.cfg.Duration, "duration", a.cfg.Duration, "capture duration")
	f.StringVar(&a.cfg.Channels, "channels", a.cfg.Channels, "comma-separated channels to enable (default: all)")
	f.StringVar(&a.cfg.Trigger, "trigger", a.cfg.Trigger, `trigger expression, e.g. "D0=r,D1=1"`)
	f.StringVar(&a.cfg.Profile, "profile", a.cfg.Profile, "capture profile (.toml, .yaml)")
	f.BoolVar(&a.cfg.Watch, "watch", a.cfg.Watch, "repeat the capture, reloading the profile on change")
	f.StringVar(&a.cfg.MetricsAddr, "metrics-addr", a.cfg.MetricsAddr, "serve Prometheus metrics on this address")
	f.BoolVarP(&quiet, "quiet", "q", false, "print only the summary")
	return cmd
}

func (a *app) runCapture(cmd *cobra.Command, quiet bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var prof *profile.Profile
	if a.cfg.Profile != "" {
		var err error
		if prof, err = profile.Load(a.cfg.Profile); err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		if prof.Driver != "" && !cmd.Flags().Changed("driver") {
			a.cfg.Driver = prof.Driver
		}
	}

	var opts []sigcap.Option
	var mp *metrics.Plugin
	if a.cfg.MetricsAddr != "" {
		mp = metrics.New(metrics.Config{Addr: a.cfg.MetricsAddr})
		opts = append(opts, sigcap.WithPlugin(mp))
	}
	reloaded := make(chan *profile.Profile, 1)
	if a.cfg.Watch {
		wcfg := profilewatcher.DefaultConfig(a.cfg.Profile)
		wcfg.OnReload = func(p *profile.Profile) {
			// Keep only the newest profile.
			for {
				select {
				case reloaded <- p:
					return
				default:
				}
				select {
				case <-reloaded:
				default:
				}
			}
		}
		opts = append(opts, profilewatcher.WithProfileWatcher(wcfg))
	}

	sc, done, err := a.openContext(opts...)
	if err != nil {
		return err
	}
	defer done()
	if mp != nil {
		a.zl.Info().Stringer("addr", mp.Addr()).Msg("serving metrics")
	}

	dev, err := a.openDevice(ctx, sc, prof)
	if err != nil {
		return err
	}
	if err := a.configure(dev); err != nil {
		return err
	}

	s, err := sc.NewSession()
	if err != nil {
		return err
	}
	if err := s.AddDevice(dev); err != nil {
		return err
	}
	if err := a.arm(s, prof); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for run := 1; ; run++ {
		p := newPrinter(out, quiet)
		if err := capture(ctx, s, p); err != nil {
			return err
		}
		p.summary(run)
		if !a.cfg.Watch {
			return nil
		}

		if ok, err := a.awaitProfile(ctx, reloaded, dev, s); !ok || err != nil {
			return err
		}
	}
}

// awaitProfile blocks until a reloaded profile applies cleanly to dev and s.
// It reports false when ctx is done first.
func (a *app) awaitProfile(ctx context.Context, reloaded <-chan *profile.Profile, dev *sigcap.Device, s *sigcap.Session) (bool, error) {
	for {
		var prof *profile.Profile
		select {
		case <-ctx.Done():
			return false, nil
		case prof = <-reloaded:
		}

		a.zl.Info().Str("profile", prof.Name).Msg("profile changed, restarting capture")
		if err := prof.Apply(dev); err != nil {
			a.zl.Warn().Err(err).Msg("apply profile")
			continue
		}
		if err := a.configure(dev); err != nil {
			return false, err
		}
		if err := a.arm(s, prof); err != nil {
			a.zl.Warn().Err(err).Msg("arm trigger")
			continue
		}
		return true, nil
	}
}

// arm installs the profile trigger, then the --trigger override.
func (a *app) arm(s *sigcap.Session, prof *profile.Profile) error {
	if prof != nil {
		if err := prof.ApplySession(s); err != nil {
			return fmt.Errorf("profile trigger: %w", err)
		}
	}
	if a.cfg.Trigger != "" {
		if _, err := s.ParseTrigger(a.cfg.Trigger); err != nil {
			return fmt.Errorf("trigger: %w", err)
		}
	}
	return nil
}

// openDevice opens the first device of the configured driver that the
// profile, if any, matches.
func (a *app) openDevice(ctx context.Context, sc *sigcap.Context, prof *profile.Profile) (*sigcap.Device, error) {
	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	drv, err := sc.Driver(scanCtx, a.cfg.Driver)
	if err != nil {
		return nil, err
	}
	devices, err := drv.Scan(scanCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", drv.Name(), err)
	}

	for _, dev := range devices.Items() {
		if prof != nil && !prof.Matches(dev) {
			continue
		}
		if err := dev.Open(scanCtx); err != nil {
			return nil, fmt.Errorf("open %s: %w", dev, err)
		}
		a.zl.Info().Str("device", dev.String()).Str("connection", dev.Connection()).Msg("device opened")
		if prof != nil {
			if err := prof.Apply(dev); err != nil {
				return nil, fmt.Errorf("apply profile %s: %w", prof.Name, err)
			}
		}
		return dev, nil
	}
	return nil, fmt.Errorf("%w: no device for driver %s", sigcap.ErrNotFound, drv.Name())
}

// configure applies the flag overrides on top of the profile.
func (a *app) configure(dev *sigcap.Device) error {
	set := func(key sigcap.ConfigKey, v sigcap.Variant) error {
		if err := dev.SetConfig(key, v); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	}
	if a.cfg.Samplerate > 0 {
		if err := set(sigcap.KeySamplerate, sigcap.Uint64Variant(a.cfg.Samplerate)); err != nil {
			return err
		}
	}
	if a.cfg.Samples > 0 {
		if err := set(sigcap.KeyLimitSamples, sigcap.Uint64Variant(a.cfg.Samples)); err != nil {
			return err
		}
	}
	if ms := a.cfg.Duration.Milliseconds(); ms > 0 {
		if err := set(sigcap.KeyLimitMsec, sigcap.Uint64Variant(uint64(ms))); err != nil {
			return err
		}
	}
	if err := profile.EnableChannels(dev, a.cfg.ChannelList()); err != nil {
		return err
	}

	ev := a.zl.Info().Str("device", dev.String())
	if v, err := dev.Config(sigcap.KeySamplerate); err == nil {
		if hz, ok := v.Uint64(); ok {
			ev = ev.Str("samplerate", domain.FormatSampleRate(hz))
		}
	}
	ev.Msg("device configured")
	return nil
}

// capture runs one acquisition on s until it ends or ctx is done.
func capture(ctx context.Context, s *sigcap.Session, p *printer) error {
	if err := s.Start(p.packet); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	waitErr := s.Wait(ctx)
	if err := s.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// printer writes one line per packet and tallies samples per device.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	quiet   bool
	start   time.Time
	samples map[string]uint64
	packets int
	bytes   int
	trigger bool
}

func newPrinter(out io.Writer, quiet bool) *printer {
	return &printer{out: out, quiet: quiet, start: time.Now(), samples: map[string]uint64{}}
}

func (p *printer) packet(dev *sigcap.Device, pkt sigcap.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := "?"
	if dev != nil {
		name = dev.Handle().String()
	}
	p.packets++
	p.bytes += pkt.Size()

	var detail string
	switch pkt := pkt.(type) {
	case sigcap.LogicPacket:
		p.samples[name] += uint64(pkt.Samples())
		detail = fmt.Sprintf("%d samples, unit %d", pkt.Samples(), pkt.UnitSize)
	case sigcap.AnalogPacket:
		p.samples[name] += uint64(pkt.Samples())
		detail = fmt.Sprintf("%d samples x %d channels [%s]", pkt.Samples(), len(pkt.Channels), pkt.Unit)
	case sigcap.TriggerPacket:
		p.trigger = true
	case sigcap.HeaderPacket:
		detail = pkt.StartTime.Format(time.RFC3339)
	case sigcap.MetaPacket:
		detail = fmt.Sprintf("%d keys", len(pkt.Config))
	}
	if p.quiet {
		return
	}
	if detail == "" {
		fmt.Fprintf(p.out, "%s %s\n", name, pkt.Type())
		return
	}
	fmt.Fprintf(p.out, "%s %s %s\n", name, pkt.Type(), detail)
}

func (p *printer) summary(run int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start).Round(time.Millisecond)
	fmt.Fprintf(p.out, "run %d: %d packets, %d bytes in %s", run, p.packets, p.bytes, elapsed)
	if p.trigger {
		fmt.Fprint(p.out, ", triggered")
	}
	fmt.Fprintln(p.out)
	for name, n := range p.samples {
		fmt.Fprintf(p.out, "  %s: %d samples\n", name, n)
	}
}

