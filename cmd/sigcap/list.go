package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/sigcap/internal/marshal"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

const scanTimeout = 10 * time.Second

func newDriversCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the drivers of the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDrivers(cmd)
		},
	}
}

func (a *app) runDrivers(cmd *cobra.Command) error {
	sc, done, err := a.openContext()
	if err != nil {
		return err
	}
	defer done()

	drivers, err := sc.Drivers(cmd.Context())
	if err != nil {
		return fmt.Errorf("list drivers: %w", err)
	}

	out := cmd.OutOrStdout()
	if drivers.Len() == 0 {
		fmt.Fprintln(out, "No drivers.")
		return nil
	}
	fmt.Fprintln(out, "Drivers:")
	drivers.Each(func(_ int, d *sigcap.Driver) bool {
		fmt.Fprintf(out, "  %-20s %s\n", d.Name(), d.LongName())
		return true
	})
	return nil
}

func newScanCmd(a *app) *cobra.Command {
	var driver string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for devices",
		Long: `Scan for devices with one driver, or with every driver of the backend when
--driver is not given. Drivers are scanned concurrently in the latter case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, driver)
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "driver to scan with (default: all)")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, driver string) error {
	sc, done, err := a.openContext()
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := context.WithTimeout(cmd.Context(), scanTimeout)
	defer cancel()

	var devices marshal.Seq[*sigcap.Device]
	if driver == "" {
		devices, err = sc.ScanAll(ctx)
	} else {
		var drv *sigcap.Driver
		if drv, err = sc.Driver(ctx, driver); err != nil {
			return err
		}
		devices, err = drv.Scan(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	out := cmd.OutOrStdout()
	if devices.Len() == 0 {
		fmt.Fprintln(out, "No devices found.")
		return nil
	}
	fmt.Fprintln(out, "Detected devices:")
	devices.Each(func(_ int, d *sigcap.Device) bool {
		printDevice(out, d)
		return true
	})
	return nil
}

func printDevice(out io.Writer, d *sigcap.Device) {
	fmt.Fprintf(out, "  - %s %s [%s]", d.Vendor(), d.Model(), d.Driver().Name())
	if conn := d.Connection(); conn != "" {
		fmt.Fprintf(out, " at %s", conn)
	}
	fmt.Fprintln(out)
	d.Channels().Each(func(_ int, ch *sigcap.Channel) bool {
		fmt.Fprintf(out, "      %-6s %s\n", ch.Name(), ch.Type())
		return true
	})
}

func newFormatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List input and output formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFormats(cmd)
		},
	}
}

func (a *app) runFormats(cmd *cobra.Command) error {
	sc, done, err := a.openContext()
	if err != nil {
		return err
	}
	defer done()

	out := cmd.OutOrStdout()
	for _, list := range []struct {
		title string
		load  func() (marshal.Seq[*sigcap.Format], error)
	}{
		{"Input formats", sc.InputFormats},
		{"Output formats", sc.OutputFormats},
	} {
		formats, err := list.load()
		if err != nil {
			return err
		}
		if !formats.Present() {
			fmt.Fprintf(out, "%s: not supported by backend\n", list.title)
			continue
		}
		fmt.Fprintf(out, "%s:\n", list.title)
		formats.Each(func(_ int, f *sigcap.Format) bool {
			fmt.Fprintf(out, "  %-12s %s\n", f.Name(), f.Description())
			return true
		})
	}
	return nil
}
