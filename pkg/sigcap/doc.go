// Package sigcap exposes signal acquisition devices through a small
// object model: a Context enumerates drivers and devices of a Backend, and
// Sessions run captures and deliver packets to a callback.
//
// # Basic Usage
//
//	ctx, err := sigcap.New(sigcap.NewDemoBackend(sigcap.DemoBackendConfig{}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctx.Destroy()
//
//	drv, _ := ctx.Driver(context.Background(), sigcap.DemoLogicDriver)
//	devices, _ := drv.Scan(context.Background(), nil)
//	dev := devices.Items()[0]
//	_ = dev.Open(context.Background())
//	_ = dev.SetConfig(sigcap.KeyLimitSamples, sigcap.Uint64Variant(1000))
//
//	s, _ := ctx.NewSession()
//	_ = s.AddDevice(dev)
//	_ = s.Start(func(d *sigcap.Device, p sigcap.Packet) {
//	    fmt.Println(d, p.Type())
//	})
//	_ = s.Wait(context.Background())
//	_ = s.Stop()
//
// # Proxies and Handles
//
// Every driver, device, channel, session and format is represented by a
// proxy carrying a [Handle]. The Context keeps one proxy per native
// object, so repeated enumeration returns the same pointers and proxies
// can be compared with ==. The zero Handle denotes "no object".
//
// # Collections
//
// Enumerations return a marshal.Seq that tells an absent collection apart
// from an empty one. A backend that ships no format modules yields an
// absent sequence from [Context.InputFormats].
//
// # Session States
//
// A Session moves through:
//
//	StateCreated → StateConfigured → StateStarted → StateStopped → StateDestroyed
//
// Invalid transitions fail with [ErrInvalidState] and leave the state
// unchanged. A stopped session may be started again.
//
// # Packet Delivery
//
// Packets reach the callback one at a time in backend order. After
// [Session.Stop] returns, the callback is not running and will not run
// again. The callback must not call back into its session.
//
// # Errors
//
// Operations fail with wrapped sentinel errors: [ErrInvalidArgument],
// [ErrInvalidState], [ErrNotFound], [ErrNotSupported] and
// [ErrBackendFailure]. Backend failures are [*BackendError] values naming
// the operation and the resource.
package sigcap
