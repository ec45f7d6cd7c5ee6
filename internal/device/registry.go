package device

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/knxhost/internal/binding"
	"github.com/nerrad567/knxhost/internal/bridges/knx"
	"github.com/nerrad567/knxhost/internal/discovery"
	"github.com/nerrad567/knxhost/internal/infrastructure/config"
	"github.com/nerrad567/knxhost/internal/infrastructure/database"
)

// Registry assembles the whole KNX host stack — transceiver through
// binding — and carries its goroutines as a group, so a failure in any one
// (the monitoring server failing to bind its port, say) cancels the rest
// cleanly rather than leaving a half-started device. The stack layers
// themselves (Transceiver, Link, Network, Transport, Application) are
// constructed eagerly in New, since their constructors already start their
// own worker goroutines; Start is where the device's scheduler and any
// optional extra workers (monitor HTTP server, discovery recorder) join the
// group.
type Registry struct {
	cfg    *config.Config
	logger Logger

	transceiver *knx.Transceiver
	link        *knx.Link
	network     *knx.Network
	transport   *knx.Transport
	application *knx.Application
	binder      *binding.Binding
	notifier    *Notifier
	scheduler   *Scheduler
	dev         *Device

	discoveryDB       *database.DB
	discoveryRecorder *discovery.Recorder

	extraWorkers []func(ctx context.Context) error

	group *errgroup.Group
}

// New builds the full stack from cfg: transceiver, link, network, transport,
// application, the binding table (resolved against the GAD map), and a
// Device in the "created" phase. It does not start anything beyond what the
// layer constructors themselves start (transceiver receive loop and
// callback workers, link inbound/outbound workers).
func New(cfg *config.Config) (*Registry, error) {
	addr, err := knx.ParseIndividualAddress(cfg.Device.IndividualAddress)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	transceiver, err := knx.NewTransceiver(knx.TransceiverConfig{
		MulticastAddr:  cfg.Bus.MulticastAddr,
		MulticastPort:  cfg.Bus.MulticastPort,
		TTL:            cfg.Bus.TTL,
		Loopback:       cfg.Bus.Loopback,
		ReceiveTimeout: cfg.ReceiveTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: transceiver: %w", err)
	}

	link := knx.NewLink(transceiver, knx.LinkConfig{
		IndividualAddress: addr,
		Distribution:      cfg.Bus.PriorityDistribution,
		HighWaterMark:     cfg.Bus.QueueHighWaterMark,
		ConfirmTimeout:    cfg.ConfirmTimeout(),
	})

	network := knx.NewNetwork(link)
	link.SetListener(network)

	transport := knx.NewTransport(network)
	network.SetListener(transport)

	application := knx.NewApplication(transport)
	transport.SetListener(application)

	gadMap, err := binding.LoadGADMap(cfg.Bindings.GADMapPath)
	if err != nil {
		transceiver.Close() //nolint:errcheck // best-effort cleanup on error path
		return nil, fmt.Errorf("registry: %w", err)
	}

	binder := binding.NewBinding(application, gadMap)
	application.SetListener(binder)

	notifier := NewNotifier()
	scheduler := NewScheduler()
	dev := NewDevice(addr, binder, notifier, scheduler)

	reg := &Registry{
		cfg:         cfg,
		logger:      noopLogger{},
		transceiver: transceiver,
		link:        link,
		network:     network,
		transport:   transport,
		application: application,
		binder:      binder,
		notifier:    notifier,
		scheduler:   scheduler,
		dev:         dev,
	}

	if cfg.Discovery.Enabled {
		discoveryDB, err := database.Open(database.Config{Path: cfg.Discovery.DBPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			transceiver.Close() //nolint:errcheck // best-effort cleanup on error path
			return nil, fmt.Errorf("registry: discovery database: %w", err)
		}

		recorder := discovery.NewRecorder(discoveryDB.DB)
		link.AddTap(recorder)

		reg.discoveryDB = discoveryDB
		reg.discoveryRecorder = recorder
		reg.extraWorkers = append(reg.extraWorkers, func(ctx context.Context) error {
			if err := recorder.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		})
	}

	return reg, nil
}

// SetLogger threads a logger through to the device, notifier, scheduler,
// and transceiver.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
	r.dev.SetLogger(logger)
	r.notifier.SetLogger(logger)
	r.scheduler.SetLogger(logger)
	r.transceiver.SetLogger(logger)
	if r.discoveryRecorder != nil {
		r.discoveryRecorder.SetLogger(logger)
	}
}

// AddWorker registers an extra long-running worker (the monitor HTTP
// server, the discovery recorder) to join the errgroup started by Start.
// Must be called before Start.
func (r *Registry) AddWorker(worker func(ctx context.Context) error) {
	r.extraWorkers = append(r.extraWorkers, worker)
}

// Device returns the assembled device, for registering functional blocks
// before Start.
func (r *Registry) Device() *Device { return r.dev }

// Binding returns the assembled binding table, for the monitor API and the
// check CLI subcommand to introspect.
func (r *Registry) Binding() *binding.Binding { return r.binder }

// Link returns the assembled link layer, for the monitor API's telegram
// stream to tap as an additional listener.
func (r *Registry) Link() *knx.Link { return r.link }

// Transceiver returns the assembled transceiver, for health checks and
// stats reporting.
func (r *Registry) Transceiver() *knx.Transceiver { return r.transceiver }

// Discovery returns the discovery recorder, or nil if discovery was not
// enabled in configuration. The check CLI subcommand uses this to list
// group addresses seen on the bus but not yet bound.
func (r *Registry) Discovery() *discovery.Recorder { return r.discoveryRecorder }

// Start weaves the device's functional blocks and brings the device's
// scheduler plus any registered extra workers up as an errgroup: the first
// one to return an error cancels the context passed to the rest. Start
// returns once every worker has been launched; call Wait to block until
// the group finishes.
func (r *Registry) Start(ctx context.Context) error {
	if err := r.dev.Weave(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	r.group = g

	g.Go(func() error { return r.dev.Start(gctx) })

	for _, worker := range r.extraWorkers {
		w := worker
		g.Go(func() error { return w(gctx) })
	}

	return nil
}

// Wait blocks until every worker launched by Start has returned, and
// returns the first non-nil error among them (if any).
func (r *Registry) Wait() error {
	if r.group == nil {
		return nil
	}
	return r.group.Wait()
}

// Run starts the stack and blocks until ctx is cancelled or a worker fails,
// then stops the device and releases the transceiver's socket. This is
// Device's mainLoop/shutdown from spec §4.9, assembled at the Registry
// level since shutdown must also release resources Device doesn't own.
func (r *Registry) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}

	runErr := r.Wait()
	r.Stop()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// Stop stops the device and releases the link and transceiver sockets.
// Safe to call even if Start was never called.
func (r *Registry) Stop() {
	r.dev.Stop()
	if r.discoveryRecorder != nil {
		r.discoveryRecorder.Stop()
	}
	if r.discoveryDB != nil {
		r.discoveryDB.Close() //nolint:errcheck // best-effort on shutdown
	}
	r.link.Close()
	r.transceiver.Close() //nolint:errcheck // best-effort on shutdown
}
