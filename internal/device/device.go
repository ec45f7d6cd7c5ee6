// Package device owns the device lifecycle state machine, the notifier and
// scheduler glue that route datapoint changes and timed jobs to functional
// blocks, and the Registry that assembles the full KNX stack.
package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/knxhost/internal/binding"
	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// Phase is a state in the device lifecycle. A phase advances to the next
// one in sequence and never skips; the one step back is Start returning
// from "running" to "woven" when the scheduler fails to start.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseRegistered
	PhaseWoven
	PhaseRunning
	PhaseStopping
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseRegistered:
		return "registered"
	case PhaseWoven:
		return "woven"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Logger is the structured logging interface the device package depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Binder is the subset of *binding.Binding the device drives: weaving
// functional blocks in, and routing change notifications out.
type Binder interface {
	Weave(fb *binding.FunctionalBlock) error
	SetOnChange(fn func(fbName, dpName string, old, newValue any))
}

// Device owns the functional blocks that make up this host and carries
// them through created -> registered -> woven -> running -> stopping ->
// stopped. It does not own the bus stack threads (transceiver, link) —
// those are brought up by the Registry before weave, since the listener
// chain must exist before any frame can arrive.
type Device struct {
	individualAddress knx.IndividualAddress

	binding   Binder
	notifier  *Notifier
	scheduler *Scheduler
	logger    Logger

	mu     sync.Mutex
	phase  Phase
	blocks []*binding.FunctionalBlock
	woven  map[*binding.FunctionalBlock]bool
}

// NewDevice constructs a device in the "created" phase.
func NewDevice(addr knx.IndividualAddress, b Binder, notifier *Notifier, scheduler *Scheduler) *Device {
	return &Device{
		individualAddress: addr,
		binding:           b,
		notifier:          notifier,
		scheduler:         scheduler,
		logger:            noopLogger{},
		phase:             PhaseCreated,
		woven:             make(map[*binding.FunctionalBlock]bool),
	}
}

// SetLogger sets the device's logger.
func (d *Device) SetLogger(logger Logger) {
	d.logger = logger
}

// Phase returns the device's current lifecycle phase.
func (d *Device) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// IndividualAddress returns the address this device presents on the bus.
func (d *Device) IndividualAddress() knx.IndividualAddress {
	return d.individualAddress
}

// Notifier returns the device's notifier, for external sinks (the
// telemetry/history recorders) to register additional handlers against
// before Weave.
func (d *Device) Notifier() *Notifier {
	return d.notifier
}

// FunctionalBlocks returns the registered functional blocks.
func (d *Device) FunctionalBlocks() []*binding.FunctionalBlock {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*binding.FunctionalBlock, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// Register adds a functional block to the device. Valid from "created" or
// "registered"; advances the phase to "registered". Registering a block
// whose name is already registered is a no-op if it is the same instance.
func (d *Device) Register(fb *binding.FunctionalBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.phase != PhaseCreated && d.phase != PhaseRegistered {
		return fmt.Errorf("device: cannot register functional block %q in phase %s", fb.Name, d.phase)
	}

	for _, existing := range d.blocks {
		if existing == fb {
			return nil
		}
	}

	d.blocks = append(d.blocks, fb)
	d.phase = PhaseRegistered
	return nil
}

// Weave resolves every registered functional block's group objects against
// the GAD map and installs the binding table, then wires the notifier as
// the binding layer's change callback. Valid from "registered" or "woven"
// (re-weave is idempotent); a name collision with a different block of the
// same name surfaces the binding layer's *binding.DuplicateError unchanged.
func (d *Device) Weave() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.phase != PhaseRegistered && d.phase != PhaseWoven {
		return fmt.Errorf("device: cannot weave in phase %s", d.phase)
	}

	for _, fb := range d.blocks {
		if d.woven[fb] {
			continue
		}
		if err := d.binding.Weave(fb); err != nil {
			return fmt.Errorf("device: weave %q: %w", fb.Name, err)
		}
		d.woven[fb] = true
	}

	d.binding.SetOnChange(d.notifier.Dispatch)
	d.phase = PhaseWoven
	return nil
}

// Start brings up the scheduler and advances to "running". Valid only from
// "woven".
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.phase != PhaseWoven {
		d.mu.Unlock()
		return fmt.Errorf("device: cannot start in phase %s", d.phase)
	}
	d.phase = PhaseRunning
	d.mu.Unlock()

	if d.scheduler != nil {
		if err := d.scheduler.Start(ctx); err != nil {
			d.mu.Lock()
			d.phase = PhaseWoven
			d.mu.Unlock()
			return fmt.Errorf("device: starting scheduler: %w", err)
		}
	}

	d.logger.Info("device running", "individual_address", d.individualAddress.String())
	return nil
}

// Stop transitions running -> stopping -> stopped: stops the scheduler and
// waits for any in-flight threaded notifier handlers to finish. A no-op
// outside "running".
func (d *Device) Stop() {
	d.mu.Lock()
	if d.phase != PhaseRunning {
		d.mu.Unlock()
		return
	}
	d.phase = PhaseStopping
	d.mu.Unlock()

	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	d.notifier.Wait()

	d.mu.Lock()
	d.phase = PhaseStopped
	d.mu.Unlock()

	d.logger.Info("device stopped")
}
