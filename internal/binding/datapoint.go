// Package binding implements the group-object/datapoint binding layer: the
// "ETS" role that maps application-level datapoints to on-bus group
// addresses, enforces per-binding flags, and delivers change notifications.
package binding

import (
	"fmt"
	"sync"

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// AccessMode constrains how a datapoint may be driven.
type AccessMode int

const (
	// AccessInput accepts writes from the bus or from local application code.
	AccessInput AccessMode = iota
	// AccessOutput is written by local application code and transmitted outbound.
	AccessOutput
	// AccessInOut accepts both directions.
	AccessInOut
)

// Datapoint is a typed value slot owned by a functional block. Its value
// always conforms to the DPT's validation predicate; reading before the
// first write returns the default.
type Datapoint struct {
	Name    string
	DPT     knx.DPT
	Access  AccessMode
	Default any

	mu    sync.RWMutex
	value any
	set   bool
}

// NewDatapoint constructs a datapoint, validating that the DPT identifier
// and default value are well-formed.
func NewDatapoint(name string, dpt knx.DPT, access AccessMode, defaultValue any) (*Datapoint, error) {
	if err := knx.ValidateDPT(dpt); err != nil {
		return nil, fmt.Errorf("datapoint %q: %w", name, err)
	}
	if defaultValue != nil {
		if _, err := knx.EncodeValue(dpt, defaultValue); err != nil {
			return nil, fmt.Errorf("datapoint %q: invalid default value: %w", name, err)
		}
	}
	return &Datapoint{Name: name, DPT: dpt, Access: access, Default: defaultValue}, nil
}

// Value returns the current value, or the default if never set.
func (d *Datapoint) Value() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.set {
		return d.Default
	}
	return d.value
}

// Validate checks a candidate value against the datapoint's DPT without
// applying it.
func (d *Datapoint) Validate(value any) error {
	_, err := knx.EncodeValue(d.DPT, value)
	return err
}

// setValue stores a validated value and reports whether it changed from
// the previous value. The first set always reports a change; old is then
// the default. Callers are expected to have already validated via
// Validate/EncodeValue.
func (d *Datapoint) setValue(value any) (old any, changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	old = d.Default
	if d.set {
		old = d.value
	}

	changed = !d.set || old != value
	d.value = value
	d.set = true
	return old, changed
}

// Encode returns the DPT-encoded wire bytes for the datapoint's current value.
func (d *Datapoint) Encode() ([]byte, error) {
	return knx.EncodeValue(d.DPT, d.Value())
}
