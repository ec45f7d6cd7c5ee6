package binding

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// DuplicateError is returned by Weave when a functional block name is
// already registered under a different instance.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("binding: functional block %q already woven", e.Name)
}

// GroupValueSender is the subset of the Application layer the binding
// layer drives outbound.
type GroupValueSender interface {
	GroupValueWriteReq(ctx context.Context, gad uint16, priority knx.Priority, data []byte) (knx.TransmissionResult, error)
	GroupValueReadReq(ctx context.Context, gad uint16, priority knx.Priority) (knx.TransmissionResult, error)
	GroupValueResponseReq(ctx context.Context, gad uint16, priority knx.Priority, data []byte) (knx.TransmissionResult, error)
}

// boundGroupObject is a GroupObject plus the functional block it belongs
// to, indexed by destination group address.
type boundGroupObject struct {
	fb  *FunctionalBlock
	obj *GroupObject
}

// Binding is the process-wide group-object/datapoint binding table (the
// "ETS" role): `gad -> []GroupObject` and the inverse `(FB, dpName) ->
// GroupObject`, populated by Weave and consulted on every inbound frame.
type Binding struct {
	mu     sync.RWMutex
	byGAD  map[uint16][]boundGroupObject
	byKey  map[string][]*GroupObject
	woven  map[string]*FunctionalBlock

	app    GroupValueSender
	gadMap GADMap

	onChangeMu sync.RWMutex
	onChange   func(fbName, dpName string, old, newValue any)
}

// NewBinding constructs an empty binding table driving the given
// Application-layer sender and resolving GO declarations against gadMap.
func NewBinding(app GroupValueSender, gadMap GADMap) *Binding {
	return &Binding{
		byGAD:  make(map[uint16][]boundGroupObject),
		byKey:  make(map[string][]*GroupObject),
		woven:  make(map[string]*FunctionalBlock),
		app:    app,
		gadMap: gadMap,
	}
}

// SetOnChange registers a callback invoked after every successful datapoint
// change, local or remote. The device/notifier layer hooks in here.
func (b *Binding) SetOnChange(fn func(fbName, dpName string, old, newValue any)) {
	b.onChangeMu.Lock()
	b.onChange = fn
	b.onChangeMu.Unlock()
}

// Weave resolves every group object declared on fb against the GAD map and
// installs its bindings. Re-weaving the same *FunctionalBlock is a no-op;
// weaving a different block under an already-used name is rejected.
func (b *Binding) Weave(fb *FunctionalBlock) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.woven[fb.Name]; ok {
		if existing == fb {
			return nil
		}
		return &DuplicateError{Name: fb.Name}
	}

	for _, g := range fb.groupObjects {
		gads := make([]knx.GroupAddress, 0, len(g.GADNames))
		for _, name := range g.GADNames {
			ga, ok := b.gadMap.Resolve(name)
			if !ok {
				return fmt.Errorf("binding: weave %q: GAD name %q not found in map", fb.Name, name)
			}
			gads = append(gads, ga)
		}
		g.gads = gads

		for _, ga := range gads {
			key := ga.ToUint16()
			b.byGAD[key] = append(b.byGAD[key], boundGroupObject{fb: fb, obj: g})
		}

		byKeyName := fb.Name + "." + g.DPName
		b.byKey[byKeyName] = append(b.byKey[byKeyName], g)
	}

	b.woven[fb.Name] = fb
	return nil
}

// GroupValueWriteInd implements knx.BindingListener. It fans out to every
// GO bound to gad that carries both C and W, decoding and applying the
// value to each GO's datapoint exactly once.
func (b *Binding) GroupValueWriteInd(_ knx.IndividualAddress, gad uint16, _ knx.Priority, data []byte) {
	seen := make(map[*Datapoint]bool)
	for _, bg := range b.boundTo(gad) {
		g := bg.obj
		if !g.Flags.Has(FlagC | FlagW) {
			continue
		}
		if seen[g.dp] {
			continue
		}
		seen[g.dp] = true
		b.applyRemoteValue(bg.fb, g, data)
	}
}

// GroupValueResponseInd implements knx.BindingListener. Identical fan-out
// to GroupValueWriteInd, gated on the U flag instead of W.
func (b *Binding) GroupValueResponseInd(_ knx.IndividualAddress, gad uint16, _ knx.Priority, data []byte) {
	seen := make(map[*Datapoint]bool)
	for _, bg := range b.boundTo(gad) {
		g := bg.obj
		if !g.Flags.Has(FlagC | FlagU) {
			continue
		}
		if seen[g.dp] {
			continue
		}
		seen[g.dp] = true
		b.applyRemoteValue(bg.fb, g, data)
	}
}

func (b *Binding) applyRemoteValue(fb *FunctionalBlock, g *GroupObject, data []byte) {
	value, err := knx.DecodeValue(g.dp.DPT, data)
	if err != nil {
		return
	}
	old, _ := g.dp.setValue(value)
	b.notify(fb.Name, g.DPName, old, value)
}

// GroupValueReadInd implements knx.BindingListener: every R-flagged GO
// bound to gad responds with its datapoint's encoded current value. GOs
// without R stay silent — no NAK is ever sent.
func (b *Binding) GroupValueReadInd(_ knx.IndividualAddress, gad uint16, priority knx.Priority) {
	for _, bg := range b.boundTo(gad) {
		g := bg.obj
		if !g.Flags.Has(FlagC | FlagR) {
			continue
		}
		data, err := g.dp.Encode()
		if err != nil {
			continue
		}
		b.app.GroupValueResponseReq(context.Background(), gad, priority, data) //nolint:errcheck // best-effort response, bus is unconfirmed anyway
	}
}

func (b *Binding) boundTo(gad uint16) []boundGroupObject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byGAD[gad]
}

// Write applies a local value assignment to a datapoint: validates against
// the DPT, and if the value changed, encodes and transmits on every bound
// GO's send GAD flagged T. The change notification fires on every call
// regardless of whether the value changed — it is up to the registered
// handler's own condition (change vs. always) to decide whether to act on
// a no-op write.
func (b *Binding) Write(ctx context.Context, fbName, dpName string, value any) error {
	gos := b.groupObjectsFor(fbName, dpName)
	if len(gos) == 0 {
		return fmt.Errorf("binding: write %s.%s: not bound to any group object", fbName, dpName)
	}

	dp := gos[0].dp
	if err := dp.Validate(value); err != nil {
		return err
	}

	old, changed := dp.setValue(value)

	if changed {
		for _, g := range gos {
			if !g.Flags.Has(FlagC | FlagT) {
				continue
			}
			gad, ok := g.sendGAD()
			if !ok {
				continue
			}
			data, err := knx.EncodeValue(dp.DPT, value)
			if err != nil {
				continue
			}
			if _, err := b.app.GroupValueWriteReq(ctx, gad.ToUint16(), g.Priority, data); err != nil {
				return fmt.Errorf("binding: write %s.%s: %w", fbName, dpName, err)
			}
		}
	}

	b.notify(fbName, dpName, old, value)
	return nil
}

// Entry is a read-only snapshot of one woven group object, for the
// monitor HTTP API's /groupobjects endpoint and the check CLI subcommand —
// both render from this same type so they never drift.
type Entry struct {
	FBName   string
	DPName   string
	GADs     []string
	Flags    Flags
	Priority knx.Priority
	Value    any
}

// Entries returns a snapshot of every woven group object.
func (b *Binding) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Entry
	for fbName, fb := range b.woven {
		for _, g := range fb.groupObjects {
			gads := make([]string, len(g.gads))
			for i, ga := range g.gads {
				gads[i] = ga.String()
			}
			out = append(out, Entry{
				FBName:   fbName,
				DPName:   g.DPName,
				GADs:     gads,
				Flags:    g.Flags,
				Priority: g.Priority,
				Value:    g.dp.Value(),
			})
		}
	}
	return out
}

func (b *Binding) groupObjectsFor(fbName, dpName string) []*GroupObject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byKey[fbName+"."+dpName]
}

func (b *Binding) notify(fbName, dpName string, old, newValue any) {
	b.onChangeMu.RLock()
	fn := b.onChange
	b.onChangeMu.RUnlock()
	if fn != nil {
		fn(fbName, dpName, old, newValue)
	}
}
