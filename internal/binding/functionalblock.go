package binding

import (
	"fmt"

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// FunctionalBlock is a named collection of datapoints, group objects, and
// handler methods. Declared statically, instantiated by the registry, and
// bound to the stack at device weave.
type FunctionalBlock struct {
	Name string

	datapoints   map[string]*Datapoint
	groupObjects []*GroupObject
}

// NewFunctionalBlock constructs an empty functional block with the given
// unique name.
func NewFunctionalBlock(name string) *FunctionalBlock {
	return &FunctionalBlock{
		Name:       name,
		datapoints: make(map[string]*Datapoint),
	}
}

// AddDatapoint declares a datapoint on this block.
func (fb *FunctionalBlock) AddDatapoint(name string, dpt knx.DPT, access AccessMode, defaultValue any) (*Datapoint, error) {
	if _, exists := fb.datapoints[name]; exists {
		return nil, fmt.Errorf("functional block %q: datapoint %q already declared", fb.Name, name)
	}
	dp, err := NewDatapoint(name, dpt, access, defaultValue)
	if err != nil {
		return nil, err
	}
	fb.datapoints[name] = dp
	return dp, nil
}

// Datapoint returns a previously declared datapoint by name, or nil.
func (fb *FunctionalBlock) Datapoint(name string) *Datapoint {
	return fb.datapoints[name]
}

// Bind declares a group object on a previously declared datapoint, binding
// it to one or more GAD-map lookup keys with explicit flags and priority.
func (fb *FunctionalBlock) Bind(dpName string, gadNames []string, flags Flags, priority knx.Priority) error {
	dp, ok := fb.datapoints[dpName]
	if !ok {
		return fmt.Errorf("functional block %q: bind: unknown datapoint %q", fb.Name, dpName)
	}
	if len(gadNames) == 0 {
		return fmt.Errorf("functional block %q: bind: datapoint %q has no GAD names", fb.Name, dpName)
	}
	fb.groupObjects = append(fb.groupObjects, &GroupObject{
		DPName:   dpName,
		GADNames: gadNames,
		Flags:    flags,
		Priority: priority,
		dp:       dp,
	})
	return nil
}

// BindFunction is the Bind convenience that fills DPT/flags/priority from
// the named canonical function's defaults (see functiondefs.go), in the
// manner of the teacher's FunctionDef lookup table.
func (fb *FunctionalBlock) BindFunction(dpName, function string, access AccessMode, defaultValue any, gadNames ...string) error {
	def := LookupFunction(function)
	if def == nil {
		return fmt.Errorf("functional block %q: bind: unknown function %q", fb.Name, function)
	}
	if _, err := fb.AddDatapoint(dpName, knx.DPT(def.DPT), access, defaultValue); err != nil {
		return err
	}
	return fb.Bind(dpName, gadNames, def.Flags, def.Priority)
}
