package binding

import "github.com/nerrad567/knxhost/internal/bridges/knx"

// FunctionDef is a named convenience for a common KNX function: its
// default DPT, flags, and transmission priority, so a functional block can
// declare BindFunction("switch") instead of spelling out DPT and flags by
// hand. Adapted from the bridge's function-name table: datapoints bind
// directly to a DPT codec, so there is no state-key indirection here.
type FunctionDef struct {
	Name     string
	DPT      string
	Flags    Flags
	Priority knx.Priority
}

// CanonicalFunctions is the set of recognised convenience functions.
var CanonicalFunctions = []FunctionDef{
	{Name: "switch", DPT: "1.001", Flags: FlagC | FlagW, Priority: knx.PriorityNormal},
	{Name: "switch_status", DPT: "1.001", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "brightness", DPT: "5.001", Flags: FlagC | FlagW, Priority: knx.PriorityNormal},
	{Name: "brightness_status", DPT: "5.001", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "rgb", DPT: "232.600", Flags: FlagC | FlagW, Priority: knx.PriorityNormal},
	{Name: "rgb_status", DPT: "232.600", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "position", DPT: "5.001", Flags: FlagC | FlagW, Priority: knx.PriorityNormal},
	{Name: "position_status", DPT: "5.001", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "move", DPT: "1.008", Flags: FlagC | FlagW, Priority: knx.PriorityNormal},
	{Name: "stop", DPT: "1.007", Flags: FlagC | FlagW, Priority: knx.PriorityUrgent},
	{Name: "temperature", DPT: "9.001", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "setpoint", DPT: "9.001", Flags: FlagC | FlagW | FlagR | FlagU, Priority: knx.PriorityNormal},
	{Name: "humidity", DPT: "9.007", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "presence", DPT: "1.018", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "lux", DPT: "9.004", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityLow},
	{Name: "scene_number", DPT: "17.001", Flags: FlagC | FlagW | FlagT, Priority: knx.PriorityNormal},
	{Name: "alarm", DPT: "1.005", Flags: FlagC | FlagR | FlagT, Priority: knx.PriorityUrgent},
}

var functionByName map[string]*FunctionDef

func init() {
	functionByName = make(map[string]*FunctionDef, len(CanonicalFunctions))
	for i := range CanonicalFunctions {
		functionByName[CanonicalFunctions[i].Name] = &CanonicalFunctions[i]
	}
}

// LookupFunction returns the canonical function definition for a name, or
// nil if unrecognised.
func LookupFunction(name string) *FunctionDef {
	return functionByName[name]
}
