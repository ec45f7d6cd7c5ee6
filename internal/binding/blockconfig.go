package binding

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GADMapError reports a problem loading or resolving the GAD map or a
// functional block declaration file — a config-time error, surfaced
// before the stack starts.
type GADMapError struct {
	Path string
	Err  error
}

func (e *GADMapError) Error() string {
	return fmt.Sprintf("binding: %s: %v", e.Path, e.Err)
}

func (e *GADMapError) Unwrap() error { return e.Err }

// blockDatapointSpec is one datapoint entry within a functional block
// declaration file: a canonical function name (resolved against
// CanonicalFunctions for its DPT/flags/priority) plus the GAD map names it
// binds to.
type blockDatapointSpec struct {
	Function string   `yaml:"function"`
	GADs     []string `yaml:"gads"`
}

// LoadFunctionalBlocks reads a functional block declaration file, e.g.:
//
//	living_room_light:
//	  on:
//	    function: switch
//	    gads: ["light.switch"]
//	  status:
//	    function: switch_status
//	    gads: ["light.status"]
//
// Each datapoint's DPT, flags, and priority come from its named canonical
// function (see CanonicalFunctions); only the GAD bindings are
// deployment-specific. This is the generic, declarative counterpart to
// registering functional blocks in Go code directly — either path produces
// the same *FunctionalBlock values for Device.Register.
func LoadFunctionalBlocks(path string) ([]*FunctionalBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &GADMapError{Path: path, Err: err}
	}

	var raw map[string]map[string]blockDatapointSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &GADMapError{Path: path, Err: fmt.Errorf("parsing functional block file: %w", err)}
	}

	blocks := make([]*FunctionalBlock, 0, len(raw))
	for fbName, datapoints := range raw {
		fb := NewFunctionalBlock(fbName)
		for dpName, spec := range datapoints {
			if err := fb.BindFunction(dpName, spec.Function, AccessInOut, nil, spec.GADs...); err != nil {
				return nil, &GADMapError{Path: path, Err: fmt.Errorf("block %q: %w", fbName, err)}
			}
		}
		blocks = append(blocks, fb)
	}
	return blocks, nil
}
