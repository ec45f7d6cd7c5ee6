package binding

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// GADMap resolves the symbolic names a functional block declares its group
// objects against into actual group addresses, loaded from a flat YAML
// file of name -> address strings (either formatting level).
type GADMap map[string]knx.GroupAddress

// LoadGADMap reads a GAD map YAML file, e.g.:
//
//	living_room.light.switch: "1/2/3"
//	living_room.light.status: "1/2/4"
func LoadGADMap(path string) (GADMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GAD map: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing GAD map: %w", err)
	}

	m := make(GADMap, len(raw))
	for name, addr := range raw {
		ga, err := knx.ParseGroupAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("GAD map entry %q: %w", name, err)
		}
		m[name] = ga
	}
	return m, nil
}

// Resolve looks up a symbolic name, returning the address and whether it
// was found.
func (m GADMap) Resolve(name string) (knx.GroupAddress, bool) {
	ga, ok := m[name]
	return ga, ok
}
