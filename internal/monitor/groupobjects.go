package monitor

import "net/http"

// groupObjectEntry is the JSON shape for one woven group object — the same
// information the check CLI subcommand prints, so the two surfaces render
// from binding.Binding.Entries() and never drift apart.
type groupObjectEntry struct {
	FunctionalBlock string   `json:"functional_block"`
	Datapoint       string   `json:"datapoint"`
	GroupAddresses  []string `json:"group_addresses"`
	Flags           string   `json:"flags"`
	Priority        string   `json:"priority"`
	Value           any      `json:"value"`
}

// handleGroupObjects returns the woven binding table: GAD, datapoint, FB,
// flags, and priority for every group object.
func (s *Server) handleGroupObjects(w http.ResponseWriter, _ *http.Request) {
	entries := s.binding.Entries()
	out := make([]groupObjectEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, groupObjectEntry{
			FunctionalBlock: e.FBName,
			Datapoint:       e.DPName,
			GroupAddresses:  e.GADs,
			Flags:           e.Flags.String(),
			Priority:        e.Priority.String(),
			Value:           e.Value,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
