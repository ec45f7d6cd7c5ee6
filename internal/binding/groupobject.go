package binding

import (
	"strings"

	"github.com/nerrad567/knxhost/internal/bridges/knx"
)

// Flags is the subset of {C, R, W, T, U} carried by a group object:
// Communication, Read, Write, Transmit, Update.
type Flags uint8

const (
	FlagC Flags = 1 << iota
	FlagR
	FlagW
	FlagT
	FlagU
)

// ParseFlags converts flag letters ("C", "R", "W", "T", "U", case
// insensitive) into a Flags bitmask. Unrecognised letters are ignored.
func ParseFlags(letters ...string) Flags {
	var f Flags
	for _, letter := range letters {
		switch strings.ToUpper(letter) {
		case "C":
			f |= FlagC
		case "R":
			f |= FlagR
		case "W":
			f |= FlagW
		case "T":
			f |= FlagT
		case "U":
			f |= FlagU
		}
	}
	return f
}

// Has reports whether all bits in want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// String renders the set flags as a letter string (e.g. "CWT"), for the
// monitor API and the check CLI subcommand.
func (f Flags) String() string {
	var b strings.Builder
	if f.Has(FlagC) {
		b.WriteByte('C')
	}
	if f.Has(FlagR) {
		b.WriteByte('R')
	}
	if f.Has(FlagW) {
		b.WriteByte('W')
	}
	if f.Has(FlagT) {
		b.WriteByte('T')
	}
	if f.Has(FlagU) {
		b.WriteByte('U')
	}
	return b.String()
}

// GroupObject binds one datapoint to zero or more group addresses, named
// at declaration time by lookup keys into the GAD map and resolved to
// actual addresses at weave time.
type GroupObject struct {
	DPName   string
	GADNames []string
	Flags    Flags
	Priority knx.Priority

	dp   *Datapoint
	gads []knx.GroupAddress
}

// sendGAD returns the group address outbound writes are sent on: the
// first bound GAD, per spec.
func (g *GroupObject) sendGAD() (knx.GroupAddress, bool) {
	if len(g.gads) == 0 {
		return knx.GroupAddress{}, false
	}
	return g.gads[0], true
}
