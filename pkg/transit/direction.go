// Package transit names the directions a bus line runs in.
package transit

import "fmt"

// Direction is one of the two directions of a line.
type Direction int

const (
	Outbound Direction = iota // "aller"
	Inbound                   // "retour"
)

// Directions lists both directions in processing order: outbound first.
var Directions = []Direction{Outbound, Inbound}

// Key returns the tag used in manifest keys and asset file names.
func (d Direction) Key() string {
	if d == Inbound {
		return "retour"
	}
	return "aller"
}

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Inbound {
		return Outbound
	}
	return Inbound
}

// ParseDirection accepts either the manifest key or the English name.
func ParseDirection(v string) (Direction, error) {
	switch v {
	case "aller", "outbound":
		return Outbound, nil
	case "retour", "inbound":
		return Inbound, nil
	}
	return 0, fmt.Errorf("unknown direction %q", v)
}
