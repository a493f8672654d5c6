package game

import (
	"fmt"
	"strings"
)

// Point is a tile location inside an environment. Z grows downward.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Direction is one of the six axis-aligned neighbours of a tile.
type Direction int

const (
	DirNone Direction = iota
	DirNorth
	DirSouth
	DirEast
	DirWest
	DirUp
	DirDown
)

// PlanarDirections are the directions a living can walk without climbing.
var PlanarDirections = []Direction{DirNorth, DirSouth, DirEast, DirWest}

var directionNames = map[Direction]string{
	DirNone:  "none",
	DirNorth: "north",
	DirSouth: "south",
	DirEast:  "east",
	DirWest:  "west",
	DirUp:    "up",
	DirDown:  "down",
}

// Vector returns the offset of one step in d.
func (d Direction) Vector() Point {
	switch d {
	case DirNorth:
		return Point{Y: -1}
	case DirSouth:
		return Point{Y: 1}
	case DirEast:
		return Point{X: 1}
	case DirWest:
		return Point{X: -1}
	case DirUp:
		return Point{Z: -1}
	case DirDown:
		return Point{Z: 1}
	default:
		return Point{}
	}
}

func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection accepts a full direction name or its first letter.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DirNone, fmt.Errorf("direction is required")
	}
	for d, name := range directionNames {
		if d == DirNone {
			continue
		}
		if s == name || s == name[:1] {
			return d, nil
		}
	}
	return DirNone, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	if string(text) == "none" {
		*d = DirNone
		return nil
	}
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
