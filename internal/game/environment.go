package game

import (
	"fmt"

	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
)

// Terrain is the shape of a tile.
type Terrain int

const (
	TerrainEmpty Terrain = iota
	TerrainFloor
	TerrainWall
	TerrainWater
)

var terrainNames = map[Terrain]string{
	TerrainEmpty: "empty",
	TerrainFloor: "floor",
	TerrainWall:  "wall",
	TerrainWater: "water",
}

func (t Terrain) String() string {
	if name, ok := terrainNames[t]; ok {
		return name
	}
	return fmt.Sprintf("terrain(%d)", int(t))
}

func (t Terrain) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Terrain) UnmarshalText(text []byte) error {
	for k, name := range terrainNames {
		if name == string(text) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown terrain %q", text)
}

// Tile is the contents of one map cell.
type Tile struct {
	Terrain  Terrain `json:"terrain"`
	Material string  `json:"material,omitempty"`
}

// Walkable reports whether a living may stand on the tile.
func (t Tile) Walkable() bool {
	return t.Terrain == TerrainFloor
}

// Minable reports whether the tile can be dug out.
func (t Tile) Minable() bool {
	return t.Terrain == TerrainWall
}

// Environment is a bounded 3-D tile grid that livings move through. It is a
// world object: every mutation must happen with the world's write lock held.
type Environment struct {
	id     registry.ID
	width  int
	height int
	depth  int
	tiles  []Tile

	occupants map[Point]registry.ID
}

// NewEnvironment builds a grid of the given size, filling each tile with fill.
func NewEnvironment(width, height, depth int, fill func(Point) Tile) (*Environment, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("invalid environment size %dx%dx%d", width, height, depth)
	}

	e := &Environment{
		width:     width,
		height:    height,
		depth:     depth,
		tiles:     make([]Tile, width*height*depth),
		occupants: map[Point]registry.ID{},
	}

	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				p := Point{X: x, Y: y, Z: z}
				e.tiles[e.index(p)] = fill(p)
			}
		}
	}

	return e, nil
}

// Register adds the environment to the world's object table.
func (e *Environment) Register(w *world.World) registry.ID {
	e.id = w.AddObject(e)
	return e.id
}

func (e *Environment) ID() registry.ID {
	return e.id
}

// Size returns the width, height and depth of the grid.
func (e *Environment) Size() (int, int, int) {
	return e.width, e.height, e.depth
}

func (e *Environment) Contains(p Point) bool {
	return p.X >= 0 && p.X < e.width &&
		p.Y >= 0 && p.Y < e.height &&
		p.Z >= 0 && p.Z < e.depth
}

func (e *Environment) index(p Point) int {
	return (p.Z*e.height+p.Y)*e.width + p.X
}

// Tile returns the tile at p.
func (e *Environment) Tile(p Point) (Tile, bool) {
	if !e.Contains(p) {
		return Tile{}, false
	}
	return e.tiles[e.index(p)], true
}

// SetTile replaces the tile at p and records a MapChange.
func (e *Environment) SetTile(w *world.World, p Point, t Tile) error {
	if !e.Contains(p) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	w.RecordChange(MapChange{EnvironmentID: e.id, Location: p, Tile: t})
	e.tiles[e.index(p)] = t
	return nil
}

// Occupant returns the object standing at p, if any.
func (e *Environment) Occupant(p Point) (registry.ID, bool) {
	id, ok := e.occupants[p]
	return id, ok
}

// CanEnter reports whether a living could step onto p.
func (e *Environment) CanEnter(p Point) bool {
	t, ok := e.Tile(p)
	if !ok || !t.Walkable() {
		return false
	}
	_, occupied := e.occupants[p]
	return !occupied
}

// OpenTiles returns every enterable tile on level z.
func (e *Environment) OpenTiles(z int) []Point {
	var out []Point
	for y := 0; y < e.height; y++ {
		for x := 0; x < e.width; x++ {
			p := Point{X: x, Y: y, Z: z}
			if e.CanEnter(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func (e *Environment) place(id registry.ID, p Point) {
	e.occupants[p] = id
}

func (e *Environment) vacate(p Point) {
	delete(e.occupants, p)
}
