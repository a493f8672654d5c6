package game

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"

	"github.com/pixil98/go-colony/internal/storage"
	"github.com/pixil98/go-colony/internal/world"
)

// Spawn asks for Count livings of Species to be created when the area starts.
type Spawn struct {
	Species string `json:"species" yaml:"species"`
	Count   int    `json:"count" yaml:"count"`
}

// AreaConfig shapes the starting area.
type AreaConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Depth       int     `yaml:"depth"`
	Seed        uint64  `yaml:"seed"`
	WallDensity float64 `yaml:"wall_density"`
	OreDensity  float64 `yaml:"ore_density"`
	Population  []Spawn `yaml:"population"`
}

// Area builds the starting environment and population, and finds room for
// livings that join later.
type Area struct {
	cfg     AreaConfig
	species storage.Storer[*Species]
	rng     *rand.Rand
	env     *Environment
}

func NewArea(cfg AreaConfig, species storage.Storer[*Species]) *Area {
	return &Area{
		cfg:     cfg,
		species: species,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
	}
}

// Init is a world initializer: it runs once with the write lock held.
func (a *Area) Init(w *world.World) error {
	env, err := NewEnvironment(a.cfg.Width, a.cfg.Height, a.cfg.Depth, a.terrain)
	if err != nil {
		return err
	}
	env.Register(w)
	a.env = env

	total := 0
	for _, sp := range a.cfg.Population {
		species := a.species.Get(sp.Species)
		if species == nil {
			return fmt.Errorf("unknown species %q", sp.Species)
		}
		for i := 0; i < sp.Count; i++ {
			name := fmt.Sprintf("%s %d", species.Name, i+1)
			if _, err := a.SpawnLiving(w, name, species, NewWanderAI(a.rng.Uint64())); err != nil {
				return err
			}
			total++
		}
	}

	width, height, depth := env.Size()
	slog.Info("area initialized", "width", width, "height", height, "depth", depth, "livings", total)
	return nil
}

func (a *Area) Environment() *Environment {
	return a.env
}

// Species returns the playable species, sorted by name.
func (a *Area) Species() []*Species {
	var out []*Species
	for _, sp := range a.species.GetAll() {
		if sp.Playable {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SpawnPoint picks a random free tile on the surface.
func (a *Area) SpawnPoint() (Point, error) {
	if a.env == nil {
		return Point{}, ErrNotSpawned
	}
	open := a.env.OpenTiles(0)
	if len(open) == 0 {
		return Point{}, ErrNoSpawnPoint
	}
	return open[a.rng.IntN(len(open))], nil
}

// SpawnLiving creates a living at a random surface tile and asks the world to
// schedule it. Requires the write lock.
func (a *Area) SpawnLiving(w *world.World, name string, species *Species, ai AI) (*Living, error) {
	p, err := a.SpawnPoint()
	if err != nil {
		return nil, fmt.Errorf("spawning %s: %w", name, err)
	}

	l := NewLiving(name, species, ai)
	if err := l.Spawn(w, a.env, p); err != nil {
		return nil, err
	}
	w.RequestAddActor(l)
	return l, nil
}

// terrain lays out an open surface with scattered rock, and solid rock with
// the occasional ore vein below it. The outer ring of the surface is rock.
func (a *Area) terrain(p Point) Tile {
	if p.Z > 0 {
		if a.rng.Float64() < a.cfg.OreDensity {
			return Tile{Terrain: TerrainWall, Material: "iron ore"}
		}
		return Tile{Terrain: TerrainWall, Material: "granite"}
	}

	edge := p.X == 0 || p.Y == 0 || p.X == a.cfg.Width-1 || p.Y == a.cfg.Height-1
	if edge || a.rng.Float64() < a.cfg.WallDensity {
		return Tile{Terrain: TerrainWall, Material: "granite"}
	}
	return Tile{Terrain: TerrainFloor, Material: "grass"}
}
