package tuning

import (
	"fmt"
	"os"
	"time"

	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/world"
	"github.com/pixil98/go-errors"
	"gopkg.in/yaml.v3"
)

// Tuning holds the simulation knobs that designers adjust between runs.
type Tuning struct {
	World      World           `yaml:"world"`
	Area       game.AreaConfig `yaml:"area"`
	RateLimits []RateLimit     `yaml:"rate_limits"`
}

type World struct {
	TickMethod  world.TickMethod `yaml:"tick_method"`
	MaxMoveTime time.Duration    `yaml:"max_move_time"`
	MinTickTime time.Duration    `yaml:"min_tick_time"`
	RequireUser bool             `yaml:"require_user"`
}

// RateLimit allows Max session commands per Window.
type RateLimit struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// Defaults is a small simultaneous colony that only ticks while users are on.
func Defaults() Tuning {
	return Tuning{
		World: World{
			TickMethod:  world.TickSimultaneous,
			MaxMoveTime: 5 * time.Second,
			MinTickTime: 250 * time.Millisecond,
			RequireUser: true,
		},
		Area: game.AreaConfig{
			Width:       32,
			Height:      24,
			Depth:       4,
			Seed:        1,
			WallDensity: 0.08,
			OreDensity:  0.05,
		},
		RateLimits: []RateLimit{
			{Window: time.Second, Max: 8},
			{Window: time.Minute, Max: 240},
		},
	}
}

// Load reads a tuning file over the defaults, so a file only needs to name
// the values it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	el := errors.NewErrorList()

	if t.World.MaxMoveTime < 0 {
		el.Add(fmt.Errorf("world.max_move_time must not be negative"))
	}
	if t.World.MinTickTime < 0 {
		el.Add(fmt.Errorf("world.min_tick_time must not be negative"))
	}

	if t.Area.Width < 3 || t.Area.Height < 3 || t.Area.Depth < 1 {
		el.Add(fmt.Errorf("area must be at least 3x3x1"))
	}
	if t.Area.WallDensity < 0 || t.Area.WallDensity >= 1 {
		el.Add(fmt.Errorf("area.wall_density must be in [0, 1)"))
	}
	if t.Area.OreDensity < 0 || t.Area.OreDensity > 1 {
		el.Add(fmt.Errorf("area.ore_density must be in [0, 1]"))
	}
	for _, sp := range t.Area.Population {
		if sp.Species == "" {
			el.Add(fmt.Errorf("area.population entries need a species"))
		}
		if sp.Count < 0 {
			el.Add(fmt.Errorf("area.population count for %q must not be negative", sp.Species))
		}
	}

	for _, rl := range t.RateLimits {
		if rl.Window <= 0 || rl.Max <= 0 {
			el.Add(fmt.Errorf("rate limit %s/%d must be positive", rl.Window, rl.Max))
		}
	}

	return el.Err()
}

// WorldOptions converts the world section into scheduler options.
func (t Tuning) WorldOptions() []world.Opt {
	return []world.Opt{
		world.WithTickMethod(t.World.TickMethod),
		world.WithMaxMoveTime(t.World.MaxMoveTime),
		world.WithMinTickTime(t.World.MinTickTime),
		world.WithRequireUser(t.World.RequireUser),
	}
}

// Rates returns the rate limits keyed by window, as the session limiter wants them.
func (t Tuning) Rates() map[time.Duration]int {
	rates := make(map[time.Duration]int, len(t.RateLimits))
	for _, rl := range t.RateLimits {
		rates[rl.Window] = rl.Max
	}
	return rates
}
