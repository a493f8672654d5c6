package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-colony/internal/console"
	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/listener"
	"github.com/pixil98/go-colony/internal/messaging"
	"github.com/pixil98/go-colony/internal/session"
	"github.com/pixil98/go-colony/internal/tuning"
	"github.com/pixil98/go-colony/internal/world"
	"github.com/pixil98/go-service"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	t := tuning.Defaults()
	if cfg.Tuning != "" {
		var err error
		t, err = tuning.Load(cfg.Tuning)
		if err != nil {
			return nil, fmt.Errorf("loading tuning: %w", err)
		}
	}

	species, err := cfg.Species.buildSpeciesStore()
	if err != nil {
		return nil, fmt.Errorf("creating species store: %w", err)
	}

	// The world runs the area initializer under its own write lock.
	area := game.NewArea(t.Area, species)
	w, err := world.New(append(t.WorldOptions(), world.WithInitializer(area.Init))...)
	if err != nil {
		return nil, fmt.Errorf("creating world: %w", err)
	}

	nats, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	publisher := messaging.NewPublisher(nats, w, nats.Ready())

	sessions, err := session.NewManager(w, area, nats,
		session.WithRateLimits(t.Rates()),
		session.WithReady(nats.Ready()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating session manager: %w", err)
	}

	cm := listener.NewConnectionManager(sessions, listener.WithMaxConnections(cfg.Sessions.MaxConnections))

	listeners := make(service.WorkerList, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		worker, err := l.buildListener(cm)
		if err != nil {
			return nil, fmt.Errorf("creating listener %d: %w", i, err)
		}
		listeners[fmt.Sprintf("%s-%d", l.Protocol, l.Port)] = worker
	}

	workers := service.WorkerList{
		"world":     w,
		"nats":      nats,
		"publisher": publisher,
		"sessions":  sessions,
		"listeners": &listeners,
	}

	gauges := []console.Gauge{
		{Name: "Connections", Value: func() uint64 { return uint64(cm.Active()) }},
		{Name: "Publish failures", Value: publisher.Failed},
	}

	if obs := cfg.Observer.buildServer(w); obs != nil {
		workers["observer"] = obs
		gauges = append(gauges,
			console.Gauge{Name: "Observers", Value: func() uint64 { return uint64(obs.Observers()) }},
			console.Gauge{Name: "Observer drops", Value: obs.Dropped},
		)
	}

	if j := cfg.Journal.buildJournal(w); j != nil {
		workers["journal"] = j
		gauges = append(gauges,
			console.Gauge{Name: "Journal written", Value: j.Written},
			console.Gauge{Name: "Journal drops", Value: j.Dropped},
		)
	}

	if cfg.Console.Enabled {
		opts := []console.ConsoleOpt{console.WithGauges(gauges...)}
		if cfg.Console.Refresh != "" {
			d, err := time.ParseDuration(cfg.Console.Refresh)
			if err != nil {
				return nil, fmt.Errorf("parsing console refresh: %w", err)
			}
			opts = append(opts, console.WithRefresh(d))
		}
		c := console.New(w, opts...)
		// The console owns the terminal, so logs go to its records pane.
		c.CaptureLogs()
		workers["console"] = c
	}

	return workers, nil
}
