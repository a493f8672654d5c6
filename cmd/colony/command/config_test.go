package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pixil98/go-testutil"
	"golang.org/x/crypto/ssh"
)

var (
	sampleTuning  = filepath.Join("..", "..", "..", "assets", "tuning.yaml")
	sampleSpecies = filepath.Join("..", "..", "..", "assets", "species")
	sampleSchema  = filepath.Join("..", "..", "..", "schemas", "species.schema.json")
)

func validConfig() Config {
	return Config{
		Tuning:    sampleTuning,
		Species:   AssetConfig{Path: sampleSpecies, Schema: sampleSchema},
		Listeners: []ListenerConfig{{Protocol: ListenerTypeTelnet, Port: 4000}},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		modify func(*Config)
		expErr string
	}{
		"valid": {
			modify: func(*Config) {},
		},
		"missing tuning file": {
			modify: func(c *Config) { c.Tuning = "nope.yaml" },
			expErr: "tuning: invalid path",
		},
		"no species path": {
			modify: func(c *Config) { c.Species.Path = "" },
			expErr: "species: path is required",
		},
		"missing schema": {
			modify: func(c *Config) { c.Species.Schema = "nope.json" },
			expErr: "species: invalid schema",
		},
		"no listeners": {
			modify: func(c *Config) { c.Listeners = nil },
			expErr: "at least one listener is required",
		},
		"listener without port": {
			modify: func(c *Config) { c.Listeners[0].Port = 0 },
			expErr: "listener 0: port must be set",
		},
		"host key on telnet": {
			modify: func(c *Config) { c.Listeners[0].HostKeyPath = "key" },
			expErr: "host_key_path only applies to ssh listeners",
		},
		"negative max connections": {
			modify: func(c *Config) { c.Sessions.MaxConnections = -1 },
			expErr: "max_connections must not be negative",
		},
		"bad nats timeout": {
			modify: func(c *Config) { c.Nats.StartTimeout = "soon" },
			expErr: "nats: parsing start_timeout",
		},
		"bad observer addr": {
			modify: func(c *Config) { c.Observer.Addr = "8081" },
			expErr: "observer: invalid addr",
		},
		"negative journal queue": {
			modify: func(c *Config) { c.Journal.QueueSize = -5 },
			expErr: "journal: queue_size must not be negative",
		},
		"bad console refresh": {
			modify: func(c *Config) { c.Console.Refresh = "0s" },
			expErr: "console: refresh must be positive",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.expErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			testutil.AssertErrorContains(t, err, tt.expErr)
		})
	}
}

func TestConfig_UnmarshalSample(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "assets", "config.json"))
	if err != nil {
		t.Fatalf("reading sample config: %v", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "listeners", len(cfg.Listeners), 2)
	testutil.AssertEqual(t, "ssh", cfg.Listeners[1].Protocol, ListenerTypeSSH)
	testutil.AssertEqual(t, "observer", cfg.Observer.Addr, "127.0.0.1:8081")
	testutil.AssertEqual(t, "journal", cfg.Journal.Dir, "var/journal")
}

func TestListenerType_UnmarshalText(t *testing.T) {
	tests := map[string]struct {
		text   string
		exp    ListenerType
		expErr string
	}{
		"telnet":  {text: "telnet", exp: ListenerTypeTelnet},
		"ssh":     {text: "ssh", exp: ListenerTypeSSH},
		"unknown": {text: "gopher", expErr: "unknown listener type: gopher"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var lt ListenerType
			err := lt.UnmarshalText([]byte(tt.text))
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "type", lt, tt.exp)
		})
	}
}

func TestSampleSpeciesMatchSchema(t *testing.T) {
	c := AssetConfig{Path: sampleSpecies, Schema: sampleSchema}

	store, err := c.buildSpeciesStore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "species", len(store.GetAll()), 3)
	testutil.AssertEqual(t, "dwarf playable", store.Get("dwarf").Playable, true)
	testutil.AssertEqual(t, "goblin playable", store.Get("goblin").Playable, false)
}

func TestSpeciesSchemaRejects(t *testing.T) {
	dir := t.TempDir()
	bad := `{"version":1,"id":"ogre","spec":{"name":"ogre","symbol":"OG","hit_points":20}}`
	if err := os.WriteFile(filepath.Join(dir, "ogre.json"), []byte(bad), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	c := AssetConfig{Path: dir, Schema: sampleSchema}
	_, err := c.buildSpeciesStore()
	testutil.AssertErrorContains(t, err, "checking schema")
}

func TestBuildWorkers(t *testing.T) {
	tests := map[string]struct {
		modify  func(*Config)
		workers []string
	}{
		"minimal": {
			modify:  func(*Config) {},
			workers: []string{"listeners", "nats", "publisher", "sessions", "world"},
		},
		"everything": {
			modify: func(c *Config) {
				c.Observer.Addr = "127.0.0.1:0"
				c.Journal.Dir = t.TempDir()
			},
			workers: []string{"journal", "listeners", "nats", "observer", "publisher", "sessions", "world"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			workers, err := BuildWorkers(&cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var names []string
			for name := range workers {
				names = append(names, name)
			}
			sort.Strings(names)

			testutil.AssertEqual(t, "workers", len(names), len(tt.workers))
			for i := range names {
				testutil.AssertEqual(t, "worker", names[i], tt.workers[i])
			}
		})
	}
}

func TestBuildWorkers_BadConfigType(t *testing.T) {
	_, err := BuildWorkers("config")
	testutil.AssertErrorContains(t, err, "unable to cast config")
}

func TestListenerConfig_HostKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_ed25519")
	cl := ListenerConfig{Protocol: ListenerTypeSSH, Port: 4022, HostKeyPath: path}

	created, err := cl.hostKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("host key not written: %v", err)
	}
	testutil.AssertEqual(t, "mode", info.Mode().Perm(), os.FileMode(0o600))

	// The second load reads the same key back.
	loaded, err := cl.hostKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "fingerprint",
		ssh.FingerprintSHA256(loaded.PublicKey()),
		ssh.FingerprintSHA256(created.PublicKey()))
}

func TestListenerConfig_BadHostKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_ed25519")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cl := ListenerConfig{Protocol: ListenerTypeSSH, Port: 4022, HostKeyPath: path}
	_, err := cl.hostKey()
	testutil.AssertErrorContains(t, err, "parsing host key")
}
