package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixil98/go-testutil"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

func writeAsset(t *testing.T, dir, file string, asset Asset[*creatureSpec]) {
	t.Helper()
	data, err := json.Marshal(asset)
	if err != nil {
		t.Fatalf("failed to marshal test asset: %v", err)
	}
	err = os.WriteFile(filepath.Join(dir, file), data, 0644)
	if err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func TestNewFileStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "path", store.path, tmpDir)
	testutil.AssertEqual(t, "records length", len(store.records), 0)
}

func TestNewFileStore_NonExistentDirectory(t *testing.T) {
	_, err := NewFileStore[*creatureSpec]("/nonexistent/path/that/does/not/exist")
	if err == nil {
		t.Error("expected error for non-existent directory")
	}
}

func TestNewFileStore_Load(t *testing.T) {
	tests := map[string]struct {
		files    map[string]string
		expCount int
		expErr   string
	}{
		"valid assets": {
			files: map[string]string{
				"dwarf.json":  `{"version":1,"id":"dwarf","spec":{"name":"dwarf","hit_points":12}}`,
				"goblin.json": `{"version":1,"id":"goblin","spec":{"name":"goblin","hit_points":6}}`,
			},
			expCount: 2,
		},
		"non-json files ignored": {
			files: map[string]string{
				"dwarf.json": `{"version":1,"id":"dwarf","spec":{"name":"dwarf","hit_points":12}}`,
				"readme.txt": "ignore me",
				"data.yaml":  "ignore: me",
			},
			expCount: 1,
		},
		"invalid json": {
			files:  map[string]string{"bad.json": `{invalid json`},
			expErr: "loading bad.json",
		},
		"validation error": {
			files:  map[string]string{"ghost.json": `{"version":1,"id":"ghost","spec":{"name":"ghost"}}`},
			expErr: "validating ghost.json",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tmpDir := t.TempDir()
			for file, content := range tt.files {
				if err := os.WriteFile(filepath.Join(tmpDir, file), []byte(content), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			}

			store, err := NewFileStore[*creatureSpec](tmpDir)
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "record count", len(store.GetAll()), tt.expCount)
		})
	}
}

func TestNewFileStore_DuplicateKey(t *testing.T) {
	tmpDir := t.TempDir()

	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	asset := Asset[*creatureSpec]{
		Version:    1,
		Identifier: "dwarf",
		Spec:       &creatureSpec{Name: "dwarf", HitPoints: 12},
	}
	writeAsset(t, tmpDir, "dwarf.json", asset)
	writeAsset(t, subDir, "dwarf-copy.json", asset)

	_, err := NewFileStore[*creatureSpec](tmpDir)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestFileStore_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeAsset(t, tmpDir, "dwarf.json", Asset[*creatureSpec]{
		Version:    1,
		Identifier: "dwarf",
		Spec:       &creatureSpec{Name: "dwarf", HitPoints: 12},
	})

	store, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}

	tests := map[string]struct {
		id     string
		expNil bool
		expHP  int
	}{
		"existing record": {id: "dwarf", expHP: 12},
		"missing record":  {id: "elf", expNil: true},
		"empty id":        {id: "", expNil: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result := store.Get(tt.id)
			if tt.expNil {
				if result != nil {
					t.Errorf("expected nil, got %v", result)
				}
				return
			}
			if result == nil {
				t.Fatal("expected non-nil result")
			}
			testutil.AssertEqual(t, "hit points", result.HitPoints, tt.expHP)
		})
	}
}

func TestFileStore_GetAllReturnsCopy(t *testing.T) {
	store, err := NewFileStore[*creatureSpec](t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	store.records = map[string]*creatureSpec{
		"dwarf":  {Name: "dwarf", HitPoints: 12},
		"goblin": {Name: "goblin", HitPoints: 6},
	}

	result := store.GetAll()
	delete(result, "dwarf")

	testutil.AssertEqual(t, "store untouched", len(store.records), 2)
}

func TestFileStore_Save(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}

	err = store.Save("troll", &creatureSpec{Name: "troll", HitPoints: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached := store.Get("troll")
	if cached == nil {
		t.Fatal("expected cached record")
	}
	testutil.AssertEqual(t, "cached hit points", cached.HitPoints, 30)

	data, err := os.ReadFile(filepath.Join(tmpDir, "troll.json"))
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}

	var asset Asset[*creatureSpec]
	if err := json.Unmarshal(data, &asset); err != nil {
		t.Fatalf("failed to unmarshal saved data: %v", err)
	}
	testutil.AssertEqual(t, "asset version", asset.Version, uint(1))
	testutil.AssertEqual(t, "asset id", asset.Identifier, "troll")
	testutil.AssertEqual(t, "spec name", asset.Spec.Name, "troll")

	// A fresh store sees the saved asset.
	reloaded, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error reloading: %v", err)
	}
	testutil.AssertEqual(t, "reloaded", reloaded.Get("troll").HitPoints, 30)
}

func TestFileStore_SaveRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}

	err = store.Save("ghost", &creatureSpec{Name: "ghost"})
	testutil.AssertErrorContains(t, err, "hit_points must be positive")

	if _, statErr := os.Stat(filepath.Join(tmpDir, "ghost.json")); !os.IsNotExist(statErr) {
		t.Errorf("expected no file to be written, stat error: %v", statErr)
	}
	testutil.AssertEqual(t, "not cached", store.Get("ghost") == nil, true)
}

func TestFileStore_ReloadKeepsCacheOnError(t *testing.T) {
	tmpDir := t.TempDir()
	writeAsset(t, tmpDir, "dwarf.json", Asset[*creatureSpec]{
		Version:    1,
		Identifier: "dwarf",
		Spec:       &creatureSpec{Name: "dwarf", HitPoints: 12},
	})

	store, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "broken.json"), []byte(`{`), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	err = store.Reload()
	testutil.AssertErrorContains(t, err, "broken.json")
	testutil.AssertEqual(t, "cache kept", len(store.GetAll()), 1)
}

func TestFileStore_filePath(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewFileStore[*creatureSpec](tmpDir)
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}

	testutil.AssertEqual(t, "file path", store.filePath("dwarf"), filepath.Join(tmpDir, "dwarf.json"))
}

func TestNewFileStore_Schema(t *testing.T) {
	schema, err := jsonschema.CompileString("creature.schema.json", `{
	  "type": "object",
	  "required": ["version", "id", "spec"],
	  "properties": {
	    "spec": {
	      "type": "object",
	      "required": ["name"],
	      "properties": {"hit_points": {"type": "integer", "minimum": 1}}
	    }
	  }
	}`)
	if err != nil {
		t.Fatalf("compiling schema: %v", err)
	}

	tests := map[string]struct {
		file   string
		expErr string
	}{
		"matches": {
			file: `{"version":1,"id":"dwarf","spec":{"name":"dwarf","hit_points":12}}`,
		},
		"wrong type": {
			file:   `{"version":1,"id":"dwarf","spec":{"name":"dwarf","hit_points":"lots"}}`,
			expErr: "checking schema",
		},
		"missing spec": {
			file:   `{"version":1,"id":"dwarf"}`,
			expErr: "checking schema",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(filepath.Join(tmpDir, "dwarf.json"), []byte(tt.file), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			store, err := NewFileStore[*creatureSpec](tmpDir, WithSchema(schema))
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "hit points", store.Get("dwarf").HitPoints, 12)
		})
	}
}
