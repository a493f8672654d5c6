package command

import (
	"fmt"
	"os"

	"github.com/pixil98/go-colony/internal/game"
	"github.com/pixil98/go-colony/internal/storage"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// AssetConfig points at a directory of asset files and, optionally, a JSON
// schema every file in it must satisfy.
type AssetConfig struct {
	Path   string `json:"path"`
	Schema string `json:"schema,omitempty"`
}

func (c *AssetConfig) validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}
	if c.Schema != "" {
		if _, err := os.Stat(c.Schema); err != nil {
			return fmt.Errorf("%s: invalid schema %q: %w", name, c.Schema, err)
		}
	}

	return nil
}

func (c *AssetConfig) buildSpeciesStore() (*storage.FileStore[*game.Species], error) {
	var opts []storage.FileStoreOpt
	if c.Schema != "" {
		schema, err := jsonschema.Compile(c.Schema)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %q: %w", c.Schema, err)
		}
		opts = append(opts, storage.WithSchema(schema))
	}

	return storage.NewFileStore[*game.Species](c.Path, opts...)
}
