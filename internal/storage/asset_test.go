package storage

import (
	"fmt"
	"strings"
	"testing"
)

// creatureSpec is a minimal ValidatingSpec shaped like a species asset.
type creatureSpec struct {
	Name      string `json:"name"`
	HitPoints int    `json:"hit_points"`
}

func (s *creatureSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.HitPoints <= 0 {
		return fmt.Errorf("hit_points must be positive")
	}
	return nil
}

func TestAsset_Validate(t *testing.T) {
	valid := &creatureSpec{Name: "dwarf", HitPoints: 10}

	tests := map[string]struct {
		asset   Asset[*creatureSpec]
		expErrs []string
	}{
		"valid asset": {
			asset: Asset[*creatureSpec]{Version: 1, Identifier: "dwarf", Spec: valid},
		},
		"version not set": {
			asset:   Asset[*creatureSpec]{Identifier: "dwarf", Spec: valid},
			expErrs: []string{"version must be set"},
		},
		"empty identifier": {
			asset:   Asset[*creatureSpec]{Version: 1, Spec: valid},
			expErrs: []string{"id must be set"},
		},
		"identifier with spaces": {
			asset:   Asset[*creatureSpec]{Version: 1, Identifier: "cave troll", Spec: valid},
			expErrs: []string{"id must be alphanumeric"},
		},
		"identifier with underscore": {
			asset:   Asset[*creatureSpec]{Version: 1, Identifier: "cave_troll", Spec: valid},
			expErrs: []string{"id must be alphanumeric"},
		},
		"identifier with hyphen is valid": {
			asset: Asset[*creatureSpec]{Version: 1, Identifier: "cave-troll-2", Spec: valid},
		},
		"invalid spec": {
			asset:   Asset[*creatureSpec]{Version: 1, Identifier: "ghost", Spec: &creatureSpec{Name: "ghost"}},
			expErrs: []string{"hit_points must be positive"},
		},
		"multiple errors": {
			asset: Asset[*creatureSpec]{Spec: &creatureSpec{HitPoints: 1}},
			expErrs: []string{
				"version must be set",
				"id must be set",
				"name is required",
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.asset.Validate()

			if len(tt.expErrs) == 0 {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Errorf("expected errors %v, got nil", tt.expErrs)
				return
			}

			errStr := err.Error()
			for _, e := range tt.expErrs {
				if !strings.Contains(errStr, e) {
					t.Errorf("error %q does not contain %q", errStr, e)
				}
			}
		})
	}
}
