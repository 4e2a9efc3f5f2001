package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

var (
	seedOnce sync.Once
	seedSnap Snapshot
	seedErr  error
)

// Seed returns a deep copy of the bundled catalog used on first run.
// Callers may mutate the result freely.
func Seed() (Snapshot, error) {
	seedOnce.Do(func() {
		seedSnap, seedErr = ParseYAML(seedYAML)
	})
	if seedErr != nil {
		return Snapshot{}, seedErr
	}
	return seedSnap.Clone(), nil
}

// ParseYAML decodes and validates a catalog snapshot in YAML form.
func ParseYAML(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if err := ValidateSnapshot(s); err != nil {
		return Snapshot{}, fmt.Errorf("validate catalog yaml: %w", err)
	}
	s.HeroProducts = FilterHero(s.HeroProducts, s.Products)
	return s.Clone(), nil
}

// MarshalYAML renders s as YAML.
func MarshalYAML(s Snapshot) ([]byte, error) {
	return yaml.Marshal(s)
}
