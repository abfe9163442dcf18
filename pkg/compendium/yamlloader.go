package compendium

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a compendium file, picking the decoder from the file
// extension: ".json" files go through [LoadJSON], everything else through
// [LoadYAML].
func Load(path string) (*Compendium, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path)
	default:
		return LoadYAML(path)
	}
}

// LoadYAML reads and indexes a YAML compendium file.
//
// Example:
//
//	game: p5
//	inheritance:
//	  fire: [fire, phys, heal, support, passive]
//	creatures:
//	  - name: Arsene
//	    race: Fool
//	    level: 1
//	    inherits: fire
//	    skills: {Eiha: 0, Cleave: 0}
//	skills:
//	  - name: Eiha
//	    element: curse
//	    level: 1
//	recipes:
//	  - sources: [Arsene, Pixie]
//	    result: Jack Frost
//	    cost: 1200
func LoadYAML(path string) (*Compendium, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("compendium: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadYAMLReader(f)
	if err != nil {
		return nil, fmt.Errorf("compendium: load %q: %w", path, err)
	}
	return c, nil
}

// LoadYAMLReader decodes YAML compendium data from r and indexes it.
// Unknown keys are rejected to catch typos in hand-maintained data files.
func LoadYAMLReader(r io.Reader) (*Compendium, error) {
	var d Data
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("compendium: decode yaml: %w", err)
	}
	return New(d)
}
