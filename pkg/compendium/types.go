// Package compendium holds the static reference data for a fusion game:
// creatures, skills, the fusion recipes connecting them, and the
// inheritance table that decides which skill elements a creature may
// inherit.
//
// A [Compendium] is built once per game title with [New] (or one of the
// loaders) and is immutable afterwards. It is safe to share across any
// number of concurrent searches.
//
// Supported input formats:
//   - Native YAML compendium files ([LoadYAML], [LoadYAMLReader])
//   - JSON compendium dumps ([LoadJSON], [ParseJSON])
package compendium

// Creature is a fusible (or treasure) game entity.
type Creature struct {
	// Name uniquely identifies the creature.
	Name string `yaml:"name" json:"name"`

	// Race is the creature's classification (arcana, clan, ...).
	Race string `yaml:"race" json:"race"`

	// Level is the minimum player level required to fuse or summon it.
	Level int `yaml:"level" json:"level"`

	// Skills maps every innate skill to the level at which the creature
	// learns it. The key set is the innate skill set.
	Skills map[string]int `yaml:"skills" json:"skills"`

	// Inherits is the creature's inheritance type, looked up in the
	// compendium's inheritance table. Empty means every element is allowed.
	Inherits string `yaml:"inherits,omitempty" json:"inherits,omitempty"`

	// SpecialOnly marks creatures that can only be made with a named
	// multi-source recipe.
	SpecialOnly bool `yaml:"special,omitempty" json:"special,omitempty"`

	// NonFusible marks creatures excluded from every search (treasure
	// creatures and the like).
	NonFusible bool `yaml:"treasure,omitempty" json:"treasure,omitempty"`
}

// Knows reports whether skill is one of the creature's innate skills.
func (c *Creature) Knows(skill string) bool {
	_, ok := c.Skills[skill]
	return ok
}

// Skill is a learnable ability.
type Skill struct {
	// Name uniquely identifies the skill.
	Name string `yaml:"name" json:"name"`

	// Element is the skill's element category. Empty means the skill is
	// inheritable by every creature.
	Element string `yaml:"element,omitempty" json:"element,omitempty"`

	// Level is the minimum level required to inherit or learn the skill.
	Level int `yaml:"level" json:"level"`

	// Unique names the only creature that may ever carry this skill.
	Unique string `yaml:"unique,omitempty" json:"unique,omitempty"`

	// Description is free-text effect text.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Recipe maps an ordered list of source creatures to a result creature.
type Recipe struct {
	// Sources lists the creatures consumed by the fusion, in declaration order.
	Sources []string `yaml:"sources" json:"sources"`

	// Result is the creature produced by the fusion.
	Result string `yaml:"result" json:"result"`

	// Cost is the in-game price estimate of performing the fusion.
	Cost int `yaml:"cost" json:"cost"`
}

// SourceCount returns the number of creatures the recipe consumes.
// 2 is an ordinary fusion, 3 a three-way fusion and 4 or more a special one.
func (r Recipe) SourceCount() int { return len(r.Sources) }

// Special reports whether the recipe has more than two sources.
func (r Recipe) Special() bool { return len(r.Sources) > 2 }

// Data is the raw, unvalidated content of a compendium as read from disk.
type Data struct {
	// Game identifies the game title (e.g. "p5").
	Game string `yaml:"game" json:"game"`

	// Inheritance maps an inheritance type to the skill elements it allows.
	Inheritance map[string][]string `yaml:"inheritance" json:"inheritance"`

	Creatures []Creature `yaml:"creatures" json:"creatures"`
	Skills    []Skill    `yaml:"skills" json:"skills"`
	Recipes   []Recipe   `yaml:"recipes" json:"recipes"`
}
