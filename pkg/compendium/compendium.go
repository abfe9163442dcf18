package compendium

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrCreatureNotFound is returned when a creature name does not resolve.
var ErrCreatureNotFound = errors.New("creature not found")

// ErrSkillNotFound is returned when a skill name does not resolve.
var ErrSkillNotFound = errors.New("skill not found")

// Compendium is the immutable reference index for one game title.
//
// Creatures, skills and recipes keep their declaration order; every
// derived lookup preserves it so that searches are deterministic.
type Compendium struct {
	game string

	creatures     map[string]*Creature
	creatureOrder []string
	skills        map[string]*Skill
	skillOrder    []string
	recipes       []Recipe

	producing   map[string][]Recipe
	consuming   map[string][]Recipe
	innateOwner map[string][]string
	inheritance map[string]map[string]bool
}

// New indexes d and validates its referential invariants:
//
//   - creature and skill names are unique and non-empty
//   - every recipe has at least two sources, and every source and result
//     resolves to a creature
//   - every unique owner and every innate skill resolves
//   - every creature's inheritance type, when set, is in the table
//
// All violations are reported together.
func New(d Data) (*Compendium, error) {
	c := &Compendium{
		game:        d.Game,
		creatures:   make(map[string]*Creature, len(d.Creatures)),
		skills:      make(map[string]*Skill, len(d.Skills)),
		producing:   make(map[string][]Recipe),
		consuming:   make(map[string][]Recipe),
		innateOwner: make(map[string][]string),
		inheritance: make(map[string]map[string]bool, len(d.Inheritance)),
	}
	var errs []error

	for i := range d.Creatures {
		cr := d.Creatures[i]
		if cr.Name == "" {
			errs = append(errs, fmt.Errorf("creatures[%d]: name must not be empty", i))
			continue
		}
		if _, dup := c.creatures[cr.Name]; dup {
			errs = append(errs, fmt.Errorf("creature %q declared twice", cr.Name))
			continue
		}
		cr.Skills = maps.Clone(cr.Skills)
		c.creatures[cr.Name] = &cr
		c.creatureOrder = append(c.creatureOrder, cr.Name)
	}

	for i := range d.Skills {
		sk := d.Skills[i]
		if sk.Name == "" {
			errs = append(errs, fmt.Errorf("skills[%d]: name must not be empty", i))
			continue
		}
		if _, dup := c.skills[sk.Name]; dup {
			errs = append(errs, fmt.Errorf("skill %q declared twice", sk.Name))
			continue
		}
		if sk.Unique != "" {
			if _, ok := c.creatures[sk.Unique]; !ok {
				errs = append(errs, fmt.Errorf("skill %q: unique owner %q is not a creature", sk.Name, sk.Unique))
			}
		}
		c.skills[sk.Name] = &sk
		c.skillOrder = append(c.skillOrder, sk.Name)
	}

	for typ, elements := range d.Inheritance {
		set := make(map[string]bool, len(elements))
		for _, e := range elements {
			set[e] = true
		}
		c.inheritance[typ] = set
	}

	// Innate owners are indexed in creature declaration order.
	for _, name := range c.creatureOrder {
		cr := c.creatures[name]
		if cr.Inherits != "" {
			if _, ok := c.inheritance[cr.Inherits]; !ok {
				errs = append(errs, fmt.Errorf("creature %q: unknown inheritance type %q", name, cr.Inherits))
			}
		}
		for _, sk := range sortedKeys(cr.Skills) {
			if _, ok := c.skills[sk]; !ok {
				errs = append(errs, fmt.Errorf("creature %q: innate skill %q is not a skill", name, sk))
				continue
			}
			c.innateOwner[sk] = append(c.innateOwner[sk], name)
		}
	}

	for i, r := range d.Recipes {
		if len(r.Sources) < 2 {
			errs = append(errs, fmt.Errorf("recipes[%d]: needs at least 2 sources, got %d", i, len(r.Sources)))
			continue
		}
		valid := true
		if _, ok := c.creatures[r.Result]; !ok {
			errs = append(errs, fmt.Errorf("recipes[%d]: result %q is not a creature", i, r.Result))
			valid = false
		}
		for _, src := range r.Sources {
			if _, ok := c.creatures[src]; !ok {
				errs = append(errs, fmt.Errorf("recipes[%d]: source %q is not a creature", i, src))
				valid = false
			}
		}
		if !valid {
			continue
		}
		r.Sources = slices.Clone(r.Sources)
		c.recipes = append(c.recipes, r)
		c.producing[r.Result] = append(c.producing[r.Result], r)
		seen := make(map[string]bool, len(r.Sources))
		for _, src := range r.Sources {
			if seen[src] {
				continue
			}
			seen[src] = true
			c.consuming[src] = append(c.consuming[src], r)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("compendium: invalid data: %w", errors.Join(errs...))
	}
	return c, nil
}

// Game returns the game title identifier.
func (c *Compendium) Game() string { return c.game }

// Creature returns the named creature.
// Returns an error wrapping [ErrCreatureNotFound] for unknown names.
func (c *Compendium) Creature(name string) (*Creature, error) {
	cr, ok := c.creatures[name]
	if !ok {
		return nil, fmt.Errorf("compendium: %q: %w", name, ErrCreatureNotFound)
	}
	return cr, nil
}

// Skill returns the named skill.
// Returns an error wrapping [ErrSkillNotFound] for unknown names.
func (c *Compendium) Skill(name string) (*Skill, error) {
	sk, ok := c.skills[name]
	if !ok {
		return nil, fmt.Errorf("compendium: %q: %w", name, ErrSkillNotFound)
	}
	return sk, nil
}

// HasCreature reports whether name resolves to a creature.
func (c *Compendium) HasCreature(name string) bool {
	_, ok := c.creatures[name]
	return ok
}

// HasSkill reports whether name resolves to a skill.
func (c *Compendium) HasSkill(name string) bool {
	_, ok := c.skills[name]
	return ok
}

// Creatures returns every creature name in declaration order.
func (c *Compendium) Creatures() []string { return slices.Clone(c.creatureOrder) }

// Skills returns every skill name in declaration order.
func (c *Compendium) Skills() []string { return slices.Clone(c.skillOrder) }

// Recipes returns every recipe in declaration order.
func (c *Compendium) Recipes() []Recipe { return slices.Clone(c.recipes) }

// RecipesProducing returns the recipes whose result is name, in
// declaration order. The returned slice must not be modified.
func (c *Compendium) RecipesProducing(name string) []Recipe { return c.producing[name] }

// RecipesConsuming returns the recipes that use name as a source, in
// declaration order. The returned slice must not be modified.
func (c *Compendium) RecipesConsuming(name string) []Recipe { return c.consuming[name] }

// CreaturesWithInnate returns the creatures that know skill innately, in
// declaration order.
func (c *Compendium) CreaturesWithInnate(skill string) []string {
	return slices.Clone(c.innateOwner[skill])
}

// SpecialRecipe returns the first multi-source recipe producing name.
// The second result is false for creatures that are not special-only or
// have no such recipe.
func (c *Compendium) SpecialRecipe(name string) (Recipe, bool) {
	cr, ok := c.creatures[name]
	if !ok || !cr.SpecialOnly {
		return Recipe{}, false
	}
	for _, r := range c.producing[name] {
		if r.Special() {
			return r, true
		}
	}
	return Recipe{}, false
}

// Inheritable reports whether creature may inherit skill. Skills without an
// element and creatures without an inheritance type are always compatible.
// Unknown names are never inheritable.
func (c *Compendium) Inheritable(creature, skill string) bool {
	cr, ok := c.creatures[creature]
	if !ok {
		return false
	}
	sk, ok := c.skills[skill]
	if !ok {
		return false
	}
	if sk.Element == "" || cr.Inherits == "" {
		return true
	}
	return c.inheritance[cr.Inherits][sk.Element]
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
