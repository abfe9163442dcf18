package fusion

import "github.com/pickled-dev/smt-tools/pkg/compendium"

// Inheritance caps by recipe size. These are fixed by the game rules.
const (
	inheritOrdinary = 4 // 2-source result
	inheritThreeWay = 5 // 3-source result
	inheritSpecial  = 6 // 4-or-more-source special result
)

// MaxInherit returns how many skills the result of a recipe with
// sourceCount sources may inherit.
func MaxInherit(sourceCount int) int {
	switch {
	case sourceCount >= 4:
		return inheritSpecial
	case sourceCount == 3:
		return inheritThreeWay
	}
	return inheritOrdinary
}

// Checker answers "can this creature, recipe or request ever satisfy these
// skills?" for one compendium and level cap. Every method is pure: a nil
// *Failure means feasible.
//
// Callers must pass names that resolve in the compendium; unknown names are
// reported as [ReasonUnknownCreature] or [ReasonUnknownSkill].
type Checker struct {
	c        *compendium.Compendium
	maxLevel int
}

// NewChecker returns a Checker enforcing maxLevel.
func NewChecker(c *compendium.Compendium, maxLevel int) *Checker {
	return &Checker{c: c, maxLevel: maxLevel}
}

// SkillLevels fails with [ReasonSkillLevelTooHigh] for the first skill whose
// minimum level exceeds the cap.
func (k *Checker) SkillLevels(skills []string) *Failure {
	for _, name := range skills {
		sk, err := k.c.Skill(name)
		if err != nil {
			return &Failure{Reason: ReasonUnknownSkill, Skill: name}
		}
		if sk.Level > k.maxLevel {
			return &Failure{Reason: ReasonSkillLevelTooHigh, Skill: name, MaxLevel: k.maxLevel}
		}
	}
	return nil
}

// Creature checks, in order: the creature's level against the cap, that it
// is fusible, then per skill uniqueness, inheritance compatibility and skill
// level, and finally [Checker.InheritanceCount].
func (k *Checker) Creature(skills []string, name string) *Failure {
	cr, err := k.c.Creature(name)
	if err != nil {
		return &Failure{Reason: ReasonUnknownCreature, Creature: name}
	}
	if cr.Level > k.maxLevel {
		return &Failure{Reason: ReasonCreatureLevelTooHigh, Creature: name, MaxLevel: k.maxLevel}
	}
	if cr.NonFusible {
		return &Failure{Reason: ReasonNonFusible, Creature: name}
	}
	for _, skillName := range skills {
		sk, err := k.c.Skill(skillName)
		if err != nil {
			return &Failure{Reason: ReasonUnknownSkill, Creature: name, Skill: skillName}
		}
		if sk.Unique != "" && sk.Unique != name {
			return &Failure{Reason: ReasonUniqueMismatch, Creature: name, Skill: skillName, Owner: sk.Unique}
		}
		if !k.c.Inheritable(name, skillName) {
			return &Failure{Reason: ReasonInheritanceIncompatible, Creature: name, Skill: skillName}
		}
		if sk.Level > k.maxLevel {
			return &Failure{Reason: ReasonSkillLevelTooHigh, Creature: name, Skill: skillName, MaxLevel: k.maxLevel}
		}
	}
	return k.InheritanceCount(skills, name)
}

// InheritanceCount checks that the skills beyond the creature's inheritance
// cap can be learned innately instead. The cap is 4 unless the creature is
// special-only, in which case it follows the size of its special recipe.
func (k *Checker) InheritanceCount(skills []string, name string) *Failure {
	cr, err := k.c.Creature(name)
	if err != nil {
		return &Failure{Reason: ReasonUnknownCreature, Creature: name}
	}
	maxInherit := inheritOrdinary
	if r, ok := k.c.SpecialRecipe(name); ok {
		maxInherit = MaxInherit(r.SourceCount())
	}
	if len(skills) <= maxInherit {
		return nil
	}
	need := len(skills) - maxInherit
	if hasInnateSubset(skills, need, cr) {
		return nil
	}
	return &Failure{Reason: ReasonInheritLimitExceeded, Creature: name, Need: need}
}

// Recipe is feasible iff every source passes [Checker.Creature]. The first
// failing source's failure is returned.
func (k *Checker) Recipe(skills []string, r compendium.Recipe) *Failure {
	for _, src := range r.Sources {
		if f := k.Creature(skills, src); f != nil {
			return f
		}
	}
	return nil
}

// Global checks a skill set with no creature pinned. A unique skill
// collapses the check onto its owner. Otherwise, when more than 4 skills are
// requested, some creature must know the excess innately.
func (k *Checker) Global(skills []string) *Failure {
	for _, name := range skills {
		sk, err := k.c.Skill(name)
		if err != nil {
			return &Failure{Reason: ReasonUnknownSkill, Skill: name}
		}
		if sk.Unique != "" {
			return k.Creature(skills, sk.Unique)
		}
	}
	if len(skills) <= inheritOrdinary {
		return nil
	}
	need := len(skills) - inheritOrdinary
	for _, name := range k.c.Creatures() {
		cr, _ := k.c.Creature(name)
		if hasInnateSubset(skills, need, cr) {
			return nil
		}
	}
	return &Failure{Reason: ReasonInheritLimitExceeded, Need: need}
}

// Possible dispatches to [Checker.Creature], [Checker.Recipe] or
// [Checker.Global] depending on which of creature and recipe is given.
// Passing both is a programming error and panics.
func (k *Checker) Possible(skills []string, creature string, recipe *compendium.Recipe) *Failure {
	switch {
	case creature != "" && recipe != nil:
		panic("fusion: Possible called with both a creature and a recipe")
	case recipe != nil:
		return k.Recipe(skills, *recipe)
	case creature != "":
		return k.Creature(skills, creature)
	}
	return k.Global(skills)
}

// hasInnateSubset reports whether some size-need subset of skills is wholly
// contained in cr's innate skills. Such a subset exists exactly when at least
// need of the skills are innate, so no subset enumeration is required and the
// check is linear for any number of skills.
func hasInnateSubset(skills []string, need int, cr *compendium.Creature) bool {
	if need <= 0 {
		return true
	}
	if need > len(skills) {
		return false
	}
	innate := 0
	for _, s := range skills {
		if cr.Knows(s) {
			innate++
		}
	}
	return innate >= need
}
