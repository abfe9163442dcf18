package fusion

import (
	"fmt"
	"strings"
)

// Reason classifies why a creature, recipe or request cannot satisfy a
// skill set. The values are stable and safe to expose to clients.
type Reason string

const (
	// ReasonCreatureLevelTooHigh means the creature's level exceeds the cap.
	ReasonCreatureLevelTooHigh Reason = "CreatureLevelTooHigh"

	// ReasonSkillLevelTooHigh means a skill's minimum level exceeds the cap.
	ReasonSkillLevelTooHigh Reason = "SkillLevelTooHigh"

	// ReasonNonFusible means the creature is excluded from fusion.
	ReasonNonFusible Reason = "NonFusible"

	// ReasonUniqueMismatch means a requested skill belongs to another creature.
	ReasonUniqueMismatch Reason = "UniqueMismatch"

	// ReasonInheritanceIncompatible means the creature's inheritance type
	// rejects a skill's element.
	ReasonInheritanceIncompatible Reason = "InheritanceIncompatible"

	// ReasonInheritLimitExceeded means too many skills must be inherited and
	// not enough of them can be learned innately instead.
	ReasonInheritLimitExceeded Reason = "InheritLimitExceeded"

	// ReasonUnknownCreature means the requested creature does not exist.
	ReasonUnknownCreature Reason = "UnknownCreature"

	// ReasonUnknownSkill means a requested skill does not exist.
	ReasonUnknownSkill Reason = "UnknownSkill"

	// ReasonInvalidRequest means the request is malformed (no skills, too
	// many skills).
	ReasonInvalidRequest Reason = "InvalidRequest"
)

// Failure is a domain infeasibility result. It is data, not a fault: the
// engine streams it to the caller and carries on with unrelated branches.
type Failure struct {
	Reason Reason `json:"reason"`

	// Creature is the creature the check ran against, when there was one.
	Creature string `json:"creature,omitempty"`

	// Skill is the offending skill for skill-specific reasons.
	Skill string `json:"skill,omitempty"`

	// Owner is the unique owner for [ReasonUniqueMismatch].
	Owner string `json:"owner,omitempty"`

	// Need is the number of skills that would have to be learned innately
	// for [ReasonInheritLimitExceeded].
	Need int `json:"need,omitempty"`

	// MaxLevel is the level cap in force for level-related reasons.
	MaxLevel int `json:"max_level,omitempty"`

	// Detail describes the problem for [ReasonInvalidRequest].
	Detail string `json:"detail,omitempty"`

	// Suggestions lists close matches for unknown names.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements error with a player-facing explanation.
func (f *Failure) Error() string {
	switch f.Reason {
	case ReasonCreatureLevelTooHigh:
		return fmt.Sprintf("%s has a base level greater than the level cap of %d.", f.Creature, f.MaxLevel)
	case ReasonSkillLevelTooHigh:
		return fmt.Sprintf("The level cap of %d is lower than the level required to learn %s.", f.MaxLevel, f.Skill)
	case ReasonNonFusible:
		return fmt.Sprintf("%s is a treasure creature and cannot be fused.", f.Creature)
	case ReasonUniqueMismatch:
		return fmt.Sprintf("%s is unique to %s, but %s was requested.", f.Skill, f.Owner, f.Creature)
	case ReasonInheritanceIncompatible:
		return fmt.Sprintf("The inheritance type of %s forbids inheriting %s.", f.Creature, f.Skill)
	case ReasonInheritLimitExceeded:
		who := "some creature"
		if f.Creature != "" {
			who = f.Creature
		}
		noun := "skills"
		if f.Need == 1 {
			noun = "skill"
		}
		return fmt.Sprintf("Too many skills to inherit: %s would have to learn %d of the requested %s on their own, and cannot.", who, f.Need, noun)
	case ReasonUnknownCreature:
		return withSuggestions(fmt.Sprintf("Unknown creature %q.", f.Creature), f.Suggestions)
	case ReasonUnknownSkill:
		return withSuggestions(fmt.Sprintf("Unknown skill %q.", f.Skill), f.Suggestions)
	case ReasonInvalidRequest:
		return "Invalid request: " + f.Detail
	}
	return string(f.Reason)
}

func withSuggestions(msg string, suggestions []string) string {
	if len(suggestions) == 0 {
		return msg
	}
	return msg + " Did you mean " + joinList(suggestions, "or") + "?"
}

// joinList renders items as "A", "A and B" or "A, B, and C".
func joinList(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " " + conj + " " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", " + conj + " " + items[len(items)-1]
}
