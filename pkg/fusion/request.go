package fusion

import "fmt"

// Request defaults.
const (
	DefaultMaxLevel       = 99
	DefaultRecursionLimit = 2
	DefaultResultCap      = 20

	// MaxSkills is the largest skill set a creature can carry.
	MaxSkills = 8
)

// Request describes one search invocation.
type Request struct {
	// Skills is the target skill set. Must not be empty.
	Skills []string `json:"skills" yaml:"skills"`

	// Creature optionally pins the result creature.
	Creature string `json:"creature,omitempty" yaml:"creature,omitempty"`

	// MaxLevel caps every creature and skill level. Zero or negative means
	// [DefaultMaxLevel].
	MaxLevel int `json:"max_level,omitempty" yaml:"max_level,omitempty"`

	// DeepSearch keeps recipes whose sources know none of the outstanding
	// skills, and widens the unpinned candidate roots to every creature.
	DeepSearch bool `json:"deep_search,omitempty" yaml:"deep_search,omitempty"`

	// RecursionLimit is the deepest sub-search depth explored. Zero means
	// [DefaultRecursionLimit]; a negative value disables recursion so only
	// single-step chains are found.
	RecursionLimit int `json:"recursion_limit,omitempty" yaml:"recursion_limit,omitempty"`

	// ResultCap bounds the number of chains emitted. Zero means
	// [DefaultResultCap]; a negative value removes the cap.
	ResultCap int `json:"result_cap,omitempty" yaml:"result_cap,omitempty"`
}

// WithDefaults returns a copy of r with zero fields replaced by their
// defaults and the skill list de-duplicated (first occurrence wins).
func (r Request) WithDefaults() Request {
	if r.MaxLevel <= 0 {
		r.MaxLevel = DefaultMaxLevel
	}
	if r.RecursionLimit == 0 {
		r.RecursionLimit = DefaultRecursionLimit
	}
	if r.ResultCap == 0 {
		r.ResultCap = DefaultResultCap
	}
	seen := make(map[string]bool, len(r.Skills))
	skills := make([]string, 0, len(r.Skills))
	for _, s := range r.Skills {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		skills = append(skills, s)
	}
	r.Skills = skills
	return r
}

// capReached reports whether n emitted chains exhaust the result cap.
func (r Request) capReached(n int) bool {
	return r.ResultCap > 0 && n >= r.ResultCap
}

// validate checks the shape of an already-defaulted request.
func (r Request) validate() *Failure {
	switch {
	case len(r.Skills) == 0:
		return &Failure{Reason: ReasonInvalidRequest, Detail: "at least one skill is required"}
	case len(r.Skills) > MaxSkills:
		return &Failure{Reason: ReasonInvalidRequest, Detail: fmt.Sprintf("at most %d skills can be requested, got %d", MaxSkills, len(r.Skills))}
	}
	return nil
}
