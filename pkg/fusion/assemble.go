package fusion

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pickled-dev/smt-tools/pkg/compendium"
)

// Step is one fusion in a chain and the skills first inherited by its result
// at that fusion.
type Step struct {
	Recipe compendium.Recipe `json:"recipe"`
	Skills []string          `json:"skills"`
}

// Chain is a complete, ordered fusion plan ending in Result.
type Chain struct {
	Steps []Step `json:"steps"`

	// Result is the creature produced by the last step.
	Result string `json:"result"`

	// Innate lists the requested skills the result learns on its own.
	Innate []string `json:"innate"`

	// Inherited holds, per step, every skill the step's result must carry:
	// the skills inherited at that step plus everything carried in from
	// earlier steps.
	Inherited [][]string `json:"inherited"`

	// Cost is the sum of step costs.
	Cost int `json:"cost"`

	// Level is the highest level of any creature touched by the chain.
	Level int `json:"level"`

	// Directions is a human-readable line per step, plus a trailing line
	// for innate skills when there are any.
	Directions []string `json:"directions"`
}

// Assemble derives cost, level, forward-accumulated inherited skills and
// directions for steps, ordered from the first fusion to the last. steps
// must not be empty.
func Assemble(c *compendium.Compendium, steps []Step, innate []string) Chain {
	chain := Chain{
		Steps:     make([]Step, len(steps)),
		Result:    steps[len(steps)-1].Recipe.Result,
		Innate:    slices.Clone(innate),
		Inherited: make([][]string, len(steps)),
	}
	if chain.Innate == nil {
		chain.Innate = []string{}
	}

	for i, st := range steps {
		chain.Steps[i] = Step{Recipe: st.Recipe, Skills: slices.Clone(st.Skills)}
		chain.Cost += st.Recipe.Cost

		inherited := slices.Clone(st.Skills)
		if i > 0 {
			for _, s := range chain.Inherited[i-1] {
				if !slices.Contains(inherited, s) {
					inherited = append(inherited, s)
				}
			}
		}
		if inherited == nil {
			inherited = []string{}
		}
		chain.Inherited[i] = inherited

		for _, name := range append(slices.Clone(st.Recipe.Sources), st.Recipe.Result) {
			if cr, err := c.Creature(name); err == nil && cr.Level > chain.Level {
				chain.Level = cr.Level
			}
		}
	}

	chain.Directions = directions(chain)
	return chain
}

func directions(chain Chain) []string {
	lines := make([]string, 0, len(chain.Steps)+1)
	for i, st := range chain.Steps {
		var b strings.Builder
		fmt.Fprintf(&b, "Step %d: ", i+1)
		r := st.Recipe
		if r.Special() {
			fmt.Fprintf(&b, "Use the special recipe to fuse %s from %s.", r.Result, joinList(r.Sources, "and"))
		} else {
			fmt.Fprintf(&b, "Fuse %s with %s to make %s.", r.Sources[0], r.Sources[1], r.Result)
		}
		if skills := chain.Inherited[i]; len(skills) > 0 {
			fmt.Fprintf(&b, " Have %s inherit %s.", r.Result, joinList(skills, "and"))
		}
		lines = append(lines, b.String())
	}
	if len(chain.Innate) > 0 {
		lines = append(lines, fmt.Sprintf("%s will learn %s on their own.", chain.Result, joinList(chain.Innate, "and")))
	}
	return lines
}
