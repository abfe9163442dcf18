package fusion_test

import (
	"fmt"
	"testing"

	"github.com/pickled-dev/smt-tools/pkg/compendium"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

func loadFixture(t *testing.T) *compendium.Compendium {
	t.Helper()
	c, err := compendium.LoadYAML("testdata/compendium.yaml")
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return c
}

func TestMaxInherit(t *testing.T) {
	t.Parallel()

	for sources, want := range map[int]int{2: 4, 3: 5, 4: 6, 5: 6} {
		if got := fusion.MaxInherit(sources); got != want {
			t.Errorf("MaxInherit(%d) = %d, want %d", sources, got, want)
		}
	}
}

func TestChecker_Creature(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)

	tests := []struct {
		name     string
		creature string
		skills   []string
		maxLevel int
		want     *fusion.Failure
	}{
		{
			name:     "creature above level cap",
			creature: "Mara",
			skills:   []string{"Zio"},
			maxLevel: 10,
			want:     &fusion.Failure{Reason: fusion.ReasonCreatureLevelTooHigh, Creature: "Mara", MaxLevel: 10},
		},
		{
			name:     "treasure creature",
			creature: "Hope Diamond",
			skills:   []string{"Megido"},
			want:     &fusion.Failure{Reason: fusion.ReasonNonFusible, Creature: "Hope Diamond"},
		},
		{
			name:     "skill unique to another creature",
			creature: "Pixie",
			skills:   []string{"Lullaby"},
			want:     &fusion.Failure{Reason: fusion.ReasonUniqueMismatch, Creature: "Pixie", Skill: "Lullaby", Owner: "Kodama"},
		},
		{
			name:     "element rejected by inheritance type",
			creature: "Jack Frost",
			skills:   []string{"Agi"},
			want:     &fusion.Failure{Reason: fusion.ReasonInheritanceIncompatible, Creature: "Jack Frost", Skill: "Agi"},
		},
		{
			name:     "skill above level cap",
			creature: "Lamia",
			skills:   []string{"Maragion"},
			maxLevel: 15,
			want:     &fusion.Failure{Reason: fusion.ReasonSkillLevelTooHigh, Creature: "Lamia", Skill: "Maragion", MaxLevel: 15},
		},
		{
			name:     "five skills with one innate",
			creature: "Lamia",
			skills:   []string{"Agi", "Lunge", "Dia", "Rampage", "Rakukaja"},
		},
		{
			name:     "six skills with one innate",
			creature: "Lamia",
			skills:   []string{"Agi", "Lunge", "Dia", "Media", "Rakukaja", "Dodge Fire"},
			want:     &fusion.Failure{Reason: fusion.ReasonInheritLimitExceeded, Creature: "Lamia", Need: 2},
		},
		{
			name:     "special creature inherits five",
			creature: "Neko Shogun",
			skills:   []string{"Agi", "Bufu", "Zio", "Garu", "Dia", "Media"},
		},
		{
			name:     "special creature still capped",
			creature: "Neko Shogun",
			skills:   []string{"Agi", "Bufu", "Zio", "Garu", "Dia", "Lunge"},
			want:     &fusion.Failure{Reason: fusion.ReasonInheritLimitExceeded, Creature: "Neko Shogun", Need: 1},
		},
		{
			name:     "unknown creature",
			creature: "Satanael",
			skills:   []string{"Agi"},
			want:     &fusion.Failure{Reason: fusion.ReasonUnknownCreature, Creature: "Satanael"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			maxLevel := tc.maxLevel
			if maxLevel == 0 {
				maxLevel = fusion.DefaultMaxLevel
			}
			got := fusion.NewChecker(c, maxLevel).Creature(tc.skills, tc.creature)
			assertFailure(t, got, tc.want)
		})
	}
}

func TestChecker_SkillLevels(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)
	k := fusion.NewChecker(c, 15)

	if f := k.SkillLevels([]string{"Agi", "Media"}); f != nil {
		t.Errorf("SkillLevels(Agi, Media) = %v, want feasible", f)
	}
	assertFailure(t, k.SkillLevels([]string{"Agi", "Maragion", "Megido"}),
		&fusion.Failure{Reason: fusion.ReasonSkillLevelTooHigh, Skill: "Maragion", MaxLevel: 15})
}

func TestChecker_Recipe(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)
	k := fusion.NewChecker(c, fusion.DefaultMaxLevel)
	lamia := c.RecipesProducing("Lamia")

	// Pyro Jack + Jack Frost: Jack Frost cannot inherit fire.
	assertFailure(t, k.Recipe([]string{"Agi"}, lamia[0]),
		&fusion.Failure{Reason: fusion.ReasonInheritanceIncompatible, Creature: "Jack Frost", Skill: "Agi"})
	if f := k.Recipe([]string{"Agi"}, lamia[1]); f != nil {
		t.Errorf("Recipe(Agi, Hua Po + Arsene) = %v, want feasible", f)
	}
}

func TestChecker_Global(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)
	k := fusion.NewChecker(c, fusion.DefaultMaxLevel)

	tests := []struct {
		name   string
		skills []string
		want   *fusion.Failure
	}{
		{name: "four skills always pass", skills: []string{"Agi", "Bufu", "Zio", "Garu"}},
		{name: "one excess skill known innately somewhere", skills: []string{"Agi", "Lunge", "Bufu", "Zio", "Garu"}},
		{
			name:   "four excess skills known nowhere",
			skills: []string{"Agi", "Bufu", "Zio", "Garu", "Dia", "Lunge", "Rampage", "Megido"},
			want:   &fusion.Failure{Reason: fusion.ReasonInheritLimitExceeded, Need: 4},
		},
		{
			name:   "unique skill delegates to owner",
			skills: []string{"Lullaby", "Agi"},
			want:   &fusion.Failure{Reason: fusion.ReasonInheritanceIncompatible, Creature: "Kodama", Skill: "Agi"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assertFailure(t, k.Global(tc.skills), tc.want)
		})
	}
}

func TestChecker_PossibleDispatch(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)
	k := fusion.NewChecker(c, fusion.DefaultMaxLevel)
	recipe := c.RecipesProducing("Lamia")[0]

	assertFailure(t, k.Possible([]string{"Agi"}, "Jack Frost", nil),
		&fusion.Failure{Reason: fusion.ReasonInheritanceIncompatible, Creature: "Jack Frost", Skill: "Agi"})
	assertFailure(t, k.Possible([]string{"Agi"}, "", &recipe),
		&fusion.Failure{Reason: fusion.ReasonInheritanceIncompatible, Creature: "Jack Frost", Skill: "Agi"})
	if f := k.Possible([]string{"Agi"}, "", nil); f != nil {
		t.Errorf("Possible(Agi) = %v, want feasible", f)
	}

	defer func() {
		if recover() == nil {
			t.Error("Possible with both a creature and a recipe should panic")
		}
	}()
	k.Possible([]string{"Agi"}, "Lamia", &recipe)
}

// Any subset of a feasible skill set stays feasible.
func TestChecker_InheritanceCountMonotonic(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)
	k := fusion.NewChecker(c, fusion.DefaultMaxLevel)

	feasible := map[string][]string{
		"Lamia":       {"Agi", "Lunge", "Dia", "Rampage", "Rakukaja"},
		"Neko Shogun": {"Agi", "Bufu", "Zio", "Garu", "Dia", "Media"},
		"Pixie":       {"Zio", "Dia", "Garu", "Lunge", "Rakukaja"},
	}
	for creature, skills := range feasible {
		if f := k.InheritanceCount(skills, creature); f != nil {
			t.Fatalf("%s: full set infeasible: %v", creature, f)
		}
		for mask := 1; mask < 1<<len(skills); mask++ {
			var subset []string
			for i, s := range skills {
				if mask&(1<<i) != 0 {
					subset = append(subset, s)
				}
			}
			if f := k.InheritanceCount(subset, creature); f != nil {
				t.Errorf("%s: subset %v infeasible: %v", creature, subset, f)
			}
		}
	}
}

// Oversized skill sets reach the exported checks without request
// validation and must still answer promptly and correctly.
func TestChecker_OversizedSkillSets(t *testing.T) {
	t.Parallel()

	c := loadFixture(t)
	k := fusion.NewChecker(c, fusion.DefaultMaxLevel)

	skills := []string{"Rakukaja", "Rampage"}
	for i := len(skills); i < 70; i++ {
		skills = append(skills, fmt.Sprintf("Filler %d", i))
	}
	assertFailure(t, k.InheritanceCount(skills, "Lamia"),
		&fusion.Failure{Reason: fusion.ReasonInheritLimitExceeded, Creature: "Lamia", Need: 66})

	thirty := []string{"Agi", "Bufu", "Zio", "Garu", "Dia", "Lunge", "Rampage", "Megido"}
	for i := len(thirty); i < 30; i++ {
		thirty = append(thirty, "Rakukaja")
	}
	assertFailure(t, k.Global(thirty),
		&fusion.Failure{Reason: fusion.ReasonInheritLimitExceeded, Need: 26})
}

func TestFailure_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		f    fusion.Failure
		want string
	}{
		{
			f:    fusion.Failure{Reason: fusion.ReasonCreatureLevelTooHigh, Creature: "Mara", MaxLevel: 10},
			want: "Mara has a base level greater than the level cap of 10.",
		},
		{
			f:    fusion.Failure{Reason: fusion.ReasonInheritLimitExceeded, Need: 1},
			want: "Too many skills to inherit: some creature would have to learn 1 of the requested skill on their own, and cannot.",
		},
		{
			f:    fusion.Failure{Reason: fusion.ReasonUnknownSkill, Skill: "Agii", Suggestions: []string{"Agi", "Agilao", "Maragi"}},
			want: `Unknown skill "Agii". Did you mean Agi, Agilao, or Maragi?`,
		},
		{
			f:    fusion.Failure{Reason: fusion.ReasonUnknownCreature, Creature: "Pixy", Suggestions: []string{"Pixie"}},
			want: `Unknown creature "Pixy". Did you mean Pixie?`,
		},
	}
	for _, tc := range tests {
		if got := tc.f.Error(); got != tc.want {
			t.Errorf("Error() = %q\nwant      %q", got, tc.want)
		}
	}
}

func assertFailure(t *testing.T, got, want *fusion.Failure) {
	t.Helper()
	switch {
	case want == nil && got == nil:
		return
	case want == nil:
		t.Fatalf("got failure %+v, want feasible", *got)
	case got == nil:
		t.Fatalf("got feasible, want %+v", *want)
	}
	if got.Reason != want.Reason || got.Creature != want.Creature || got.Skill != want.Skill ||
		got.Owner != want.Owner || got.Need != want.Need || got.MaxLevel != want.MaxLevel {
		t.Errorf("failure = %+v\nwant      %+v", *got, *want)
	}
}
