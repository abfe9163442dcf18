package mcp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pickled-dev/smt-tools/pkg/compendium"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

// SearchInput is the argument of search_fusion_chains.
type SearchInput struct {
	Skills     []string `json:"skills" jsonschema:"skills the resulting creature must know, at most 8"`
	Creature   string   `json:"creature,omitempty" jsonschema:"creature that must be the result; empty searches every creature"`
	MaxLevel   int      `json:"max_level,omitempty" jsonschema:"player level cap; defaults to the server setting"`
	DeepSearch bool     `json:"deep_search,omitempty" jsonschema:"also try recipes whose sources know none of the skills"`
	ResultCap  int      `json:"result_cap,omitempty" jsonschema:"maximum number of chains to return"`
}

// ChainSummary is one fusion chain in tool output.
type ChainSummary struct {
	Result     string   `json:"result" jsonschema:"creature produced by the chain"`
	Cost       int      `json:"cost" jsonschema:"estimated total fusion cost"`
	Level      int      `json:"level" jsonschema:"highest creature level involved"`
	Directions []string `json:"directions" jsonschema:"one instruction per fusion step"`
}

// FailureSummary is one infeasibility report in tool output.
type FailureSummary struct {
	Reason      string   `json:"reason" jsonschema:"machine-readable failure reason"`
	Message     string   `json:"message" jsonschema:"player-facing explanation"`
	Suggestions []string `json:"suggestions" jsonschema:"close matches when a name was not recognised"`
}

// SearchOutput is the result of search_fusion_chains.
type SearchOutput struct {
	Chains   []ChainSummary   `json:"chains"`
	Failures []FailureSummary `json:"failures"`
	Steps    int              `json:"steps" jsonschema:"creatures and recipes visited"`
}

// NameInput names a creature or skill.
type NameInput struct {
	Name string `json:"name" jsonschema:"creature or skill name, case-insensitive"`
}

// SkillLevel is an innate skill and the level it is learned at.
type SkillLevel struct {
	Name  string `json:"name"`
	Level int    `json:"level" jsonschema:"creature level at which the skill is learned; 0 means from the start"`
}

// CreatureOutput is the result of lookup_creature.
type CreatureOutput struct {
	Name     string       `json:"name"`
	Race     string       `json:"race"`
	Level    int          `json:"level"`
	Inherits string       `json:"inherits" jsonschema:"inheritance type; empty means every element"`
	Special  bool         `json:"special" jsonschema:"only obtainable through a special recipe"`
	Treasure bool         `json:"treasure" jsonschema:"cannot be fused at all"`
	Skills   []SkillLevel `json:"skills"`
}

// SkillOutput is the result of lookup_skill.
type SkillOutput struct {
	Name        string   `json:"name"`
	Element     string   `json:"element"`
	Level       int      `json:"level"`
	Unique      string   `json:"unique" jsonschema:"the only creature that can carry this skill, if any"`
	Description string   `json:"description"`
	InnateTo    []string `json:"innate_to" jsonschema:"creatures that learn the skill on their own"`
}

// RecipesInput is the argument of recipes_for.
type RecipesInput struct {
	Creature  string `json:"creature" jsonschema:"creature name, case-insensitive"`
	Consuming bool   `json:"consuming,omitempty" jsonschema:"list recipes using the creature as a source instead of producing it"`
}

// RecipeSummary is one fusion recipe in tool output.
type RecipeSummary struct {
	Sources []string `json:"sources"`
	Result  string   `json:"result"`
	Cost    int      `json:"cost"`
}

// RecipesOutput is the result of recipes_for.
type RecipesOutput struct {
	Creature string          `json:"creature"`
	Recipes  []RecipeSummary `json:"recipes"`
}

func searchTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "search_fusion_chains",
		Description: "Finds fusion chains that produce a creature knowing every requested skill. Chains come in discovery order (depth-first over recipe declaration order) and are not ranked by cost.",
	}
}

func lookupCreatureTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "lookup_creature",
		Description: "Describes a creature: race, base level, inheritance type and innate skills",
	}
}

func lookupSkillTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "lookup_skill",
		Description: "Describes a skill: element, level, unique owner and the creatures that learn it innately",
	}
}

func recipesForTool() *mcpsdk.Tool {
	return &mcpsdk.Tool{
		Name:        "recipes_for",
		Description: "Lists the fusion recipes that produce a creature, or that consume it",
	}
}

func (s *Server) searchHandler() mcpsdk.ToolHandlerFor[SearchInput, SearchOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in SearchInput) (*mcpsdk.CallToolResult, SearchOutput, error) {
		if len(in.Skills) == 0 {
			return nil, SearchOutput{}, errors.New("skills is required")
		}
		out, err := s.svc.Search(ctx, fusion.Request{
			Skills:     in.Skills,
			Creature:   in.Creature,
			MaxLevel:   in.MaxLevel,
			DeepSearch: in.DeepSearch,
			ResultCap:  in.ResultCap,
		})
		if err != nil {
			return nil, SearchOutput{}, fmt.Errorf("search: %w", err)
		}
		return nil, summarize(out), nil
	}
}

func (s *Server) lookupCreatureHandler() mcpsdk.ToolHandlerFor[NameInput, CreatureOutput] {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in NameInput) (*mcpsdk.CallToolResult, CreatureOutput, error) {
		info, err := s.svc.Creature(in.Name)
		if err != nil {
			return nil, CreatureOutput{}, err
		}
		skills := make([]SkillLevel, 0, len(info.Skills))
		for name, lvl := range info.Skills {
			skills = append(skills, SkillLevel{Name: name, Level: lvl})
		}
		slices.SortFunc(skills, func(a, b SkillLevel) int {
			return cmp.Or(cmp.Compare(a.Level, b.Level), cmp.Compare(a.Name, b.Name))
		})
		return nil, CreatureOutput{
			Name:     info.Name,
			Race:     info.Race,
			Level:    info.Level,
			Inherits: info.Inherits,
			Special:  info.SpecialOnly,
			Treasure: info.NonFusible,
			Skills:   skills,
		}, nil
	}
}

func (s *Server) lookupSkillHandler() mcpsdk.ToolHandlerFor[NameInput, SkillOutput] {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in NameInput) (*mcpsdk.CallToolResult, SkillOutput, error) {
		info, err := s.svc.Skill(in.Name)
		if err != nil {
			return nil, SkillOutput{}, err
		}
		return nil, SkillOutput{
			Name:        info.Name,
			Element:     info.Element,
			Level:       info.Level,
			Unique:      info.Unique,
			Description: info.Description,
			InnateTo:    info.InnateTo,
		}, nil
	}
}

func (s *Server) recipesForHandler() mcpsdk.ToolHandlerFor[RecipesInput, RecipesOutput] {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in RecipesInput) (*mcpsdk.CallToolResult, RecipesOutput, error) {
		info, err := s.svc.Creature(in.Creature)
		if err != nil {
			return nil, RecipesOutput{}, err
		}
		recipes := info.Producing
		if in.Consuming {
			recipes = info.Consuming
		}
		return nil, RecipesOutput{Creature: info.Name, Recipes: recipeSummaries(recipes)}, nil
	}
}

func summarize(out fusion.Outcome) SearchOutput {
	res := SearchOutput{
		Chains:   make([]ChainSummary, 0, len(out.Chains)),
		Failures: make([]FailureSummary, 0, len(out.Failures)),
		Steps:    out.Stats.Steps,
	}
	for _, ch := range out.Chains {
		res.Chains = append(res.Chains, ChainSummary{
			Result:     ch.Result,
			Cost:       ch.Cost,
			Level:      ch.Level,
			Directions: nonNil(ch.Directions),
		})
	}
	for _, f := range out.Failures {
		res.Failures = append(res.Failures, FailureSummary{
			Reason:      string(f.Reason),
			Message:     f.Error(),
			Suggestions: nonNil(f.Suggestions),
		})
	}
	return res
}

func recipeSummaries(recipes []compendium.Recipe) []RecipeSummary {
	out := make([]RecipeSummary, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, RecipeSummary{Sources: nonNil(r.Sources), Result: r.Result, Cost: r.Cost})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
