package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pickled-dev/smt-tools/internal/buildstore"
	"github.com/pickled-dev/smt-tools/pkg/compendium"
)

// NotFoundError reports a creature or skill name missing from the
// compendium, with the closest known names.
type NotFoundError struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Suggestions []string `json:"suggestions,omitempty"`
	err         error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %v?)", e.Suggestions)
	}
	return msg
}

// Unwrap returns [compendium.ErrCreatureNotFound] or
// [compendium.ErrSkillNotFound].
func (e *NotFoundError) Unwrap() error { return e.err }

// CreatureInfo is a creature plus the recipes that touch it.
type CreatureInfo struct {
	compendium.Creature
	Producing []compendium.Recipe `json:"producing"`
	Consuming []compendium.Recipe `json:"consuming"`
}

// SkillInfo is a skill plus the creatures that learn it innately.
type SkillInfo struct {
	compendium.Skill
	InnateTo []string `json:"innate_to"`
}

// Creature looks up name case-insensitively.
func (s *Service) Creature(name string) (*CreatureInfo, error) {
	idx := s.idx.Load()
	canonical, ok := idx.creatures.Resolve(name)
	if !ok {
		return nil, &NotFoundError{
			Kind:        "creature",
			Name:        name,
			Suggestions: idx.creatures.Suggest(name),
			err:         compendium.ErrCreatureNotFound,
		}
	}
	cr, err := idx.c.Creature(canonical)
	if err != nil {
		return nil, err
	}
	info := &CreatureInfo{
		Creature:  *cr,
		Producing: idx.c.RecipesProducing(canonical),
		Consuming: idx.c.RecipesConsuming(canonical),
	}
	if info.Producing == nil {
		info.Producing = []compendium.Recipe{}
	}
	if info.Consuming == nil {
		info.Consuming = []compendium.Recipe{}
	}
	return info, nil
}

// Skill looks up name case-insensitively.
func (s *Service) Skill(name string) (*SkillInfo, error) {
	idx := s.idx.Load()
	canonical, ok := idx.skills.Resolve(name)
	if !ok {
		return nil, &NotFoundError{
			Kind:        "skill",
			Name:        name,
			Suggestions: idx.skills.Suggest(name),
			err:         compendium.ErrSkillNotFound,
		}
	}
	sk, err := idx.c.Skill(canonical)
	if err != nil {
		return nil, err
	}
	info := &SkillInfo{Skill: *sk, InnateTo: idx.c.CreaturesWithInnate(canonical)}
	if info.InnateTo == nil {
		info.InnateTo = []string{}
	}
	return info, nil
}

// SuggestCreatures returns creature names close to input.
func (s *Service) SuggestCreatures(input string) []string {
	return s.idx.Load().creatures.Suggest(input)
}

// SuggestSkills returns skill names close to input.
func (s *Service) SuggestSkills(input string) []string {
	return s.idx.Load().skills.Suggest(input)
}

// CompleteCreatures returns up to limit creature names starting with prefix.
func (s *Service) CompleteCreatures(prefix string, limit int) []string {
	return s.idx.Load().creatures.Complete(prefix, limit)
}

// CompleteSkills returns up to limit skill names starting with prefix.
func (s *Service) CompleteSkills(prefix string, limit int) []string {
	return s.idx.Load().skills.Complete(prefix, limit)
}

// ErrNoBuildStore is returned by build queries when no store is configured.
var ErrNoBuildStore = errors.New("service: no build store configured")

// ListBuilds returns recorded searches, newest first.
func (s *Service) ListBuilds(ctx context.Context, opts buildstore.ListOptions) ([]buildstore.Build, error) {
	if s.builds == nil {
		return nil, ErrNoBuildStore
	}
	if opts.Target != "" {
		if name, ok := s.idx.Load().creatures.Resolve(opts.Target); ok {
			opts.Target = name
		}
	}
	return s.builds.List(ctx, opts)
}

// GetBuild returns one recorded search.
func (s *Service) GetBuild(ctx context.Context, id string) (buildstore.Build, error) {
	if s.builds == nil {
		return buildstore.Build{}, ErrNoBuildStore
	}
	return s.builds.Get(ctx, id)
}

// DeleteBuild removes one recorded search.
func (s *Service) DeleteBuild(ctx context.Context, id string) error {
	if s.builds == nil {
		return ErrNoBuildStore
	}
	return s.builds.Delete(ctx, id)
}
