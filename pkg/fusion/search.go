package fusion

import (
	"context"
	"slices"

	"github.com/pickled-dev/smt-tools/pkg/compendium"
)

// Sink receives search results in discovery order. Returning false stops the
// search; no further results, including Done, are delivered.
type Sink func(Result) bool

// Searcher runs fusion-chain searches against one compendium. It holds no
// per-search state and is safe for concurrent use.
type Searcher struct {
	c *compendium.Compendium
}

// New returns a Searcher over c.
func New(c *compendium.Compendium) *Searcher {
	return &Searcher{c: c}
}

// Compendium returns the reference index the searcher reads.
func (s *Searcher) Compendium() *compendium.Compendium { return s.c }

// Run executes req synchronously, depth-first and in recipe declaration
// order, pushing every chain and failure to sink as soon as it is found.
// A Done result carrying the run's [Stats] is always the last record, unless
// sink stopped the search first.
//
// Domain infeasibility is reported through sink. The returned error is
// non-nil only when ctx ends the search early.
func (s *Searcher) Run(ctx context.Context, req Request, sink Sink) error {
	req = req.WithDefaults()
	r := &run{
		ctx:   ctx,
		c:     s.c,
		req:   req,
		check: NewChecker(s.c, req.MaxLevel),
		sink:  sink,
	}
	r.search()
	stats := r.stats
	r.deliver(Result{Kind: KindDone, Stats: &stats})
	return ctx.Err()
}

// Stats summarises one search.
type Stats struct {
	// Steps counts creatures and recipes visited.
	Steps int `json:"steps"`

	// Chains is the number of chains emitted.
	Chains int `json:"chains"`

	// Failures is the number of failures emitted.
	Failures int `json:"failures"`
}

// run is the private state of one search invocation.
type run struct {
	ctx     context.Context
	c       *compendium.Compendium
	req     Request
	check   *Checker
	sink    Sink
	stats   Stats
	stopped bool // sink declined further results
}

func (r *run) search() {
	if f := r.req.validate(); f != nil {
		r.fail(f)
		return
	}
	if f := r.unknownNames(); f != nil {
		r.fail(f)
		return
	}

	if r.req.Creature != "" {
		r.pinned(r.req.Skills, r.req.Creature)
		return
	}

	// A unique skill collapses the search onto its owner, which knows the
	// skill innately.
	for _, name := range r.req.Skills {
		sk, _ := r.c.Skill(name)
		if sk.Unique != "" {
			r.pinned(r.req.Skills, sk.Unique)
			return
		}
	}

	if f := r.check.SkillLevels(r.req.Skills); f != nil {
		r.fail(f)
		return
	}
	if f := r.check.Global(r.req.Skills); f != nil {
		r.fail(f)
		return
	}

	for _, name := range r.candidates() {
		if r.halted() || r.req.capReached(r.stats.Chains) {
			return
		}
		r.pinned(r.req.Skills, name)
	}
}

// unknownNames reports the first request name missing from the compendium.
func (r *run) unknownNames() *Failure {
	if r.req.Creature != "" && !r.c.HasCreature(r.req.Creature) {
		return &Failure{Reason: ReasonUnknownCreature, Creature: r.req.Creature}
	}
	for _, name := range r.req.Skills {
		if !r.c.HasSkill(name) {
			return &Failure{Reason: ReasonUnknownSkill, Skill: name}
		}
	}
	return nil
}

// candidates returns the unpinned search roots in declaration order: the
// creatures knowing at least one target skill innately, or every creature
// for a deep search.
func (r *run) candidates() []string {
	all := r.c.Creatures()
	if r.req.DeepSearch {
		return all
	}
	want := make(map[string]bool)
	for _, skill := range r.req.Skills {
		for _, name := range r.c.CreaturesWithInnate(skill) {
			want[name] = true
		}
	}
	return slices.DeleteFunc(all, func(name string) bool { return !want[name] })
}

// pinned enumerates every chain ending in creature name. Infeasible roots
// are reported; infeasible recipes are skipped silently.
func (r *run) pinned(skills []string, name string) {
	r.stats.Steps++
	if f := r.check.Creature(skills, name); f != nil {
		r.fail(f)
		return
	}
	cr, _ := r.c.Creature(name)
	innate, remaining := partition(skills, cr)

	// A creature that already knows everything needs no fusion.
	if len(remaining) == 0 {
		return
	}
	if len(remaining) > inheritOrdinary {
		return
	}

	for _, recipe := range r.c.RecipesProducing(name) {
		if r.halted() || r.req.capReached(r.stats.Chains) {
			return
		}
		r.stats.Steps++
		if r.check.Recipe(remaining, recipe) != nil {
			continue
		}
		found := r.found(remaining, recipe)
		if len(found) == 0 && !r.req.DeepSearch {
			continue
		}
		if len(found) == len(remaining) {
			r.emit([]Step{{Recipe: recipe, Skills: found}}, innate)
			continue
		}
		diff := minus(remaining, found)
		for _, src := range recipe.Sources {
			if r.halted() || r.req.capReached(r.stats.Chains) {
				return
			}
			steps := r.solve(diff, 0, src)
			if steps == nil {
				continue
			}
			r.emit(append(steps, Step{Recipe: recipe, Skills: found}), innate)
		}
	}
}

// solve finds one chain that ends in creature name carrying skills, or nil.
// The returned steps are ordered from the first fusion to the last.
func (r *run) solve(skills []string, depth int, name string) []Step {
	r.stats.Steps++
	if len(skills) == 0 {
		panic("fusion: solve called with no outstanding skills")
	}
	if depth > r.req.RecursionLimit {
		return nil
	}
	if r.check.Creature(skills, name) != nil {
		return nil
	}
	for _, recipe := range r.c.RecipesProducing(name) {
		if r.halted() {
			return nil
		}
		r.stats.Steps++
		if r.check.Recipe(skills, recipe) != nil {
			continue
		}
		found := r.found(skills, recipe)
		if len(found) == len(skills) {
			return []Step{{Recipe: recipe, Skills: slices.Clone(skills)}}
		}
		if len(found) == 0 && !r.req.DeepSearch {
			continue
		}
		diff := minus(skills, found)
		for _, src := range recipe.Sources {
			if steps := r.solve(diff, depth+1, src); steps != nil {
				return append(steps, Step{Recipe: recipe, Skills: found})
			}
		}
	}
	return nil
}

// found returns the skills, in request order, that some source of recipe
// knows innately.
func (r *run) found(skills []string, recipe compendium.Recipe) []string {
	var out []string
	for _, skill := range skills {
		for _, src := range recipe.Sources {
			cr, err := r.c.Creature(src)
			if err == nil && cr.Knows(skill) {
				out = append(out, skill)
				break
			}
		}
	}
	return out
}

func (r *run) emit(steps []Step, innate []string) {
	chain := Assemble(r.c, steps, innate)
	r.stats.Chains++
	r.deliver(Result{Kind: KindChain, Chain: &chain})
}

func (r *run) fail(f *Failure) {
	r.stats.Failures++
	r.deliver(Result{Kind: KindFailure, Failure: f})
}

func (r *run) deliver(res Result) {
	if r.stopped {
		return
	}
	if !r.sink(res) {
		r.stopped = true
	}
}

// halted reports whether the consumer or the context ended the search.
func (r *run) halted() bool {
	return r.stopped || r.ctx.Err() != nil
}

// partition splits skills into those cr knows innately and the rest,
// preserving request order.
func partition(skills []string, cr *compendium.Creature) (innate, remaining []string) {
	for _, s := range skills {
		if cr.Knows(s) {
			innate = append(innate, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	return innate, remaining
}

// minus returns the elements of a not in b, preserving order.
func minus(a, b []string) []string {
	out := make([]string, 0, len(a))
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}
