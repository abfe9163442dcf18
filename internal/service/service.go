// Package service is the application layer around the fusion engine. It
// resolves and defaults requests, attaches name suggestions to unknown-name
// failures, bounds searches with a timeout, records metrics and spans, runs
// batches concurrently, and records finished searches in a build store.
//
// Every transport (HTTP, websocket, MCP, Discord, Lambda) goes through a
// [Service].
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pickled-dev/smt-tools/internal/buildstore"
	"github.com/pickled-dev/smt-tools/internal/namematch"
	"github.com/pickled-dev/smt-tools/internal/observe"
	"github.com/pickled-dev/smt-tools/pkg/compendium"
	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

// ErrBatchTooLarge is returned by [Service.Batch] when more requests are
// submitted than [Limits.MaxBatch] allows.
var ErrBatchTooLarge = errors.New("service: batch too large")

// Limits are the server-side search defaults. Zero fields leave the
// engine's own defaults in place.
type Limits struct {
	MaxLevel       int
	RecursionLimit int
	ResultCap      int

	// Timeout bounds a single search. Zero means no timeout.
	Timeout time.Duration

	// MaxBatch caps [Service.Batch]. Zero means no cap.
	MaxBatch int
}

// index is everything derived from one compendium. It is swapped as a unit
// when the compendium is reloaded.
type index struct {
	c         *compendium.Compendium
	searcher  *fusion.Searcher
	creatures *namematch.Matcher
	skills    *namematch.Matcher
}

func newIndex(c *compendium.Compendium) *index {
	return &index{
		c:         c,
		searcher:  fusion.New(c),
		creatures: namematch.New(c.Creatures()),
		skills:    namematch.New(c.Skills()),
	}
}

// Service is safe for concurrent use.
type Service struct {
	idx     atomic.Pointer[index]
	limits  atomic.Pointer[Limits]
	metrics *observe.Metrics
	builds  buildstore.Store
}

// Option is a functional option for [New].
type Option func(*Service)

// WithMetrics records search metrics to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBuildStore records every finished search in store.
func WithBuildStore(store buildstore.Store) Option {
	return func(s *Service) { s.builds = store }
}

// WithLimits sets the initial search limits.
func WithLimits(l Limits) Option {
	return func(s *Service) { s.limits.Store(&l) }
}

// New returns a Service searching c.
func New(c *compendium.Compendium, opts ...Option) *Service {
	s := &Service{}
	s.idx.Store(newIndex(c))
	s.limits.Store(&Limits{})
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Compendium returns the compendium currently searched.
func (s *Service) Compendium() *compendium.Compendium { return s.idx.Load().c }

// SetCompendium swaps in a new compendium. Searches already running finish
// against the old one.
func (s *Service) SetCompendium(c *compendium.Compendium) { s.idx.Store(newIndex(c)) }

// Limits returns the current search limits.
func (s *Service) Limits() Limits { return *s.limits.Load() }

// SetLimits replaces the search limits for subsequent searches.
func (s *Service) SetLimits(l Limits) { s.limits.Store(&l) }

// Builds returns the configured build store, or nil.
func (s *Service) Builds() buildstore.Store { return s.builds }

// Prepare applies server defaults to the zero fields of req and rewrites
// creature and skill names to their canonical spelling when they match
// case-insensitively. Unknown names are left as they are.
func (s *Service) Prepare(req fusion.Request) fusion.Request {
	idx := s.idx.Load()
	l := s.Limits()
	if req.MaxLevel == 0 {
		req.MaxLevel = l.MaxLevel
	}
	if req.RecursionLimit == 0 {
		req.RecursionLimit = l.RecursionLimit
	}
	if req.ResultCap == 0 {
		req.ResultCap = l.ResultCap
	}
	if req.Creature != "" {
		if name, ok := idx.creatures.Resolve(req.Creature); ok {
			req.Creature = name
		}
	}
	skills := make([]string, len(req.Skills))
	for i, sk := range req.Skills {
		if name, ok := idx.skills.Resolve(sk); ok {
			sk = name
		}
		skills[i] = sk
	}
	req.Skills = skills
	return req.WithDefaults()
}

// Run executes req like [fusion.Searcher.Run], pushing results to sink. On
// top of the engine it applies [Service.Prepare], the configured timeout,
// name suggestions, metrics, tracing and build recording.
func (s *Service) Run(ctx context.Context, req fusion.Request, sink fusion.Sink) (err error) {
	idx := s.idx.Load()
	req = s.Prepare(req)
	if timeout := s.Limits().Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	mode := "unpinned"
	if req.Creature != "" {
		mode = "pinned"
	}
	ctx, span := observe.StartSpan(ctx, "fusion.search",
		trace.WithAttributes(
			attribute.String("fusion.mode", mode),
			attribute.String("fusion.creature", req.Creature),
			attribute.StringSlice("fusion.skills", req.Skills),
			attribute.Int("fusion.max_level", req.MaxLevel),
			attribute.Bool("fusion.deep", req.DeepSearch),
		),
	)
	defer func() { observe.EndSpan(span, err) }()

	s.metrics.ActiveSearches.Add(ctx, 1)
	defer s.metrics.ActiveSearches.Add(ctx, -1)

	start := time.Now()
	out := fusion.Outcome{}
	finished := false
	err = idx.searcher.Run(ctx, req, func(res fusion.Result) bool {
		switch res.Kind {
		case fusion.KindChain:
			s.metrics.RecordChain(ctx)
		case fusion.KindFailure:
			res.Failure = idx.suggest(res.Failure)
			s.metrics.RecordFailure(ctx, string(res.Failure.Reason))
		case fusion.KindDone:
			finished = true
		}
		out.Add(res)
		return sink(res)
	})

	status := searchStatus(err, finished)
	s.metrics.RecordSearch(ctx, mode, status, time.Since(start), out.Stats.Steps)
	span.SetAttributes(
		attribute.String("fusion.status", status),
		attribute.Int("fusion.chains", len(out.Chains)),
		attribute.Int("fusion.steps", out.Stats.Steps),
	)
	observe.Logger(ctx).Debug("search finished",
		"mode", mode,
		"creature", req.Creature,
		"skills", req.Skills,
		"status", status,
		"chains", len(out.Chains),
		"failures", len(out.Failures),
		"steps", out.Stats.Steps,
		"duration", time.Since(start),
	)

	if err == nil && finished {
		s.record(ctx, req, out)
	}
	return err
}

func searchStatus(err error, finished bool) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case err != nil:
		return "cancelled"
	case !finished:
		return "stopped"
	}
	return "ok"
}

// suggest returns f with suggestions attached when it reports an unknown
// name. f itself is never modified.
func (idx *index) suggest(f *fusion.Failure) *fusion.Failure {
	var suggestions []string
	switch f.Reason {
	case fusion.ReasonUnknownCreature:
		suggestions = idx.creatures.Suggest(f.Creature)
	case fusion.ReasonUnknownSkill:
		suggestions = idx.skills.Suggest(f.Skill)
	default:
		return f
	}
	if len(suggestions) == 0 {
		return f
	}
	cp := *f
	cp.Suggestions = suggestions
	return &cp
}

func (s *Service) record(ctx context.Context, req fusion.Request, out fusion.Outcome) {
	if s.builds == nil {
		return
	}
	b := buildstore.FromOutcome(req, out)
	if err := s.builds.Save(context.WithoutCancel(ctx), &b); err != nil {
		observe.Logger(ctx).Warn("failed to record build", "err", err)
	}
}

// Search runs req to completion and collects its results. On timeout or
// cancellation the partial outcome is returned together with the error.
func (s *Service) Search(ctx context.Context, req fusion.Request) (fusion.Outcome, error) {
	out := fusion.Outcome{Chains: []fusion.Chain{}, Failures: []fusion.Failure{}}
	err := s.Run(ctx, req, func(res fusion.Result) bool {
		out.Add(res)
		return true
	})
	return out, err
}

// Stream runs req on a new goroutine and returns its results in order. The
// channel is closed after Done, or when ctx is cancelled.
func (s *Service) Stream(ctx context.Context, req fusion.Request) <-chan fusion.Result {
	out := make(chan fusion.Result)
	go func() {
		defer close(out)
		_ = s.Run(ctx, req, func(res fusion.Result) bool {
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out
}

// Batch runs independent searches concurrently against the shared
// compendium and returns their outcomes in request order. The first search
// error cancels the rest.
func (s *Service) Batch(ctx context.Context, reqs []fusion.Request) ([]fusion.Outcome, error) {
	if max := s.Limits().MaxBatch; max > 0 && len(reqs) > max {
		return nil, fmt.Errorf("%w: %d requests, at most %d allowed", ErrBatchTooLarge, len(reqs), max)
	}
	outcomes := make([]fusion.Outcome, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, req := range reqs {
		g.Go(func() error {
			out, err := s.Search(gctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
