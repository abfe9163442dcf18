// Package buildstore records completed fusion searches ("saved builds") so
// they can be listed later. [MemStore] keeps them in process memory and
// [PostgresStore] in a PostgreSQL table.
package buildstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/pickled-dev/smt-tools/pkg/fusion"
)

// ErrNotFound is returned by Get when the requested build does not exist.
var ErrNotFound = errors.New("buildstore: build not found")

// DefaultListLimit is the number of builds [Store.List] returns when
// [ListOptions.Limit] is not positive.
const DefaultListLimit = 20

// Build is one recorded search.
type Build struct {
	ID string `json:"id"`

	// Request is the search request after defaults were applied.
	Request fusion.Request `json:"request"`

	// Target is the pinned creature, or the result of the first chain for an
	// unpinned search. Empty when nothing was found.
	Target string `json:"target,omitempty"`

	Chains   int `json:"chains"`
	Failures int `json:"failures"`
	Steps    int `json:"steps"`

	// BestCost and BestLevel describe the first chain found. Both are zero
	// when the search found no chain.
	BestCost  int `json:"best_cost"`
	BestLevel int `json:"best_level"`

	CreatedAt time.Time `json:"created_at"`
}

// FromOutcome summarises a finished search as a [Build]. The ID and
// creation time are left for the store to fill.
func FromOutcome(req fusion.Request, out fusion.Outcome) Build {
	b := Build{
		Request:  req,
		Target:   req.Creature,
		Chains:   len(out.Chains),
		Failures: len(out.Failures),
		Steps:    out.Stats.Steps,
	}
	if len(out.Chains) > 0 {
		first := out.Chains[0]
		b.BestCost = first.Cost
		b.BestLevel = first.Level
		if b.Target == "" {
			b.Target = first.Result
		}
	}
	return b
}

// ListOptions narrows the result set of [Store.List].
type ListOptions struct {
	// Target restricts results to builds for this creature.
	Target string

	// Limit caps the number of builds returned. Non-positive means
	// [DefaultListLimit].
	Limit int
}

// Store persists builds. Implementations must be safe for concurrent use.
type Store interface {
	// Save records b. A missing ID or creation time is generated and written
	// back into b.
	Save(ctx context.Context, b *Build) error

	// Get returns the build with the given ID, or [ErrNotFound].
	Get(ctx context.Context, id string) (Build, error)

	// List returns builds newest first.
	List(ctx context.Context, opts ListOptions) ([]Build, error)

	// Delete removes a build. Deleting a missing build is not an error.
	Delete(ctx context.Context, id string) error
}

func (o ListOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// stamp fills a missing ID and creation time.
func stamp(b *Build, now time.Time) error {
	if b.ID == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		b.ID = hex.EncodeToString(buf)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now.UTC()
	}
	return nil
}
