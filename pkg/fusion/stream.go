package fusion

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind tags a [Result].
type Kind int

const (
	// KindChain carries a completed [Chain].
	KindChain Kind = iota + 1

	// KindFailure carries a [Failure].
	KindFailure

	// KindDone marks the end of a search and carries its [Stats].
	KindDone
)

// String returns the lower-case wire name of k.
func (k Kind) String() string {
	switch k {
	case KindChain:
		return "chain"
	case KindFailure:
		return "failure"
	case KindDone:
		return "done"
	}
	return "unknown"
}

// MarshalJSON encodes k by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind written by [Kind.MarshalJSON].
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "chain":
		*k = KindChain
	case "failure":
		*k = KindFailure
	case "done":
		*k = KindDone
	default:
		return fmt.Errorf("fusion: unknown result kind %q", name)
	}
	return nil
}

// Result is one record of a search's output stream. Exactly one of Chain,
// Failure and Stats is set, matching Kind.
type Result struct {
	Kind    Kind     `json:"kind"`
	Chain   *Chain   `json:"chain,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
	Stats   *Stats   `json:"stats,omitempty"`
}

// Stream runs req on a new goroutine and returns its results in order. The
// channel is closed after Done. Cancelling ctx stops the search and closes
// the channel; the consumer should drain it or cancel ctx.
func (s *Searcher) Stream(ctx context.Context, req Request) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		_ = s.Run(ctx, req, func(res Result) bool {
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

// Outcome is the collected output of a finished search.
type Outcome struct {
	Chains   []Chain   `json:"chains"`
	Failures []Failure `json:"failures"`
	Stats    Stats     `json:"stats"`
}

// Collect runs req to completion and gathers its results.
func (s *Searcher) Collect(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{Chains: []Chain{}, Failures: []Failure{}}
	err := s.Run(ctx, req, func(res Result) bool {
		out.Add(res)
		return true
	})
	return out, err
}

// Add folds one result into o.
func (o *Outcome) Add(res Result) {
	switch res.Kind {
	case KindChain:
		o.Chains = append(o.Chains, *res.Chain)
	case KindFailure:
		o.Failures = append(o.Failures, *res.Failure)
	case KindDone:
		o.Stats = *res.Stats
	}
}
