// Package namematch suggests compendium names for misspelled user input.
//
// Suggestions combine Double Metaphone phonetic encoding with Jaro-Winkler
// string similarity:
//
//  1. Phonetic candidates: Double Metaphone codes are computed for every
//     word of the input and of each known name. A name whose codes overlap
//     the input's becomes a phonetic candidate and is accepted when its
//     Jaro-Winkler score reaches the phonetic threshold (default 0.70).
//
//  2. Fuzzy candidates: names without phonetic overlap are accepted only
//     when their Jaro-Winkler score reaches the higher fuzzy threshold
//     (default 0.85).
//
// Phonetic candidates always rank ahead of fuzzy ones; within each group
// higher scores come first and ties keep declaration order.
package namematch

import (
	"cmp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultLimit             = 3
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching name. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a name with no
// phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithLimit caps the number of suggestions returned. Default: 3.
func WithLimit(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.limit = n
		}
	}
}

// entry is a precomputed candidate name.
type entry struct {
	name   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// Matcher ranks a fixed set of names against user input. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	limit             int

	entries []entry
	byLower map[string]string
}

// New returns a [Matcher] over names, which are kept in the given order.
func New(names []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		limit:             defaultLimit,
		byLower:           make(map[string]string, len(names)),
	}
	for _, o := range opts {
		o(m)
	}
	for _, name := range names {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		m.entries = append(m.entries, entry{
			name:   name,
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		m.byLower[lower] = name
	}
	return m
}

// Resolve returns the canonical spelling of input when it matches a name
// case-insensitively.
func (m *Matcher) Resolve(input string) (string, bool) {
	name, ok := m.byLower[strings.ToLower(strings.TrimSpace(input))]
	return name, ok
}

// Suggest returns up to the configured limit of names resembling input,
// best first. An exact case-insensitive match is returned alone.
func (m *Matcher) Suggest(input string) []string {
	if name, ok := m.Resolve(input); ok {
		return []string{name}
	}
	inputLower := strings.ToLower(strings.TrimSpace(input))
	if inputLower == "" {
		return nil
	}
	inputTokens := strings.Fields(inputLower)
	inputCodes := codesForTokens(inputTokens)

	type candidate struct {
		name     string
		score    float64
		phonetic bool
		order    int
	}
	var found []candidate
	for i, e := range m.entries {
		score := bestJWScore(inputTokens, e.tokens, inputLower, e.lower)
		if codesOverlap(inputCodes, e.codes) {
			if score >= m.phoneticThreshold {
				found = append(found, candidate{name: e.name, score: score, phonetic: true, order: i})
			}
			continue
		}
		if score >= m.fuzzyThreshold {
			found = append(found, candidate{name: e.name, score: score, order: i})
		}
	}

	slices.SortFunc(found, func(a, b candidate) int {
		if a.phonetic != b.phonetic {
			if a.phonetic {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})

	out := make([]string, 0, min(len(found), m.limit))
	for _, c := range found {
		if len(out) == m.limit {
			break
		}
		out = append(out, c.name)
	}
	return out
}

// Complete returns up to limit names for autocompletion: names starting
// with prefix first, then names with any word starting with prefix, each in
// declaration order. An empty prefix lists the first limit names. A
// non-positive limit returns every match.
func (m *Matcher) Complete(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	var head, tail []string
	for _, e := range m.entries {
		switch {
		case strings.HasPrefix(e.lower, prefix):
			head = append(head, e.name)
		case slices.ContainsFunc(e.tokens, func(t string) bool { return strings.HasPrefix(t, prefix) }):
			tail = append(tail, e.name)
		}
	}
	out := append(head, tail...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings and every token pair.
func bestJWScore(inputTokens, nameTokens []string, inputFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inputFull, nameFull, false)

	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
