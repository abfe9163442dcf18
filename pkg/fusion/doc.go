// Package fusion is the fusion-chain search engine.
//
// Given a target skill set, and optionally a pinned result creature, a
// [Searcher] walks the compendium's recipe graph backward from candidate
// results toward base creatures. A [Checker] prunes infeasible creatures
// and recipes before any recipe is enumerated, and [Assemble] turns every
// completed path into a [Chain] with cost, required level and directions.
//
// Results are delivered as a stream of [Result] records (chain, failure,
// and a final done marker) in discovery order: depth-first, recipes and
// sources in compendium declaration order. The first feasible path wins at
// every nested level, so chains are not guaranteed to be the cheapest.
//
// Domain infeasibility is data ([Failure]); only contract violations panic.
package fusion
