// Package generators provides the built-in joiner and selector functions an
// experiment can bind to its externals. All randomness is drawn from the
// experiment's Context, never from package state.
package generators

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/zooba/esdlc/engine"
	"github.com/zooba/esdlc/registry"
)

// Funcs registers every built-in function.
type Funcs struct{}

func (Funcs) Register(r *registry.Registry) {
	r.Register("tuples", engine.Func(tuples))
	r.Register("random_tuples", engine.Func(randomTuples))
	r.Register("distinct_random_tuples", engine.Func(distinctRandomTuples))
	r.Register("full_combine", engine.Func(fullCombine))
	r.Register("best_with_rest", engine.Func(bestWithRest))

	r.Register("best", engine.Func(best))
	r.Register("worst", engine.Func(worst))
	r.Register("best_only", engine.Func(bestOnly))
	r.Register("repeated", engine.Func(repeated))
	r.Register("random_shuffle", engine.Func(randomShuffle))
}

// Default returns a registry holding every built-in function.
func Default() *registry.Registry {
	r := registry.New()
	registry.Install(r, Funcs{})
	return r
}

// joinGroups materializes each joined source. Joiners index and revisit their
// sources, so laziness cannot be preserved across a join boundary.
func joinGroups(args map[string]any, name string) (*engine.JoinSource, [][]any, error) {
	js, ok := args[engine.SourceArg].(*engine.JoinSource)
	if !ok {
		return nil, nil, fmt.Errorf("%s can only follow a JOIN statement", name)
	}
	groups := make([][]any, len(js.Seqs))
	for i, s := range js.Seqs {
		groups[i] = slices.Collect(s)
	}
	return js, groups, nil
}

// tuples pairs sources index-aligned, ending at the shortest source. It is
// the same behavior a JOIN without USING gets.
func tuples(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	js, ok := args[engine.SourceArg].(*engine.JoinSource)
	if !ok {
		return nil, fmt.Errorf("tuples can only follow a JOIN statement")
	}
	return engine.ZipJoin(js), nil
}

// fullCombine yields the cross product of all sources, rightmost source
// varying fastest.
func fullCombine(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	_, groups, err := joinGroups(args, "full_combine")
	if err != nil {
		return nil, err
	}
	return product(groups, nil), nil
}

func product(groups [][]any, prefix []any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, g := range groups {
			if len(g) == 0 {
				return
			}
		}
		idx := make([]int, len(groups))
		for {
			tuple := &engine.Joined{Items: make([]any, 0, len(prefix)+len(groups))}
			tuple.Items = append(tuple.Items, prefix...)
			for i, g := range groups {
				tuple.Items = append(tuple.Items, g[idx[i]])
			}
			if !yield(tuple) {
				return
			}
			// Odometer increment, rightmost digit first.
			i := len(groups) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(groups[i]) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// randomTuples matches each individual of the first source with randomly
// chosen individuals from the other sources. With distinct set, repetition
// within a tuple is avoided on a best-effort basis: after as many redraws as
// the group has members, the first unused individual is taken instead, and a
// tuple may still repeat when no unused individual exists.
func randomTuples(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	_, groups, err := joinGroups(args, "random_tuples")
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if len(g) == 0 {
			return nil, fmt.Errorf("empty groups cannot be joined")
		}
	}
	distinct := truthy(args["distinct"])

	return iter.Seq[any](func(yield func(any) bool) {
		for _, indiv := range groups[0] {
			tuple := []any{indiv}
			for _, other := range groups[1:] {
				pick := other[ec.Rand.IntN(len(other))]
				if distinct {
					limit := len(other)
					for contains(tuple, pick) && limit > 0 {
						pick = other[ec.Rand.IntN(len(other))]
						limit--
					}
					if limit <= 0 {
						for _, cand := range other {
							if !contains(tuple, cand) {
								pick = cand
								break
							}
						}
					}
				}
				tuple = append(tuple, pick)
			}
			if !yield(&engine.Joined{Items: tuple}) {
				return
			}
		}
	}), nil
}

func distinctRandomTuples(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	next := make(map[string]any, len(args))
	for k, v := range args {
		next[k] = v
	}
	next["distinct"] = true
	return randomTuples(ctx, ec, next)
}

// bestWithRest matches the best individual of one source (best_from, default
// the first) with every combination of the remaining sources.
func bestWithRest(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	_, groups, err := joinGroups(args, "best_with_rest")
	if err != nil {
		return nil, err
	}
	bestFrom := 0
	if v, ok := args["best_from"]; ok {
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		bestFrom = int(f)
	}
	if bestFrom < 0 || bestFrom >= len(groups) {
		return nil, fmt.Errorf("best_from %d out of range for %d sources", bestFrom, len(groups))
	}
	if len(groups[bestFrom]) == 0 {
		return nil, fmt.Errorf("empty groups cannot be joined")
	}

	pick, err := maxByFitness(groups[bestFrom])
	if err != nil {
		return nil, err
	}
	rest := slices.Delete(slices.Clone(groups), bestFrom, bestFrom+1)
	return product(rest, []any{pick}), nil
}

func contains(items []any, v any) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value of type %T is not a number", v)
}
