package generators

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/zooba/esdlc/engine"
)

// Fitness is implemented by individuals with an explicit fitness; higher is
// better. Plain numbers are their own fitness.
type Fitness interface {
	Fitness() float64
}

func fitnessOf(v any) (float64, error) {
	if f, ok := v.(Fitness); ok {
		return f.Fitness(), nil
	}
	return toFloat(v)
}

func maxByFitness(group []any) (any, error) {
	best := group[0]
	bestFit, err := fitnessOf(best)
	if err != nil {
		return nil, err
	}
	for _, v := range group[1:] {
		f, err := fitnessOf(v)
		if err != nil {
			return nil, err
		}
		if f > bestFit {
			best, bestFit = v, f
		}
	}
	return best, nil
}

// sortedByFitness drains the operator source and returns it ordered by
// fitness. The sort is stable, so equally fit individuals keep their
// arrival order.
func sortedByFitness(args map[string]any, descending bool) ([]any, error) {
	src, ok := args[engine.SourceArg].(iter.Seq[any])
	if !ok {
		return nil, fmt.Errorf("selector requires a stream source")
	}
	group := slices.Collect(src)
	// Fitness keys ride alongside the individuals so non-comparable
	// types (slice genomes and the like) sort without hashing.
	type ranked struct {
		value any
		key   float64
	}
	order := make([]ranked, len(group))
	for i, v := range group {
		f, err := fitnessOf(v)
		if err != nil {
			return nil, err
		}
		order[i] = ranked{value: v, key: f}
	}
	slices.SortStableFunc(order, func(a, b ranked) int {
		switch {
		case a.key < b.key:
			if descending {
				return 1
			}
			return -1
		case a.key > b.key:
			if descending {
				return -1
			}
			return 1
		}
		return 0
	})
	for i, r := range order {
		group[i] = r.value
	}
	return group, nil
}

// best yields the source in decreasing fitness order.
func best(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	return sortedByFitness(args, true)
}

// worst yields the source in increasing fitness order.
func worst(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	return sortedByFitness(args, false)
}

// bestOnly repeats the fittest individual forever; consumers must limit.
func bestOnly(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	src, ok := args[engine.SourceArg].(iter.Seq[any])
	if !ok {
		return nil, fmt.Errorf("best_only requires a stream source")
	}
	group := slices.Collect(src)
	if len(group) == 0 {
		return nil, fmt.Errorf("best_only requires a non-empty source")
	}
	pick, err := maxByFitness(group)
	if err != nil {
		return nil, err
	}
	return iter.Seq[any](func(yield func(any) bool) {
		for yield(pick) {
		}
	}), nil
}

// repeated cycles the source forever in arrival order; consumers must limit.
func repeated(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	src, ok := args[engine.SourceArg].(iter.Seq[any])
	if !ok {
		return nil, fmt.Errorf("repeated requires a stream source")
	}
	group := slices.Collect(src)
	if len(group) == 0 {
		return nil, fmt.Errorf("repeated requires a non-empty source")
	}
	return iter.Seq[any](func(yield func(any) bool) {
		for {
			for _, v := range group {
				if !yield(v) {
					return
				}
			}
		}
	}), nil
}

// randomShuffle yields the source once in uniformly random order.
func randomShuffle(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
	src, ok := args[engine.SourceArg].(iter.Seq[any])
	if !ok {
		return nil, fmt.Errorf("random_shuffle requires a stream source")
	}
	group := slices.Collect(src)
	ec.Rand.Shuffle(len(group), func(i, j int) {
		group[i], group[j] = group[j], group[i]
	})
	return group, nil
}
