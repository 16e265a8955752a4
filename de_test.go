package esdlc

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zooba/esdlc/engine"
	"github.com/zooba/esdlc/generators"
)

// A classic differential evolution pipeline over scalar genomes. It exercises
// line continuations, comments, dotted attribute access, aliasing, both
// joiner families and operator parameters in one definition.
const deSource = `FROM random_real(length=config.landscape.size.exact, \
                 lowest=config.landscape.lower_bounds,highest=config.landscape.upper_bounds) \
        SELECT (size) population
YIELD population

BEGIN GENERATION
    targets = population

    # Stochastic Universal Sampling for bases
    FROM population SELECT (size) bases USING fitness_sus(mu=size)

    ; Ensure r0 != r1 != r2, but any may equal i
    JOIN bases, population, population INTO mutators USING random_tuples(distinct=TRUE)

    FROM mutators SELECT mutants USING mutate_de(scale=0.1)

    JOIN targets, mutants INTO target_mutant_pairs USING tuples
    FROM target_mutant_pairs SELECT trials USING crossover_tuple(per_gene_rate=0.5)

    JOIN targets, trials INTO targets_trial_pairs USING tuples
    FROM targets_trial_pairs SELECT population USING best_of_tuple
    YIELD population
END GENERATION
`

func TestDifferentialEvolutionEndToEnd(t *testing.T) {
	sys, res := Compile(context.Background(), deSource, map[string]any{"size": 6.0})
	require.True(t, res.Valid(), "%s", res)

	funcs := generators.Default()
	funcs.Register("random_real", engine.Func(func(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
		low := args["lowest"].(float64)
		high := args["highest"].(float64)
		return func(yield func(any) bool) {
			for {
				if !yield(low + ec.Rand.Float64()*(high-low)) {
					return
				}
			}
		}, nil
	}))
	funcs.Register("fitness_sus", engine.Func(func(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
		// Selection pressure is irrelevant here; pass the source through.
		return args[engine.SourceArg], nil
	}))
	funcs.Register("mutate_de", engine.Func(func(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
		scale := args["scale"].(float64)
		src := args[engine.SourceArg].(iter.Seq[any])
		return func(yield func(any) bool) {
			for v := range src {
				tu := v.(*engine.Joined).Items
				base, r1, r2 := tu[0].(float64), tu[1].(float64), tu[2].(float64)
				if !yield(base + scale*(r1-r2)) {
					return
				}
			}
		}, nil
	}))
	funcs.Register("crossover_tuple", engine.Func(func(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
		rate := args["per_gene_rate"].(float64)
		src := args[engine.SourceArg].(iter.Seq[any])
		return func(yield func(any) bool) {
			for v := range src {
				tu := v.(*engine.Joined).Items
				pick := tu[0]
				if ec.Rand.Float64() < rate {
					pick = tu[1]
				}
				if !yield(pick) {
					return
				}
			}
		}, nil
	}))
	funcs.Register("best_of_tuple", engine.Func(func(ctx context.Context, ec *engine.Context, args map[string]any) (any, error) {
		src := args[engine.SourceArg].(iter.Seq[any])
		return func(yield func(any) bool) {
			for v := range src {
				tu := v.(*engine.Joined).Items
				pick := tu[0].(float64)
				if alt := tu[1].(float64); alt > pick {
					pick = alt
				}
				if !yield(pick) {
					return
				}
			}
		}, nil
	}))

	var yields int
	exp, err := engine.New(context.Background(), engine.Options{
		System:    sys,
		Externals: map[string]any{"size": 6.0},
		Functions: funcs,
		Seed:      2024,
		OnYield: func(group string, individuals []any) {
			yields++
			assert.Equal(t, "population", group)
			assert.Len(t, individuals, 6)
		},
	})
	require.NoError(t, err)

	exp.Context().Set("config", map[string]any{
		"landscape": map[string]any{
			"size":         map[string]any{"exact": 1.0},
			"lower_bounds": -5.0,
			"upper_bounds": 5.0,
		},
	})

	require.NoError(t, exp.Init(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, exp.Step(context.Background()))
	}

	pop := exp.Group("population")
	require.Len(t, pop, 6)
	for _, v := range pop {
		f, ok := v.(float64)
		require.True(t, ok)
		assert.Less(t, f, 10.0)
		assert.Greater(t, f, -10.0)
	}
	assert.Equal(t, 4, yields)
}
