package engine

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zooba/esdlc/ast"
	"github.com/zooba/esdlc/model"
	"github.com/zooba/esdlc/registry"
)

func compile(t *testing.T, src string, externals map[string]any) *model.System {
	t.Helper()
	tree, res := ast.Parse(src)
	require.True(t, res.Valid(), "parse: %s", res)
	sys, bres := model.NewSystem(tree, externals)
	require.True(t, bres.Valid(), "build: %s", bres)
	return sys
}

func run(t *testing.T, ec *Context, sys *model.System, block string) {
	t.Helper()
	require.NoError(t, ExecuteBlock(context.Background(), ec, sys.Blocks[block]))
}

func floats(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func testFuncs() *registry.Registry {
	r := registry.New()
	// Yields increasing floats forever.
	r.Register("counter", Func(func(ctx context.Context, ec *Context, args map[string]any) (any, error) {
		return func(yield func(any) bool) {
			for i := 0; ; i++ {
				if !yield(float64(i)) {
					return
				}
			}
		}, nil
	}))
	r.Register("ints", Func(func(ctx context.Context, ec *Context, args map[string]any) (any, error) {
		n, err := toFloat(args["count"])
		if err != nil {
			return nil, err
		}
		out := make([]any, int(n))
		for i := range out {
			out[i] = float64(i + 1)
		}
		return out, nil
	}))
	// Doubles every individual, lazily.
	r.Register("double", Func(func(ctx context.Context, ec *Context, args map[string]any) (any, error) {
		src := args[SourceArg].(iter.Seq[any])
		return func(yield func(any) bool) {
			for v := range src {
				if !yield(v.(float64) * 2) {
					return
				}
			}
		}, nil
	}))
	return r
}

func TestStorePartitionsPrefixAndRest(t *testing.T) {
	sys := compile(t, "FROM src SELECT (3) a, b\n", nil)
	ec := NewContext(1)

	ec.Set("src", floats(10))
	run(t, ec, sys, model.InitBlockName)
	assert.Len(t, ec.Group("a"), 3)
	assert.Len(t, ec.Group("b"), 7)
	assert.Equal(t, float64(0), ec.Group("a")[0])
	assert.Equal(t, float64(3), ec.Group("b")[0])

	ec.Set("src", floats(3))
	run(t, ec, sys, model.InitBlockName)
	assert.Len(t, ec.Group("a"), 3)
	assert.Len(t, ec.Group("b"), 0)
}

func TestStoreLimitEvaluatedFresh(t *testing.T) {
	// The limit expression reads n from the context at store time.
	sys := compile(t, "FROM src SELECT (n) a, b\n", nil)
	ec := NewContext(1)
	ec.Set("src", floats(10))
	ec.Set("n", 4.0)
	run(t, ec, sys, model.InitBlockName)
	assert.Len(t, ec.Group("a"), 4)
	assert.Len(t, ec.Group("b"), 6)
}

func TestStoreShortSource(t *testing.T) {
	sys := compile(t, "FROM src SELECT (5) a, b\n", nil)
	ec := NewContext(1)
	ec.Set("src", floats(2))
	run(t, ec, sys, model.InitBlockName)
	assert.Len(t, ec.Group("a"), 2)
	assert.Len(t, ec.Group("b"), 0)
}

func TestStoreFromInfiniteGenerator(t *testing.T) {
	// Every destination is limited, so an endless source must terminate.
	sys := compile(t, "FROM counter() SELECT (5) a, (2) b\n", nil)
	ec := NewContext(1)
	ec.Funcs = testFuncs()
	run(t, ec, sys, model.InitBlockName)
	assert.Equal(t, floats(5), ec.Group("a"))
	assert.Equal(t, []any{5.0, 6.0}, ec.Group("b"))
}

func TestMergeConcatenatesInOrder(t *testing.T) {
	sys := compile(t, "FROM a, b SELECT c\n", nil)
	ec := NewContext(1)
	ec.Set("a", []any{1.0, 2.0})
	ec.Set("b", []any{3.0})
	run(t, ec, sys, model.InitBlockName)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, ec.Group("c"))
}

func TestOperatorChainAppliesLazily(t *testing.T) {
	sys := compile(t, "FROM counter() SELECT (3) a USING double, double\n", nil)
	ec := NewContext(1)
	ec.Funcs = testFuncs()
	run(t, ec, sys, model.InitBlockName)
	assert.Equal(t, []any{0.0, 4.0, 8.0}, ec.Group("a"))
}

func TestJoinWithoutOperatorZips(t *testing.T) {
	sys := compile(t, "JOIN a, b INTO pairs\n", nil)
	ec := NewContext(1)
	ec.Set("a", []any{1.0, 2.0, 3.0})
	ec.Set("b", []any{4.0, 5.0})
	run(t, ec, sys, model.InitBlockName)

	pairs := ec.Group("pairs")
	require.Len(t, pairs, 2)
	first := pairs[0].(*Joined)
	assert.Equal(t, []any{1.0, 4.0}, first.Items)
}

func TestArithmetic(t *testing.T) {
	sys := compile(t, "x = 1+2*3-4/5^2\n", nil)
	ec := NewContext(1)
	run(t, ec, sys, model.InitBlockName)
	v, ok := ec.Get("x")
	require.True(t, ok)
	assert.InDelta(t, 6.84, v.(float64), 1e-9)
}

func TestArithmeticErrors(t *testing.T) {
	for _, src := range []string{"x = 1/0\n", "x = 1%0\n"} {
		sys := compile(t, src, nil)
		ec := NewContext(1)
		err := ExecuteBlock(context.Background(), ec, sys.Blocks[model.InitBlockName])
		assert.Error(t, err, src)
	}
}

func TestNestedAttributeMissReportsFullPath(t *testing.T) {
	sys := compile(t, "x = config.landscape.size.exact\n", map[string]any{
		"config": map[string]any{
			"landscape": map[string]any{
				"size": map[string]any{},
			},
		},
	})
	ec := NewContext(1)
	ec.Set("config", map[string]any{
		"landscape": map[string]any{"size": map[string]any{}},
	})
	err := ExecuteBlock(context.Background(), ec, sys.Blocks[model.InitBlockName])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required key config.landscape.size.exact")
}

func TestAssignToConstantFailsAtRuntime(t *testing.T) {
	// Hand-built model, bypassing validation entirely.
	k := &model.Variable{Name: "k", Value: 1.0, Constant: true}
	one := &model.Variable{Name: "2", Value: 2.0, Constant: true}
	stmts := []model.Stmt{&model.Assign{
		Dest: &model.VariableRef{Var: k},
		Src:  &model.VariableRef{Var: one},
	}}
	err := ExecuteBlock(context.Background(), NewContext(1), stmts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot assign")
}

func TestAssignToExternalFailsAtRuntime(t *testing.T) {
	ext := &model.Variable{Name: "alpha", External: true}
	two := &model.Variable{Name: "2", Value: 2.0, Constant: true}
	stmts := []model.Stmt{&model.Assign{
		Dest: &model.VariableRef{Var: ext},
		Src:  &model.VariableRef{Var: two},
	}}
	err := ExecuteBlock(context.Background(), NewContext(1), stmts)
	require.Error(t, err)
}

func TestIndexAssignment(t *testing.T) {
	sys := compile(t, "g[1] = 9\nx = g[1]\n", nil)
	ec := NewContext(1)
	ec.Set("g", []any{1.0, 2.0, 3.0})
	run(t, ec, sys, model.InitBlockName)
	v, _ := ec.Get("x")
	assert.Equal(t, 9.0, v)
}

func TestRepeatCountEvaluatedPerInvocation(t *testing.T) {
	sys := compile(t, "REPEAT (n)\nx = x+1\nEND REPEAT\n", nil)
	ec := NewContext(1)
	ec.Set("x", 0.0)

	ec.Set("n", 3.0)
	run(t, ec, sys, model.InitBlockName)
	v, _ := ec.Get("x")
	assert.Equal(t, 3.0, v)

	ec.Set("n", 2.0)
	run(t, ec, sys, model.InitBlockName)
	v, _ = ec.Get("x")
	assert.Equal(t, 5.0, v)
}

func TestContextAliases(t *testing.T) {
	ec := NewContext(1)
	ec.Set("parents", []any{1.0})
	ec.SetAlias("mates", "parents")
	assert.Equal(t, []any{1.0}, ec.Group("mates"))

	ec.RemoveAlias("mates")
	assert.Nil(t, ec.Group("mates"))
}

func TestExperimentRun(t *testing.T) {
	sys := compile(t, `FROM ints(count=4) SELECT population
BEGIN gen
    FROM population SELECT population USING double
    YIELD population
END gen
`, nil)

	var yielded [][]any
	exp, err := New(context.Background(), Options{
		System:    sys,
		Functions: testFuncs(),
		Seed:      42,
		OnYield: func(group string, individuals []any) {
			assert.Equal(t, "population", group)
			yielded = append(yielded, individuals)
		},
	})
	require.NoError(t, err)

	require.NoError(t, exp.Init(context.Background()))
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, exp.Group("population"))

	require.NoError(t, exp.RunBlock(context.Background(), "gen"))
	assert.Equal(t, []any{2.0, 4.0, 6.0, 8.0}, exp.Group("population"))
	require.NoError(t, exp.Step(context.Background()))
	assert.Equal(t, []any{4.0, 8.0, 12.0, 16.0}, exp.Group("population"))

	require.Len(t, yielded, 2)
}

func TestExperimentMissingExternals(t *testing.T) {
	sys := compile(t, "FROM mystery_generator() SELECT population\n", nil)
	_, err := New(context.Background(), Options{System: sys, Seed: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery_generator")
}

func TestExperimentRejectsInvalidSystem(t *testing.T) {
	sys := compile(t, "FROM population SELECT a, a\n", nil)
	_, err := New(context.Background(), Options{System: sys, Seed: 1})
	require.Error(t, err)
}

func TestEvalWithoutDriverFails(t *testing.T) {
	sys := compile(t, "EVAL population\n", nil)
	ec := NewContext(1)
	ec.Set("population", floats(3))
	err := ExecuteBlock(context.Background(), ec, sys.Blocks[model.InitBlockName])
	require.Error(t, err)
}

func TestEvalHook(t *testing.T) {
	sys := compile(t, "EVAL population USING my_eval\n", nil)
	ec := NewContext(1)
	ec.Set("population", floats(3))
	ec.Set("my_eval", "marker")
	var got []string
	ec.Evaluate = func(ctx context.Context, ec *Context, group string, individuals []any, evaluator any) error {
		got = append(got, group)
		assert.Equal(t, "marker", evaluator)
		assert.Len(t, individuals, 3)
		return nil
	}
	run(t, ec, sys, model.InitBlockName)
	assert.Equal(t, []string{"population"}, got)
}
