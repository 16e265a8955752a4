// Package engine interprets a compiled system against a mutable execution
// context. Statement execution is synchronous and single-threaded; streams
// are lazy, single-pass sequences drained on demand by their consumer.
package engine

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"strings"

	"github.com/zooba/esdlc/registry"
)

// Func is the calling convention for every function reachable from a
// definition: generators, operators, joiners and evaluators. Operators
// receive the upstream sequence as the "_source" argument; joiners receive a
// *JoinSource there instead.
type Func func(ctx context.Context, ec *Context, args map[string]any) (any, error)

// SourceArg is the reserved argument name carrying an operator's upstream.
const SourceArg = "_source"

// JoinSource is what an operator downstream of a JOIN receives: each source
// sequence separately, with the group names that produced them. The operator
// decides pairing semantics.
type JoinSource struct {
	Seqs  []iter.Seq[any]
	Names []string
}

// EvalHook applies an evaluator to every individual of a group. The base
// engine declares the extension point only; a concrete driver is supplied by
// the caller.
type EvalHook func(ctx context.Context, ec *Context, group string, individuals []any, evaluator any) error

// Context is the mutable evaluation environment of one experiment run.
// Contexts are not safe for concurrent use; concurrent experiments each own
// their own Context and RNG.
type Context struct {
	vars    map[string]any
	aliases map[string]string

	// Rand is the experiment's private randomness source.
	Rand *rand.Rand

	// Funcs resolves names bound to registered functions.
	Funcs *registry.Registry

	// OnYield receives each group named by a YIELD statement, in
	// declaration order. May be nil.
	OnYield func(group string, individuals []any)

	// Evaluate services EVAL statements. May be nil, in which case EVAL
	// fails at execution time.
	Evaluate EvalHook
}

// NewContext creates an empty context with a seeded RNG.
func NewContext(seed uint64) *Context {
	return &Context{
		vars:    map[string]any{},
		aliases: map[string]string{},
		Rand:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (c *Context) resolve(name string) string {
	name = strings.ToLower(name)
	for i := 0; i < len(c.aliases); i++ {
		target, ok := c.aliases[name]
		if !ok {
			break
		}
		name = target
	}
	return name
}

// Get returns the current binding of name, following aliases.
func (c *Context) Get(name string) (any, bool) {
	v, ok := c.vars[c.resolve(name)]
	return v, ok
}

// Set binds name, following aliases.
func (c *Context) Set(name string, value any) {
	c.vars[c.resolve(name)] = value
}

// SetAlias makes name an alternative spelling of target until removed.
func (c *Context) SetAlias(name, target string) {
	c.aliases[strings.ToLower(name)] = strings.ToLower(target)
}

// RemoveAlias deletes an alias; bindings made through it persist.
func (c *Context) RemoveAlias(name string) {
	delete(c.aliases, strings.ToLower(name))
}

// Group returns the current contents of a group, or nil when it has not
// been stored yet.
func (c *Context) Group(name string) []any {
	v, ok := c.Get(name)
	if !ok {
		return nil
	}
	g, _ := v.([]any)
	return g
}

// callable resolves a bound value to a Func. Values may be a Func directly
// or a name registered in Funcs.
func (c *Context) callable(v any) (Func, error) {
	switch v := v.(type) {
	case Func:
		return v, nil
	case func(context.Context, *Context, map[string]any) (any, error):
		return v, nil
	case string:
		if c.Funcs != nil {
			if fn, ok := c.Funcs.Lookup(v); ok {
				return c.callable(fn)
			}
		}
		return nil, fmt.Errorf("%q is not a known function", v)
	}
	return nil, fmt.Errorf("value of type %T is not callable", v)
}
