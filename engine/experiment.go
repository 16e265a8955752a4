package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zooba/esdlc/internal/ctxlog"
	"github.com/zooba/esdlc/model"
	"github.com/zooba/esdlc/registry"
)

// Options configures one experiment run.
type Options struct {
	System *model.System

	// Externals provides late bindings for the system's external
	// variables, overriding any values given at compile time.
	Externals map[string]any

	// Functions resolves external names that are functions: generators,
	// operators, joiners and evaluators.
	Functions *registry.Registry

	// Seed initializes the experiment's private RNG.
	Seed uint64

	OnYield  func(group string, individuals []any)
	Evaluate EvalHook
}

// Experiment drives a compiled system: the init block runs once, then each
// named block can be invoked repeatedly by the caller's loop. An Experiment
// owns its Context and RNG; independent experiments may run concurrently
// over one shared System.
type Experiment struct {
	sys *model.System
	ec  *Context

	initialized bool
}

// New prepares an experiment. It fails fast when the system has validation
// errors or when any external lacks a binding, naming every missing
// external in the error.
func New(ctx context.Context, opts Options) (*Experiment, error) {
	if opts.System == nil {
		return nil, fmt.Errorf("no system provided")
	}
	if res := model.Validate(opts.System); !res.Valid() {
		return nil, fmt.Errorf("system is not valid: %s", res.Errors()[0])
	}

	ec := NewContext(opts.Seed)
	ec.Funcs = opts.Functions
	ec.OnYield = opts.OnYield
	ec.Evaluate = opts.Evaluate

	var missing []string
	for name, ext := range opts.System.Externals {
		value, ok := opts.Externals[name]
		if !ok {
			value = ext.Value
			if value == nil {
				if opts.Functions != nil {
					if fn, found := opts.Functions.Lookup(name); found {
						value, ok = fn, true
					}
				}
			} else {
				ok = true
			}
		}
		if !ok {
			missing = append(missing, name)
			continue
		}
		ec.Set(name, value)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required externals: %s",
			strings.Join(missing, ", "))
	}

	ctxlog.FromContext(ctx).Debug("Experiment prepared.",
		"blocks", opts.System.BlockNames,
		"externals", len(opts.System.Externals))
	return &Experiment{sys: opts.System, ec: ec}, nil
}

// Context exposes the experiment's execution context, mainly for inspecting
// groups and variables between generations.
func (e *Experiment) Context() *Context { return e.ec }

// Group returns the current contents of a group.
func (e *Experiment) Group(name string) []any { return e.ec.Group(name) }

// BlockNames lists the runnable blocks in declaration order, starting with
// the init block.
func (e *Experiment) BlockNames() []string { return e.sys.BlockNames }

// Init runs the implicit init block. It must be called once before any
// RunBlock call and has no effect when repeated.
func (e *Experiment) Init(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	log := ctxlog.FromContext(ctx)
	log.Debug("Running init block.")
	if err := ExecuteBlock(ctx, e.ec, e.sys.Blocks[model.InitBlockName]); err != nil {
		return fmt.Errorf("init block: %w", err)
	}
	e.initialized = true
	return nil
}

// RunBlock executes one named block, initializing first if needed.
func (e *Experiment) RunBlock(ctx context.Context, name string) error {
	if err := e.Init(ctx); err != nil {
		return err
	}
	name = strings.ToLower(name)
	stmts, ok := e.sys.Blocks[name]
	if !ok || name == model.InitBlockName {
		return fmt.Errorf("no block named %q", name)
	}
	if err := ExecuteBlock(ctx, e.ec, stmts); err != nil {
		return fmt.Errorf("block %q: %w", name, err)
	}
	return nil
}

// Step runs every non-init block once, in declaration order.
func (e *Experiment) Step(ctx context.Context) error {
	for _, name := range e.sys.BlockNames {
		if name == model.InitBlockName {
			continue
		}
		if err := e.RunBlock(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
