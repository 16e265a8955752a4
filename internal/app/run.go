package app

import (
	"context"
	"fmt"

	"github.com/zooba/esdlc"
	"github.com/zooba/esdlc/config"
	"github.com/zooba/esdlc/engine"
	"github.com/zooba/esdlc/generators"
	"github.com/zooba/esdlc/internal/cli"
	"github.com/zooba/esdlc/model"
	"github.com/zooba/esdlc/registry"
)

// runExperiment loads an experiment file, compiles its definition and drives
// the generation loop for the configured number of steps.
func (a *App) runExperiment(ctx context.Context, cfg *cli.Config) error {
	expCfg, err := config.Load(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to load experiment: %w", err)
	}
	a.logger.Debug("Experiment file loaded.", "definition", expCfg.Definition, "seed", expCfg.Seed)

	source := expCfg.Source
	name := cfg.Path
	if expCfg.Definition != "" {
		sys, res, err := esdlc.CompileFile(ctx, expCfg.Definition, expCfg.Externals)
		if err != nil {
			return err
		}
		a.printResult(res)
		if !res.Valid() {
			return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%s: %d error(s)", expCfg.Definition, len(res.Errors()))}
		}
		return a.drive(ctx, cfg, expCfg, sys)
	}

	sys, res := esdlc.Compile(ctx, source, expCfg.Externals)
	sys.SourceName = name
	a.printResult(res)
	if !res.Valid() {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("%s: %d error(s)", name, len(res.Errors()))}
	}
	return a.drive(ctx, cfg, expCfg, sys)
}

func (a *App) drive(ctx context.Context, cfg *cli.Config, expCfg *config.Config, sys *model.System) error {
	funcs := a.funcs
	if funcs == nil {
		funcs = generators.Default()
	} else {
		funcs = mergeBuiltins(funcs)
	}

	seed := expCfg.Seed
	if cfg.SeedSet {
		seed = cfg.Seed
	}

	exp, err := engine.New(ctx, engine.Options{
		System:    sys,
		Externals: expCfg.Externals,
		Functions: funcs,
		Seed:      seed,
		OnYield: func(group string, individuals []any) {
			a.logger.Info("Yield.", "group", group, "size", len(individuals))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build experiment: %w", err)
	}

	if err := exp.Init(ctx); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("Experiment initialised.", "seed", seed)

	blocks := expCfg.Blocks
	for step := 1; step <= cfg.Steps; step++ {
		if len(blocks) > 0 {
			for _, b := range blocks {
				if err := exp.RunBlock(ctx, b); err != nil {
					return fmt.Errorf("execution failed at step %d: %w", step, err)
				}
			}
		} else if err := exp.Step(ctx); err != nil {
			return fmt.Errorf("execution failed at step %d: %w", step, err)
		}
		a.logger.Debug("Step complete.", "step", step)
	}
	a.okColor.Fprintf(a.outW, "completed %d step(s)\n", cfg.Steps)
	return nil
}

// mergeBuiltins layers caller functions over the built-in set. A caller
// function with a built-in's name wins.
func mergeBuiltins(extra *registry.Registry) *registry.Registry {
	merged := generators.Default()
	for _, name := range extra.Names() {
		fn, _ := extra.Lookup(name)
		merged.Replace(name, fn)
	}
	return merged
}
