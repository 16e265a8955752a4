package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"github.com/zooba/esdlc/internal/cli"
	"github.com/zooba/esdlc/internal/ctxlog"
	"github.com/zooba/esdlc/registry"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	funcs  *registry.Registry

	errColor  *color.Color
	warnColor *color.Color
	okColor   *color.Color
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger. funcs supplies
// the functions experiments may bind; nil means built-ins only.
func NewApp(outW io.Writer, cfg *cli.Config, funcs *registry.Registry) *App {
	logger := newLogger(cfg, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:      outW,
		logger:    logger,
		funcs:     funcs,
		errColor:  color.New(color.FgRed),
		warnColor: color.New(color.FgYellow),
		okColor:   color.New(color.FgGreen),
	}
	if cfg.NoColor {
		a.errColor.DisableColor()
		a.warnColor.DisableColor()
		a.okColor.DisableColor()
	}
	return a
}

// Run executes the requested command.
func (a *App) Run(ctx context.Context, cfg *cli.Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", cfg.Command)

	switch cfg.Command {
	case "check":
		return a.runCheck(ctx, cfg)
	case "run":
		return a.runExperiment(ctx, cfg)
	case "console":
		return a.runConsole(ctx, cfg)
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}
