package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config holds the parsed command line for one invocation.
type Config struct {
	// Command is "check", "run" or "console".
	Command string

	// Path is the definition file for check, or the experiment file for run.
	Path string

	// Seed overrides the experiment seed when SeedSet is true.
	Seed    uint64
	SeedSet bool

	// Steps is how many generation steps the run command executes.
	Steps int

	LogFormat string
	LogLevel  string
	// LogLevelSet records whether -log-level was given explicitly, as
	// opposed to defaulted. The console command logs quietly otherwise.
	LogLevelSet bool
	NoColor     bool
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("esdlc", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
esdlc - An ESDL compiler and experiment runner.

Usage:
  esdlc [options] check FILE.esdl
  esdlc [options] run EXPERIMENT.hcl
  esdlc [options] console

Commands:
  check    Compile a definition and print its diagnostics.
  run      Execute an experiment file.
  console  Interactive statement console.

Options:
`)
		flagSet.PrintDefaults()
	}

	seedFlag := flagSet.Uint64("seed", 0, "Override the experiment seed.")
	stepsFlag := flagSet.Int("steps", 1, "Number of generation steps for the run command.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	noColorFlag := flagSet.Bool("no-color", false, "Disable colored diagnostics.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}

	command := strings.ToLower(flagSet.Arg(0))
	path := flagSet.Arg(1)
	switch command {
	case "check", "run":
		if path == "" {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s requires a file argument", command)}
		}
	case "console":
		// no file argument
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", command)}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config := &Config{
		Command:   command,
		Path:      path,
		Seed:      *seedFlag,
		Steps:     *stepsFlag,
		LogFormat: logFormat,
		LogLevel:  logLevel,
		NoColor:   *noColorFlag,
	}
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			config.SeedSet = true
		case "log-level":
			config.LogLevelSet = true
		}
	})

	slog.Debug("CLI parser finished successfully.", "command", command, "path", path)
	return config, false, nil
}
