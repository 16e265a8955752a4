package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/zooba/esdlc"
	"github.com/zooba/esdlc/diag"
	"github.com/zooba/esdlc/engine"
	"github.com/zooba/esdlc/generators"
	"github.com/zooba/esdlc/internal/cli"
)

// runConsole reads statements interactively and executes them against one
// persistent context. Variables and groups survive between entries; open
// blocks continue on the next line until their END.
func (a *App) runConsole(ctx context.Context, cfg *cli.Config) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	ec := engine.NewContext(cfg.Seed)
	if a.funcs != nil {
		ec.Funcs = mergeBuiltins(a.funcs)
	} else {
		ec.Funcs = generators.Default()
	}
	ec.OnYield = func(group string, individuals []any) {
		fmt.Fprintf(a.outW, "%s: %d individual(s)\n", group, len(individuals))
	}

	fmt.Fprintln(a.outW, "esdlc console. Type 'exit' to leave.")
	pending := ""
	for {
		prompt := ">>> "
		if pending != "" {
			prompt = "... "
		}
		entry, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			pending = ""
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(a.outW)
			return nil
		}
		if err != nil {
			return err
		}

		if pending == "" {
			switch strings.ToLower(strings.TrimSpace(entry)) {
			case "exit", "quit":
				return nil
			case "":
				continue
			}
		}
		line.AppendHistory(entry)

		source := pending + entry + "\n"
		sys, res := esdlc.Compile(ctx, source, nil)
		if openBlock(res) {
			pending = source
			continue
		}
		pending = ""
		if !res.Valid() {
			a.printResult(res)
			continue
		}

		for _, name := range sys.BlockNames {
			if err := engine.ExecuteBlock(ctx, ec, sys.Blocks[name]); err != nil {
				a.errColor.Fprintln(a.outW, err.Error())
				break
			}
		}
	}
}

// openBlock reports whether the only errors are an unterminated block, which
// means the entry should continue on the next line.
func openBlock(res *diag.Result) bool {
	errs := res.Errors()
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e.Code != diag.CodeUnexpectedEnd {
			return false
		}
	}
	return true
}
