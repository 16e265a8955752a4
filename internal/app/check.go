package app

import (
	"context"
	"fmt"

	"github.com/zooba/esdlc"
	"github.com/zooba/esdlc/diag"
	"github.com/zooba/esdlc/internal/cli"
)

// runCheck compiles one definition file and prints every finding.
func (a *App) runCheck(ctx context.Context, cfg *cli.Config) error {
	sys, res, err := esdlc.CompileFile(ctx, cfg.Path, nil)
	if err != nil {
		return err
	}
	a.printResult(res)
	if !res.Valid() {
		return &cli.ExitError{
			Code:    1,
			Message: fmt.Sprintf("%s: %d error(s)", cfg.Path, len(res.Errors())),
		}
	}
	a.okColor.Fprintf(a.outW, "%s: ok (%d block(s), %d external(s))\n",
		cfg.Path, len(sys.BlockNames), len(sys.Externals))
	return nil
}

func (a *App) printResult(res *diag.Result) {
	for _, e := range res.All() {
		if e.IsWarning() {
			a.warnColor.Fprintln(a.outW, e.Error())
		} else {
			a.errColor.Fprintln(a.outW, e.Error())
		}
	}
}
