// Package esdlc compiles ESDL definitions into executable semantic models.
//
// Compilation is a fixed pipeline: tokenize, parse, syntax validation, model
// construction, semantic validation. Every pass runs even when an earlier one
// reported errors, so a single compile reports all findings at once; the
// returned result gates execution.
package esdlc

import (
	"context"
	"os"

	"github.com/zooba/esdlc/ast"
	"github.com/zooba/esdlc/diag"
	"github.com/zooba/esdlc/internal/ctxlog"
	"github.com/zooba/esdlc/model"
)

// Compile builds the semantic model for an ESDL definition. externals, which
// may be nil, pre-declares the names the caller will bind at run time; names
// used as functions but never defined are registered as implicit externals.
//
// The returned system is non-nil whenever the source parsed at all, but must
// not be executed unless the result is valid.
func Compile(ctx context.Context, source string, externals map[string]any) (*model.System, *diag.Result) {
	logger := ctxlog.FromContext(ctx)

	tree, res := ast.Parse(source)
	res.Merge(ast.Validate(tree))
	logger.Debug("Parsed definition.", "statements", len(tree.Roots), "errors", len(res.Errors()))

	sys, buildRes := model.NewSystem(tree, externals)
	res.Merge(buildRes)
	res.Merge(model.Validate(sys))
	logger.Debug("Compiled definition.",
		"blocks", len(sys.BlockNames),
		"externals", len(sys.Externals),
		"errors", len(res.Errors()),
		"warnings", len(res.Warnings()))
	return sys, res
}

// CompileFile reads and compiles a definition file. The system's SourceName
// is set to the path for reporting.
func CompileFile(ctx context.Context, path string, externals map[string]any) (*model.System, *diag.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	sys, res := Compile(ctx, string(data), externals)
	sys.SourceName = path
	return sys, res, nil
}
