// Package nofixeddelay implements an analyzer forbidding time.Sleep in
// packages that schedule samples.
package nofixeddelay

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer reports time.Sleep calls in the scheduling packages. A sleep of a
// fixed interval accumulates drift; those loops wait on a deadline or a timer
// that also watches ctx.Done().
var Analyzer = &analysis.Analyzer{
	Name: "nofixeddelay",
	Doc:  "forbid time.Sleep in sample scheduling packages",
	Run:  run,
}

var packages string

func init() {
	Analyzer.Flags.StringVar(&packages, "packages", "/internal/generator,/internal/lifecycle,/internal/transport",
		"comma-separated package path suffixes to check")
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || !checked(pass.Pkg.Path()) {
		return nil, nil
	}
	for _, f := range pass.Files {
		fn := pass.Fset.Position(f.Pos()).Filename
		if strings.HasSuffix(fn, "_test.go") || isGenerated(f) {
			continue
		}

		ast.Inspect(f, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			obj, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
			if ok && obj.Pkg() != nil && obj.Pkg().Path() == "time" && obj.Name() == "Sleep" {
				pass.Reportf(call.Pos(), "do not use time.Sleep in scheduling code; wait for an absolute deadline with a timer and ctx.Done()")
			}
			return true
		})
	}
	return nil, nil
}

func checked(path string) bool {
	for _, suffix := range strings.Split(packages, ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" && strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func isGenerated(f *ast.File) bool {
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			if strings.Contains(c.Text, "Code generated") && strings.Contains(c.Text, "DO NOT EDIT") {
				return true
			}
		}
	}
	return false
}
