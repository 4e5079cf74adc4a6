// Command safedrop runs the ownership-safety analyzer of
// github.com/go-safedrop/safedrop/analyzer.
//
// By default it behaves like any golang.org/x/tools/go/analysis
// checker: it type-checks and builds SSA one package at a time, so a
// callee outside the package under analysis is seen only through its
// cached ReturnResults summary (or not at all, if the callee itself was
// never analyzed). Passing -wholeprogram instead builds the whole
// program up front, runs golang.org/x/tools/go/pointer over it, and
// resolves an interface or closure dispatch that has exactly one target
// in the resulting call graph to that target. Only the packages named
// on the command line are analyzed; the rest of the import graph is
// built so that the pointer analysis can see it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/tools/go/analysis/singlechecker"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/pointer"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/go-safedrop/safedrop/analyzer"
)

var wholeProgram = flag.Bool("wholeprogram", false, "resolve every call site, including dynamic dispatch, through a whole-program call graph instead of analyzing one package at a time")

func main() {
	flag.Parse()
	if !*wholeProgram {
		os.Args = append([]string{os.Args[0]}, flag.Args()...)
		singlechecker.Main(analyzer.Analyzer)
		return
	}
	runWholeProgram(flag.Args())
}

func runWholeProgram(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "safedrop -wholeprogram: no packages given")
		os.Exit(1)
	}

	initial, err := load(args)
	if err != nil {
		log.Fatal(err)
	}

	prog, pkgs := ssautil.AllPackages(initial, 0)
	prog.Build()

	mains, err := mainPackages(pkgs)
	if err != nil {
		log.Fatal(err)
	}

	result, err := pointer.Analyze(&pointer.Config{
		Mains:          mains,
		BuildCallGraph: true,
	})
	if err != nil {
		log.Fatal(err)
	}

	analyzer.RunWholeProgram(pkgs, result.CallGraph)
}

// mainPackages returns the main packages among pkgs, the set go/pointer
// needs as analysis roots.
func mainPackages(pkgs []*ssa.Package) ([]*ssa.Package, error) {
	var mains []*ssa.Package
	for _, p := range pkgs {
		if p != nil && p.Pkg.Name() == "main" && p.Func("main") != nil {
			mains = append(mains, p)
		}
	}
	if len(mains) == 0 {
		return nil, fmt.Errorf("no main packages among the given patterns")
	}
	return mains, nil
}

func load(patterns []string) ([]*packages.Package, error) {
	conf := packages.Config{
		Mode:  packages.LoadAllSyntax,
		Tests: true,
	}
	initial, err := packages.Load(&conf, patterns...)
	if err == nil {
		if n := packages.PrintErrors(initial); n > 1 {
			err = fmt.Errorf("%d errors during loading", n)
		} else if n == 1 {
			err = fmt.Errorf("error during loading")
		} else if len(initial) == 0 {
			err = fmt.Errorf("%s matched no packages", strings.Join(patterns, " "))
		}
	}
	return initial, err
}
