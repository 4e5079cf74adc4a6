package analyzer_test

import (
	"testing"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/go-safedrop/safedrop/analyzer"
)

// Test runs the analyzer against every fixture under testdata/src, one
// package per spec §8 scenario: straight-line double free, branch-gated
// double free, use-after-free through a direct use and a field, a
// dangling return pointer (single-value and tuple-valued), mutual
// recursion, and the rc-like no-op.
func Test(t *testing.T) {
	analysis.Validate([]*analysis.Analyzer{analyzer.Analyzer})
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, analyzer.Analyzer,
		"doublefree",
		"useafterfree",
		"dangling",
		"safe",
		"conditional",
		"recursive",
		"switchcase",
		"rclike",
		"tuple",
	)
}
