package parser

import (
	"github.com/gnana997/depscan/pkg/util"
)

// poolSize returns the number of parsers per grammar.
//
// It delegates to util.GetOptimalPoolSizeWithOverride so the parser pools
// and the indexer's worker pool agree on a size. A worker pool larger than
// the parser pool would leave workers blocked in acquire.
func poolSize(override int) int {
	return util.GetOptimalPoolSizeWithOverride(override)
}
