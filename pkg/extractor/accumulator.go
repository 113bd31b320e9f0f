package extractor

// accumulator collects the output of one traversal. Rules only append and
// set; nothing is removed or reordered.
type accumulator struct {
	specifiers []string
	isModule   bool
}

func newAccumulator(moduleSeed bool) *accumulator {
	return &accumulator{specifiers: make([]string, 0, 8), isModule: moduleSeed}
}

func (a *accumulator) add(specifier string) {
	a.specifiers = append(a.specifiers, specifier)
}

func (a *accumulator) markModule() {
	a.isModule = true
}

// result freezes the accumulator. The accumulator must not be used after.
func (a *accumulator) result() *Result {
	return &Result{
		Specifiers: a.specifiers,
		IsModule:   a.isModule,
	}
}
