// Package deps holds helpers for the dependency lists consumers build from
// extraction results: name@version combinations, specifier classification
// and duplicate collapsing.
package deps

import (
	"fmt"
	"sort"
	"strings"
)

// ParseCombination parses a dependency combination such as
// "react@18.2.0+@babel/core@7.0.0" into a name to version map.
//
// Each part is split at its last '@', so scoped package names keep their
// leading '@'. When a name repeats, the later version wins.
func ParseCombination(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty dependency combination")
	}

	deps := make(map[string]string)
	for i, part := range strings.Split(s, "+") {
		if part == "" {
			return nil, fmt.Errorf("dependency %d: empty entry", i+1)
		}
		at := strings.LastIndexByte(part, '@')
		if at <= 0 {
			return nil, fmt.Errorf("dependency %d (%q): missing @version", i+1, part)
		}
		name, version := part[:at], part[at+1:]
		if name == "@" || strings.HasSuffix(name, "/") {
			return nil, fmt.Errorf("dependency %d (%q): missing package name", i+1, part)
		}
		if version == "" {
			return nil, fmt.Errorf("dependency %d (%q): missing version", i+1, part)
		}
		deps[name] = version
	}
	return deps, nil
}

// FormatCombination is the inverse of ParseCombination, with names sorted.
func FormatCombination(deps map[string]string) string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "@" + deps[name]
	}
	return strings.Join(parts, "+")
}
