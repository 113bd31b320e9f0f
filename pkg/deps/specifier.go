package deps

import "strings"

// SpecifierKind describes the shape of a module specifier. It says nothing
// about whether the specifier resolves.
type SpecifierKind string

const (
	KindRelative SpecifierKind = "relative"
	KindAbsolute SpecifierKind = "absolute"
	KindURL      SpecifierKind = "url"
	KindBuiltin  SpecifierKind = "builtin"
	KindBare     SpecifierKind = "bare"
)

// Classify returns the kind of spec.
func Classify(spec string) SpecifierKind {
	switch {
	case spec == "." || spec == ".." ||
		strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		return KindRelative
	case strings.HasPrefix(spec, "/"):
		return KindAbsolute
	case strings.HasPrefix(spec, "node:"):
		return KindBuiltin
	case hasScheme(spec):
		return KindURL
	case nodeBuiltins[firstSegment(spec)]:
		return KindBuiltin
	default:
		return KindBare
	}
}

// nodeBuiltins are the Node.js core modules importable without the "node:"
// prefix (module.builtinModules, top-level names only).
var nodeBuiltins = map[string]bool{
	"assert": true, "async_hooks": true, "buffer": true, "child_process": true,
	"cluster": true, "console": true, "constants": true, "crypto": true,
	"dgram": true, "diagnostics_channel": true, "dns": true, "domain": true,
	"events": true, "fs": true, "http": true, "http2": true, "https": true,
	"inspector": true, "module": true, "net": true, "os": true, "path": true,
	"perf_hooks": true, "process": true, "punycode": true, "querystring": true,
	"readline": true, "repl": true, "stream": true, "string_decoder": true,
	"sys": true, "timers": true, "tls": true, "trace_events": true, "tty": true,
	"url": true, "util": true, "v8": true, "vm": true, "wasi": true,
	"worker_threads": true, "zlib": true,
}

func firstSegment(spec string) string {
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		return spec[:i]
	}
	return spec
}

// hasScheme reports a URL scheme prefix (RFC 3986: ALPHA *( ALPHA / DIGIT / "+" / "-" / "." ) ":").
// Single letters are rejected so Windows drive paths stay bare.
func hasScheme(spec string) bool {
	colon := strings.IndexByte(spec, ':')
	if colon < 2 {
		return false
	}
	for i, r := range spec[:colon] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// PackageName returns the package a bare specifier names: "lodash/fp"
// gives "lodash", "@scope/pkg/sub" gives "@scope/pkg". Other kinds
// return "".
func PackageName(spec string) string {
	if Classify(spec) != KindBare {
		return ""
	}
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 {
			return spec
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// Counted is a specifier and the number of times it occurred.
type Counted struct {
	Specifier string        `json:"specifier" yaml:"specifier"`
	Kind      SpecifierKind `json:"kind" yaml:"kind"`
	Count     int           `json:"count" yaml:"count"`
}

// Count collapses duplicate specifiers, keeping first-seen order.
func Count(specs []string) []Counted {
	out := make([]Counted, 0, len(specs))
	index := make(map[string]int, len(specs))
	for _, s := range specs {
		if i, ok := index[s]; ok {
			out[i].Count++
			continue
		}
		index[s] = len(out)
		out = append(out, Counted{Specifier: s, Kind: Classify(s), Count: 1})
	}
	return out
}
