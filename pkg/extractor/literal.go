package extractor

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// identifierName returns the name an identifier node binds. Identifiers may
// spell code points as \uXXXX or \u{X}, which decode like string escapes.
func identifierName(node *ts.Node, source []byte) string {
	text := node.Utf8Text(source)
	if !strings.ContainsRune(text, '\\') {
		return text
	}
	return cookString(`"` + text + `"`)
}

// cookString returns the value of a string literal given its source text,
// quotes included, decoding escape sequences the way the runtime would.
func cookString(text string) string {
	if len(text) < 2 {
		return ""
	}
	body := text[1 : len(text)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}

	var b strings.Builder
	b.Grow(len(body))
	var pendingHigh rune = -1

	flushHigh := func() {
		if pendingHigh >= 0 {
			b.WriteRune(utf8.RuneError)
			pendingHigh = -1
		}
	}
	writeUnit := func(r rune) {
		switch {
		case utf16.IsSurrogate(r) && r < 0xDC00:
			flushHigh()
			pendingHigh = r
		case utf16.IsSurrogate(r):
			if pendingHigh >= 0 {
				b.WriteRune(utf16.DecodeRune(pendingHigh, r))
				pendingHigh = -1
				return
			}
			b.WriteRune(utf8.RuneError)
		default:
			flushHigh()
			b.WriteRune(r)
		}
	}

	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			flushHigh()
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(body) {
			break
		}
		i++
		c = body[i]
		switch c {
		case 'n':
			writeUnit('\n')
			i++
		case 't':
			writeUnit('\t')
			i++
		case 'r':
			writeUnit('\r')
			i++
		case 'b':
			writeUnit('\b')
			i++
		case 'f':
			writeUnit('\f')
			i++
		case 'v':
			writeUnit('\v')
			i++
		case '\r':
			// Line continuation: \ CR LF or \ CR.
			i++
			if i < len(body) && body[i] == '\n' {
				i++
			}
		case '\n':
			i++
		case 'x':
			if v, ok := parseHex(body, i+1, 2); ok {
				writeUnit(rune(v))
				i += 3
			} else {
				writeUnit('x')
				i++
			}
		case 'u':
			r, n := parseUnicodeEscape(body[i+1:])
			if n == 0 {
				writeUnit('u')
				i++
				continue
			}
			writeUnit(r)
			i += 1 + n
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v, n := parseLegacyOctal(body[i:])
			writeUnit(rune(v))
			i += n
		default:
			r, size := utf8.DecodeRuneInString(body[i:])
			i += size
			// LINE SEPARATOR and PARAGRAPH SEPARATOR continue the line too.
			if r == '\u2028' || r == '\u2029' {
				continue
			}
			writeUnit(r)
		}
	}
	flushHigh()
	return b.String()
}

// parseUnicodeEscape decodes the text after \u: either XXXX or {X...}.
// It returns the code point and the number of bytes consumed, or 0.
func parseUnicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0
		}
		return rune(v), end + 1
	}
	v, ok := parseHex(s, 0, 4)
	if !ok {
		return 0, 0
	}
	return rune(v), 4
}

func parseHex(s string, start, n int) (uint64, bool) {
	if start+n > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseLegacyOctal decodes up to three octal digits with a value of at
// most 0377. \0 not followed by a digit is NUL.
func parseLegacyOctal(s string) (int, int) {
	limit := 3
	if s[0] > '3' {
		limit = 2
	}
	v, n := 0, 0
	for n < limit && n < len(s) && s[n] >= '0' && s[n] <= '7' {
		v = v*8 + int(s[n]-'0')
		n++
	}
	return v, n
}

// rawTemplate returns the raw text of a template literal's single static
// chunk given its source text, backticks included. CR LF and lone CR are
// normalized to LF.
func rawTemplate(text string) string {
	if len(text) < 2 {
		return ""
	}
	body := text[1 : len(text)-1]
	if !strings.ContainsRune(body, '\r') {
		return body
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.ReplaceAll(body, "\r", "\n")
}
