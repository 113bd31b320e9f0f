package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language represents a supported source language for parsing.
type Language int

const (
	// LanguageJavaScript represents JavaScript (.js, .jsx, .mjs, .cjs files)
	LanguageJavaScript Language = iota
	// LanguageTypeScript represents TypeScript (.ts, .mts, .cts, .tsx files)
	LanguageTypeScript
	// LanguageUnknown represents an unsupported language
	LanguageUnknown
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so results serialize the name.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "tsx" decodes as
// TypeScript.
func (l *Language) UnmarshalText(text []byte) error {
	lang, _ := ParseLanguageString(string(text))
	if lang == LanguageUnknown {
		return fmt.Errorf("unknown language: %q", text)
	}
	*l = lang
	return nil
}

// DetectLanguage detects the language from a file path.
// Returns LanguageUnknown if the file extension is not recognized.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile checks if a file path represents a TSX file.
// TSX files use the TypeScript grammar with JSX support enabled.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// ParseLanguageString converts a language name to a Language and TSX flag.
// "tsx" selects TypeScript with JSX enabled.
func ParseLanguageString(lang string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "javascript", "js", "jsx":
		return LanguageJavaScript, false
	case "typescript", "ts":
		return LanguageTypeScript, false
	case "tsx":
		return LanguageTypeScript, true
	default:
		return LanguageUnknown, false
	}
}

// SupportedExtensions lists the file extensions DetectLanguage recognizes.
func SupportedExtensions() []string {
	return []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".mts", ".cts", ".tsx"}
}
