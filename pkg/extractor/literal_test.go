package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCookString(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`"abc"`, "abc"},
		{`''`, ""},
		{`'a\nb'`, "a\nb"},
		{`"\t\r\b\f\v"`, "\t\r\b\f\v"},
		{`"\x41B\u{43}"`, "ABC"},
		{`"😀"`, "\U0001F600"},
		{`"\u{1F600}"`, "\U0001F600"},
		{`"\uD83D\uDE00"`, "\U0001F600"},
		{`"\uD83D"`, "\uFFFD"},
		{"\"a\\\nb\"", "ab"},
		{"\"a\\\r\nb\"", "ab"},
		{`"\101"`, "A"},
		{`"\0"`, "\x00"},
		{`"\08"`, "\x008"},
		{`"\400"`, " 0"},
		{`"\8"`, "8"},
		{`"\q"`, "q"},
		{`'\''`, "'"},
		{`"\\"`, `\`},
		{`"héllo"`, "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, cookString(tt.text))
		})
	}
}

func TestRawTemplate(t *testing.T) {
	assert.Equal(t, "left-pad", rawTemplate("`left-pad`"))
	assert.Equal(t, `a\nb`, rawTemplate("`a\\nb`"))
	assert.Equal(t, "a\nb\nc", rawTemplate("`a\r\nb\rc`"))
	assert.Equal(t, "", rawTemplate("``"))
}
