package deps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCombination(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string]string
		wantErr bool
	}{
		{"single", "react@18.2.0", map[string]string{"react": "18.2.0"}, false},
		{
			"multiple with scope",
			"react@18.2.0+@babel/core@7.0.0+lodash@^4",
			map[string]string{"react": "18.2.0", "@babel/core": "7.0.0", "lodash": "^4"},
			false,
		},
		{"later duplicate wins", "a@1+a@2", map[string]string{"a": "2"}, false},
		{"dist tag", "vue@next", map[string]string{"vue": "next"}, false},
		{"empty", "", nil, true},
		{"empty part", "a@1++b@2", nil, true},
		{"missing version", "react@", nil, true},
		{"no at", "react", nil, true},
		{"scope without name", "@babel/@7", nil, true},
		{"bare scope marker", "@@1", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCombination(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCombination(t *testing.T) {
	deps := map[string]string{"react": "18.2.0", "@babel/core": "7.0.0"}
	s := FormatCombination(deps)
	assert.Equal(t, "@babel/core@7.0.0+react@18.2.0", s)

	back, err := ParseCombination(s)
	require.NoError(t, err)
	assert.Equal(t, deps, back)

	assert.Equal(t, "", FormatCombination(nil))
}

func TestClassify(t *testing.T) {
	tests := map[string]SpecifierKind{
		"./a":                   KindRelative,
		"../b/c":                KindRelative,
		".":                     KindRelative,
		"..":                    KindRelative,
		"/abs/path":             KindAbsolute,
		"node:fs":               KindBuiltin,
		"fs":                    KindBuiltin,
		"fs/promises":           KindBuiltin,
		"path":                  KindBuiltin,
		"fs-extra":              KindBare,
		"https://esm.sh/react":  KindURL,
		"data:text/javascript,": KindURL,
		"react":                 KindBare,
		"@scope/pkg":            KindBare,
		"lodash/fp":             KindBare,
		"C:/win":                KindBare,
		".hidden":               KindBare,
		"":                      KindBare,
	}
	for spec, want := range tests {
		assert.Equal(t, want, Classify(spec), spec)
	}
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "lodash", PackageName("lodash/fp"))
	assert.Equal(t, "@scope/pkg", PackageName("@scope/pkg/sub/path"))
	assert.Equal(t, "@scope", PackageName("@scope"))
	assert.Equal(t, "react", PackageName("react"))
	assert.Equal(t, "", PackageName("./local"))
	assert.Equal(t, "", PackageName("node:fs"))
	assert.Equal(t, "", PackageName("stream/web"))
}

func TestCount(t *testing.T) {
	got := Count([]string{"b", "./a", "b", "node:fs", "b"})
	assert.Equal(t, []Counted{
		{Specifier: "b", Kind: KindBare, Count: 3},
		{Specifier: "./a", Kind: KindRelative, Count: 1},
		{Specifier: "node:fs", Kind: KindBuiltin, Count: 1},
	}, got)
	assert.Empty(t, Count(nil))
}
