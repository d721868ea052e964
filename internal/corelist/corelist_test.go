package corelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "5.036000", set.Perl())
	assert.Greater(t, set.Len(), 100)

	v, ok := set.Version("ExtUtils::MakeMaker")
	assert.True(t, ok)
	assert.Equal(t, "7.64", v)

	_, ok = set.Version("Moose")
	assert.False(t, ok)
}

func TestSet_Provides(t *testing.T) {
	set := New("5.036000", map[string]string{
		"Carp":   "1.52",
		"Config": "undef",
	})

	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{"Carp", "0", true},
		{"Carp", "1.50", true},
		{"Carp", "1.60", false},
		{"Carp", "1.4602", true},
		{"Carp", "1.6", false},
		{"Config", "99", true},
		{"Moose", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"_"+tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Provides(tt.name, tt.version))
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "core.toml")
	require.NoError(t, os.WriteFile(path, []byte(`perl = "5.032001"

[modules]
"List::Util" = "1.55"
`), 0644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5.032001", set.Perl())
	assert.True(t, set.Provides("List::Util", "1.45"))
	assert.Equal(t, 1, set.Len())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("modules = [")
	assert.Error(t, err)
}
