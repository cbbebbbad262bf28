package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecifier(t *testing.T) {
	tests := []struct {
		raw  string
		want Specifier
	}{
		{"solid-js", Specifier{Name: "solid-js"}},
		{" utoipa ", Specifier{Name: "utoipa"}},
		{"jingkaihe/skills:solid-js", Specifier{Name: "solid-js", Source: "jingkaihe/skills"}},
		{"jingkaihe/skills:solid-js@v1.2.0", Specifier{Name: "solid-js", Source: "jingkaihe/skills@v1.2.0"}},
		{"jingkaihe/skills@main:solid-js", Specifier{Name: "solid-js", Source: "jingkaihe/skills@main"}},
		{"https://skills.example.com:utoipa", Specifier{Name: "utoipa", Source: "https://skills.example.com"}},
		{"http://localhost:8732/registry:utoipa", Specifier{Name: "utoipa", Source: "http://localhost:8732/registry"}},
		{"./vendor/skills:utoipa", Specifier{Name: "utoipa", Source: "./vendor/skills"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSpecifier(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSpecifierErrors(t *testing.T) {
	for _, raw := range []string{
		"",
		"http://localhost:8732",
		"https://skills.example.com",
		"jingkaihe/skills",
		"jingkaihe/skills:Bad_Name",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseSpecifier(raw)
			assert.Error(t, err)
		})
	}
}

func TestSpecifierString(t *testing.T) {
	for _, raw := range []string{
		"solid-js",
		"jingkaihe/skills:solid-js@v1.2.0",
		"https://skills.example.com:utoipa",
	} {
		spec, err := ParseSpecifier(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, spec.String())
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindHTTP, Kind("https://skills.example.com"))
	assert.Equal(t, KindLocal, Kind("./skills"))
	assert.Equal(t, KindLocal, Kind("~/skills"))
	assert.Equal(t, KindLocal, Kind(t.TempDir()))
	assert.Equal(t, KindGitHub, Kind("jingkaihe/skills@main"))
}

func TestNewResolverFromStrings(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa", "OpenAPI")

	r, err := NewResolverFromStrings(context.Background(), []string{root, "https://skills.example.com", "jingkaihe/skills"}, Options{})
	require.NoError(t, err)
	require.Len(t, r.Sources(), 3)
	assert.IsType(t, &LocalSource{}, r.Sources()[0])
	assert.IsType(t, &HTTPSource{}, r.Sources()[1])
	assert.IsType(t, &GitHubSource{}, r.Sources()[2])

	f, err := r.Fetch(context.Background(), "utoipa")
	require.NoError(t, err)
	assert.True(t, f.Local)
}
