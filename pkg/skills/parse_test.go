package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "solid-js")
	writeFile(t, filepath.Join(dir, SkillFileName), `---
name: solid-js
description: Use when building SolidJS components
version: 1.2.0
license: MIT
allowed-tools:
  - Read
  - Edit
homepage: https://example.com
---

# SolidJS

See [signals](references/signals.md) and [stores](references/stores.md#usage).
External [docs](https://docs.solidjs.com) and [anchor](#top) are ignored.
`)
	writeFile(t, filepath.Join(dir, "references", "signals.md"), "# Signals\n\ncreateSignal...\n")
	writeFile(t, filepath.Join(dir, "references", "stores.md"), "Stores without a heading.\n")
	writeFile(t, filepath.Join(dir, "references", "extra", "effects.md"), "# Effects\n")

	skill, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "solid-js", skill.Name)
	assert.Equal(t, "Use when building SolidJS components", skill.Description)
	assert.Equal(t, dir, skill.Directory)
	assert.Equal(t, "1.2.0", skill.Metadata.Version)
	assert.Equal(t, "MIT", skill.Metadata.License)
	assert.Equal(t, []string{"Read", "Edit"}, skill.Metadata.AllowedTools)
	assert.Equal(t, "https://example.com", skill.Metadata.Extra["homepage"])
	assert.True(t, len(skill.Content) > 0 && skill.Content[0] == '#')
	assert.Equal(t, []string{"references/signals.md", "references/stores.md"}, skill.Links)

	require.Len(t, skill.References, 3)
	assert.Equal(t, Reference{Path: "references/extra/effects.md", Title: "Effects", Exists: true}, skill.References[0])
	assert.Equal(t, Reference{Path: "references/signals.md", Title: "Signals", Linked: true, Exists: true}, skill.References[1])
	assert.Equal(t, Reference{Path: "references/stores.md", Title: "stores", Linked: true, Exists: true}, skill.References[2])
}

func TestLoadErrors(t *testing.T) {
	root := t.TempDir()

	t.Run("missing SKILL.md", func(t *testing.T) {
		dir := filepath.Join(root, "empty")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		_, err := Load(dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingPrimaryDocument)
	})

	t.Run("no frontmatter", func(t *testing.T) {
		dir := filepath.Join(root, "plain")
		writeFile(t, filepath.Join(dir, SkillFileName), "# Just content\n")
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrMissingFrontmatter)
	})

	t.Run("missing description", func(t *testing.T) {
		dir := writeSkill(t, root, "nodesc", "nodesc", "", "body")
		_, err := Load(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "description is required")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := filepath.Join(root, "badyaml")
		writeFile(t, filepath.Join(dir, SkillFileName), "---\nname: [unclosed\n---\nbody\n")
		_, err := Load(dir)
		assert.Error(t, err)
	})
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "with frontmatter",
			input:    "---\nname: test\ndescription: desc\n---\n\n# Content\n\nBody text.",
			expected: "# Content\n\nBody text.",
		},
		{
			name:     "no frontmatter",
			input:    "# Just content\nNo frontmatter.",
			expected: "# Just content\nNo frontmatter.",
		},
		{
			name:     "incomplete frontmatter",
			input:    "---\nname: test\n# No closing",
			expected: "---\nname: test\n# No closing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractBody(tt.input))
		})
	}
}

func TestExtractLinks(t *testing.T) {
	content := []byte(`[a](./references/a.md) [b](references/b.md#section) [dup](references/a.md)
[web](http://example.com/x.md) [mail](mailto:me@example.com) [abs](/etc/passwd)
[up](../outside.md) [script](scripts/run.sh?raw=1) [space](references/with%20space.md)`)

	assert.Equal(t, []string{
		"references/a.md",
		"references/b.md",
		"../outside.md",
		"scripts/run.sh",
		"references/with space.md",
	}, ExtractLinks(content))
}
