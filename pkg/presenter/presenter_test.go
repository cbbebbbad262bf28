package presenter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name          string
		noColor       string
		skillkitColor string
		expected      ColorMode
	}{
		{"NO_COLOR set", "1", "", ColorNever},
		{"SKILLKIT_COLOR always", "", "always", ColorAlways},
		{"SKILLKIT_COLOR force", "", "force", ColorAlways},
		{"SKILLKIT_COLOR never", "", "never", ColorNever},
		{"SKILLKIT_COLOR off", "", "off", ColorNever},
		{"default", "", "", ColorAuto},
		{"invalid value", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLKIT_COLOR", tt.skillkitColor)

			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	var errorOutput bytes.Buffer
	p := NewWithOptions(nil, &errorOutput, ColorNever)

	p.Error(errors.New("boom"), "install failed")
	assert.Equal(t, "[ERROR] install failed: boom\n", errorOutput.String())

	errorOutput.Reset()
	p.Error(errors.New("boom"), "")
	assert.Equal(t, "[ERROR] boom\n", errorOutput.String())

	errorOutput.Reset()
	p.Error(nil, "ignored")
	assert.Empty(t, errorOutput.String())
}

func TestQuietMode(t *testing.T) {
	var output, errorOutput bytes.Buffer
	p := NewWithOptions(&output, &errorOutput, ColorNever)
	p.SetQuiet(true)
	require.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("note")
	p.Section("Title")
	assert.Empty(t, output.String())

	p.Error(errors.New("still shown"), "")
	assert.Contains(t, errorOutput.String(), "still shown")
}

func TestMessages(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)

	p.Success("installed")
	p.Warning("skipped")
	p.Info("plain")
	p.Section("Skills")

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "✓ installed", lines[0])
	assert.Equal(t, "⚠ skipped", lines[1])
	assert.Equal(t, "plain", lines[2])
	assert.Equal(t, "Skills", lines[3])
	assert.Equal(t, "------", lines[4])
}

func TestTable(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)
	p.SetQuiet(true)

	p.Table([]string{"NAME", "DESCRIPTION"}, [][]string{
		{"solid-js", "Reactive UI"},
		{"utoipa", "OpenAPI docs"},
	})

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "----"))
	assert.Contains(t, lines[2], "solid-js")
	assert.Contains(t, lines[3], "OpenAPI docs")
}

func TestFiles(t *testing.T) {
	var output bytes.Buffer
	p := NewWithOptions(&output, nil, ColorNever)
	p.SetQuiet(true)

	p.Files("utoipa", []string{"SKILL.md", "references/derive.md", "references/nested/x.md", "references/z.md", "scripts/a.sh"})

	assert.Equal(t, `utoipa/
  SKILL.md
  references/
    derive.md
    nested/
      x.md
    z.md
  scripts/
    a.sh
`, output.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "multi line text", Truncate("multi\nline   text", 40))
}
