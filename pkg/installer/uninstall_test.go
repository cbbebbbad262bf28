package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUninstall(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	ctx := context.Background()
	inst := localInstaller(t, root)

	t.Run("copy", func(t *testing.T) {
		dest := t.TempDir()
		_, err := inst.Install(ctx, Request{Skill: "utoipa", Dest: dest})
		require.NoError(t, err)

		removed, err := inst.Uninstall(ctx, "utoipa", dest)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dest, "utoipa"), removed)
		assert.NoDirExists(t, removed)
	})

	t.Run("symlink keeps its target", func(t *testing.T) {
		dest := t.TempDir()
		_, err := inst.Install(ctx, Request{Skill: "utoipa", Dest: dest, Mode: ModeSymlink})
		require.NoError(t, err)

		removed, err := inst.Uninstall(ctx, "utoipa", dest)
		require.NoError(t, err)
		_, err = os.Lstat(removed)
		assert.True(t, os.IsNotExist(err))
		assert.FileExists(t, filepath.Join(src, "SKILL.md"))
		assert.FileExists(t, filepath.Join(src, "references", "guide.md"))
	})

	t.Run("not installed", func(t *testing.T) {
		_, err := inst.Uninstall(ctx, "utoipa", t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotInstalled))
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := inst.Uninstall(ctx, "../etc", t.TempDir())
		assert.Error(t, err)
	})
}

func TestDiff(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	dest := t.TempDir()
	ctx := context.Background()
	inst := localInstaller(t, root)

	_, err := inst.Diff(ctx, "utoipa", "", dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInstalled))

	_, err = inst.Install(ctx, Request{Skill: "utoipa", Dest: dest})
	require.NoError(t, err)

	d, err := inst.Diff(ctx, "utoipa", "", dest)
	require.NoError(t, err)
	assert.False(t, d.Changed())

	require.NoError(t, os.WriteFile(filepath.Join(src, "references", "guide.md"), []byte("# Guide\n\nMore detail.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "references", "api.md"), []byte("# API\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "utoipa", "references", "old.md"), []byte("# Old\n"), 0o644))

	d, err = inst.Diff(ctx, "utoipa", "", dest)
	require.NoError(t, err)
	require.True(t, d.Changed())
	require.Len(t, d.Files, 3)

	byPath := map[string]FileDiff{}
	for _, f := range d.Files {
		byPath[f.Path] = f
	}
	assert.Equal(t, StatusAdded, byPath["references/api.md"].Status)
	assert.Equal(t, StatusRemoved, byPath["references/old.md"].Status)
	assert.Equal(t, StatusModified, byPath["references/guide.md"].Status)
	assert.Contains(t, byPath["references/guide.md"].Unified, "+More detail.")
	assert.Contains(t, byPath["references/guide.md"].Unified, "--- installed/references/guide.md")
	assert.Contains(t, byPath["references/old.md"].Unified, "-# Old")
}
