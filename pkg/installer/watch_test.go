package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReinstallsOnChange(t *testing.T) {
	root := t.TempDir()
	src := writeSkill(t, root, "utoipa")
	dest := t.TempDir()
	inst := localInstaller(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *Result, 16)
	done := make(chan error, 1)
	go func() {
		done <- inst.Watch(ctx, Request{Skill: "utoipa", Dest: dest}, 20*time.Millisecond, func(res *Result, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	guide := filepath.Join(src, "references", "guide.md")
	installed := filepath.Join(dest, "utoipa", "references", "guide.md")
	require.Eventually(t, func() bool {
		// keep touching the source until the watcher has registered it
		_ = os.WriteFile(guide, []byte("# Guide v2\n"), 0o644)
		select {
		case <-results:
			data, err := os.ReadFile(installed)
			return err == nil && string(data) == "# Guide v2\n"
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(src, "references", "nested"), 0o755))
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(src, "references", "nested", "deep.md"), []byte("# Deep\n"), 0o644)
		select {
		case <-results:
			_, err := os.Stat(filepath.Join(dest, "utoipa", "references", "nested", "deep.md"))
			return err == nil
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchFollowsSymlinkedSource(t *testing.T) {
	actual := writeSkill(t, t.TempDir(), "utoipa")
	root := t.TempDir()
	require.NoError(t, os.Symlink(actual, filepath.Join(root, "utoipa")))
	dest := t.TempDir()
	inst := localInstaller(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *Result, 16)
	done := make(chan error, 1)
	go func() {
		done <- inst.Watch(ctx, Request{Skill: "utoipa", Dest: dest}, 20*time.Millisecond, func(res *Result, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	guide := filepath.Join(actual, "references", "guide.md")
	installed := filepath.Join(dest, "utoipa", "references", "guide.md")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(guide, []byte("# Guide v2\n"), 0o644)
		select {
		case <-results:
			data, err := os.ReadFile(installed)
			return err == nil && string(data) == "# Guide v2\n"
		default:
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)

	info, err := os.Lstat(filepath.Join(dest, "utoipa"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func TestWatchRejectsSymlinkMode(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")

	err := localInstaller(t, root).Watch(context.Background(), Request{Skill: "utoipa", Dest: t.TempDir(), Mode: ModeSymlink}, DefaultDebounce, nil)
	assert.Error(t, err)
}

func TestWatchRejectsRemoteSource(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "utoipa")
	inst := New(WithResolver(newRemoteResolver(root)))

	err := inst.Watch(context.Background(), Request{Skill: "utoipa", Dest: t.TempDir()}, DefaultDebounce, nil)
	assert.Error(t, err)
}
