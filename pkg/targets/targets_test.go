package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocator(t *testing.T) (*Locator, string, string) {
	t.Helper()
	work := t.TempDir()
	home := t.TempDir()
	l, err := NewLocator(WithWorkDir(work), WithHomeDir(home))
	require.NoError(t, err)
	return l, work, home
}

func TestLookup(t *testing.T) {
	a, err := Lookup(" Claude ")
	require.NoError(t, err)
	assert.Equal(t, "claude", a.Name)
	assert.Equal(t, filepath.Join(".claude", "skills"), a.SkillsDir())

	_, err = Lookup("emacs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent")
}

func TestResolve(t *testing.T) {
	l, work, home := newTestLocator(t)

	dirs, err := l.Resolve([]string{"claude", "cursor", "claude"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(work, ".claude", "skills"),
		filepath.Join(work, ".cursor", "skills"),
	}, dirs)

	dirs, err = l.Resolve([]string{"codex"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, ".codex", "skills")}, dirs)

	_, err = l.Resolve([]string{"nope"}, false)
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	l, work, home := newTestLocator(t)
	require.NoError(t, os.MkdirAll(filepath.Join(work, ".cursor"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, ".codex"), []byte("not a dir"), 0o644))

	project := l.Detect(false)
	require.Len(t, project, 1)
	assert.Equal(t, "cursor", project[0].Name)

	global := l.Detect(true)
	require.Len(t, global, 1)
	assert.Equal(t, "claude", global[0].Name)
}

func TestAllDirsOrder(t *testing.T) {
	l, work, home := newTestLocator(t)
	dirs := l.AllDirs()

	require.Len(t, dirs, 2*len(Names()))
	assert.Equal(t, filepath.Join(work, ".claude", "skills"), dirs[0])
	assert.Equal(t, filepath.Join(home, ".claude", "skills"), dirs[len(Names())])

	name, global, ok := l.AgentFor(dirs[len(dirs)-1])
	require.True(t, ok)
	assert.Equal(t, "codex", name)
	assert.True(t, global)

	_, _, ok = l.AgentFor("/somewhere/else")
	assert.False(t, ok)
}
