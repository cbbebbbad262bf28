package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, name string) string {
	t.Helper()

	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "references"), 0o755))
	content := "---\nname: " + name + "\ndescription: Skill " + name + "\nversion: 1.0.0\n---\n\nSee [guide](references/guide.md).\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "references", "guide.md"), []byte("# Guide\n"), 0o644))
	return dir
}

func localInstaller(t *testing.T, root string, opts ...Option) *Installer {
	t.Helper()
	src, err := sources.NewLocalSource(root)
	require.NoError(t, err)
	return New(append([]Option{WithResolver(sources.NewResolver(src))}, opts...)...)
}

// remoteSource serves skills from a directory but reports them as remote.
type remoteSource struct {
	root string
}

func (s *remoteSource) Name() string { return "https://registry.example.com" }

func (s *remoteSource) Fetch(_ context.Context, name string) (*sources.Fetched, error) {
	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(filepath.Join(dir, "SKILL.md")); err != nil {
		return nil, errors.Wrap(sources.ErrNotFound, name)
	}
	return &sources.Fetched{Name: name, Dir: dir, Origin: s.Name(), Ref: "2.0.0"}, nil
}

func (s *remoteSource) List(context.Context) ([]sources.Entry, error) {
	return nil, nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newRemoteResolver(root string) *sources.Resolver {
	return sources.NewResolver(&remoteSource{root: root})
}
