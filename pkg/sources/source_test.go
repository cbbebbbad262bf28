package sources

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name    string
	entries []Entry
	err     error
	fetched []string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, name string) (*Fetched, error) {
	s.fetched = append(s.fetched, name)
	if s.err != nil {
		return nil, s.err
	}
	for _, e := range s.entries {
		if e.Name == name {
			return &Fetched{Name: name, Origin: s.name}, nil
		}
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

func (s *stubSource) List(context.Context) ([]Entry, error) {
	return s.entries, s.err
}

func TestResolverFetch(t *testing.T) {
	first := &stubSource{name: "first", entries: []Entry{{Name: "utoipa"}}}
	second := &stubSource{name: "second", entries: []Entry{{Name: "utoipa"}, {Name: "solid-js"}}}
	r := NewResolver(first, second)

	t.Run("first hit wins", func(t *testing.T) {
		f, err := r.Fetch(context.Background(), "utoipa")
		require.NoError(t, err)
		assert.Equal(t, "first", f.Origin)
	})

	t.Run("misses fall through", func(t *testing.T) {
		f, err := r.Fetch(context.Background(), "solid-js")
		require.NoError(t, err)
		assert.Equal(t, "second", f.Origin)
	})

	t.Run("all misses", func(t *testing.T) {
		_, err := r.Fetch(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
		assert.Contains(t, err.Error(), "first, second")
	})
}

func TestResolverAbortsOnError(t *testing.T) {
	broken := &stubSource{name: "broken", err: errors.New("connection refused")}
	later := &stubSource{name: "later", entries: []Entry{{Name: "utoipa"}}}

	_, err := NewResolver(broken, later).Fetch(context.Background(), "utoipa")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, later.fetched)
}

func TestResolverNoSources(t *testing.T) {
	_, err := NewResolver().Fetch(context.Background(), "utoipa")
	assert.ErrorContains(t, err, "no skill sources configured")
}

func TestResolverList(t *testing.T) {
	first := &stubSource{name: "first", entries: []Entry{{Name: "utoipa", Description: "first"}}}
	second := &stubSource{name: "second", entries: []Entry{{Name: "utoipa", Description: "second"}, {Name: "solid-js"}}}

	entries, err := NewResolver(first, second).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "solid-js", entries[0].Name)
	assert.Equal(t, "first", entries[1].Description)
}

func TestLocalSource(t *testing.T) {
	root := t.TempDir()
	dir := writeSkill(t, root, "solid-js", "SolidJS reactivity")

	src, err := NewLocalSource(root)
	require.NoError(t, err)
	assert.Equal(t, root, src.Name())

	f, err := src.Fetch(context.Background(), "solid-js")
	require.NoError(t, err)
	assert.Equal(t, dir, f.Dir)
	assert.True(t, f.Local)
	assert.Equal(t, "1.0.0", f.Ref)
	require.NoError(t, f.Close())
	assert.DirExists(t, dir, "closing a local fetch keeps the source")

	_, err = src.Fetch(context.Background(), "utoipa")
	assert.True(t, IsNotFound(err))

	entries, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"references/guide.md"}, entries[0].References)
}

func TestLocalSourceMissingRoot(t *testing.T) {
	src, err := NewLocalSource(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), "utoipa")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}
