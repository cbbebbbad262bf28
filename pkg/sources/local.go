package sources

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
)

// LocalSource serves skills from a collection directory on disk.
type LocalSource struct {
	root string
}

// NewLocalSource creates a source over the collection at root.
func NewLocalSource(root string) (*LocalSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", root)
	}
	return &LocalSource{root: abs}, nil
}

// Name returns the collection directory.
func (s *LocalSource) Name() string {
	return s.root
}

// Root returns the collection directory.
func (s *LocalSource) Root() string {
	return s.root
}

// Collection loads the skills currently on disk.
func (s *LocalSource) Collection(ctx context.Context) (*skills.Collection, error) {
	return skills.LoadCollection(ctx, s.root)
}

// Fetch returns the skill directory in place. Nothing is copied, so Close is a no-op.
func (s *LocalSource) Fetch(ctx context.Context, name string) (*Fetched, error) {
	c, err := s.Collection(ctx)
	if err != nil {
		return nil, err
	}

	skill, err := c.Get(name)
	if err != nil {
		if skills.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "'%s' in %s", name, s.root)
		}
		return nil, err
	}

	return &Fetched{
		Name:   skill.Name,
		Dir:    skill.Directory,
		Origin: s.root,
		Ref:    skill.Metadata.Version,
		Local:  true,
	}, nil
}

// List returns every skill in the collection.
func (s *LocalSource) List(ctx context.Context) ([]Entry, error) {
	c, err := s.Collection(ctx)
	if err != nil {
		return nil, err
	}
	return EntriesFor(c.All()), nil
}

// EntriesFor describes loaded skills as index entries.
func EntriesFor(list []*skills.Skill) []Entry {
	entries := make([]Entry, 0, len(list))
	for _, skill := range list {
		e := Entry{
			Name:        skill.Name,
			Description: skill.Description,
			Version:     skill.Metadata.Version,
		}
		for _, ref := range skill.References {
			if ref.Exists {
				e.References = append(e.References, ref.Path)
			}
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
