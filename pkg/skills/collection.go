package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
)

// Collection is a directory of skills laid out as <root>/<name>/SKILL.md.
// Skill names are unique within a collection.
type Collection struct {
	root   string
	skills map[string]*Skill
}

// LoadCollection loads every skill directly under root. Directories without
// a SKILL.md are skipped, as are skills whose frontmatter cannot be parsed.
func LoadCollection(ctx context.Context, root string) (*Collection, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skill collection %s", root)
	}

	c := &Collection{root: root, skills: make(map[string]*Skill)}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		skill, err := Load(dir)
		if err != nil {
			if !errors.Is(err, ErrMissingPrimaryDocument) {
				logger.G(ctx).WithError(err).WithField("directory", dir).Warn("skipping invalid skill")
			}
			continue
		}

		if existing, ok := c.skills[skill.Name]; ok {
			return nil, errors.Wrapf(ErrDuplicateSkill, "'%s' defined in both %s and %s", skill.Name, existing.Directory, dir)
		}
		c.skills[skill.Name] = skill
	}

	return c, nil
}

// NewCollection builds an in-memory collection from already loaded skills.
func NewCollection(root string, list ...*Skill) (*Collection, error) {
	c := &Collection{root: root, skills: make(map[string]*Skill, len(list))}
	for _, skill := range list {
		if existing, ok := c.skills[skill.Name]; ok {
			return nil, errors.Wrapf(ErrDuplicateSkill, "'%s' defined in both %s and %s", skill.Name, existing.Directory, skill.Directory)
		}
		c.skills[skill.Name] = skill
	}
	return c, nil
}

// Root returns the collection directory.
func (c *Collection) Root() string {
	return c.root
}

// Len returns the number of skills.
func (c *Collection) Len() int {
	return len(c.skills)
}

// Get returns a skill by exact name.
func (c *Collection) Get(name string) (*Skill, error) {
	skill, ok := c.skills[strings.TrimSpace(name)]
	if !ok {
		return nil, errors.Wrapf(ErrSkillNotFound, "'%s' in %s", name, c.root)
	}
	return skill, nil
}

// Names returns all skill names in sorted order.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.skills))
	for name := range c.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all skills sorted by name.
func (c *Collection) All() []*Skill {
	out := make([]*Skill, 0, len(c.skills))
	for _, name := range c.Names() {
		out = append(out, c.skills[name])
	}
	return out
}

// Search returns skills matching pattern, sorted by name. A pattern with glob
// metacharacters is matched against the name; any other pattern is a
// case-insensitive substring match on name and description.
func (c *Collection) Search(pattern string) ([]*Skill, error) {
	match, err := Matcher(pattern)
	if err != nil {
		return nil, err
	}

	var out []*Skill
	for _, skill := range c.All() {
		if match(skill) {
			out = append(out, skill)
		}
	}
	return out, nil
}

// Matcher compiles a search pattern into a predicate.
func Matcher(pattern string) (func(*Skill) bool, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return func(*Skill) bool { return true }, nil
	}

	if strings.ContainsAny(pattern, "*?[{") {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid search pattern %q", pattern)
		}
		return func(s *Skill) bool { return g.Match(s.Name) }, nil
	}

	needle := strings.ToLower(pattern)
	return func(s *Skill) bool {
		return strings.Contains(strings.ToLower(s.Name), needle) ||
			strings.Contains(strings.ToLower(s.Description), needle)
	}, nil
}
