package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/targets"
	"github.com/pkg/errors"
)

// Discovery finds installed skills across agent skill directories
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithLocator uses every agent skills directory known to the locator,
// project-level directories taking precedence over global ones.
func WithLocator(l *targets.Locator) Option {
	return func(d *Discovery) error {
		d.skillDirs = l.AllDirs()
		return nil
	}
}

// WithDefaultDirs initializes with the agent directories of the current
// project and user home.
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		l, err := targets.NewLocator()
		if err != nil {
			return err
		}
		return WithLocator(l)(d)
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Dirs returns the directories searched, in precedence order.
func (d *Discovery) Dirs() []string {
	return d.skillDirs
}

// DiscoverSkills finds all available skills from configured directories.
// When two directories hold a skill with the same name the earlier wins.
func (d *Discovery) DiscoverSkills() (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	for _, dir := range d.skillDirs {
		d.discoverSkillsFromDir(dir, skills)
	}

	return skills, nil
}

func (d *Discovery) discoverSkillsFromDir(dir string, skills map[string]*Skill) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		// hidden entries include interrupted install staging dirs
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		entryPath := filepath.Join(dir, entry.Name())

		// os.Stat follows symlinks, so linked installs count as directories
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skill, err := Load(entryPath)
		if err != nil {
			continue
		}

		if _, exists := skills[skill.Name]; !exists {
			skills[skill.Name] = skill
		}
	}
}

// GetSkill returns a specific skill by name
func (d *Discovery) GetSkill(name string) (*Skill, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	skill, exists := skills[name]
	if !exists {
		return nil, errors.Wrapf(ErrSkillNotFound, "'%s'", name)
	}

	return skill, nil
}

// ListSkillNames returns the sorted names of all available skills
func (d *Discovery) ListSkillNames() ([]string, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// FilterByAllowlist filters skills by an allowlist of names
// If the allowlist is empty, all skills are returned
func FilterByAllowlist(skills map[string]*Skill, allowed []string) map[string]*Skill {
	if len(allowed) == 0 {
		return skills
	}

	filtered := make(map[string]*Skill)
	for _, name := range allowed {
		if skill, exists := skills[name]; exists {
			filtered[name] = skill
		}
	}
	return filtered
}
