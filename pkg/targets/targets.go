// Package targets knows where AI coding agents look for skills. Every agent
// has a project-level skills directory relative to the working directory and
// a user-level (global) one under the home directory.
package targets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Agent describes one supported AI coding agent.
type Agent struct {
	Name      string
	ConfigDir string // e.g. ".claude", relative to project root or home
}

// SkillsDir is the skills directory inside the agent's config directory.
func (a Agent) SkillsDir() string {
	return filepath.Join(a.ConfigDir, "skills")
}

// Ordered by preference; discovery precedence follows this order.
var agents = []Agent{
	{Name: "claude", ConfigDir: ".claude"},
	{Name: "agents", ConfigDir: ".agents"},
	{Name: "cursor", ConfigDir: ".cursor"},
	{Name: "codex", ConfigDir: ".codex"},
}

// Names returns the supported agent names in preference order.
func Names() []string {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	return names
}

// Lookup returns the agent with the given name.
func Lookup(name string) (Agent, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range agents {
		if a.Name == name {
			return a, nil
		}
	}
	return Agent{}, errors.Errorf("unknown agent %q (supported: %s)", name, strings.Join(Names(), ", "))
}

// Locator resolves agent directories against a working and home directory.
type Locator struct {
	workDir string
	homeDir string
}

// Option configures a Locator
type Option func(*Locator)

// WithWorkDir sets the project root (defaults to ".")
func WithWorkDir(dir string) Option {
	return func(l *Locator) { l.workDir = dir }
}

// WithHomeDir sets the home directory (for testing)
func WithHomeDir(dir string) Option {
	return func(l *Locator) { l.homeDir = dir }
}

// NewLocator creates a Locator rooted at the current directory and user home.
func NewLocator(opts ...Option) (*Locator, error) {
	l := &Locator{workDir: "."}
	for _, opt := range opts {
		opt(l)
	}

	if l.homeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get user home directory")
		}
		l.homeDir = home
	}
	return l, nil
}

func (l *Locator) base(global bool) string {
	if global {
		return l.homeDir
	}
	return l.workDir
}

// Dir returns the skills directory of agent.
func (l *Locator) Dir(agent Agent, global bool) string {
	return filepath.Join(l.base(global), agent.SkillsDir())
}

// Resolve maps agent names to skills directories, deduplicated, in the
// order given.
func (l *Locator) Resolve(names []string, global bool) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, name := range names {
		agent, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		dir := l.Dir(agent, global)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// Detect returns agents whose config directory exists at the chosen level.
func (l *Locator) Detect(global bool) []Agent {
	var found []Agent
	for _, a := range agents {
		if info, err := os.Stat(filepath.Join(l.base(global), a.ConfigDir)); err == nil && info.IsDir() {
			found = append(found, a)
		}
	}
	return found
}

// AllDirs returns every agent skills directory, project-level first, in
// discovery precedence order.
func (l *Locator) AllDirs() []string {
	dirs := make([]string, 0, 2*len(agents))
	for _, global := range []bool{false, true} {
		for _, a := range agents {
			dirs = append(dirs, l.Dir(a, global))
		}
	}
	return dirs
}

// AgentFor reports which agent and level own dir, if any.
func (l *Locator) AgentFor(dir string) (name string, global bool, ok bool) {
	clean := filepath.Clean(dir)
	for _, g := range []bool{false, true} {
		for _, a := range agents {
			if filepath.Clean(l.Dir(a, g)) == clean {
				return a.Name, g, true
			}
		}
	}
	return "", false, false
}

// SortedNames returns agent names alphabetically, for help text.
func SortedNames() []string {
	names := Names()
	sort.Strings(names)
	return names
}
