// Package skills models agent skills: named directories holding a SKILL.md
// primary document with YAML frontmatter and optional reference documents
// under references/. It loads and validates single skills, treats a directory
// of skills as a collection with unique names, and discovers installed
// skills across agent skill directories.
package skills

import (
	"github.com/pkg/errors"
)

const (
	// SkillFileName is the primary document every skill must contain.
	SkillFileName = "SKILL.md"
	// ReferencesDir holds supplementary markdown documents.
	ReferencesDir = "references"

	maxNameLength        = 64
	maxDescriptionLength = 1024
)

var (
	// ErrMissingPrimaryDocument is returned when a skill directory has no SKILL.md.
	ErrMissingPrimaryDocument = errors.New("skill primary document SKILL.md not found")
	// ErrMissingFrontmatter is returned when SKILL.md has no YAML frontmatter.
	ErrMissingFrontmatter = errors.New("missing frontmatter")
	// ErrDuplicateSkill is returned when two skills in a collection share a name.
	ErrDuplicateSkill = errors.New("duplicate skill name")
	// ErrSkillNotFound is returned when a lookup by name misses.
	ErrSkillNotFound = errors.New("skill not found")
)

// Skill represents a loaded skill with its metadata
type Skill struct {
	Name        string      // Unique name from frontmatter
	Description string      // Trigger description used by agents to pick the skill
	Directory   string      // Full path to the skill directory
	Content     string      // SKILL.md body without frontmatter
	Metadata    Metadata    // Decoded frontmatter
	Links       []string    // Relative link destinations found in the body
	References  []Reference // Reference documents owned by the skill
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name         string         `mapstructure:"name" yaml:"name" json:"name" jsonschema:"required,pattern=^[a-z0-9]+(-[a-z0-9]+)*$,maxLength=64"`
	Description  string         `mapstructure:"description" yaml:"description" json:"description" jsonschema:"required,maxLength=1024"`
	Version      string         `mapstructure:"version" yaml:"version,omitempty" json:"version,omitempty"`
	License      string         `mapstructure:"license" yaml:"license,omitempty" json:"license,omitempty"`
	AllowedTools []string       `mapstructure:"allowed-tools" yaml:"allowed-tools,omitempty" json:"allowed-tools,omitempty"`
	Extra        map[string]any `mapstructure:",remain" yaml:"-" json:"-"`
}

// Reference is a markdown document linked from, or stored alongside, a skill.
type Reference struct {
	Path   string // Slash-separated path relative to the skill directory
	Title  string // First heading, or the file name without extension
	Linked bool   // Whether SKILL.md links to it
	Exists bool   // Whether the file is present on disk
}

// IsNotFound reports whether err means a skill lookup missed.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSkillNotFound)
}
