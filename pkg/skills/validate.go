package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Issue is one validation finding for a skill.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// Report holds the validation result of one skill directory.
type Report struct {
	Directory string  `json:"directory"`
	Skill     *Skill  `json:"-"`
	Issues    []Issue `json:"issues"`
}

// HasErrors reports whether any issue is an error.
func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the number of error-level issues.
func (r *Report) Errors() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Report) add(sev Severity, path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateName checks a skill name against the naming rules.
func ValidateName(name string) error {
	if name == "" {
		return errors.Errorf("skill name cannot be empty")
	}
	if len(name) > maxNameLength {
		return errors.Errorf("skill name %q exceeds %d characters", name, maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return errors.Errorf("skill name %q must contain only lowercase letters, digits and single hyphens", name)
	}
	return nil
}

// Validate checks a skill directory and reports every issue found.
func Validate(dir string) *Report {
	report := &Report{Directory: dir}

	skill, err := Load(dir)
	if err != nil {
		report.add(SeverityError, SkillFileName, "%v", err)
		return report
	}
	report.Skill = skill

	if err := ValidateName(skill.Name); err != nil {
		report.add(SeverityError, SkillFileName, "%v", err)
	}
	if n := utf8.RuneCountInString(skill.Description); n > maxDescriptionLength {
		report.add(SeverityError, SkillFileName, "description has %d characters, maximum is %d", n, maxDescriptionLength)
	}

	if base := filepath.Base(filepath.Clean(dir)); base != skill.Name {
		report.add(SeverityWarning, SkillFileName, "skill name %q differs from directory name %q", skill.Name, base)
	}

	for _, link := range skill.Links {
		if escapesRoot(link) {
			report.add(SeverityError, SkillFileName, "link %q points outside the skill directory", link)
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(link))); err != nil {
			report.add(SeverityError, SkillFileName, "broken link %q", link)
		}
	}

	for _, ref := range skill.References {
		if ref.Exists && !ref.Linked {
			report.add(SeverityWarning, ref.Path, "reference document is not linked from %s", SkillFileName)
		}
	}

	sortIssues(report.Issues)
	return report
}

func sortIssues(issues []Issue) {
	rank := func(s Severity) int {
		if s == SeverityError {
			return 0
		}
		return 1
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if rank(issues[i].Severity) != rank(issues[j].Severity) {
			return rank(issues[i].Severity) < rank(issues[j].Severity)
		}
		return issues[i].Path < issues[j].Path
	})
}
