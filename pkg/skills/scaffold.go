package skills

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const skillTemplate = `---
name: %s
description: %s
---

# %s

## When to use

Describe the situations in which an agent should load this skill.

## Instructions

1. Step-by-step guidance for the agent.

## References

- [Overview](references/overview.md)
`

const referenceTemplate = `# Overview

Detailed reference material for %s.
`

// Scaffold creates a new skill directory <root>/<name> with a SKILL.md and a
// starter reference document.
func Scaffold(root, name, description string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if description == "" {
		description = fmt.Sprintf("Use when working with %s.", name)
	}

	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err == nil {
		return "", errors.Errorf("directory %s already exists", dir)
	}

	if err := os.MkdirAll(filepath.Join(dir, ReferencesDir), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create skill directory")
	}

	skillDoc := fmt.Sprintf(skillTemplate, name, description, name)
	if err := os.WriteFile(filepath.Join(dir, SkillFileName), []byte(skillDoc), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write SKILL.md")
	}

	refDoc := fmt.Sprintf(referenceTemplate, name)
	if err := os.WriteFile(filepath.Join(dir, ReferencesDir, "overview.md"), []byte(refDoc), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write reference document")
	}

	return dir, nil
}
