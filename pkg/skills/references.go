package skills

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// collectReferences merges markdown files under references/ with markdown
// files linked from the skill body.
func collectReferences(dir string, links []string) []Reference {
	byPath := make(map[string]*Reference)

	refRoot := filepath.Join(dir, ReferencesDir)
	_ = filepath.WalkDir(refRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !isMarkdown(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		byPath[rel] = &Reference{Path: rel, Exists: true}
		return nil
	})

	for _, link := range links {
		if !isMarkdown(link) || escapesRoot(link) {
			continue
		}
		ref, ok := byPath[link]
		if !ok {
			_, statErr := os.Stat(filepath.Join(dir, filepath.FromSlash(link)))
			ref = &Reference{Path: link, Exists: statErr == nil}
			byPath[link] = ref
		}
		ref.Linked = true
	}

	refs := make([]Reference, 0, len(byPath))
	for _, ref := range byPath {
		if ref.Exists {
			ref.Title = documentTitle(filepath.Join(dir, filepath.FromSlash(ref.Path)))
		}
		if ref.Title == "" {
			ref.Title = strings.TrimSuffix(path.Base(ref.Path), path.Ext(ref.Path))
		}
		refs = append(refs, *ref)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs
}

// ReferencePath resolves a reference document of the skill to a file path.
// The reference must stay inside the skill directory.
func ReferencePath(skill *Skill, ref string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(filepath.ToSlash(ref), "./"))
	if cleaned == "." || escapesRoot(cleaned) || path.IsAbs(cleaned) {
		return "", errors.Errorf("invalid reference path %q", ref)
	}

	full := filepath.Join(skill.Directory, filepath.FromSlash(cleaned))
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("reference %q not found in skill '%s'", ref, skill.Name)
		}
		return "", errors.Wrap(err, "failed to stat reference")
	}
	if info.IsDir() {
		return "", errors.Errorf("reference %q is a directory", ref)
	}

	// a symlink inside the skill may still point outside it
	root, err := filepath.EvalSymlinks(skill.Directory)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve skill directory %s", skill.Directory)
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve reference %q", ref)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || escapesRoot(filepath.ToSlash(rel)) {
		return "", errors.Errorf("reference %q resolves outside skill '%s'", ref, skill.Name)
	}

	return full, nil
}

// ReadReference returns the content of one reference document.
func ReadReference(skill *Skill, ref string) (string, error) {
	full, err := ReferencePath(skill, ref)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read reference %s", ref)
	}
	return string(content), nil
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

func escapesRoot(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../")
}
