package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
)

// FileStatus is how an installed file differs from its source.
type FileStatus string

const (
	StatusAdded    FileStatus = "added"    // in the source, not installed
	StatusRemoved  FileStatus = "removed"  // installed, gone from the source
	StatusModified FileStatus = "modified" // present in both with different content
)

// FileDiff is the difference for one file.
type FileDiff struct {
	Path    string     `json:"path"`
	Status  FileStatus `json:"status"`
	Unified string     `json:"unified"`
}

// DiffResult compares an installed skill with its source.
type DiffResult struct {
	Name      string     `json:"name"`
	Installed string     `json:"installed"`
	Origin    string     `json:"origin"`
	Files     []FileDiff `json:"files"`
}

// Changed reports whether any file differs.
func (d *DiffResult) Changed() bool {
	return len(d.Files) > 0
}

// Diff compares dest/<name> against the skill as its source provides it now.
func (i *Installer) Diff(ctx context.Context, skill, source, dest string) (*DiffResult, error) {
	fetched, err := i.Fetch(ctx, skill, source)
	if err != nil {
		return nil, err
	}
	defer fetched.Close()

	installed := filepath.Join(dest, fetched.Name)
	if _, err := os.Stat(installed); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotInstalled, "'%s' in %s", fetched.Name, dest)
		}
		return nil, errors.Wrapf(err, "failed to inspect %s", installed)
	}

	srcFiles, err := listFiles(fetched.Dir, i.exclude)
	if err != nil {
		return nil, err
	}
	dstFiles, err := listFiles(installed, i.exclude)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{Name: fetched.Name, Installed: installed, Origin: fetched.Origin}
	for _, rel := range union(srcFiles, dstFiles) {
		oldText, oldOK, err := readOptional(installed, rel)
		if err != nil {
			return nil, err
		}
		newText, newOK, err := readOptional(fetched.Dir, rel)
		if err != nil {
			return nil, err
		}

		var status FileStatus
		switch {
		case !oldOK:
			status = StatusAdded
		case !newOK:
			status = StatusRemoved
		case oldText != newText:
			status = StatusModified
		default:
			continue
		}

		result.Files = append(result.Files, FileDiff{
			Path:    rel,
			Status:  status,
			Unified: udiff.Unified("installed/"+rel, "source/"+rel, oldText, newText),
		})
	}
	return result, nil
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func readOptional(root, rel string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "failed to read %s", rel)
	}
	return string(data), true, nil
}
