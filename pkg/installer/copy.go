package installer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/skillkit/pkg/archive"
	"github.com/pkg/errors"
)

const stagingMarker = ".staging-"

// listFiles returns the slash-separated paths of regular files under dir,
// sorted, skipping anything matched by exclude. A symlinked dir is followed.
func listFiles(dir string, exclude []string) ([]string, error) {
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Errorf("invalid exclude pattern %q", p)
		}
	}

	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", dir)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excluded(exclude, rel) || excluded(exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || excluded(exclude, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", dir)
	}

	sort.Strings(files)
	return files, nil
}

func excluded(patterns []string, rel string) bool {
	return archive.Excluded(patterns, rel)
}

// placeCopy copies files from src into a staging directory beside target and
// renames it into place, so target is either the old install or the complete
// new one. Leftover staging directories from interrupted runs are removed first.
func placeCopy(src, target string, files []string) error {
	parent := filepath.Dir(target)
	name := filepath.Base(target)

	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create destination %s", parent)
	}
	removeStaging(parent, name)

	stage, err := os.MkdirTemp(parent, "."+name+stagingMarker+"*")
	if err != nil {
		return errors.Wrapf(err, "failed to write to destination %s", parent)
	}
	if err := os.Chmod(stage, 0o755); err != nil {
		os.RemoveAll(stage)
		return errors.Wrap(err, "failed to set staging permissions")
	}

	if err := copyFiles(src, stage, files); err != nil {
		os.RemoveAll(stage)
		return errors.Wrap(err, "failed to copy skill files")
	}

	if err := swapInto(stage, target); err != nil {
		os.RemoveAll(stage)
		return err
	}
	return nil
}

// placeLink points target at linkTarget, replacing whatever target was.
func placeLink(linkTarget, target string) error {
	abs, err := filepath.Abs(linkTarget)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", linkTarget)
	}

	parent := filepath.Dir(target)
	name := filepath.Base(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create destination %s", parent)
	}
	removeStaging(parent, name)

	// MkdirTemp reserves a unique name; the link takes its place.
	reserved, err := os.MkdirTemp(parent, "."+name+stagingMarker+"*")
	if err != nil {
		return errors.Wrapf(err, "failed to write to destination %s", parent)
	}
	link := reserved + ".link"
	os.Remove(reserved)

	if err := os.Symlink(abs, link); err != nil {
		return errors.Wrapf(err, "failed to create symlink %s", target)
	}
	if err := swapInto(link, target); err != nil {
		os.Remove(link)
		return err
	}
	return nil
}

// swapInto renames staged onto target. An existing target is moved aside
// first and restored if the rename fails.
func swapInto(staged, target string) error {
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return errors.Wrapf(os.Rename(staged, target), "failed to move skill into %s", target)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to inspect %s", target)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if st, err := os.Lstat(staged); err == nil && st.Mode()&os.ModeSymlink != 0 {
			// link over link is a single rename
			return errors.Wrapf(os.Rename(staged, target), "failed to move skill into %s", target)
		}
		if err := os.Remove(target); err != nil {
			return errors.Wrapf(err, "failed to remove symlink %s", target)
		}
		return errors.Wrapf(os.Rename(staged, target), "failed to move skill into %s", target)
	}

	backup := staged + ".old"
	if err := os.Rename(target, backup); err != nil {
		return errors.Wrapf(err, "failed to move aside %s", target)
	}
	if err := os.Rename(staged, target); err != nil {
		_ = os.Rename(backup, target)
		return errors.Wrapf(err, "failed to move skill into %s", target)
	}
	return errors.Wrapf(os.RemoveAll(backup), "failed to remove previous install of %s", target)
}

func removeStaging(parent, name string) {
	matches, _ := filepath.Glob(filepath.Join(parent, "."+name+stagingMarker+"*"))
	for _, m := range matches {
		os.RemoveAll(m)
	}
}

func copyFiles(src, dst string, files []string) error {
	root, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	for _, rel := range files {
		from := filepath.Join(root, filepath.FromSlash(rel))
		to := filepath.Join(dst, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return err
		}
		if err := copyFile(from, to); err != nil {
			return errors.Wrapf(err, "failed to copy %s", rel)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// checkOverlap refuses targets that would replace or nest inside the source.
// The target's last element is not followed, so re-linking a symlink that
// points at the source is allowed.
func checkOverlap(source, target string) error {
	srcs := []string{location(source)}
	if resolved, err := filepath.EvalSymlinks(source); err == nil {
		srcs = append(srcs, resolved)
	}
	dst := location(target)
	for _, src := range srcs {
		if within(src, dst) || within(dst, src) {
			return errors.Wrapf(ErrSourceOverlap, "%s and %s", source, target)
		}
	}
	return nil
}

// location resolves symlinks in p's parent directories but not in p itself.
func location(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	return filepath.Join(resolveExisting(filepath.Dir(abs)), filepath.Base(abs))
}

// resolveExisting resolves the longest existing prefix of p.
func resolveExisting(p string) string {
	var rest []string
	for {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return filepath.Join(append([]string{p}, rest...)...)
		}
		rest = append([]string{filepath.Base(p)}, rest...)
		p = parent
	}
}

// within reports whether p is base or lies under it.
func within(base, p string) bool {
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
