// Package archive packs a skill directory into the gzip'd tar stream served
// by the registry and unpacks such streams safely.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// MaxUnpackedSize caps the total bytes written by Unpack.
const MaxUnpackedSize int64 = 64 << 20

// ContentType is the media type of a packed skill.
const ContentType = "application/gzip"

// DefaultExclude lists paths never packed, copied or digested.
var DefaultExclude = []string{".git/**", ".DS_Store", "**/.DS_Store"}

var (
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("unsafe path in archive")
	// ErrUnsupportedEntry is returned for symlinks, devices and other special entries.
	ErrUnsupportedEntry = errors.New("unsupported archive entry")
	// ErrTooLarge is returned when the unpacked content exceeds MaxUnpackedSize.
	ErrTooLarge = errors.New("archive exceeds maximum unpacked size")
)

type entry struct {
	rel  string
	abs  string
	dir  bool
	mode fs.FileMode
	size int64
}

// Pack writes dir as a gzip'd tar to w. Entries are relative to dir, sorted,
// and carry zeroed timestamps so the same tree always packs to the same bytes.
// Only regular files and directories are included, minus DefaultExclude and
// exclude. A symlinked dir is followed.
func Pack(dir string, w io.Writer, exclude ...string) error {
	patterns := append(append([]string(nil), DefaultExclude...), exclude...)
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid exclude pattern %q", p)
		}
	}
	entries, err := collect(dir, patterns)
	if err != nil {
		return err
	}

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	for _, e := range entries {
		if err := writeEntry(tw, e); err != nil {
			return errors.Wrapf(err, "failed to pack %s", e.rel)
		}
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize tar stream")
	}
	return errors.Wrap(gw.Close(), "failed to finalize gzip stream")
}

func collect(dir string, exclude []string) ([]entry, error) {
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", dir)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}

	var entries []entry
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
		fi, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if Excluded(exclude, rel) || Excluded(exclude, rel+"/") {
				return filepath.SkipDir
			}
			entries = append(entries, entry{rel: rel, abs: p, dir: true, mode: fi.Mode().Perm()})
		case fi.Mode().IsRegular():
			if Excluded(exclude, rel) {
				return nil
			}
			entries = append(entries, entry{rel: rel, abs: p, mode: fi.Mode().Perm(), size: fi.Size()})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", dir)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}

// Excluded reports whether the slash-separated rel matches any pattern.
func Excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func writeEntry(tw *tar.Writer, e entry) error {
	hdr := &tar.Header{
		Name:    e.rel,
		Mode:    int64(e.mode),
		ModTime: time.Unix(0, 0),
		Format:  tar.FormatPAX,
	}
	if e.dir {
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		return tw.WriteHeader(hdr)
	}

	hdr.Typeflag = tar.TypeReg
	hdr.Size = e.size
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	f, err := os.Open(e.abs)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.CopyN(tw, f, e.size)
	return err
}

// Unpack extracts a stream produced by Pack into dest, creating dest if
// needed. It returns the slash-separated relative paths of the files written.
func Unpack(r io.Reader, dest string) ([]string, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gzip stream")
	}
	defer gr.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dest)
	}

	var (
		files   []string
		written int64
	)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read tar entry")
		}

		rel, err := SafeRelPath(hdr.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, errors.Wrapf(err, "failed to create directory %s", rel)
			}
		case tar.TypeReg:
			if written+hdr.Size > MaxUnpackedSize {
				return nil, ErrTooLarge
			}
			n, err := writeFile(target, tr, hdr)
			written += n
			if err != nil {
				return nil, errors.Wrapf(err, "failed to write %s", rel)
			}
			files = append(files, rel)
		default:
			return nil, errors.Wrapf(ErrUnsupportedEntry, "%s (type %c)", hdr.Name, hdr.Typeflag)
		}
	}

	sort.Strings(files)
	return files, nil
}

func writeFile(target string, r io.Reader, hdr *tar.Header) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	mode := fs.FileMode(hdr.Mode).Perm() | 0o600
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	// Read one byte past the declared size to catch lying headers.
	n, err := io.Copy(out, io.LimitReader(r, hdr.Size+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > hdr.Size {
		err = ErrTooLarge
	}
	return n, err
}

// SafeRelPath cleans an archive entry name and rejects absolute paths and
// parent traversal. The root entry cleans to "".
func SafeRelPath(name string) (string, error) {
	if strings.HasPrefix(name, "/") || strings.Contains(name, "\\") || filepath.IsAbs(name) {
		return "", errors.Wrapf(ErrUnsafePath, "%q", name)
	}

	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Wrapf(ErrUnsafePath, "%q", name)
	}
	return cleaned, nil
}
