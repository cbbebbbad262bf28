// Package lockfile reads and writes skills-lock.yaml, the record of which
// skills a project installs, from where, and with what content digest.
package lockfile

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"gopkg.in/yaml.v3"
)

// Version is the lockfile format version written by this package.
const Version = 1

// Entry pins one installed skill.
type Entry struct {
	Name        string `yaml:"name" json:"name" jsonschema:"required"`
	Source      string `yaml:"source,omitempty" json:"source,omitempty" jsonschema:"description=Registry URL, GitHub repository or local collection the skill came from"`
	Ref         string `yaml:"ref,omitempty" json:"ref,omitempty"`
	Mode        string `yaml:"mode" json:"mode" jsonschema:"enum=copy,enum=symlink"`
	Destination string `yaml:"destination" json:"destination" jsonschema:"required,description=Skills directory relative to the lockfile"`
	Digest      string `yaml:"digest,omitempty" json:"digest,omitempty" jsonschema:"pattern=^sha256:[0-9a-f]{64}$"`
}

// Lock is the decoded lockfile.
type Lock struct {
	Version int     `yaml:"version" json:"version" jsonschema:"required,enum=1"`
	Skills  []Entry `yaml:"skills" json:"skills"`
}

// New returns an empty lock.
func New() *Lock {
	return &Lock{Version: Version, Skills: []Entry{}}
}

// Decode parses lockfile content. Empty content is an empty lock.
func Decode(data []byte) (*Lock, error) {
	lock := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return lock, nil
	}
	if err := yaml.Unmarshal(data, lock); err != nil {
		return nil, errors.Wrap(err, "failed to parse lockfile")
	}
	if lock.Version != Version {
		return nil, errors.Errorf("unsupported lockfile version %d", lock.Version)
	}
	if lock.Skills == nil {
		lock.Skills = []Entry{}
	}
	return lock, nil
}

// Encode renders the lock with entries sorted by destination then name.
func (l *Lock) Encode() ([]byte, error) {
	l.sort()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, errors.Wrap(err, "failed to encode lockfile")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode lockfile")
	}
	return buf.Bytes(), nil
}

// Read loads the lockfile at path. A missing file is an empty lock.
func Read(path string) (*Lock, error) {
	data, err := lockedfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrapf(err, "failed to read lockfile %s", path)
	}
	return Decode(data)
}

// Update applies fn to the lockfile at path while holding a file lock,
// creating the file if needed.
func Update(path string, fn func(*Lock) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create lockfile directory")
	}

	return lockedfile.Transform(path, func(data []byte) ([]byte, error) {
		lock, err := Decode(data)
		if err != nil {
			return nil, err
		}
		if err := fn(lock); err != nil {
			return nil, err
		}
		return lock.Encode()
	})
}

// Find returns the entry for name installed into destination.
func (l *Lock) Find(name, destination string) (Entry, bool) {
	for _, e := range l.Skills {
		if e.Name == name && e.Destination == destination {
			return e, true
		}
	}
	return Entry{}, false
}

// Upsert adds e or replaces the entry with the same name and destination.
func (l *Lock) Upsert(e Entry) {
	for i := range l.Skills {
		if l.Skills[i].Name == e.Name && l.Skills[i].Destination == e.Destination {
			l.Skills[i] = e
			return
		}
	}
	l.Skills = append(l.Skills, e)
	l.sort()
}

// Remove deletes the entry for name in destination and reports whether one existed.
func (l *Lock) Remove(name, destination string) bool {
	for i := range l.Skills {
		if l.Skills[i].Name == name && l.Skills[i].Destination == destination {
			l.Skills = append(l.Skills[:i], l.Skills[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Lock) sort() {
	sort.SliceStable(l.Skills, func(i, j int) bool {
		if l.Skills[i].Destination != l.Skills[j].Destination {
			return l.Skills[i].Destination < l.Skills[j].Destination
		}
		return l.Skills[i].Name < l.Skills[j].Name
	})
}

// RelDestination expresses dir relative to the lockfile's directory when it
// lies inside it, so lockfiles stay portable across checkouts.
func RelDestination(lockPath, dir string) string {
	absLock, err := filepath.Abs(filepath.Dir(lockPath))
	if err != nil {
		return filepath.ToSlash(dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	rel, err := filepath.Rel(absLock, absDir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(absDir)
	}
	return filepath.ToSlash(rel)
}

// AbsDestination resolves the entry's destination against the lockfile's directory.
func (e Entry) AbsDestination(lockPath string) string {
	dest := filepath.FromSlash(e.Destination)
	if filepath.IsAbs(dest) {
		return dest
	}
	return filepath.Join(filepath.Dir(lockPath), dest)
}
