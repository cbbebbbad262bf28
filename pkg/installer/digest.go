package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DigestPrefix marks the hash algorithm in digests.
const DigestPrefix = "sha256:"

// Digest hashes the sorted relative paths and contents of files under dir.
func Digest(dir string, files []string) (string, error) {
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", dir)
	}

	h := sha256.New()
	for _, rel := range files {
		io.WriteString(h, rel)
		h.Write([]byte{0})

		f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", errors.Wrapf(err, "failed to read %s", rel)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", errors.Wrapf(err, "failed to read %s", rel)
		}
		h.Write([]byte{0})
	}
	return DigestPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// DigestDir lists the files under dir, honouring the default excludes plus
// extra, and digests them.
func DigestDir(dir string, extra ...string) (string, []string, error) {
	exclude := append(append([]string(nil), DefaultExclude...), extra...)
	files, err := listFiles(dir, exclude)
	if err != nil {
		return "", nil, err
	}
	digest, err := Digest(dir, files)
	return digest, files, err
}
