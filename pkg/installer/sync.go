package installer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jingkaihe/skillkit/pkg/lockfile"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
)

// Sync installs every entry of the lockfile at lockPath, replacing what is
// on disk. Entries whose source now yields a different digest are installed
// anyway and logged.
func (i *Installer) Sync(ctx context.Context, lockPath string) ([]*Result, error) {
	lock, err := lockfile.Read(lockPath)
	if err != nil {
		return nil, err
	}

	reqs := make([]Request, 0, len(lock.Skills))
	for _, e := range lock.Skills {
		mode, err := ParseMode(e.Mode)
		if err != nil {
			return nil, errors.Wrapf(err, "lockfile entry %s", e.Name)
		}
		reqs = append(reqs, Request{
			Skill:  e.Name,
			Source: lockedSource(lockPath, e.Source),
			Dest:   e.AbsDestination(lockPath),
			Mode:   mode,
			Force:  true,
		})
	}

	results, err := i.InstallAll(ctx, reqs)
	for _, res := range results {
		dest := filepath.Dir(res.Path)
		if e, ok := lock.Find(res.Name, lockfile.RelDestination(lockPath, dest)); ok && e.Digest != "" && e.Digest != res.Digest {
			logger.G(ctx).WithField("skill", res.Name).WithField("locked", e.Digest).WithField("installed", res.Digest).Warn("source content changed since the lockfile was written")
		}
	}
	return results, err
}

// VerifyStatus is the state of a locked skill on disk.
type VerifyStatus string

const (
	VerifyOK       VerifyStatus = "ok"
	VerifyModified VerifyStatus = "modified"
	VerifyMissing  VerifyStatus = "missing"
)

// VerifyResult reports one lockfile entry.
type VerifyResult struct {
	Entry  lockfile.Entry `json:"entry"`
	Path   string         `json:"path"`
	Status VerifyStatus   `json:"status"`
	Actual string         `json:"actual,omitempty"`
}

// Verify recomputes the digest of every locked skill and compares it with
// the lockfile.
func (i *Installer) Verify(ctx context.Context, lockPath string) ([]VerifyResult, error) {
	lock, err := lockfile.Read(lockPath)
	if err != nil {
		return nil, err
	}

	results := make([]VerifyResult, 0, len(lock.Skills))
	for _, e := range lock.Skills {
		path := filepath.Join(e.AbsDestination(lockPath), e.Name)
		r := VerifyResult{Entry: e, Path: path}

		if _, err := os.Stat(path); err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "failed to inspect %s", path)
			}
			r.Status = VerifyMissing
			results = append(results, r)
			continue
		}

		digest, _, err := DigestDir(path, i.exclude...)
		if err != nil {
			return nil, err
		}
		r.Actual = digest
		r.Status = VerifyOK
		if e.Digest != "" && digest != e.Digest {
			r.Status = VerifyModified
		}
		logger.G(ctx).WithField("skill", e.Name).WithField("status", r.Status).Debug("verified skill")
		results = append(results, r)
	}
	return results, nil
}
