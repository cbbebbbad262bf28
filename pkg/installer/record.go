package installer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/ledger"
	"github.com/jingkaihe/skillkit/pkg/lockfile"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/pkg/errors"
)

// LockfilePath returns the lockfile kept in sync, if any.
func (i *Installer) LockfilePath() string {
	return i.lockPath
}

func (i *Installer) recordInstall(ctx context.Context, res *Result, dest, source string) error {
	if i.ledger != nil {
		_, err := i.ledger.Record(ctx, ledger.Entry{
			Action:      ledger.ActionInstall,
			Name:        res.Name,
			Origin:      res.Origin,
			Ref:         res.Ref,
			Mode:        string(res.Mode),
			Destination: absPath(res.Path),
			Digest:      res.Digest,
		})
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record install history")
		}
	}

	if i.lockPath == "" {
		return nil
	}
	if source == "" {
		source = res.Origin
	}
	entry := lockfile.Entry{
		Name:        res.Name,
		Source:      i.lockSource(source),
		Ref:         res.Ref,
		Mode:        string(res.Mode),
		Destination: lockfile.RelDestination(i.lockPath, dest),
		Digest:      res.Digest,
	}

	i.lockMu.Lock()
	defer i.lockMu.Unlock()
	err := lockfile.Update(i.lockPath, func(l *lockfile.Lock) error {
		l.Upsert(entry)
		return nil
	})
	return errors.Wrapf(err, "installed %s but failed to update %s", res.Name, i.lockPath)
}

func (i *Installer) recordUninstall(ctx context.Context, name, dest string) error {
	if i.ledger != nil {
		_, err := i.ledger.Record(ctx, ledger.Entry{
			Action:      ledger.ActionUninstall,
			Name:        name,
			Destination: absPath(filepath.Join(dest, name)),
		})
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record uninstall history")
		}
	}

	if i.lockPath == "" {
		return nil
	}

	i.lockMu.Lock()
	defer i.lockMu.Unlock()
	rel := lockfile.RelDestination(i.lockPath, dest)
	err := lockfile.Update(i.lockPath, func(l *lockfile.Lock) error {
		l.Remove(name, rel)
		return nil
	})
	return errors.Wrapf(err, "removed %s but failed to update %s", name, i.lockPath)
}

// lockSource stores local collections relative to the lockfile.
func (i *Installer) lockSource(source string) string {
	if sources.Kind(source) != sources.KindLocal || !filepath.IsAbs(source) {
		return source
	}
	rel := lockfile.RelDestination(i.lockPath, source)
	if filepath.IsAbs(filepath.FromSlash(rel)) {
		return rel
	}
	return "./" + rel
}

// lockedSource resolves a lockfile source against the lockfile directory.
func lockedSource(lockPath, source string) string {
	if source == "" || sources.Kind(source) != sources.KindLocal {
		return source
	}
	p := filepath.FromSlash(source)
	if filepath.IsAbs(p) || strings.HasPrefix(source, "~") {
		return source
	}
	return filepath.Join(filepath.Dir(lockPath), p)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
