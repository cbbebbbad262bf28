package installer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultDebounce is the quiet period Watch waits for before reinstalling.
const DefaultDebounce = 300 * time.Millisecond

// Watch reinstalls req every time its source changes, until ctx is done.
// Only copy installs from a local source can be watched. notify, if not nil,
// is called after each reinstall.
func (i *Installer) Watch(ctx context.Context, req Request, debounce time.Duration, notify func(*Result, error)) error {
	if req.Mode == ModeSymlink {
		return errors.New("symlink installs track their source already, nothing to watch")
	}
	if debounce < 0 {
		return errors.Errorf("debounce cannot be negative: %s", debounce)
	}

	fetched, err := i.Fetch(ctx, req.Skill, req.Source)
	if err != nil {
		return err
	}
	dir := fetched.Dir
	local := fetched.Local
	fetched.Close()
	if !local {
		return errors.Errorf("%s is not a local skill, only local sources can be watched", fetched.Name)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := addRecursive(watcher, dir); err != nil {
		return err
	}

	log := logger.WithInstall(ctx, fetched.Name, req.Dest)
	logger.G(log).WithField("dir", dir).Info("watching skill source")

	req.Force = true
	req.DryRun = false

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name); err != nil {
						logger.G(log).WithError(err).Warn("failed to watch new directory")
					}
				}
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			logger.G(log).WithField("path", event.Name).WithField("op", event.Op.String()).Debug("source changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(log).WithError(err).Warn("file watcher error")

		case <-fire:
			res, err := i.Install(ctx, req)
			if err != nil {
				logger.G(log).WithError(err).Error("reinstall failed")
			}
			if notify != nil {
				notify(res, err)
			}
		}
	}
}

// addRecursive watches root and every directory below it. A symlinked root
// is resolved first since WalkDir does not descend into it.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", root)
	}
	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}
