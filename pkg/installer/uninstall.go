package installer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/telemetry"
	"github.com/pkg/errors"
)

// Uninstall removes dest/name. A symlinked install is unlinked and its
// target left alone.
func (i *Installer) Uninstall(ctx context.Context, name, dest string) (_ string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "installer.uninstall", telemetry.SkillAttributes(name, dest)...)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := skills.ValidateName(name); err != nil {
		return "", err
	}
	target := filepath.Join(dest, name)

	info, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(ErrNotInstalled, "'%s' in %s", name, dest)
		}
		return "", errors.Wrapf(err, "failed to inspect %s", target)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		err = os.Remove(target)
	} else {
		err = os.RemoveAll(target)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to remove %s", target)
	}

	logger.G(logger.WithInstall(ctx, name, dest)).WithField("path", target).Info("uninstalled skill")
	return target, i.recordUninstall(ctx, name, dest)
}
