package installer

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillkit/pkg/sources"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// InstallAll runs the requests concurrently, bounded by the configured
// concurrency. One failure does not stop the others: the successful results
// are returned in request order along with every failure combined.
func (i *Installer) InstallAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	if err := checkDuplicateTargets(reqs); err != nil {
		return nil, err
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		merr    *multierror.Error
		results = make([]*Result, len(reqs))
	)
	g.SetLimit(i.concurrency)

	for idx, req := range reqs {
		g.Go(func() error {
			res, err := i.Install(ctx, req)
			if err != nil {
				mu.Lock()
				merr = multierror.Append(merr, errors.Wrapf(err, "%s", req.Skill))
				mu.Unlock()
			}
			if res != nil {
				results[idx] = res
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*Result, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out, merr.ErrorOrNil()
}

// checkDuplicateTargets rejects batches that would write the same skill
// into the same directory twice, however the skill and directory are spelled.
func checkDuplicateTargets(reqs []Request) error {
	seen := make(map[[2]string]string, len(reqs))
	for _, req := range reqs {
		name := req.Skill
		if spec, err := sources.ParseSpecifier(req.Skill); err == nil {
			name = spec.Name
		}
		dest, err := filepath.Abs(req.Dest)
		if err != nil {
			dest = filepath.Clean(req.Dest)
		}
		key := [2]string{name, dest}
		if prev, ok := seen[key]; ok {
			return errors.Errorf("skill %s requested twice for %s (as %q and %q)", name, req.Dest, prev, req.Skill)
		}
		seen[key] = req.Skill
	}
	return nil
}
