package sources

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ValidateRepoName validates a GitHub repository name format.
// Expected format: "owner/repo" (e.g., "jingkaihe/skills").
func ValidateRepoName(repo string) error {
	if repo == "" {
		return errors.New("repository name cannot be empty")
	}
	parts := strings.Split(repo, "/")
	if len(parts) != 2 {
		return errors.Errorf("invalid repository format %q: expected 'owner/repo'", repo)
	}
	if parts[0] == "" || parts[1] == "" {
		return errors.Errorf("invalid repository format %q: owner and repo cannot be empty", repo)
	}
	return nil
}

// ParseRepoRef splits "owner/repo@ref" into repository and ref. The ref is optional.
func ParseRepoRef(s string) (repo, ref string) {
	if idx := strings.LastIndex(s, "@"); idx > 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

// GitHubSource fetches skills from a GitHub repository by shallow cloning it.
// Skills are read from the repository's skills/ directory, or from its root
// when there is none.
type GitHubSource struct {
	repo     string
	ref      string
	run      CommandRunner
	lookPath func(string) (string, error)
}

// GitHubOption configures a GitHubSource
type GitHubOption func(*GitHubSource)

// WithCommandRunner replaces the runner used for gh and git.
func WithCommandRunner(run CommandRunner) GitHubOption {
	return func(s *GitHubSource) {
		s.run = run
	}
}

// WithLookPath replaces the executable lookup used to pick gh or git.
func WithLookPath(fn func(string) (string, error)) GitHubOption {
	return func(s *GitHubSource) {
		s.lookPath = fn
	}
}

// NewGitHubSource creates a source for "owner/repo" or "owner/repo@ref".
func NewGitHubSource(spec string, opts ...GitHubOption) (*GitHubSource, error) {
	repo, ref := ParseRepoRef(spec)
	if err := ValidateRepoName(repo); err != nil {
		return nil, err
	}

	s := &GitHubSource{
		repo:     repo,
		ref:      ref,
		run:      execRunner,
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns "github.com/owner/repo[@ref]".
func (s *GitHubSource) Name() string {
	name := "github.com/" + s.repo
	if s.ref != "" {
		name += "@" + s.ref
	}
	return name
}

// Fetch clones the repository and returns the named skill from it. The clone
// is removed by Close.
func (s *GitHubSource) Fetch(ctx context.Context, name string) (*Fetched, error) {
	tmp, err := s.cloneRepo(ctx)
	if err != nil {
		return nil, err
	}

	c, err := s.collection(ctx, tmp)
	if err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	skill, err := c.Get(name)
	if err != nil {
		os.RemoveAll(tmp)
		if skills.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "'%s' in %s", name, s.Name())
		}
		return nil, err
	}

	ref := s.headCommit(ctx, tmp)
	if ref == "" {
		ref = s.ref
	}

	return &Fetched{
		Name:    skill.Name,
		Dir:     skill.Directory,
		Origin:  "github.com/" + s.repo,
		Ref:     ref,
		cleanup: removeAllFunc(tmp),
	}, nil
}

// List clones the repository and describes its skills.
func (s *GitHubSource) List(ctx context.Context) ([]Entry, error) {
	tmp, err := s.cloneRepo(ctx)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	c, err := s.collection(ctx, tmp)
	if err != nil {
		return nil, err
	}
	return EntriesFor(c.All()), nil
}

func (s *GitHubSource) collection(ctx context.Context, checkout string) (*skills.Collection, error) {
	root := filepath.Join(checkout, "skills")
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		root = checkout
	}
	return skills.LoadCollection(ctx, root)
}

func (s *GitHubSource) cloneRepo(ctx context.Context) (string, error) {
	tempDir, err := os.MkdirTemp("", "skillkit-github-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp directory")
	}

	var (
		bin  string
		args []string
	)
	var cloneFlags []string
	if s.ref != "" {
		cloneFlags = append(cloneFlags, "--branch", s.ref)
	}
	cloneFlags = append(cloneFlags, "--depth", "1")

	if _, err := s.lookPath("gh"); err == nil {
		bin = "gh"
		args = append([]string{"repo", "clone", s.repo, tempDir, "--"}, cloneFlags...)
	} else if _, err := s.lookPath("git"); err == nil {
		bin = "git"
		args = append(append([]string{"clone"}, cloneFlags...), "https://github.com/"+s.repo+".git", tempDir)
	} else {
		os.RemoveAll(tempDir)
		return "", errors.New("neither gh nor git is installed; install one of them to fetch skills from GitHub")
	}

	logger.G(ctx).WithField("repo", s.repo).WithField("ref", s.ref).WithField("tool", bin).Debug("cloning repository")
	if output, err := s.run(ctx, bin, args...); err != nil {
		os.RemoveAll(tempDir)
		return "", errors.Wrapf(err, "failed to clone repository %s: %s", s.repo, strings.TrimSpace(string(output)))
	}

	return tempDir, nil
}

func (s *GitHubSource) headCommit(ctx context.Context, checkout string) string {
	if _, err := s.lookPath("git"); err != nil {
		return ""
	}
	out, err := s.run(ctx, "git", "-C", checkout, "rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
