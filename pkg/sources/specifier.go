package sources

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/config"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/pkg/errors"
)

// Specifier names a skill and, optionally, the source to fetch it from.
//
//	solid-js                              name only, resolved through configured sources
//	jingkaihe/skills:solid-js@v1.2.0      GitHub repository, optional ref
//	https://skills.example.com:solid-js   registry URL
//	./vendor/skills:solid-js              local collection
type Specifier struct {
	Name   string
	Source string
}

// String formats the specifier in the form accepted by ParseSpecifier.
func (s Specifier) String() string {
	if s.Source == "" {
		return s.Name
	}
	repo, ref := ParseRepoRef(s.Source)
	if ref != "" && Kind(s.Source) == KindGitHub {
		return repo + ":" + s.Name + "@" + ref
	}
	return s.Source + ":" + s.Name
}

// ParseSpecifier parses a skill specifier.
func ParseSpecifier(raw string) (Specifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Specifier{}, errors.New("skill specifier cannot be empty")
	}

	var spec Specifier
	switch {
	case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
		schemeEnd := strings.Index(raw, "://") + 3
		rest := raw[schemeEnd:]
		idx := strings.LastIndex(rest, ":")
		if idx < 0 {
			return Specifier{}, errors.Errorf("invalid specifier %q: missing skill name after ':'", raw)
		}
		base, name := rest[:idx], rest[idx+1:]
		if !strings.Contains(base, "/") {
			if _, err := strconv.Atoi(name); err == nil {
				return Specifier{}, errors.Errorf("invalid specifier %q: missing skill name after ':'", raw)
			}
		}
		spec = Specifier{Name: name, Source: raw[:schemeEnd] + base}

	case strings.Contains(raw, ":"):
		idx := strings.LastIndex(raw, ":")
		src, rest := raw[:idx], raw[idx+1:]
		spec = Specifier{Name: rest, Source: src}
		if Kind(src) == KindGitHub {
			name, ref := ParseRepoRef(rest)
			spec.Name = name
			if ref != "" {
				spec.Source = src + "@" + ref
			}
		}

	default:
		spec = Specifier{Name: raw}
	}

	if spec.Source == "" && strings.Contains(spec.Name, "/") {
		return Specifier{}, errors.Errorf("invalid specifier %q: expected 'owner/repo:name' for GitHub sources", raw)
	}
	if err := skills.ValidateName(spec.Name); err != nil {
		return Specifier{}, errors.Wrapf(err, "invalid specifier %q", raw)
	}
	return spec, nil
}

// SourceKind classifies a source string.
type SourceKind int

const (
	KindLocal SourceKind = iota
	KindHTTP
	KindGitHub
)

// Kind classifies a source string. Anything that looks like a path, or
// exists on disk, is local; "owner/repo[@ref]" is GitHub.
func Kind(src string) SourceKind {
	switch {
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		return KindHTTP
	case strings.HasPrefix(src, ".") || strings.HasPrefix(src, "/") || strings.HasPrefix(src, "~"):
		return KindLocal
	}
	if _, err := os.Stat(src); err == nil {
		return KindLocal
	}
	repo, _ := ParseRepoRef(src)
	if ValidateRepoName(repo) == nil {
		return KindGitHub
	}
	return KindLocal
}

// Options carries the settings shared by sources built from strings.
type Options struct {
	Retry        config.RetryConfig
	Token        string
	HTTPClient   *http.Client
	GitHubOption []GitHubOption
}

// New builds a source from its string form.
func New(ctx context.Context, src string, opts Options) (Source, error) {
	switch Kind(src) {
	case KindHTTP:
		httpOpts := []HTTPOption{WithToken(opts.Token)}
		if opts.Retry.Attempts > 0 {
			httpOpts = append(httpOpts, WithRetry(opts.Retry))
		}
		if opts.HTTPClient != nil {
			httpOpts = append(httpOpts, WithHTTPClient(opts.HTTPClient))
		}
		return NewHTTPSource(ctx, src, httpOpts...)
	case KindGitHub:
		return NewGitHubSource(src, opts.GitHubOption...)
	default:
		return NewLocalSource(expandHome(src))
	}
}

// NewResolverFromStrings builds a resolver over sources in their string form.
func NewResolverFromStrings(ctx context.Context, srcs []string, opts Options) (*Resolver, error) {
	list := make([]Source, 0, len(srcs))
	for _, src := range srcs {
		s, err := New(ctx, src, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid source %q", src)
		}
		list = append(list, s)
	}
	return NewResolver(list...), nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
