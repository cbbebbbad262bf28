package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skillkit/pkg/archive"
	"github.com/jingkaihe/skillkit/pkg/config"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/telemetry"
	"github.com/jingkaihe/skillkit/pkg/version"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
)

// Headers set by the registry on archive responses.
const (
	HeaderVersion = "X-Skill-Version"
	HeaderDigest  = "X-Skill-Digest"
)

// StatusError is returned for unexpected registry responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("registry returned %d", e.StatusCode)
}

// HTTPSource fetches skills from a registry server.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
	token  string
	retry  config.RetryConfig
}

// HTTPOption configures an HTTPSource
type HTTPOption func(*HTTPSource)

// WithToken sends a bearer token with every request.
func WithToken(token string) HTTPOption {
	return func(s *HTTPSource) {
		s.token = token
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg config.RetryConfig) HTTPOption {
	return func(s *HTTPSource) {
		s.retry = cfg
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// NewHTTPSource creates a client for the registry rooted at baseURL.
func NewHTTPSource(ctx context.Context, baseURL string, opts ...HTTPOption) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid registry URL %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid registry URL %q: scheme must be http or https", baseURL)
	}

	s := &HTTPSource{
		base:   u,
		client: &http.Client{Timeout: 60 * time.Second},
		retry:  config.DefaultRetryConfig,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.token})
		s.client = oauth2.NewClient(ctx, ts)
	}

	return s, nil
}

// Name returns the registry URL.
func (s *HTTPSource) Name() string {
	return s.base.String()
}

func (s *HTTPSource) endpoint(parts ...string) string {
	u := *s.base
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	return u.String()
}

// List fetches the registry index.
func (s *HTTPSource) List(ctx context.Context) ([]Entry, error) {
	var index struct {
		Skills []Entry `json:"skills"`
	}

	err := s.do(ctx, s.endpoint("v1", "skills"), func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&index)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list registry skills")
	}

	sortEntries(index.Skills)
	return index.Skills, nil
}

// Fetch downloads and unpacks the named skill into a temporary directory.
func (s *HTTPSource) Fetch(ctx context.Context, name string) (*Fetched, error) {
	tmp, err := os.MkdirTemp("", "skillkit-fetch-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	dir := filepath.Join(tmp, name)

	var ref string
	err = s.do(ctx, s.endpoint("v1", "skills", name, "archive"), func(resp *http.Response) error {
		// a retried attempt starts from a clean directory
		if err := os.RemoveAll(dir); err != nil {
			return retry.Unrecoverable(err)
		}
		if _, err := archive.Unpack(resp.Body, dir); err != nil {
			return retry.Unrecoverable(err)
		}
		ref = resp.Header.Get(HeaderVersion)
		if ref == "" {
			ref = resp.Header.Get(HeaderDigest)
		}
		return nil
	})
	if err != nil {
		os.RemoveAll(tmp)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, errors.Wrapf(ErrNotFound, "'%s' in %s", name, s.Name())
		}
		return nil, errors.Wrapf(err, "failed to fetch skill '%s'", name)
	}

	return &Fetched{
		Name:    name,
		Dir:     dir,
		Origin:  s.Name(),
		Ref:     ref,
		cleanup: removeAllFunc(tmp),
	}, nil
}

// do performs a GET with retries on transient failures and hands successful
// responses to handle.
func (s *HTTPSource) do(ctx context.Context, target string, handle func(*http.Response) error) error {
	initialDelay := time.Duration(s.retry.InitialDelay) * time.Millisecond
	maxDelay := time.Duration(s.retry.MaxDelay) * time.Millisecond

	var delayType retry.DelayTypeFunc
	switch s.retry.BackoffType {
	case "fixed":
		delayType = retry.FixedDelay
	case "exponential":
		fallthrough
	default:
		delayType = retry.BackOffDelay
	}

	attempts := s.retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	return telemetry.WithSpan(ctx, "registry.get", func(ctx context.Context) error {
		return s.get(ctx, target, attempts, handle,
			retry.Delay(initialDelay),
			retry.DelayType(delayType),
			retry.MaxDelay(maxDelay),
		)
	}, attribute.String("url", target))
}

func (s *HTTPSource) get(ctx context.Context, target string, attempts int, handle func(*http.Response) error, opts ...retry.Option) error {
	opts = append(opts,
		retry.RetryIf(isRetryableError),
		retry.Attempts(uint(attempts)),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			telemetry.AddEvent(ctx, "retry", attribute.Int("attempt", int(n)+1), attribute.String("error", err.Error()))
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("max_attempts", attempts).WithField("url", target).Warn("retrying registry request")
		}),
	)
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", version.Get().UserAgent())

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return readStatusError(resp)
			}
			return handle(resp)
		},
		opts...,
	)
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// isRetryableError reports whether a registry request may succeed if repeated.
func isRetryableError(err error) bool {
	if err == nil || !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
