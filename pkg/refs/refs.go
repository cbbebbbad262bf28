// Package refs imports web pages into a skill as markdown reference documents.
package refs

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/version"
	"github.com/pkg/errors"
)

// MaxDocumentSize caps the bytes read from a page.
const MaxDocumentSize = 10 << 20

// ErrExists is returned when the reference file exists and force is unset.
var ErrExists = errors.New("reference already exists")

// Result describes an imported reference.
type Result struct {
	Path      string `json:"path"`      // Absolute file path
	Rel       string `json:"rel"`       // Path relative to the skill directory
	Converted bool   `json:"converted"` // Whether the page was converted from HTML
	Linked    bool   `json:"linked"`    // Whether SKILL.md already links to it
}

// Importer fetches pages over HTTP.
type Importer struct {
	client *http.Client
}

// Option configures an Importer
type Option func(*Importer)

// WithHTTPClient sets the client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(i *Importer) {
		i.client = c
	}
}

// NewImporter creates an importer.
func NewImporter(opts ...Option) *Importer {
	i := &Importer{client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import fetches rawURL and writes it to skillDir/references/<name>.md. HTML
// is converted to markdown; markdown and plain text are stored as served.
// An empty name is derived from the last URL path segment.
func (i *Importer) Import(ctx context.Context, skillDir, rawURL, name string, force bool) (*Result, error) {
	if _, err := os.Stat(filepath.Join(skillDir, skills.SkillFileName)); err != nil {
		return nil, errors.Wrapf(skills.ErrMissingPrimaryDocument, "in %s", skillDir)
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("invalid URL %q: expected http or https", rawURL)
	}

	if name == "" {
		name = NameFromURL(u)
	}
	if err := skills.ValidateName(name); err != nil {
		return nil, errors.Wrap(err, "invalid reference name")
	}

	rel := path.Join(skills.ReferencesDir, name+".md")
	target := filepath.Join(skillDir, filepath.FromSlash(rel))
	if _, err := os.Stat(target); err == nil && !force {
		return nil, errors.Wrapf(ErrExists, "%s (use --force to overwrite)", rel)
	}

	body, contentType, err := i.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	converted := false
	content := body
	if isHTML(contentType, body) {
		converter := md.NewConverter(u.Scheme+"://"+u.Host, true, nil)
		content, err = converter.ConvertString(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert HTML to markdown")
		}
		converted = true
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create references directory")
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return nil, errors.Wrapf(err, "failed to write %s", rel)
	}

	res := &Result{Path: target, Rel: rel, Converted: converted}
	if skill, err := skills.Load(skillDir); err == nil {
		for _, ref := range skill.References {
			if ref.Path == rel {
				res.Linked = ref.Linked
			}
		}
	}

	logger.G(ctx).WithField("url", u.String()).WithField("path", target).Info("imported reference")
	return res, nil
}

func (i *Importer) fetch(ctx context.Context, rawURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", version.Get().UserAgent())
	req.Header.Set("Accept", "text/html, text/markdown;q=0.9, text/plain;q=0.8")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", errors.Errorf("failed to fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && !strings.HasPrefix(mt, "text/") && mt != "application/xhtml+xml" {
		return "", "", errors.Errorf("unsupported content type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to read %s", rawURL)
	}
	if len(data) > MaxDocumentSize {
		return "", "", errors.Errorf("%s exceeds %d bytes", rawURL, MaxDocumentSize)
	}
	return string(data), contentType, nil
}

func isHTML(contentType, body string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt == "text/html" || mt == "application/xhtml+xml"
	}
	head := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// NameFromURL derives a reference name from the last path segment of u,
// lowercased with runs of other characters collapsed to hyphens.
func NameFromURL(u *url.URL) string {
	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" || base == "" {
		base = u.Hostname()
	} else {
		base = strings.TrimSuffix(base, path.Ext(base))
	}

	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(base) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
