package skills

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(meta.Meta))

// document is the parsed form of a SKILL.md file.
type document struct {
	metadata    map[string]any
	metadataErr error
	body        string
	links       []string
	title       string
}

func parseDocument(content []byte) *document {
	pctx := parser.NewContext()
	root := markdown.Parser().Parse(text.NewReader(content), parser.WithContext(pctx))

	doc := &document{body: ExtractBody(string(content))}
	doc.metadata, doc.metadataErr = meta.TryGet(pctx)
	doc.links, doc.title = walkLinks(root, content)

	return doc
}

// Load loads a single skill from its directory.
func Load(dir string) (*Skill, error) {
	skillPath := filepath.Join(dir, SkillFileName)
	content, err := os.ReadFile(skillPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingPrimaryDocument, "in %s", dir)
		}
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	doc := parseDocument(content)
	md, err := decodeMetadata(doc)
	if err != nil {
		return nil, err
	}

	if md.Name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if md.Description == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	skill := &Skill{
		Name:        md.Name,
		Description: md.Description,
		Directory:   dir,
		Content:     doc.body,
		Metadata:    md,
		Links:       doc.links,
	}
	skill.References = collectReferences(dir, doc.links)

	return skill, nil
}

func decodeMetadata(doc *document) (Metadata, error) {
	var md Metadata
	if doc.metadataErr != nil {
		return md, errors.Wrap(doc.metadataErr, "invalid frontmatter")
	}
	if len(doc.metadata) == 0 {
		return md, ErrMissingFrontmatter
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return md, errors.Wrap(err, "failed to create frontmatter decoder")
	}
	if err := decoder.Decode(doc.metadata); err != nil {
		return md, errors.Wrap(err, "failed to decode frontmatter")
	}

	md.Name = strings.TrimSpace(md.Name)
	md.Description = strings.TrimSpace(md.Description)
	return md, nil
}

// ExtractBody removes YAML frontmatter and returns the body
func ExtractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.TrimLeft(strings.Join(lines[frontmatterEnd+1:], "\n"), "\n")
}

// ExtractLinks returns the relative link destinations of a markdown document,
// cleaned and without fragments. External URLs and in-page anchors are skipped.
func ExtractLinks(content []byte) []string {
	links, _ := walkLinks(markdown.Parser().Parse(text.NewReader(content)), content)
	return links
}

func walkLinks(root ast.Node, source []byte) ([]string, string) {
	var (
		links []string
		title string
		seen  = make(map[string]bool)
	)

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			if title == "" && node.Level == 1 {
				title = headingText(node, source)
			}
		case *ast.Link:
			if dest, ok := relativeDestination(string(node.Destination)); ok && !seen[dest] {
				seen[dest] = true
				links = append(links, dest)
			}
		}
		return ast.WalkContinue, nil
	})

	return links, title
}

func headingText(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimSpace(sb.String())
}

func relativeDestination(dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return "", false
	}

	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}

	cleaned := path.Clean(u.Path)
	if cleaned == "." {
		return "", false
	}
	return cleaned, true
}

// documentTitle returns the first level-one heading of a markdown file.
func documentTitle(filePath string) string {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return ""
	}
	_, title := walkLinks(markdown.Parser().Parse(text.NewReader(content)), content)
	return title
}
