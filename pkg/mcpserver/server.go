// Package mcpserver exposes a skill collection to agents as Model Context
// Protocol tools for listing, searching and reading skills.
package mcpserver

import (
	"context"

	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/version"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
)

// Catalog supplies the skills being served.
type Catalog interface {
	Collection(ctx context.Context) (*skills.Collection, error)
}

// Server wraps an MCP server over a catalog.
type Server struct {
	catalog   Catalog
	mcpServer *mcp.Server
}

// SkillSummary is one entry in list and search results.
type SkillSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version,omitempty"`
}

// ListSkillsInput takes no arguments.
type ListSkillsInput struct{}

// SearchSkillsInput is the search_skills argument.
type SearchSkillsInput struct {
	Pattern string `json:"pattern" jsonschema:"glob matched against skill names, or plain text matched against names and descriptions"`
}

// SkillsOutput lists skills.
type SkillsOutput struct {
	Skills []SkillSummary `json:"skills"`
	Total  int            `json:"total"`
}

// GetSkillInput is the get_skill argument.
type GetSkillInput struct {
	Name string `json:"name" jsonschema:"skill name"`
}

// ReferenceInfo describes a reference document.
type ReferenceInfo struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// GetSkillOutput is a full skill.
type GetSkillOutput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Version     string          `json:"version,omitempty"`
	Content     string          `json:"content"`
	References  []ReferenceInfo `json:"references"`
}

// GetReferenceInput is the get_reference argument.
type GetReferenceInput struct {
	Name string `json:"name" jsonschema:"skill name"`
	Path string `json:"path" jsonschema:"reference path relative to the skill directory, e.g. references/guide.md"`
}

// GetReferenceOutput is a reference document.
type GetReferenceOutput struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// New creates the MCP server and registers its tools.
func New(catalog Catalog) *Server {
	s := &Server{
		catalog: catalog,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "skillkit",
			Version: version.Get().Version,
		}, nil),
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_skills",
		Description: "List every available skill with its description.",
	}, s.ListSkills)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_skills",
		Description: "Find skills whose name matches a glob, or whose name or description contains the given text.",
	}, s.SearchSkills)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_skill",
		Description: "Return the instructions of a skill and the reference documents it provides.",
	}, s.GetSkill)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_reference",
		Description: "Return the content of one reference document of a skill.",
	}, s.GetReference)

	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.G(ctx).Info("serving skills over MCP stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// ListSkills handles list_skills.
func (s *Server) ListSkills(ctx context.Context, _ *mcp.CallToolRequest, _ ListSkillsInput) (*mcp.CallToolResult, SkillsOutput, error) {
	c, err := s.catalog.Collection(ctx)
	if err != nil {
		return nil, SkillsOutput{}, err
	}
	return nil, summarize(c.All()), nil
}

// SearchSkills handles search_skills.
func (s *Server) SearchSkills(ctx context.Context, _ *mcp.CallToolRequest, input SearchSkillsInput) (*mcp.CallToolResult, SkillsOutput, error) {
	if input.Pattern == "" {
		return nil, SkillsOutput{}, errors.New("pattern is required")
	}
	c, err := s.catalog.Collection(ctx)
	if err != nil {
		return nil, SkillsOutput{}, err
	}
	found, err := c.Search(input.Pattern)
	if err != nil {
		return nil, SkillsOutput{}, err
	}
	return nil, summarize(found), nil
}

// GetSkill handles get_skill.
func (s *Server) GetSkill(ctx context.Context, _ *mcp.CallToolRequest, input GetSkillInput) (*mcp.CallToolResult, GetSkillOutput, error) {
	skill, err := s.lookup(ctx, input.Name)
	if err != nil {
		return nil, GetSkillOutput{}, err
	}

	out := GetSkillOutput{
		Name:        skill.Name,
		Description: skill.Description,
		Version:     skill.Metadata.Version,
		Content:     skill.Content,
		References:  []ReferenceInfo{},
	}
	for _, ref := range skill.References {
		if ref.Exists {
			out.References = append(out.References, ReferenceInfo{Path: ref.Path, Title: ref.Title})
		}
	}
	return nil, out, nil
}

// GetReference handles get_reference.
func (s *Server) GetReference(ctx context.Context, _ *mcp.CallToolRequest, input GetReferenceInput) (*mcp.CallToolResult, GetReferenceOutput, error) {
	skill, err := s.lookup(ctx, input.Name)
	if err != nil {
		return nil, GetReferenceOutput{}, err
	}
	content, err := skills.ReadReference(skill, input.Path)
	if err != nil {
		return nil, GetReferenceOutput{}, err
	}
	return nil, GetReferenceOutput{Name: skill.Name, Path: input.Path, Content: content}, nil
}

func (s *Server) lookup(ctx context.Context, name string) (*skills.Skill, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	c, err := s.catalog.Collection(ctx)
	if err != nil {
		return nil, err
	}
	skill, err := c.Get(name)
	if err != nil {
		if skills.IsNotFound(err) {
			return nil, errors.Errorf("skill '%s' not found, use list_skills to see what is available", name)
		}
		return nil, err
	}
	return skill, nil
}

func summarize(list []*skills.Skill) SkillsOutput {
	out := SkillsOutput{Skills: make([]SkillSummary, 0, len(list)), Total: len(list)}
	for _, skill := range list {
		out.Skills = append(out.Skills, SkillSummary{
			Name:        skill.Name,
			Description: skill.Description,
			Version:     skill.Metadata.Version,
		})
	}
	return out
}
