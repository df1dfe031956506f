// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the link directory as tools for LLM integration, over stdio or
// streamable HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/qrdirector/internal/apperr"
	"github.com/starford/qrdirector/internal/directory"
	"github.com/starford/qrdirector/internal/models"
	"github.com/starford/qrdirector/internal/qr"
)

const rulesURI = "qrdirector://link-rules"

// Server wraps the MCP server with link directory tools.
type Server struct {
	mcp      *server.MCPServer
	dir      *directory.Directory
	composer *qr.Composer
	baseURL  string
}

// New creates a new MCP server with all directory tools registered. composer
// may be nil, in which case qr_code is not offered.
func New(dir *directory.Directory, composer *qr.Composer, baseURL string) *Server {
	s := &Server{dir: dir, composer: composer, baseURL: strings.TrimRight(baseURL, "/")}

	s.mcp = server.NewMCPServer(
		"QR Director",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_links",
		mcp.WithDescription("List all links, favorites first. The default link is reported separately."),
	), s.listLinks)

	s.mcp.AddTool(mcp.NewTool("get_link",
		mcp.WithDescription("Get a single link by slug."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Link slug")),
	), s.getLink)

	s.mcp.AddTool(mcp.NewTool("save_link",
		mcp.WithDescription("Create a link or change the target of an existing one. "+
			"The favorite flag of an existing link is kept. Use slug _default to change where the base URL redirects. "+
			"Read the rules first via get_link_rules or the "+rulesURI+" resource."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Link slug")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Redirect target, stored verbatim")),
		mcp.WithString("name", mcp.Description("Optional display name")),
	), s.saveLink)

	s.mcp.AddTool(mcp.NewTool("delete_link",
		mcp.WithDescription("Delete a link. The default link cannot be deleted."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Link slug")),
	), s.deleteLink)

	s.mcp.AddTool(mcp.NewTool("toggle_favorite",
		mcp.WithDescription("Flip the favorite flag of a link."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Link slug")),
	), s.toggleFavorite)

	s.mcp.AddTool(mcp.NewTool("generate_slug",
		mcp.WithDescription("Return a random slug that is not yet in use. Nothing is reserved."),
	), s.generateSlug)

	s.mcp.AddTool(mcp.NewTool("get_link_rules",
		mcp.WithDescription("Returns the rules links follow. Call this before editing links."),
	), s.getLinkRules)

	if composer != nil {
		s.mcp.AddTool(mcp.NewTool("qr_code",
			mcp.WithDescription("Render the printable QR code of a link as a PNG image."),
			mcp.WithString("slug", mcp.Required(), mcp.Description("Link slug")),
		), s.qrCode)
	}

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Link Rules",
			mcp.WithResourceDescription("How slugs, targets and the default link behave."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLinkRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Handler returns the streamable HTTP transport for the server.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listLinks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, err := s.dir.Get(ctx, models.DefaultSlug)
	if err != nil {
		def = models.Link{Slug: models.DefaultSlug, URL: s.dir.DefaultTarget(ctx)}
	}
	return jsonResult(map[string]any{
		"default": def,
		"links":   s.dir.ListForDisplay(ctx),
	}), nil
}

func (s *Server) getLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, err := s.dir.Get(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	return jsonResult(l), nil
}

func (s *Server) saveLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, err := s.dir.Upsert(ctx, slug, target, req.GetString("name", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(l), nil
}

func (s *Server) deleteLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	removed, err := s.dir.Delete(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !removed {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", slug)), nil
}

func (s *Server) toggleFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fav, err := s.dir.ToggleFavorite(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	return jsonResult(map[string]any{"slug": slug, "favorite": fav}), nil
}

func (s *Server) generateSlug(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := s.dir.GenerateSlug(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(slug), nil
}

func (s *Server) qrCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.dir.Get(ctx, slug); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	target := s.baseURL + "/" + slug
	dataURL, err := s.composer.DataURL(ctx, target)
	if err != nil {
		if errors.Is(err, apperr.ErrRender) {
			return mcp.NewToolResultError("failed to generate QR code"), nil
		}
		return nil, err
	}
	return mcp.NewToolResultImage(target, strings.TrimPrefix(dataURL, qr.DataURLPrefix), "image/png"), nil
}

func (s *Server) getLinkRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LinkRules), nil
}

func (s *Server) readLinkRulesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     LinkRules,
		},
	}, nil
}
