package capture

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ainavigator/continuum/archive"
	"github.com/ainavigator/continuum/weave"
)

// RegisterMCP exposes the archive and capsule operations as MCP tools so an
// external agent can capture, browse and recover context.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	type captureIn struct {
		URL   string `json:"url" jsonschema:"page URL"`
		Title string `json:"title,omitempty" jsonschema:"optional page title"`
		HTML  string `json:"html" jsonschema:"raw page HTML"`
	}
	type captureOut struct {
		PageID string `json:"page_id"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "archive_capture",
		Description: "Sanitize and archive a page from raw HTML.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in captureIn) (*mcp.CallToolResult, captureOut, error) {
		id, err := p.Capture(ctx, Request{URL: in.URL, Title: in.Title, RawHTML: in.HTML})
		if err != nil {
			return nil, captureOut{}, err
		}
		return nil, captureOut{PageID: id}, nil
	})

	type listIn struct {
		Query string `json:"query,omitempty" jsonschema:"optional search over title, url and snippet"`
		Limit int    `json:"limit,omitempty" jsonschema:"maximum results"`
	}
	type listOut struct {
		Pages []archive.PageSummary `json:"pages"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "archive_list",
		Description: "List archived pages newest-first, optionally filtered.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listIn) (*mcp.CallToolResult, listOut, error) {
		var (
			pages []archive.PageSummary
			err   error
		)
		if in.Query != "" {
			pages, err = p.store.SearchPages(ctx, in.Query, in.Limit)
		} else {
			pages, err = p.store.ListPages(ctx, in.Limit)
		}
		if err != nil {
			return nil, listOut{}, err
		}
		return nil, listOut{Pages: pages}, nil
	})

	type getIn struct {
		PageID string `json:"page_id" jsonschema:"archived page id"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "archive_get",
		Description: "Fetch one archived page including its sanitized HTML.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getIn) (*mcp.CallToolResult, *archive.Page, error) {
		page, err := p.store.GetPage(ctx, in.PageID)
		if err != nil {
			return nil, nil, err
		}
		return nil, page, nil
	})

	type deleteOut struct {
		Status string `json:"status"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "archive_delete",
		Description: "Delete an archived page and release its resources.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in getIn) (*mcp.CallToolResult, deleteOut, error) {
		if err := p.store.DeletePage(ctx, in.PageID); err != nil {
			return nil, deleteOut{}, err
		}
		return nil, deleteOut{Status: "deleted"}, nil
	})

	type capsuleIn struct {
		CapsuleID string `json:"capsule_id" jsonschema:"capsule id"`
	}
	type recoverOut struct {
		Pages []*archive.Page `json:"pages"`
	}
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "weave_recover",
		Description: "Recover a capsule's pages in order, skipping deleted members.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in capsuleIn) (*mcp.CallToolResult, recoverOut, error) {
		pages, err := p.weave.Recover(ctx, in.CapsuleID)
		if err != nil {
			return nil, recoverOut{}, err
		}
		return nil, recoverOut{Pages: pages}, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "weave_export",
		Description: "Package a capsule as a hand-off bundle for an external conversation.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in capsuleIn) (*mcp.CallToolResult, *weave.Bundle, error) {
		bundle, err := p.weave.RecoverToExternal(ctx, in.CapsuleID)
		if err != nil {
			return nil, nil, err
		}
		return nil, bundle, nil
	})
}
