package capture

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"
)

var testMCPImpl = &mcp.Implementation{Name: "continuum-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*mcp.ClientSession, *Pipeline) {
	t.Helper()
	p, _ := openTestPipeline(t)
	srv := mcp.NewServer(testMCPImpl, nil)
	p.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, p
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_CaptureAndList(t *testing.T) {
	session, _ := mcpSession(t)

	text := mcpCallTool(t, session, "archive_capture", map[string]any{
		"url":  "https://site.test/doc",
		"html": "<html><head><title>Doc</title></head><body><p>mcp capture</p></body></html>",
	})
	var captured struct {
		PageID string `json:"page_id"`
	}
	if err := json.Unmarshal([]byte(text), &captured); err != nil {
		t.Fatalf("decode capture result: %v", err)
	}
	if captured.PageID == "" {
		t.Fatal("empty page id")
	}

	text = mcpCallTool(t, session, "archive_list", map[string]any{})
	var listed struct {
		Pages []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"pages"`
	}
	if err := json.Unmarshal([]byte(text), &listed); err != nil {
		t.Fatalf("decode list result: %v", err)
	}
	if len(listed.Pages) != 1 || listed.Pages[0].ID != captured.PageID {
		t.Errorf("list: %+v", listed)
	}
}

func TestMCP_WeaveExport(t *testing.T) {
	session, p := mcpSession(t)
	ctx := context.Background()

	id, err := p.Capture(ctx, Request{
		URL:     "https://site.test/one",
		RawHTML: "<body><p>thread context</p></body>",
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	capID, err := p.Weave().CreateCapsule(ctx, "thread-link", []string{id}, "chat/mcp")
	if err != nil {
		t.Fatalf("create capsule: %v", err)
	}

	text := mcpCallTool(t, session, "weave_export", map[string]any{"capsule_id": capID})
	var bundle struct {
		CapsuleID string `json:"capsule_id"`
		Rendered  string `json:"rendered"`
	}
	if err := json.Unmarshal([]byte(text), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if bundle.CapsuleID != capID || bundle.Rendered == "" {
		t.Errorf("bundle: %+v", bundle)
	}
}
