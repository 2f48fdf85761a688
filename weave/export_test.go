package weave

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

func TestRecoverToExternal(t *testing.T) {
	// WHAT: Export packages fragments in order with markdown and a rendered
	// hand-off text.
	pages, ws := openTestStores(t)
	ctx := context.Background()

	id1, _ := pages.InsertPage(ctx, "https://p.test/one", "Page One", "first page",
		"<h1>Page One</h1><p>alpha content</p>", nil)
	id2, _ := pages.InsertPage(ctx, "https://p.test/two", "Page Two", "second page",
		"<p>beta content</p>", nil)

	capID, _ := ws.CreateCapsule(ctx, KindThreadLink, []string{id1, id2}, "chat/xyz")

	b, err := ws.RecoverToExternal(ctx, capID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if b.Kind != KindThreadLink || b.ExternalRef != "chat/xyz" {
		t.Errorf("bundle header: %+v", b)
	}
	if len(b.Fragments) != 2 || b.Fragments[0].PageID != id1 || b.Fragments[1].PageID != id2 {
		t.Fatalf("fragments: %+v", b.Fragments)
	}
	if !strings.Contains(b.Fragments[0].Markdown, "alpha content") {
		t.Errorf("markdown conversion: %q", b.Fragments[0].Markdown)
	}
	if b.Fragments[1].HTML != "<p>beta content</p>" {
		t.Errorf("html carried: %q", b.Fragments[1].HTML)
	}

	r := b.Rendered
	if !strings.HasPrefix(r, "### Context Capsule") {
		t.Errorf("rendered header: %q", r)
	}
	for _, want := range []string{"Page One", "Page Two", "https://p.test/one", "chat/xyz"} {
		if !strings.Contains(r, want) {
			t.Errorf("rendered missing %q", want)
		}
	}
}

func TestRenderedEscapesFences(t *testing.T) {
	// WHAT: Code fences inside page content cannot terminate the capsule's
	// own fenced blocks.
	pages, ws := openTestStores(t)
	ctx := context.Background()

	id, _ := pages.InsertPage(ctx, "https://p.test/code", "Code", "",
		"<pre><code>```\nrm -rf\n```</code></pre>", nil)
	capID, _ := ws.CreateCapsule(ctx, KindRecovery, []string{id}, "")

	b, err := ws.RecoverToExternal(ctx, capID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	// Only the capsule's own fences remain: one opening, one closing.
	if n := strings.Count(b.Rendered, "```"); n != 2 {
		t.Errorf("fence count: got %d, want 2\n%s", n, b.Rendered)
	}
}

func TestRenderedHardCap(t *testing.T) {
	// WHAT: Oversized content truncates with a marker instead of growing
	// without bound.
	pages, ws := openTestStores(t)
	ctx := context.Background()

	big := strings.Repeat("<p>" + strings.Repeat("x", 200) + "</p>", 60)
	id, _ := pages.InsertPage(ctx, "https://p.test/big", "Big", "", big, nil)
	capID, _ := ws.CreateCapsule(ctx, KindRecovery, []string{id, id, id}, "")

	b, err := ws.RecoverToExternal(ctx, capID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(b.Rendered) > maxRenderedChars {
		t.Errorf("rendered length %d exceeds cap %d", len(b.Rendered), maxRenderedChars)
	}
	if !strings.Contains(b.Rendered, "[truncated]") {
		t.Error("truncation marker missing")
	}
}

func TestRenderedTruncationKeepsValidUTF8(t *testing.T) {
	// WHAT: Byte-level caps never cut through a multi-byte rune.
	pages, ws := openTestStores(t)
	ctx := context.Background()

	big := "<p>" + strings.Repeat("継続性の記録", 700) + "</p>"
	id, _ := pages.InsertPage(ctx, "https://p.test/jp", "日本語", "", big, nil)
	capID, _ := ws.CreateCapsule(ctx, KindRecovery, []string{id, id}, "")

	b, err := ws.RecoverToExternal(ctx, capID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(b.Rendered) > maxRenderedChars {
		t.Errorf("rendered length %d exceeds cap %d", len(b.Rendered), maxRenderedChars)
	}
	if !utf8.ValidString(b.Rendered) {
		t.Error("rendered text contains a split rune")
	}
	for _, f := range b.Fragments {
		if !utf8.ValidString(f.Markdown) {
			t.Error("fragment markdown contains a split rune")
		}
	}
}
