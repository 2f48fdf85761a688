package weave

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// Character budgets for the rendered hand-off text. External chat inputs are
// finite; the capsule degrades by truncation, never by failure.
const (
	maxFragmentBody  = 5200
	maxRenderedChars = 7000
	truncationMark   = "\n…[truncated]…"
)

// Fragment is one recovered page prepared for hand-off.
type Fragment struct {
	PageID     string `json:"page_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	CapturedAt int64  `json:"captured_at"`
	Snippet    string `json:"snippet,omitempty"`
	// Markdown is the sanitized page converted for chat-sized consumption.
	Markdown string `json:"markdown"`
	// HTML carries the full sanitized document for consumers that want it.
	HTML string `json:"html"`
}

// Bundle is the transport-agnostic export of a capsule. The caller decides
// where it goes: clipboard, RPC response, MCP tool result.
type Bundle struct {
	CapsuleID   string     `json:"capsule_id"`
	Kind        string     `json:"kind"`
	ExternalRef string     `json:"external_ref,omitempty"`
	CreatedAt   int64      `json:"created_at"`
	Fragments   []Fragment `json:"fragments"`
	// Rendered is the ready-to-paste hand-off text.
	Rendered string `json:"rendered"`
}

// RecoverToExternal recovers a capsule and packages it for an external
// conversation. Dangling members are skipped as in Recover.
func (s *Store) RecoverToExternal(ctx context.Context, id string) (*Bundle, error) {
	c, err := s.GetCapsule(ctx, id)
	if err != nil {
		return nil, err
	}
	pages, err := s.Recover(ctx, id)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		CapsuleID:   c.ID,
		Kind:        c.Kind,
		ExternalRef: c.ExternalRef,
		CreatedAt:   c.CreatedAt,
		Fragments:   make([]Fragment, 0, len(pages)),
	}
	for _, p := range pages {
		md, err := s.markdown.ConvertString(p.SanitizedHTML, converter.WithDomain(p.URL))
		if err != nil || strings.TrimSpace(md) == "" {
			md = p.Snippet
		}
		b.Fragments = append(b.Fragments, Fragment{
			PageID:     p.ID,
			URL:        p.URL,
			Title:      p.Title,
			CapturedAt: p.CapturedAt,
			Snippet:    p.Snippet,
			Markdown:   strings.TrimSpace(md),
			HTML:       p.SanitizedHTML,
		})
	}
	b.Rendered = renderCapsule(b)
	return b, nil
}

var trailingSpace = regexp.MustCompile(`\s+\n`)

// cleanForCapsule neutralizes code fences so pasted content cannot break out
// of its block, and trims ragged line endings.
func cleanForCapsule(s string) string {
	s = strings.ReplaceAll(s, "```", "ʼʼʼ")
	s = trailingSpace.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func renderCapsule(b *Bundle) string {
	var sb strings.Builder
	sb.WriteString("### Context Capsule — continuum\n")
	sb.WriteString("Kind: " + b.Kind + "\n")
	if b.ExternalRef != "" {
		sb.WriteString("Thread: " + cleanForCapsule(b.ExternalRef) + "\n")
	}
	sb.WriteString("Created: " + time.UnixMilli(b.CreatedAt).UTC().Format(time.RFC3339) + "\n")
	sb.WriteString("---\n")

	for i, f := range b.Fragments {
		title := cleanForCapsule(f.Title)
		if title == "" {
			title = "(untitled)"
		}
		captured := time.UnixMilli(f.CapturedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(&sb, "\n%d. %s · %s · %s\n", i+1, captured, title, cleanForCapsule(f.URL))

		body := cleanForCapsule(f.Markdown)
		if len(body) > maxFragmentBody {
			body = truncateAtRune(body, maxFragmentBody)
		}
		if body != "" {
			sb.WriteString("```\n" + body + "\n```\n")
		}
	}

	sb.WriteString(
		"\nContinue from this capsule. Summarize the through-line you infer, " +
			"then propose the next one or two actions. If anything is unclear, " +
			"ask for the single most relevant detail rather than restarting.")

	out := sb.String()
	if len(out) > maxRenderedChars {
		out = truncateAtRune(out, maxRenderedChars-len(truncationMark)) + truncationMark
	}
	return out
}

// truncateAtRune cuts s to at most n bytes without splitting a multi-byte
// rune, so the rendered text stays valid UTF-8.
func truncateAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
