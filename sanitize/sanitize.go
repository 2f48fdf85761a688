// Package sanitize turns raw captured HTML into a self-contained archival
// document: scripts and trackers removed, images rewritten to content-hash
// locators backed by a resource sink.
package sanitize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ainavigator/continuum/contenthash"
)

// Locator is the URL scheme used for archived resources, as in
// "archive:<hash>".
const Locator = "archive"

// MissingAttr marks an image whose resource could not be fetched at capture
// time. Its value is the original source URL.
const MissingAttr = "data-archive-missing"

// Fetcher retrieves a remote resource. Supplied by the capture layer; the
// sanitizer itself never opens connections.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mimeType string, err error)
}

// ResourceSink stores resource bytes under their content hash.
// *archive.Store satisfies this.
type ResourceSink interface {
	PutResource(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Result is a sanitized document.
type Result struct {
	// HTML is the cleaned document. Deterministic: the same raw input and
	// resource outcomes produce byte-identical output.
	HTML string
	// Title is the document title, if any.
	Title string
	// ResourceHashes lists the distinct resources stored for this document,
	// in document order. Exactly one PutResource call was made per entry.
	ResourceHashes []string
}

// Sanitizer applies a Config to raw HTML.
type Sanitizer struct {
	cfg      Config
	sink     ResourceSink
	policy   *bluemonday.Policy
	log      *slog.Logger
	trackers []string
}

// New builds a Sanitizer writing resources to sink.
func New(cfg Config, sink ResourceSink, log *slog.Logger) *Sanitizer {
	if log == nil {
		log = slog.Default()
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowURLSchemes("http", "https", "mailto", Locator)
	policy.AllowAttrs(MissingAttr, "alt").OnElements("img")
	policy.AllowNoAttrs().OnElements("img")
	policy.SkipElementsContent("title")

	trackers := append([]string(nil), defaultTrackerPatterns...)
	trackers = append(trackers, cfg.TrackerPatterns...)

	return &Sanitizer{
		cfg:      cfg,
		sink:     sink,
		policy:   policy,
		log:      log,
		trackers: trackers,
	}
}

type walkState struct {
	fetcher Fetcher
	hashes  []string
	seen    map[string]bool
	// byURL caches fetch outcomes within one document so a repeated source
	// URL is fetched once. Empty string records a failed fetch.
	byURL map[string]string
}

// Sanitize cleans rawHTML. Individual resource failures degrade to
// placeholders; only a parse or render failure aborts the capture.
//
// A nil fetcher (or InlineImages off) leaves image sources untouched.
func (s *Sanitizer) Sanitize(ctx context.Context, rawHTML string, fetcher Fetcher) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("sanitize: parse: %w", err)
	}

	st := &walkState{
		fetcher: fetcher,
		seen:    make(map[string]bool),
		byURL:   make(map[string]string),
	}
	s.clean(ctx, doc, st)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return nil, fmt.Errorf("sanitize: render: %w", err)
	}

	return &Result{
		HTML:           s.policy.Sanitize(sb.String()),
		Title:          findTitle(doc),
		ResourceHashes: st.hashes,
	}, nil
}

var droppedLinkRels = map[string]bool{
	"preload":       true,
	"preconnect":    true,
	"dns-prefetch":  true,
	"modulepreload": true,
	"prefetch":      true,
	"stylesheet":    true,
}

var importRule = regexp.MustCompile(`(?i)@import[^;]*;?`)

// clean walks the tree depth-first, pruning and rewriting in place.
func (s *Sanitizer) clean(ctx context.Context, n *html.Node, st *walkState) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if s.shouldDrop(c) {
			n.RemoveChild(c)
		} else {
			s.cleanAttrs(c)
			if c.Type == html.ElementNode && c.DataAtom == atom.Img {
				s.rewriteImage(ctx, c, st)
			}
			if c.Type == html.ElementNode && c.DataAtom == atom.Style {
				stripImports(c)
			}
			s.clean(ctx, c, st)
		}
		c = next
	}
}

func (s *Sanitizer) shouldDrop(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	if s.cfg.StripScripts {
		switch n.DataAtom {
		case atom.Script, atom.Noscript, atom.Iframe, atom.Embed, atom.Object:
			return true
		}
	}
	if s.cfg.StripTrackers {
		if n.DataAtom == atom.Link && droppedLinkRels[strings.ToLower(attrVal(n, "rel"))] {
			return true
		}
		for _, key := range []string{"src", "href"} {
			if v := attrVal(n, key); v != "" && s.matchesTracker(v) {
				return true
			}
		}
	}
	return false
}

func (s *Sanitizer) matchesTracker(url string) bool {
	url = strings.ToLower(url)
	for _, pat := range s.trackers {
		if strings.Contains(url, pat) {
			return true
		}
	}
	return false
}

// cleanAttrs removes event handlers and javascript: URLs.
func (s *Sanitizer) cleanAttrs(n *html.Node) {
	if n.Type != html.ElementNode || !s.cfg.StripScripts {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if strings.HasPrefix(strings.ToLower(a.Key), "on") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// rewriteImage fetches the source and points it at the stored resource.
// Failure leaves a placeholder so the capture still completes.
func (s *Sanitizer) rewriteImage(ctx context.Context, n *html.Node, st *walkState) {
	if !s.cfg.InlineImages || st.fetcher == nil {
		return
	}
	src := attrVal(n, "src")
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return
	}
	// srcset points back at the network; the archived copy has one source.
	removeAttr(n, "srcset")

	hash, cached := st.byURL[src]
	if !cached {
		hash = s.fetchAndStore(ctx, src, st)
		st.byURL[src] = hash
	}
	if hash == "" {
		removeAttr(n, "src")
		setAttr(n, MissingAttr, src)
		return
	}
	setAttr(n, "src", Locator+":"+hash)
}

// fetchAndStore returns the stored hash, or "" if the resource is
// unavailable. At most one PutResource per distinct content hash.
func (s *Sanitizer) fetchAndStore(ctx context.Context, src string, st *walkState) string {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	data, mime, err := st.fetcher.Fetch(fctx, src)
	if err != nil {
		s.log.Warn("resource fetch failed", "url", src, "error", err)
		return ""
	}

	hash := contenthash.Sum(data)
	if st.seen[hash] {
		return hash
	}
	stored, err := s.sink.PutResource(ctx, data, mime)
	if err != nil {
		s.log.Warn("resource store failed", "url", src, "error", err)
		return ""
	}
	st.seen[hash] = true
	st.hashes = append(st.hashes, stored)
	return stored
}

// stripImports removes @import rules from inline styles so the archived
// document never reaches back to the network for CSS.
func stripImports(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			c.Data = importRule.ReplaceAllString(c.Data, "")
		}
	}
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
