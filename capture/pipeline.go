// Package capture orchestrates the archive path: sanitize incoming HTML,
// store resources, insert the page. The browser shell pushes raw documents
// here and never blocks on the write.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ainavigator/continuum/archive"
	"github.com/ainavigator/continuum/sanitize"
	"github.com/ainavigator/continuum/weave"
)

// Request is one page to capture.
type Request struct {
	URL     string
	Title   string
	RawHTML string
	// Fetcher resolves the page's subresources. May be nil; images then
	// keep their remote sources.
	Fetcher sanitize.Fetcher
}

// Pipeline runs captures, synchronously or via a background worker.
type Pipeline struct {
	cfg   Config
	store *archive.Store
	weave *weave.Store
	san   *sanitize.Sanitizer
	log   *slog.Logger

	jobs chan Request
	done chan struct{}
	stop chan struct{}
	once sync.Once
}

// New wires a pipeline and starts its worker.
func New(cfg Config, store *archive.Store, wv *weave.Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		cfg:   cfg,
		store: store,
		weave: wv,
		san:   sanitize.New(cfg.Sanitize, store, log),
		log:   log,
		jobs:  make(chan Request, cfg.QueueSize),
		done:  make(chan struct{}),
		stop:  make(chan struct{}),
	}
	go p.loop()
	return p
}

// Capture sanitizes and archives one page. Resources stored during
// sanitization are released again if the page insert fails, so their
// ref counts always match live links.
func (p *Pipeline) Capture(ctx context.Context, req Request) (string, error) {
	res, err := p.san.Sanitize(ctx, req.RawHTML, req.Fetcher)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", req.URL, err)
	}

	title := req.Title
	if title == "" {
		title = res.Title
	}
	snippet := sanitize.Snippet(res.HTML, p.cfg.SnippetLength)

	id, err := p.store.InsertPage(ctx, req.URL, title, snippet, res.HTML, res.ResourceHashes)
	if err != nil {
		p.releaseAll(res.ResourceHashes)
		return "", fmt.Errorf("capture %s: %w", req.URL, err)
	}
	p.log.Info("page captured", "page", id, "url", req.URL, "resources", len(res.ResourceHashes))
	return id, nil
}

// CaptureAsync queues a capture for the background worker. Returns false if
// the queue is full or the pipeline is closing; the caller may retry or fall
// back to Capture.
func (p *Pipeline) CaptureAsync(req Request) bool {
	select {
	case <-p.stop:
		return false
	default:
	}
	select {
	case p.jobs <- req:
		return true
	default:
		p.log.Warn("capture queue full", "url", req.URL)
		return false
	}
}

// Close stops the worker after draining queued captures.
func (p *Pipeline) Close() error {
	p.once.Do(func() {
		close(p.stop)
		<-p.done
	})
	return nil
}

func (p *Pipeline) loop() {
	defer close(p.done)
	for {
		select {
		case req := <-p.jobs:
			p.process(req)
		case <-p.stop:
			for {
				select {
				case req := <-p.jobs:
					p.process(req)
				default:
					return
				}
			}
		}
	}
}

func (p *Pipeline) process(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := p.Capture(ctx, req); err != nil {
		p.log.Error("async capture", "url", req.URL, "error", err)
	}
}

func (p *Pipeline) releaseAll(hashes []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, h := range hashes {
		if err := p.store.ReleaseResource(ctx, h); err != nil {
			p.log.Error("release resource after failed capture", "hash", h, "error", err)
		}
	}
}

// Store exposes the archive for read paths.
func (p *Pipeline) Store() *archive.Store { return p.store }

// Weave exposes the capsule store.
func (p *Pipeline) Weave() *weave.Store { return p.weave }
