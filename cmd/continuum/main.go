// Entry point for the continuum archive service: chi HTTP API over the local
// page archive and capsule store, with an optional stdio MCP transport.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/ainavigator/continuum/archive"
	"github.com/ainavigator/continuum/capture"
	"github.com/ainavigator/continuum/dbopen"
	"github.com/ainavigator/continuum/recovery"
	"github.com/ainavigator/continuum/weave"
)

func main() {
	cfg, err := capture.Load(env("CONFIG", ""))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Listen = ":" + port
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		cfg.DBPath = p
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Database.
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := archive.ApplySchema(db); err != nil {
		slog.Error("archive schema", "error", err)
		os.Exit(1)
	}
	if err := weave.ApplySchema(db); err != nil {
		slog.Error("weave schema", "error", err)
		os.Exit(1)
	}

	store := archive.NewStore(db)
	capsules := weave.NewStore(db, store, logger)
	view := recovery.NewView(store, 0)

	sweeper := archive.NewSweeper(store, cfg.SweepInterval, logger)
	defer sweeper.Close()

	pipeline := capture.New(cfg, store, capsules, logger)
	defer pipeline.Close()

	// Optional MCP over stdio for agent shells.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "continuum",
			Version: "1.0.0",
		}, nil)
		pipeline.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, stats)
	})

	// Pages.
	r.Post("/api/pages", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL   string `json:"url"`
			Title string `json:"title"`
			HTML  string `json:"html"`
			Async bool   `json:"async"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if req.URL == "" || req.HTML == "" {
			writeError(w, 400, fmt.Errorf("url and html are required"))
			return
		}
		if req.Async {
			if !pipeline.CaptureAsync(capture.Request{URL: req.URL, Title: req.Title, RawHTML: req.HTML}) {
				writeError(w, 503, fmt.Errorf("capture queue full"))
				return
			}
			writeJSON(w, 202, map[string]string{"status": "queued"})
			return
		}
		id, err := pipeline.Capture(r.Context(), capture.Request{URL: req.URL, Title: req.Title, RawHTML: req.HTML})
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 201, map[string]string{"id": id})
	})

	r.Get("/api/pages", func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 0)
		q := r.URL.Query().Get("q")
		var (
			pages []archive.PageSummary
			err   error
		)
		if q != "" {
			pages, err = store.SearchPages(r.Context(), q, limit)
		} else {
			pages, err = store.ListPages(r.Context(), limit)
		}
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if pages == nil {
			pages = []archive.PageSummary{}
		}
		writeJSON(w, 200, pages)
	})

	r.Get("/api/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		page, err := store.GetPage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, 200, page)
	})

	r.Get("/api/pages/{id}/html", func(w http.ResponseWriter, r *http.Request) {
		page, err := store.GetPage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, page.SanitizedHTML)
	})

	r.Delete("/api/pages/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeletePage(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	})

	// Archived resources, addressed by content hash.
	r.Get("/api/resources/{hash}", func(w http.ResponseWriter, r *http.Request) {
		res, err := store.GetResource(r.Context(), chi.URLParam(r, "hash"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		w.Header().Set("Content-Type", res.MimeType)
		w.Write(res.Bytes)
	})

	// Capsules.
	r.Post("/api/capsules", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Kind        string   `json:"kind"`
			PageIDs     []string `json:"page_ids"`
			ExternalRef string   `json:"external_ref"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		id, err := capsules.CreateCapsule(r.Context(), req.Kind, req.PageIDs, req.ExternalRef)
		if err != nil {
			switch {
			case errors.Is(err, weave.ErrInvalidKind), errors.Is(err, archive.ErrNotFound):
				writeError(w, 400, err)
			default:
				writeError(w, 500, err)
			}
			return
		}
		writeJSON(w, 201, map[string]string{"id": id})
	})

	r.Get("/api/capsules", func(w http.ResponseWriter, r *http.Request) {
		list, err := capsules.ListCapsules(r.Context(), queryInt(r, "limit", 0))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if list == nil {
			list = []*weave.Capsule{}
		}
		writeJSON(w, 200, list)
	})

	r.Get("/api/capsules/{id}", func(w http.ResponseWriter, r *http.Request) {
		c, err := capsules.GetCapsule(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, 200, c)
	})

	r.Post("/api/capsules/{id}/append", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PageID string `json:"page_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if err := capsules.AppendToCapsule(r.Context(), chi.URLParam(r, "id"), req.PageID); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "appended"})
	})

	r.Get("/api/capsules/{id}/recover", func(w http.ResponseWriter, r *http.Request) {
		pages, err := capsules.Recover(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if pages == nil {
			pages = []*archive.Page{}
		}
		writeJSON(w, 200, pages)
	})

	r.Get("/api/capsules/{id}/export", func(w http.ResponseWriter, r *http.Request) {
		bundle, err := capsules.RecoverToExternal(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, 200, bundle)
	})

	r.Delete("/api/capsules/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := capsules.DeleteCapsule(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]string{"status": "deleted"})
	})

	// Recovery view for the shell's session list.
	r.Get("/api/recovery/view", func(w http.ResponseWriter, r *http.Request) {
		state, err := view.Refresh(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, state)
	})

	r.Post("/api/recovery/select", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		view.Select(req.Index)
		writeJSON(w, 200, map[string]int{"selected": view.Selected()})
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeStoreError maps store sentinels onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, archive.ErrNotFound), errors.Is(err, weave.ErrNotFound):
		writeError(w, 404, err)
	case errors.Is(err, archive.ErrIntegrity):
		writeError(w, 502, err)
	default:
		writeError(w, 500, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
