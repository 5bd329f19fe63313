package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-ai/vigil/pkg/config"
	"github.com/vigil-ai/vigil/pkg/skill"
)

// queryHandler processes one request and returns the response text plus
// a run identifier.
type queryHandler interface {
	Handle(ctx context.Context, text string, images []string) (string, string)
}

type queryRequest struct {
	Query  string   `json:"query"`
	Images []string `json:"images,omitempty"`
}

type queryResponse struct {
	Response string `json:"response"`
	RunID    string `json:"run_id"`
}

type skillInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	DefaultTask string   `json:"default_task"`
	Tasks       []string `json:"tasks"`
}

func runServe(ctx context.Context, cfg *config.Config) {
	app, err := build(ctx, cfg, buildOptions{})
	if err != nil {
		fatal(err)
	}
	defer app.Close(context.Background())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newMux(app.Engine, app.Registry, app.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("http server listening", "addr", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		app.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(err)
		}
	}
}

func newMux(handler queryHandler, registry *skill.Registry, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", handleQuery(handler, logger))
	mux.HandleFunc("GET /v1/skills", handleSkills(registry))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func handleQuery(handler queryHandler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			writeError(w, http.StatusBadRequest, "query is required")
			return
		}

		start := time.Now()
		response, runID := handler.Handle(r.Context(), req.Query, req.Images)
		logger.Info("query served",
			"run_id", runID,
			"images", len(req.Images),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		writeJSON(w, http.StatusOK, queryResponse{Response: response, RunID: runID})
	}
}

func handleSkills(registry *skill.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := make([]skillInfo, 0)
		for _, d := range registry.Descriptors() {
			tasks, err := registry.Capabilities(d.Name)
			if err != nil {
				continue
			}
			infos = append(infos, skillInfo{
				Name:        d.Name,
				Description: d.Description,
				Version:     d.Version,
				DefaultTask: d.DefaultTask,
				Tasks:       tasks,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"skills": infos})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
