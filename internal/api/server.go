// Package api exposes the operator control surface: reading and switching
// the fetch mode and inspecting archive health while a session runs.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AlexxNica/web-page-replay/internal/cachemiss"
	"github.com/AlexxNica/web-page-replay/internal/httparchive"
)

// Controller is the mode-switch seam, satisfied by fetch.ControllableFetch.
type Controller interface {
	RecordMode() bool
	SetRecordMode()
	SetReplayMode()
}

// NewHandler builds the control API router. misses may be nil.
func NewHandler(ctrl Controller, archive *httparchive.Archive, misses *cachemiss.Archive) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Web Page Replay Control API", "1.0.0")
	api := humachi.New(router, cfg)

	registerModeHandlers(api, ctrl)
	registerArchiveHandlers(api, archive, misses)

	return router
}

type modeOutput struct {
	Body struct {
		Mode string `json:"mode" enum:"record,replay"`
	}
}

func modeName(ctrl Controller) string {
	if ctrl.RecordMode() {
		return "record"
	}
	return "replay"
}

func registerModeHandlers(api huma.API, ctrl Controller) {
	huma.Register(api, huma.Operation{OperationID: "get-mode", Method: http.MethodGet, Path: "/api/v1/mode", Summary: "Get the active fetch mode", Tags: []string{"Mode"}},
		func(ctx context.Context, input *struct{}) (*modeOutput, error) {
			out := &modeOutput{}
			out.Body.Mode = modeName(ctrl)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-record-mode", Method: http.MethodPost, Path: "/api/v1/mode/record", Summary: "Switch to record mode", Tags: []string{"Mode"}},
		func(ctx context.Context, input *struct{}) (*modeOutput, error) {
			ctrl.SetRecordMode()
			out := &modeOutput{}
			out.Body.Mode = modeName(ctrl)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-replay-mode", Method: http.MethodPost, Path: "/api/v1/mode/replay", Summary: "Switch to replay mode", Tags: []string{"Mode"}},
		func(ctx context.Context, input *struct{}) (*modeOutput, error) {
			ctrl.SetReplayMode()
			out := &modeOutput{}
			out.Body.Mode = modeName(ctrl)
			return out, nil
		})
}

func registerArchiveHandlers(api huma.API, archive *httparchive.Archive, misses *cachemiss.Archive) {
	type statsOutput struct {
		Body struct {
			Entries int              `json:"entries"`
			Misses  *cachemiss.Stats `json:"misses,omitempty"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-archive-stats", Method: http.MethodGet, Path: "/api/v1/archive/stats", Summary: "Get archive and cache-miss counters", Tags: []string{"Archive"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			out := &statsOutput{}
			out.Body.Entries = archive.Len()
			if misses != nil {
				stats := misses.Snapshot()
				out.Body.Misses = &stats
			}
			return out, nil
		})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
