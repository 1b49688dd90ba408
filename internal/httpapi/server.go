// Package httpapi exposes the task engine over REST plus an SSE stream for
// live dashboard updates.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mverkerk/opsboard/internal/otel"
	"github.com/mverkerk/opsboard/internal/store"
	"github.com/mverkerk/opsboard/internal/store/postgres"
	"github.com/mverkerk/opsboard/internal/tasks"
	"github.com/mverkerk/opsboard/pkg/models"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read
// more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (dashboard dev server on a
// different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Actor-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key,
// DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string       // if set, require X-API-Key header or query api_key
	DBDriver       string       // "sqlite" (default) or "postgres"
	DBURL          string       // for postgres: connection string (or set DATABASE_URL env)
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics
}

// App holds the HTTP server, SSE hub, store, engine, and home path.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Store  store.Store
	Engine *tasks.Engine
	Home   string
}

// NewApp creates the HTTP app (server, hub, store, engine) and registers
// all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}
	engine := tasks.NewEngine(st, slog.Default())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			sum, err := st.Summary(r.Context(), nil)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			_, _ = fmt.Fprintf(w, "# TYPE opsboard_tasks_total gauge\n")
			_, _ = fmt.Fprintf(w, "opsboard_tasks_total{status=\"not_started\"} %d\n", sum.NotStarted)
			_, _ = fmt.Fprintf(w, "opsboard_tasks_total{status=\"in_progress\"} %d\n", sum.InProgress)
			_, _ = fmt.Fprintf(w, "opsboard_tasks_total{status=\"completed\"} %d\n", sum.Completed)
			_, _ = fmt.Fprintf(w, "opsboard_tasks_total{status=\"suspended\"} %d\n", sum.Suspended)
		})
	}

	mux.HandleFunc("/stream", hub.Handler())

	// --- Tasks ---
	mux.HandleFunc("/tasks", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			list, err := engine.List(r.Context(), actor)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, list)
		case http.MethodPost:
			var body models.CreateTaskRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			task, err := engine.Create(r.Context(), actor, body)
			if err != nil {
				otel.RecordTaskOp(r.Context(), "create", actor.Role, "error")
				writeEngineError(w, err)
				return
			}
			otel.RecordTaskOp(r.Context(), "create", actor.Role, "ok")
			hub.PublishJSON(map[string]any{"type": "task_update", "task_id": task.ID})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			enc := json.NewEncoder(w)
			enc.SetEscapeHTML(false)
			_ = enc.Encode(task)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// /tasks/summary, /tasks/{id}, /tasks/{id}/history, /tasks/{id}/files
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/tasks/")
		parts := strings.Split(rest, "/")

		if parts[0] == "summary" {
			if r.Method != http.MethodGet {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			sum, err := engine.Summary(r.Context(), actor)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, sum)
			return
		}

		taskID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid task id")
			return
		}

		if len(parts) >= 2 && parts[1] == "history" {
			if r.Method != http.MethodGet {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			entries, err := engine.History(r.Context(), actor, taskID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, entries)
			return
		}

		if len(parts) >= 2 && parts[1] == "files" {
			if r.Method != http.MethodGet {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			task, err := engine.Get(r.Context(), actor, taskID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, task.Files)
			return
		}

		switch r.Method {
		case http.MethodGet:
			task, err := engine.Get(r.Context(), actor, taskID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, task)
		case http.MethodPut, http.MethodPatch:
			var body models.UpdateTaskRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			task, err := engine.Update(r.Context(), actor, taskID, body)
			if err != nil {
				otel.RecordTaskOp(r.Context(), "update", actor.Role, "error")
				writeEngineError(w, err)
				return
			}
			otel.RecordTaskOp(r.Context(), "update", actor.Role, "ok")
			hub.PublishJSON(map[string]any{"type": "task_update", "task_id": task.ID})
			writeJSON(w, task)
		case http.MethodDelete:
			if err := engine.Delete(r.Context(), actor, taskID); err != nil {
				otel.RecordTaskOp(r.Context(), "delete", actor.Role, "error")
				writeEngineError(w, err)
				return
			}
			otel.RecordTaskOp(r.Context(), "delete", actor.Role, "ok")
			hub.PublishJSON(map[string]any{"type": "task_update", "task_id": taskID})
			writeJSON(w, map[string]any{"ok": true})
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// --- Tags ---
	mux.HandleFunc("/tags", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			list, err := engine.ListTags(r.Context())
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, list)
		case http.MethodPost:
			var body struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			tag, err := engine.CreateTag(r.Context(), actor, body.Name)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			hub.PublishJSON(map[string]any{"type": "tag_update", "tag_id": tag.ID})
			writeJSON(w, tag)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/tags/", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/tags/"), 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid tag id")
			return
		}
		if r.Method != http.MethodDelete {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := engine.DeleteTag(r.Context(), actor, id); err != nil {
			writeEngineError(w, err)
			return
		}
		hub.PublishJSON(map[string]any{"type": "tag_update", "tag_id": id})
		writeJSON(w, map[string]any{"ok": true})
	})

	// --- Users ---
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r, st); !ok {
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		users, err := engine.ListUsers(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, users)
	})

	// --- Div-users ---
	mux.HandleFunc("/div-users", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		switch r.Method {
		case http.MethodGet:
			list, err := engine.ListDivUsers(r.Context())
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, list)
		case http.MethodPost:
			var body struct {
				Name   string `json:"name"`
				UserID int64  `json:"user_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			du, err := engine.CreateDivUser(r.Context(), actor, body.Name, body.UserID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			hub.PublishJSON(map[string]any{"type": "div_user_update", "div_user_id": du.ID})
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(du)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/div-users/", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/div-users/"), 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid div-user id")
			return
		}
		switch r.Method {
		case http.MethodPut, http.MethodPatch:
			var body struct {
				Name   *string `json:"name"`
				UserID *int64  `json:"user_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			du, err := engine.UpdateDivUser(r.Context(), actor, id, body.Name, body.UserID)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			hub.PublishJSON(map[string]any{"type": "div_user_update", "div_user_id": du.ID})
			writeJSON(w, du)
		case http.MethodDelete:
			if err := engine.DeleteDivUser(r.Context(), actor, id); err != nil {
				writeEngineError(w, err)
				return
			}
			hub.PublishJSON(map[string]any{"type": "div_user_update", "div_user_id": id})
			writeJSON(w, map[string]any{"ok": true})
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	// /subtasks/{id}/files
	mux.HandleFunc("/subtasks/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r, st); !ok {
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/subtasks/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[1] != "files" {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		subtaskID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid subtask id")
			return
		}
		files, err := engine.ListSubtaskFiles(r.Context(), subtaskID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, files)
	})

	// --- Files (metadata only; blob storage lives upstream) ---
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, st)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/files/"), 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid file id")
			return
		}
		switch r.Method {
		case http.MethodGet:
			f, err := engine.GetFile(r.Context(), id)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, f)
		case http.MethodDelete:
			if err := engine.DeleteFile(r.Context(), actor, id); err != nil {
				writeEngineError(w, err)
				return
			}
			writeJSON(w, map[string]any{"ok": true})
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "opsboard")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})

	return &App{Server: srv, Hub: hub, Store: st, Engine: engine, Home: opts.Home}, nil
}

// responseRecorder captures status code for logging and forwards Flusher if
// supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// writeEngineError maps an engine error kind to an HTTP status.
func writeEngineError(w http.ResponseWriter, err error) {
	var code int
	switch tasks.KindOf(err) {
	case tasks.KindValidation:
		code = http.StatusBadRequest
	case tasks.KindAuthorization:
		code = http.StatusForbidden
	case tasks.KindNotFound:
		code = http.StatusNotFound
	case tasks.KindConflict:
		code = http.StatusConflict
	default:
		// Internal errors wrap persistence detail that must stay
		// server-side; clients get only the safe message.
		slog.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, tasks.ClientMessage(err))
		return
	}
	writeJSONError(w, code, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given
// status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
