package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mverkerk/opsboard/internal/tasks"
)

func TestAPIKeyMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := apiKeyMiddleware("secret", next)

	cases := []struct {
		name   string
		path   string
		header string
		query  string
		want   int
	}{
		{"missing key", "/tasks", "", "", http.StatusUnauthorized},
		{"wrong key", "/tasks", "nope", "", http.StatusUnauthorized},
		{"header key", "/tasks", "secret", "", http.StatusOK},
		{"query key", "/tasks", "", "secret", http.StatusOK},
		{"health exempt", "/health", "", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", "", http.StatusOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			url := c.path
			if c.query != "" {
				url += "?api_key=" + c.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if c.header != "" {
				req.Header.Set("X-API-Key", c.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != c.want {
				t.Errorf("got %d, want %d", rec.Code, c.want)
			}
		})
	}
}

func TestBodyLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for {
			if _, err := r.Body.Read(buf); err != nil {
				if strings.Contains(err.Error(), "request body too large") {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
				}
				return
			}
		}
	})
	h := bodyLimitMiddleware(16, next)

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(make([]byte, 64)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body not rejected: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach handler")
	})
	h := corsMiddleware(next)

	req := httptest.NewRequest(http.MethodOptions, "/tasks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-Actor-ID") {
		t.Fatalf("actor header not allowed for CORS")
	}
}

func TestEngineErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &tasks.Error{
		Kind: tasks.KindInternal,
		Msg:  "update task",
		Err:  errors.New("dial tcp 10.0.0.5:5432: SQLSTATE 08006"),
	}
	writeEngineError(rec, err)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "SQLSTATE") || strings.Contains(body, "10.0.0.5") {
		t.Fatalf("internal detail leaked to client: %s", body)
	}
	if !strings.Contains(body, "update task") {
		t.Fatalf("safe message missing: %s", body)
	}

	// Plain wrapped errors without an engine message stay generic.
	rec = httptest.NewRecorder()
	writeEngineError(rec, errors.New("pq: permission denied for table tasks"))
	if body := rec.Body.String(); !strings.Contains(body, "internal error") || strings.Contains(body, "pq:") {
		t.Fatalf("non-engine error must collapse to generic message: %s", body)
	}

	// Validation detail is client-facing and still passes through.
	rec = httptest.NewRecorder()
	writeEngineError(rec, &tasks.Error{Kind: tasks.KindValidation, Msg: "title is required"})
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "title is required") {
		t.Fatalf("validation message lost: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAPIKeyEnforcedOnApp(t *testing.T) {
	ts := newTestServer(t, ServerOptions{APIKey: "topsecret"})

	resp := ts.do(t, http.MethodGet, "/tasks", ts.adminID, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without api key, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/tasks", nil)
	req.Header.Set("X-API-Key", "topsecret")
	req.Header.Set("X-Actor-ID", fmt.Sprintf("%d", ts.adminID))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp2.Body.Close() }()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d", resp2.StatusCode)
	}
}
