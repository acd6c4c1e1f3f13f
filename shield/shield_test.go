package shield

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/recon/kit"
)

func TestDefaultStack(t *testing.T) {
	// WHAT: The stack sets security headers, a trace ID and answers HEAD on GET routes.
	// WHY: The report API only registers GET routes.
	var gotTrace, gotTransport string
	r := chi.NewRouter()
	for _, mw := range DefaultStack(nil) {
		r.Use(mw)
	}
	r.Get("/x", func(w http.ResponseWriter, req *http.Request) {
		gotTrace = kit.GetTraceID(req.Context())
		gotTransport = kit.GetTransport(req.Context())
		if GetLogger(req.Context()) == nil {
			t.Error("request logger missing")
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/x", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status: got %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("nosniff header missing")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("frame header missing")
	}
	if gotTrace == "" || rec.Header().Get("X-Trace-ID") != gotTrace {
		t.Errorf("trace id: ctx %q, header %q", gotTrace, rec.Header().Get("X-Trace-ID"))
	}
	if gotTransport != "http" {
		t.Errorf("transport: got %q", gotTransport)
	}
}

func TestReadOnly(t *testing.T) {
	// WHAT: Writes are refused with a JSON 405 before reaching a route.
	// WHY: The report API never mutates stored runs.
	called := false
	h := ReadOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodGet {
			t.Errorf("method seen by handler: %s", r.Method)
		}
	}))

	for _, m := range []string{http.MethodPost, http.MethodDelete, http.MethodPut} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(m, "/runs", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: got %d, want 405", m, rec.Code)
		}
		if rec.Header().Get("Allow") != "GET, HEAD" {
			t.Errorf("%s: Allow = %q", m, rec.Header().Get("Allow"))
		}
	}
	if called {
		t.Fatal("handler reached on a write method")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/runs", nil))
	if !called || rec.Code != http.StatusOK {
		t.Errorf("HEAD: called=%v code=%d", called, rec.Code)
	}
}
