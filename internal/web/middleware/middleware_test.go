package middleware

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/saltyorg/flowcharts/internal/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConnScope_ReleasesAfterRequest(t *testing.T) {
	db := newTestDB(t)

	var seen *database.Scope
	handler := ConnScope(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetScope(r.Context())
		if seen == nil {
			t.Fatal("expected scope in request context")
		}
		if seen.Acquired() {
			t.Fatal("scope must be lazy")
		}
		if _, err := seen.Conn(r.Context()); err != nil {
			t.Fatalf("Conn returned error: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/charts", nil))

	if seen == nil || seen.Acquired() {
		t.Fatal("expected connection to be released after the request")
	}
}

func TestConnScope_ReleasesOnPanic(t *testing.T) {
	db := newTestDB(t)

	var seen *database.Scope
	handler := ConnScope(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetScope(r.Context())
		if _, err := seen.Conn(r.Context()); err != nil {
			t.Fatalf("Conn returned error: %v", err)
		}
		panic("handler blew up")
	}))

	func() {
		defer func() { _ = recover() }()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()

	if seen == nil || seen.Acquired() {
		t.Fatal("expected connection to be released after a panic")
	}
}

func TestConnScope_EachRequestGetsOwnScope(t *testing.T) {
	db := newTestDB(t)

	var scopes []*database.Scope
	handler := ConnScope(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scopes = append(scopes, GetScope(r.Context()))
	}))

	for range 2 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if len(scopes) != 2 || scopes[0] == scopes[1] {
		t.Fatal("expected a distinct scope per request")
	}
}

func TestGetScope_Missing(t *testing.T) {
	if GetScope(context.Background()) != nil {
		t.Fatal("expected nil scope without middleware")
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS()(next)

	t.Run("simple request", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/charts", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTeapot {
			t.Fatalf("expected request to reach handler, got %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("expected wildcard origin, got %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/charts/1", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for preflight, got %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("expected wildcard origin, got %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.EqualFold(got, "content-type") {
			t.Fatalf("expected requested headers to be allowed, got %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != http.MethodPut {
			t.Fatalf("expected requested method to be allowed, got %q", got)
		}
	})

	t.Run("preflight for disallowed method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/charts/1", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		handler.ServeHTTP(rec, req)

		if rec.Code == http.StatusTeapot {
			t.Fatal("preflight must not reach the handler")
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("expected no CORS grant for PATCH, got %q", got)
		}
	})
}

func TestAllowSubnet(t *testing.T) {
	_, allowed, err := net.ParseCIDR("192.168.1.0/24")
	if err != nil {
		t.Fatalf("failed to parse CIDR: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		subnet     *net.IPNet
		remoteAddr string
		expected   int
	}{
		{name: "no restriction", subnet: nil, remoteAddr: "10.0.0.1:1234", expected: http.StatusOK},
		{name: "inside subnet", subnet: allowed, remoteAddr: "192.168.1.20:5555", expected: http.StatusOK},
		{name: "outside subnet", subnet: allowed, remoteAddr: "10.0.0.1:1234", expected: http.StatusForbidden},
		{name: "ip without port", subnet: allowed, remoteAddr: "192.168.1.7", expected: http.StatusOK},
		{name: "unparseable", subnet: allowed, remoteAddr: "nonsense", expected: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			AllowSubnet(tt.subnet)(next).ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}
