package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/receipts/pkg/module"
)

func mustModule(t *testing.T, prefix string, h http.Handler) *module.Module {
	t.Helper()
	m, err := module.New(prefix, h)
	if err != nil {
		t.Fatalf("New(%q): %v", prefix, err)
	}
	return m
}

func TestNewValidPrefix(t *testing.T) {
	for _, prefix := range []string{"/api", "/events", "/v1"} {
		t.Run(prefix, func(t *testing.T) {
			m := mustModule(t, prefix, http.NewServeMux())
			if m.Prefix() != prefix {
				t.Errorf("prefix: got %s, want %s", m.Prefix(), prefix)
			}
		})
	}
}

func TestNewInvalidPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"empty", ""},
		{"root", "/"},
		{"no leading slash", "api"},
		{"nested path", "/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := module.New(tt.prefix, http.NewServeMux()); err == nil {
				t.Errorf("New(%q) should fail", tt.prefix)
			}
		})
	}
}

func TestServePrefixStripping(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"nested", "/api/receipts", "/receipts"},
		{"root", "/api", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var received string
			m := mustModule(t, "/api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received = r.URL.Path
			}))

			req := httptest.NewRequest("GET", tt.path, nil)
			m.Serve(httptest.NewRecorder(), req)

			if received != tt.want {
				t.Errorf("inner path: got %s, want %s", received, tt.want)
			}
			if req.URL.Path != tt.path {
				t.Errorf("caller request mutated: got %s, want %s", req.URL.Path, tt.path)
			}
		})
	}
}

func TestModuleMiddlewareOrder(t *testing.T) {
	var order []string
	m := mustModule(t, "/api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	for _, name := range []string{"outer", "inner"} {
		m.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		})
	}

	m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))
	m.Serve(httptest.NewRecorder(), httptest.NewRequest("GET", "/api", nil))

	want := []string{"outer", "inner", "handler", "outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: got %v, want %v", order, want)
		}
	}
}

func body(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(text))
	}
}

func TestRouterDispatch(t *testing.T) {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /receipts", body("receipts"))

	router := module.NewRouter()
	if err := router.Mount(mustModule(t, "/api", apiMux)); err != nil {
		t.Fatal(err)
	}
	if err := router.Mount(mustModule(t, "/events", body("events"))); err != nil {
		t.Fatal(err)
	}
	router.HandleNative("GET /healthz", body("ok"))

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"api module", "/api/receipts", http.StatusOK, "receipts"},
		{"trailing slash", "/api/receipts/", http.StatusOK, "receipts"},
		{"second module", "/events", http.StatusOK, "events"},
		{"native fallback", "/healthz", http.StatusOK, "ok"},
		{"prefix lookalike", "/apix/receipts", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body: got %s, want %s", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRouterDuplicateMount(t *testing.T) {
	router := module.NewRouter()
	if err := router.Mount(mustModule(t, "/api", http.NewServeMux())); err != nil {
		t.Fatal(err)
	}
	if err := router.Mount(mustModule(t, "/api", http.NewServeMux())); err == nil {
		t.Error("second mount on /api should fail")
	}
}
