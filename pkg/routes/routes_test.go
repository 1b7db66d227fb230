package routes_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/receipts/pkg/routes"
)

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()

	patterns := routes.Register(mux, routes.Group{
		Prefix: "/receipts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: status(http.StatusOK)},
			{Method: "GET", Pattern: "/{id}", Handler: status(http.StatusOK)},
			{Method: "DELETE", Pattern: "/{id}", Handler: status(http.StatusNoContent)},
		},
	})

	want := []string{"GET /receipts", "GET /receipts/{id}", "DELETE /receipts/{id}"}
	if strings.Join(patterns, ",") != strings.Join(want, ",") {
		t.Errorf("patterns: got %v, want %v", patterns, want)
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"list", "GET", "/receipts", http.StatusOK},
		{"find", "GET", "/receipts/123", http.StatusOK},
		{"delete", "DELETE", "/receipts/123", http.StatusNoContent},
		{"wrong method", "PUT", "/receipts/123", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestNestedGroupsInheritMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	var order []string

	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	routes.Register(mux, routes.Group{
		Prefix:     "/receipts",
		Middleware: []func(http.Handler) http.Handler{tag("parent")},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: status(http.StatusOK)},
		},
		Children: []routes.Group{
			{
				Prefix:     "/{id}/runs",
				Middleware: []func(http.Handler) http.Handler{tag("child")},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: status(http.StatusOK)},
				},
			},
		},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/receipts/abc/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("nested route: got %d, want 200", rec.Code)
	}
	if strings.Join(order, ",") != "parent,child" {
		t.Errorf("middleware order: got %v, want [parent child]", order)
	}

	order = nil
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/receipts", nil))
	if strings.Join(order, ",") != "parent" {
		t.Errorf("parent route middleware: got %v, want [parent]", order)
	}
}

func TestLimitBody(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, routes.Group{
		Prefix:     "/events",
		Middleware: []func(http.Handler) http.Handler{routes.LimitBody(8)},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.ReadAll(r.Body); err != nil {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusAccepted)
			}},
		},
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"within limit", "small", http.StatusAccepted},
		{"over limit", strings.Repeat("x", 64), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", "/events", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
