package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/receipts/pkg/handlers"
)

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"object", `{"name":"lunch"}`, "lunch", false},
		{"trailing whitespace", "{\"name\":\"lunch\"}\n\n", "lunch", false},
		{"empty", "", "", true},
		{"malformed", `{"name":`, "", true},
		{"wrong type", `{"name":5}`, "", true},
		{"two values", `{"name":"a"}{"name":"b"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var got body
			err := handlers.DecodeJSON(req, &got)
			if tt.wantErr {
				if !errors.Is(err, handlers.ErrInvalidBody) {
					t.Errorf("err = %v, want ErrInvalidBody", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("name = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.RespondJSON(rec, http.StatusAccepted, map[string]int{"queued": 3})

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var got map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got["queued"] != 3 {
		t.Errorf("body = %q, %v", rec.Body.String(), err)
	}
}

func TestRespondJSONUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.RespondJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "response encoding failed") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusBadRequest, "level=WARN"},
		{http.StatusConflict, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			rec := httptest.NewRecorder()

			handlers.RespondError(rec, logger, tt.status, errors.New("receipt not found"))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "receipt not found" {
				t.Errorf("body = %q", rec.Body.String())
			}
			if !strings.Contains(logs.String(), tt.level) {
				t.Errorf("log %q missing %s", logs.String(), tt.level)
			}
		})
	}
}
