package receipts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/receipts"
	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/routes"
	"github.com/JaimeStill/receipts/pkg/storage"
	"github.com/JaimeStill/receipts/workflow"
)

const owner = "user-1"

type mockSystem struct {
	listFn     func(ctx context.Context, owner string, page pagination.PageRequest, filters receipts.Filters) (*pagination.PageResult[receipts.Receipt], error)
	findFn     func(ctx context.Context, owner string, id uuid.UUID) (*receipts.Receipt, error)
	createFn   func(ctx context.Context, owner string, cmd receipts.CreateCommand) (*receipts.Receipt, error)
	reserveFn  func(ctx context.Context, owner string, cmd receipts.ReserveCommand) (*receipts.Reservation, error)
	deleteFn   func(ctx context.Context, owner string, id uuid.UUID) error
	downloadFn func(ctx context.Context, owner string, id uuid.UUID) (*storage.SignedURL, error)
	submitFn   func(ctx context.Context, owner string, id uuid.UUID) (*workflow.Trigger, error)
}

func (m *mockSystem) Handler(maxUploadSize int64, d receipts.Dispatcher) *receipts.Handler {
	return receipts.NewHandler(m, d, discard(), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}, maxUploadSize)
}

func (m *mockSystem) List(ctx context.Context, owner string, page pagination.PageRequest, filters receipts.Filters) (*pagination.PageResult[receipts.Receipt], error) {
	return m.listFn(ctx, owner, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, owner string, id uuid.UUID) (*receipts.Receipt, error) {
	return m.findFn(ctx, owner, id)
}

func (m *mockSystem) Create(ctx context.Context, owner string, cmd receipts.CreateCommand) (*receipts.Receipt, error) {
	return m.createFn(ctx, owner, cmd)
}

func (m *mockSystem) Reserve(ctx context.Context, owner string, cmd receipts.ReserveCommand) (*receipts.Reservation, error) {
	return m.reserveFn(ctx, owner, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	return m.deleteFn(ctx, owner, id)
}

func (m *mockSystem) DownloadURL(ctx context.Context, owner string, id uuid.UUID) (*storage.SignedURL, error) {
	return m.downloadFn(ctx, owner, id)
}

func (m *mockSystem) Submit(ctx context.Context, owner string, id uuid.UUID) (*workflow.Trigger, error) {
	return m.submitFn(ctx, owner, id)
}

func (m *mockSystem) Commit(context.Context, string, uuid.UUID, receipts.Fields) (bool, error) {
	return false, errors.New("not used")
}

func (m *mockSystem) MarkFailed(context.Context, string, uuid.UUID, string) error {
	return errors.New("not used")
}

type mockDispatcher struct {
	triggers []workflow.Trigger
	err      error
}

func (d *mockDispatcher) Dispatch(_ context.Context, t workflow.Trigger) error {
	if d.err != nil {
		return d.err
	}
	d.triggers = append(d.triggers, t)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupMux(sys *mockSystem, d receipts.Dispatcher) http.Handler {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler(1024*1024, d).Routes())
	return auth.Middleware(nil, owner, discard())(mux)
}

func sampleReceipt() receipts.Receipt {
	return receipts.Receipt{
		ID:          uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Owner:       owner,
		Filename:    "coffee.pdf",
		DisplayName: "Coffee",
		ContentType: "application/pdf",
		SizeBytes:   2048,
		StorageKey:  "receipts/user-1/550e8400-e29b-41d4-a716-446655440000/coffee.pdf",
		Status:      receipts.StatusPending,
		UploadedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestHandlerListScopesToOwner(t *testing.T) {
	rec := sampleReceipt()
	var gotOwner string
	var gotFilters receipts.Filters

	sys := &mockSystem{
		listFn: func(_ context.Context, o string, _ pagination.PageRequest, f receipts.Filters) (*pagination.PageResult[receipts.Receipt], error) {
			gotOwner = o
			gotFilters = f
			result := pagination.NewPageResult([]receipts.Receipt{rec}, 1, 1, 20)
			return &result, nil
		},
	}

	w := httptest.NewRecorder()
	setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("GET", "/receipts?status=pending&uploaded_after=2026-01-01", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotOwner != owner {
		t.Errorf("owner = %q, want %q", gotOwner, owner)
	}
	if gotFilters.Status == nil || *gotFilters.Status != "pending" {
		t.Errorf("status filter = %v, want pending", gotFilters.Status)
	}
	if gotFilters.UploadedAfter == nil || gotFilters.UploadedAfter.Year() != 2026 {
		t.Errorf("uploaded_after filter = %v, want 2026-01-01", gotFilters.UploadedAfter)
	}

	var result pagination.PageResult[receipts.Receipt]
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Data) != 1 || result.Data[0].ID != rec.ID {
		t.Errorf("unexpected data: %+v", result.Data)
	}
}

func TestHandlerListRejectsMalformedPage(t *testing.T) {
	called := false
	sys := &mockSystem{
		listFn: func(context.Context, string, pagination.PageRequest, receipts.Filters) (*pagination.PageResult[receipts.Receipt], error) {
			called = true
			return nil, nil
		},
	}

	w := httptest.NewRecorder()
	setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("GET", "/receipts?page=last", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if called {
		t.Error("List should not run for a malformed page")
	}
}

func TestHandlerFind(t *testing.T) {
	rec := sampleReceipt()

	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"found", "/receipts/" + rec.ID.String(), nil, http.StatusOK},
		{"not found", "/receipts/" + rec.ID.String(), receipts.ErrNotFound, http.StatusNotFound},
		{"other owner", "/receipts/" + rec.ID.String(), receipts.ErrUnauthorized, http.StatusForbidden},
		{"invalid id", "/receipts/not-a-uuid", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				findFn: func(context.Context, string, uuid.UUID) (*receipts.Receipt, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &rec, nil
				},
			}

			w := httptest.NewRecorder()
			setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestHandlerUploadRejectsNonPDF(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.txt")
	part.Write([]byte("just some text"))
	mw.Close()

	sys := &mockSystem{
		createFn: func(context.Context, string, receipts.CreateCommand) (*receipts.Receipt, error) {
			t.Fatal("Create must not be called for a non-PDF upload")
			return nil, nil
		},
	}

	req := httptest.NewRequest("POST", "/receipts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	setupMux(sys, &mockDispatcher{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlerUploadMissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("display_name", "Lunch")
	mw.Close()

	req := httptest.NewRequest("POST", "/receipts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	setupMux(&mockSystem{}, &mockDispatcher{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandlerProcessDispatches(t *testing.T) {
	rec := sampleReceipt()
	rec.Status = receipts.StatusFailed

	sys := &mockSystem{
		findFn: func(context.Context, string, uuid.UUID) (*receipts.Receipt, error) {
			r := rec
			return &r, nil
		},
		submitFn: func(_ context.Context, o string, id uuid.UUID) (*workflow.Trigger, error) {
			return &workflow.Trigger{DocumentURL: "https://blob.example.com/coffee.pdf", ReceiptID: id, Owner: o, DeliveryID: "d-1"}, nil
		},
	}
	d := &mockDispatcher{}

	w := httptest.NewRecorder()
	setupMux(sys, d).ServeHTTP(w, httptest.NewRequest("POST", "/receipts/"+rec.ID.String()+"/process", nil))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(d.triggers) != 1 {
		t.Fatalf("dispatched %d triggers, want 1", len(d.triggers))
	}
	if d.triggers[0].ReceiptID != rec.ID || d.triggers[0].Owner != owner {
		t.Errorf("unexpected trigger: %+v", d.triggers[0])
	}

	var resp receipts.SubmitResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Receipt.Status != receipts.StatusPending {
		t.Errorf("status = %s, want pending", resp.Receipt.Status)
	}
	if resp.DeliveryID != "d-1" {
		t.Errorf("delivery_id = %s, want d-1", resp.DeliveryID)
	}
}

func TestHandlerProcessErrors(t *testing.T) {
	rec := sampleReceipt()

	tests := []struct {
		name        string
		submitErr   error
		dispatchErr error
		status      int
	}{
		{"already processed", receipts.ErrInvalidStatus, nil, http.StatusConflict},
		{"blob missing", receipts.ErrNotUploaded, nil, http.StatusUnprocessableEntity},
		{"dispatcher full", nil, errors.New("queue full"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				findFn: func(context.Context, string, uuid.UUID) (*receipts.Receipt, error) {
					r := rec
					return &r, nil
				},
				submitFn: func(_ context.Context, o string, id uuid.UUID) (*workflow.Trigger, error) {
					if tt.submitErr != nil {
						return nil, tt.submitErr
					}
					return &workflow.Trigger{ReceiptID: id, Owner: o}, nil
				},
			}

			w := httptest.NewRecorder()
			setupMux(sys, &mockDispatcher{err: tt.dispatchErr}).ServeHTTP(w, httptest.NewRequest("POST", "/receipts/"+rec.ID.String()+"/process", nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestHandlerReserve(t *testing.T) {
	rec := sampleReceipt()
	sys := &mockSystem{
		reserveFn: func(_ context.Context, _ string, cmd receipts.ReserveCommand) (*receipts.Reservation, error) {
			if cmd.Filename != "coffee.pdf" {
				t.Errorf("filename = %s, want coffee.pdf", cmd.Filename)
			}
			return &receipts.Reservation{
				Receipt: &rec,
				Upload:  &storage.SignedURL{URL: "https://blob.example.com/put", Method: "PUT"},
			}, nil
		},
	}

	t.Run("created", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"filename":"coffee.pdf","size_bytes":2048}`)
		setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("POST", "/receipts/upload-url", body))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := bytes.NewBufferString(`{"filename":"coffee.pdf","size_bytes":999999999}`)
		setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("POST", "/receipts/upload-url", body))

		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", w.Code)
		}
		if !bytes.Contains(w.Body.Bytes(), []byte("1 MB")) {
			t.Errorf("body = %s, want the limit in the message", w.Body.String())
		}
	})
}

func TestHandlerDownload(t *testing.T) {
	rec := sampleReceipt()
	sys := &mockSystem{
		downloadFn: func(context.Context, string, uuid.UUID) (*storage.SignedURL, error) {
			return &storage.SignedURL{URL: "https://blob.example.com/get", Method: "GET"}, nil
		},
	}

	w := httptest.NewRecorder()
	setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("GET", "/receipts/"+rec.ID.String()+"/download", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var signed storage.SignedURL
	if err := json.NewDecoder(w.Body).Decode(&signed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if signed.URL != "https://blob.example.com/get" {
		t.Errorf("url = %s", signed.URL)
	}
}

func TestHandlerDelete(t *testing.T) {
	rec := sampleReceipt()

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"other owner", receipts.ErrUnauthorized, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				deleteFn: func(context.Context, string, uuid.UUID) error { return tt.err },
			}

			w := httptest.NewRecorder()
			setupMux(sys, &mockDispatcher{}).ServeHTTP(w, httptest.NewRequest("DELETE", "/receipts/"+rec.ID.String(), nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestHandlerRequiresIdentity(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, (&mockSystem{}).Handler(1024, &mockDispatcher{}).Routes())

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/receipts", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
