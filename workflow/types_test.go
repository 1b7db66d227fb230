package workflow_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/auth"
	"github.com/JaimeStill/receipts/workflow"
)

func TestTriggerValidate(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		trigger workflow.Trigger
		wantErr error
	}{
		{
			name:    "valid https",
			trigger: workflow.Trigger{DocumentURL: "https://blob.example.com/r.pdf?sig=x", ReceiptID: id, Owner: "u1"},
		},
		{
			name:    "valid gs",
			trigger: workflow.Trigger{DocumentURL: "gs://bucket/r.pdf", ReceiptID: id, Owner: "u1"},
		},
		{
			name:    "missing owner",
			trigger: workflow.Trigger{DocumentURL: "https://blob.example.com/r.pdf", ReceiptID: id},
			wantErr: auth.ErrUnauthenticated,
		},
		{
			name:    "missing receipt",
			trigger: workflow.Trigger{DocumentURL: "https://blob.example.com/r.pdf", Owner: "u1"},
			wantErr: workflow.ErrInvalidTrigger,
		},
		{
			name:    "local file",
			trigger: workflow.Trigger{DocumentURL: "file:///tmp/r.pdf", ReceiptID: id, Owner: "u1"},
			wantErr: workflow.ErrInvalidTrigger,
		},
		{
			name:    "relative url",
			trigger: workflow.Trigger{DocumentURL: "receipts/r.pdf", ReceiptID: id, Owner: "u1"},
			wantErr: workflow.ErrInvalidTrigger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEventRoundTrip(t *testing.T) {
	trigger := workflow.Trigger{
		DocumentURL: "https://blob.example.com/r.pdf",
		ReceiptID:   uuid.New(),
		Owner:       "u1",
		DeliveryID:  "evt-42",
	}

	e, err := workflow.NewEvent(trigger)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if e.ID() != "evt-42" || e.Type() != workflow.EventUploaded || e.Source() != workflow.EventSource {
		t.Fatalf("unexpected attributes: id=%s type=%s source=%s", e.ID(), e.Type(), e.Source())
	}

	got, err := workflow.FromEvent(e)
	if err != nil {
		t.Fatalf("FromEvent: %v", err)
	}
	if got != trigger {
		t.Errorf("FromEvent() = %+v, want %+v", got, trigger)
	}
}

func TestFromEventDefaultsDeliveryID(t *testing.T) {
	e, err := workflow.NewEvent(workflow.Trigger{
		DocumentURL: "https://blob.example.com/r.pdf",
		ReceiptID:   uuid.New(),
		Owner:       "u1",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if e.ID() == "" {
		t.Fatal("expected generated event id")
	}

	got, err := workflow.FromEvent(e)
	if err != nil {
		t.Fatalf("FromEvent: %v", err)
	}
	if got.DeliveryID != e.ID() {
		t.Errorf("DeliveryID = %q, want %q", got.DeliveryID, e.ID())
	}
}

func TestFromEventRejectsOtherTypes(t *testing.T) {
	e, err := workflow.NewEvent(workflow.Trigger{
		DocumentURL: "https://blob.example.com/r.pdf",
		ReceiptID:   uuid.New(),
		Owner:       "u1",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	e.SetType("com.example.other")

	if _, err := workflow.FromEvent(e); !errors.Is(err, workflow.ErrInvalidTrigger) {
		t.Errorf("FromEvent() = %v, want %v", err, workflow.ErrInvalidTrigger)
	}
}
