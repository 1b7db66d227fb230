package workflow

import (
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// NewEvent wraps t in an upload-completed CloudEvent. The event id is the
// trigger's delivery id, assigning a fresh one when it is empty.
func NewEvent(t Trigger) (cloudevents.Event, error) {
	if t.DeliveryID == "" {
		t.DeliveryID = uuid.NewString()
	}

	e := cloudevents.NewEvent()
	e.SetID(t.DeliveryID)
	e.SetType(EventUploaded)
	e.SetSource(EventSource)
	e.SetSubject(t.ReceiptID.String())
	if err := e.SetData(cloudevents.ApplicationJSON, t); err != nil {
		return e, fmt.Errorf("encode trigger: %w", err)
	}
	return e, nil
}

// FromEvent decodes the trigger carried by e. A trigger without a
// delivery id takes the event id, so transport redeliveries of the same
// event resume the same run.
func FromEvent(e cloudevents.Event) (Trigger, error) {
	var t Trigger
	if e.Type() != EventUploaded {
		return t, fmt.Errorf("%w: unexpected event type %q", ErrInvalidTrigger, e.Type())
	}
	if err := e.DataAs(&t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	if t.DeliveryID == "" {
		t.DeliveryID = e.ID()
	}
	return t, t.Validate()
}
