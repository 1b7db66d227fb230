package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ledgerCollection = "ledger"

type firestoreRun struct {
	ReceiptID   string     `firestore:"receipt_id"`
	Owner       string     `firestore:"owner"`
	DocumentURL string     `firestore:"document_url"`
	DeliveryID  string     `firestore:"delivery_id"`
	Status      string     `firestore:"status"`
	Iterations  int        `firestore:"iterations"`
	Cause       string     `firestore:"cause"`
	StartedAt   time.Time  `firestore:"started_at"`
	UpdatedAt   time.Time  `firestore:"updated_at"`
	FinishedAt  *time.Time `firestore:"finished_at"`
}

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type firestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// NewFirestore returns a Store that keeps each run as a document in
// collection and its entries in a ledger subcollection.
func NewFirestore(client *firestore.Client, collection string) Store {
	return &firestoreStore{client: client, collection: collection, now: time.Now}
}

func (f *firestoreStore) doc(id uuid.UUID) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(id.String())
}

func (f *firestoreStore) Begin(ctx context.Context, run Run) (*Run, bool, error) {
	now := f.now().UTC()
	doc := firestoreRun{
		ReceiptID:   run.ReceiptID.String(),
		Owner:       run.Owner,
		DocumentURL: run.DocumentURL,
		DeliveryID:  run.DeliveryID,
		Status:      string(StatusRunning),
		Iterations:  run.Iterations,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.doc(run.ID).Create(ctx, doc)
	if err == nil {
		return fromFirestore(run.ID, doc)
	}
	if status.Code(err) != codes.AlreadyExists {
		return nil, false, fmt.Errorf("begin run: %w", err)
	}

	stored, err := f.Find(ctx, run.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func fromFirestore(id uuid.UUID, doc firestoreRun) (*Run, bool, error) {
	receiptID, err := uuid.Parse(doc.ReceiptID)
	if err != nil {
		return nil, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &Run{
		ID:          id,
		ReceiptID:   receiptID,
		Owner:       doc.Owner,
		DocumentURL: doc.DocumentURL,
		DeliveryID:  doc.DeliveryID,
		Status:      Status(doc.Status),
		Iterations:  doc.Iterations,
		Cause:       doc.Cause,
		StartedAt:   doc.StartedAt,
		UpdatedAt:   doc.UpdatedAt,
		FinishedAt:  doc.FinishedAt,
	}, true, nil
}

func (f *firestoreStore) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	snap, err := f.doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}

	var doc firestoreRun
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	r, _, err := fromFirestore(id, doc)
	return r, err
}

// update applies updates inside a transaction after checking that the run
// is still running.
func (f *firestoreStore) update(ctx context.Context, id uuid.UUID, updates []firestore.Update) error {
	ref := f.doc(id)
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		current, err := snap.DataAt("status")
		if err != nil {
			return err
		}
		if s, _ := current.(string); Status(s) != StatusRunning {
			return ErrInvalidTransition
		}
		return tx.Update(ref, updates)
	})
}

func (f *firestoreStore) Advance(ctx context.Context, id uuid.UUID, iterations int) error {
	err := f.update(ctx, id, []firestore.Update{
		{Path: "iterations", Value: iterations},
		{Path: "updated_at", Value: f.now().UTC()},
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidTransition) {
		return fmt.Errorf("advance run: %w", err)
	}
	return err
}

func (f *firestoreStore) Finish(ctx context.Context, id uuid.UUID, next Status, cause string) (*Run, error) {
	if !StatusRunning.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	now := f.now().UTC()
	err := f.update(ctx, id, []firestore.Update{
		{Path: "status", Value: string(next)},
		{Path: "cause", Value: cause},
		{Path: "updated_at", Value: now},
		{Path: "finished_at", Value: now},
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("finish run: %w", err)
	}
	return f.Find(ctx, id)
}

func (f *firestoreStore) Get(ctx context.Context, id uuid.UUID, key string) (json.RawMessage, bool, error) {
	snap, err := f.doc(id).Collection(ledgerCollection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get ledger %s: %w", key, err)
	}

	var e firestoreEntry
	if err := snap.DataTo(&e); err != nil {
		return nil, false, fmt.Errorf("decode ledger %s: %w", key, err)
	}
	return json.RawMessage(e.Value), true, nil
}

func (f *firestoreStore) Set(ctx context.Context, id uuid.UUID, key string, value json.RawMessage) error {
	_, err := f.doc(id).Collection(ledgerCollection).Doc(key).Set(ctx, firestoreEntry{
		Value:     string(value),
		UpdatedAt: f.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("set ledger %s: %w", key, err)
	}
	return nil
}

func (f *firestoreStore) Entries(ctx context.Context, id uuid.UUID) ([]Entry, error) {
	if _, err := f.Find(ctx, id); err != nil {
		return nil, err
	}

	iter := f.doc(id).Collection(ledgerCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	entries := make([]Entry, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list ledger: %w", err)
		}

		var e firestoreEntry
		if err := snap.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode ledger %s: %w", snap.Ref.ID, err)
		}
		entries = append(entries, Entry{
			Key:       snap.Ref.ID,
			Value:     json.RawMessage(e.Value),
			UpdatedAt: e.UpdatedAt,
		})
	}
	return entries, nil
}

func (f *firestoreStore) Delete(ctx context.Context, id uuid.UUID) error {
	ref := f.doc(id)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	refs, err := ref.Collection(ledgerCollection).DocumentRefs(ctx).GetAll()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}

	bw := f.client.BulkWriter(ctx)
	for _, r := range refs {
		if _, err := bw.Delete(r); err != nil {
			bw.End()
			return fmt.Errorf("delete ledger %s: %w", r.ID, err)
		}
	}
	if _, err := bw.Delete(ref); err != nil {
		bw.End()
		return fmt.Errorf("delete run: %w", err)
	}
	bw.End()
	return nil
}
