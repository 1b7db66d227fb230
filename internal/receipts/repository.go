package receipts

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/query"
	"github.com/JaimeStill/receipts/pkg/repository"
	"github.com/JaimeStill/receipts/pkg/storage"
	"github.com/JaimeStill/receipts/workflow"
)

const returning = `
		RETURNING id, owner, filename, display_name, content_type, size_bytes, page_count, storage_key,
			status, merchant_name, amount, currency, fields, failure_cause, uploaded_at, processed_at, updated_at`

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a receipt repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "receipts"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64, dispatcher Dispatcher) *Handler {
	return NewHandler(r, dispatcher, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	owner string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Receipt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("Owner", &owner).
		WhereSearch(page.Search, "DisplayName", "Filename", "MerchantName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderBy(page.Sort)
	}

	countSQL, countArgs := qb.Count()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count receipts: %w", err)
	}

	pageSQL, pageArgs := qb.Page(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanReceipt)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, owner string, id uuid.UUID) (*Receipt, error) {
	q, args := query.NewBuilder(projection).Single("ID", id)

	rec, err := repository.QueryOne(ctx, r.db, q, args, scanReceipt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if rec.Owner != owner {
		return nil, ErrUnauthorized
	}
	return &rec, nil
}

func (r *repo) Create(ctx context.Context, owner string, cmd CreateCommand) (*Receipt, error) {
	id := uuid.New()
	key := buildStorageKey(owner, id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), int64(len(cmd.Data)), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload receipt blob: %w", err)
	}

	rec, err := r.insert(ctx, id, owner, key, cmd.Filename, displayName(cmd.DisplayName, cmd.Filename), cmd.ContentType, int64(len(cmd.Data)), cmd.PageCount)
	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, err
	}

	r.logger.Info("receipt created", "id", rec.ID, "owner", owner, "filename", rec.Filename)
	return rec, nil
}

func (r *repo) Reserve(ctx context.Context, owner string, cmd ReserveCommand) (*Reservation, error) {
	if cmd.Filename == "" {
		return nil, ErrInvalidFile
	}

	id := uuid.New()
	key := buildStorageKey(owner, id, sanitizeFilename(cmd.Filename))

	upload, err := r.storage.UploadURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("issue upload url: %w", err)
	}

	rec, err := r.insert(ctx, id, owner, key, cmd.Filename, displayName(cmd.DisplayName, cmd.Filename), "application/pdf", cmd.SizeBytes, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Info("receipt reserved", "id", rec.ID, "owner", owner)
	return &Reservation{Receipt: rec, Upload: upload}, nil
}

func (r *repo) insert(
	ctx context.Context,
	id uuid.UUID,
	owner, key, filename, display, contentType string,
	size int64,
	pageCount *int,
) (*Receipt, error) {
	q := `
		INSERT INTO receipts(id, owner, filename, display_name, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)` + returning

	args := []any{id, owner, filename, display, contentType, size, pageCount, key}

	rec, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Receipt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanReceipt)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rec, nil
}

func (r *repo) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	rec, err := r.Find(ctx, owner, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM receipts WHERE id = $1 AND owner = $2",
			id, owner,
		)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, rec.StorageKey); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
		r.logger.Warn("blob delete failed after DB delete", "key", rec.StorageKey, "error", delErr)
	}

	r.logger.Info("receipt deleted", "id", id)
	return nil
}

func (r *repo) DownloadURL(ctx context.Context, owner string, id uuid.UUID) (*storage.SignedURL, error) {
	rec, err := r.Find(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	exists, err := r.storage.Exists(ctx, rec.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check receipt blob: %w", err)
	}
	if !exists {
		return nil, ErrNotUploaded
	}

	return r.storage.DownloadURL(ctx, rec.StorageKey)
}

func (r *repo) Submit(ctx context.Context, owner string, id uuid.UUID) (*workflow.Trigger, error) {
	rec, err := r.Find(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if rec.Status == StatusProcessed {
		return nil, fmt.Errorf("%w: receipt already processed", ErrInvalidStatus)
	}

	signed, err := r.DownloadURL(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if rec.Status == StatusFailed {
		if err := r.transition(ctx, id, StatusFailed, StatusPending, nil); err != nil {
			return nil, err
		}
		r.logger.Info("receipt reset for reprocessing", "id", id)
	}

	return &workflow.Trigger{
		DocumentURL: signed.URL,
		ReceiptID:   id,
		Owner:       owner,
		DeliveryID:  uuid.NewString(),
	}, nil
}

func (r *repo) Commit(ctx context.Context, owner string, id uuid.UUID, fields Fields) (bool, error) {
	rec, err := r.Find(ctx, owner, id)
	if err != nil {
		return false, err
	}

	switch rec.Status {
	case StatusProcessed:
		r.logger.Info("receipt already processed, commit skipped", "id", id)
		return false, nil
	case StatusFailed:
		return false, fmt.Errorf("%w: cannot commit a failed receipt", ErrInvalidStatus)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("encode fields: %w", err)
	}

	q := `
		UPDATE receipts
		SET status = $3, fields = $4, merchant_name = $5, amount = $6, currency = $7,
			failure_cause = NULL, processed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND owner = $2 AND status = $8`

	res, err := r.db.ExecContext(
		ctx, q,
		id, owner, StatusProcessed, data,
		nullString(fields.Merchant.Name), fields.Amount, nullString(fields.Currency),
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if n == 0 {
		// A concurrent commit won the race.
		return false, nil
	}

	r.logger.Info("receipt committed", "id", id, "items", len(fields.Items), "flags", len(fields.Flags))
	return true, nil
}

func (r *repo) MarkFailed(ctx context.Context, owner string, id uuid.UUID, cause string) error {
	rec, err := r.Find(ctx, owner, id)
	if err != nil {
		return err
	}
	if !rec.Status.CanTransitionTo(StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, rec.Status, StatusFailed)
	}

	if err := r.transition(ctx, id, StatusPending, StatusFailed, &cause); err != nil {
		return err
	}

	r.logger.Warn("receipt marked failed", "id", id, "cause", cause)
	return nil
}

func (r *repo) transition(ctx context.Context, id uuid.UUID, from, to Status, cause *string) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		`UPDATE receipts SET status = $2, failure_cause = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, to, cause, from,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, from, to)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}

func buildStorageKey(owner string, id uuid.UUID, filename string) string {
	return fmt.Sprintf("receipts/%s/%s/%s", url.PathEscape(owner), id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == string(filepath.Separator) {
		name = "receipt.pdf"
	}
	return url.PathEscape(name)
}

func displayName(display, filename string) string {
	if display != "" {
		return display
	}
	return filename
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
