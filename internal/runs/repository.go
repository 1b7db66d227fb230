package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/query"
	"github.com/JaimeStill/receipts/pkg/repository"
)

type repo struct {
	db         *sql.DB
	store      ledger.Store
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a run repository implementing the System interface. Ledger
// entries are read through store.
func New(db *sql.DB, store ledger.Store, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		store:      store,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	owner string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[ledger.Run], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("Owner", &owner).
		WhereSearch(page.Search, "Cause")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderBy(page.Sort)
	}

	countSQL, countArgs := qb.Count()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.Page(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, owner string, id uuid.UUID) (*ledger.Run, error) {
	q, args := query.NewBuilder(projection).Single("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	if run.Owner != owner {
		return nil, ErrUnauthorized
	}
	return &run, nil
}

func (r *repo) Entries(ctx context.Context, owner string, id uuid.UUID) ([]ledger.Entry, error) {
	if _, err := r.Find(ctx, owner, id); err != nil {
		return nil, err
	}

	entries, err := r.store.Entries(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger entries for run %s: %w", id, err)
	}
	return entries, nil
}
