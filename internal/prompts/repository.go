package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/pkg/pagination"
	"github.com/JaimeStill/receipts/pkg/query"
	"github.com/JaimeStill/receipts/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New returns a System backed by the prompts table.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Prompt], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "Description")
	filters.Apply(qb)
	if len(page.Sort) > 0 {
		qb.OrderBy(page.Sort)
	}

	countSQL, countArgs := qb.Count()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count prompts: %w", err)
	}

	pageSQL, pageArgs := qb.Page(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPrompt)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	q, args := query.NewBuilder(projection).Single("ID", id)
	p, err := repository.QueryOne(ctx, r.db, q, args, scanPrompt)
	if err != nil {
		return nil, r.mapError(err)
	}
	return &p, nil
}

func (r *repo) Instructions(ctx context.Context, stage Stage) (string, error) {
	var text string
	err := r.db.QueryRowContext(ctx,
		"SELECT instructions FROM prompts WHERE stage = $1 AND active = true",
		stage,
	).Scan(&text)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Instructions(stage)
	case err != nil:
		return "", fmt.Errorf("query active %s prompt: %w", stage, err)
	}
	return text, nil
}

func (r *repo) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

func (r *repo) Create(ctx context.Context, cmd Command) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p, err := r.one(ctx,
		`INSERT INTO prompts (name, stage, instructions, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+columns,
		cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt created", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

// Update rewrites every writable field. Moving an active prompt to
// another stage is refused so the target stage keeps a single override.
func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*Prompt, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		current, err := r.lookup(ctx, tx, id)
		if err != nil {
			return Prompt{}, err
		}
		if current.Active && current.Stage != cmd.Stage {
			return Prompt{}, ErrActivePrompt
		}
		return repository.QueryOne(ctx, tx,
			`UPDATE prompts
			SET name = $1, stage = $2, instructions = $3, description = $4, updated_at = now()
			WHERE id = $5
			RETURNING `+columns,
			[]any{cmd.Name, cmd.Stage, cmd.Instructions, cmd.Description, id},
			scanPrompt,
		)
	})
	if err != nil {
		return nil, r.mapError(err)
	}

	r.logger.Info("prompt updated", "id", p.ID, "name", p.Name)
	return &p, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		current, err := r.lookup(ctx, tx, id)
		if err != nil {
			return struct{}{}, err
		}
		if current.Active {
			return struct{}{}, ErrActivePrompt
		}
		return struct{}{}, repository.ExecExpectOne(ctx, tx,
			"DELETE FROM prompts WHERE id = $1 AND active = false", id)
	})
	if err != nil {
		return r.mapError(err)
	}

	r.logger.Info("prompt deleted", "id", id)
	return nil
}

func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		target, err := r.lookup(ctx, tx, id)
		if err != nil {
			return Prompt{}, err
		}
		if target.Active {
			return target, nil
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE prompts SET active = false, updated_at = now() WHERE stage = $1 AND active = true",
			target.Stage,
		); err != nil {
			return Prompt{}, fmt.Errorf("deactivate %s prompt: %w", target.Stage, err)
		}

		return repository.QueryOne(ctx, tx,
			"UPDATE prompts SET active = true, updated_at = now() WHERE id = $1 RETURNING "+columns,
			[]any{id}, scanPrompt,
		)
	})
	if err != nil {
		return nil, r.mapError(err)
	}

	r.logger.Info("prompt activated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return &p, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Prompt, error) {
	p, err := r.one(ctx,
		"UPDATE prompts SET active = false, updated_at = now() WHERE id = $1 RETURNING "+columns,
		id,
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("prompt deactivated", "id", p.ID, "name", p.Name, "stage", p.Stage)
	return p, nil
}

// one runs a single-row write in its own transaction.
func (r *repo) one(ctx context.Context, q string, args ...any) (*Prompt, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Prompt, error) {
		return repository.QueryOne(ctx, tx, q, args, scanPrompt)
	})
	if err != nil {
		return nil, r.mapError(err)
	}
	return &p, nil
}

func (r *repo) lookup(ctx context.Context, q repository.Querier, id uuid.UUID) (Prompt, error) {
	sel, args := query.NewBuilder(projection).Single("ID", id)
	return repository.QueryOne(ctx, q, sel, args, scanPrompt)
}

func (r *repo) mapError(err error) error {
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}
