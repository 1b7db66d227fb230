// Package runs serves the run history recorded by the SQL step ledger.
// Every query is scoped to the owner of the runs.
package runs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/receipts/internal/ledger"
	"github.com/JaimeStill/receipts/pkg/pagination"
)

// System defines the public contract for run queries.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		owner string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[ledger.Run], error)

	Find(ctx context.Context, owner string, id uuid.UUID) (*ledger.Run, error)
	Entries(ctx context.Context, owner string, id uuid.UUID) ([]ledger.Entry, error)
}
