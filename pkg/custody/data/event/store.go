package event

import (
	"context"

	"github.com/pkg/errors"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

var (
	ErrEventNotFound = errors.New("no events could be found")
)

type Store interface {
	// Put appends an event record to the journal. Records are never updated
	// or deleted once written.
	Put(ctx context.Context, record *Record) error

	// GetAll gets journal records for draining by external observers
	GetAll(ctx context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)
}
