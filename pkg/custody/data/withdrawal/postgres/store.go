package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres backed withdrawal.Store
func New(db *sql.DB) withdrawal.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements withdrawal.Store.Put
func (s *store) Put(ctx context.Context, record *withdrawal.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbPut(ctx, s.db); err != nil {
		return err
	}

	fromModel(model).CopyTo(record)

	return nil
}

// Get implements withdrawal.Store.Get
func (s *store) Get(ctx context.Context, owner string, requestId uint64) (*withdrawal.Record, error) {
	model, err := dbGet(ctx, s.db, owner, requestId)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// Update implements withdrawal.Store.Update
func (s *store) Update(ctx context.Context, record *withdrawal.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbUpdate(ctx, s.db); err != nil {
		return err
	}

	fromModel(model).CopyTo(record)

	return nil
}

// GetAllByOwner implements withdrawal.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*withdrawal.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*withdrawal.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// GetCountByStatus implements withdrawal.Store.GetCountByStatus
func (s *store) GetCountByStatus(ctx context.Context, status withdrawal.Status) (uint64, error) {
	return dbGetCountByStatus(ctx, s.db, status)
}

// NextSequence implements withdrawal.Store.NextSequence
func (s *store) NextSequence(ctx context.Context, owner string) (uint64, error) {
	return dbNextSequence(ctx, s.db, owner)
}

// GetSequence implements withdrawal.Store.GetSequence
func (s *store) GetSequence(ctx context.Context, owner string) (uint64, error) {
	return dbGetSequence(ctx, s.db, owner)
}
