package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres backed vault.Store
func New(db *sql.DB) vault.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements vault.Store.Put
func (s *store) Put(ctx context.Context, record *vault.Record) error {
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

// Get implements vault.Store.Get
func (s *store) Get(ctx context.Context, owner string) (*vault.Record, error) {
	model, err := dbGetByOwner(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// Save implements vault.Store.Save
func (s *store) Save(ctx context.Context, record *vault.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	fromModel(model).CopyTo(record)

	return nil
}

// Count implements vault.Store.Count
func (s *store) Count(ctx context.Context) (uint64, error) {
	return dbGetCount(ctx, s.db)
}
