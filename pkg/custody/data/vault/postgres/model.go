package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
	pgutil "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/postgres"
)

const (
	tableName = "btcvault__core_vault"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Owner string `db:"owner"`

	Balance uint64 `db:"balance"`

	TimelockBlocks uint64 `db:"timelock_blocks"`
	CreatedAtBlock uint64 `db:"created_at_block"`

	TotalDeposits    uint64 `db:"total_deposits"`
	TotalWithdrawals uint64 `db:"total_withdrawals"`

	Version uint64 `db:"version"`

	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *vault.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Owner: obj.Owner,

		Balance: obj.Balance,

		TimelockBlocks: obj.TimelockBlocks,
		CreatedAtBlock: obj.CreatedAtBlock,

		TotalDeposits:    obj.TotalDeposits,
		TotalWithdrawals: obj.TotalWithdrawals,

		Version: obj.Version,

		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *vault.Record {
	return &vault.Record{
		Id: uint64(obj.Id.Int64),

		Owner: obj.Owner,

		Balance: obj.Balance,

		TimelockBlocks: obj.TimelockBlocks,
		CreatedAtBlock: obj.CreatedAtBlock,

		TotalDeposits:    obj.TotalDeposits,
		TotalWithdrawals: obj.TotalWithdrawals,

		Version: obj.Version,

		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(owner, balance, timelock_blocks, created_at_block, total_deposits, total_withdrawals, version, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7)

			RETURNING
				id, owner, balance, timelock_blocks, created_at_block, total_deposits, total_withdrawals, version, last_updated_at`

		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Owner,

			m.Balance,

			m.TimelockBlocks,
			m.CreatedAtBlock,

			m.TotalDeposits,
			m.TotalWithdrawals,

			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, vault.ErrVaultAlreadyExists)
	})
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET balance = $3, timelock_blocks = $4, total_deposits = $5, total_withdrawals = $6, version = $2 + 1, last_updated_at = $7
			WHERE owner = $1 AND version = $2

			RETURNING
				id, owner, balance, timelock_blocks, created_at_block, total_deposits, total_withdrawals, version, last_updated_at`

		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Owner,
			m.Version,

			m.Balance,
			m.TimelockBlocks,

			m.TotalDeposits,
			m.TotalWithdrawals,

			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		if pgutil.IsNoRows(err) {
			// Distinguish a missing vault from a concurrent writer winning
			// the version race.
			_, existsErr := dbGetByOwner(ctx, db, m.Owner)
			if existsErr == vault.ErrVaultNotFound {
				return vault.ErrVaultNotFound
			}
			return vault.ErrStaleVault
		}
		return err
	})
}

func dbGetByOwner(ctx context.Context, db *sqlx.DB, owner string) (*model, error) {
	res := &model{}

	query := `SELECT
		id, owner, balance, timelock_blocks, created_at_block, total_deposits, total_withdrawals, version, last_updated_at
		FROM ` + tableName + `
		WHERE owner = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, owner)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, vault.ErrVaultNotFound)
	}
	return res, nil
}

func dbGetCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName
	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}

	return res, nil
}
