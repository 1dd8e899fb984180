package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
	pgutil "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/postgres"
	q "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

const (
	tableName        = "btcvault__core_withdrawal"
	counterTableName = "btcvault__core_withdrawalcounter"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Owner     string `db:"owner"`
	RequestId uint64 `db:"request_id"`

	Amount    uint64 `db:"amount"`
	Recipient string `db:"recipient"`

	RequestedAtBlock uint64 `db:"requested_at_block"`
	ExpiresAtBlock   uint64 `db:"expires_at_block"`

	Status uint `db:"status"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *withdrawal.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Owner:     obj.Owner,
		RequestId: obj.RequestId,

		Amount:    obj.Amount,
		Recipient: obj.Recipient,

		RequestedAtBlock: obj.RequestedAtBlock,
		ExpiresAtBlock:   obj.ExpiresAtBlock,

		Status: uint(obj.Status),

		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *withdrawal.Record {
	return &withdrawal.Record{
		Id: uint64(obj.Id.Int64),

		Owner:     obj.Owner,
		RequestId: obj.RequestId,

		Amount:    obj.Amount,
		Recipient: obj.Recipient,

		RequestedAtBlock: obj.RequestedAtBlock,
		ExpiresAtBlock:   obj.ExpiresAtBlock,

		Status: withdrawal.Status(obj.Status),

		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(owner, request_id, amount, recipient, requested_at_block, expires_at_block, status, created_at, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)

			RETURNING
				id, owner, request_id, amount, recipient, requested_at_block, expires_at_block, status, created_at, last_updated_at`

		m.CreatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Owner,
			m.RequestId,

			m.Amount,
			m.Recipient,

			m.RequestedAtBlock,
			m.ExpiresAtBlock,

			m.Status,

			m.CreatedAt.UTC(),
		).StructScan(m)

		return pgutil.CheckUniqueViolation(err, withdrawal.ErrWithdrawalAlreadyExists)
	})
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET status = $3, last_updated_at = $4
			WHERE owner = $1 AND request_id = $2 AND status = $5

			RETURNING
				id, owner, request_id, amount, recipient, requested_at_block, expires_at_block, status, created_at, last_updated_at`

		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Owner,
			m.RequestId,

			m.Status,

			m.LastUpdatedAt.UTC(),

			uint(withdrawal.StatusPending),
		).StructScan(m)

		if pgutil.IsNoRows(err) {
			// Distinguish a missing request from one that has already been
			// finalized. Terminal statuses are never overwritten.
			_, existsErr := dbGet(ctx, db, m.Owner, m.RequestId)
			if existsErr == withdrawal.ErrWithdrawalNotFound {
				return withdrawal.ErrWithdrawalNotFound
			}
			return withdrawal.ErrWithdrawalNotPending
		}
		return err
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, owner string, requestId uint64) (*model, error) {
	res := &model{}

	query := `SELECT
		id, owner, request_id, amount, recipient, requested_at_block, expires_at_block, status, created_at, last_updated_at
		FROM ` + tableName + `
		WHERE owner = $1 AND request_id = $2
		LIMIT 1`

	err := db.GetContext(ctx, res, query, owner, requestId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, withdrawal.ErrWithdrawalNotFound)
	}
	return res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT
		id, owner, request_id, amount, recipient, requested_at_block, expires_at_block, status, created_at, last_updated_at
		FROM ` + tableName + `
		WHERE (owner = $1)
	`

	opts := []interface{}{owner}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, withdrawal.ErrWithdrawalNotFound)
	}

	if len(res) == 0 {
		return nil, withdrawal.ErrWithdrawalNotFound
	}
	return res, nil
}

func dbGetCountByStatus(ctx context.Context, db *sqlx.DB, status withdrawal.Status) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName + ` WHERE status = $1`
	err := db.GetContext(ctx, &res, query, uint(status))
	if err != nil {
		return 0, err
	}

	return res, nil
}

func dbNextSequence(ctx context.Context, db *sqlx.DB, owner string) (uint64, error) {
	var res uint64

	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + counterTableName + `
			(owner, value)
			VALUES ($1, 1)

			ON CONFLICT (owner)
			DO UPDATE
				SET value = ` + counterTableName + `.value + 1

			RETURNING value`

		return tx.QueryRowxContext(ctx, query, owner).Scan(&res)
	})
	if err != nil {
		return 0, err
	}

	return res, nil
}

func dbGetSequence(ctx context.Context, db *sqlx.DB, owner string) (uint64, error) {
	var res uint64

	query := `SELECT value FROM ` + counterTableName + ` WHERE owner = $1 LIMIT 1`
	err := db.GetContext(ctx, &res, query, owner)
	if err != nil {
		if pgutil.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}

	return res, nil
}
