package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	pgutil "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/postgres"
	q "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

const (
	tableName = "btcvault__core_event"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	EventId   string `db:"event_id"`
	EventType uint32 `db:"event_type"`

	Owner string `db:"owner"`
	Block uint64 `db:"block"`

	Amount            sql.NullInt64  `db:"amount"`
	Balance           sql.NullInt64  `db:"balance"`
	RequestId         sql.NullInt64  `db:"request_id"`
	Recipient         sql.NullString `db:"recipient"`
	ExpiresAtBlock    sql.NullInt64  `db:"expires_at_block"`
	OldTimelockBlocks sql.NullInt64  `db:"old_timelock_blocks"`
	NewTimelockBlocks sql.NullInt64  `db:"new_timelock_blocks"`

	CreatedAt time.Time `db:"created_at"`
}

func toNullInt64(value *uint64) sql.NullInt64 {
	var res sql.NullInt64
	if value != nil {
		res.Valid = true
		res.Int64 = int64(*value)
	}
	return res
}

func fromNullInt64(value sql.NullInt64) *uint64 {
	if !value.Valid {
		return nil
	}
	res := uint64(value.Int64)
	return &res
}

func toModel(obj *event.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	var recipient sql.NullString
	if obj.Recipient != nil {
		recipient.Valid = true
		recipient.String = *obj.Recipient
	}

	return &model{
		EventId:   obj.EventId,
		EventType: uint32(obj.EventType),

		Owner: obj.Owner,
		Block: obj.Block,

		Amount:            toNullInt64(obj.Amount),
		Balance:           toNullInt64(obj.Balance),
		RequestId:         toNullInt64(obj.RequestId),
		Recipient:         recipient,
		ExpiresAtBlock:    toNullInt64(obj.ExpiresAtBlock),
		OldTimelockBlocks: toNullInt64(obj.OldTimelockBlocks),
		NewTimelockBlocks: toNullInt64(obj.NewTimelockBlocks),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *event.Record {
	var recipient *string
	if obj.Recipient.Valid {
		value := obj.Recipient.String
		recipient = &value
	}

	return &event.Record{
		Id: uint64(obj.Id.Int64),

		EventId:   obj.EventId,
		EventType: event.Type(obj.EventType),

		Owner: obj.Owner,
		Block: obj.Block,

		Amount:            fromNullInt64(obj.Amount),
		Balance:           fromNullInt64(obj.Balance),
		RequestId:         fromNullInt64(obj.RequestId),
		Recipient:         recipient,
		ExpiresAtBlock:    fromNullInt64(obj.ExpiresAtBlock),
		OldTimelockBlocks: fromNullInt64(obj.OldTimelockBlocks),
		NewTimelockBlocks: fromNullInt64(obj.NewTimelockBlocks),

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(event_id, event_type, owner, block, amount, balance, request_id, recipient, expires_at_block, old_timelock_blocks, new_timelock_blocks, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)

			RETURNING
				id, event_id, event_type, owner, block, amount, balance, request_id, recipient, expires_at_block, old_timelock_blocks, new_timelock_blocks, created_at`

		m.CreatedAt = time.Now()

		return tx.QueryRowxContext(
			ctx,
			query,

			m.EventId,
			m.EventType,

			m.Owner,
			m.Block,

			m.Amount,
			m.Balance,
			m.RequestId,
			m.Recipient,
			m.ExpiresAtBlock,
			m.OldTimelockBlocks,
			m.NewTimelockBlocks,

			m.CreatedAt.UTC(),
		).StructScan(m)
	})
}

func dbGetAll(ctx context.Context, db *sqlx.DB, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT
		id, event_id, event_type, owner, block, amount, balance, request_id, recipient, expires_at_block, old_timelock_blocks, new_timelock_blocks, created_at
		FROM ` + tableName + `
		WHERE (TRUE)
	`

	opts := []interface{}{}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, event.ErrEventNotFound)
	}

	if len(res) == 0 {
		return nil, event.ErrEventNotFound
	}
	return res, nil
}
