package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	pg "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/postgres"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"

	event_memory_client "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event/memory"
	vault_memory_client "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault/memory"
	withdrawal_memory_client "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal/memory"

	event_postgres_client "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event/postgres"
	vault_postgres_client "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault/postgres"
	withdrawal_postgres_client "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal/postgres"
)

type Provider interface {
	// Vaults
	// --------------------------------------------------------------------------------
	CreateVault(ctx context.Context, record *vault.Record) error
	GetVault(ctx context.Context, owner string) (*vault.Record, error)
	SaveVault(ctx context.Context, record *vault.Record) error
	GetVaultCount(ctx context.Context) (uint64, error)

	// Withdrawals
	// --------------------------------------------------------------------------------
	CreateWithdrawal(ctx context.Context, record *withdrawal.Record) error
	GetWithdrawal(ctx context.Context, owner string, requestId uint64) (*withdrawal.Record, error)
	UpdateWithdrawal(ctx context.Context, record *withdrawal.Record) error
	GetAllWithdrawalsByOwner(ctx context.Context, owner string, opts ...query.Option) ([]*withdrawal.Record, error)
	GetWithdrawalCountByStatus(ctx context.Context, status withdrawal.Status) (uint64, error)
	GetNextWithdrawalSequence(ctx context.Context, owner string) (uint64, error)
	GetWithdrawalSequence(ctx context.Context, owner string) (uint64, error)

	// Events
	// --------------------------------------------------------------------------------
	PutEvent(ctx context.Context, record *event.Record) error
	GetAllEvents(ctx context.Context, opts ...query.Option) ([]*event.Record, error)

	// ExecuteInTx executes fn with a single DB transaction that is scoped to the call.
	// This enables more complex transactions that can span many calls across the provider.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	vaults      vault.Store
	withdrawals withdrawal.Store
	events      event.Store

	db *sqlx.DB
}

func NewDatabaseProvider(dbConfig *pg.Config) (Provider, error) {
	db, err := pg.NewWithUsernameAndPassword(
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		fmt.Sprint(dbConfig.Port),
		dbConfig.DbName,
	)
	if err != nil {
		return nil, err
	}

	if dbConfig.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(dbConfig.MaxOpenConnections)
	}
	if dbConfig.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(dbConfig.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(time.Hour)
	db.SetConnMaxLifetime(time.Hour)

	return &DatabaseProvider{
		vaults:      vault_postgres_client.New(db),
		withdrawals: withdrawal_postgres_client.New(db),
		events:      event_postgres_client.New(db),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

func NewTestDataProvider() Provider {
	return &DatabaseProvider{
		vaults:      vault_memory_client.New(),
		withdrawals: withdrawal_memory_client.New(),
		events:      event_memory_client.New(),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Vaults
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CreateVault(ctx context.Context, record *vault.Record) error {
	return dp.vaults.Put(ctx, record)
}
func (dp *DatabaseProvider) GetVault(ctx context.Context, owner string) (*vault.Record, error) {
	return dp.vaults.Get(ctx, owner)
}
func (dp *DatabaseProvider) SaveVault(ctx context.Context, record *vault.Record) error {
	return dp.vaults.Save(ctx, record)
}
func (dp *DatabaseProvider) GetVaultCount(ctx context.Context) (uint64, error) {
	return dp.vaults.Count(ctx)
}

// Withdrawals
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) CreateWithdrawal(ctx context.Context, record *withdrawal.Record) error {
	return dp.withdrawals.Put(ctx, record)
}
func (dp *DatabaseProvider) GetWithdrawal(ctx context.Context, owner string, requestId uint64) (*withdrawal.Record, error) {
	return dp.withdrawals.Get(ctx, owner, requestId)
}
func (dp *DatabaseProvider) UpdateWithdrawal(ctx context.Context, record *withdrawal.Record) error {
	return dp.withdrawals.Update(ctx, record)
}
func (dp *DatabaseProvider) GetAllWithdrawalsByOwner(ctx context.Context, owner string, opts ...query.Option) ([]*withdrawal.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}
	return dp.withdrawals.GetAllByOwner(ctx, owner, req.Cursor, req.Limit, req.SortBy)
}
func (dp *DatabaseProvider) GetWithdrawalCountByStatus(ctx context.Context, status withdrawal.Status) (uint64, error) {
	return dp.withdrawals.GetCountByStatus(ctx, status)
}
func (dp *DatabaseProvider) GetNextWithdrawalSequence(ctx context.Context, owner string) (uint64, error) {
	return dp.withdrawals.NextSequence(ctx, owner)
}
func (dp *DatabaseProvider) GetWithdrawalSequence(ctx context.Context, owner string) (uint64, error) {
	return dp.withdrawals.GetSequence(ctx, owner)
}

// Events
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) PutEvent(ctx context.Context, record *event.Record) error {
	return dp.events.Put(ctx, record)
}
func (dp *DatabaseProvider) GetAllEvents(ctx context.Context, opts ...query.Option) ([]*event.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}
	return dp.events.GetAll(ctx, req.Cursor, req.Limit, req.SortBy)
}
