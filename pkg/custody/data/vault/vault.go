package vault

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/timelock"
)

var (
	ErrVaultNotFound      = errors.New("no vault could be found")
	ErrVaultAlreadyExists = errors.New("vault already exists")
	ErrStaleVault         = errors.New("vault state is stale")
)

// Record is the bookkeeping state for a single owner's vault. Balances are
// custodied sats; all heights are Bitcoin block heights observed externally.
type Record struct {
	Id uint64

	Owner string

	Balance uint64

	TimelockBlocks uint64
	CreatedAtBlock uint64

	// Lifetime accounting totals. Monotonically non-decreasing; audit aids
	// only, never consulted for authorization.
	TotalDeposits    uint64
	TotalWithdrawals uint64

	// Version guards saves against concurrent writers. Saves with a version
	// that doesn't match the stored record fail with ErrStaleVault.
	Version uint64

	LastUpdatedAt time.Time
}

type Store interface {
	// Put creates a new vault record. There is at most one vault per owner,
	// ever, so this fails with ErrVaultAlreadyExists on any collision.
	Put(ctx context.Context, record *Record) error

	// Get gets a vault record by its owner
	Get(ctx context.Context, owner string) (*Record, error)

	// Save updates an existing vault record. The update only applies when
	// the provided record's version matches the stored one, and bumps the
	// version on success.
	Save(ctx context.Context, record *Record) error

	// Count gets the total number of vaults ever created. Vaults are never
	// deleted, so this doubles as the lifetime creation tally.
	Count(ctx context.Context) (uint64, error)
}

func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if !timelock.IsValidDuration(r.TimelockBlocks) {
		return errors.Errorf("timelock blocks must be in the range [%d, %d]", timelock.MinTimelockBlocks, timelock.MaxTimelockBlocks)
	}

	if r.TotalWithdrawals > r.TotalDeposits {
		return errors.New("lifetime withdrawals exceed lifetime deposits")
	}

	if r.Balance != r.TotalDeposits-r.TotalWithdrawals {
		return errors.New("balance does not reconcile with lifetime totals")
	}

	return nil
}

func (r *Record) Clone() *Record {
	return &Record{
		Id: r.Id,

		Owner: r.Owner,

		Balance: r.Balance,

		TimelockBlocks: r.TimelockBlocks,
		CreatedAtBlock: r.CreatedAtBlock,

		TotalDeposits:    r.TotalDeposits,
		TotalWithdrawals: r.TotalWithdrawals,

		Version: r.Version,

		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Owner = r.Owner

	dst.Balance = r.Balance

	dst.TimelockBlocks = r.TimelockBlocks
	dst.CreatedAtBlock = r.CreatedAtBlock

	dst.TotalDeposits = r.TotalDeposits
	dst.TotalWithdrawals = r.TotalWithdrawals

	dst.Version = r.Version

	dst.LastUpdatedAt = r.LastUpdatedAt
}
