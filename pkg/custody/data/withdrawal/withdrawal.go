package withdrawal

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

var (
	ErrWithdrawalNotFound      = errors.New("no withdrawal request could be found")
	ErrWithdrawalAlreadyExists = errors.New("withdrawal request already exists")
	ErrWithdrawalNotPending    = errors.New("withdrawal request is not pending")
)

type Status uint8

const (
	StatusUnknown Status = iota
	StatusPending
	StatusCancelled
	StatusExecuted
)

// Record is a single withdrawal request. Requests are keyed by
// (owner, request id), where request ids come from the owner's private
// monotonically increasing sequence starting at 1.
//
// The timelock expiry is snapshotted from the vault's configuration at
// request time. Reconfiguring the vault never touches outstanding requests.
type Record struct {
	Id uint64

	Owner     string
	RequestId uint64

	Amount    uint64
	Recipient string

	RequestedAtBlock uint64
	ExpiresAtBlock   uint64

	Status Status

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

type Store interface {
	// Put creates a new withdrawal request in the pending state. Fails with
	// ErrWithdrawalAlreadyExists if the (owner, request id) pair is taken.
	Put(ctx context.Context, record *Record) error

	// Get gets a withdrawal request by its owner and request id
	Get(ctx context.Context, owner string, requestId uint64) (*Record, error)

	// Update finalizes a withdrawal request's status. The update only
	// applies while the stored status is still pending, so terminal states
	// can never be overwritten.
	Update(ctx context.Context, record *Record) error

	// GetAllByOwner gets all of an owner's withdrawal requests
	GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// GetCountByStatus gets the count of withdrawal requests in the provided status
	GetCountByStatus(ctx context.Context, status Status) (uint64, error)

	// NextSequence advances the owner's request id sequence and returns the
	// new value. Issued ids are strictly increasing and never reused, even
	// across cancelled or executed requests.
	NextSequence(ctx context.Context, owner string) (uint64, error)

	// GetSequence gets the highest request id issued to the owner, or 0 if
	// none have been issued.
	GetSequence(ctx context.Context, owner string) (uint64, error)
}

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusPending:
		return "pending"
	case StatusCancelled:
		return "cancelled"
	case StatusExecuted:
		return "executed"
	}

	return "unknown"
}

// IsTerminal returns whether the status can never transition again
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExecuted
}

func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	if r.RequestId == 0 {
		return errors.New("request id is required")
	}

	if r.Amount == 0 {
		return errors.New("amount is required")
	}

	if len(r.Recipient) == 0 {
		return errors.New("recipient is required")
	}

	if r.ExpiresAtBlock < r.RequestedAtBlock {
		return errors.New("expiry block must not precede the request block")
	}

	if r.Status == StatusUnknown || r.Status > StatusExecuted {
		return errors.New("invalid withdrawal status")
	}

	return nil
}

func (r *Record) Clone() *Record {
	return &Record{
		Id: r.Id,

		Owner:     r.Owner,
		RequestId: r.RequestId,

		Amount:    r.Amount,
		Recipient: r.Recipient,

		RequestedAtBlock: r.RequestedAtBlock,
		ExpiresAtBlock:   r.ExpiresAtBlock,

		Status: r.Status,

		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Owner = r.Owner
	dst.RequestId = r.RequestId

	dst.Amount = r.Amount
	dst.Recipient = r.Recipient

	dst.RequestedAtBlock = r.RequestedAtBlock
	dst.ExpiresAtBlock = r.ExpiresAtBlock

	dst.Status = r.Status

	dst.CreatedAt = r.CreatedAt
	dst.LastUpdatedAt = r.LastUpdatedAt
}
