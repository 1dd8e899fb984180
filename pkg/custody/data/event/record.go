package event

import (
	"time"

	"github.com/pkg/errors"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/pointer"
)

type Type uint32

const (
	UnknownEvent Type = iota
	VaultCreated
	DepositRegistered
	TimelockUpdated
	WithdrawalRequested
	WithdrawalCancelled
	WithdrawalExecuted
)

// Record is a single entry in the append-only operation journal. One record
// is written for every successful mutating operation, in the same transaction
// as the mutation itself, and handed back to the caller. External observers
// (indexers, notification systems) drain the journal; it is never consulted
// for authorization.
type Record struct {
	Id uint64

	EventId   string
	EventType Type

	Owner string
	Block uint64

	// Type-specific fields. Only the fields relevant to the event type are
	// set; see Validate for the per-type requirements.
	Amount            *uint64
	Balance           *uint64
	RequestId         *uint64
	Recipient         *string
	ExpiresAtBlock    *uint64
	OldTimelockBlocks *uint64
	NewTimelockBlocks *uint64

	CreatedAt time.Time
}

func (t Type) String() string {
	switch t {
	case VaultCreated:
		return "vault-created"
	case DepositRegistered:
		return "deposit-registered"
	case TimelockUpdated:
		return "timelock-updated"
	case WithdrawalRequested:
		return "withdrawal-requested"
	case WithdrawalCancelled:
		return "withdrawal-cancelled"
	case WithdrawalExecuted:
		return "withdrawal-executed"
	}

	return "unknown"
}

func (r *Record) Validate() error {
	if r == nil {
		return errors.New("record is nil")
	}

	if len(r.EventId) == 0 {
		return errors.New("event id is required")
	}

	if len(r.Owner) == 0 {
		return errors.New("owner is required")
	}

	switch r.EventType {
	case VaultCreated:
		if r.NewTimelockBlocks == nil {
			return errors.New("timelock blocks are required for vault creation events")
		}
	case DepositRegistered:
		if r.Amount == nil || r.Balance == nil {
			return errors.New("amount and resulting balance are required for deposit events")
		}
	case TimelockUpdated:
		if r.OldTimelockBlocks == nil || r.NewTimelockBlocks == nil {
			return errors.New("old and new timelock blocks are required for timelock update events")
		}
	case WithdrawalRequested:
		if r.RequestId == nil || r.Amount == nil || r.Recipient == nil || r.ExpiresAtBlock == nil {
			return errors.New("request id, amount, recipient and expiry are required for withdrawal request events")
		}
	case WithdrawalCancelled:
		if r.RequestId == nil {
			return errors.New("request id is required for withdrawal cancellation events")
		}
	case WithdrawalExecuted:
		if r.RequestId == nil || r.Amount == nil || r.Balance == nil || r.Recipient == nil {
			return errors.New("request id, amount, resulting balance and recipient are required for withdrawal execution events")
		}
	default:
		return errors.New("invalid event type")
	}

	return nil
}

func (r *Record) Clone() *Record {
	return &Record{
		Id: r.Id,

		EventId:   r.EventId,
		EventType: r.EventType,

		Owner: r.Owner,
		Block: r.Block,

		Amount:            pointer.Uint64Copy(r.Amount),
		Balance:           pointer.Uint64Copy(r.Balance),
		RequestId:         pointer.Uint64Copy(r.RequestId),
		Recipient:         pointer.StringCopy(r.Recipient),
		ExpiresAtBlock:    pointer.Uint64Copy(r.ExpiresAtBlock),
		OldTimelockBlocks: pointer.Uint64Copy(r.OldTimelockBlocks),
		NewTimelockBlocks: pointer.Uint64Copy(r.NewTimelockBlocks),

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.EventId = r.EventId
	dst.EventType = r.EventType

	dst.Owner = r.Owner
	dst.Block = r.Block

	dst.Amount = pointer.Uint64Copy(r.Amount)
	dst.Balance = pointer.Uint64Copy(r.Balance)
	dst.RequestId = pointer.Uint64Copy(r.RequestId)
	dst.Recipient = pointer.StringCopy(r.Recipient)
	dst.ExpiresAtBlock = pointer.Uint64Copy(r.ExpiresAtBlock)
	dst.OldTimelockBlocks = pointer.Uint64Copy(r.OldTimelockBlocks)
	dst.NewTimelockBlocks = pointer.Uint64Copy(r.NewTimelockBlocks)

	dst.CreatedAt = r.CreatedAt
}
