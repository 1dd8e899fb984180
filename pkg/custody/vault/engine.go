// Package vault implements the custody core. Owners register deposits
// against a personal vault and withdraw only after an explicit, cancellable
// waiting period measured in blocks.
//
// Every mutating operation applies atomically, appends a journal record in
// the same transaction, and hands that record back to the caller.
package vault

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/height"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/timelock"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/metrics"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/pointer"
	sync_util "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/sync"

	vault_storage "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
	withdrawal_storage "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
)

const (
	ownerLockStripes = 1024
)

type Engine struct {
	log *logrus.Entry

	data    data.Provider
	heights height.Source

	ownerLocks *sync_util.StripedLock
}

// NewEngine returns a new custody engine operating over the provided data
// provider. The height source is sampled exactly once per operation; the
// engine never advances it.
func NewEngine(data data.Provider, heights height.Source) *Engine {
	return &Engine{
		log: logrus.StandardLogger().WithField("type", "custody/vault/engine"),

		data:    data,
		heights: heights,

		ownerLocks: sync_util.NewStripedLock(ownerLockStripes),
	}
}

// CreateVault creates a vault for the owner with the provided timelock
// duration. A duration of zero selects the default. Each owner gets at most
// one vault, ever.
func (e *Engine) CreateVault(ctx context.Context, owner string, timelockBlocks uint64) (*event.Record, error) {
	log := e.log.WithFields(logrus.Fields{
		"method": "CreateVault",
		"owner":  owner,
	})

	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	if timelockBlocks == 0 {
		timelockBlocks = timelock.DefaultTimelockBlocks
	}
	if err := timelock.ValidateDuration(timelockBlocks); err != nil {
		return nil, err
	}

	lock := e.ownerLocks.Get([]byte(owner))
	lock.Lock()
	defer lock.Unlock()

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting current height")
		return nil, err
	}

	eventRecord := &event.Record{
		EventId:   uuid.New().String(),
		EventType: event.VaultCreated,

		Owner: owner,
		Block: currentHeight,

		NewTimelockBlocks: pointer.Uint64(timelockBlocks),
	}

	err = e.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		vaultRecord := &vault_storage.Record{
			Owner: owner,

			TimelockBlocks: timelockBlocks,
			CreatedAtBlock: currentHeight,
		}

		if err := e.data.CreateVault(ctx, vaultRecord); err != nil {
			return err
		}

		return e.data.PutEvent(ctx, eventRecord)
	})
	if err != nil {
		if err != vault_storage.ErrVaultAlreadyExists {
			log.WithError(err).Warn("failure creating vault")
		}
		return nil, err
	}

	recordEventMetrics(ctx, eventRecord)

	return eventRecord, nil
}

// RegisterDeposit credits the owner's vault with an amount of sats that has
// been observed in custody.
func (e *Engine) RegisterDeposit(ctx context.Context, owner string, amount uint64) (*event.Record, error) {
	log := e.log.WithFields(logrus.Fields{
		"method": "RegisterDeposit",
		"owner":  owner,
		"amount": amount,
	})

	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	lock := e.ownerLocks.Get([]byte(owner))
	lock.Lock()
	defer lock.Unlock()

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting current height")
		return nil, err
	}

	eventRecord := &event.Record{
		EventId:   uuid.New().String(),
		EventType: event.DepositRegistered,

		Owner: owner,
		Block: currentHeight,

		Amount: pointer.Uint64(amount),
	}

	err = e.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		vaultRecord, err := e.data.GetVault(ctx, owner)
		if err != nil {
			return err
		}

		vaultRecord.Balance += amount
		vaultRecord.TotalDeposits += amount

		if err := e.data.SaveVault(ctx, vaultRecord); err != nil {
			return err
		}

		eventRecord.Balance = pointer.Uint64(vaultRecord.Balance)

		return e.data.PutEvent(ctx, eventRecord)
	})
	if err != nil {
		if err != vault_storage.ErrVaultNotFound {
			log.WithError(err).Warn("failure registering deposit")
		}
		return nil, err
	}

	recordEventMetrics(ctx, eventRecord)

	return eventRecord, nil
}

// UpdateTimelock reconfigures the vault's timelock duration. The new value
// applies to future withdrawal requests only. Outstanding requests keep the
// expiry snapshotted when they were made.
func (e *Engine) UpdateTimelock(ctx context.Context, owner string, newTimelockBlocks uint64) (*event.Record, error) {
	log := e.log.WithFields(logrus.Fields{
		"method":          "UpdateTimelock",
		"owner":           owner,
		"timelock_blocks": newTimelockBlocks,
	})

	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	if err := timelock.ValidateDuration(newTimelockBlocks); err != nil {
		return nil, err
	}

	lock := e.ownerLocks.Get([]byte(owner))
	lock.Lock()
	defer lock.Unlock()

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting current height")
		return nil, err
	}

	eventRecord := &event.Record{
		EventId:   uuid.New().String(),
		EventType: event.TimelockUpdated,

		Owner: owner,
		Block: currentHeight,

		NewTimelockBlocks: pointer.Uint64(newTimelockBlocks),
	}

	err = e.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		vaultRecord, err := e.data.GetVault(ctx, owner)
		if err != nil {
			return err
		}

		eventRecord.OldTimelockBlocks = pointer.Uint64(vaultRecord.TimelockBlocks)

		vaultRecord.TimelockBlocks = newTimelockBlocks

		if err := e.data.SaveVault(ctx, vaultRecord); err != nil {
			return err
		}

		return e.data.PutEvent(ctx, eventRecord)
	})
	if err != nil {
		if err != vault_storage.ErrVaultNotFound {
			log.WithError(err).Warn("failure updating timelock")
		}
		return nil, err
	}

	recordEventMetrics(ctx, eventRecord)

	return eventRecord, nil
}

// RequestWithdrawal creates a pending withdrawal request against the owner's
// vault and returns its request id. Funds are not debited until the request
// executes; the balance is only checked to gate obviously invalid requests,
// and is re-checked at execution time.
//
// The expiry is snapshotted here as the current height plus the vault's
// timelock duration at this moment.
func (e *Engine) RequestWithdrawal(ctx context.Context, owner string, amount uint64, recipient string) (uint64, *event.Record, error) {
	log := e.log.WithFields(logrus.Fields{
		"method": "RequestWithdrawal",
		"owner":  owner,
		"amount": amount,
	})

	if len(owner) == 0 {
		return 0, nil, ErrUnauthorized
	}

	if amount == 0 {
		return 0, nil, ErrInvalidAmount
	}

	if len(recipient) == 0 {
		return 0, nil, ErrInvalidRecipient
	}

	lock := e.ownerLocks.Get([]byte(owner))
	lock.Lock()
	defer lock.Unlock()

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting current height")
		return 0, nil, err
	}

	var requestId uint64
	eventRecord := &event.Record{
		EventId:   uuid.New().String(),
		EventType: event.WithdrawalRequested,

		Owner: owner,
		Block: currentHeight,

		Amount:    pointer.Uint64(amount),
		Recipient: pointer.String(recipient),
	}

	err = e.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		vaultRecord, err := e.data.GetVault(ctx, owner)
		if err != nil {
			return err
		}

		if amount > vaultRecord.Balance {
			return ErrInsufficientBalance
		}

		// The sequence is only advanced once all preconditions have passed,
		// so failed requests never consume an id.
		requestId, err = e.data.GetNextWithdrawalSequence(ctx, owner)
		if err != nil {
			return err
		}

		expiresAtBlock := currentHeight + vaultRecord.TimelockBlocks

		withdrawalRecord := &withdrawal_storage.Record{
			Owner:     owner,
			RequestId: requestId,

			Amount:    amount,
			Recipient: recipient,

			RequestedAtBlock: currentHeight,
			ExpiresAtBlock:   expiresAtBlock,

			Status: withdrawal_storage.StatusPending,
		}

		if err := e.data.CreateWithdrawal(ctx, withdrawalRecord); err != nil {
			return err
		}

		eventRecord.RequestId = pointer.Uint64(requestId)
		eventRecord.ExpiresAtBlock = pointer.Uint64(expiresAtBlock)

		return e.data.PutEvent(ctx, eventRecord)
	})
	if err != nil {
		switch err {
		case vault_storage.ErrVaultNotFound, ErrInsufficientBalance:
		default:
			log.WithError(err).Warn("failure requesting withdrawal")
		}
		return 0, nil, err
	}

	recordEventMetrics(ctx, eventRecord)

	return requestId, eventRecord, nil
}

// CancelWithdrawal cancels a pending withdrawal request. Cancellation is
// terminal; the request id is never reused.
func (e *Engine) CancelWithdrawal(ctx context.Context, owner string, requestId uint64) (*event.Record, error) {
	log := e.log.WithFields(logrus.Fields{
		"method":     "CancelWithdrawal",
		"owner":      owner,
		"request_id": requestId,
	})

	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	lock := e.ownerLocks.Get([]byte(owner))
	lock.Lock()
	defer lock.Unlock()

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting current height")
		return nil, err
	}

	eventRecord := &event.Record{
		EventId:   uuid.New().String(),
		EventType: event.WithdrawalCancelled,

		Owner: owner,
		Block: currentHeight,

		RequestId: pointer.Uint64(requestId),
	}

	err = e.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		withdrawalRecord, err := e.data.GetWithdrawal(ctx, owner, requestId)
		if err != nil {
			return err
		}

		if withdrawalRecord.Status != withdrawal_storage.StatusPending {
			return withdrawal_storage.ErrWithdrawalNotPending
		}

		withdrawalRecord.Status = withdrawal_storage.StatusCancelled

		if err := e.data.UpdateWithdrawal(ctx, withdrawalRecord); err != nil {
			return err
		}

		return e.data.PutEvent(ctx, eventRecord)
	})
	if err != nil {
		switch err {
		case withdrawal_storage.ErrWithdrawalNotFound, withdrawal_storage.ErrWithdrawalNotPending:
		default:
			log.WithError(err).Warn("failure cancelling withdrawal")
		}
		return nil, err
	}

	recordEventMetrics(ctx, eventRecord)

	return eventRecord, nil
}

// ExecuteWithdrawal executes a pending withdrawal request whose waiting
// period has elapsed. A request whose expiry equals the current height is
// executable. The vault balance is re-checked and debited here, atomically
// with the status transition.
func (e *Engine) ExecuteWithdrawal(ctx context.Context, owner string, requestId uint64) (*event.Record, error) {
	log := e.log.WithFields(logrus.Fields{
		"method":     "ExecuteWithdrawal",
		"owner":      owner,
		"request_id": requestId,
	})

	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	lock := e.ownerLocks.Get([]byte(owner))
	lock.Lock()
	defer lock.Unlock()

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("failure getting current height")
		return nil, err
	}

	eventRecord := &event.Record{
		EventId:   uuid.New().String(),
		EventType: event.WithdrawalExecuted,

		Owner: owner,
		Block: currentHeight,

		RequestId: pointer.Uint64(requestId),
	}

	err = e.data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		withdrawalRecord, err := e.data.GetWithdrawal(ctx, owner, requestId)
		if err != nil {
			return err
		}

		if withdrawalRecord.Status != withdrawal_storage.StatusPending {
			return withdrawal_storage.ErrWithdrawalNotPending
		}

		if currentHeight < withdrawalRecord.ExpiresAtBlock {
			return ErrTimelockNotExpired
		}

		vaultRecord, err := e.data.GetVault(ctx, owner)
		if err != nil {
			return err
		}

		if withdrawalRecord.Amount > vaultRecord.Balance {
			return ErrInsufficientBalance
		}

		vaultRecord.Balance -= withdrawalRecord.Amount
		vaultRecord.TotalWithdrawals += withdrawalRecord.Amount

		if err := e.data.SaveVault(ctx, vaultRecord); err != nil {
			return err
		}

		withdrawalRecord.Status = withdrawal_storage.StatusExecuted

		if err := e.data.UpdateWithdrawal(ctx, withdrawalRecord); err != nil {
			return err
		}

		eventRecord.Amount = pointer.Uint64(withdrawalRecord.Amount)
		eventRecord.Balance = pointer.Uint64(vaultRecord.Balance)
		eventRecord.Recipient = pointer.String(withdrawalRecord.Recipient)

		return e.data.PutEvent(ctx, eventRecord)
	})
	if err != nil {
		switch err {
		case withdrawal_storage.ErrWithdrawalNotFound,
			withdrawal_storage.ErrWithdrawalNotPending,
			ErrTimelockNotExpired,
			ErrInsufficientBalance:
		default:
			log.WithError(err).Warn("failure executing withdrawal")
		}
		return nil, err
	}

	recordEventMetrics(ctx, eventRecord)

	return eventRecord, nil
}

func recordEventMetrics(ctx context.Context, record *event.Record) {
	kvs := map[string]interface{}{
		"owner": record.Owner,
		"block": record.Block,
	}
	if record.Amount != nil {
		kvs["amount"] = *record.Amount
	}
	if record.RequestId != nil {
		kvs["request_id"] = *record.RequestId
	}

	metrics.RecordEvent(ctx, record.EventType.String(), kvs)
}
