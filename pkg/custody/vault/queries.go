package vault

import (
	"context"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"

	vault_storage "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
	withdrawal_storage "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
)

// GetVault gets the owner's vault record
func (e *Engine) GetVault(ctx context.Context, owner string) (*vault_storage.Record, error) {
	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	return e.data.GetVault(ctx, owner)
}

// GetBalance gets the owner's current vault balance in sats
func (e *Engine) GetBalance(ctx context.Context, owner string) (uint64, error) {
	vaultRecord, err := e.GetVault(ctx, owner)
	if err != nil {
		return 0, err
	}

	return vaultRecord.Balance, nil
}

// GetVaultCount gets the total number of vaults ever created
func (e *Engine) GetVaultCount(ctx context.Context) (uint64, error) {
	return e.data.GetVaultCount(ctx)
}

// GetWithdrawal gets one of the owner's withdrawal requests by its request id
func (e *Engine) GetWithdrawal(ctx context.Context, owner string, requestId uint64) (*withdrawal_storage.Record, error) {
	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	return e.data.GetWithdrawal(ctx, owner, requestId)
}

// GetAllWithdrawals gets all of the owner's withdrawal requests
func (e *Engine) GetAllWithdrawals(ctx context.Context, owner string, opts ...query.Option) ([]*withdrawal_storage.Record, error) {
	if len(owner) == 0 {
		return nil, ErrUnauthorized
	}

	return e.data.GetAllWithdrawalsByOwner(ctx, owner, opts...)
}

// GetWithdrawalSequence gets the highest request id issued to the owner, or
// 0 if none have been issued
func (e *Engine) GetWithdrawalSequence(ctx context.Context, owner string) (uint64, error) {
	if len(owner) == 0 {
		return 0, ErrUnauthorized
	}

	return e.data.GetWithdrawalSequence(ctx, owner)
}

// IsWithdrawalReady returns whether the withdrawal request is pending and its
// waiting period has elapsed at the current height. Requests that don't exist
// aren't ready.
func (e *Engine) IsWithdrawalReady(ctx context.Context, owner string, requestId uint64) (bool, error) {
	if len(owner) == 0 {
		return false, ErrUnauthorized
	}

	withdrawalRecord, err := e.data.GetWithdrawal(ctx, owner, requestId)
	if err == withdrawal_storage.ErrWithdrawalNotFound {
		return false, nil
	} else if err != nil {
		return false, err
	}

	if withdrawalRecord.Status != withdrawal_storage.StatusPending {
		return false, nil
	}

	currentHeight, err := e.heights.GetCurrentHeight(ctx)
	if err != nil {
		return false, err
	}

	return currentHeight >= withdrawalRecord.ExpiresAtBlock, nil
}

// GetAllEvents gets journal records for draining by external observers
func (e *Engine) GetAllEvents(ctx context.Context, opts ...query.Option) ([]*event.Record, error) {
	return e.data.GetAllEvents(ctx, opts...)
}
