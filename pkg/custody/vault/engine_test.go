package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/height"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/timelock"

	vault_storage "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
	withdrawal_storage "github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
)

const (
	testOwner     = "owner"
	testRecipient = "bc1q0000000000000000000000000000000000000000"

	testStartHeight = 800000
)

type testEnv struct {
	ctx     context.Context
	data    data.Provider
	heights *height.ManualSource
	engine  *Engine
}

func setup(t *testing.T) *testEnv {
	dataProvider := data.NewTestDataProvider()
	heights := height.NewManualSource(testStartHeight)

	return &testEnv{
		ctx:     context.Background(),
		data:    dataProvider,
		heights: heights,
		engine:  NewEngine(dataProvider, heights),
	}
}

func TestCreateVault_HappyPath(t *testing.T) {
	env := setup(t)

	eventRecord, err := env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)
	require.NotNil(t, eventRecord)
	assert.NotEmpty(t, eventRecord.EventId)
	assert.Equal(t, event.VaultCreated, eventRecord.EventType)
	assert.Equal(t, testOwner, eventRecord.Owner)
	assert.EqualValues(t, testStartHeight, eventRecord.Block)
	require.NotNil(t, eventRecord.NewTimelockBlocks)
	assert.EqualValues(t, 144, *eventRecord.NewTimelockBlocks)

	vaultRecord, err := env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 0, vaultRecord.Balance)
	assert.EqualValues(t, 144, vaultRecord.TimelockBlocks)
	assert.EqualValues(t, testStartHeight, vaultRecord.CreatedAtBlock)
	assert.EqualValues(t, 0, vaultRecord.TotalDeposits)
	assert.EqualValues(t, 0, vaultRecord.TotalWithdrawals)

	count, err := env.engine.GetVaultCount(env.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreateVault_Duplicate(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.CreateVault(env.ctx, testOwner, 288)
	assert.Equal(t, vault_storage.ErrVaultAlreadyExists, err)

	// The original configuration is untouched

	vaultRecord, err := env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 144, vaultRecord.TimelockBlocks)
}

func TestCreateVault_DefaultTimelock(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, testOwner, 0)
	require.NoError(t, err)

	vaultRecord, err := env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, timelock.DefaultTimelockBlocks, vaultRecord.TimelockBlocks)
}

func TestCreateVault_InvalidTimelock(t *testing.T) {
	env := setup(t)

	for _, blocks := range []uint64{1, 143, 1009, 100000} {
		_, err := env.engine.CreateVault(env.ctx, testOwner, blocks)
		assert.Equal(t, timelock.ErrInvalidTimelock, err)
	}

	_, err := env.engine.GetVault(env.ctx, testOwner)
	assert.Equal(t, vault_storage.ErrVaultNotFound, err)
}

func TestRegisterDeposit(t *testing.T) {
	env := setup(t)

	_, err := env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	assert.Equal(t, vault_storage.ErrVaultNotFound, err)

	_, err = env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 0)
	assert.Equal(t, ErrInvalidAmount, err)

	eventRecord, err := env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	require.NoError(t, err)
	assert.Equal(t, event.DepositRegistered, eventRecord.EventType)
	require.NotNil(t, eventRecord.Amount)
	require.NotNil(t, eventRecord.Balance)
	assert.EqualValues(t, 1000, *eventRecord.Amount)
	assert.EqualValues(t, 1000, *eventRecord.Balance)

	eventRecord, err = env.engine.RegisterDeposit(env.ctx, testOwner, 500)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, *eventRecord.Balance)

	vaultRecord, err := env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, vaultRecord.Balance)
	assert.EqualValues(t, 1500, vaultRecord.TotalDeposits)
	assert.EqualValues(t, 0, vaultRecord.TotalWithdrawals)
}

func TestUpdateTimelock(t *testing.T) {
	env := setup(t)

	_, err := env.engine.UpdateTimelock(env.ctx, testOwner, 288)
	assert.Equal(t, vault_storage.ErrVaultNotFound, err)

	_, err = env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	// Out of range durations are rejected without touching the vault

	_, err = env.engine.UpdateTimelock(env.ctx, testOwner, 100)
	assert.Equal(t, timelock.ErrInvalidTimelock, err)

	vaultRecord, err := env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 144, vaultRecord.TimelockBlocks)

	eventRecord, err := env.engine.UpdateTimelock(env.ctx, testOwner, 1008)
	require.NoError(t, err)
	assert.Equal(t, event.TimelockUpdated, eventRecord.EventType)
	require.NotNil(t, eventRecord.OldTimelockBlocks)
	require.NotNil(t, eventRecord.NewTimelockBlocks)
	assert.EqualValues(t, 144, *eventRecord.OldTimelockBlocks)
	assert.EqualValues(t, 1008, *eventRecord.NewTimelockBlocks)

	vaultRecord, err = env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 1008, vaultRecord.TimelockBlocks)
}

func TestWithdrawalLifecycle(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	require.NoError(t, err)

	// Two outstanding requests against the same balance

	requestId1, eventRecord, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)
	assert.EqualValues(t, 1, requestId1)
	assert.Equal(t, event.WithdrawalRequested, eventRecord.EventType)
	require.NotNil(t, eventRecord.ExpiresAtBlock)
	assert.EqualValues(t, testStartHeight+144, *eventRecord.ExpiresAtBlock)

	requestId2, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)
	assert.EqualValues(t, 2, requestId2)

	// Nothing is debited at request time

	balance, err := env.engine.GetBalance(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, balance)

	// Execution before the waiting period elapses fails

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId1)
	assert.Equal(t, ErrTimelockNotExpired, err)

	env.heights.Advance(143)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId1)
	assert.Equal(t, ErrTimelockNotExpired, err)

	ready, err := env.engine.IsWithdrawalReady(env.ctx, testOwner, requestId1)
	require.NoError(t, err)
	assert.False(t, ready)

	// A request whose expiry equals the current height is executable

	env.heights.Advance(1)

	ready, err = env.engine.IsWithdrawalReady(env.ctx, testOwner, requestId1)
	require.NoError(t, err)
	assert.True(t, ready)

	eventRecord, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId1)
	require.NoError(t, err)
	assert.Equal(t, event.WithdrawalExecuted, eventRecord.EventType)
	require.NotNil(t, eventRecord.Balance)
	assert.EqualValues(t, 600, *eventRecord.Balance)
	require.NotNil(t, eventRecord.Recipient)
	assert.Equal(t, testRecipient, *eventRecord.Recipient)

	// Terminal requests can never be executed again

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId1)
	assert.Equal(t, withdrawal_storage.ErrWithdrawalNotPending, err)

	eventRecord, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId2)
	require.NoError(t, err)
	assert.EqualValues(t, 200, *eventRecord.Balance)

	vaultRecord, err := env.engine.GetVault(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 200, vaultRecord.Balance)
	assert.EqualValues(t, 1000, vaultRecord.TotalDeposits)
	assert.EqualValues(t, 800, vaultRecord.TotalWithdrawals)
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	env := setup(t)

	_, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	assert.Equal(t, vault_storage.ErrVaultNotFound, err)

	_, err = env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, _, err = env.engine.RequestWithdrawal(env.ctx, testOwner, 0, testRecipient)
	assert.Equal(t, ErrInvalidAmount, err)

	_, _, err = env.engine.RequestWithdrawal(env.ctx, testOwner, 400, "")
	assert.Equal(t, ErrInvalidRecipient, err)

	// Requests exceeding the balance leave no record and never consume an id

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 100)
	require.NoError(t, err)

	_, _, err = env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	assert.Equal(t, ErrInsufficientBalance, err)

	sequence, err := env.engine.GetWithdrawalSequence(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 0, sequence)

	_, err = env.engine.GetWithdrawal(env.ctx, testOwner, 1)
	assert.Equal(t, withdrawal_storage.ErrWithdrawalNotFound, err)

	requestId, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 100, testRecipient)
	require.NoError(t, err)
	assert.EqualValues(t, 1, requestId)
}

func TestCancelWithdrawal(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CancelWithdrawal(env.ctx, testOwner, 1)
	assert.Equal(t, withdrawal_storage.ErrWithdrawalNotFound, err)

	_, err = env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	require.NoError(t, err)

	requestId, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)

	eventRecord, err := env.engine.CancelWithdrawal(env.ctx, testOwner, requestId)
	require.NoError(t, err)
	assert.Equal(t, event.WithdrawalCancelled, eventRecord.EventType)

	// Cancellation is terminal, even after the waiting period elapses

	env.heights.Advance(144)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId)
	assert.Equal(t, withdrawal_storage.ErrWithdrawalNotPending, err)

	_, err = env.engine.CancelWithdrawal(env.ctx, testOwner, requestId)
	assert.Equal(t, withdrawal_storage.ErrWithdrawalNotPending, err)

	ready, err := env.engine.IsWithdrawalReady(env.ctx, testOwner, requestId)
	require.NoError(t, err)
	assert.False(t, ready)

	// The cancelled request's id is never reused

	nextRequestId, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)
	assert.EqualValues(t, 2, nextRequestId)

	// Cancellation never moves funds

	balance, err := env.engine.GetBalance(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, balance)
}

func TestTimelockSnapshot(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	require.NoError(t, err)

	requestId, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)

	// Reconfiguring the vault never touches outstanding requests

	_, err = env.engine.UpdateTimelock(env.ctx, testOwner, 1008)
	require.NoError(t, err)

	withdrawalRecord, err := env.engine.GetWithdrawal(env.ctx, testOwner, requestId)
	require.NoError(t, err)
	assert.EqualValues(t, testStartHeight+144, withdrawalRecord.ExpiresAtBlock)

	env.heights.Advance(144)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId)
	require.NoError(t, err)

	// New requests snapshot the new duration

	nextRequestId, eventRecord, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)
	require.NotNil(t, eventRecord.ExpiresAtBlock)
	assert.EqualValues(t, testStartHeight+144+1008, *eventRecord.ExpiresAtBlock)

	env.heights.Advance(144)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, nextRequestId)
	assert.Equal(t, ErrTimelockNotExpired, err)
}

func TestExecuteWithdrawal_InsufficientBalanceAtExecution(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	require.NoError(t, err)

	// Both requests pass the balance check at request time

	requestId1, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 700, testRecipient)
	require.NoError(t, err)

	requestId2, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 700, testRecipient)
	require.NoError(t, err)

	env.heights.Advance(144)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId1)
	require.NoError(t, err)

	// The second can no longer be covered and stays pending

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId2)
	assert.Equal(t, ErrInsufficientBalance, err)

	withdrawalRecord, err := env.engine.GetWithdrawal(env.ctx, testOwner, requestId2)
	require.NoError(t, err)
	assert.Equal(t, withdrawal_storage.StatusPending, withdrawalRecord.Status)

	// A later deposit makes it executable again

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 400)
	require.NoError(t, err)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, testOwner, requestId2)
	require.NoError(t, err)

	balance, err := env.engine.GetBalance(env.ctx, testOwner)
	require.NoError(t, err)
	assert.EqualValues(t, 0, balance)
}

func TestUnauthorized(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, "", 144)
	assert.Equal(t, ErrUnauthorized, err)

	_, err = env.engine.RegisterDeposit(env.ctx, "", 100)
	assert.Equal(t, ErrUnauthorized, err)

	_, err = env.engine.UpdateTimelock(env.ctx, "", 288)
	assert.Equal(t, ErrUnauthorized, err)

	_, _, err = env.engine.RequestWithdrawal(env.ctx, "", 100, testRecipient)
	assert.Equal(t, ErrUnauthorized, err)

	_, err = env.engine.CancelWithdrawal(env.ctx, "", 1)
	assert.Equal(t, ErrUnauthorized, err)

	_, err = env.engine.ExecuteWithdrawal(env.ctx, "", 1)
	assert.Equal(t, ErrUnauthorized, err)

	_, err = env.engine.GetVault(env.ctx, "")
	assert.Equal(t, ErrUnauthorized, err)
}

func TestEventJournal(t *testing.T) {
	env := setup(t)

	_, err := env.engine.CreateVault(env.ctx, testOwner, 144)
	require.NoError(t, err)

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 1000)
	require.NoError(t, err)

	requestId, _, err := env.engine.RequestWithdrawal(env.ctx, testOwner, 400, testRecipient)
	require.NoError(t, err)

	_, err = env.engine.CancelWithdrawal(env.ctx, testOwner, requestId)
	require.NoError(t, err)

	// One journal record per successful mutation, in operation order

	records, err := env.engine.GetAllEvents(env.ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, event.VaultCreated, records[0].EventType)
	assert.Equal(t, event.DepositRegistered, records[1].EventType)
	assert.Equal(t, event.WithdrawalRequested, records[2].EventType)
	assert.Equal(t, event.WithdrawalCancelled, records[3].EventType)

	// Failed operations journal nothing

	_, err = env.engine.RegisterDeposit(env.ctx, testOwner, 0)
	assert.Equal(t, ErrInvalidAmount, err)

	records, err = env.engine.GetAllEvents(env.ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)
}
