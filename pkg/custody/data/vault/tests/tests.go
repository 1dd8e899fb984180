package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/timelock"
)

func RunTests(t *testing.T, s vault.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s vault.Store){
		testHappyPath,
		testPutDuplicate,
		testOptimisticSave,
		testCount,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s vault.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		start := time.Now()

		ctx := context.Background()

		expected := &vault.Record{
			Owner:          "owner",
			TimelockBlocks: timelock.DefaultTimelockBlocks,
			CreatedAtBlock: 800000,
		}
		cloned := expected.Clone()

		// Validate the record initially doesn't exist

		_, err := s.Get(ctx, expected.Owner)
		assert.Equal(t, vault.ErrVaultNotFound, err)

		// Create the record

		require.NoError(t, s.Put(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.EqualValues(t, 0, expected.Version)
		assert.True(t, expected.LastUpdatedAt.After(start))

		actual, err := s.Get(ctx, expected.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)

		// Register a deposit and save

		previousLastUpdatedTs := expected.LastUpdatedAt

		expected.Balance += 1000
		expected.TotalDeposits += 1000

		cloned = expected.Clone()
		time.Sleep(time.Millisecond)
		require.NoError(t, s.Save(ctx, expected))
		assert.EqualValues(t, 1, expected.Version)
		assert.True(t, expected.LastUpdatedAt.After(previousLastUpdatedTs))

		actual, err = s.Get(ctx, expected.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.EqualValues(t, 1, actual.Version)

		// Execute a withdrawal and save

		expected.Balance -= 400
		expected.TotalWithdrawals += 400

		cloned = expected.Clone()
		require.NoError(t, s.Save(ctx, expected))
		assert.EqualValues(t, 2, expected.Version)

		actual, err = s.Get(ctx, expected.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
	})
}

func testPutDuplicate(t *testing.T, s vault.Store) {
	t.Run("testPutDuplicate", func(t *testing.T) {
		ctx := context.Background()

		record := &vault.Record{
			Owner:          "owner",
			TimelockBlocks: timelock.MinTimelockBlocks,
			CreatedAtBlock: 800000,
		}
		require.NoError(t, s.Put(ctx, record))

		// A second vault for the same owner is always rejected, regardless
		// of its configuration
		duplicate := &vault.Record{
			Owner:          "owner",
			TimelockBlocks: timelock.MaxTimelockBlocks,
			CreatedAtBlock: 800500,
		}
		assert.Equal(t, vault.ErrVaultAlreadyExists, s.Put(ctx, duplicate))

		actual, err := s.Get(ctx, record.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, record, actual)
	})
}

func testOptimisticSave(t *testing.T, s vault.Store) {
	t.Run("testOptimisticSave", func(t *testing.T) {
		ctx := context.Background()

		missing := &vault.Record{
			Owner:          "missing",
			TimelockBlocks: timelock.DefaultTimelockBlocks,
		}
		assert.Equal(t, vault.ErrVaultNotFound, s.Save(ctx, missing))

		record := &vault.Record{
			Owner:          "owner",
			TimelockBlocks: timelock.DefaultTimelockBlocks,
			CreatedAtBlock: 800000,
		}
		require.NoError(t, s.Put(ctx, record))

		stale := record.Clone()

		record.Balance += 100
		record.TotalDeposits += 100
		require.NoError(t, s.Save(ctx, record))

		// The losing writer observes a stale version and fails closed

		stale.Balance += 500
		stale.TotalDeposits += 500
		assert.Equal(t, vault.ErrStaleVault, s.Save(ctx, stale))

		actual, err := s.Get(ctx, record.Owner)
		require.NoError(t, err)
		assertEquivalentRecords(t, record, actual)
	})
}

func testCount(t *testing.T, s vault.Store) {
	t.Run("testCount", func(t *testing.T) {
		ctx := context.Background()

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		for i := 0; i < 10; i++ {
			record := &vault.Record{
				Owner:          fmt.Sprintf("owner%d", i),
				TimelockBlocks: timelock.DefaultTimelockBlocks,
				CreatedAtBlock: uint64(800000 + i),
			}
			require.NoError(t, s.Put(ctx, record))

			count, err = s.Count(ctx)
			require.NoError(t, err)
			assert.EqualValues(t, i+1, count)
		}
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *vault.Record) {
	assert.Equal(t, obj1.Owner, obj2.Owner)

	assert.Equal(t, obj1.Balance, obj2.Balance)

	assert.Equal(t, obj1.TimelockBlocks, obj2.TimelockBlocks)
	assert.Equal(t, obj1.CreatedAtBlock, obj2.CreatedAtBlock)

	assert.Equal(t, obj1.TotalDeposits, obj2.TotalDeposits)
	assert.Equal(t, obj1.TotalWithdrawals, obj2.TotalWithdrawals)
}
