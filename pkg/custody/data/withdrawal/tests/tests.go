package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

func RunTests(t *testing.T, s withdrawal.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s withdrawal.Store){
		testHappyPath,
		testPutDuplicate,
		testTerminalStatus,
		testSequence,
		testGetAllByOwner,
		testGetCountByStatus,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s withdrawal.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		start := time.Now()

		ctx := context.Background()

		expected := &withdrawal.Record{
			Owner:     "owner",
			RequestId: 1,

			Amount:    400,
			Recipient: "bc1q0000000000000000000000000000000000000000",

			RequestedAtBlock: 800000,
			ExpiresAtBlock:   800144,

			Status: withdrawal.StatusPending,
		}
		cloned := expected.Clone()

		// Validate the record initially doesn't exist

		_, err := s.Get(ctx, expected.Owner, expected.RequestId)
		assert.Equal(t, withdrawal.ErrWithdrawalNotFound, err)

		// Create the record

		require.NoError(t, s.Put(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.True(t, expected.CreatedAt.After(start))

		actual, err := s.Get(ctx, expected.Owner, expected.RequestId)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)

		// Finalize the record

		expected.Status = withdrawal.StatusExecuted
		cloned = expected.Clone()

		time.Sleep(time.Millisecond)
		require.NoError(t, s.Update(ctx, expected))
		assert.True(t, expected.LastUpdatedAt.After(expected.CreatedAt))

		actual, err = s.Get(ctx, expected.Owner, expected.RequestId)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
	})
}

func testPutDuplicate(t *testing.T, s withdrawal.Store) {
	t.Run("testPutDuplicate", func(t *testing.T) {
		ctx := context.Background()

		record := &withdrawal.Record{
			Owner:     "owner",
			RequestId: 1,

			Amount:    400,
			Recipient: "recipient",

			RequestedAtBlock: 800000,
			ExpiresAtBlock:   800144,

			Status: withdrawal.StatusPending,
		}
		require.NoError(t, s.Put(ctx, record))

		duplicate := record.Clone()
		duplicate.Id = 0
		duplicate.Amount = 500
		assert.Equal(t, withdrawal.ErrWithdrawalAlreadyExists, s.Put(ctx, duplicate))

		// The same request id under a different owner is a separate record

		otherOwner := record.Clone()
		otherOwner.Id = 0
		otherOwner.Owner = "other"
		require.NoError(t, s.Put(ctx, otherOwner))
	})
}

func testTerminalStatus(t *testing.T, s withdrawal.Store) {
	t.Run("testTerminalStatus", func(t *testing.T) {
		ctx := context.Background()

		missing := &withdrawal.Record{
			Owner:     "owner",
			RequestId: 42,

			Amount:    400,
			Recipient: "recipient",

			Status: withdrawal.StatusCancelled,
		}
		assert.Equal(t, withdrawal.ErrWithdrawalNotFound, s.Update(ctx, missing))

		record := &withdrawal.Record{
			Owner:     "owner",
			RequestId: 1,

			Amount:    400,
			Recipient: "recipient",

			RequestedAtBlock: 800000,
			ExpiresAtBlock:   800144,

			Status: withdrawal.StatusPending,
		}
		require.NoError(t, s.Put(ctx, record))

		record.Status = withdrawal.StatusCancelled
		require.NoError(t, s.Update(ctx, record))

		// Once terminal, the status can never be rewritten

		record.Status = withdrawal.StatusExecuted
		assert.Equal(t, withdrawal.ErrWithdrawalNotPending, s.Update(ctx, record))

		record.Status = withdrawal.StatusCancelled
		assert.Equal(t, withdrawal.ErrWithdrawalNotPending, s.Update(ctx, record))

		actual, err := s.Get(ctx, record.Owner, record.RequestId)
		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusCancelled, actual.Status)
	})
}

func testSequence(t *testing.T, s withdrawal.Store) {
	t.Run("testSequence", func(t *testing.T) {
		ctx := context.Background()

		// Counters default to 0 before any request id is issued

		value, err := s.GetSequence(ctx, "owner")
		require.NoError(t, err)
		assert.EqualValues(t, 0, value)

		// Ids are dense and strictly increasing starting at 1

		for i := 1; i <= 10; i++ {
			value, err = s.NextSequence(ctx, "owner")
			require.NoError(t, err)
			assert.EqualValues(t, i, value)

			value, err = s.GetSequence(ctx, "owner")
			require.NoError(t, err)
			assert.EqualValues(t, i, value)
		}

		// Counters are per owner

		value, err = s.NextSequence(ctx, "other")
		require.NoError(t, err)
		assert.EqualValues(t, 1, value)

		value, err = s.GetSequence(ctx, "owner")
		require.NoError(t, err)
		assert.EqualValues(t, 10, value)
	})
}

func testGetAllByOwner(t *testing.T, s withdrawal.Store) {
	t.Run("testGetAllByOwner", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByOwner(ctx, "owner", query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, withdrawal.ErrWithdrawalNotFound, err)

		var expected []*withdrawal.Record
		for i := 0; i < 25; i++ {
			record := &withdrawal.Record{
				Owner:     "owner",
				RequestId: uint64(i + 1),

				Amount:    uint64(100 * (i + 1)),
				Recipient: fmt.Sprintf("recipient%d", i),

				RequestedAtBlock: uint64(800000 + i),
				ExpiresAtBlock:   uint64(800144 + i),

				Status: withdrawal.StatusPending,
			}

			require.NoError(t, s.Put(ctx, record))

			expected = append(expected, record.Clone())
		}

		other := &withdrawal.Record{
			Owner:     "other",
			RequestId: 1,

			Amount:    100,
			Recipient: "recipient",

			RequestedAtBlock: 800000,
			ExpiresAtBlock:   800144,

			Status: withdrawal.StatusPending,
		}
		require.NoError(t, s.Put(ctx, other))

		var cursor query.Cursor
		var actual []*withdrawal.Record
		for {
			records, err := s.GetAllByOwner(ctx, "owner", cursor, 10, query.Ascending)
			if err == withdrawal.ErrWithdrawalNotFound {
				break
			}
			require.NoError(t, err)

			actual = append(actual, records...)
			cursor = query.ToCursor(records[len(records)-1].Id)
		}

		require.Len(t, actual, 25)
		for i, record := range expected {
			assertEquivalentRecords(t, record, actual[i])
		}

		records, err := s.GetAllByOwner(ctx, "owner", query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, records, 10)
		assertEquivalentRecords(t, expected[len(expected)-1], records[0])
	})
}

func testGetCountByStatus(t *testing.T, s withdrawal.Store) {
	t.Run("testGetCountByStatus", func(t *testing.T) {
		ctx := context.Background()

		for _, status := range []withdrawal.Status{
			withdrawal.StatusPending,
			withdrawal.StatusCancelled,
			withdrawal.StatusExecuted,
		} {
			for i := 0; i < int(status); i++ {
				record := &withdrawal.Record{
					Owner:     fmt.Sprintf("owner-%s", status),
					RequestId: uint64(i + 1),

					Amount:    400,
					Recipient: "recipient",

					RequestedAtBlock: 800000,
					ExpiresAtBlock:   800144,

					Status: status,
				}

				require.NoError(t, s.Put(ctx, record))
			}

			count, err := s.GetCountByStatus(ctx, status)
			require.NoError(t, err)
			assert.EqualValues(t, status, count)
		}
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *withdrawal.Record) {
	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.RequestId, obj2.RequestId)

	assert.Equal(t, obj1.Amount, obj2.Amount)
	assert.Equal(t, obj1.Recipient, obj2.Recipient)

	assert.Equal(t, obj1.RequestedAtBlock, obj2.RequestedAtBlock)
	assert.Equal(t, obj1.ExpiresAtBlock, obj2.ExpiresAtBlock)

	assert.Equal(t, obj1.Status, obj2.Status)
}
