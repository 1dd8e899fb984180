package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/pointer"
)

func RunTests(t *testing.T, s event.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s event.Store){
		testRoundTrip,
		testGetAllPaged,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s event.Store) {
	t.Run("testRoundTrip", func(t *testing.T) {
		start := time.Now()

		ctx := context.Background()

		_, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, event.ErrEventNotFound, err)

		expected := &event.Record{
			EventId:   "9b38e971-8a1b-4e32-90d7-5f52a25be9b1",
			EventType: event.WithdrawalRequested,

			Owner: "owner",
			Block: 800000,

			Amount:         pointer.Uint64(400),
			RequestId:      pointer.Uint64(1),
			Recipient:      pointer.String("bc1q0000000000000000000000000000000000000000"),
			ExpiresAtBlock: pointer.Uint64(800144),
		}
		cloned := expected.Clone()

		require.NoError(t, s.Put(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.True(t, expected.CreatedAt.After(start))

		records, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assertEquivalentRecords(t, cloned, records[0])
	})
}

func testGetAllPaged(t *testing.T, s event.Store) {
	t.Run("testGetAllPaged", func(t *testing.T) {
		ctx := context.Background()

		var expected []*event.Record
		for i := 0; i < 25; i++ {
			record := &event.Record{
				EventId:   fmt.Sprintf("event%d", i),
				EventType: event.DepositRegistered,

				Owner: "owner",
				Block: uint64(800000 + i),

				Amount:  pointer.Uint64(100),
				Balance: pointer.Uint64(uint64(100 * (i + 1))),
			}

			require.NoError(t, s.Put(ctx, record))

			expected = append(expected, record.Clone())
		}

		var cursor query.Cursor
		var actual []*event.Record
		for {
			records, err := s.GetAll(ctx, cursor, 10, query.Ascending)
			if err == event.ErrEventNotFound {
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

		records, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Descending)
		require.NoError(t, err)
		require.Len(t, records, 10)
		assertEquivalentRecords(t, expected[len(expected)-1], records[0])
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *event.Record) {
	assert.Equal(t, obj1.EventId, obj2.EventId)
	assert.Equal(t, obj1.EventType, obj2.EventType)

	assert.Equal(t, obj1.Owner, obj2.Owner)
	assert.Equal(t, obj1.Block, obj2.Block)

	assert.Equal(t, obj1.Amount, obj2.Amount)
	assert.Equal(t, obj1.Balance, obj2.Balance)
	assert.Equal(t, obj1.RequestId, obj2.RequestId)
	assert.Equal(t, obj1.Recipient, obj2.Recipient)
	assert.Equal(t, obj1.ExpiresAtBlock, obj2.ExpiresAtBlock)
	assert.Equal(t, obj1.OldTimelockBlocks, obj2.OldTimelockBlocks)
	assert.Equal(t, obj1.NewTimelockBlocks, obj2.NewTimelockBlocks)
}
