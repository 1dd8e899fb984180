package timelock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDuration(t *testing.T) {
	for _, blocks := range []uint64{
		MinTimelockBlocks,
		DefaultTimelockBlocks,
		MaxTimelockBlocks,
	} {
		assert.True(t, IsValidDuration(blocks))
		assert.NoError(t, ValidateDuration(blocks))
	}

	for _, blocks := range []uint64{
		0,
		1,
		MinTimelockBlocks - 1,
		MaxTimelockBlocks + 1,
		10 * MaxTimelockBlocks,
	} {
		assert.False(t, IsValidDuration(blocks))
		assert.Equal(t, ErrInvalidTimelock, ValidateDuration(blocks))
	}
}
