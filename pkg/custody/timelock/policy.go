package timelock

import (
	"github.com/pkg/errors"
)

const (
	// MinTimelockBlocks is the shortest withdrawal delay a vault may be
	// configured with (roughly one day of Bitcoin blocks).
	MinTimelockBlocks uint64 = 144

	// MaxTimelockBlocks is the longest withdrawal delay a vault may be
	// configured with (roughly one week of Bitcoin blocks).
	MaxTimelockBlocks uint64 = 1008

	// DefaultTimelockBlocks is the suggested withdrawal delay for new vaults.
	// It is a caller-facing suggestion only and is never enforced.
	DefaultTimelockBlocks uint64 = 288
)

var (
	ErrInvalidTimelock = errors.New("timelock duration is out of bounds")
)

// IsValidDuration returns whether the provided delay, in blocks, is within
// the allowed [MinTimelockBlocks, MaxTimelockBlocks] range.
func IsValidDuration(blocks uint64) bool {
	return blocks >= MinTimelockBlocks && blocks <= MaxTimelockBlocks
}

// ValidateDuration returns ErrInvalidTimelock when the provided delay is
// outside the allowed range.
func ValidateDuration(blocks uint64) error {
	if !IsValidDuration(blocks) {
		return ErrInvalidTimelock
	}
	return nil
}
