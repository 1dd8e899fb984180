// Package height abstracts the source of the current ledger height used for
// all timelock comparisons. The height is a monotonically non-decreasing
// external clock; the custody core samples it exactly once per operation and
// never advances it itself.
package height

import (
	"context"
	"sync"
)

// Source provides the current ledger height.
type Source interface {
	GetCurrentHeight(ctx context.Context) (uint64, error)
}

// ManualSource is a Source whose height is advanced explicitly by the caller.
// It's primarily useful in tests, where block production is simulated.
type ManualSource struct {
	mu     sync.RWMutex
	height uint64
}

// NewManualSource returns a ManualSource starting at the provided height.
func NewManualSource(initial uint64) *ManualSource {
	return &ManualSource{
		height: initial,
	}
}

// GetCurrentHeight implements Source.GetCurrentHeight
func (s *ManualSource) GetCurrentHeight(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.height, nil
}

// Advance moves the height forward by the provided number of blocks.
func (s *ManualSource) Advance(blocks uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.height += blocks
}

// SetHeight sets the height. Values below the current height are ignored,
// preserving monotonicity.
func (s *ManualSource) SetHeight(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if height > s.height {
		s.height = height
	}
}
