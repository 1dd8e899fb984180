package memory

import (
	"context"
	"sync"
	"time"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault"
)

type store struct {
	mu      sync.Mutex
	records []*vault.Record
	last    uint64
}

// New returns a new in memory vault.Store
func New() vault.Store {
	return &store{}
}

// Put implements vault.Store.Put
func (s *store) Put(_ context.Context, data *vault.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByOwner(data.Owner); item != nil {
		return vault.ErrVaultAlreadyExists
	}

	s.last++
	data.Id = s.last
	data.Version = 0
	data.LastUpdatedAt = time.Now()

	s.records = append(s.records, data.Clone())

	return nil
}

// Get implements vault.Store.Get
func (s *store) Get(_ context.Context, owner string) (*vault.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findByOwner(owner); item != nil {
		return item.Clone(), nil
	}
	return nil, vault.ErrVaultNotFound
}

// Save implements vault.Store.Save
func (s *store) Save(_ context.Context, data *vault.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByOwner(data.Owner)
	if item == nil {
		return vault.ErrVaultNotFound
	}

	if data.Version != item.Version {
		return vault.ErrStaleVault
	}

	item.Balance = data.Balance
	item.TimelockBlocks = data.TimelockBlocks
	item.TotalDeposits = data.TotalDeposits
	item.TotalWithdrawals = data.TotalWithdrawals

	item.Version++
	item.LastUpdatedAt = time.Now()

	item.CopyTo(data)

	return nil
}

// Count implements vault.Store.Count
func (s *store) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}

func (s *store) findByOwner(owner string) *vault.Record {
	for _, item := range s.records {
		if owner == item.Owner {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.last = 0
}
