package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/withdrawal"
	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/database/query"
)

type store struct {
	mu       sync.Mutex
	records  []*withdrawal.Record
	counters map[string]uint64
	last     uint64
}

type ById []*withdrawal.Record

func (a ById) Len() int           { return len(a) }
func (a ById) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ById) Less(i, j int) bool { return a[i].Id < a[j].Id }

// New returns a new in memory withdrawal.Store
func New() withdrawal.Store {
	return &store{
		counters: make(map[string]uint64),
	}
}

// Put implements withdrawal.Store.Put
func (s *store) Put(_ context.Context, data *withdrawal.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.find(data.Owner, data.RequestId); item != nil {
		return withdrawal.ErrWithdrawalAlreadyExists
	}

	s.last++
	data.Id = s.last
	data.CreatedAt = time.Now()
	data.LastUpdatedAt = data.CreatedAt

	s.records = append(s.records, data.Clone())

	return nil
}

// Get implements withdrawal.Store.Get
func (s *store) Get(_ context.Context, owner string, requestId uint64) (*withdrawal.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.find(owner, requestId); item != nil {
		return item.Clone(), nil
	}
	return nil, withdrawal.ErrWithdrawalNotFound
}

// Update implements withdrawal.Store.Update
func (s *store) Update(_ context.Context, data *withdrawal.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(data.Owner, data.RequestId)
	if item == nil {
		return withdrawal.ErrWithdrawalNotFound
	}

	if item.Status != withdrawal.StatusPending {
		return withdrawal.ErrWithdrawalNotPending
	}

	item.Status = data.Status
	item.LastUpdatedAt = time.Now()

	item.CopyTo(data)

	return nil
}

// GetAllByOwner implements withdrawal.Store.GetAllByOwner
func (s *store) GetAllByOwner(_ context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*withdrawal.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if items := s.findByOwner(owner); len(items) > 0 {
		res := s.filter(items, cursor, limit, direction)

		if len(res) == 0 {
			return nil, withdrawal.ErrWithdrawalNotFound
		}

		return res, nil
	}

	return nil, withdrawal.ErrWithdrawalNotFound
}

// GetCountByStatus implements withdrawal.Store.GetCountByStatus
func (s *store) GetCountByStatus(_ context.Context, status withdrawal.Status) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res uint64
	for _, item := range s.records {
		if item.Status == status {
			res++
		}
	}
	return res, nil
}

// NextSequence implements withdrawal.Store.NextSequence
func (s *store) NextSequence(_ context.Context, owner string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.counters[owner] + 1
	s.counters[owner] = next
	return next, nil
}

// GetSequence implements withdrawal.Store.GetSequence
func (s *store) GetSequence(_ context.Context, owner string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[owner], nil
}

func (s *store) find(owner string, requestId uint64) *withdrawal.Record {
	for _, item := range s.records {
		if owner == item.Owner && requestId == item.RequestId {
			return item
		}
	}
	return nil
}

func (s *store) findByOwner(owner string) []*withdrawal.Record {
	res := make([]*withdrawal.Record, 0)
	for _, item := range s.records {
		if owner == item.Owner {
			res = append(res, item.Clone())
		}
	}
	return res
}

func (s *store) filter(items []*withdrawal.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*withdrawal.Record {
	var start uint64

	start = 0
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*withdrawal.Record
	for _, item := range items {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ById(res)))
	}

	if len(res) >= int(limit) {
		return res[:limit]
	}

	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.counters = make(map[string]uint64)
	s.last = 0
}
