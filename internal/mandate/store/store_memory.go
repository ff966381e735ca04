package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"bureau/internal/mandate/models"
	"bureau/pkg/platform/sentinel"
)

// InMemoryStore keeps members and mandates in process memory.
// Suitable for development and tests; it is safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	members  map[int64]struct{}
	mandates map[int64]*models.RoleMandate
	nextID   int64
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		members:  make(map[int64]struct{}),
		mandates: make(map[int64]*models.RoleMandate),
	}
}

// AddMember registers a member id. Member CRUD lives outside this service.
func (s *InMemoryStore) AddMember(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[id] = struct{}{}
}

func (s *InMemoryStore) MemberExists(_ context.Context, memberID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[memberID]
	return ok, nil
}

// LockMember is a no-op; the in-memory transaction serializes by member shard.
func (s *InMemoryStore) LockMember(ctx context.Context, memberID int64) error {
	ok, err := s.MemberExists(ctx, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *InMemoryStore) FindMandate(_ context.Context, memberID, mandateID int64) (*models.RoleMandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mandates[mandateID]
	if !ok || m.MemberID != memberID {
		return nil, sentinel.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *InMemoryStore) FindOverlapping(_ context.Context, q models.OverlapQuery) ([]*models.RoleMandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RoleMandate
	for _, m := range s.mandates {
		if m.MemberID != q.MemberID || m.Role != q.Role || !m.IsActive {
			continue
		}
		if q.ExcludeID != 0 && m.ID == q.ExcludeID {
			continue
		}
		if m.Overlaps(q.StartDate, q.EndDate) {
			clone := *m
			out = append(out, &clone)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *InMemoryStore) CreateMandate(_ context.Context, m *models.RoleMandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.MemberID]; !ok {
		return sentinel.ErrNotFound
	}
	s.nextID++
	m.ID = s.nextID
	clone := *m
	s.mandates[m.ID] = &clone
	return nil
}

func (s *InMemoryStore) UpdateMandate(_ context.Context, m *models.RoleMandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.mandates[m.ID]
	if !ok || existing.MemberID != m.MemberID {
		return sentinel.ErrNotFound
	}
	clone := *m
	clone.CreatedAt = existing.CreatedAt
	s.mandates[m.ID] = &clone
	return nil
}

func (s *InMemoryStore) DeleteMandate(_ context.Context, memberID, mandateID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.mandates[mandateID]
	if !ok || existing.MemberID != memberID {
		return sentinel.ErrNotFound
	}
	delete(s.mandates, mandateID)
	return nil
}

func (s *InMemoryStore) ListMandates(_ context.Context, q models.ListQuery) ([]*models.RoleMandate, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []*models.RoleMandate
	for _, m := range s.mandates {
		if m.MemberID == q.MemberID {
			clone := *m
			all = append(all, &clone)
		}
	}
	slices.SortFunc(all, func(a, b *models.RoleMandate) int {
		if c := b.StartDate.Time().Compare(a.StartDate.Time()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(all)
	if q.Offset < 0 || q.Offset >= total {
		return []*models.RoleMandate{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < total {
		end = q.Offset + q.Limit
	}
	return all[q.Offset:end], total, nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}

func sortByID(ms []*models.RoleMandate) {
	slices.SortFunc(ms, func(a, b *models.RoleMandate) int { return cmp.Compare(a.ID, b.ID) })
}
