package version

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps versions in memory. Every operation holds a single lock so numbering and
// publishing are atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]*Version
	byOrg    map[string][]string
	counters map[string]int
	seq      Sequencer
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in memory store. Version numbers come from a per
// organization counter unless a sequencer is given.
func NewMemoryStore(seq Sequencer) *MemoryStore {
	return &MemoryStore{
		versions: make(map[string]*Version),
		byOrg:    make(map[string][]string),
		counters: make(map[string]int),
		seq:      seq,
	}
}

func (s *MemoryStore) Create(ctx context.Context, v *Version) (*Version, error) {
	c, err := prepareCreate(v)
	if err != nil {
		return nil, err
	}

	var number int
	if s.seq != nil {
		number, err = s.seq.Next(ctx, c.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("unable to assign version number, %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.versions[c.ID]; exists {
		return nil, fmt.Errorf("id %s, %w", c.ID, ErrVersionConflict)
	}
	if s.seq == nil {
		number = s.counters[c.OrganizationID] + 1
	}
	for _, id := range s.byOrg[c.OrganizationID] {
		if s.versions[id].Number == number {
			return nil, fmt.Errorf("organization %s number %d, %w", c.OrganizationID, number, ErrVersionConflict)
		}
	}
	c.Number = number
	if number > s.counters[c.OrganizationID] {
		s.counters[c.OrganizationID] = number
	}

	s.versions[c.ID] = c
	s.byOrg[c.OrganizationID] = append(s.byOrg[c.OrganizationID], c.ID)
	return c.Copy(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.versions[id]
	if !exists {
		return nil, fmt.Errorf("id %s, %w", id, ErrNotFound)
	}
	return v.Copy(), nil
}

func (s *MemoryStore) List(ctx context.Context, orgID string, status Status) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*Version
	for _, id := range s.byOrg[orgID] {
		v := s.versions[id]
		if status != "" && v.Status != status {
			continue
		}
		res = append(res, v.Copy())
	}
	slices.SortFunc(res, func(a, b *Version) int {
		return b.Number - a.Number
	})
	return res, nil
}

func (s *MemoryStore) Active(ctx context.Context, orgID string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active *Version
	for _, id := range s.byOrg[orgID] {
		v := s.versions[id]
		if !v.IsActive {
			continue
		}
		if active != nil {
			return nil, fmt.Errorf("organization %s, %w", orgID, ErrActiveInvariantViolation)
		}
		active = v
	}
	if active == nil {
		return nil, fmt.Errorf("no active version for organization %s, %w", orgID, ErrNotFound)
	}
	return active.Copy(), nil
}

func (s *MemoryStore) Publish(ctx context.Context, id string) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.versions[id]
	if !exists {
		return nil, fmt.Errorf("id %s, %w", id, ErrNotFound)
	}
	if err := Transition(v.Status, StatusPublished); err != nil {
		return nil, err
	}
	for _, other := range s.byOrg[v.OrganizationID] {
		s.versions[other].IsActive = false
	}
	if err := applyPublish(v, time.Now().UTC()); err != nil {
		return nil, err
	}
	return v.Copy(), nil
}

func (s *MemoryStore) Archive(ctx context.Context, id string) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.versions[id]
	if !exists {
		return nil, fmt.Errorf("id %s, %w", id, ErrNotFound)
	}
	if err := applyArchive(v, time.Now().UTC()); err != nil {
		return nil, err
	}
	return v.Copy(), nil
}

// MaxNumber returns the highest number assigned to the organization.
func (s *MemoryStore) MaxNumber(ctx context.Context, orgID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[orgID], nil
}

func (s *MemoryStore) Close() error {
	return nil
}
