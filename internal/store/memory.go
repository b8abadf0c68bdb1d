package store

import (
	"context"
	"sort"
	"sync"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// MemoryZoneRepository is an in-process ZoneRepository backed by maps
// guarded by a single RWMutex. It backs tests and the "memory" engine for
// single-process deployments that do not need durability.
type MemoryZoneRepository struct {
	mu       sync.RWMutex
	byID     map[string]*zonemodel.Zone
	idByName map[string]string
}

// NewMemoryZoneRepository returns an empty MemoryZoneRepository.
func NewMemoryZoneRepository() *MemoryZoneRepository {
	return &MemoryZoneRepository{
		byID:     make(map[string]*zonemodel.Zone),
		idByName: make(map[string]string),
	}
}

func cloneZone(z *zonemodel.Zone) *zonemodel.Zone {
	cp := *z
	return &cp
}

// Create implements ZoneRepository.
func (r *MemoryZoneRepository) Create(ctx context.Context, zone *zonemodel.Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByName[zone.Name]; exists {
		return ErrAlreadyExists
	}
	r.byID[zone.ID] = cloneZone(zone)
	r.idByName[zone.Name] = zone.ID
	return nil
}

// Get implements ZoneRepository.
func (r *MemoryZoneRepository) Get(ctx context.Context, id string) (*zonemodel.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneZone(z), nil
}

// GetByName implements ZoneRepository.
func (r *MemoryZoneRepository) GetByName(ctx context.Context, name string) (*zonemodel.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneZone(r.byID[id]), nil
}

// Update implements ZoneRepository.
func (r *MemoryZoneRepository) Update(ctx context.Context, zone *zonemodel.Zone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[zone.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Name != zone.Name {
		delete(r.idByName, existing.Name)
		r.idByName[zone.Name] = zone.ID
	}
	r.byID[zone.ID] = cloneZone(zone)
	return nil
}

// Delete implements ZoneRepository.
func (r *MemoryZoneRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.idByName, z.Name)
	delete(r.byID, id)
	return nil
}

// List implements ZoneRepository. Zones are ordered by ID and the cursor is
// the ID of the last zone on the previous page; this backend is not meant to
// serve large listings.
func (r *MemoryZoneRepository) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*zonemodel.Zone, 0, len(r.byID))
	for _, z := range r.byID {
		if opts.Account != "" && z.Account != opts.Account {
			continue
		}
		all = append(all, cloneZone(z))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	offset := 0
	if opts.Cursor != "" {
		for i, z := range all {
			if z.ID == opts.Cursor {
				offset = i + 1
				break
			}
		}
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := len(all)
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}
	page := all[offset:end]

	var next string
	if end < len(all) {
		next = page[len(page)-1].ID
	}
	return ListResult{Zones: page, NextCursor: next}, nil
}

// Count implements ZoneRepository.
func (r *MemoryZoneRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

// MemoryPrincipalStore is an in-process PrincipalStore backed by a map
// guarded by an RWMutex.
type MemoryPrincipalStore struct {
	mu         sync.RWMutex
	principals map[string]*auth.Principal
}

// NewMemoryPrincipalStore returns an empty MemoryPrincipalStore.
func NewMemoryPrincipalStore() *MemoryPrincipalStore {
	return &MemoryPrincipalStore{principals: make(map[string]*auth.Principal)}
}

func clonePrincipal(p *auth.Principal) *auth.Principal {
	cp := *p
	cp.Groups = append([]string(nil), p.Groups...)
	return &cp
}

// GetAuthPrincipal implements auth.AuthPrincipalProvider.
func (s *MemoryPrincipalStore) GetAuthPrincipal(ctx context.Context, accessKey string) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[accessKey]
	if !ok {
		return nil, nil
	}
	return clonePrincipal(p), nil
}

// Put implements PrincipalStore.
func (s *MemoryPrincipalStore) Put(ctx context.Context, p *auth.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.AccessKey] = clonePrincipal(p)
	return nil
}

// Delete implements PrincipalStore.
func (s *MemoryPrincipalStore) Delete(ctx context.Context, accessKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.principals, accessKey)
	return nil
}
