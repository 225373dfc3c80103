package identitymocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brightclass/identity-go/internal/data"
	"github.com/brightclass/identity-go/internal/domain/identity"
	"github.com/brightclass/identity-go/internal/ports"
)

var _ ports.ProfileRepository = (*MemoryProfileRepo)(nil)

// MemoryProfileRepo is an in-memory ports.ProfileRepository with two
// role-partitioned tables, lookup counters, and error injection.
type MemoryProfileRepo struct {
	mu     sync.Mutex
	tables map[identity.Role]map[string]*identity.Profile

	// Err, when set, is returned by every operation.
	Err error
	// GetByIdentityIDCalls counts identity-id lookups across both tables.
	GetByIdentityIDCalls int
	// Deleted records profiles removed via DeleteByIdentityID as "role:id".
	Deleted []string
}

// NewMemoryProfileRepo creates an empty in-memory profile repository.
func NewMemoryProfileRepo() *MemoryProfileRepo {
	return &MemoryProfileRepo{
		tables: map[identity.Role]map[string]*identity.Profile{
			identity.RoleTeacher: {},
			identity.RoleStudent: {},
		},
	}
}

// Seed inserts a profile row directly, bypassing validation.
func (r *MemoryProfileRepo) Seed(role identity.Role, p identity.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.tables[role][p.IdentityID] = &cp
}

func (r *MemoryProfileRepo) GetByIdentityID(
	_ context.Context,
	role identity.Role,
	identityID string,
) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.GetByIdentityIDCalls++
	if r.Err != nil {
		return nil, r.Err
	}
	p, ok := r.tables[role][identityID]
	if !ok {
		return nil, data.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryProfileRepo) GetByEmail(
	_ context.Context,
	role identity.Role,
	email string,
) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, p := range r.tables[role] {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, data.ErrProfileNotFound
}

func (r *MemoryProfileRepo) Create(
	_ context.Context,
	role identity.Role,
	in ports.CreateProfileInput,
) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if _, exists := r.tables[role][in.IdentityID]; exists {
		return nil, data.ErrProfileExists
	}
	now := time.Now()
	p := &identity.Profile{
		IdentityID: in.IdentityID,
		Email:      strings.ToLower(in.Email),
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		AvatarURL:  in.AvatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.tables[role][in.IdentityID] = p
	cp := *p
	return &cp, nil
}

func (r *MemoryProfileRepo) Update(
	_ context.Context,
	role identity.Role,
	identityID string,
	in ports.UpdateProfileInput,
) (*identity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	p, ok := r.tables[role][identityID]
	if !ok {
		return nil, data.ErrProfileNotFound
	}
	if in.FirstName != nil {
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		p.LastName = *in.LastName
	}
	if in.AvatarURL != nil {
		p.AvatarURL = *in.AvatarURL
	}
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (r *MemoryProfileRepo) DeleteByIdentityID(
	_ context.Context,
	role identity.Role,
	identityID string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.tables[role][identityID]; ok {
		delete(r.tables[role], identityID)
		r.Deleted = append(r.Deleted, string(role)+":"+identityID)
	}
	return nil
}

// Has reports whether a row exists for the role and identity id.
func (r *MemoryProfileRepo) Has(role identity.Role, identityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tables[role][identityID]
	return ok
}
