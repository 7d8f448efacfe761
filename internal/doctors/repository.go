package doctors

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
)

// Repository persists doctor profiles.
type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	Search(ctx context.Context, filter SearchFilter) ([]*Profile, error)
	ListPending(ctx context.Context) ([]*Profile, error)
	SetVerified(ctx context.Context, id uuid.UUID, verifiedBy *uuid.UUID, at *time.Time) error
	UpdateFee(ctx context.Context, accountID uuid.UUID, fee int64) (uuid.UUID, error)
}

// InMemoryRepository is a thread-safe in-memory directory.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]*Profile
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{profiles: make(map[uuid.UUID]*Profile)}
}

// Create stores a profile, enforcing one profile per account and unique licenses.
func (r *InMemoryRepository) Create(ctx context.Context, profile *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.profiles {
		if existing.LicenseNumber == profile.LicenseNumber || existing.AccountID == profile.AccountID {
			return identity.ErrLicenseTaken
		}
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	r.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

// GetByID returns a copy of the profile.
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profile, ok := r.profiles[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return cloneProfile(profile), nil
}

// GetByAccount returns the profile owned by an account.
func (r *InMemoryRepository) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, profile := range r.profiles {
		if profile.AccountID == accountID {
			return cloneProfile(profile), nil
		}
	}
	return nil, ErrDoctorNotFound
}

// Search returns verified profiles matching the filter, by name.
func (r *InMemoryRepository) Search(ctx context.Context, filter SearchFilter) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec := strings.ToLower(filter.Specialization)
	name := strings.ToLower(filter.Name)
	var out []*Profile
	for _, profile := range r.profiles {
		if !profile.IsVerified {
			continue
		}
		if spec != "" && !strings.Contains(strings.ToLower(profile.Specialization), spec) {
			continue
		}
		if name != "" &&
			!strings.Contains(strings.ToLower(profile.Name), name) &&
			!strings.Contains(strings.ToLower(profile.Specialization), name) {
			continue
		}
		out = append(out, cloneProfile(profile))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListPending returns unverified profiles, oldest first.
func (r *InMemoryRepository) ListPending(ctx context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Profile
	for _, profile := range r.profiles {
		if !profile.IsVerified {
			out = append(out, cloneProfile(profile))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// SetVerified marks the profile verified when verifiedBy is set, otherwise
// clears verification.
func (r *InMemoryRepository) SetVerified(ctx context.Context, id uuid.UUID, verifiedBy *uuid.UUID, at *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[id]
	if !ok {
		return ErrDoctorNotFound
	}
	profile.IsVerified = verifiedBy != nil
	profile.VerifiedBy = verifiedBy
	profile.VerifiedAt = at
	profile.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateFee sets the consultation fee on the account's profile.
func (r *InMemoryRepository) UpdateFee(ctx context.Context, accountID uuid.UUID, fee int64) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, profile := range r.profiles {
		if profile.AccountID == accountID {
			profile.ConsultationFee = fee
			profile.UpdatedAt = time.Now().UTC()
			return profile.ID, nil
		}
	}
	return uuid.Nil, ErrDoctorNotFound
}

func cloneProfile(p *Profile) *Profile {
	copied := *p
	copied.Qualifications = append([]string(nil), p.Qualifications...)
	return &copied
}
