package doctors

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

// Auditor records admin verification decisions.
type Auditor interface {
	LogDoctorVerification(ctx context.Context, adminID, profileID string, approved bool) error
}

// Service is the doctor directory.
type Service struct {
	repo   Repository
	cache  *ListingCache
	audit  Auditor
	logger *logging.Logger
	now    func() time.Time
}

// NewService wires the directory. cache and audit may be nil.
func NewService(repo Repository, cache *ListingCache, audit Auditor, logger *logging.Logger) *Service {
	if repo == nil {
		panic("doctors: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// CreateForAccount creates the unverified profile for a newly registered doctor.
func (s *Service) CreateForAccount(ctx context.Context, accountID uuid.UUID, reg identity.DoctorRegistration) error {
	if reg.ConsultationFee < 0 {
		return ErrInvalidFee
	}
	profile := &Profile{
		AccountID:       accountID,
		Specialization:  reg.Specialization,
		LicenseNumber:   reg.LicenseNumber,
		Qualifications:  reg.Qualifications,
		ExperienceYears: reg.ExperienceYears,
		Bio:             reg.Bio,
		ConsultationFee: reg.ConsultationFee,
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		return err
	}
	s.logger.Info("doctor profile created", "profile_id", profile.ID, "account_id", accountID)
	return nil
}

// InfoForAccount returns the login summary for a doctor, or nil when the
// account has no profile.
func (s *Service) InfoForAccount(ctx context.Context, accountID uuid.UUID) (*identity.DoctorInfo, error) {
	profile, err := s.repo.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identity.DoctorInfo{
		ProfileID:      profile.ID,
		IsVerified:     profile.IsVerified,
		Specialization: profile.Specialization,
	}, nil
}

// Lookup resolves the owning account and fee for a profile, reading through
// the cache. A listing may trail a concurrent write for up to the cache TTL.
func (s *Service) Lookup(ctx context.Context, profileID uuid.UUID) (*Listing, error) {
	if s.cache != nil {
		listing, err := s.cache.Get(ctx, profileID)
		if err != nil {
			s.logger.Warn("doctor cache read failed", "profile_id", profileID, "error", err)
		} else if listing != nil {
			return listing, nil
		}
	}

	profile, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	listing := profile.Listing()
	if s.cache != nil {
		if err := s.cache.Set(ctx, listing); err != nil {
			s.logger.Warn("doctor cache write failed", "profile_id", profileID, "error", err)
		}
	}
	return listing, nil
}

// Current reads the profile straight from the repository. Booking uses it
// so the fee snapshot never comes from a cached listing.
func (s *Service) Current(ctx context.Context, profileID uuid.UUID) (*Listing, error) {
	profile, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return profile.Listing(), nil
}

// Search lists verified doctors. License numbers are omitted.
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]*Profile, error) {
	profiles, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		p.LicenseNumber = ""
	}
	return profiles, nil
}

// Profile returns a verified doctor's public profile.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !profile.IsVerified {
		return nil, ErrDoctorNotFound
	}
	return profile, nil
}

// OwnProfile returns the caller's profile whatever its verification state.
func (s *Service) OwnProfile(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	return s.repo.GetByAccount(ctx, accountID)
}

// Pending lists profiles awaiting review.
func (s *Service) Pending(ctx context.Context) ([]*Profile, error) {
	return s.repo.ListPending(ctx)
}

// Verify applies an admin decision. Rejection leaves the profile unverified.
func (s *Service) Verify(ctx context.Context, admin identity.Principal, id uuid.UUID, decision Decision) (*Profile, error) {
	if decision != DecisionApproved && decision != DecisionRejected {
		return nil, ErrInvalidDecision
	}

	var verifiedBy *uuid.UUID
	var verifiedAt *time.Time
	if decision == DecisionApproved {
		adminID := admin.UserID
		at := s.now().UTC()
		verifiedBy, verifiedAt = &adminID, &at
	}
	if err := s.repo.SetVerified(ctx, id, verifiedBy, verifiedAt); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	s.logger.Info("doctor verification decided", "profile_id", id, "decision", decision, "admin_id", admin.UserID)
	if s.audit != nil {
		if err := s.audit.LogDoctorVerification(ctx, admin.UserID.String(), id.String(), decision == DecisionApproved); err != nil {
			s.logger.Warn("audit write failed", "event", "doctor.verification", "error", err)
		}
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateFee sets the doctor's current consultation fee. Existing appointments
// keep the fee captured when they were booked.
func (s *Service) UpdateFee(ctx context.Context, accountID uuid.UUID, fee int64) (*Profile, error) {
	if fee < 0 {
		return nil, ErrInvalidFee
	}
	id, err := s.repo.UpdateFee(ctx, accountID, fee)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return s.repo.GetByID(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("doctor cache invalidate failed", "profile_id", id, "error", err)
	}
}
