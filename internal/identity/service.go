package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/validation"
)

const adminUsername = "System Admin"

// DoctorProfiles is the slice of the doctor directory identity needs during
// registration and login.
type DoctorProfiles interface {
	CreateForAccount(ctx context.Context, accountID uuid.UUID, reg DoctorRegistration) error
	InfoForAccount(ctx context.Context, accountID uuid.UUID) (*DoctorInfo, error)
}

// Auditor records privileged account changes.
type Auditor interface {
	LogUserStatusChanged(ctx context.Context, adminID, userID string, active bool) error
	LogAdminSeeded(ctx context.Context, adminID, email string, created bool) error
}

// Service implements registration, login and the account lookups used by the
// access gate.
type Service struct {
	repo     Repository
	tokens   *TokenIssuer
	doctors  DoctorProfiles
	audit    Auditor
	logger   *logging.Logger
	hashCost int
}

// NewService wires the identity service. doctors and audit may be nil.
func NewService(repo Repository, tokens *TokenIssuer, doctors DoctorProfiles, audit Auditor, logger *logging.Logger) *Service {
	if repo == nil {
		panic("identity: repository required")
	}
	if tokens == nil {
		panic("identity: token issuer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		tokens:   tokens,
		doctors:  doctors,
		audit:    audit,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates a patient, doctor or moderator account. Doctors also get
// an unverified directory profile; the account is removed again when the
// profile cannot be created.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}
	if req.Role == RoleDoctor && (req.Specialization == "" || req.LicenseNumber == "") {
		return nil, invalid("specialization and licenseNumber are required for doctors")
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Phone:        req.Phone,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	if req.Role == RoleDoctor && s.doctors != nil {
		reg := DoctorRegistration{
			Specialization:  req.Specialization,
			LicenseNumber:   req.LicenseNumber,
			Qualifications:  req.Qualifications,
			ExperienceYears: req.ExperienceYears,
			Bio:             req.Bio,
			ConsultationFee: req.ConsultationFee,
		}
		if err := s.doctors.CreateForAccount(ctx, user.ID, reg); err != nil {
			if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
				s.logger.Error("failed to roll back doctor account", "user_id", user.ID, "error", delErr)
			}
			return nil, err
		}
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login checks credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err.Error())
	}

	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactive
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	result := &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}

	if user.Role == RoleDoctor && s.doctors != nil {
		info, err := s.doctors.InfoForAccount(ctx, user.ID)
		if err != nil {
			s.logger.Warn("doctor info unavailable at login", "user_id", user.ID, "error", err)
		} else {
			result.DoctorInfo = info
		}
	}
	return result, nil
}

// Resolve returns the identity for a user id.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (Identity, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUnauthorized
		}
		return Identity{}, err
	}
	return Identity{ID: user.ID, Role: user.Role, IsActive: user.IsActive}, nil
}

// Authenticate verifies a bearer token and resolves the caller. Unknown users
// and bad tokens yield ErrUnauthorized, disabled accounts ErrInactive.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	ident, err := s.Resolve(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	if !ident.IsActive {
		return Principal{}, ErrInactive
	}
	return Principal{UserID: ident.ID, Role: ident.Role}, nil
}

// Profile returns the caller's account.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// DisplayNames resolves usernames for appointment responses.
func (s *Service) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return s.repo.Usernames(ctx, ids)
}

// EnsureAdmin reconciles the configured admin account: created when missing,
// otherwise forced back to the admin role, active, with the configured
// password. Any other admin account is demoted to an inactive patient so a
// single administrator remains. Empty configuration skips the step.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.logger.Info("admin email or password not set, skipping admin seed")
		return nil
	}

	adminID, err := s.reconcileAdmin(ctx, email, password)
	if err != nil {
		return err
	}
	return s.demoteOtherAdmins(ctx, adminID)
}

func (s *Service) reconcileAdmin(ctx context.Context, email, password string) (uuid.UUID, error) {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return uuid.Nil, fmt.Errorf("identity: ensure admin: %w", err)
	}

	if existing == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
		if err != nil {
			return uuid.Nil, fmt.Errorf("identity: hash password: %w", err)
		}
		admin := &User{
			ID:           uuid.New(),
			Username:     adminUsername,
			Email:        email,
			PasswordHash: string(hash),
			Role:         RoleAdmin,
			IsActive:     true,
		}
		if err := s.repo.Create(ctx, admin); err != nil {
			return uuid.Nil, fmt.Errorf("identity: seed admin: %w", err)
		}
		s.logger.Info("seeded admin user", "email", email)
		s.auditAdminSeeded(ctx, admin.ID, email, true)
		return admin.ID, nil
	}

	changed := false
	if existing.Role != RoleAdmin {
		existing.Role = RoleAdmin
		changed = true
	}
	if !existing.IsActive {
		existing.IsActive = true
		changed = true
	}
	if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash), []byte(password)) != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
		if err != nil {
			return uuid.Nil, fmt.Errorf("identity: hash password: %w", err)
		}
		existing.PasswordHash = string(hash)
		changed = true
		s.logger.Info("reset admin password from configuration", "email", email)
	}
	if !changed {
		s.logger.Info("admin already up to date", "email", email)
		return existing.ID, nil
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		return uuid.Nil, fmt.Errorf("identity: update admin: %w", err)
	}
	s.logger.Info("admin ensured", "email", email)
	s.auditAdminSeeded(ctx, existing.ID, email, false)
	return existing.ID, nil
}

func (s *Service) demoteOtherAdmins(ctx context.Context, keep uuid.UUID) error {
	admins, err := s.repo.List(ctx, RoleAdmin)
	if err != nil {
		return fmt.Errorf("identity: list admins: %w", err)
	}
	for _, other := range admins {
		if other.ID == keep {
			continue
		}
		other.Role = RolePatient
		other.IsActive = false
		if err := s.repo.Update(ctx, other); err != nil {
			return fmt.Errorf("identity: demote admin: %w", err)
		}
		s.logger.Warn("demoted stale admin account", "user_id", other.ID, "email", other.Email)
		if s.audit != nil {
			if err := s.audit.LogUserStatusChanged(ctx, keep.String(), other.ID.String(), false); err != nil {
				s.logger.Warn("audit write failed", "event", "user.status_changed", "error", err)
			}
		}
	}
	return nil
}

// ListUsers returns accounts, optionally filtered by role.
func (s *Service) ListUsers(ctx context.Context, role Role) ([]*User, error) {
	if role != "" && !role.Valid() {
		return nil, invalid("role must be one of: patient, doctor, admin, moderator")
	}
	return s.repo.List(ctx, role)
}

// SetActive enables or disables an account. Admin accounts cannot be changed.
func (s *Service) SetActive(ctx context.Context, admin Principal, id uuid.UUID, active bool) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == RoleAdmin {
		return nil, ErrAdminImmutable
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	user.IsActive = active

	s.logger.Info("user status changed", "user_id", id, "active", active, "admin_id", admin.UserID)
	if s.audit != nil {
		if err := s.audit.LogUserStatusChanged(ctx, admin.UserID.String(), id.String(), active); err != nil {
			s.logger.Warn("audit write failed", "event", "user.status_changed", "error", err)
		}
	}
	return user, nil
}

func (s *Service) auditAdminSeeded(ctx context.Context, adminID uuid.UUID, email string, created bool) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogAdminSeeded(ctx, adminID.String(), email, created); err != nil {
		s.logger.Warn("audit write failed", "event", "admin.seeded", "error", err)
	}
}
