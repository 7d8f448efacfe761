package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

type stubDoctorProfiles struct {
	mu        sync.Mutex
	created   map[uuid.UUID]DoctorRegistration
	createErr error
}

func newStubDoctorProfiles() *stubDoctorProfiles {
	return &stubDoctorProfiles{created: make(map[uuid.UUID]DoctorRegistration)}
}

func (s *stubDoctorProfiles) CreateForAccount(ctx context.Context, accountID uuid.UUID, reg DoctorRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created[accountID] = reg
	return nil
}

func (s *stubDoctorProfiles) InfoForAccount(ctx context.Context, accountID uuid.UUID) (*DoctorInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.created[accountID]
	if !ok {
		return nil, nil
	}
	return &DoctorInfo{ProfileID: accountID, Specialization: reg.Specialization}, nil
}

type recordingAuditor struct {
	statusChanges []string
	seeds         []bool
}

func (a *recordingAuditor) LogUserStatusChanged(ctx context.Context, adminID, userID string, active bool) error {
	a.statusChanges = append(a.statusChanges, userID)
	return nil
}

func (a *recordingAuditor) LogAdminSeeded(ctx context.Context, adminID, email string, created bool) error {
	a.seeds = append(a.seeds, created)
	return nil
}

func newTestService(t *testing.T) (*Service, *InMemoryRepository, *stubDoctorProfiles, *recordingAuditor) {
	t.Helper()
	repo := NewInMemoryRepository()
	doctors := newStubDoctorProfiles()
	audit := &recordingAuditor{}
	svc := NewService(repo, NewTokenIssuer("test-secret", time.Hour), doctors, audit, logging.Default())
	svc.hashCost = bcrypt.MinCost
	return svc, repo, doctors, audit
}

func patientRequest(email string) RegisterRequest {
	return RegisterRequest{
		Username: "Pat",
		Email:    email,
		Password: "secret1",
		Role:     RolePatient,
	}
}

func TestRegister_NormalizesEmailAndHashesPassword(t *testing.T) {
	svc, repo, _, _ := newTestService(t)

	user, err := svc.Register(context.Background(), patientRequest("  Pat@Example.COM "))
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", user.Email)
	assert.True(t, user.IsActive)

	stored, err := repo.GetByEmail(context.Background(), "pat@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing username", RegisterRequest{Email: "a@b.co", Password: "secret1", Role: RolePatient}},
		{"short password", RegisterRequest{Username: "a", Email: "a@b.co", Password: "12345", Role: RolePatient}},
		{"admin role refused", RegisterRequest{Username: "a", Email: "a@b.co", Password: "secret1", Role: RoleAdmin}},
		{"doctor without license", RegisterRequest{Username: "a", Email: "a@b.co", Password: "secret1", Role: RoleDoctor, Specialization: "Cardiology"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), patientRequest("dup@example.com"))
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), patientRequest("DUP@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_DoctorCreatesProfile(t *testing.T) {
	svc, _, doctors, _ := newTestService(t)

	req := RegisterRequest{
		Username:        "Dr. Who",
		Email:           "doc@example.com",
		Password:        "secret1",
		Role:            RoleDoctor,
		Specialization:  "Cardiology",
		LicenseNumber:   "LIC-1",
		ConsultationFee: 500,
	}
	user, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(500), doctors.created[user.ID].ConsultationFee)
}

func TestRegister_DoctorProfileFailureRemovesAccount(t *testing.T) {
	svc, repo, doctors, _ := newTestService(t)
	doctors.createErr = ErrLicenseTaken

	req := RegisterRequest{
		Username:       "Dr. Who",
		Email:          "doc@example.com",
		Password:       "secret1",
		Role:           RoleDoctor,
		Specialization: "Cardiology",
		LicenseNumber:  "LIC-1",
	}
	_, err := svc.Register(context.Background(), req)
	require.ErrorIs(t, err, ErrLicenseTaken)

	_, err = repo.GetByEmail(context.Background(), "doc@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogin(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	user, err := svc.Register(context.Background(), patientRequest("pat@example.com"))
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), LoginRequest{Email: "PAT@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)
	assert.Nil(t, result.DoctorInfo)

	principal, err := svc.Authenticate(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: user.ID, Role: RolePatient}, principal)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "pat@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, repo.SetActive(context.Background(), user.ID, false))
	_, err = svc.Login(context.Background(), LoginRequest{Email: "pat@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInactive)

	_, err = svc.Authenticate(context.Background(), result.Token)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestLogin_DoctorInfo(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterRequest{
		Username:       "Dr. Who",
		Email:          "doc@example.com",
		Password:       "secret1",
		Role:           RoleDoctor,
		Specialization: "Neurology",
		LicenseNumber:  "LIC-2",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), LoginRequest{Email: "doc@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, result.DoctorInfo)
	assert.Equal(t, "Neurology", result.DoctorInfo.Specialization)
	assert.False(t, result.DoctorInfo.IsVerified)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	token, _, err := svc.tokens.Issue(uuid.New(), RolePatient)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	svc, repo, _, audit := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "Admin@Clinic.test", "admin-pass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "admin@clinic.test", "admin-pass"))

	admins, err := repo.List(ctx, RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@clinic.test", admins[0].Email)
	assert.Equal(t, []bool{true}, audit.seeds)
}

func TestEnsureAdmin_CorrectsExistingAccount(t *testing.T) {
	svc, repo, _, audit := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, patientRequest("boss@clinic.test"))
	require.NoError(t, err)
	require.NoError(t, repo.SetActive(ctx, user.ID, false))

	require.NoError(t, svc.EnsureAdmin(ctx, "boss@clinic.test", "new-admin-pass"))

	stored, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, stored.Role)
	assert.True(t, stored.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-admin-pass")))
	assert.Equal(t, []bool{false}, audit.seeds)
}

func TestEnsureAdmin_DemotesPreviousAdmin(t *testing.T) {
	svc, repo, _, audit := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "old@clinic.test", "admin-pass"))
	previous, err := repo.GetByEmail(ctx, "old@clinic.test")
	require.NoError(t, err)

	require.NoError(t, svc.EnsureAdmin(ctx, "new@clinic.test", "admin-pass"))

	admins, err := repo.List(ctx, RoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "new@clinic.test", admins[0].Email)

	demoted, err := repo.GetByID(ctx, previous.ID)
	require.NoError(t, err)
	assert.Equal(t, RolePatient, demoted.Role)
	assert.False(t, demoted.IsActive)
	assert.Equal(t, previous.PasswordHash, demoted.PasswordHash)
	assert.Equal(t, []string{previous.ID.String()}, audit.statusChanges)

	_, err = svc.Login(ctx, LoginRequest{Email: "old@clinic.test", Password: "admin-pass"})
	assert.ErrorIs(t, err, ErrInactive)
}

func TestEnsureAdmin_SkipsWithoutConfig(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "", "pw"))
	users, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSetActive(t *testing.T) {
	svc, repo, _, audit := newTestService(t)
	ctx := context.Background()
	admin := Principal{UserID: uuid.New(), Role: RoleAdmin}

	user, err := svc.Register(ctx, patientRequest("pat@example.com"))
	require.NoError(t, err)

	updated, err := svc.SetActive(ctx, admin, user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, []string{user.ID.String()}, audit.statusChanges)

	require.NoError(t, svc.EnsureAdmin(ctx, "admin@clinic.test", "admin-pass"))
	seeded, err := repo.GetByEmail(ctx, "admin@clinic.test")
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, admin, seeded.ID, false)
	assert.ErrorIs(t, err, ErrAdminImmutable)

	_, err = svc.SetActive(ctx, admin, uuid.New(), true)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestListUsers_RoleFilter(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, patientRequest("p1@example.com"))
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Username: "Mod", Email: "m@example.com", Password: "secret1", Role: RoleModerator})
	require.NoError(t, err)

	patients, err := svc.ListUsers(ctx, RolePatient)
	require.NoError(t, err)
	assert.Len(t, patients, 1)

	all, err := svc.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.ListUsers(ctx, Role("superuser"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}
