package doctors

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/pkg/logging"
)

type recordingAuditor struct {
	decisions map[string]bool
}

func (a *recordingAuditor) LogDoctorVerification(ctx context.Context, adminID, profileID string, approved bool) error {
	if a.decisions == nil {
		a.decisions = make(map[string]bool)
	}
	a.decisions[profileID] = approved
	return nil
}

func seedProfile(t *testing.T, repo *InMemoryRepository, name, specialization string, verified bool, fee int64) *Profile {
	t.Helper()
	p := &Profile{
		AccountID:       uuid.New(),
		Name:            name,
		Specialization:  specialization,
		LicenseNumber:   "LIC-" + uuid.NewString(),
		ConsultationFee: fee,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	if verified {
		admin := uuid.New()
		now := time.Now().UTC()
		require.NoError(t, repo.SetVerified(context.Background(), p.ID, &admin, &now))
	}
	return p
}

func TestCreateForAccount(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil, nil, logging.Default())
	accountID := uuid.New()

	err := svc.CreateForAccount(context.Background(), accountID, identity.DoctorRegistration{
		Specialization: "Cardiology", LicenseNumber: "LIC-1", ConsultationFee: 300,
	})
	require.NoError(t, err)

	info, err := svc.InfoForAccount(context.Background(), accountID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.False(t, info.IsVerified)
	assert.Equal(t, "Cardiology", info.Specialization)

	err = svc.CreateForAccount(context.Background(), uuid.New(), identity.DoctorRegistration{
		Specialization: "Cardiology", LicenseNumber: "LIC-1",
	})
	assert.ErrorIs(t, err, identity.ErrLicenseTaken)

	none, err := svc.InfoForAccount(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLookup_ReadsThroughCache(t *testing.T) {
	repo := NewInMemoryRepository()
	cache, _ := newTestCache(t, time.Minute)
	svc := NewService(repo, cache, nil, logging.Default())
	p := seedProfile(t, repo, "Dr. A", "Cardiology", true, 500)

	listing, err := svc.Lookup(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), listing.ConsultationFee)
	assert.Equal(t, p.AccountID, listing.AccountID)

	cached, err := cache.Get(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)

	// A fee change through the service drops the cached entry.
	_, err = svc.UpdateFee(context.Background(), p.AccountID, 800)
	require.NoError(t, err)
	cached, err = cache.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, cached)

	listing, err = svc.Lookup(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(800), listing.ConsultationFee)

	_, err = svc.Lookup(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

// pausingRepository parks the first GetByID after it has read the profile.
type pausingRepository struct {
	*InMemoryRepository
	paused atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func (r *pausingRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := r.InMemoryRepository.GetByID(ctx, id)
	if r.paused.CompareAndSwap(false, true) {
		close(r.read)
		<-r.resume
	}
	return p, err
}

func TestCurrent_IgnoresListingCachedDuringFeeChange(t *testing.T) {
	repo := &pausingRepository{
		InMemoryRepository: NewInMemoryRepository(),
		read:               make(chan struct{}),
		resume:             make(chan struct{}),
	}
	cache, _ := newTestCache(t, time.Minute)
	svc := NewService(repo, cache, nil, logging.Default())
	p := seedProfile(t, repo.InMemoryRepository, "Dr. A", "Cardiology", true, 500)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Lookup(ctx, p.ID)
	}()

	<-repo.read
	_, err := svc.UpdateFee(ctx, p.AccountID, 900)
	require.NoError(t, err)
	close(repo.resume)
	<-done

	// The slow read repopulated the cache with the old fee.
	cached, err := cache.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, int64(500), cached.ConsultationFee)

	current, err := svc.Current(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), current.ConsultationFee)
	assert.Equal(t, p.AccountID, current.AccountID)

	_, err = svc.Current(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestSearchAndProfile_OnlyVerified(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil, nil, logging.Default())
	verified := seedProfile(t, repo, "Alice", "Cardiology", true, 100)
	pending := seedProfile(t, repo, "Bob", "Cardiology", false, 100)
	seedProfile(t, repo, "Carol", "Dermatology", true, 100)

	results, err := svc.Search(context.Background(), SearchFilter{Specialization: "cardio"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, verified.ID, results[0].ID)
	assert.Empty(t, results[0].LicenseNumber)

	results, err = svc.Search(context.Background(), SearchFilter{Name: "derma"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Carol", results[0].Name)

	_, err = svc.Profile(context.Background(), pending.ID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	got, err := svc.Profile(context.Background(), verified.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
}

func TestVerify(t *testing.T) {
	repo := NewInMemoryRepository()
	audit := &recordingAuditor{}
	svc := NewService(repo, nil, audit, logging.Default())
	admin := identity.Principal{UserID: uuid.New(), Role: identity.RoleAdmin}
	p := seedProfile(t, repo, "Dr. A", "Cardiology", false, 100)

	pending, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.Verify(context.Background(), admin, p.ID, Decision("maybe"))
	assert.ErrorIs(t, err, ErrInvalidDecision)

	approved, err := svc.Verify(context.Background(), admin, p.ID, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, approved.IsVerified)
	require.NotNil(t, approved.VerifiedBy)
	assert.Equal(t, admin.UserID, *approved.VerifiedBy)
	assert.NotNil(t, approved.VerifiedAt)
	assert.True(t, audit.decisions[p.ID.String()])

	rejected, err := svc.Verify(context.Background(), admin, p.ID, DecisionRejected)
	require.NoError(t, err)
	assert.False(t, rejected.IsVerified)
	assert.Nil(t, rejected.VerifiedBy)
	assert.False(t, audit.decisions[p.ID.String()])

	_, err = svc.Verify(context.Background(), admin, uuid.New(), DecisionApproved)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestUpdateFee_Validation(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo, nil, nil, logging.Default())

	_, err := svc.UpdateFee(context.Background(), uuid.New(), -1)
	assert.ErrorIs(t, err, ErrInvalidFee)

	_, err = svc.UpdateFee(context.Background(), uuid.New(), 10)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}
