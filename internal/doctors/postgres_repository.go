package doctors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const profileSelect = `
	SELECT d.id, d.account_id, u.username, u.email, COALESCE(u.phone, ''),
		d.specialization, d.license_number, d.qualifications, d.experience_years,
		d.bio, d.consultation_fee, d.is_verified, d.verified_by, d.verified_at,
		d.created_at, d.updated_at
	FROM doctor_profiles d
	JOIN users u ON u.id = d.account_id
`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresRepository stores doctor profiles in the relational database.
type PostgresRepository struct {
	pool rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q rowQuerier) *PostgresRepository {
	if q == nil {
		panic("doctors: querier required")
	}
	return &PostgresRepository{pool: q}
}

// Create inserts a new unverified profile.
func (r *PostgresRepository) Create(ctx context.Context, profile *Profile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	qualifications := profile.Qualifications
	if qualifications == nil {
		qualifications = []string{}
	}
	query := `
		INSERT INTO doctor_profiles (
			id, account_id, specialization, license_number, qualifications,
			experience_years, bio, consultation_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.AccountID,
		profile.Specialization,
		profile.LicenseNumber,
		qualifications,
		profile.ExperienceYears,
		profile.Bio,
		profile.ConsultationFee,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.ErrLicenseTaken
		}
		return fmt.Errorf("doctors: insert profile: %w", err)
	}
	return nil
}

// GetByID fetches a profile regardless of verification state.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.getOne(ctx, profileSelect+` WHERE d.id = $1`, id)
}

// GetByAccount fetches the profile owned by an account.
func (r *PostgresRepository) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	return r.getOne(ctx, profileSelect+` WHERE d.account_id = $1`, accountID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*Profile, error) {
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select profile: %w", err)
	}
	return profile, nil
}

// Search returns verified doctors with active accounts.
func (r *PostgresRepository) Search(ctx context.Context, filter SearchFilter) ([]*Profile, error) {
	query := profileSelect + ` WHERE d.is_verified AND u.is_active`
	var args []any
	if spec := strings.TrimSpace(filter.Specialization); spec != "" {
		args = append(args, "%"+likeEscaper.Replace(spec)+"%")
		query += fmt.Sprintf(` AND d.specialization ILIKE $%d`, len(args))
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		args = append(args, "%"+likeEscaper.Replace(name)+"%")
		query += fmt.Sprintf(` AND (u.username ILIKE $%d OR d.specialization ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY u.username`
	return r.list(ctx, query, args...)
}

// ListPending returns unverified profiles, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*Profile, error) {
	return r.list(ctx, profileSelect+` WHERE NOT d.is_verified ORDER BY d.created_at`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Profile, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("doctors: list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: list profiles: %w", err)
	}
	return profiles, nil
}

// SetVerified records an approval, or clears verification when verifiedBy is nil.
func (r *PostgresRepository) SetVerified(ctx context.Context, id uuid.UUID, verifiedBy *uuid.UUID, at *time.Time) error {
	query := `
		UPDATE doctor_profiles
		SET is_verified = $2, verified_by = $3, verified_at = $4, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, verifiedBy != nil, verifiedBy, at)
	if err != nil {
		return fmt.Errorf("doctors: set verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

// UpdateFee changes the current fee. Existing appointments keep their snapshot.
func (r *PostgresRepository) UpdateFee(ctx context.Context, accountID uuid.UUID, fee int64) (uuid.UUID, error) {
	query := `
		UPDATE doctor_profiles
		SET consultation_fee = $2, updated_at = NOW()
		WHERE account_id = $1
		RETURNING id
	`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, query, accountID, fee).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrDoctorNotFound
		}
		return uuid.Nil, fmt.Errorf("doctors: update fee: %w", err)
	}
	return id, nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	if err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.Specialization,
		&p.LicenseNumber,
		&p.Qualifications,
		&p.ExperienceYears,
		&p.Bio,
		&p.ConsultationFee,
		&p.IsVerified,
		&p.VerifiedBy,
		&p.VerifiedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
