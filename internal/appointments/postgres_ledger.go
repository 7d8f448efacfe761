package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Partial unique indexes over active appointments, see migrations.
const (
	doctorSlotConstraint  = "appointments_doctor_slot_active"
	patientSlotConstraint = "appointments_patient_slot_active"
)

const appointmentColumns = `
	id, patient_id, doctor_id, doctor_profile_id, appointment_date, appointment_time,
	reason, notes, consultation_fee, status, COALESCE(cancelled_by, ''),
	COALESCE(cancellation_reason, ''), created_at, updated_at
`

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger stores appointments in Postgres. Slot exclusivity is
// enforced by the partial unique indexes; violations map to the same
// conflict errors the service pre-check returns.
type PostgresLedger struct {
	pool rowQuerier
}

// NewPostgresLedger initializes a ledger backed by pgxpool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresLedger{pool: pool}
}

func newPostgresLedgerWithQuerier(q rowQuerier) *PostgresLedger {
	if q == nil {
		panic("appointments: querier required")
	}
	return &PostgresLedger{pool: q}
}

// Insert writes a new appointment.
func (l *PostgresLedger) Insert(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, doctor_id, doctor_profile_id, appointment_date, appointment_time,
			reason, notes, consultation_fee, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := l.pool.Exec(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DoctorID,
		appt.DoctorProfileID,
		appt.Date,
		appt.Slot,
		appt.Reason,
		appt.Notes,
		appt.ConsultationFee,
		string(appt.Status),
		appt.CreatedAt,
		appt.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case doctorSlotConstraint:
				return ErrSlotTaken
			case patientSlotConstraint:
				return ErrPatientBusy
			}
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// Get fetches one appointment.
func (l *PostgresLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(l.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select: %w", err)
	}
	return appt, nil
}

// SlotTaken reports whether the party holds an active appointment at date and slot.
func (l *PostgresLedger) SlotTaken(ctx context.Context, party Party, id uuid.UUID, date time.Time, slot string) (bool, error) {
	column := "doctor_id"
	if party == PartyPatient {
		column = "patient_id"
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE ` + column + ` = $1 AND appointment_date = $2 AND appointment_time = $3
				AND status IN ('pending', 'confirmed')
		)
	`
	var taken bool
	if err := l.pool.QueryRow(ctx, query, id, date, slot).Scan(&taken); err != nil {
		return false, fmt.Errorf("appointments: slot check: %w", err)
	}
	return taken, nil
}

// ListByPatient returns the patient's appointments, latest first.
func (l *PostgresLedger) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC`
	return l.list(ctx, query, patientID)
}

// ListByDoctor returns the doctor's appointments, earliest first.
func (l *PostgresLedger) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE doctor_id = $1
		ORDER BY appointment_date, appointment_time`
	return l.list(ctx, query, doctorID)
}

// BookedSlots lists the doctor's held slots on date.
func (l *PostgresLedger) BookedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	query := `
		SELECT appointment_time FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status IN ('pending', 'confirmed')
		ORDER BY appointment_time
	`
	rows, err := l.pool.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	defer rows.Close()

	slots := []string{}
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Cancel marks an active appointment cancelled in a single conditional update.
func (l *PostgresLedger) Cancel(ctx context.Context, id uuid.UUID, by CancelledBy, reason string, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancelled_by = $2, cancellation_reason = $3, updated_at = $4
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING ` + appointmentColumns
	appt, err := scanAppointment(l.pool.QueryRow(ctx, query, id, string(by), reason, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotApplied
		}
		return nil, fmt.Errorf("appointments: cancel: %w", err)
	}
	return appt, nil
}

// Transition moves an appointment from one status to another when it is
// still in from.
func (l *PostgresLedger) Transition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns
	appt, err := scanAppointment(l.pool.QueryRow(ctx, query, id, string(from), string(to), at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotApplied
		}
		return nil, fmt.Errorf("appointments: transition: %w", err)
	}
	return appt, nil
}

func (l *PostgresLedger) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := []*Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, cancelledBy string
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.DoctorProfileID,
		&a.Date,
		&a.Slot,
		&a.Reason,
		&a.Notes,
		&a.ConsultationFee,
		&status,
		&cancelledBy,
		&a.CancellationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.CancelledBy = CancelledBy(cancelledBy)
	return &a, nil
}
