// Package compliance keeps an append-only audit trail of privileged actions
// on appointments and accounts.
package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of audited action.
type AuditEventType string

const (
	// EventAppointmentCancelled is logged when any party cancels an appointment.
	EventAppointmentCancelled AuditEventType = "appointment.cancelled"
	// EventDoctorVerified is logged when an admin approves a doctor profile.
	EventDoctorVerified AuditEventType = "doctor.verified"
	// EventDoctorRejected is logged when an admin rejects a doctor profile.
	EventDoctorRejected AuditEventType = "doctor.rejected"
	// EventUserStatusChanged is logged when an admin enables or disables an account.
	EventUserStatusChanged AuditEventType = "user.status_changed"
	// EventAdminSeeded is logged when the configured admin account is reconciled at startup.
	EventAdminSeeded AuditEventType = "admin.seeded"
)

// AuditEvent represents an immutable audit record.
type AuditEvent struct {
	ID        string          `json:"id"`
	EventType AuditEventType  `json:"event_type"`
	ActorID   string          `json:"actor_id,omitempty"`
	SubjectID string          `json:"subject_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	// For appointment cancellation
	CancelledBy        string `json:"cancelled_by,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`

	// For doctor verification
	Decision string `json:"decision,omitempty"`

	// For user status changes
	Active *bool `json:"active,omitempty"`

	// For admin seeding
	Email   string `json:"email,omitempty"`
	Created *bool  `json:"created,omitempty"`
}

// AuditService handles audit logging.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new audit service.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// LogEvent records an audit event. A service without a database is a no-op.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Details) == 0 {
		event.Details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, actor_id, subject_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		nullString(event.ActorID),
		nullString(event.SubjectID),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}

	return nil
}

// LogAppointmentCancelled logs a cancellation with the party that performed it.
func (s *AuditService) LogAppointmentCancelled(ctx context.Context, actorID, appointmentID, cancelledBy, reason string) error {
	details := AuditDetails{
		CancelledBy:        cancelledBy,
		CancellationReason: reason,
	}
	detailsJSON, _ := json.Marshal(details)

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventAppointmentCancelled,
		ActorID:   actorID,
		SubjectID: appointmentID,
		Details:   detailsJSON,
	})
}

// LogDoctorVerification logs an admin decision on a doctor profile.
func (s *AuditService) LogDoctorVerification(ctx context.Context, adminID, profileID string, approved bool) error {
	eventType := EventDoctorRejected
	decision := "rejected"
	if approved {
		eventType = EventDoctorVerified
		decision = "approved"
	}
	detailsJSON, _ := json.Marshal(AuditDetails{Decision: decision})

	return s.LogEvent(ctx, AuditEvent{
		EventType: eventType,
		ActorID:   adminID,
		SubjectID: profileID,
		Details:   detailsJSON,
	})
}

// LogUserStatusChanged logs an admin enabling or disabling an account.
func (s *AuditService) LogUserStatusChanged(ctx context.Context, adminID, userID string, active bool) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Active: &active})

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventUserStatusChanged,
		ActorID:   adminID,
		SubjectID: userID,
		Details:   detailsJSON,
	})
}

// LogAdminSeeded logs the startup reconciliation of the admin account.
func (s *AuditService) LogAdminSeeded(ctx context.Context, adminID, email string, created bool) error {
	detailsJSON, _ := json.Marshal(AuditDetails{Email: email, Created: &created})

	return s.LogEvent(ctx, AuditEvent{
		EventType: EventAdminSeeded,
		SubjectID: adminID,
		Details:   detailsJSON,
	})
}

// QueryEvents retrieves audit events with filters.
func (s *AuditService) QueryEvents(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT id, event_type, actor_id, subject_id, details, created_at
		FROM compliance_audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", argIdx)
		args = append(args, filter.SubjectID)
		argIdx++
	}
	if filter.EventType != "" {
		query += fmt.Sprintf(" AND event_type = $%d", argIdx)
		args = append(args, filter.EventType)
		argIdx++
	}
	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.StartTime)
		argIdx++
	}
	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compliance: failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var actorID, subjectID sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.EventType, &actorID, &subjectID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("compliance: failed to scan audit event: %w", err)
		}
		e.ActorID = actorID.String
		e.SubjectID = subjectID.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compliance: failed to iterate audit events: %w", err)
	}

	return events, nil
}

// AuditFilter specifies criteria for querying audit events.
type AuditFilter struct {
	SubjectID string
	EventType AuditEventType
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
