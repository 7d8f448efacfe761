package events

import "time"

// Appointment event types published to the queue.
const (
	AppointmentBooked    = "appointment.booked"
	AppointmentCancelled = "appointment.cancelled"
	AppointmentConfirmed = "appointment.confirmed"
	AppointmentCompleted = "appointment.completed"
)

// AppointmentEventV1 is the message body for every appointment event.
type AppointmentEventV1 struct {
	EventID         string    `json:"event_id"`
	EventType       string    `json:"event_type"`
	AppointmentID   string    `json:"appointment_id"`
	PatientID       string    `json:"patient_id"`
	DoctorID        string    `json:"doctor_id"`
	DoctorProfileID string    `json:"doctor_profile_id"`
	Date            string    `json:"appointment_date"`
	Slot            string    `json:"appointment_time"`
	Status          string    `json:"status"`
	ConsultationFee int64     `json:"consultation_fee"`
	CancelledBy     string    `json:"cancelled_by,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
