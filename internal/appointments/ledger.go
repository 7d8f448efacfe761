package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is the durable store of appointments. Implementations must reject a
// second active (pending or confirmed) appointment for the same doctor or the
// same patient on one date and slot, returning ErrSlotTaken or ErrPatientBusy.
type Ledger interface {
	Insert(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SlotTaken(ctx context.Context, party Party, id uuid.UUID, date time.Time, slot string) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error)
	BookedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	// Cancel applies only while the appointment is active; otherwise it
	// returns errNotApplied.
	Cancel(ctx context.Context, id uuid.UUID, by CancelledBy, reason string, at time.Time) (*Appointment, error)
	// Transition applies only while the appointment is in from; otherwise it
	// returns errNotApplied.
	Transition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error)
}

type slotKey struct {
	party Party
	id    uuid.UUID
	date  string
	slot  string
}

// MemoryLedger is a thread-safe in-memory Ledger used in tests and local
// development. It enforces the same slot exclusivity as the database indexes.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Appointment
	active  map[slotKey]uuid.UUID
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[uuid.UUID]*Appointment),
		active:  make(map[slotKey]uuid.UUID),
	}
}

func keysFor(a *Appointment) (doctor, patient slotKey) {
	date := a.Date.Format("2006-01-02")
	return slotKey{PartyDoctor, a.DoctorID, date, a.Slot}, slotKey{PartyPatient, a.PatientID, date, a.Slot}
}

// Insert stores a new appointment.
func (l *MemoryLedger) Insert(ctx context.Context, appt *Appointment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doctorKey, patientKey := keysFor(appt)
	if appt.Status.Active() {
		if _, taken := l.active[doctorKey]; taken {
			return ErrSlotTaken
		}
		if _, taken := l.active[patientKey]; taken {
			return ErrPatientBusy
		}
		l.active[doctorKey] = appt.ID
		l.active[patientKey] = appt.ID
	}
	copied := *appt
	l.entries[appt.ID] = &copied
	return nil
}

// Get returns a copy of the appointment.
func (l *MemoryLedger) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	appt, ok := l.entries[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *appt
	return &copied, nil
}

// SlotTaken reports whether party id holds an active appointment at date and slot.
func (l *MemoryLedger) SlotTaken(ctx context.Context, party Party, id uuid.UUID, date time.Time, slot string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, taken := l.active[slotKey{party, id, date.Format("2006-01-02"), slot}]
	return taken, nil
}

// ListByPatient returns the patient's appointments, latest first.
func (l *MemoryLedger) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	out := l.filter(func(a *Appointment) bool { return a.PatientID == patientID })
	sort.Slice(out, func(i, j int) bool { return later(out[i], out[j]) })
	return out, nil
}

// ListByDoctor returns the doctor's appointments, earliest first.
func (l *MemoryLedger) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Appointment, error) {
	out := l.filter(func(a *Appointment) bool { return a.DoctorID == doctorID })
	sort.Slice(out, func(i, j int) bool { return later(out[j], out[i]) })
	return out, nil
}

// BookedSlots lists the doctor's held slots on date, in order.
func (l *MemoryLedger) BookedSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	day := date.Format("2006-01-02")
	slots := []string{}
	for _, a := range l.filter(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Status.Active() && a.Date.Format("2006-01-02") == day
	}) {
		slots = append(slots, a.Slot)
	}
	sort.Strings(slots)
	return slots, nil
}

// Cancel marks an active appointment cancelled and frees its slot.
func (l *MemoryLedger) Cancel(ctx context.Context, id uuid.UUID, by CancelledBy, reason string, at time.Time) (*Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	appt, ok := l.entries[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if !appt.Status.Active() {
		return nil, errNotApplied
	}
	l.release(appt)
	appt.Status = StatusCancelled
	appt.CancelledBy = by
	appt.CancellationReason = reason
	appt.UpdatedAt = at
	copied := *appt
	return &copied, nil
}

// Transition moves an appointment from one status to another.
func (l *MemoryLedger) Transition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	appt, ok := l.entries[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status != from {
		return nil, errNotApplied
	}
	if !to.Active() {
		l.release(appt)
	}
	appt.Status = to
	appt.UpdatedAt = at
	copied := *appt
	return &copied, nil
}

// release frees the slot keys held by appt. Callers hold l.mu.
func (l *MemoryLedger) release(appt *Appointment) {
	doctorKey, patientKey := keysFor(appt)
	if l.active[doctorKey] == appt.ID {
		delete(l.active, doctorKey)
	}
	if l.active[patientKey] == appt.ID {
		delete(l.active, patientKey)
	}
}

func (l *MemoryLedger) filter(keep func(*Appointment) bool) []*Appointment {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []*Appointment{}
	for _, a := range l.entries {
		if keep(a) {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out
}

func later(a, b *Appointment) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.Slot > b.Slot
}
