package appointments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Aakritii15/Aakriti-Kafle-Healthcare-Appointment-System-Backend/internal/identity"
)

func asCaller(r *http.Request, p identity.Principal) *http.Request {
	return r.WithContext(identity.WithPrincipal(r.Context(), p))
}

func withRouteID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestBookHandler(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)
	p := patient()

	body := `{"doctorId":"` + doctor.ProfileID.String() + `","appointmentDate":"2099-01-10","appointmentTime":"10:00","reason":"checkup"}`
	req := asCaller(httptest.NewRequest(http.MethodPost, "/appointments/book", strings.NewReader(body)), p)
	w := httptest.NewRecorder()
	handler.Book(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Message     string `json:"message"`
		Appointment struct {
			Status          string `json:"status"`
			ConsultationFee int64  `json:"consultationFee"`
			AppointmentTime string `json:"appointmentTime"`
		} `json:"appointment"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Appointment.Status != "pending" || resp.Appointment.ConsultationFee != 500 || resp.Appointment.AppointmentTime != "10:00" {
		t.Fatalf("unexpected appointment: %+v", resp.Appointment)
	}

	req = asCaller(httptest.NewRequest(http.MethodPost, "/appointments/book", strings.NewReader(body)), patient())
	w = httptest.NewRecorder()
	handler.Book(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken slot, got %d", w.Code)
	}
}

func TestBookHandler_ErrorMapping(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)
	self := identity.Principal{UserID: doctor.AccountID, Role: identity.RoleDoctor}

	tests := []struct {
		name   string
		caller identity.Principal
		body   string
		want   int
	}{
		{"malformed json", patient(), `{"doctorId":`, http.StatusBadRequest},
		{"missing fields", patient(), `{}`, http.StatusBadRequest},
		{"unknown doctor", patient(), `{"doctorId":"` + uuid.NewString() + `","appointmentDate":"2099-01-10","appointmentTime":"10:00","reason":"x"}`, http.StatusNotFound},
		{"self booking", self, `{"doctorId":"` + doctor.ProfileID.String() + `","appointmentDate":"2099-01-10","appointmentTime":"10:00","reason":"x"}`, http.StatusBadRequest},
		{"past slot", patient(), `{"doctorId":"` + doctor.ProfileID.String() + `","appointmentDate":"2000-01-10","appointmentTime":"10:00","reason":"x"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := asCaller(httptest.NewRequest(http.MethodPost, "/appointments/book", strings.NewReader(tt.body)), tt.caller)
			w := httptest.NewRecorder()
			handler.Book(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestBookHandler_RequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)

	w := httptest.NewRecorder()
	handler.Book(w, httptest.NewRequest(http.MethodPost, "/appointments/book", strings.NewReader(`{}`)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCancelHandler(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)
	p := patient()
	booked, err := f.svc.Book(context.Background(), p, bookReq(doctor.ProfileID, "2099-01-10", "10:00"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	id := booked.ID.String()

	req := withRouteID(asCaller(httptest.NewRequest(http.MethodPut, "/appointments/"+id+"/cancel", nil), patient()), id)
	w := httptest.NewRecorder()
	handler.Cancel(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", w.Code)
	}

	req = withRouteID(asCaller(httptest.NewRequest(http.MethodPut, "/appointments/"+id+"/cancel", strings.NewReader(`{"reason":"sick"}`)), p), id)
	w = httptest.NewRecorder()
	handler.Cancel(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeMessage(t, w)
	appt := body["appointment"].(map[string]any)
	if appt["status"] != "cancelled" || appt["cancelledBy"] != "patient" || appt["cancellationReason"] != "sick" {
		t.Fatalf("unexpected cancellation: %+v", appt)
	}

	req = withRouteID(asCaller(httptest.NewRequest(http.MethodPut, "/appointments/"+id+"/cancel", nil), p), id)
	w = httptest.NewRecorder()
	handler.Cancel(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for repeat cancel, got %d", w.Code)
	}
}

func TestCancelHandler_ReasonFields(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"cancellationReason", `{"cancellationReason":"travelling"}`, "travelling"},
		{"legacy reason", `{"reason":"sick"}`, "sick"},
		{"both prefers cancellationReason", `{"cancellationReason":"travelling","reason":"sick"}`, "travelling"},
		{"empty body", ``, DefaultCancellationReason},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := patient()
			slot := fmt.Sprintf("1%d:00", i)
			booked, err := f.svc.Book(context.Background(), p, bookReq(doctor.ProfileID, "2099-01-10", slot))
			if err != nil {
				t.Fatalf("book: %v", err)
			}
			id := booked.ID.String()

			req := withRouteID(asCaller(httptest.NewRequest(http.MethodPut, "/appointments/"+id+"/cancel", strings.NewReader(tt.body)), p), id)
			w := httptest.NewRecorder()
			handler.Cancel(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			appt := decodeMessage(t, w)["appointment"].(map[string]any)
			if appt["cancellationReason"] != tt.want {
				t.Fatalf("expected reason %q, got %v", tt.want, appt["cancellationReason"])
			}
		})
	}
}

func TestGetHandler_NotFound(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)

	for _, id := range []string{uuid.NewString(), "garbage"} {
		req := withRouteID(asCaller(httptest.NewRequest(http.MethodGet, "/appointments/"+id, nil), patient()), id)
		w := httptest.NewRecorder()
		handler.Get(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("id %s: expected 404, got %d", id, w.Code)
		}
	}
}

func TestConfirmHandler(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)
	booked, err := f.svc.Book(context.Background(), patient(), bookReq(doctor.ProfileID, "2099-01-10", "10:00"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	id := booked.ID.String()
	doctorCaller := identity.Principal{UserID: doctor.AccountID, Role: identity.RoleDoctor}

	req := withRouteID(asCaller(httptest.NewRequest(http.MethodPut, "/appointments/"+id+"/confirm", nil), doctorCaller), id)
	w := httptest.NewRecorder()
	handler.Confirm(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	req = withRouteID(asCaller(httptest.NewRequest(http.MethodPut, "/appointments/"+id+"/complete", nil), doctorCaller), id)
	w = httptest.NewRecorder()
	handler.Complete(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeMessage(t, w)["appointment"].(map[string]any)["status"]; got != "completed" {
		t.Fatalf("expected completed, got %v", got)
	}
}

func TestListHandlers(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)
	p := patient()
	if _, err := f.svc.Book(context.Background(), p, bookReq(doctor.ProfileID, "2099-01-10", "10:00")); err != nil {
		t.Fatalf("book: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Mine(w, asCaller(httptest.NewRequest(http.MethodGet, "/appointments/my", nil), patient()))
	var empty ListResponse
	if err := json.NewDecoder(w.Body).Decode(&empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if empty.Count != 0 || empty.Appointments == nil {
		t.Fatalf("expected empty list, got %+v", empty)
	}

	w = httptest.NewRecorder()
	doctorCaller := identity.Principal{UserID: doctor.AccountID, Role: identity.RoleDoctor}
	handler.DoctorSchedule(w, asCaller(httptest.NewRequest(http.MethodGet, "/doctors/appointments/my", nil), doctorCaller))
	var schedule ListResponse
	if err := json.NewDecoder(w.Body).Decode(&schedule); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if schedule.Count != 1 {
		t.Fatalf("expected 1 appointment, got %d", schedule.Count)
	}
}

func TestBookedSlotsHandler(t *testing.T) {
	f := newFixture(t)
	handler := NewHandler(f.svc, nil)
	doctor := f.directory.add(500)
	if _, err := f.svc.Book(context.Background(), patient(), bookReq(doctor.ProfileID, "2099-01-10", "10:00")); err != nil {
		t.Fatalf("book: %v", err)
	}

	w := httptest.NewRecorder()
	handler.BookedSlots(w, httptest.NewRequest(http.MethodGet, "/appointments/booked-slots?doctorId="+doctor.ProfileID.String()+"&date=2099-01-10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp BookedSlotsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Date != "2099-01-10" || len(resp.BookedSlots) != 1 || resp.BookedSlots[0] != "10:00" {
		t.Fatalf("unexpected slots: %+v", resp)
	}

	w = httptest.NewRecorder()
	handler.BookedSlots(w, httptest.NewRequest(http.MethodGet, "/appointments/booked-slots?date=2099-01-10", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without doctorId, got %d", w.Code)
	}
}
