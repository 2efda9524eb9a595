package rest

import (
	"log/slog"
	"net/http"
	"strings"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/service/appointments"
)

type appointmentHandler struct {
	svc appointmentService
	log *slog.Logger
}

// list serves GET /appointments. The optional date and patientId query
// parameters are combined with AND.
func (h *appointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	rawPatient := strings.TrimSpace(q.Get("patientId"))

	f := appointments.Filter{Date: date}
	if rawPatient != "" {
		id, err := parseID(rawPatient, "patientId")
		if err != nil {
			writeError(w, r, h.log, "appointments list", err)
			return
		}
		f.PatientID = id
	}

	var (
		appts []domain.Appointment
		err   error
	)
	if f == (appointments.Filter{}) {
		appts, err = h.svc.List(r.Context())
	} else {
		appts, err = h.svc.Find(r.Context(), f)
	}
	if err != nil {
		writeError(w, r, h.log, "appointments list", err)
		return
	}
	out := toAppointmentResponses(appts)

	h.log.Debug("appointments listed",
		slog.String("date", f.Date),
		slog.Int64("patient_id", f.PatientID),
		slog.Int("count", len(out)),
	)
	writeJSON(w, http.StatusOK, out)
}

func (h *appointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, "appointment create", err)
		return
	}

	appt, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, r, h.log, "appointment", err)
		return
	}

	h.log.Info("appointment created",
		slog.Int64("appointment_id", appt.ID),
		slog.Int64("patient_id", appt.PatientID),
		slog.String("slot", appt.Slot().String()),
	)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *appointmentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "appointment get", err)
		return
	}
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, "appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "appointment update", err)
		return
	}
	var req updateAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, "appointment update", err)
		return
	}

	appt, err := h.svc.Update(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, h.log, "appointment", err)
		return
	}

	h.log.Info("appointment updated",
		slog.Int64("appointment_id", appt.ID),
		slog.String("slot", appt.Slot().String()),
	)
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "appointment delete", err)
		return
	}
	appt, err := h.svc.Remove(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, "appointment", err)
		return
	}

	h.log.Info("appointment deleted",
		slog.Int64("appointment_id", appt.ID),
		slog.Int64("patient_id", appt.PatientID),
	)
	writeJSON(w, http.StatusOK, deleteResponse{ID: appt.ID, Deleted: true})
}
