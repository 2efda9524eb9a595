package rest

import (
	"log/slog"
	"net/http"
)

type patientHandler struct {
	svc          patientService
	appointments appointmentService
	log          *slog.Logger
}

func (h *patientHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, h.log, "patients list", err)
		return
	}
	out := make([]patientResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPatientResponse(p))
	}
	h.log.Debug("patients listed", slog.Int("count", len(out)))
	writeJSON(w, http.StatusOK, out)
}

func (h *patientHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPatientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, "patient create", err)
		return
	}

	p, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, r, h.log, "patient create", err)
		return
	}

	h.log.Info("patient created", slog.Int64("patient_id", p.ID))
	writeJSON(w, http.StatusCreated, toPatientResponse(p))
}

func (h *patientHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "patient get", err)
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, "patient", err)
		return
	}
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (h *patientHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "patient update", err)
		return
	}
	var req updatePatientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, "patient update", err)
		return
	}

	p, err := h.svc.Update(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, h.log, "patient", err)
		return
	}

	h.log.Info("patient updated", slog.Int64("patient_id", p.ID))
	writeJSON(w, http.StatusOK, toPatientResponse(p))
}

func (h *patientHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "patient delete", err)
		return
	}
	if err := h.svc.Remove(r.Context(), id); err != nil {
		writeError(w, r, h.log, "patient", err)
		return
	}

	h.log.Info("patient deleted", slog.Int64("patient_id", id))
	writeJSON(w, http.StatusOK, deleteResponse{ID: id, Deleted: true})
}

func (h *patientHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "patient appointments", err)
		return
	}
	appts, err := h.appointments.ListByPatient(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, "patient appointments", err)
		return
	}
	h.log.Debug("patient appointments listed", slog.Int64("patient_id", id), slog.Int("count", len(appts)))
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

// createAppointment books for the patient in the path; a patientId in the
// body is ignored.
func (h *patientHandler) createAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.log, "appointment create", err)
		return
	}
	var req createAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, "appointment create", err)
		return
	}

	in := req.input()
	in.PatientID = id
	appt, err := h.appointments.Create(r.Context(), in)
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
