package rest

import (
	"time"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/service/patients"
)

// Request bodies also accept the Spanish field names (nombre, telefono,
// fecha, hora, razon, pacienteId) sent by clients of the /pacientes and
// /turnos routes. The English name wins when both are present.

type createPatientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`

	Nombre   string `json:"nombre"`
	Telefono string `json:"telefono"`
}

func (r createPatientRequest) input() patients.CreateInput {
	return patients.CreateInput{
		Name:  either(r.Name, r.Nombre),
		Email: r.Email,
		Phone: either(r.Phone, r.Telefono),
	}
}

// updatePatientRequest has no appointments field, so clients cannot rewrite
// them through a patient update.
type updatePatientRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`

	Nombre   *string `json:"nombre"`
	Telefono *string `json:"telefono"`
}

func (r updatePatientRequest) input() patients.UpdateInput {
	return patients.UpdateInput{
		Name:  eitherPtr(r.Name, r.Nombre),
		Email: r.Email,
		Phone: eitherPtr(r.Phone, r.Telefono),
	}
}

type createAppointmentRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason"`
	PatientID int64  `json:"patientId"`

	Fecha      string `json:"fecha"`
	Hora       string `json:"hora"`
	Razon      string `json:"razon"`
	PacienteID int64  `json:"pacienteId"`
}

func (r createAppointmentRequest) input() appointments.CreateInput {
	in := appointments.CreateInput{
		Date:      either(r.Date, r.Fecha),
		Time:      either(r.Time, r.Hora),
		Reason:    either(r.Reason, r.Razon),
		PatientID: r.PatientID,
	}
	if in.PatientID == 0 {
		in.PatientID = r.PacienteID
	}
	return in
}

type updateAppointmentRequest struct {
	Date      *string `json:"date"`
	Time      *string `json:"time"`
	Reason    *string `json:"reason"`
	PatientID *int64  `json:"patientId"`

	Fecha      *string `json:"fecha"`
	Hora       *string `json:"hora"`
	Razon      *string `json:"razon"`
	PacienteID *int64  `json:"pacienteId"`
}

func (r updateAppointmentRequest) input() appointments.UpdateInput {
	in := appointments.UpdateInput{
		Date:      eitherPtr(r.Date, r.Fecha),
		Time:      eitherPtr(r.Time, r.Hora),
		Reason:    eitherPtr(r.Reason, r.Razon),
		PatientID: r.PatientID,
	}
	if in.PatientID == nil {
		in.PatientID = r.PacienteID
	}
	return in
}

func either(primary, alias string) string {
	if primary != "" {
		return primary
	}
	return alias
}

func eitherPtr[T any](primary, alias *T) *T {
	if primary != nil {
		return primary
	}
	return alias
}

type patientResponse struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	Email        string                `json:"email"`
	Phone        string                `json:"phone"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	Appointments []appointmentResponse `json:"appointments"`
}

type patientSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type appointmentResponse struct {
	ID        int64           `json:"id"`
	Date      string          `json:"date"`
	Time      string          `json:"time"`
	Reason    string          `json:"reason"`
	PatientID int64           `json:"patientId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Patient   *patientSummary `json:"patient,omitempty"`
}

func toPatientResponse(p domain.Patient) patientResponse {
	appts := make([]appointmentResponse, 0, len(p.Appointments))
	for _, a := range p.Appointments {
		appts = append(appts, toAppointmentResponse(a))
	}
	return patientResponse{
		ID:           p.ID,
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.Phone,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Appointments: appts,
	}
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	out := appointmentResponse{
		ID:        a.ID,
		Date:      a.Date,
		Time:      a.Time,
		Reason:    a.Reason,
		PatientID: a.PatientID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Patient != nil {
		out.Patient = &patientSummary{
			ID:    a.Patient.ID,
			Name:  a.Patient.Name,
			Email: a.Patient.Email,
			Phone: a.Patient.Phone,
		}
	}
	return out
}

func toAppointmentResponses(appts []domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}
