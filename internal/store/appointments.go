package store

import (
	"context"

	"carebook/backend/internal/domain"
)

// AppointmentFilter narrows a listing. Zero values mean no constraint; set
// fields are combined with AND.
type AppointmentFilter struct {
	Date       string
	PatientID  int64
	PatientIDs []int64
}

// AppointmentRepository lists are always ordered by date, time, then id.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Get(ctx context.Context, id int64) (domain.Appointment, error)
	// SlotTaken reports whether an appointment other than excludeID holds the
	// slot. Pass 0 to consider every appointment.
	SlotTaken(ctx context.Context, slot domain.Slot, excludeID int64) (bool, error)
	List(ctx context.Context, filter AppointmentFilter) ([]domain.Appointment, error)
	Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Delete(ctx context.Context, id int64) error
}
