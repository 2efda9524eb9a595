package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"carebook/backend/internal/store"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintAppointmentSlot    = "appointments_slot_key"
	constraintAppointmentPatient = "appointments_patient_id_fkey"
)

// appointmentWriteError maps constraint violations raised by an appointment
// insert or update onto the store error taxonomy. The unique constraint on
// (date, time) is the final authority when two writers race past the
// application-level slot check.
func appointmentWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraintAppointmentSlot:
		return store.ErrDuplicateSlot
	case pgErr.Code == codeForeignKeyViolation && pgErr.ConstraintName == constraintAppointmentPatient:
		return store.ErrPatientNotFound
	}
	return err
}
