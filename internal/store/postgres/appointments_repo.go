package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

const appointmentOrder = `"date" ASC, "time" ASC, "id" ASC`

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		Date:      appt.Date,
		Time:      appt.Time,
		Reason:    appt.Reason,
		PatientID: appt.PatientID,
	}
	if _, err := r.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Appointment{}, appointmentWriteError(err)
	}
	return m, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id int64) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.db.NewSelect().
		Model(&m).
		Where(`"id" = ?`, id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrAppointmentNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) SlotTaken(ctx context.Context, slot domain.Slot, excludeID int64) (bool, error) {
	q := r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where(`"date" = ?`, slot.Date).
		Where(`"time" = ?`, slot.Time)
	if excludeID != 0 {
		q = q.Where(`"id" <> ?`, excludeID)
	}
	return q.Exists(ctx)
}

func (r *AppointmentRepo) List(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)
	if filter.Date != "" {
		q = q.Where(`"date" = ?`, filter.Date)
	}
	if filter.PatientID != 0 {
		q = q.Where(`"patient_id" = ?`, filter.PatientID)
	}
	if len(filter.PatientIDs) > 0 {
		q = q.Where(`"patient_id" IN (?)`, bun.In(filter.PatientIDs))
	}
	if err := q.OrderExpr(appointmentOrder).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:        appt.ID,
		Date:      appt.Date,
		Time:      appt.Time,
		Reason:    appt.Reason,
		PatientID: appt.PatientID,
	}
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("date", "time", "reason", "patient_id", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrAppointmentNotFound
		}
		return domain.Appointment{}, appointmentWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrAppointmentNotFound
	}
	return m, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where(`"id" = ?`, id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrAppointmentNotFound
	}
	return nil
}
