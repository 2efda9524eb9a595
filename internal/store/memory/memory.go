// Package memory is an in-process implementation of the store contracts. It
// enforces the same constraints as the Postgres schema: unique (date, time)
// slots, appointments referencing an existing patient, and cascade on
// patient delete.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

type Store struct {
	mu                sync.RWMutex
	lastPatientID     int64
	lastAppointmentID int64
	patients          map[int64]domain.Patient
	appointments      map[int64]domain.Appointment
}

func New() *Store {
	return &Store{
		patients:     make(map[int64]domain.Patient),
		appointments: make(map[int64]domain.Appointment),
	}
}

func (s *Store) Patients() *PatientRepo {
	return &PatientRepo{s: s}
}

func (s *Store) Appointments() *AppointmentRepo {
	return &AppointmentRepo{s: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type PatientRepo struct {
	s *Store
}

func (r *PatientRepo) Create(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	r.s.lastPatientID++
	m := domain.Patient{
		ID:        r.s.lastPatientID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.patients[m.ID] = m
	return m, nil
}

func (r *PatientRepo) List(ctx context.Context) ([]domain.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Patient, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PatientRepo) Get(ctx context.Context, id int64) (domain.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return domain.Patient{}, store.ErrPatientNotFound
	}
	return p, nil
}

func (r *PatientRepo) GetMany(ctx context.Context, ids []int64) ([]domain.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Patient, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.patients[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PatientRepo) Update(ctx context.Context, id int64, patch store.PatientPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[id]
	if !ok {
		return store.ErrPatientNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	p.UpdatedAt = time.Now().UTC()
	r.s.patients[id] = p
	return nil
}

func (r *PatientRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[id]; !ok {
		return store.ErrPatientNotFound
	}
	delete(r.s.patients, id)
	for apptID, a := range r.s.appointments {
		if a.PatientID == id {
			delete(r.s.appointments, apptID)
		}
	}
	return nil
}

type AppointmentRepo struct {
	s *Store
}

// checkWrite mirrors the foreign key and unique constraints. Callers hold the write lock.
func (r *AppointmentRepo) checkWrite(a domain.Appointment) error {
	if _, ok := r.s.patients[a.PatientID]; !ok {
		return store.ErrPatientNotFound
	}
	if r.slotTakenLocked(a.Slot(), a.ID) {
		return store.ErrDuplicateSlot
	}
	return nil
}

func (r *AppointmentRepo) slotTakenLocked(slot domain.Slot, excludeID int64) bool {
	for id, a := range r.s.appointments {
		if id != excludeID && a.Date == slot.Date && a.Time == slot.Time {
			return true
		}
	}
	return false
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := domain.Appointment{
		Date:      appt.Date,
		Time:      appt.Time,
		Reason:    appt.Reason,
		PatientID: appt.PatientID,
	}
	if err := r.checkWrite(m); err != nil {
		return domain.Appointment{}, err
	}

	now := time.Now().UTC()
	r.s.lastAppointmentID++
	m.ID = r.s.lastAppointmentID
	m.CreatedAt = now
	m.UpdatedAt = now
	r.s.appointments[m.ID] = m
	return m, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id int64) (domain.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrAppointmentNotFound
	}
	return a, nil
}

func (r *AppointmentRepo) SlotTaken(ctx context.Context, slot domain.Slot, excludeID int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.slotTakenLocked(slot, excludeID), nil
}

func (r *AppointmentRepo) List(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var patientIDs map[int64]struct{}
	if len(filter.PatientIDs) > 0 {
		patientIDs = make(map[int64]struct{}, len(filter.PatientIDs))
		for _, id := range filter.PatientIDs {
			patientIDs[id] = struct{}{}
		}
	}

	out := make([]domain.Appointment, 0)
	for _, a := range r.s.appointments {
		if filter.Date != "" && a.Date != filter.Date {
			continue
		}
		if filter.PatientID != 0 && a.PatientID != filter.PatientID {
			continue
		}
		if patientIDs != nil {
			if _, ok := patientIDs[a.PatientID]; !ok {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AppointmentRepo) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.appointments[appt.ID]
	if !ok {
		return domain.Appointment{}, store.ErrAppointmentNotFound
	}
	m.Date = appt.Date
	m.Time = appt.Time
	m.Reason = appt.Reason
	m.PatientID = appt.PatientID
	if err := r.checkWrite(m); err != nil {
		return domain.Appointment{}, err
	}
	m.UpdatedAt = time.Now().UTC()
	r.s.appointments[m.ID] = m
	return m, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.appointments[id]; !ok {
		return store.ErrAppointmentNotFound
	}
	delete(r.s.appointments, id)
	return nil
}
