package appointments

import (
	"context"
	"sort"
	"strings"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/observability/metrics"
	"carebook/backend/internal/store"
	"carebook/backend/internal/validation"
)

const entity = "appointment"

// Service schedules appointments. It checks that the owning patient exists
// and that no other appointment holds the requested slot before writing. The
// check is a fast-path rejection only: the storage unique constraint on
// (date, time) decides races, and its violation surfaces as the same
// store.ErrDuplicateSlot.
type Service struct {
	repo     store.AppointmentRepository
	patients store.PatientRepository
	metrics  *metrics.SchedulingMetrics
}

func NewService(repo store.AppointmentRepository, patients store.PatientRepository, m *metrics.SchedulingMetrics) *Service {
	return &Service{repo: repo, patients: patients, metrics: m}
}

type CreateInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,clock"`
	Reason    string `json:"reason" validate:"required"`
	PatientID int64  `json:"patientId" validate:"required,gt=0"`
}

// Validate checks field shapes and returns the trimmed input with the time
// normalized to HH:MM.
func (in CreateInput) Validate() (CreateInput, error) {
	out := CreateInput{
		Date:      strings.TrimSpace(in.Date),
		Time:      strings.TrimSpace(in.Time),
		Reason:    strings.TrimSpace(in.Reason),
		PatientID: in.PatientID,
	}
	if err := validation.Struct(out); err != nil {
		return out, err
	}
	out.Time = minuteOf(out.Time)
	return out, nil
}

// UpdateInput is a partial update: nil fields keep their stored value.
type UpdateInput struct {
	Date      *string `json:"date" validate:"omitnil,required,datetime=2006-01-02"`
	Time      *string `json:"time" validate:"omitnil,required,clock"`
	Reason    *string `json:"reason" validate:"omitnil,required"`
	PatientID *int64  `json:"patientId" validate:"omitnil,gt=0"`
}

func (in UpdateInput) Validate() (UpdateInput, error) {
	out := UpdateInput{
		Date:   trimmed(in.Date),
		Time:   trimmed(in.Time),
		Reason: trimmed(in.Reason),
	}
	if in.PatientID != nil {
		v := *in.PatientID
		out.PatientID = &v
	}
	if err := validation.Struct(out); err != nil {
		return out, err
	}
	if out.Time != nil {
		v := minuteOf(*out.Time)
		out.Time = &v
	}
	return out, nil
}

func (in UpdateInput) changesSlot() bool {
	return in.Date != nil || in.Time != nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// minuteOf drops the seconds of an already validated time of day.
func minuteOf(value string) string {
	if t, err := domain.ParseTime(value); err == nil {
		return t
	}
	return value
}

// Filter narrows Find. Zero values are ignored; set fields are combined with AND.
type Filter struct {
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	PatientID int64  `json:"patientId" validate:"gte=0"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (appt domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "create", err) }()

	in, err = in.Validate()
	if err != nil {
		return domain.Appointment{}, err
	}

	patient, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		return domain.Appointment{}, err
	}

	slot := domain.Slot{Date: in.Date, Time: in.Time}
	taken, err := s.repo.SlotTaken(ctx, slot, 0)
	if err != nil {
		return domain.Appointment{}, err
	}
	if taken {
		return domain.Appointment{}, store.ErrDuplicateSlot
	}

	appt, err = s.repo.Create(ctx, domain.Appointment{
		Date:      in.Date,
		Time:      in.Time,
		Reason:    in.Reason,
		PatientID: patient.ID,
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	appt.Patient = &patient
	return appt, nil
}

// List returns every appointment in chronological order.
func (s *Service) List(ctx context.Context) (out []domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "list", err) }()
	return s.list(ctx, store.AppointmentFilter{})
}

func (s *Service) Get(ctx context.Context, id int64) (appt domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "get", err) }()

	appt, err = s.repo.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	patient, err := s.patients.Get(ctx, appt.PatientID)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt.Patient = &patient
	return appt, nil
}

// ListByPatient returns the patient's appointments in chronological order. An
// unknown patient owns nothing, so the result is empty rather than an error.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) (out []domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "list_by_patient", err) }()
	return s.list(ctx, store.AppointmentFilter{PatientID: patientID})
}

func (s *Service) Find(ctx context.Context, f Filter) (out []domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "find", err) }()

	f.Date = strings.TrimSpace(f.Date)
	if err := validation.Struct(f); err != nil {
		return nil, err
	}
	return s.list(ctx, store.AppointmentFilter{Date: f.Date, PatientID: f.PatientID})
}

func (s *Service) list(ctx context.Context, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	appts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return []domain.Appointment{}, nil
	}
	if err := s.attachPatients(ctx, appts); err != nil {
		return nil, err
	}
	sortChronologically(appts)
	return appts, nil
}

// attachPatients loads every referenced patient with a single query.
func (s *Service) attachPatients(ctx context.Context, appts []domain.Appointment) error {
	seen := make(map[int64]struct{}, len(appts))
	ids := make([]int64, 0, len(appts))
	for _, a := range appts {
		if _, ok := seen[a.PatientID]; ok {
			continue
		}
		seen[a.PatientID] = struct{}{}
		ids = append(ids, a.PatientID)
	}

	patients, err := s.patients.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]*domain.Patient, len(patients))
	for i := range patients {
		byID[patients[i].ID] = &patients[i]
	}
	for i := range appts {
		appts[i].Patient = byID[appts[i].PatientID]
	}
	return nil
}

// sortChronologically enforces (date, time) ascending with id as the
// tie-breaker, whatever order the repository produced.
func sortChronologically(appts []domain.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		a, b := appts[i], appts[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.ID < b.ID
	})
}

// Update applies a partial update. When date or time is supplied the slot
// check runs against the resulting pair, so changing only the time cannot
// collide silently with another appointment on the unchanged date.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (appt domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "update", err) }()

	in, err = in.Validate()
	if err != nil {
		return domain.Appointment{}, err
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	next := current
	var patient *domain.Patient
	if in.PatientID != nil {
		p, err := s.patients.Get(ctx, *in.PatientID)
		if err != nil {
			return domain.Appointment{}, err
		}
		next.PatientID = p.ID
		patient = &p
	}
	if in.Date != nil {
		next.Date = *in.Date
	}
	if in.Time != nil {
		next.Time = *in.Time
	}
	if in.Reason != nil {
		next.Reason = *in.Reason
	}

	if in.changesSlot() {
		taken, err := s.repo.SlotTaken(ctx, next.Slot(), current.ID)
		if err != nil {
			return domain.Appointment{}, err
		}
		if taken {
			return domain.Appointment{}, store.ErrDuplicateSlot
		}
	}

	appt, err = s.repo.Update(ctx, next)
	if err != nil {
		return domain.Appointment{}, err
	}

	if patient == nil {
		p, err := s.patients.Get(ctx, appt.PatientID)
		if err != nil {
			return domain.Appointment{}, err
		}
		patient = &p
	}
	appt.Patient = patient
	return appt, nil
}

// Remove fetches then deletes, so a missing id reports
// store.ErrAppointmentNotFound. The removed appointment is returned as the
// deletion acknowledgment.
func (s *Service) Remove(ctx context.Context, id int64) (appt domain.Appointment, err error) {
	defer func() { s.metrics.Observe(entity, "remove", err) }()

	appt, err = s.repo.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}
