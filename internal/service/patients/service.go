package patients

import (
	"context"
	"strings"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/observability/metrics"
	"carebook/backend/internal/store"
	"carebook/backend/internal/validation"
)

const entity = "patient"

// Service owns patient records. Appointments are attached with an explicit
// second query so the fetch cost stays visible.
type Service struct {
	repo         store.PatientRepository
	appointments store.AppointmentRepository
	metrics      *metrics.SchedulingMetrics
}

func NewService(repo store.PatientRepository, appointments store.AppointmentRepository, m *metrics.SchedulingMetrics) *Service {
	return &Service{repo: repo, appointments: appointments, metrics: m}
}

type CreateInput struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Validate returns the trimmed input or a *validation.Error listing every
// offending field.
func (in CreateInput) Validate() (CreateInput, error) {
	out := CreateInput{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
	}
	return out, validation.Struct(out)
}

// UpdateInput is a partial update: nil fields keep their stored value.
type UpdateInput struct {
	Name  *string `json:"name" validate:"omitnil,required"`
	Email *string `json:"email" validate:"omitnil,required,email"`
	Phone *string `json:"phone" validate:"omitnil,required"`
}

func (in UpdateInput) Validate() (UpdateInput, error) {
	out := UpdateInput{
		Name:  trimmed(in.Name),
		Email: trimmed(in.Email),
		Phone: trimmed(in.Phone),
	}
	return out, validation.Struct(out)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// Create does not check email uniqueness.
func (s *Service) Create(ctx context.Context, in CreateInput) (p domain.Patient, err error) {
	defer func() { s.metrics.Observe(entity, "create", err) }()

	in, err = in.Validate()
	if err != nil {
		return domain.Patient{}, err
	}

	p, err = s.repo.Create(ctx, domain.Patient{
		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
	})
	if err != nil {
		return domain.Patient{}, err
	}
	p.Appointments = []domain.Appointment{}
	return p, nil
}

func (s *Service) List(ctx context.Context) (out []domain.Patient, err error) {
	defer func() { s.metrics.Observe(entity, "list", err) }()

	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(patients) == 0 {
		return []domain.Patient{}, nil
	}

	ids := make([]int64, 0, len(patients))
	for _, p := range patients {
		ids = append(ids, p.ID)
	}
	appts, err := s.appointments.List(ctx, store.AppointmentFilter{PatientIDs: ids})
	if err != nil {
		return nil, err
	}
	byPatient := make(map[int64][]domain.Appointment, len(patients))
	for _, a := range appts {
		byPatient[a.PatientID] = append(byPatient[a.PatientID], a)
	}

	out = make([]domain.Patient, 0, len(patients))
	for _, p := range patients {
		p.Appointments = byPatient[p.ID]
		if p.Appointments == nil {
			p.Appointments = []domain.Appointment{}
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (p domain.Patient, err error) {
	defer func() { s.metrics.Observe(entity, "get", err) }()
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id int64) (domain.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Patient{}, err
	}
	appts, err := s.appointments.List(ctx, store.AppointmentFilter{PatientID: id})
	if err != nil {
		return domain.Patient{}, err
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	p.Appointments = appts
	return p, nil
}

// Update applies the supplied fields and returns the re-read patient.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (p domain.Patient, err error) {
	defer func() { s.metrics.Observe(entity, "update", err) }()

	in, err = in.Validate()
	if err != nil {
		return domain.Patient{}, err
	}

	patch := store.PatientPatch{Name: in.Name, Email: in.Email, Phone: in.Phone}
	if !patch.Empty() {
		if err := s.repo.Update(ctx, id, patch); err != nil {
			return domain.Patient{}, err
		}
	}
	return s.get(ctx, id)
}

// Remove deletes the patient and, through the storage cascade, every
// appointment it owns. A missing id reports store.ErrPatientNotFound.
func (s *Service) Remove(ctx context.Context, id int64) (err error) {
	defer func() { s.metrics.Observe(entity, "remove", err) }()
	return s.repo.Delete(ctx, id)
}
