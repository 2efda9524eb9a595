package store

import (
	"context"

	"carebook/backend/internal/domain"
)

// PatientPatch carries the columns a partial update should touch. Nil fields
// are left as they are.
type PatientPatch struct {
	Name  *string
	Email *string
	Phone *string
}

func (p PatientPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil
}

type PatientRepository interface {
	Create(ctx context.Context, p domain.Patient) (domain.Patient, error)
	List(ctx context.Context) ([]domain.Patient, error)
	Get(ctx context.Context, id int64) (domain.Patient, error)
	GetMany(ctx context.Context, ids []int64) ([]domain.Patient, error)
	Update(ctx context.Context, id int64, patch PatientPatch) error
	Delete(ctx context.Context, id int64) error
}
