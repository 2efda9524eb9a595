package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

type PatientRepo struct {
	db *bun.DB
}

func NewPatientRepo(db *bun.DB) *PatientRepo {
	return &PatientRepo{db: db}
}

func (r *PatientRepo) Create(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	m := domain.Patient{
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	}
	if _, err := r.db.NewInsert().Model(&m).Returning("*").Exec(ctx); err != nil {
		return domain.Patient{}, err
	}
	return m, nil
}

func (r *PatientRepo) List(ctx context.Context) ([]domain.Patient, error) {
	var rows []domain.Patient
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr(`"id" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PatientRepo) Get(ctx context.Context, id int64) (domain.Patient, error) {
	var m domain.Patient
	err := r.db.NewSelect().
		Model(&m).
		Where(`"id" = ?`, id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Patient{}, store.ErrPatientNotFound
		}
		return domain.Patient{}, err
	}
	return m, nil
}

func (r *PatientRepo) GetMany(ctx context.Context, ids []int64) ([]domain.Patient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []domain.Patient
	err := r.db.NewSelect().
		Model(&rows).
		Where(`"id" IN (?)`, bun.In(ids)).
		OrderExpr(`"id" ASC`).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PatientRepo) Update(ctx context.Context, id int64, patch store.PatientPatch) error {
	m := domain.Patient{ID: id}
	columns := make([]string, 0, 4)
	if patch.Name != nil {
		m.Name = *patch.Name
		columns = append(columns, "name")
	}
	if patch.Email != nil {
		m.Email = *patch.Email
		columns = append(columns, "email")
	}
	if patch.Phone != nil {
		m.Phone = *patch.Phone
		columns = append(columns, "phone")
	}
	columns = append(columns, "updated_at")

	res, err := r.db.NewUpdate().
		Model(&m).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrPatientNotFound
	}
	return nil
}

// Delete removes the patient row. Owned appointments go with it through the
// ON DELETE CASCADE foreign key.
func (r *PatientRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*domain.Patient)(nil)).
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
		return store.ErrPatientNotFound
	}
	return nil
}
