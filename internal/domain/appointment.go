package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Date      string    `bun:"date,notnull"`
	Time      string    `bun:"time,notnull"`
	Reason    string    `bun:"reason,notnull"`
	PatientID int64     `bun:"patient_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	// Patient is attached by the scheduler after an explicit lookup.
	Patient *Patient `bun:"-"`
}

func (a *Appointment) Slot() Slot {
	return Slot{Date: a.Date, Time: a.Time}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
