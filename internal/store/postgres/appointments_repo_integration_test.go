package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
	"carebook/backend/migrations"
)

func TestPostgresIntegration_SlotUniquenessAndCascade(t *testing.T) {
	db := openTestSchema(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	patients := NewPatientRepo(db)
	appts := NewAppointmentRepo(db)

	ana, err := patients.Create(ctx, domain.Patient{Name: "Ana", Email: "ana@x.com", Phone: "111"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	bob, err := patients.Create(ctx, domain.Patient{Name: "Bob", Email: "bob@x.com", Phone: "222"})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}

	first, err := appts.Create(ctx, domain.Appointment{Date: "2025-08-15", Time: "14:30", Reason: "checkup", PatientID: ana.ID})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}

	taken, err := appts.SlotTaken(ctx, first.Slot(), 0)
	if err != nil || !taken {
		t.Fatalf("SlotTaken = %v, %v; want true", taken, err)
	}
	taken, err = appts.SlotTaken(ctx, first.Slot(), first.ID)
	if err != nil || taken {
		t.Fatalf("SlotTaken excluding self = %v, %v; want false", taken, err)
	}

	// The unique constraint rejects a second booking even without the service check.
	_, err = appts.Create(ctx, domain.Appointment{Date: "2025-08-15", Time: "14:30", Reason: "other", PatientID: bob.ID})
	if err != store.ErrDuplicateSlot {
		t.Fatalf("duplicate err = %v, want %v", err, store.ErrDuplicateSlot)
	}

	_, err = appts.Create(ctx, domain.Appointment{Date: "2025-08-16", Time: "09:00", Reason: "x", PatientID: 99999})
	if err != store.ErrPatientNotFound {
		t.Fatalf("fk err = %v, want %v", err, store.ErrPatientNotFound)
	}

	second, err := appts.Create(ctx, domain.Appointment{Date: "2025-08-15", Time: "09:00", Reason: "early", PatientID: bob.ID})
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	second.Time = "14:30"
	if _, err := appts.Update(ctx, second); err != store.ErrDuplicateSlot {
		t.Fatalf("update into taken slot err = %v, want %v", err, store.ErrDuplicateSlot)
	}

	rows, err := appts.List(ctx, store.AppointmentFilter{Date: "2025-08-15"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 || rows[0].Time != "09:00" || rows[1].Time != "14:30" {
		t.Fatalf("rows = %+v, want 09:00 then 14:30", rows)
	}

	phone := "999"
	if err := patients.Update(ctx, ana.ID, store.PatientPatch{Phone: &phone}); err != nil {
		t.Fatalf("update patient: %v", err)
	}
	got, err := patients.Get(ctx, ana.ID)
	if err != nil {
		t.Fatalf("get patient: %v", err)
	}
	if got.Name != "Ana" || got.Email != "ana@x.com" || got.Phone != "999" {
		t.Fatalf("patient = %+v, want only phone changed", got)
	}

	if err := patients.Delete(ctx, ana.ID); err != nil {
		t.Fatalf("delete patient: %v", err)
	}
	if _, err := appts.Get(ctx, first.ID); err != store.ErrAppointmentNotFound {
		t.Fatalf("cascaded appointment err = %v, want %v", err, store.ErrAppointmentNotFound)
	}
	if err := patients.Delete(ctx, ana.ID); err != store.ErrPatientNotFound {
		t.Fatalf("second delete err = %v, want %v", err, store.ErrPatientNotFound)
	}
}

// openTestSchema creates a throw-away schema, applies the embedded up
// migrations into it and returns a handle whose search_path points there.
func openTestSchema(t *testing.T) *bun.DB {
	t.Helper()
	databaseURL := strings.TrimSpace(os.Getenv("CAREBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CAREBOOK_TEST_DATABASE_URL not set")
	}

	admin, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(admin)
	})

	schema := "carebook_test_" + randomHex(t, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := admin.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	u, err := url.Parse(databaseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	db, err := Open(u.String(), PoolConfig{MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("Open schema handle: %v", err)
	}
	// Registered after the schema drop, so it runs first.
	t.Cleanup(func() {
		_ = Close(db)
	})

	if err := applyUpMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func applyUpMigrations(ctx context.Context, db *bun.DB) error {
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}
		if _, err := db.DB.ExecContext(ctx, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
