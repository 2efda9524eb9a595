package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"carebook/backend/internal/observability/metrics"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/service/patients"
	"carebook/backend/internal/store/memory"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	t       *testing.T
	handler http.Handler
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := memory.New()
	reg := prometheus.NewRegistry()
	h := NewRouter(Config{
		Patients:           patients.NewService(s.Patients(), s.Appointments(), nil),
		Appointments:       appointments.NewService(s.Appointments(), s.Patients(), nil),
		Health:             s,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:            metrics.NewHTTPMetrics(reg),
		CORSAllowedOrigins: []string{"*"},
	})
	return &testServer{t: t, handler: h, reg: reg}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestPatientLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/patients", `{"name":"Ana","email":"ana@x.com","phone":"111"}`)
	expectStatus(t, rec, http.StatusCreated)
	if !strings.Contains(rec.Body.String(), `"appointments":[]`) {
		t.Fatalf("body = %s, want an empty appointments array", rec.Body.String())
	}
	created := decode[patientResponse](t, rec)

	rec = srv.do(http.MethodPatch, "/patients/1", `{"phone":"999","appointments":[{"id":5}]}`)
	expectStatus(t, rec, http.StatusOK)
	updated := decode[patientResponse](t, rec)
	if updated.Name != "Ana" || updated.Email != "ana@x.com" || updated.Phone != "999" {
		t.Fatalf("updated = %+v, want only phone changed", updated)
	}
	if updated.ID != created.ID || len(updated.Appointments) != 0 {
		t.Fatalf("updated = %+v", updated)
	}

	rec = srv.do(http.MethodGet, "/patients", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]patientResponse](t, rec); len(list) != 1 {
		t.Fatalf("list = %+v, want 1 patient", list)
	}

	rec = srv.do(http.MethodDelete, "/patients/1", "")
	expectStatus(t, rec, http.StatusOK)
	if del := decode[deleteResponse](t, rec); del.ID != 1 || !del.Deleted {
		t.Fatalf("delete = %+v", del)
	}

	expectStatus(t, srv.do(http.MethodGet, "/patients/1", ""), http.StatusNotFound)
	expectStatus(t, srv.do(http.MethodDelete, "/patients/1", ""), http.StatusNotFound)
}

func TestPatientValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/patients", `{"name":"Ana","email":"nope"}`)
	expectStatus(t, rec, http.StatusBadRequest)
	body := decode[errorResponse](t, rec)
	if len(body.Details) != 2 {
		t.Fatalf("details = %+v, want email and phone violations", body.Details)
	}

	expectStatus(t, srv.do(http.MethodPost, "/patients", `{"name":`), http.StatusBadRequest)
	expectStatus(t, srv.do(http.MethodPost, "/patients", ""), http.StatusBadRequest)
	expectStatus(t, srv.do(http.MethodGet, "/patients/abc", ""), http.StatusBadRequest)
	expectStatus(t, srv.do(http.MethodGet, "/patients/0", ""), http.StatusBadRequest)
}

func TestAppointmentScheduling(t *testing.T) {
	srv := newTestServer(t)
	expectStatus(t, srv.do(http.MethodPost, "/patients", `{"name":"Ana","email":"ana@x.com","phone":"111"}`), http.StatusCreated)

	rec := srv.do(http.MethodPost, "/appointments", `{"date":"2025-08-15","time":"14:30","reason":"checkup","patientId":1}`)
	expectStatus(t, rec, http.StatusCreated)
	appt := decode[appointmentResponse](t, rec)
	if appt.Patient == nil || appt.Patient.Name != "Ana" {
		t.Fatalf("appointment = %+v, want patient attached", appt)
	}

	// Same slot booked again through the nested route.
	expectStatus(t, srv.do(http.MethodPost, "/patients/1/appointments", `{"date":"2025-08-15","time":"14:30:00","reason":"other"}`), http.StatusConflict)

	expectStatus(t, srv.do(http.MethodPost, "/appointments", `{"date":"2025-08-15","time":"10:00","reason":"x","patientId":99999}`), http.StatusNotFound)
	expectStatus(t, srv.do(http.MethodPost, "/appointments", `{"date":"2025-02-30","time":"10:00","reason":"x","patientId":1}`), http.StatusBadRequest)

	rec = srv.do(http.MethodPost, "/patients/1/appointments", `{"date":"2025-08-15","time":"09:00","reason":"early"}`)
	expectStatus(t, rec, http.StatusCreated)

	// Moving the first appointment onto the 09:00 slot collides on the unchanged date.
	expectStatus(t, srv.do(http.MethodPatch, "/appointments/1", `{"time":"09:00"}`), http.StatusConflict)

	rec = srv.do(http.MethodPut, "/appointments/1", `{"time":"15:00"}`)
	expectStatus(t, rec, http.StatusOK)
	moved := decode[appointmentResponse](t, rec)
	if moved.Date != "2025-08-15" || moved.Time != "15:00" || moved.Reason != "checkup" {
		t.Fatalf("moved = %+v", moved)
	}

	rec = srv.do(http.MethodGet, "/appointments?date=2025-08-15&patientId=1", "")
	expectStatus(t, rec, http.StatusOK)
	list := decode[[]appointmentResponse](t, rec)
	if len(list) != 2 || list[0].Time != "09:00" || list[1].Time != "15:00" {
		t.Fatalf("list = %+v, want 09:00 then 15:00", list)
	}

	expectStatus(t, srv.do(http.MethodGet, "/appointments?patientId=x", ""), http.StatusBadRequest)
	expectStatus(t, srv.do(http.MethodGet, "/appointments?date=15-08-2025", ""), http.StatusBadRequest)

	rec = srv.do(http.MethodGet, "/patients/1", "")
	expectStatus(t, rec, http.StatusOK)
	if p := decode[patientResponse](t, rec); len(p.Appointments) != 2 {
		t.Fatalf("patient appointments = %+v, want 2", p.Appointments)
	}

	rec = srv.do(http.MethodDelete, "/appointments/1", "")
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, srv.do(http.MethodDelete, "/appointments/1", ""), http.StatusNotFound)

	expectStatus(t, srv.do(http.MethodDelete, "/patients/1", ""), http.StatusOK)
	rec = srv.do(http.MethodGet, "/patients/1/appointments", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "[]\n" {
		t.Fatalf("body = %q, want empty array after cascade", rec.Body.String())
	}
	expectStatus(t, srv.do(http.MethodGet, "/appointments/2", ""), http.StatusNotFound)
}

func TestHealthz(t *testing.T) {
	h := NewRouter(Config{
		Health: pingerFunc(func(ctx context.Context) error { return errors.New("down") }),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, rec, http.StatusServiceUnavailable)

	srv := newTestServer(t)
	expectStatus(t, srv.do(http.MethodGet, "/healthz", ""), http.StatusOK)
}

func TestCORSPreflightAndRequestID(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/patients", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("request id = %q, want req-123", got)
	}

	rec = srv.do(http.MethodGet, "/patients", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestHTTPMetricsRecorded(t *testing.T) {
	srv := newTestServer(t)
	srv.do(http.MethodGet, "/patients", "")
	srv.do(http.MethodGet, "/patients/7", "")

	n, err := testutil.GatherAndCount(srv.reg, "carebook_http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Fatalf("series = %d, want 2 (one per route and status)", n)
	}
}

func TestSpanishRouteAliasesAndFieldNames(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodPost, "/pacientes", `{"nombre":"Ana","email":"ana@x.com","telefono":"111"}`)
	expectStatus(t, rec, http.StatusCreated)
	if p := decode[patientResponse](t, rec); p.Name != "Ana" || p.Phone != "111" {
		t.Fatalf("patient = %+v, want nombre and telefono mapped", p)
	}
	expectStatus(t, srv.do(http.MethodPost, "/turnos", `{"fecha":"2025-08-15","hora":"14:30","razon":"checkup","pacienteId":1}`), http.StatusCreated)

	rec = srv.do(http.MethodPatch, "/pacientes/1", `{"telefono":"222"}`)
	expectStatus(t, rec, http.StatusOK)
	if p := decode[patientResponse](t, rec); p.Phone != "222" || p.Name != "Ana" {
		t.Fatalf("patient = %+v, want only telefono changed", p)
	}
	rec = srv.do(http.MethodPatch, "/turnos/1", `{"hora":"15:00"}`)
	expectStatus(t, rec, http.StatusOK)
	if a := decode[appointmentResponse](t, rec); a.Time != "15:00" || a.Date != "2025-08-15" {
		t.Fatalf("appointment = %+v, want hora moved to 15:00", a)
	}

	rec = srv.do(http.MethodGet, "/patients/1", "")
	expectStatus(t, rec, http.StatusOK)
	if p := decode[patientResponse](t, rec); len(p.Appointments) != 1 {
		t.Fatalf("appointments = %+v, want the one booked through /turnos", p.Appointments)
	}

	rec = srv.do(http.MethodGet, "/pacientes/1/appointments", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]appointmentResponse](t, rec); len(list) != 1 || list[0].Time != "15:00" {
		t.Fatalf("list = %+v", list)
	}
	expectStatus(t, srv.do(http.MethodDelete, "/turnos/1", ""), http.StatusOK)
}
