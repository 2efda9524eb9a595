package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/store"
	"carebook/backend/internal/validation"
)

type schedulingService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	List(ctx context.Context) ([]domain.Appointment, error)
	Get(ctx context.Context, id int64) (domain.Appointment, error)
	Find(ctx context.Context, f appointments.Filter) ([]domain.Appointment, error)
	Update(ctx context.Context, id int64, in appointments.UpdateInput) (domain.Appointment, error)
	Remove(ctx context.Context, id int64) (domain.Appointment, error)
}

// SchedulingServer serves carebook.v1.Scheduling. Requests and responses are
// google.protobuf.Struct documents using the same field names as the REST API.
type SchedulingServer struct {
	svc schedulingService
	log *slog.Logger
}

func NewSchedulingServer(svc schedulingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.scheduling")),
	}
}

func (s *SchedulingServer) CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	in, err := createInput(fields{req})
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	appt, err := s.svc.Create(ctx, in)
	if err != nil {
		return nil, s.fail(log, "appointment create", err)
	}

	log.Info("appointment created",
		slog.Int64("appointment_id", appt.ID),
		slog.Int64("patient_id", appt.PatientID),
		slog.String("slot", appt.Slot().String()),
	)
	return wrap("appointment", appointmentValue(appt))
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	id, err := requiredID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	appt, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, s.fail(log.With(slog.Int64("appointment_id", id)), "appointment get", err)
	}
	return wrap("appointment", appointmentValue(appt))
}

func (s *SchedulingServer) ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	filter, err := listFilter(fields{req})
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var appts []domain.Appointment
	if filter == (appointments.Filter{}) {
		appts, err = s.svc.List(ctx)
	} else {
		appts, err = s.svc.Find(ctx, filter)
	}
	if err != nil {
		return nil, s.fail(log, "appointments list", err)
	}

	out := make([]any, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentValue(a))
	}

	log.Debug("appointments listed",
		slog.String("date", filter.Date),
		slog.Int64("patient_id", filter.PatientID),
		slog.Int("count", len(out)),
	)
	return wrap("appointments", out)
}

func (s *SchedulingServer) UpdateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "UpdateAppointment"))

	id, err := requiredID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	in, err := updateInput(fields{req})
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	appt, err := s.svc.Update(ctx, id, in)
	if err != nil {
		return nil, s.fail(log.With(slog.Int64("appointment_id", id)), "appointment update", err)
	}

	log.Info("appointment updated",
		slog.Int64("appointment_id", appt.ID),
		slog.String("slot", appt.Slot().String()),
	)
	return wrap("appointment", appointmentValue(appt))
}

func (s *SchedulingServer) DeleteAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "DeleteAppointment"))

	id, err := requiredID(req)
	if err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	appt, err := s.svc.Remove(ctx, id)
	if err != nil {
		return nil, s.fail(log.With(slog.Int64("appointment_id", id)), "appointment delete", err)
	}

	log.Info("appointment deleted", slog.Int64("appointment_id", appt.ID), slog.Int64("patient_id", appt.PatientID))
	return structpb.NewStruct(map[string]any{"id": appt.ID, "deleted": true})
}

func (s *SchedulingServer) fail(log *slog.Logger, msg string, err error) error {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info(msg+" not found", slog.Any("err", err))
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateSlot):
		log.Info(msg+" conflict", slog.Any("err", err))
		return status.Error(codes.AlreadyExists, "An appointment already exists for that date and time. Pick a different slot.")
	case errors.Is(err, store.ErrConflict):
		log.Info(msg+" conflict", slog.Any("err", err))
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		log.Error(msg+" failed", slog.Any("err", err))
		return status.Error(codes.Internal, "internal error")
	}
}

func createInput(f fields) (in appointments.CreateInput, err error) {
	if in.Date, err = f.str("date"); err != nil {
		return in, err
	}
	if in.Time, err = f.str("time"); err != nil {
		return in, err
	}
	if in.Reason, err = f.str("reason"); err != nil {
		return in, err
	}
	in.PatientID, _, err = f.integer("patientId")
	return in, err
}

func updateInput(f fields) (in appointments.UpdateInput, err error) {
	if in.Date, err = f.optionalStr("date"); err != nil {
		return in, err
	}
	if in.Time, err = f.optionalStr("time"); err != nil {
		return in, err
	}
	if in.Reason, err = f.optionalStr("reason"); err != nil {
		return in, err
	}
	patientID, ok, err := f.integer("patientId")
	if err != nil {
		return in, err
	}
	if ok {
		in.PatientID = &patientID
	}
	return in, nil
}

// listFilter reads the optional date and patientId filters. A supplied
// patientId must be positive.
func listFilter(f fields) (filter appointments.Filter, err error) {
	if filter.Date, err = f.str("date"); err != nil {
		return filter, err
	}
	patientID, ok, err := f.integer("patientId")
	if err != nil {
		return filter, err
	}
	if ok {
		if err := positive("patientId", patientID); err != nil {
			return filter, err
		}
		filter.PatientID = patientID
	}
	return filter, nil
}

func wrap(key string, v any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{key: v})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func appointmentValue(a domain.Appointment) map[string]any {
	out := map[string]any{
		"id":        a.ID,
		"date":      a.Date,
		"time":      a.Time,
		"reason":    a.Reason,
		"patientId": a.PatientID,
		"createdAt": a.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updatedAt": a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.Patient != nil {
		out["patient"] = map[string]any{
			"id":    a.Patient.ID,
			"name":  a.Patient.Name,
			"email": a.Patient.Email,
			"phone": a.Patient.Phone,
		}
	}
	return out
}
