package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

const (
	idempotencyMetadataKey = "idempotency-key"
	defaultSlotsPageSize   = 20
)

type SlotLister interface {
	ListSlots(ctx context.Context, q service.SlotQuery) ([]service.WalkerSlots, error)
}

type SeriesCreator interface {
	CreateSeries(ctx context.Context, in service.CreateSeriesInput) (*service.SeriesReport, error)
}

type Server struct {
	slots  SlotLister
	series SeriesCreator
	log    *zap.Logger
}

func NewServer(slots SlotLister, series SeriesCreator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{slots: slots, series: series, log: log}
}

// NewGRPCServer builds a grpc.Server with SchedulingService, the standard
// health service and reflection registered.
func NewGRPCServer(log *zap.Logger, srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		recoveryInterceptor(log),
		loggingInterceptor(log),
	))
	RegisterSchedulingServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	reflection.Register(gs)
	return gs
}

type walkerSlotsMessage struct {
	WalkerID  string        `json:"walker_id"`
	Date      string        `json:"date"`
	ServiceID string        `json:"service_id"`
	Slots     []slotMessage `json:"slots"`
}

type slotMessage struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Confidence    string    `json:"confidence"`
	IsTight       bool      `json:"is_tight"`
	TravelMinutes *int      `json:"travel_minutes"`
	GapMinutes    *int      `json:"gap_minutes"`
	Warning       string    `json:"warning,omitempty"`
}

type listSlotsResponse struct {
	Availability []walkerSlotsMessage `json:"availability"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	Total        int                  `json:"total"`
	HasNext      bool                 `json:"has_next"`
}

// ListSlots takes date, service_id, location_id and optional walker_id,
// page and page_size. Pages are over walkers.
func (s *Server) ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields{req}

	date, err := calendar.ParseDate(f.str("date"), time.UTC)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	q := service.SlotQuery{Date: date}
	if q.ServiceID, err = f.uuid("service_id"); err != nil {
		return nil, err
	}
	if q.LocationID, err = f.uuid("location_id"); err != nil {
		return nil, err
	}
	if f.str("walker_id") != "" {
		id, err := f.uuid("walker_id")
		if err != nil {
			return nil, err
		}
		q.WalkerID = &id
	}

	pageNum, _, err := f.int("page")
	if err != nil {
		return nil, err
	}
	pageSize, _, err := f.int("page_size")
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = defaultSlotsPageSize
	}

	res, err := s.slots.ListSlots(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	page := calendar.Paginate(res, pageNum, pageSize)

	out := listSlotsResponse{
		Availability: make([]walkerSlotsMessage, 0, len(page.Items)),
		Page:         page.Page,
		PageSize:     page.PageSize,
		Total:        page.Total,
		HasNext:      page.HasNext,
	}
	for _, ws := range page.Items {
		msg := walkerSlotsMessage{
			WalkerID:  ws.WalkerID.String(),
			Date:      ws.Date,
			ServiceID: ws.ServiceID.String(),
			Slots:     make([]slotMessage, 0, len(ws.Slots)),
		}
		for _, sl := range ws.Slots {
			msg.Slots = append(msg.Slots, slotMessage{
				Start:         sl.Start,
				End:           sl.End,
				Confidence:    string(sl.Confidence),
				IsTight:       sl.IsTight,
				TravelMinutes: sl.TravelMinutes,
				GapMinutes:    sl.GapMinutes,
				Warning:       sl.Warning,
			})
		}
		out.Availability = append(out.Availability, msg)
	}
	return toStruct(out)
}

// CreateRecurringSeries materializes a series. The idempotency key comes
// from the "idempotency-key" metadata or the idempotency_key field.
func (s *Server) CreateRecurringSeries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fields{req}

	in := service.CreateSeriesInput{
		Frequency:      calendar.Frequency(f.str("frequency")),
		TimeOfDay:      f.str("time_of_day"),
		TimeZone:       f.str("timezone"),
		IdempotencyKey: f.str("idempotency_key"),
		Notes:          f.str("notes"),
	}
	dow, ok, err := f.int("day_of_week")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "day_of_week is required")
	}
	in.DayOfWeek = dow
	if in.TotalOccurrences, _, err = f.int("total_occurrences"); err != nil {
		return nil, err
	}
	if in.CustomerID, err = f.uuid("customer_id"); err != nil {
		return nil, err
	}
	if in.WalkerID, err = f.uuid("walker_id"); err != nil {
		return nil, err
	}
	if in.ServiceID, err = f.uuid("service_id"); err != nil {
		return nil, err
	}
	if in.LocationID, err = f.uuid("location_id"); err != nil {
		return nil, err
	}
	if raw := f.str("end_date"); raw != "" {
		end, err := time.Parse(calendar.DateLayout, raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "end_date must be YYYY-MM-DD")
		}
		in.EndDate = &end
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if keys := md.Get(idempotencyMetadataKey); len(keys) > 0 && keys[0] != "" {
			in.IdempotencyKey = keys[0]
		}
	}

	report, err := s.series.CreateSeries(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(report)
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrSeriesInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, service.ErrConflict):
		return status.Error(codes.FailedPrecondition, service.ConflictReason(err))
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fields reads typed values out of a request struct; missing or null keys
// read as zero values.
type fields struct {
	s *structpb.Struct
}

func (f fields) str(key string) string {
	return f.s.GetFields()[key].GetStringValue()
}

// int reads a whole number; ok is false when the key is missing or null.
func (f fields) int(key string) (n int, ok bool, err error) {
	v, present := f.s.GetFields()[key]
	if !present {
		return 0, false, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, false, nil
	case *structpb.Value_NumberValue:
		x := kind.NumberValue
		if math.IsNaN(x) || math.IsInf(x, 0) || x != math.Trunc(x) {
			return 0, false, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be a whole number", key))
		}
		return int(x), true, nil
	default:
		return 0, false, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be a number", key))
	}
}

func (f fields) uuid(key string) (uuid.UUID, error) {
	raw := f.str(key)
	if raw == "" {
		return uuid.Nil, status.Error(codes.InvalidArgument, fmt.Sprintf("%s is required", key))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be a uuid", key))
	}
	return id, nil
}
