package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

type fakeSlots struct {
	res []service.WalkerSlots
	err error
}

func (f *fakeSlots) ListSlots(context.Context, service.SlotQuery) ([]service.WalkerSlots, error) {
	return f.res, f.err
}

type fakeSeries struct {
	last  service.CreateSeriesInput
	calls int
	err   error
}

func (f *fakeSeries) CreateSeries(_ context.Context, in service.CreateSeriesInput) (*service.SeriesReport, error) {
	f.last = in
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.SeriesReport{
		Success:         true,
		SeriesID:        uuid.New(),
		Status:          model.SeriesStatusCompleted,
		BookingsCreated: 3,
		TotalPlanned:    3,
		CreatedDates:    []string{"2025-01-06", "2025-01-13", "2025-01-20"},
		Conflicts:       []service.OccurrenceConflict{},
	}, nil
}

func startServer(t *testing.T, slots SlotLister, series SeriesCreator) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(zap.NewNop(), NewServer(slots, series, nil))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestListSlots_PagesWalkers(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	var res []service.WalkerSlots
	for i := 0; i < 3; i++ {
		res = append(res, service.WalkerSlots{
			WalkerID:  uuid.New(),
			Date:      "2025-01-06",
			ServiceID: uuid.New(),
			Slots: []service.AvailableSlot{
				{Start: start, End: start.Add(30 * time.Minute), Confidence: service.ConfidenceHigh},
			},
		})
	}
	client := NewSchedulingClient(startServer(t, &fakeSlots{res: res}, &fakeSeries{}))

	out, err := client.ListSlots(context.Background(), mustStruct(t, map[string]any{
		"date":        "2025-01-06",
		"service_id":  uuid.NewString(),
		"location_id": uuid.NewString(),
		"page":        2,
		"page_size":   2,
	}))
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}

	m := out.AsMap()
	if m["total"] != float64(3) || m["has_next"] != false || m["page"] != float64(2) {
		t.Fatalf("unexpected page metadata %v", m)
	}
	avail := m["availability"].([]any)
	if len(avail) != 1 {
		t.Fatalf("expected 1 walker on page 2, got %d", len(avail))
	}
	if got := avail[0].(map[string]any)["walker_id"]; got != res[2].WalkerID.String() {
		t.Fatalf("expected third walker, got %v", got)
	}
}

func TestListSlots_InvalidArgument(t *testing.T) {
	client := NewSchedulingClient(startServer(t, &fakeSlots{}, &fakeSeries{}))

	_, err := client.ListSlots(context.Background(), mustStruct(t, map[string]any{
		"date":       "2025-01-06",
		"service_id": "not-a-uuid",
	}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestCreateRecurringSeries(t *testing.T) {
	series := &fakeSeries{}
	client := NewSchedulingClient(startServer(t, &fakeSlots{}, series))

	req := mustStruct(t, map[string]any{
		"customer_id":       uuid.NewString(),
		"walker_id":         uuid.NewString(),
		"service_id":        uuid.NewString(),
		"location_id":       uuid.NewString(),
		"frequency":         "weekly",
		"day_of_week":       1,
		"time_of_day":       "09:00",
		"total_occurrences": 3,
		"idempotency_key":   "field-key",
	})

	ctx := metadata.AppendToOutgoingContext(context.Background(), "idempotency-key", "meta-key")
	out, err := client.CreateRecurringSeries(ctx, req)
	if err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}
	if series.last.IdempotencyKey != "meta-key" || series.last.DayOfWeek != 1 || series.last.TotalOccurrences != 3 {
		t.Fatalf("input not forwarded: %+v", series.last)
	}
	m := out.AsMap()
	if m["bookingsCreated"] != float64(3) || m["success"] != true {
		t.Fatalf("unexpected report %v", m)
	}

	series.err = service.ErrSeriesInProgress
	if _, err := client.CreateRecurringSeries(context.Background(), req); status.Code(err) != codes.Aborted {
		t.Fatalf("expected Aborted, got %v", err)
	}
	series.err = &service.ConflictError{Reason: service.ReasonWalkerBusy}
	if _, err := client.CreateRecurringSeries(context.Background(), req); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestCreateRecurringSeries_RejectsBadDayOfWeek(t *testing.T) {
	series := &fakeSeries{}
	client := NewSchedulingClient(startServer(t, &fakeSlots{}, series))

	base := map[string]any{
		"customer_id":       uuid.NewString(),
		"walker_id":         uuid.NewString(),
		"service_id":        uuid.NewString(),
		"location_id":       uuid.NewString(),
		"frequency":         "weekly",
		"time_of_day":       "09:00",
		"total_occurrences": 3,
	}
	cases := map[string]func(m map[string]any){
		"missing":      func(m map[string]any) {},
		"misspelled":   func(m map[string]any) { m["dayOfWeek"] = 1 },
		"null":         func(m map[string]any) { m["day_of_week"] = nil },
		"fractional":   func(m map[string]any) { m["day_of_week"] = 2.7 },
		"not a number": func(m map[string]any) { m["day_of_week"] = "monday" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := make(map[string]any, len(base)+1)
			for k, v := range base {
				m[k] = v
			}
			mutate(m)
			_, err := client.CreateRecurringSeries(context.Background(), mustStruct(t, m))
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("expected InvalidArgument, got %v", err)
			}
		})
	}
	if series.calls != 0 {
		t.Fatalf("invalid requests must not reach the service, got %d calls", series.calls)
	}

	// Sunday is a real value, not a default.
	base["day_of_week"] = 0
	if _, err := client.CreateRecurringSeries(context.Background(), mustStruct(t, base)); err != nil {
		t.Fatalf("CreateRecurringSeries: %v", err)
	}
	if series.calls != 1 || series.last.DayOfWeek != 0 {
		t.Fatalf("expected a Sunday series, got %d calls and %+v", series.calls, series.last)
	}
}

func TestHealth(t *testing.T) {
	conn := startServer(t, &fakeSlots{}, &fakeSeries{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}
}
