package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/db"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func mustTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestBookingRepository_ListOccupyingSkipsCancelledAndOutside(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	repo := NewGormBookingRepository(gdb)

	walkerID := uuid.New()
	mk := func(start time.Time, status model.BookingStatus) *model.Booking {
		b := &model.Booking{
			CustomerID:     uuid.New(),
			ServiceID:      uuid.New(),
			WalkerID:       walkerID,
			LocationID:     uuid.New(),
			ScheduledStart: start,
			ScheduledEnd:   start.Add(30 * time.Minute),
			Status:         status,
		}
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("create booking: %v", err)
		}
		return b
	}

	inside := mk(mustTime(t, 2025, 1, 6, 10, 0), model.BookingStatusConfirmed)
	noShow := mk(mustTime(t, 2025, 1, 6, 12, 0), model.BookingStatusNoShow)
	mk(mustTime(t, 2025, 1, 6, 11, 0), model.BookingStatusCancelled)
	mk(mustTime(t, 2025, 1, 7, 10, 0), model.BookingStatusConfirmed)

	got, err := repo.ListOccupyingByWalkerRange(ctx, walkerID, mustTime(t, 2025, 1, 6, 0, 0), mustTime(t, 2025, 1, 7, 0, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(got))
	}
	if got[0].ID != inside.ID || got[1].ID != noShow.ID {
		t.Fatalf("unexpected order: %v, %v", got[0].ID, got[1].ID)
	}
}

func TestBookingRepository_DuplicateStartIsTranslated(t *testing.T) {
	ctx := context.Background()
	repo := NewGormBookingRepository(newTestDB(t))

	b := model.Booking{
		CustomerID:     uuid.New(),
		ServiceID:      uuid.New(),
		WalkerID:       uuid.New(),
		LocationID:     uuid.New(),
		ScheduledStart: mustTime(t, 2025, 1, 6, 10, 0),
		ScheduledEnd:   mustTime(t, 2025, 1, 6, 10, 30),
		Status:         model.BookingStatusConfirmed,
	}
	first := b
	if err := repo.Create(ctx, &first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := b
	err := repo.Create(ctx, &second)
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestWorkingHoursRepository_UpsertReplacesDay(t *testing.T) {
	ctx := context.Background()
	repo := NewGormWorkingHoursRepository(newTestDB(t))
	walkerID := uuid.New()

	if err := repo.Upsert(ctx, &model.WorkingHours{WalkerID: walkerID, DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, &model.WorkingHours{WalkerID: walkerID, DayOfWeek: 1, StartTime: "10:00", EndTime: "14:00", IsActive: true}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	hours, err := repo.ListByWalker(ctx, walkerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(hours) != 1 {
		t.Fatalf("expected a single row per day, got %d", len(hours))
	}
	if hours[0].StartTime != "10:00" || hours[0].EndTime != "14:00" {
		t.Fatalf("row not replaced: %+v", hours[0])
	}

	if _, err := repo.GetForDay(ctx, walkerID, 2); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for day off, got %v", err)
	}
}

func TestWorkingHoursRepository_RejectsInvertedWindow(t *testing.T) {
	repo := NewGormWorkingHoursRepository(newTestDB(t))
	err := repo.Upsert(context.Background(), &model.WorkingHours{WalkerID: uuid.New(), DayOfWeek: 1, StartTime: "17:00", EndTime: "09:00", IsActive: true})
	if err == nil {
		t.Fatalf("expected error for end before start")
	}
}

func TestWalkerRepository_ListEligible(t *testing.T) {
	ctx := context.Background()
	gdb := newTestDB(t)
	walkers := NewGormWalkerRepository(gdb)
	services := NewGormServiceRepository(gdb)

	svc := &model.Service{Name: "30 min walk", DurationMinutes: 30, IsActive: true}
	if err := services.Create(ctx, svc); err != nil {
		t.Fatalf("create service: %v", err)
	}

	active := &model.Walker{OrganizationID: uuid.New(), DisplayName: "Ana", TimeZone: "UTC", IsActive: true}
	inactive := &model.Walker{OrganizationID: uuid.New(), DisplayName: "Bo", TimeZone: "UTC", IsActive: false}
	other := &model.Walker{OrganizationID: uuid.New(), DisplayName: "Cy", TimeZone: "UTC", IsActive: true}
	for _, w := range []*model.Walker{active, inactive, other} {
		if err := walkers.Create(ctx, w); err != nil {
			t.Fatalf("create walker: %v", err)
		}
	}
	for _, w := range []*model.Walker{active, inactive} {
		if err := walkers.AssignService(ctx, w.ID, svc.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}

	got, err := walkers.ListEligible(ctx, svc.ID)
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Fatalf("expected only the active assigned walker, got %+v", got)
	}

	offered, err := services.ListByWalker(ctx, active.ID)
	if err != nil {
		t.Fatalf("list by walker: %v", err)
	}
	if len(offered) != 1 || offered[0].ID != svc.ID {
		t.Fatalf("unexpected services %+v", offered)
	}
}

func TestBlockRepository_ListBlockingIgnoresInformational(t *testing.T) {
	ctx := context.Background()
	repo := NewGormBlockRepository(newTestDB(t))
	walkerID := uuid.New()

	blocking := &model.Block{WalkerID: walkerID, StartTime: mustTime(t, 2025, 1, 6, 12, 0), EndTime: mustTime(t, 2025, 1, 6, 13, 0), Reason: "lunch", IsBlocking: true}
	info := &model.Block{WalkerID: walkerID, StartTime: mustTime(t, 2025, 1, 6, 14, 0), EndTime: mustTime(t, 2025, 1, 6, 15, 0), Reason: "note", IsBlocking: false}
	for _, b := range []*model.Block{blocking, info} {
		if err := repo.Create(ctx, b); err != nil {
			t.Fatalf("create block: %v", err)
		}
	}

	got, err := repo.ListBlockingByWalkerRange(ctx, walkerID, mustTime(t, 2025, 1, 6, 0, 0), mustTime(t, 2025, 1, 7, 0, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != blocking.ID {
		t.Fatalf("expected only the blocking block, got %+v", got)
	}

	if err := repo.Delete(ctx, blocking.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, blocking.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected deleted block to be gone, got %v", err)
	}
}

func TestSeriesRepository_IdempotencyKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSeriesRepository(newTestDB(t))
	key := "req-123"
	total := 4

	mk := func() *model.RecurringBookingSeries {
		return &model.RecurringBookingSeries{
			CustomerID:       uuid.New(),
			WalkerID:         uuid.New(),
			ServiceID:        uuid.New(),
			LocationID:       uuid.New(),
			Frequency:        "weekly",
			DayOfWeek:        1,
			TimeOfDay:        "09:00",
			TimeZone:         "UTC",
			TotalOccurrences: &total,
			Status:           model.SeriesStatusRequested,
			IdempotencyKey:   &key,
		}
	}

	first := mk()
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, mk()); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}

	if err := repo.Finish(ctx, first.ID, model.SeriesStatusCompleted, []byte(`{"bookingsCreated":4}`)); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, err := repo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if got.ID != first.ID || got.Status != model.SeriesStatusCompleted || len(got.Report) == 0 {
		t.Fatalf("unexpected series %+v", got)
	}
}
