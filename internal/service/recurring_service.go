package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/lock"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/repository"
)

const (
	defaultMaxOccurrences = 104
	defaultSeriesLockTTL  = 10 * time.Minute
)

// CreateSeriesInput is a customer recurring booking recipe. Exactly one of
// EndDate and TotalOccurrences must be set; only the year, month and day of
// EndDate are used. An empty TimeZone means the walker's zone.
type CreateSeriesInput struct {
	CustomerID uuid.UUID
	WalkerID   uuid.UUID
	ServiceID  uuid.UUID
	LocationID uuid.UUID

	Frequency calendar.Frequency
	DayOfWeek int
	TimeOfDay string
	TimeZone  string

	EndDate          *time.Time
	TotalOccurrences int

	IdempotencyKey string
	Notes          string
}

// RecurringBlockInput is the calendar-block variant: a set of weekdays over a
// number of weeks, or indefinitely.
type RecurringBlockInput struct {
	WalkerID   uuid.UUID
	Days       []time.Weekday
	StartTime  string
	EndTime    string
	Weeks      int
	Indefinite bool
	Reason     string
	IsBlocking bool
}

type OccurrenceConflict struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// SeriesReport summarizes one materialization. BookingsCreated plus the
// number of conflicts always equals TotalPlanned.
type SeriesReport struct {
	Success         bool                 `json:"success"`
	SeriesID        uuid.UUID            `json:"seriesId"`
	Status          model.SeriesStatus   `json:"status,omitempty"`
	BookingsCreated int                  `json:"bookingsCreated"`
	TotalPlanned    int                  `json:"totalPlanned"`
	CreatedDates    []string             `json:"createdDates"`
	Conflicts       []OccurrenceConflict `json:"conflicts"`
	Indefinite      bool                 `json:"indefinite"`

	// Replayed is set when the report was loaded for a repeated
	// idempotency key instead of being computed.
	Replayed bool `json:"-"`
}

func newSeriesReport(id uuid.UUID, planned int) *SeriesReport {
	return &SeriesReport{
		Success:      true,
		SeriesID:     id,
		TotalPlanned: planned,
		CreatedDates: []string{},
		Conflicts:    []OccurrenceConflict{},
	}
}

// record folds one attempt into the report.
func (r *SeriesReport) record(o occurrenceOutcome) {
	date := o.Date.Format(calendar.DateLayout)
	if o.Reason == "" {
		r.BookingsCreated++
		r.CreatedDates = append(r.CreatedDates, date)
		return
	}
	r.Conflicts = append(r.Conflicts, OccurrenceConflict{Date: date, Reason: o.Reason})
}

// interrupted reports whether the run that produced r stopped early.
func (r *SeriesReport) interrupted() bool {
	for _, c := range r.Conflicts {
		if c.Reason == ReasonCancelled {
			return true
		}
	}
	return false
}

// occurrenceOutcome is the result of one creation attempt: either created
// (Reason empty) or rejected with a reason.
type occurrenceOutcome struct {
	Number int
	Date   time.Time
	Reason string
}

// RecurringService expands recurring recipes into concrete bookings and
// blocks through the single-creation paths.
type RecurringService struct {
	walkers  repository.WalkerRepository
	series   repository.SeriesRepository
	events   repository.EventRepository
	bookings *BookingService
	blocks   *BlockService
	locker   lock.Locker
	lockTTL  time.Duration
	clock    calendar.Clock
	max      int
	log      *zap.Logger
}

func NewRecurringService(
	walkers repository.WalkerRepository,
	series repository.SeriesRepository,
	events repository.EventRepository,
	bookings *BookingService,
	blocks *BlockService,
	locker lock.Locker,
	lockTTL time.Duration,
	clock calendar.Clock,
	maxOccurrences int,
	log *zap.Logger,
) *RecurringService {
	if clock == nil {
		clock = calendar.SystemClock
	}
	if maxOccurrences <= 0 {
		maxOccurrences = defaultMaxOccurrences
	}
	if lockTTL <= 0 {
		lockTTL = defaultSeriesLockTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RecurringService{
		walkers:  walkers,
		series:   series,
		events:   events,
		bookings: bookings,
		blocks:   blocks,
		locker:   locker,
		lockTTL:  lockTTL,
		clock:    clock,
		max:      maxOccurrences,
		log:      log,
	}
}

// CreateSeries materializes a recurring booking series. Occurrences are
// attempted one at a time in chronological order; a rejected occurrence is
// reported and the loop continues.
//
// A repeated idempotency key returns the stored report of the first
// request. When that request stopped before finishing, the retry resumes it:
// occurrences that already have a booking count as created and the rest are
// attempted.
func (s *RecurringService) CreateSeries(ctx context.Context, in CreateSeriesInput) (*SeriesReport, error) {
	if in.CustomerID == uuid.Nil || in.WalkerID == uuid.Nil || in.ServiceID == uuid.Nil || in.LocationID == uuid.Nil {
		return nil, validationf("customer_id, walker_id, service_id and location_id are required")
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	if in.IdempotencyKey != "" {
		release, err := s.claimKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		defer release()

		existing, err := s.series.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return s.resume(ctx, existing, in.Notes)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	walker, err := s.walkers.GetByID(ctx, in.WalkerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("walker %s: %w", in.WalkerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load walker: %w", err)
	}

	recipe, err := s.recipe(in, walker)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	occurrences, err := recipe.Occurrences(now, s.max)
	if err != nil {
		return nil, validationf("%v", err)
	}
	if len(occurrences) == 0 {
		return nil, validationf("recipe produces no occurrences")
	}

	series := &model.RecurringBookingSeries{
		CustomerID:   in.CustomerID,
		WalkerID:     in.WalkerID,
		ServiceID:    in.ServiceID,
		LocationID:   in.LocationID,
		Frequency:    string(recipe.Frequency),
		DayOfWeek:    int(recipe.DayOfWeek),
		TimeOfDay:    recipe.TimeOfDay.String(),
		TimeZone:     recipe.Location.String(),
		Status:       model.SeriesStatusRequested,
		ExpandedFrom: now,
	}
	if recipe.EndDate != nil {
		y, m, d := recipe.EndDate.Date()
		date := datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
		series.EndDate = &date
	} else {
		n := in.TotalOccurrences
		series.TotalOccurrences = &n
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		series.IdempotencyKey = &key
	}

	if err := s.series.Create(ctx, series); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && series.IdempotencyKey != nil {
			existing, lookupErr := s.series.GetByIdempotencyKey(ctx, in.IdempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("reload series by idempotency key: %w", lookupErr)
			}
			return s.resume(ctx, existing, in.Notes)
		}
		return nil, fmt.Errorf("insert series: %w", err)
	}
	s.audit(ctx, &model.Event{
		EventType: model.EventTypeSeriesCreated,
		WalkerID:  &series.WalkerID,
		SeriesID:  &series.ID,
		Details:   fmt.Sprintf("frequency=%s planned=%d", series.Frequency, len(occurrences)),
	})

	return s.materialize(ctx, series, occurrences, in.Notes, nil)
}

// claimKey holds the idempotency key for the length of one run. A key held
// by a live request is ErrSeriesInProgress.
func (s *RecurringService) claimKey(ctx context.Context, key string) (func(), error) {
	lockKey := seriesLockKey(key)
	token, ok, err := s.locker.Lock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock idempotency key: %w", err)
	}
	if !ok {
		return nil, ErrSeriesInProgress
	}
	return func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("release series lock", zap.String("idempotency_key", key), zap.Error(err))
		}
	}, nil
}

// resume replays a finished series or completes an interrupted one. A run
// is interrupted when it stored no report or its report has cancelled
// occurrences. Occurrences with a booking count as created; conflicts other
// than cancellations are kept as they were.
func (s *RecurringService) resume(ctx context.Context, series *model.RecurringBookingSeries, notes string) (*SeriesReport, error) {
	var prior *SeriesReport
	if len(series.Report) > 0 {
		var err error
		if prior, err = decodeReport(series); err != nil {
			return nil, err
		}
		if !prior.interrupted() {
			prior.Replayed = true
			return prior, nil
		}
	}

	recipe, err := recipeOf(series)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", series.ID, err)
	}
	from := series.ExpandedFrom
	if from.IsZero() {
		from = series.CreatedAt
	}
	occurrences, err := recipe.Occurrences(from, s.max)
	if err != nil {
		return nil, fmt.Errorf("expand series %s: %w", series.ID, err)
	}

	booked, err := s.bookings.ListBySeries(ctx, series.ID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of series %s: %w", series.ID, err)
	}
	settled := make(map[int]occurrenceOutcome, len(occurrences))
	if prior != nil {
		kept := make(map[string]string, len(prior.Conflicts))
		for _, c := range prior.Conflicts {
			if c.Reason != ReasonCancelled {
				kept[c.Date] = c.Reason
			}
		}
		for i, start := range occurrences {
			if reason, ok := kept[start.Format(calendar.DateLayout)]; ok {
				settled[i+1] = occurrenceOutcome{Number: i + 1, Date: start, Reason: reason}
			}
		}
	}
	for _, b := range booked {
		if b.OccurrenceNumber == nil || *b.OccurrenceNumber < 1 || *b.OccurrenceNumber > len(occurrences) {
			continue
		}
		n := *b.OccurrenceNumber
		settled[n] = occurrenceOutcome{Number: n, Date: occurrences[n-1]}
	}

	s.log.Info("resuming series",
		zap.Stringer("series_id", series.ID),
		zap.Int("booked", len(booked)),
		zap.Int("planned", len(occurrences)),
	)
	return s.materialize(ctx, series, occurrences, notes, settled)
}

// materialize attempts every occurrence that is not already settled, then
// stores the report. The run is detached from ctx cancellation so a caller
// that gives up does not cut the batch short.
func (s *RecurringService) materialize(
	ctx context.Context,
	series *model.RecurringBookingSeries,
	occurrences []time.Time,
	notes string,
	settled map[int]occurrenceOutcome,
) (*SeriesReport, error) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.With(zap.Stringer("series_id", series.ID), zap.Stringer("walker_id", series.WalkerID))

	for _, st := range []model.SeriesStatus{model.SeriesStatusExpanding, model.SeriesStatusSubmitting} {
		if err := s.series.UpdateStatus(ctx, series.ID, st); err != nil {
			return nil, fmt.Errorf("series %s to %s: %w", series.ID, st, err)
		}
	}

	report := newSeriesReport(series.ID, len(occurrences))
	for i, start := range occurrences {
		if out, ok := settled[i+1]; ok {
			report.record(out)
			continue
		}
		report.record(s.attempt(ctx, log, series, notes, i+1, start))
	}

	report.Status = model.SeriesStatusCompleted
	if len(report.Conflicts) > 0 {
		report.Status = model.SeriesStatusPartiallyCompleted
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := s.series.Finish(ctx, series.ID, report.Status, datatypes.JSON(raw)); err != nil {
		return nil, fmt.Errorf("finish series %s: %w", series.ID, err)
	}
	s.audit(ctx, &model.Event{
		EventType: model.EventTypeSeriesCompleted,
		WalkerID:  &series.WalkerID,
		SeriesID:  &series.ID,
		Details:   fmt.Sprintf("created=%d conflicts=%d", report.BookingsCreated, len(report.Conflicts)),
	})

	log.Info("series materialized",
		zap.String("status", string(report.Status)),
		zap.Int("created", report.BookingsCreated),
		zap.Int("planned", report.TotalPlanned),
	)
	return report, nil
}

func (s *RecurringService) recipe(in CreateSeriesInput, walker *model.Walker) (calendar.SeriesRecipe, error) {
	tod, err := calendar.ParseWallClock(in.TimeOfDay)
	if err != nil {
		return calendar.SeriesRecipe{}, validationf("%v", err)
	}
	tz := in.TimeZone
	if tz == "" {
		tz = walker.TimeZone
	}
	loc, err := calendar.LoadLocation(tz)
	if err != nil {
		return calendar.SeriesRecipe{}, validationf("%v", err)
	}

	recipe := calendar.SeriesRecipe{
		Frequency:        in.Frequency,
		DayOfWeek:        time.Weekday(in.DayOfWeek),
		TimeOfDay:        tod,
		Location:         loc,
		TotalOccurrences: in.TotalOccurrences,
	}
	if in.EndDate != nil {
		// only the calendar day counts, read in the series zone
		e := *in.EndDate
		end := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc)
		recipe.EndDate = &end
	}
	if err := recipe.Validate(); err != nil {
		return calendar.SeriesRecipe{}, validationf("%v", err)
	}
	return recipe, nil
}

// recipeOf rebuilds the recipe stored on a series row.
func recipeOf(series *model.RecurringBookingSeries) (calendar.SeriesRecipe, error) {
	tod, err := calendar.ParseWallClock(series.TimeOfDay)
	if err != nil {
		return calendar.SeriesRecipe{}, err
	}
	loc, err := calendar.LoadLocation(series.TimeZone)
	if err != nil {
		return calendar.SeriesRecipe{}, err
	}
	recipe := calendar.SeriesRecipe{
		Frequency: calendar.Frequency(series.Frequency),
		DayOfWeek: time.Weekday(series.DayOfWeek),
		TimeOfDay: tod,
		Location:  loc,
	}
	if series.TotalOccurrences != nil {
		recipe.TotalOccurrences = *series.TotalOccurrences
	}
	if series.EndDate != nil {
		y, m, d := time.Time(*series.EndDate).UTC().Date()
		end := time.Date(y, m, d, 0, 0, 0, 0, loc)
		recipe.EndDate = &end
	}
	return recipe, nil
}

// attempt books one occurrence. Every failure becomes a reason on the
// outcome; nothing aborts the batch.
func (s *RecurringService) attempt(
	ctx context.Context,
	log *zap.Logger,
	series *model.RecurringBookingSeries,
	notes string,
	number int,
	start time.Time,
) occurrenceOutcome {
	out := occurrenceOutcome{Number: number, Date: start}
	if ctx.Err() != nil {
		out.Reason = ReasonCancelled
		return out
	}

	n := number
	_, err := s.bookings.Create(ctx, CreateBookingInput{
		CustomerID:       series.CustomerID,
		WalkerID:         series.WalkerID,
		ServiceID:        series.ServiceID,
		LocationID:       series.LocationID,
		Start:            start,
		Notes:            notes,
		SeriesID:         &series.ID,
		OccurrenceNumber: &n,
	})
	switch {
	case err == nil:
	case ConflictReason(err) != "":
		out.Reason = ConflictReason(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Reason = ReasonCancelled
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		out.Reason = err.Error()
	default:
		log.Error("occurrence failed", zap.Int("occurrence", number), zap.Time("start", start), zap.Error(err))
		out.Reason = "booking failed"
	}
	if out.Reason != "" {
		log.Debug("occurrence rejected", zap.Int("occurrence", number), zap.String("reason", out.Reason))
	}
	return out
}

func decodeReport(series *model.RecurringBookingSeries) (*SeriesReport, error) {
	var report SeriesReport
	if err := json.Unmarshal(series.Report, &report); err != nil {
		return nil, fmt.Errorf("decode stored report of series %s: %w", series.ID, err)
	}
	return &report, nil
}

func seriesLockKey(idempotencyKey string) string {
	return "series:" + idempotencyKey
}

// CreateRecurringBlocks materializes a weekly block rule as one row per
// date, sharing a group id and the rule string. Days of the current week
// that have already passed are skipped.
func (s *RecurringService) CreateRecurringBlocks(ctx context.Context, in RecurringBlockInput) (*SeriesReport, error) {
	if in.WalkerID == uuid.Nil {
		return nil, validationf("walker_id is required")
	}
	from, err := calendar.ParseWallClock(in.StartTime)
	if err != nil {
		return nil, validationf("%v", err)
	}
	to, err := calendar.ParseWallClock(in.EndTime)
	if err != nil {
		return nil, validationf("%v", err)
	}
	if !from.Before(to) {
		return nil, validationf("end_time must be after start_time")
	}

	horizon := calendar.FixedHorizon(in.Weeks)
	if in.Indefinite {
		horizon = calendar.IndefiniteHorizon()
	}
	rule, err := calendar.NewWeeklyRule(in.Days, horizon)
	if err != nil {
		return nil, validationf("%v", err)
	}

	walker, err := s.walkers.GetByID(ctx, in.WalkerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("walker %s: %w", in.WalkerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load walker: %w", err)
	}
	loc, err := calendar.LoadLocation(walker.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("walker %s: %w", walker.ID, err)
	}

	dates := rule.Dates(calendar.Today(s.clock, loc), loc)
	groupID := uuid.New()
	ruleText := rule.String()

	report := newSeriesReport(groupID, len(dates))
	report.Indefinite = rule.Horizon.Indefinite()

	for i, date := range dates {
		out := occurrenceOutcome{Number: i + 1, Date: date}
		if ctx.Err() != nil {
			out.Reason = ReasonCancelled
			report.record(out)
			continue
		}
		_, err := s.blocks.Create(ctx, CreateBlockInput{
			WalkerID:          walker.ID,
			Start:             from.On(date, loc),
			End:               to.On(date, loc),
			Reason:            in.Reason,
			IsBlocking:        in.IsBlocking,
			RecurrenceRule:    &ruleText,
			RecurrenceGroupID: &groupID,
		})
		switch {
		case err == nil:
		case ConflictReason(err) != "":
			out.Reason = ConflictReason(err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			out.Reason = ReasonCancelled
		default:
			s.log.Error("recurring block failed", zap.Stringer("group_id", groupID), zap.Time("date", date), zap.Error(err))
			out.Reason = "block failed"
		}
		report.record(out)
	}

	report.Status = model.SeriesStatusCompleted
	if len(report.Conflicts) > 0 {
		report.Status = model.SeriesStatusPartiallyCompleted
	}
	s.log.Info("recurring blocks materialized",
		zap.Stringer("walker_id", walker.ID),
		zap.String("rule", ruleText),
		zap.Int("created", report.BookingsCreated),
		zap.Int("planned", report.TotalPlanned),
	)
	return report, nil
}

func (s *RecurringService) audit(ctx context.Context, ev *model.Event) {
	if err := s.events.Create(ctx, ev); err != nil {
		s.log.Warn("write audit event", zap.String("type", string(ev.EventType)), zap.Error(err))
	}
}
