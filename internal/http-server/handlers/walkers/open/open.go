package open

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/http-server/response"
)

type OpenIntervalLister interface {
	OpenIntervals(ctx context.Context, walkerID uuid.UUID, date time.Time) ([]calendar.TimeRange, error)
}

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Response struct {
	response.Response
	WalkerID  uuid.UUID  `json:"walkerId"`
	Date      string     `json:"date"`
	Intervals []Interval `json:"intervals"`
}

// New serves GET /walkers/{walkerID}/open-intervals?date=YYYY-MM-DD.
func New(log *zap.Logger, lister OpenIntervalLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.walkers.open.New"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		walkerID, err := uuid.Parse(chi.URLParam(r, "walkerID"))
		if err != nil {
			response.Invalid(w, r, errors.New("walkerID must be a uuid"))
			return
		}
		date, err := calendar.ParseDate(r.URL.Query().Get("date"), time.UTC)
		if err != nil {
			response.Invalid(w, r, err)
			return
		}

		open, err := lister.OpenIntervals(r.Context(), walkerID, date)
		if err != nil {
			response.FromError(w, r, log, err, "failed to resolve open intervals")
			return
		}

		intervals := make([]Interval, 0, len(open))
		for _, iv := range open {
			intervals = append(intervals, Interval{Start: iv.Start, End: iv.End})
		}

		render.JSON(w, r, Response{
			WalkerID:  walkerID,
			Date:      date.Format(calendar.DateLayout),
			Intervals: intervals,
		})
	}
}
