package create

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/http-server/response"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type SeriesCreator interface {
	CreateSeries(ctx context.Context, in service.CreateSeriesInput) (*service.SeriesReport, error)
}

type Request struct {
	CustomerID string `json:"customerId" validate:"required,uuid"`
	WalkerID   string `json:"walkerId" validate:"required,uuid"`
	ServiceID  string `json:"serviceId" validate:"required,uuid"`
	LocationID string `json:"locationId" validate:"required,uuid"`

	Frequency string `json:"frequency" validate:"required,oneof=weekly bi_weekly monthly"`
	DayOfWeek *int   `json:"dayOfWeek" validate:"required,min=0,max=6"`
	TimeOfDay string `json:"timeOfDay" validate:"required"`
	TimeZone  string `json:"timezone"`

	EndDate          string `json:"endDate" validate:"required_without=TotalOccurrences,omitempty,datetime=2006-01-02"`
	TotalOccurrences int    `json:"totalOccurrences" validate:"required_without=EndDate,omitempty,min=1"`

	IdempotencyKey string `json:"idempotencyKey" validate:"max=255"`
	Notes          string `json:"notes" validate:"max=2000"`
}

type Response struct {
	response.Response
	*service.SeriesReport
}

// New serves POST /recurring-series. The Idempotency-Key header wins over
// the body field. A replayed report is answered with 200, a fresh one with
// 201.
func New(log *zap.Logger, creator SeriesCreator) http.HandlerFunc {
	validate := validator.New(validator.WithRequiredStructEnabled())

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.series.create.New"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Info("failed to decode request body", zap.Error(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.BadRequest, "failed to decode request"))
			return
		}
		if key := r.Header.Get(idempotencyHeader); key != "" {
			req.IdempotencyKey = key
		}
		if err := validate.Struct(req); err != nil {
			response.Invalid(w, r, err)
			return
		}

		in := service.CreateSeriesInput{
			CustomerID:       uuid.MustParse(req.CustomerID),
			WalkerID:         uuid.MustParse(req.WalkerID),
			ServiceID:        uuid.MustParse(req.ServiceID),
			LocationID:       uuid.MustParse(req.LocationID),
			Frequency:        calendar.Frequency(req.Frequency),
			DayOfWeek:        *req.DayOfWeek,
			TimeOfDay:        req.TimeOfDay,
			TimeZone:         req.TimeZone,
			TotalOccurrences: req.TotalOccurrences,
			IdempotencyKey:   req.IdempotencyKey,
			Notes:            req.Notes,
		}
		if req.EndDate != "" {
			end, err := time.Parse(calendar.DateLayout, req.EndDate)
			if err != nil {
				response.Invalid(w, r, err)
				return
			}
			in.EndDate = &end
		}

		report, err := creator.CreateSeries(r.Context(), in)
		if err != nil {
			response.FromError(w, r, log, err, "failed to create recurring series")
			return
		}

		log.Info("recurring series handled",
			zap.Stringer("series_id", report.SeriesID),
			zap.Bool("replayed", report.Replayed),
			zap.Int("created", report.BookingsCreated),
			zap.Int("conflicts", len(report.Conflicts)),
		)

		status := http.StatusCreated
		if report.Replayed {
			status = http.StatusOK
		}
		render.Status(r, status)
		render.JSON(w, r, Response{SeriesReport: report})
	}
}
