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

	"github.com/kcirtapfromspace/offleash-sub002/internal/http-server/response"
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

type BookingCreator interface {
	Create(ctx context.Context, in service.CreateBookingInput) (*model.Booking, error)
}

type Request struct {
	CustomerID string    `json:"customerId" validate:"required,uuid"`
	WalkerID   string    `json:"walkerId" validate:"required,uuid"`
	ServiceID  string    `json:"serviceId" validate:"required,uuid"`
	LocationID string    `json:"locationId" validate:"required,uuid"`
	Start      time.Time `json:"start" validate:"required"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

type Booking struct {
	ID             uuid.UUID           `json:"id"`
	CustomerID     uuid.UUID           `json:"customerId"`
	WalkerID       uuid.UUID           `json:"walkerId"`
	ServiceID      uuid.UUID           `json:"serviceId"`
	LocationID     uuid.UUID           `json:"locationId"`
	ScheduledStart time.Time           `json:"scheduledStart"`
	ScheduledEnd   time.Time           `json:"scheduledEnd"`
	Status         model.BookingStatus `json:"status"`
}

type Response struct {
	response.Response
	Booking *Booking `json:"booking,omitempty"`
}

// New serves POST /bookings.
func New(log *zap.Logger, creator BookingCreator) http.HandlerFunc {
	validate := validator.New(validator.WithRequiredStructEnabled())

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

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
		if err := validate.Struct(req); err != nil {
			response.Invalid(w, r, err)
			return
		}

		b, err := creator.Create(r.Context(), service.CreateBookingInput{
			CustomerID: uuid.MustParse(req.CustomerID),
			WalkerID:   uuid.MustParse(req.WalkerID),
			ServiceID:  uuid.MustParse(req.ServiceID),
			LocationID: uuid.MustParse(req.LocationID),
			Start:      req.Start,
			Notes:      req.Notes,
		})
		if err != nil {
			response.FromError(w, r, log, err, "failed to create booking")
			return
		}

		log.Info("booking created", zap.Stringer("booking_id", b.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Booking: &Booking{
			ID:             b.ID,
			CustomerID:     b.CustomerID,
			WalkerID:       b.WalkerID,
			ServiceID:      b.ServiceID,
			LocationID:     b.LocationID,
			ScheduledStart: b.ScheduledStart,
			ScheduledEnd:   b.ScheduledEnd,
			Status:         b.Status,
		}})
	}
}
