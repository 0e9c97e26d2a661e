package recurring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kcirtapfromspace/offleash-sub002/internal/http-server/response"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

type RecurringBlockCreator interface {
	CreateRecurringBlocks(ctx context.Context, in service.RecurringBlockInput) (*service.SeriesReport, error)
}

type Request struct {
	Days       []int  `json:"days" validate:"required,min=1,dive,min=0,max=6"`
	StartTime  string `json:"startTime" validate:"required"`
	EndTime    string `json:"endTime" validate:"required"`
	Weeks      int    `json:"weeks" validate:"required_without=Indefinite,omitempty,min=1,max=52"`
	Indefinite bool   `json:"indefinite"`
	Reason     string `json:"reason" validate:"max=255"`
	IsBlocking *bool  `json:"isBlocking"`
}

type Response struct {
	response.Response
	*service.SeriesReport
}

// New serves POST /walkers/{walkerID}/blocks/recurring.
func New(log *zap.Logger, creator RecurringBlockCreator) http.HandlerFunc {
	validate := validator.New(validator.WithRequiredStructEnabled())

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.recurring.New"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		walkerID, err := uuid.Parse(chi.URLParam(r, "walkerID"))
		if err != nil {
			response.Invalid(w, r, errors.New("walkerID must be a uuid"))
			return
		}

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

		days := make([]time.Weekday, 0, len(req.Days))
		for _, d := range req.Days {
			days = append(days, time.Weekday(d))
		}
		blocking := true
		if req.IsBlocking != nil {
			blocking = *req.IsBlocking
		}

		report, err := creator.CreateRecurringBlocks(r.Context(), service.RecurringBlockInput{
			WalkerID:   walkerID,
			Days:       days,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Weeks:      req.Weeks,
			Indefinite: req.Indefinite,
			Reason:     req.Reason,
			IsBlocking: blocking,
		})
		if err != nil {
			response.FromError(w, r, log, err, "failed to create recurring blocks")
			return
		}

		log.Info("recurring blocks created",
			zap.Stringer("group_id", report.SeriesID),
			zap.Int("created", report.BookingsCreated),
			zap.Int("planned", report.TotalPlanned),
		)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{SeriesReport: report})
	}
}
