package create

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
	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

type BlockCreator interface {
	Create(ctx context.Context, in service.CreateBlockInput) (*model.Block, error)
}

type Request struct {
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required,gtfield=Start"`
	Reason string    `json:"reason" validate:"max=255"`
	// IsBlocking defaults to true.
	IsBlocking *bool `json:"isBlocking"`
}

type Block struct {
	ID         uuid.UUID `json:"id"`
	WalkerID   uuid.UUID `json:"walkerId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason"`
	IsBlocking bool      `json:"isBlocking"`
}

type Response struct {
	response.Response
	Block *Block `json:"block,omitempty"`
}

// New serves POST /walkers/{walkerID}/blocks.
func New(log *zap.Logger, creator BlockCreator) http.HandlerFunc {
	validate := validator.New(validator.WithRequiredStructEnabled())

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.create.New"

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

		blocking := true
		if req.IsBlocking != nil {
			blocking = *req.IsBlocking
		}

		b, err := creator.Create(r.Context(), service.CreateBlockInput{
			WalkerID:   walkerID,
			Start:      req.Start,
			End:        req.End,
			Reason:     req.Reason,
			IsBlocking: blocking,
		})
		if err != nil {
			response.FromError(w, r, log, err, "failed to create block")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{Block: &Block{
			ID:         b.ID,
			WalkerID:   b.WalkerID,
			Start:      b.StartTime,
			End:        b.EndTime,
			Reason:     b.Reason,
			IsBlocking: b.IsBlocking,
		}})
	}
}
