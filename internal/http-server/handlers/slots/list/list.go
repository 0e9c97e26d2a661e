package list

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
	"github.com/kcirtapfromspace/offleash-sub002/internal/http-server/response"
	"github.com/kcirtapfromspace/offleash-sub002/internal/service"
)

type SlotLister interface {
	ListSlots(ctx context.Context, q service.SlotQuery) ([]service.WalkerSlots, error)
}

type Slot struct {
	Start         time.Time          `json:"start"`
	End           time.Time          `json:"end"`
	Confidence    service.Confidence `json:"confidence"`
	IsTight       bool               `json:"isTight"`
	TravelMinutes *int               `json:"travelMinutes"`
	GapMinutes    *int               `json:"gapMinutes"`
	Warning       string             `json:"warning,omitempty"`
}

type WalkerSlots struct {
	WalkerID  uuid.UUID `json:"walkerId"`
	Date      string    `json:"date"`
	ServiceID uuid.UUID `json:"serviceId"`
	Slots     []Slot    `json:"slots"`
}

type Response struct {
	response.Response
	Availability []WalkerSlots `json:"availability"`
}

// New serves GET /availability/slots?date&service_id&location_id[&walker_id].
func New(log *zap.Logger, lister SlotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.list.New"

		log := log.With(
			zap.String("op", op),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)

		q, err := parseQuery(r)
		if err != nil {
			log.Info("invalid query", zap.Error(err))
			response.Invalid(w, r, err)
			return
		}

		res, err := lister.ListSlots(r.Context(), q)
		if err != nil {
			response.FromError(w, r, log, err, "failed to list slots")
			return
		}

		out := make([]WalkerSlots, 0, len(res))
		for _, ws := range res {
			slots := make([]Slot, 0, len(ws.Slots))
			for _, s := range ws.Slots {
				slots = append(slots, Slot{
					Start:         s.Start,
					End:           s.End,
					Confidence:    s.Confidence,
					IsTight:       s.IsTight,
					TravelMinutes: s.TravelMinutes,
					GapMinutes:    s.GapMinutes,
					Warning:       s.Warning,
				})
			}
			out = append(out, WalkerSlots{
				WalkerID:  ws.WalkerID,
				Date:      ws.Date,
				ServiceID: ws.ServiceID,
				Slots:     slots,
			})
		}

		log.Debug("slots listed", zap.Int("walkers", len(out)))
		render.JSON(w, r, Response{Availability: out})
	}
}

func parseQuery(r *http.Request) (service.SlotQuery, error) {
	var q service.SlotQuery
	values := r.URL.Query()

	date, err := calendar.ParseDate(values.Get("date"), time.UTC)
	if err != nil {
		return q, err
	}
	q.Date = date

	if q.ServiceID, err = uuid.Parse(values.Get("service_id")); err != nil {
		return q, errors.New("service_id must be a uuid")
	}
	if q.LocationID, err = uuid.Parse(values.Get("location_id")); err != nil {
		return q, errors.New("location_id must be a uuid")
	}
	if raw := values.Get("walker_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return q, errors.New("walker_id must be a uuid")
		}
		q.WalkerID = &id
	}
	return q, nil
}
