package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	blockCreate "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/blocks/create"
	blockRecurring "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/blocks/recurring"
	bookingCreate "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/bookings/create"
	"github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/health"
	seriesCreate "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/series/create"
	slotList "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/slots/list"
	walkerOpen "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/handlers/walkers/open"
	mwLogger "github.com/kcirtapfromspace/offleash-sub002/internal/http-server/middleware/logger"
)

// Services is everything the HTTP API calls into.
type Services struct {
	Slots           slotList.SlotLister
	OpenIntervals   walkerOpen.OpenIntervalLister
	Bookings        bookingCreate.BookingCreator
	Series          seriesCreate.SeriesCreator
	Blocks          blockCreate.BlockCreator
	RecurringBlocks blockRecurring.RecurringBlockCreator
	DB              health.Pinger
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func NewRouter(log *zap.Logger, svc Services) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(CORS)

	router.Get("/healthz", health.New(log, svc.DB))

	router.Get("/availability/slots", slotList.New(log, svc.Slots))

	router.Post("/bookings", bookingCreate.New(log, svc.Bookings))
	router.Post("/recurring-series", seriesCreate.New(log, svc.Series))

	router.Route("/walkers/{walkerID}", func(r chi.Router) {
		r.Get("/open-intervals", walkerOpen.New(log, svc.OpenIntervals))
		r.Post("/blocks", blockCreate.New(log, svc.Blocks))
		r.Post("/blocks/recurring", blockRecurring.New(log, svc.RecurringBlocks))
	})

	return router
}
