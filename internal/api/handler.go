package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"mcm-alerts-backend/internal/dispatch"
	"mcm-alerts-backend/internal/feed"
	"mcm-alerts-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
	broker     *feed.Broker
	webpush    *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, d *dispatch.Dispatcher, b *feed.Broker, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:      s,
		dispatcher: d,
		broker:     b,
		webpush:    webpushOptions,
	}
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
