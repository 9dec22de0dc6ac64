package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"dob-backend/internal/logbook"
	"dob-backend/internal/observer"
	"dob-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	logbook  *logbook.Service
	observer *observer.Manager
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, lb *logbook.Service, obs *observer.Manager, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		logbook:  lb,
		observer: obs,
		webpush:  webpushOptions,
	}
}
