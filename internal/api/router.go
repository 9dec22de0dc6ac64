package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"dob-backend/internal/logbook"
	"dob-backend/internal/mw"
	"dob-backend/internal/observer"
	"dob-backend/internal/store"
)

// RouterConfig tunes the HTTP middleware.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
}

// NewRouter creates and configures a new Gin router. responseCache is
// constructed by the caller: it doubles as an entry-factory notifier, so
// every stored entry invalidates its officer's cached reads.
func NewRouter(s store.Store, lb *logbook.Service, obs *observer.Manager, webpushOptions *webpush.Options, responseCache *mw.OfficerCache, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, lb, obs, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.RequireOfficer())
	{
		api.POST("/entries", handler.PostEntry)
		api.GET("/entries", responseCache.Middleware(), handler.ListEntries)
		api.GET("/entries/:id", handler.GetEntry)

		api.POST("/sessions", handler.StartSession)
		api.DELETE("/sessions", handler.StopSession)

		api.PUT("/push_subscriptions", handler.PutSubscription)
		api.GET("/push_subscriptions", handler.GetSubscriptions)
		api.DELETE("/push_subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
