package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"mcm-alerts-backend/config"
	"mcm-alerts-backend/internal/dispatch"
	"mcm-alerts-backend/internal/feed"
	"mcm-alerts-backend/internal/mw"
	"mcm-alerts-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, d *dispatch.Dispatcher, b *feed.Broker, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, d, b, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/health", handler.Health)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/subscriptions", handler.PostSubscription)
		api.DELETE("/subscriptions/:id", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		api.POST("/events", handler.PostEvent)
		api.GET("/events", handler.GetEvents)
		api.GET("/events/poll", handler.PollEvents)
		api.GET("/events/stream", handler.StreamEvents)
		api.GET("/events/ws", handler.WebSocketEvents)
		api.PUT("/events", handler.AckEvents)
		api.PUT("/events/:id", handler.AckEvent)

		api.GET("/topics", caching, handler.GetTopics)
		api.POST("/topics", handler.PostTopic)
		api.PUT("/topics/:id", handler.PutTopic)
		api.DELETE("/topics/:id", handler.DeleteTopic)
	}

	return r
}
