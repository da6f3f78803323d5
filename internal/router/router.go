package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/notification-service/internal/handler"
	"github.com/jwalitptl/notification-service/internal/handler/notification"
	"github.com/jwalitptl/notification-service/internal/middleware"
	"github.com/jwalitptl/notification-service/internal/ws"
)

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORS             middleware.CORSConfig
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	notificationH *notification.Handler
	wsH           *ws.Handler
	h             *handler.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	notificationH *notification.Handler,
	wsH *ws.Handler,
	h *handler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.CORS(config.CORS))
	if config.RateLimitEnabled {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rl.RateLimit())
	}

	return &Router{
		engine:        engine,
		auth:          auth,
		notificationH: notificationH,
		wsH:           wsH,
		h:             h,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/health/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	// The websocket handshake authenticates via the user_id query
	// parameter, not a bearer token; browsers cannot set headers here.
	r.wsH.RegisterRoutes(r.engine.Group(""))

	api := r.engine.Group("/api")
	if r.auth != nil {
		api.Use(r.auth.Authenticate())
	}
	r.notificationH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(port int) error {
	return r.engine.Run(fmt.Sprintf(":%d", port))
}
