// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rally/internal/http/handlers"
	"rally/internal/http/middleware"
	"rally/internal/modules/arrival"
	"rally/internal/modules/event"
	"rally/internal/modules/location"
)

type ServerDeps struct {
	Events   *event.Service
	Location *location.Service
	Arrivals *arrival.Aggregator
}

type Server struct {
	events   *event.Service
	location *location.Service
	arrivals *arrival.Aggregator
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		events:   deps.Events,
		location: deps.Location,
		arrivals: deps.Arrivals,
	}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	eventHandler := handlers.NewEventHandler(s.events, s.arrivals)
	r.POST("/api/events", eventHandler.Create)
	r.GET("/api/events/:id", eventHandler.Get)
	r.POST("/api/events/:id/join", eventHandler.Join)
	r.GET("/api/events/:id/status", eventHandler.Status)

	locationHandler := handlers.NewLocationHandler(s.location)
	r.PUT("/api/users/:id/location", locationHandler.Update)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
