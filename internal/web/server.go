// Package web exposes the read API over HTTP.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/metrics"
	"github.com/renderinc/dil/internal/query"
)

// Pinger reports whether the relational store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the HTTP surface.
type Options struct {
	// Prefix is the path every API route is mounted under.
	Prefix      string
	CORSOrigins []string
	Release     bool
}

// Server serves the read API over HTTP.
type Server struct {
	composer *query.Composer
	db       Pinger
	log      *logger.Logger
	opts     Options
}

// NewServer creates a server answering from composer.
func NewServer(log *logger.Logger, composer *query.Composer, db Pinger, opts Options) *Server {
	return &Server{
		composer: composer,
		db:       db,
		log:      log.With("component", "web"),
		opts:     opts,
	}
}

// Handler returns the gin router with every route mounted under the prefix.
func (s *Server) Handler() http.Handler {
	if s.opts.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	corsCfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.opts.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.opts.CORSOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group(s.opts.Prefix)
	{
		api.GET("/", s.handleHealth)
		api.GET("/infos", s.handleInfos)

		api.GET("/persons", s.handlePersons)
		api.GET("/persons/person/:id", s.handlePerson)
		api.GET("/persons/person/:id/images", s.handlePersonImages)

		api.GET("/patents", s.handlePatents)
		api.GET("/patents/patent/:id", s.handlePatent)

		api.GET("/referential/cities", s.handleCities)
		api.GET("/referential/cities/city/:id", s.handleCity)
		api.GET("/referential/addresses", s.handleAddresses)
		api.GET("/referential/addresses/address/:id", s.handleAddress)

		api.GET("/map/places", s.handlePlaces)
	}
	return router
}

// requestLog logs every request and feeds the HTTP metrics.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
		)
	}
}
