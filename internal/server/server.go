// Package server Agora
//
// The Agora is a service which provides access to social feed entities (posts, shorts, likes, comments, profiles)
//
//     Schemes: https
//     BasePath: /v1
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//     - multipart/form-data
//
// swagger:meta
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/auth"
	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/livesync"
	mm "github.com/Decentr-net/agora/internal/middleware"
	"github.com/Decentr-net/agora/internal/service"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

var log = logrus.WithField("layer", "server").WithField("package", "server")

const maxBodySize = 64 * 1024

// Subscriber provides live collection subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, c entities.Collection) (*livesync.Subscription, error)
}

// Config ...
type Config struct {
	Timeout         time.Duration
	MaxUploadSize   int64
	ProfileCacheTTL time.Duration
	// MutationRate is allowed count of mutations per second per user.
	MutationRate  float64
	MutationBurst int
}

type server struct {
	s     service.Service
	a     auth.Authenticator
	hub   Subscriber
	cache mm.Storage

	limiter  *limiter
	upgrader websocket.Upgrader
}

// SetupRouter setups handlers to chi router.
func SetupRouter(r chi.Router, s service.Service, a auth.Authenticator, hub Subscriber, cache mm.Storage, c Config) {
	r.Use(
		middleware.RequestID,
		api.LoggerMiddleware,
		metricsMiddleware,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.Recoverer,
	)

	srv := server{
		s:       s,
		a:       a,
		hub:     hub,
		cache:   cache,
		limiter: newLimiter(rate.Limit(c.MutationRate), c.MutationBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(srv.gate)

		// websocket connections live longer than request timeout
		r.Get("/{collection}/subscribe", srv.subscribe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(c.Timeout))

			r.Group(func(r chi.Router) {
				r.Use(api.BodyLimiterMiddleware(maxBodySize))

				r.Post("/session", srv.signIn)
				r.Delete("/session", srv.signOut)

				r.Get("/profiles/me", srv.getMe)
				r.Get("/profiles/{id}", mm.Cached(cache, c.ProfileCacheTTL, srv.getProfile))

				r.Get("/{collection}", srv.listItems)
				r.Get("/{collection}/{id}", srv.getItem)

				r.Group(func(r chi.Router) {
					r.Use(srv.limiter.middleware)

					r.Put("/profiles/me", srv.updateMe)
					r.Post("/{collection}/{id}/like", srv.toggleLike)
					r.Post("/{collection}/{id}/comments", srv.addComment)
					r.Delete("/{collection}/{id}", srv.deleteItem)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(api.BodyLimiterMiddleware(c.MaxUploadSize))
				r.Use(srv.limiter.middleware)

				r.Post("/profiles/me/{kind}", srv.setProfileImage)
				r.Post("/{collection}", srv.createItem)
			})
		})
	})
}
