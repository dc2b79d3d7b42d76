// Package api exposes the notification subsystem over HTTP: submitting
// notifications, inspecting delivery logs, device token registration,
// webhook subscription management, inbound provider callbacks and the
// in-app websocket feed.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/campuskit/notify/pkg/delivery"
	"github.com/campuskit/notify/pkg/dispatch"
	"github.com/campuskit/notify/pkg/httpserver"
	"github.com/campuskit/notify/pkg/inapp"
	"github.com/campuskit/notify/pkg/push"
	"github.com/campuskit/notify/pkg/queue"
	"github.com/campuskit/notify/pkg/reconcile"
	"github.com/campuskit/notify/pkg/webhook"
)

// DeadLetterStorage is the slice of queue storage the API needs to keep
// the dead-letter list observable.
type DeadLetterStorage interface {
	DeadLetters(ctx context.Context, queueName string, limit int) ([]queue.DeadLetter, error)
	RequeueDeadLetter(ctx context.Context, deadLetterID uuid.UUID) (uuid.UUID, error)
}

// Server holds the handler dependencies.
type Server struct {
	router     *dispatch.Router
	enqueuer   *queue.Enqueuer
	dlq        DeadLetterStorage
	logs       delivery.Store
	tokens     push.TokenStore
	subs       webhook.SubscriptionStore
	inbox      *inapp.Adapter
	reconciler *reconcile.Reconciler

	// callbackSecrets maps a provider name to the shared secret its
	// inbound callbacks are signed with. A provider without an entry
	// cannot deliver callbacks.
	callbackSecrets map[string]string

	upgrader websocket.Upgrader
	log      *slog.Logger
	probes   []func(context.Context) error
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCallbackSecret registers the signing secret for a provider's
// inbound delivery callbacks.
func WithCallbackSecret(provider, secret string) Option {
	return func(s *Server) {
		s.callbackSecrets[provider] = secret
	}
}

// WithReadinessProbe adds a dependency check to the health endpoint.
func WithReadinessProbe(probe func(context.Context) error) Option {
	return func(s *Server) {
		if probe != nil {
			s.probes = append(s.probes, probe)
		}
	}
}

// New creates the API server.
func New(
	router *dispatch.Router,
	enqueuer *queue.Enqueuer,
	dlq DeadLetterStorage,
	logs delivery.Store,
	tokens push.TokenStore,
	subs webhook.SubscriptionStore,
	inbox *inapp.Adapter,
	reconciler *reconcile.Reconciler,
	opts ...Option,
) *Server {
	s := &Server{
		router:          router,
		enqueuer:        enqueuer,
		dlq:             dlq,
		logs:            logs,
		tokens:          tokens,
		subs:            subs,
		inbox:           inbox,
		reconciler:      reconciler,
		callbackSecrets: make(map[string]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(context.Background(), s.log, s.probes...))
	r.Get("/ws", s.handleWebsocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", s.handleSubmit)
			r.Get("/{id}/deliveries", s.handleDeliveries)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", s.handleRegisterDevice)
			r.Delete("/{token}", s.handleUnregisterDevice)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/subscriptions", s.handleCreateSubscription)
			r.Get("/subscriptions", s.handleListSubscriptions)
			r.Delete("/subscriptions/{id}", s.handleDeactivateSubscription)
			r.Post("/callbacks/{provider}", s.handleCallback)
		})

		r.Route("/users/{id}/notifications", func(r chi.Router) {
			r.Get("/", s.handleInbox)
			r.Post("/read", s.handleMarkRead)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/dead-letters", s.handleDeadLetters)
			r.Post("/dead-letters/{id}/requeue", s.handleRequeue)
		})
	})

	return r
}
