package web

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"protagonist-billing/internal/infra/logging"
	"protagonist-billing/internal/usecase"
)

type Server struct {
	userUC        usecase.UserUseCase
	challengeUC   usecase.ChallengeUseCase
	subUC         usecase.SubscriptionUseCase
	refundUC      usecase.RefundUseCase
	auth          *AuthManager
	webhookSecret string
	log           *zerolog.Logger
}

func NewServer(
	userUC usecase.UserUseCase,
	challengeUC usecase.ChallengeUseCase,
	subUC usecase.SubscriptionUseCase,
	refundUC usecase.RefundUseCase,
	auth *AuthManager,
	webhookSecret string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		userUC:        userUC,
		challengeUC:   challengeUC,
		subUC:         subUC,
		refundUC:      refundUC,
		auth:          auth,
		webhookSecret: webhookSecret,
		log:           &l,
	}
}

// Router builds the full HTTP surface. The trigger and API routes sit behind
// bearer auth; the provider webhook is guarded by a shared secret instead
// because the scheduler and the provider cannot mint our tokens.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.traceMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.authMiddleware)

		api.Post("/triggers/pre-billing-check", s.preBillingCheckHandler)

		api.Post("/users", s.userCreateHandler)
		api.Get("/users/{id}", s.userGetHandler)
		api.Post("/users/{id}/stripe-link", s.userLinkStripeHandler)
		api.Get("/users/{id}/challenges", s.challengeListHandler)

		api.Post("/challenges", s.challengeCreateHandler)
		api.Get("/challenges/{id}", s.challengeGetHandler)
		api.Post("/challenges/{id}/days/{date}/submission", s.submissionAttachHandler)
		api.Post("/challenges/{id}/days/{date}/verdict", s.submissionResolveHandler)
	})

	r.With(s.webhookMiddleware).Post("/webhooks/stripe", s.stripeWebhookHandler)

	return r
}

// traceMiddleware carries the request ID into the context so request-scoped
// loggers tag every line with it.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tid := middleware.GetReqID(r.Context()); tid != "" {
			r = r.WithContext(logging.WithTraceID(r.Context(), tid))
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware provides bearer token authentication for the service API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// webhookMiddleware checks the shared secret the provider is configured to
// send. Not a signature scheme; rotating the secret invalidates in-flight
// deliveries.
func (s *Server) webhookMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.webhookSecret == "" {
			s.log.Error().Msg("webhook secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
