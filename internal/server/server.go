// Package server exposes the nutrition-plan workflow over HTTP: intake
// capture, PIX checkout, payment-status polling, regeneration and the
// gateway webhook.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nutriplan/nutriplan-backend/internal/models"
	"github.com/nutriplan/nutriplan-backend/internal/service"
)

// UserStore is the account lookup and intake persistence surface the
// server needs. *repository.UserRepository implements it.
type UserStore interface {
	FindByToken(ctx context.Context, token string) (*models.User, error)
	UpdateIntake(ctx context.Context, user *models.User) error
}

// Checkouts is the workflow surface the handlers call into.
// *service.CheckoutService implements it.
type Checkouts interface {
	StartDietRequest(ctx context.Context, user *models.User) (*models.DietRecord, error)
	LatestDiet(ctx context.Context, userID string) (*models.DietRecord, error)
	EnsureCheckout(ctx context.Context, user *models.User, dietID string) (*service.CheckoutResult, error)
	CheckStatus(ctx context.Context, user *models.User, orderID string) (*service.StatusResult, error)
	Regenerate(ctx context.Context, user *models.User, dietID, feedback string) (*models.DietRecord, error)
	HandlePaidOrder(ctx context.Context, orderID string) (string, error)
}

type Server struct {
	addr     string
	log      *slog.Logger
	users    UserStore
	checkout Checkouts
	router   *chi.Mux
}

func NewServer(addr string, log *slog.Logger, users UserStore, checkout Checkouts) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		log:      log,
		users:    users,
		checkout: checkout,
		router:   r,
	}

	r.Get("/health", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	// Older gateway configurations still post to the event-specific path.
	r.Post("/webhook/order-paid", s.handleWebhook)

	r.Group(func(protected chi.Router) {
		protected.Use(s.authMiddleware)
		protected.Post("/generatePrompt", s.handleGeneratePrompt)
		protected.Get("/generatePrompt", s.handleLatestDiet)
		protected.Post("/checkout", s.handleCheckout)
		protected.Get("/payment-status/{orderId}", s.handlePaymentStatus)
		protected.Post("/regenerate", s.handleRegenerate)
	})

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		// Generation happens synchronously inside status polls, so the
		// write timeout has to cover a full model round trip.
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("server shutdown error", "err", err)
		}
	}()

	s.log.Info("server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
