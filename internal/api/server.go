package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"swordsmith/internal/adverify"
	"swordsmith/internal/auth"
	"swordsmith/internal/game"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	AccountID string
	Email     string
}

// TokenVerifier turns a bearer token into the acting user.
type TokenVerifier interface {
	Verify(token string) (auth.User, error)
}

// CallbackVerifier checks ad network reward callbacks.
type CallbackVerifier interface {
	Verify(ctx context.Context, rawQuery string) (adverify.Callback, error)
}

type Server struct {
	log   *slog.Logger
	auth  TokenVerifier
	ads   CallbackVerifier
	game  *game.Service
	mux   *chi.Mux
	ready func(ctx context.Context) error
}

type Option func(*Server)

// WithReadiness sets the check behind /readyz, usually a database ping.
func WithReadiness(fn func(ctx context.Context) error) Option {
	return func(s *Server) { s.ready = fn }
}

func New(logger *slog.Logger, tokens TokenVerifier, ads CallbackVerifier, gameSvc *game.Service, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		auth: tokens,
		ads:  ads,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/readyz", s.handleReady)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/catalog/swords", s.handleSwordLevels)
		r.Get("/catalog/materials", s.handleMaterials)
		r.Get("/catalog/settings", s.handleSettings)
		r.Get("/ads/callback", s.handleAdCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/dashboard", s.handleDashboard)
			r.Delete("/account", s.handleDeleteAccount)

			r.Post("/anvil/mount", s.handleMount)
			r.Post("/anvil/unmount", s.handleUnmount)
			r.Post("/anvil/upgrade", s.handleUpgrade)
			r.Get("/anvil/history", s.handleUpgradeLog)
			r.Post("/shield/protection", s.handleShieldProtection)

			r.Post("/market/swords/buy", s.handleBuySword)
			r.Post("/market/swords/sell", s.handleSellSword)
			r.Post("/market/materials/buy", s.handleBuyMaterial)
			r.Post("/market/materials/sell", s.handleSellMaterial)
			r.Post("/market/shields/buy", s.handleBuyShield)
			r.Post("/synthesis", s.handleSynthesize)

			r.Get("/vouchers", s.handleListVouchers)
			r.Post("/vouchers", s.handleCreateVoucher)
			r.Post("/vouchers/redeem", s.handleRedeemVoucher)
			r.Put("/vouchers/{id}/redeemer", s.handleAssignRedeemer)
			r.Delete("/vouchers/{id}/redeemer", s.handleRemoveRedeemer)
			r.Post("/vouchers/{id}/cancel", s.handleCancelVoucher)

			r.Get("/gifts", s.handleListGifts)
			r.Post("/gifts/{id}/claim", s.handleClaimGift)

			r.Post("/ads/sessions", s.handleStartAdSession)
			r.Post("/ads/sessions/{nonce}/claim", s.handleClaimAdReward)

			r.Get("/missions", s.handleListMissions)
			r.Post("/missions/daily/{id}/claim", s.handleClaimDailyMission)
			r.Post("/missions/one-time/{id}/claim", s.handleClaimOneTimeMission)
		})
	})
}

// authMiddleware verifies the bearer token and makes sure an account exists
// for the caller before any handler runs.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, auth.ErrMissingToken.Error())
			return
		}
		user, err := s.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if _, err := s.game.EnsureAccount(r.Context(), user.ID, user.Email); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			AccountID: user.ID,
			Email:     user.Email,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	user, ok := ctx.Value(userContextKey).(UserContext)
	if !ok || user.AccountID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
