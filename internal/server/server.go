package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/config"
	"github.com/ItsHarshjsin/riseup-sub000/internal/handlers"
	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Auth       *services.AuthService
	Tasks      *services.TaskService
	Clans      *services.ClanService
	Challenges *services.ChallengeService
	Spin       *services.SpinService
	Profiles   *services.ProfileService
	Progress   *services.ProgressService
	Queries    *services.Queries
	Presence   services.PresenceStore
}

type Server struct {
	router *chi.Mux
	config config.Config
}

func New(cfg config.Config, engine Services) *Server {
	return &Server{
		router: NewRouter(cfg, engine),
		config: cfg,
	}
}

func NewRouter(cfg config.Config, engine Services) *chi.Mux {
	authHandler := handlers.NewAuthHandler(engine.Auth, engine.Queries)
	taskHandler := handlers.NewTaskHandler(engine.Tasks, engine.Queries)
	progressHandler := handlers.NewProgressHandler(engine.Profiles, engine.Queries)
	clanHandler := handlers.NewClanHandler(engine.Clans, engine.Spin, engine.Queries)
	challengeHandler := handlers.NewChallengeHandler(engine.Challenges, engine.Queries)
	icalHandler := handlers.NewICalHandler(engine.Queries)
	systemHandler := handlers.NewSystemHandler(engine.Queries, engine.Clans, engine.Progress)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Compress(5))

	router.Get("/health", systemHandler.Health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.WithSession(engine.Auth))
		r.Use(limiter.Handler)

		r.Get("/auth/login", authHandler.Login)
		r.Get("/auth/callback", authHandler.Callback)
		r.Post("/auth/dev", authHandler.DevLogin)
		r.Post("/auth/logout", authHandler.Logout)

		r.Get("/api/leaderboard", progressHandler.Leaderboard)
		r.Get("/api/leaderboard/clans", progressHandler.ClanLeaderboard)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(engine.Auth, engine.Presence))
		r.Use(limiter.Handler)

		r.Get("/api/me", authHandler.Me)
		r.Put("/api/me", progressHandler.UpdateProfile)
		r.Get("/api/me/level", progressHandler.Level)
		r.Get("/api/me/mastery", progressHandler.Mastery)
		r.Get("/api/me/badges", progressHandler.Badges)
		r.Get("/api/me/calendar", progressHandler.Calendar)
		r.Get("/api/me/calendar.ics", icalHandler.Feed)
		r.Get("/api/online", progressHandler.Online)

		r.Get("/api/tasks", taskHandler.List)
		r.Get("/api/tasks/history", taskHandler.History)
		r.Post("/api/tasks", taskHandler.Create)
		r.Post("/api/tasks/{id}/toggle", taskHandler.Toggle)

		r.Get("/api/clan", clanHandler.Mine)
		r.Post("/api/clans", clanHandler.Create)
		r.Post("/api/clans/join", clanHandler.Join)
		r.Post("/api/clans/{id}/spin", clanHandler.Spin)
		r.Post("/api/spin/accept", clanHandler.AcceptSpin)
		r.Post("/api/clan/invites", clanHandler.Invite)
		r.Get("/api/invites", clanHandler.Invites)
		r.Post("/api/invites/redeem", clanHandler.RedeemInvite)
		r.Post("/api/invites/{id}/accept", clanHandler.AcceptInvite)
		r.Post("/api/invites/{id}/reject", clanHandler.RejectInvite)

		r.Get("/api/challenges", challengeHandler.ListPeer)
		r.Post("/api/challenges", challengeHandler.Issue)
		r.Post("/api/challenges/{id}/respond", challengeHandler.Respond)
		r.Post("/api/challenges/{id}/complete", challengeHandler.CompletePeer)

		r.Get("/api/clan/challenges", challengeHandler.ListClan)
		r.Post("/api/clan/challenges", challengeHandler.CreateClan)
		r.Post("/api/clan/challenges/{id}/participants", challengeHandler.RetryParticipants)
		r.Post("/api/clan/challenges/{id}/complete", challengeHandler.CompleteClan)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.AdminEmails))

			r.Post("/api/system/repair", systemHandler.Repair)
			r.Get("/api/system/cache", systemHandler.CacheStats)
		})
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + server.config.Port,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("starting server", "address", httpServer.Addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
