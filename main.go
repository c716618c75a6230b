package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/config"
	"github.com/ItsHarshjsin/riseup-sub000/internal/database"
	"github.com/ItsHarshjsin/riseup-sub000/internal/logging"
	"github.com/ItsHarshjsin/riseup-sub000/internal/presence"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
	"github.com/ItsHarshjsin/riseup-sub000/internal/server"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos := services.Repositories{
		Profiles:       repository.NewProfileRepository(db),
		Tasks:          repository.NewTaskRepository(db),
		Clans:          repository.NewClanRepository(db),
		Memberships:    repository.NewMembershipRepository(db),
		ClanChallenges: repository.NewClanChallengeRepository(db),
		PeerChallenges: repository.NewPeerChallengeRepository(db),
		Invites:        repository.NewInviteRepository(db),
		Badges:         repository.NewBadgeRepository(db),
		Mastery:        repository.NewMasteryRepository(db),
	}
	cache := querycache.New()

	authService, err := services.NewAuthService(ctx, cfg, repos.Profiles)
	if err != nil {
		slog.Error("creating auth service", "error", err)
		os.Exit(1)
	}

	badgeService := services.NewBadgeService(repos.Badges, cache)
	progressService := services.NewProgressService(repos.Profiles, repos.Tasks, repos.Mastery, badgeService, cache)
	taskService := services.NewTaskService(repos.Tasks, progressService, cache)
	clanService, err := services.NewClanService(repos.Clans, repos.Memberships, repos.Invites, repos.Profiles, badgeService, cache)
	if err != nil {
		slog.Error("creating clan service", "error", err)
		os.Exit(1)
	}
	challengeService := services.NewChallengeService(repos.PeerChallenges, repos.ClanChallenges, repos.Memberships,
		repos.Clans, repos.Profiles, progressService, badgeService, cache)
	spinService := services.NewSpinService(repos.Memberships, repos.Tasks, taskService, cfg.SpinSeed)

	presenceStore := newPresenceStore(ctx, cfg, repos.Profiles)
	queries := services.NewQueries(cache, repos, presenceStore, cfg.PresenceWindow)

	go watchPresence(ctx, queries, cfg.PresencePollInterval)
	go runRepairs(ctx, clanService, progressService, cfg.RepairInterval)

	srv := server.New(cfg, server.Services{
		Auth:       authService,
		Tasks:      taskService,
		Clans:      clanService,
		Challenges: challengeService,
		Spin:       spinService,
		Profiles:   services.NewProfileService(repos.Profiles, cache),
		Progress:   progressService,
		Queries:    queries,
		Presence:   presenceStore,
	})
	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newPresenceStore uses Redis when REDIS_ADDR is set and reachable, and the
// profiles table otherwise.
func newPresenceStore(ctx context.Context, cfg config.Config, profileRepo repository.ProfileRepository) services.PresenceStore {
	if cfg.RedisAddr == "" {
		return presence.NewSQLiteStore(profileRepo)
	}

	client, err := presence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("redis unavailable, tracking presence in sqlite", "address", cfg.RedisAddr, "error", err)
		return presence.NewSQLiteStore(profileRepo)
	}
	slog.Info("tracking presence in redis", "address", cfg.RedisAddr)
	return presence.NewRedisStore(client, cfg.PresenceWindow)
}

func watchPresence(ctx context.Context, queries *services.Queries, interval time.Duration) {
	online := 0
	for result := range queries.WatchOnline(ctx, interval) {
		if result.Err != nil {
			slog.Warn("refreshing online users", "error", result.Err, "stale", result.Stale)
			continue
		}
		if len(result.Data) != online {
			online = len(result.Data)
			slog.Debug("online users changed", "count", online)
		}
	}
}

func runRepairs(ctx context.Context, clanService *services.ClanService, progressService *services.ProgressService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := clanService.RunRepairs(ctx); err != nil {
			slog.Error("repairing clan state", "error", err)
		}
		if _, err := progressService.RepairMastery(ctx); err != nil {
			slog.Error("repairing category mastery", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
