package services_test

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	"github.com/ItsHarshjsin/riseup-sub000/internal/testutil"
)

var errConnectionReset = errors.New("connection reset by peer")

type testEngine struct {
	db         *sql.DB
	cache      *querycache.Cache
	repos      services.Repositories
	badges     *services.BadgeService
	progress   *services.ProgressService
	tasks      *services.TaskService
	clans      *services.ClanService
	challenges *services.ChallengeService
	profiles   *services.ProfileService
}

func newEngine(t *testing.T) *testEngine {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	return newEngineWith(t, db, repositoriesFor(db))
}

func repositoriesFor(db *sql.DB) services.Repositories {
	return services.Repositories{
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
}

func newEngineWith(t *testing.T, db *sql.DB, repos services.Repositories) *testEngine {
	t.Helper()
	cache := querycache.New()
	badges := services.NewBadgeService(repos.Badges, cache)
	progress := services.NewProgressService(repos.Profiles, repos.Tasks, repos.Mastery, badges, cache)

	clans, err := services.NewClanService(repos.Clans, repos.Memberships, repos.Invites, repos.Profiles, badges, cache)
	if err != nil {
		t.Fatalf("creating clan service: %v", err)
	}

	return &testEngine{
		db:         db,
		cache:      cache,
		repos:      repos,
		badges:     badges,
		progress:   progress,
		tasks:      services.NewTaskService(repos.Tasks, progress, cache),
		clans:      clans,
		challenges: services.NewChallengeService(repos.PeerChallenges, repos.ClanChallenges, repos.Memberships, repos.Clans, repos.Profiles, progress, badges, cache),
		profiles:   services.NewProfileService(repos.Profiles, cache),
	}
}

// signUp creates a profile and returns its session.
func (engine *testEngine) signUp(t *testing.T, username string) services.Session {
	t.Helper()
	profile, err := engine.repos.Profiles.Create(context.Background(), models.Profile{
		OIDCSubject: "sub-" + username,
		Email:       username + "@example.com",
		Username:    username,
	})
	if err != nil {
		t.Fatalf("creating profile %s: %v", username, err)
	}
	return services.Session{UserID: profile.ID, Email: profile.Email}
}

func (engine *testEngine) profile(t *testing.T, session services.Session) models.Profile {
	t.Helper()
	profile, err := engine.repos.Profiles.FindByID(context.Background(), session.UserID)
	if err != nil {
		t.Fatalf("finding profile: %v", err)
	}
	return profile
}

func (engine *testEngine) createClan(t *testing.T, owner services.Session, name string) models.Clan {
	t.Helper()
	clan, err := engine.clans.CreateClan(context.Background(), owner, name, "")
	if err != nil {
		t.Fatalf("creating clan %s: %v", name, err)
	}
	return clan
}

func (engine *testEngine) join(t *testing.T, session services.Session, clan models.Clan) {
	t.Helper()
	if _, err := engine.clans.JoinClanByCode(context.Background(), session, clan.InviteCode); err != nil {
		t.Fatalf("joining clan %s: %v", clan.Name, err)
	}
}

type flakyMemberships struct {
	repository.MembershipRepository
	failCreate bool
}

func (memberships *flakyMemberships) Create(ctx context.Context, membership models.Membership) (models.Membership, error) {
	if memberships.failCreate {
		return models.Membership{}, errConnectionReset
	}
	return memberships.MembershipRepository.Create(ctx, membership)
}

type flakyClanChallenges struct {
	repository.ClanChallengeRepository
	failAddParticipants bool
}

func (challenges *flakyClanChallenges) AddParticipants(ctx context.Context, challengeID string, userIDs []string) error {
	if challenges.failAddParticipants {
		return errConnectionReset
	}
	return challenges.ClanChallengeRepository.AddParticipants(ctx, challengeID, userIDs)
}

// barrier holds every caller until parties callers have arrived. Later
// callers pass straight through.
type barrier struct {
	parties int32
	arrived atomic.Int32
	release chan struct{}
}

func newBarrier(parties int) *barrier {
	return &barrier{parties: int32(parties), release: make(chan struct{})}
}

func (b *barrier) wait() {
	if b == nil {
		return
	}
	if b.arrived.Add(1) == b.parties {
		close(b.release)
	}
	<-b.release
}

// barrierTasks lines concurrent callers up after the underlying read, so
// every caller acts on the same snapshot.
type barrierTasks struct {
	repository.TaskRepository
	findByID       *barrier
	completedDates *barrier
}

func (tasks *barrierTasks) FindByID(ctx context.Context, id string) (models.Task, error) {
	task, err := tasks.TaskRepository.FindByID(ctx, id)
	tasks.findByID.wait()
	return task, err
}

func (tasks *barrierTasks) CompletedDates(ctx context.Context, userID string) ([]string, error) {
	dates, err := tasks.TaskRepository.CompletedDates(ctx, userID)
	tasks.completedDates.wait()
	return dates, err
}

// pausingClans parks the next FindByID after it has read the clan, until
// resume is closed.
type pausingClans struct {
	repository.ClanRepository
	armed  atomic.Bool
	paused chan struct{}
	resume chan struct{}
}

func newPausingClans(clans repository.ClanRepository) *pausingClans {
	return &pausingClans{
		ClanRepository: clans,
		paused:         make(chan struct{}),
		resume:         make(chan struct{}),
	}
}

func (clans *pausingClans) FindByID(ctx context.Context, id string) (models.Clan, error) {
	clan, err := clans.ClanRepository.FindByID(ctx, id)
	if clans.armed.CompareAndSwap(true, false) {
		close(clans.paused)
		<-clans.resume
	}
	return clan, err
}
