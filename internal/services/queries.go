package services

import (
	"context"
	"strings"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/projections"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

// PresenceStore records when users were last active and lists who was active
// recently.
type PresenceStore interface {
	Touch(ctx context.Context, userID string, at time.Time) error
	Online(ctx context.Context, since time.Time) ([]string, error)
}

type Repositories struct {
	Profiles       repository.ProfileRepository
	Tasks          repository.TaskRepository
	Clans          repository.ClanRepository
	Memberships    repository.MembershipRepository
	ClanChallenges repository.ClanChallengeRepository
	PeerChallenges repository.PeerChallengeRepository
	Invites        repository.InviteRepository
	Badges         repository.BadgeRepository
	Mastery        repository.MasteryRepository
}

type BadgeView struct {
	models.Badge
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

type ClanView struct {
	Clan    models.Clan       `json:"clan"`
	Role    models.MemberRole `json:"role"`
	Members []models.Profile  `json:"members"`
}

// Queries serves read models through the cache. Reads for a signed-out
// session are disabled and resolve to empty values without touching the store.
type Queries struct {
	cache          *querycache.Cache
	repos          Repositories
	presence       PresenceStore
	presenceWindow time.Duration
	now            func() time.Time
}

func NewQueries(cache *querycache.Cache, repos Repositories, presence PresenceStore, presenceWindow time.Duration) *Queries {
	return &Queries{
		cache:          cache,
		repos:          repos,
		presence:       presence,
		presenceWindow: presenceWindow,
		now:            time.Now,
	}
}

func project[T any, U any](result querycache.Result[T], transform func(T) U) querycache.Result[U] {
	return querycache.Result[U]{
		Data:      transform(result.Data),
		Err:       result.Err,
		Stale:     result.Stale,
		FetchedAt: result.FetchedAt,
	}
}

func signedIn(session Session) querycache.Option {
	return querycache.Enabled(session.Authenticated())
}

func (queries *Queries) Tasks(ctx context.Context, session Session, date string) (querycache.Result[[]models.Task], error) {
	if date == "" {
		date = queries.now().Format(models.DateLayout)
	}
	return querycache.Read(ctx, queries.cache, tasksKey(session.UserID, date),
		func(ctx context.Context) ([]models.Task, error) {
			tasks, err := queries.repos.Tasks.FindAll(ctx, repository.TaskFilter{UserID: &session.UserID, TaskDate: &date})
			if err != nil {
				return nil, storeError("finding tasks", err)
			}
			return tasks, nil
		},
		signedIn(session), querycache.InitialData([]models.Task{}),
	)
}

func (queries *Queries) Profile(ctx context.Context, session Session) (querycache.Result[models.Profile], error) {
	return querycache.Read(ctx, queries.cache, userKey(KindProfile, session.UserID),
		func(ctx context.Context) (models.Profile, error) {
			profile, err := queries.repos.Profiles.FindByID(ctx, session.UserID)
			if err != nil {
				return models.Profile{}, storeError("finding profile", err)
			}
			return profile, nil
		},
		signedIn(session),
	)
}

func (queries *Queries) Level(ctx context.Context, session Session) (querycache.Result[projections.Level], error) {
	profile, err := queries.Profile(ctx, session)
	if err != nil {
		return querycache.Result[projections.Level]{}, err
	}
	return project(profile, func(profile models.Profile) projections.Level {
		return projections.LevelProgress(profile.Points)
	}), nil
}

func (queries *Queries) leaderboardProfiles(ctx context.Context) (querycache.Result[[]models.Profile], error) {
	return querycache.Read(ctx, queries.cache, querycache.NewKey(KindLeaderboard),
		func(ctx context.Context) ([]models.Profile, error) {
			profiles, err := queries.repos.Profiles.FindAll(ctx)
			if err != nil {
				return nil, storeError("finding profiles", err)
			}
			return profiles, nil
		},
	)
}

// Leaderboard ranks every profile by points. A positive limit keeps the top entries.
func (queries *Queries) Leaderboard(ctx context.Context, limit int) (querycache.Result[[]projections.RankedProfile], error) {
	profiles, err := queries.leaderboardProfiles(ctx)
	if err != nil {
		return querycache.Result[[]projections.RankedProfile]{}, err
	}
	return project(profiles, func(profiles []models.Profile) []projections.RankedProfile {
		ranked := projections.Leaderboard(profiles)
		if limit > 0 && len(ranked) > limit {
			ranked = ranked[:limit]
		}
		return ranked
	}), nil
}

func (queries *Queries) ClanLeaderboard(ctx context.Context, limit int) (querycache.Result[[]projections.RankedClan], error) {
	clans, err := querycache.Read(ctx, queries.cache, querycache.NewKey(KindClanLeaderboard),
		func(ctx context.Context) ([]models.Clan, error) {
			clans, err := queries.repos.Clans.FindAll(ctx)
			if err != nil {
				return nil, storeError("finding clans", err)
			}
			return clans, nil
		},
	)
	if err != nil {
		return querycache.Result[[]projections.RankedClan]{}, err
	}
	return project(clans, func(clans []models.Clan) []projections.RankedClan {
		ranked := projections.ClanLeaderboard(clans)
		if limit > 0 && len(ranked) > limit {
			ranked = ranked[:limit]
		}
		return ranked
	}), nil
}

func (queries *Queries) TaskHistory(ctx context.Context, session Session) (querycache.Result[[]models.Task], error) {
	return querycache.Read(ctx, queries.cache, userKey(KindTaskHistory, session.UserID),
		func(ctx context.Context) ([]models.Task, error) {
			tasks, err := queries.repos.Tasks.FindAll(ctx, repository.TaskFilter{UserID: &session.UserID})
			if err != nil {
				return nil, storeError("finding task history", err)
			}
			return tasks, nil
		},
		signedIn(session), querycache.InitialData([]models.Task{}),
	)
}

// Mastery serves the stored per-category mastery rows, one entry per category.
func (queries *Queries) Mastery(ctx context.Context, session Session) (querycache.Result[[]projections.MasteryProgress], error) {
	rows, err := querycache.Read(ctx, queries.cache, userKey(KindMastery, session.UserID),
		func(ctx context.Context) ([]models.CategoryMastery, error) {
			rows, err := queries.repos.Mastery.FindByUser(ctx, session.UserID)
			if err != nil {
				return nil, storeError("finding category mastery", err)
			}
			return rows, nil
		},
		signedIn(session), querycache.InitialData([]models.CategoryMastery{}),
	)
	if err != nil {
		return querycache.Result[[]projections.MasteryProgress]{}, err
	}
	return project(rows, projections.StoredMastery), nil
}

func (queries *Queries) CompletedDates(ctx context.Context, session Session) (querycache.Result[[]string], error) {
	return querycache.Read(ctx, queries.cache, userKey(KindCalendar, session.UserID),
		func(ctx context.Context) ([]string, error) {
			dates, err := queries.repos.Tasks.CompletedDates(ctx, session.UserID)
			if err != nil {
				return nil, storeError("finding completed dates", err)
			}
			return dates, nil
		},
		signedIn(session), querycache.InitialData([]string{}),
	)
}

func (queries *Queries) Calendar(ctx context.Context, session Session, from time.Time, to time.Time) (querycache.Result[[]projections.CalendarDay], error) {
	dates, err := queries.CompletedDates(ctx, session)
	if err != nil {
		return querycache.Result[[]projections.CalendarDay]{}, err
	}
	today := queries.now()
	return project(dates, func(dates []string) []projections.CalendarDay {
		return projections.StreakCalendar(dates, today, from, to)
	}), nil
}

func (queries *Queries) Badges(ctx context.Context, session Session) (querycache.Result[[]BadgeView], error) {
	return querycache.Read(ctx, queries.cache, userKey(KindBadges, session.UserID),
		func(ctx context.Context) ([]BadgeView, error) {
			catalog, err := queries.repos.Badges.FindAll(ctx)
			if err != nil {
				return nil, storeError("finding badges", err)
			}
			unlocked, err := queries.repos.Badges.FindUnlocked(ctx, session.UserID)
			if err != nil {
				return nil, storeError("finding unlocked badges", err)
			}

			unlockedAt := make(map[string]time.Time, len(unlocked))
			for _, userBadge := range unlocked {
				unlockedAt[userBadge.BadgeID] = userBadge.UnlockedAt
			}

			views := make([]BadgeView, 0, len(catalog))
			for _, badge := range catalog {
				view := BadgeView{Badge: badge}
				if at, ok := unlockedAt[badge.ID]; ok {
					view.Unlocked = true
					view.UnlockedAt = &at
				}
				views = append(views, view)
			}
			return views, nil
		},
		signedIn(session), querycache.InitialData([]BadgeView{}),
	)
}

// MyClan returns the caller's clan with its members, or nil data when the
// caller has no clan.
func (queries *Queries) MyClan(ctx context.Context, session Session) (querycache.Result[*ClanView], error) {
	return querycache.Read(ctx, queries.cache, userKey(KindClan, session.UserID),
		func(ctx context.Context) (*ClanView, error) {
			membership, inClan, err := findMembership(ctx, queries.repos.Memberships, session.UserID)
			if err != nil || !inClan {
				return nil, err
			}

			clan, err := queries.repos.Clans.FindByID(ctx, membership.ClanID)
			if err != nil {
				return nil, storeError("finding clan", err)
			}

			memberships, err := queries.repos.Memberships.FindByClanID(ctx, clan.ID)
			if err != nil {
				return nil, storeError("finding clan members", err)
			}
			ids := make([]string, len(memberships))
			for i, member := range memberships {
				ids[i] = member.UserID
			}
			members, err := queries.repos.Profiles.FindByIDs(ctx, ids)
			if err != nil {
				return nil, storeError("finding member profiles", err)
			}

			return &ClanView{Clan: clan, Role: membership.Role, Members: members}, nil
		},
		signedIn(session),
	)
}

// ClanChallenges lists the active challenges of the caller's clan. A limit
// of zero returns all of them.
func (queries *Queries) ClanChallenges(ctx context.Context, session Session, limit int) (querycache.Result[[]models.ClanChallenge], error) {
	clan, err := queries.MyClan(ctx, session)
	if err != nil {
		return querycache.Result[[]models.ClanChallenge]{}, err
	}
	if clan.Data == nil {
		return querycache.Result[[]models.ClanChallenge]{Data: []models.ClanChallenge{}}, nil
	}
	clanID := clan.Data.Clan.ID

	challenges, err := querycache.Read(ctx, queries.cache, querycache.NewKey(KindClanChallenges, clanID),
		func(ctx context.Context) ([]models.ClanChallenge, error) {
			challenges, err := queries.repos.ClanChallenges.FindByClanID(ctx, clanID)
			if err != nil {
				return nil, storeError("finding clan challenges", err)
			}
			return challenges, nil
		},
	)
	if err != nil {
		return querycache.Result[[]models.ClanChallenge]{}, err
	}
	return project(challenges, func(challenges []models.ClanChallenge) []models.ClanChallenge {
		return projections.ActiveChallenges(challenges, limit)
	}), nil
}

func (queries *Queries) PeerChallenges(ctx context.Context, session Session, limit int) (querycache.Result[[]models.PeerChallenge], error) {
	challenges, err := querycache.Read(ctx, queries.cache, userKey(KindPeerChallenges, session.UserID),
		func(ctx context.Context) ([]models.PeerChallenge, error) {
			challenges, err := queries.repos.PeerChallenges.FindByUser(ctx, session.UserID)
			if err != nil {
				return nil, storeError("finding peer challenges", err)
			}
			return challenges, nil
		},
		signedIn(session), querycache.InitialData([]models.PeerChallenge{}),
	)
	if err != nil {
		return querycache.Result[[]models.PeerChallenge]{}, err
	}
	return project(challenges, func(challenges []models.PeerChallenge) []models.PeerChallenge {
		return projections.ActivePeerChallenges(challenges, limit)
	}), nil
}

func (queries *Queries) Invites(ctx context.Context, session Session) (querycache.Result[[]models.Invite], error) {
	email := strings.ToLower(session.Email)
	return querycache.Read(ctx, queries.cache, userKey(KindInvites, email),
		func(ctx context.Context) ([]models.Invite, error) {
			invites, err := queries.repos.Invites.FindPendingByEmail(ctx, email)
			if err != nil {
				return nil, storeError("finding invites", err)
			}
			return invites, nil
		},
		querycache.Enabled(session.Authenticated() && email != ""), querycache.InitialData([]models.Invite{}),
	)
}

func (queries *Queries) fetchOnline(ctx context.Context) ([]models.Profile, error) {
	ids, err := queries.presence.Online(ctx, queries.now().Add(-queries.presenceWindow))
	if err != nil {
		return nil, storeError("listing online users", err)
	}
	profiles, err := queries.repos.Profiles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, storeError("finding online profiles", err)
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	return profiles, nil
}

// Online lists recently active users. It is refreshed by polling, see WatchOnline.
func (queries *Queries) Online(ctx context.Context) (querycache.Result[[]models.Profile], error) {
	return querycache.Read(ctx, queries.cache, querycache.NewKey(KindPresence), queries.fetchOnline)
}

// WatchOnline polls the online list every interval until ctx ends.
func (queries *Queries) WatchOnline(ctx context.Context, interval time.Duration) <-chan querycache.Result[[]models.Profile] {
	return querycache.Watch(ctx, queries.cache, querycache.NewKey(KindPresence), queries.fetchOnline,
		querycache.RefetchInterval(interval))
}

func (queries *Queries) CacheStats() querycache.Stats {
	return queries.cache.Stats()
}
