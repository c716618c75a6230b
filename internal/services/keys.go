package services

import "github.com/ItsHarshjsin/riseup-sub000/internal/querycache"

const (
	KindTasks           = "tasks"
	KindTaskHistory     = "task-history"
	KindProfile         = "profile"
	KindLeaderboard     = "leaderboard"
	KindClanLeaderboard = "clan-leaderboard"
	KindMastery         = "mastery"
	KindBadges          = "badges"
	KindCalendar        = "calendar"
	KindClan            = "clan"
	KindClanChallenges  = "clan-challenges"
	KindPeerChallenges  = "peer-challenges"
	KindInvites         = "invites"
	KindPresence        = "presence"
)

func tasksKey(userID string, date string) querycache.Key {
	return querycache.NewKey(KindTasks, userID, date)
}

func userKey(kind string, userID string) querycache.Key {
	return querycache.NewKey(kind, userID)
}

func invalidate(cache *querycache.Cache, keys ...querycache.Key) {
	for _, key := range keys {
		cache.Invalidate(key)
	}
}

// progressKeys are the reads that change whenever a user's points, streak or
// completions change.
func progressKeys(userID string) []querycache.Key {
	return []querycache.Key{
		userKey(KindTasks, userID),
		userKey(KindTaskHistory, userID),
		userKey(KindMastery, userID),
		userKey(KindProfile, userID),
		userKey(KindBadges, userID),
		userKey(KindCalendar, userID),
		querycache.NewKey(KindLeaderboard),
	}
}
