package projections

import (
	"sort"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
)

type RankedProfile struct {
	Rank int `json:"rank"`
	models.Profile
}

type RankedClan struct {
	Rank int `json:"rank"`
	models.Clan
}

// Leaderboard orders profiles by points, highest first. Ties keep their
// input order.
func Leaderboard(profiles []models.Profile) []RankedProfile {
	sorted := make([]models.Profile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Points > sorted[j].Points
	})

	ranked := make([]RankedProfile, len(sorted))
	for i, profile := range sorted {
		ranked[i] = RankedProfile{Rank: i + 1, Profile: profile}
	}
	return ranked
}

func ClanLeaderboard(clans []models.Clan) []RankedClan {
	sorted := make([]models.Clan, len(clans))
	copy(sorted, clans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Points > sorted[j].Points
	})

	ranked := make([]RankedClan, len(sorted))
	for i, clan := range sorted {
		ranked[i] = RankedClan{Rank: i + 1, Clan: clan}
	}
	return ranked
}
