package projections

import "github.com/ItsHarshjsin/riseup-sub000/internal/models"

// PreviewLimit is how many active challenges summary widgets show.
const PreviewLimit = 3

// ActiveChallenges drops completed challenges and keeps at most limit of the
// rest. A limit of zero or less keeps all of them.
func ActiveChallenges(challenges []models.ClanChallenge, limit int) []models.ClanChallenge {
	active := make([]models.ClanChallenge, 0, len(challenges))
	for _, challenge := range challenges {
		if challenge.Completed {
			continue
		}
		active = append(active, challenge)
		if limit > 0 && len(active) == limit {
			break
		}
	}
	return active
}

// ActivePeerChallenges keeps challenges that are still pending or accepted.
func ActivePeerChallenges(challenges []models.PeerChallenge, limit int) []models.PeerChallenge {
	active := make([]models.PeerChallenge, 0, len(challenges))
	for _, challenge := range challenges {
		if challenge.Status != models.ChallengeStatusPending && challenge.Status != models.ChallengeStatusAccepted {
			continue
		}
		active = append(active, challenge)
		if limit > 0 && len(active) == limit {
			break
		}
	}
	return active
}
