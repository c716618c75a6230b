package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

type ChallengeAction string

const (
	ActionAccept   ChallengeAction = "accept"
	ActionReject   ChallengeAction = "reject"
	ActionComplete ChallengeAction = "complete"
)

// NextStatus applies the peer challenge state machine. Only the challenged
// user may accept or reject a pending challenge; either party may complete an
// accepted one. The actor is checked before the state.
func NextStatus(challenge models.PeerChallenge, actorID string, action ChallengeAction) (models.ChallengeStatus, error) {
	switch action {
	case ActionAccept, ActionReject:
		if actorID != challenge.ChallengedID {
			return "", fmt.Errorf("only the challenged user may respond: %w", ErrForbidden)
		}
		if challenge.Status != models.ChallengeStatusPending {
			return "", fmt.Errorf("cannot %s a %s challenge: %w", action, challenge.Status, ErrInvalidTransition)
		}
		if action == ActionAccept {
			return models.ChallengeStatusAccepted, nil
		}
		return models.ChallengeStatusRejected, nil
	case ActionComplete:
		if actorID != challenge.ChallengerID && actorID != challenge.ChallengedID {
			return "", fmt.Errorf("only a party may complete: %w", ErrForbidden)
		}
		if challenge.Status != models.ChallengeStatusAccepted {
			return "", fmt.Errorf("cannot complete a %s challenge: %w", challenge.Status, ErrInvalidTransition)
		}
		return models.ChallengeStatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown action %q: %w", action, ErrInvalidInput)
	}
}

type NewPeerChallenge struct {
	ChallengedID string          `json:"challenged_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     models.Category `json:"category"`
	Points       int             `json:"points"`
	Deadline     time.Time       `json:"deadline"`
}

type NewClanChallenge struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       models.Category `json:"category"`
	Points         int             `json:"points"`
	Deadline       time.Time       `json:"deadline"`
	ParticipantIDs []string        `json:"participant_ids"`
}

type ChallengeService struct {
	peerRepo       repository.PeerChallengeRepository
	clanChallenges repository.ClanChallengeRepository
	membershipRepo repository.MembershipRepository
	clanRepo       repository.ClanRepository
	profileRepo    repository.ProfileRepository
	progress       *ProgressService
	badges         *BadgeService
	cache          *querycache.Cache
	now            func() time.Time
}

func NewChallengeService(
	peerRepo repository.PeerChallengeRepository,
	clanChallenges repository.ClanChallengeRepository,
	membershipRepo repository.MembershipRepository,
	clanRepo repository.ClanRepository,
	profileRepo repository.ProfileRepository,
	progress *ProgressService,
	badges *BadgeService,
	cache *querycache.Cache,
) *ChallengeService {
	return &ChallengeService{
		peerRepo:       peerRepo,
		clanChallenges: clanChallenges,
		membershipRepo: membershipRepo,
		clanRepo:       clanRepo,
		profileRepo:    profileRepo,
		progress:       progress,
		badges:         badges,
		cache:          cache,
		now:            time.Now,
	}
}

func validateChallenge(title string, category models.Category, points int, deadline time.Time, now time.Time) (string, int, error) {
	title = cleanLine(title)
	if title == "" {
		return "", 0, fmt.Errorf("title is required: %w", ErrInvalidInput)
	}
	if !category.Valid() {
		return "", 0, fmt.Errorf("unknown category %q: %w", category, ErrInvalidInput)
	}
	if points == 0 {
		points = DefaultTaskPoints
	}
	if points < 0 {
		return "", 0, fmt.Errorf("points must be positive: %w", ErrInvalidInput)
	}
	if !deadline.After(now) {
		return "", 0, fmt.Errorf("deadline must be in the future: %w", ErrInvalidInput)
	}
	return title, points, nil
}

func (service *ChallengeService) IssueChallenge(ctx context.Context, session Session, input NewPeerChallenge) (models.PeerChallenge, error) {
	if err := requireSession(session); err != nil {
		return models.PeerChallenge{}, err
	}
	if input.ChallengedID == session.UserID {
		return models.PeerChallenge{}, fmt.Errorf("cannot challenge yourself: %w", ErrInvalidInput)
	}

	title, points, err := validateChallenge(input.Title, input.Category, input.Points, input.Deadline, service.now())
	if err != nil {
		return models.PeerChallenge{}, err
	}

	if _, err := service.profileRepo.FindByID(ctx, input.ChallengedID); err != nil {
		return models.PeerChallenge{}, storeError("finding challenged user", err)
	}

	challenge, err := service.peerRepo.Create(ctx, models.PeerChallenge{
		ChallengerID: session.UserID,
		ChallengedID: input.ChallengedID,
		Title:        title,
		Description:  cleanText(input.Description),
		Category:     input.Category,
		Points:       points,
		Status:       models.ChallengeStatusPending,
		Deadline:     input.Deadline,
	})
	if err != nil {
		return models.PeerChallenge{}, storeError("creating peer challenge", err)
	}

	invalidate(service.cache, userKey(KindPeerChallenges, challenge.ChallengerID), userKey(KindPeerChallenges, challenge.ChallengedID))
	return challenge, nil
}

func (service *ChallengeService) RespondToChallenge(ctx context.Context, session Session, challengeID string, accept bool) (models.PeerChallenge, error) {
	action := ActionReject
	if accept {
		action = ActionAccept
	}
	return service.transition(ctx, session, challengeID, action)
}

func (service *ChallengeService) CompleteChallenge(ctx context.Context, session Session, challengeID string) (models.PeerChallenge, error) {
	return service.transition(ctx, session, challengeID, ActionComplete)
}

// transition writes a peer challenge status change. The update is
// conditioned on the status read, so a concurrent change fails instead of
// being overwritten.
func (service *ChallengeService) transition(ctx context.Context, session Session, challengeID string, action ChallengeAction) (models.PeerChallenge, error) {
	if err := requireSession(session); err != nil {
		return models.PeerChallenge{}, err
	}

	challenge, err := service.peerRepo.FindByID(ctx, challengeID)
	if err != nil {
		return models.PeerChallenge{}, storeError("finding peer challenge", err)
	}

	next, err := NextStatus(challenge, session.UserID, action)
	if err != nil {
		return models.PeerChallenge{}, err
	}

	moved, err := service.peerRepo.UpdateStatus(ctx, challenge.ID, challenge.Status, next)
	if err != nil {
		return models.PeerChallenge{}, storeError("updating peer challenge", err)
	}
	if !moved {
		return models.PeerChallenge{}, fmt.Errorf("challenge changed concurrently: %w", ErrInvalidTransition)
	}

	challenge.Status = next
	invalidate(service.cache, userKey(KindPeerChallenges, challenge.ChallengerID), userKey(KindPeerChallenges, challenge.ChallengedID))
	return challenge, nil
}

// CreateClanChallenge inserts the challenge and then its participants. When
// participant insertion fails the challenge is kept and a
// *PartialParticipantsError lists who is missing.
func (service *ChallengeService) CreateClanChallenge(ctx context.Context, session Session, input NewClanChallenge) (models.ClanChallenge, error) {
	if err := requireSession(session); err != nil {
		return models.ClanChallenge{}, err
	}

	membership, inClan, err := findMembership(ctx, service.membershipRepo, session.UserID)
	if err != nil {
		return models.ClanChallenge{}, err
	}
	if !inClan {
		return models.ClanChallenge{}, fmt.Errorf("creating a clan challenge without a clan: %w", ErrForbidden)
	}

	title, points, err := validateChallenge(input.Title, input.Category, input.Points, input.Deadline, service.now())
	if err != nil {
		return models.ClanChallenge{}, err
	}

	participantIDs := dedupe(input.ParticipantIDs)
	if len(participantIDs) == 0 {
		return models.ClanChallenge{}, fmt.Errorf("at least one participant is required: %w", ErrInvalidInput)
	}
	if err := service.requireMembers(ctx, membership.ClanID, participantIDs); err != nil {
		return models.ClanChallenge{}, err
	}

	challenge, err := service.clanChallenges.Create(ctx, models.ClanChallenge{
		ClanID:      membership.ClanID,
		Title:       title,
		Description: cleanText(input.Description),
		Category:    input.Category,
		Points:      points,
		Deadline:    input.Deadline,
		CreatedBy:   session.UserID,
	})
	if err != nil {
		return models.ClanChallenge{}, storeError("creating clan challenge", err)
	}
	invalidate(service.cache, querycache.NewKey(KindClanChallenges, membership.ClanID))

	return service.addParticipants(ctx, challenge, participantIDs)
}

// RetryParticipants inserts whichever of participantIDs are not yet on the
// challenge. Existing participants are untouched.
func (service *ChallengeService) RetryParticipants(ctx context.Context, session Session, challengeID string, participantIDs []string) (models.ClanChallenge, error) {
	if err := requireSession(session); err != nil {
		return models.ClanChallenge{}, err
	}

	challenge, err := service.clanChallenges.FindByID(ctx, challengeID)
	if err != nil {
		return models.ClanChallenge{}, storeError("finding clan challenge", err)
	}
	if challenge.CreatedBy != session.UserID {
		return models.ClanChallenge{}, fmt.Errorf("only the creator may add participants: %w", ErrForbidden)
	}

	participantIDs = dedupe(participantIDs)
	if err := service.requireMembers(ctx, challenge.ClanID, participantIDs); err != nil {
		return models.ClanChallenge{}, err
	}

	return service.addParticipants(ctx, challenge, participantIDs)
}

func (service *ChallengeService) addParticipants(ctx context.Context, challenge models.ClanChallenge, participantIDs []string) (models.ClanChallenge, error) {
	insertErr := service.clanChallenges.AddParticipants(ctx, challenge.ID, participantIDs)
	invalidate(service.cache, querycache.NewKey(KindClanChallenges, challenge.ClanID))

	participants, err := service.clanChallenges.FindParticipants(ctx, challenge.ID)
	if err != nil {
		if insertErr != nil {
			return challenge, &PartialParticipantsError{ChallengeID: challenge.ID, Missing: participantIDs, Err: storeError("adding participants", insertErr)}
		}
		return challenge, storeError("finding participants", err)
	}
	challenge.Participants = participants

	present := make(map[string]bool, len(participants))
	for _, participant := range participants {
		present[participant.UserID] = true
	}
	var missing []string
	for _, id := range participantIDs {
		if !present[id] {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		cause := insertErr
		if cause == nil {
			cause = fmt.Errorf("%d participants not stored", len(missing))
		} else {
			cause = storeError("adding participants", cause)
		}
		slog.Error("clan challenge missing participants", "challenge_id", challenge.ID, "missing", len(missing), "error", cause)
		return challenge, &PartialParticipantsError{ChallengeID: challenge.ID, Missing: missing, Err: cause}
	}
	return challenge, nil
}

func (service *ChallengeService) requireMembers(ctx context.Context, clanID string, userIDs []string) error {
	members, err := service.membershipRepo.FindByClanID(ctx, clanID)
	if err != nil {
		return storeError("finding clan members", err)
	}

	inClan := make(map[string]bool, len(members))
	for _, member := range members {
		inClan[member.UserID] = true
	}
	for _, id := range userIDs {
		if !inClan[id] {
			return fmt.Errorf("participant %s is not a clan member: %w", id, ErrInvalidInput)
		}
	}
	return nil
}

// CompleteClanChallenge records the caller's part of a clan challenge. The
// challenge's points go to the caller and to the clan, and the challenge
// completes once every participant is done.
func (service *ChallengeService) CompleteClanChallenge(ctx context.Context, session Session, challengeID string) (models.ClanChallenge, error) {
	if err := requireSession(session); err != nil {
		return models.ClanChallenge{}, err
	}

	challenge, err := service.clanChallenges.FindByID(ctx, challengeID)
	if err != nil {
		return models.ClanChallenge{}, storeError("finding clan challenge", err)
	}
	if challenge.Completed {
		return models.ClanChallenge{}, fmt.Errorf("challenge already completed: %w", ErrInvalidTransition)
	}
	if service.now().After(challenge.Deadline) {
		return models.ClanChallenge{}, fmt.Errorf("challenge deadline passed: %w", ErrInvalidTransition)
	}

	isParticipant := false
	for _, participant := range challenge.Participants {
		if participant.UserID == session.UserID {
			isParticipant = true
		}
	}
	if !isParticipant {
		return models.ClanChallenge{}, fmt.Errorf("not a participant: %w", ErrForbidden)
	}

	now := service.now()
	changed, err := service.clanChallenges.CompleteParticipant(ctx, challenge.ID, session.UserID, now)
	if err != nil {
		return models.ClanChallenge{}, storeError("completing participation", err)
	}
	if !changed {
		return models.ClanChallenge{}, fmt.Errorf("participation already completed: %w", ErrInvalidTransition)
	}
	invalidate(service.cache, querycache.NewKey(KindClanChallenges, challenge.ClanID))

	if _, err := service.progress.Apply(ctx, session.UserID, challenge.Points, ""); err != nil {
		return challenge, fmt.Errorf("awarding challenge points: %w", err)
	}
	if err := service.clanRepo.AddPoints(ctx, challenge.ClanID, challenge.Points); err != nil {
		return challenge, storeError("awarding clan points", err)
	}
	invalidate(service.cache, querycache.NewKey(KindClanLeaderboard), querycache.NewKey(KindClan))

	if _, err := service.badges.Award(ctx, session.UserID, BadgeTeamPlayer); err != nil {
		slog.Warn("awarding team player badge", "user_id", session.UserID, "error", err)
	}

	participants, err := service.clanChallenges.FindParticipants(ctx, challenge.ID)
	if err != nil {
		return challenge, storeError("finding participants", err)
	}
	challenge.Participants = participants

	allDone := len(participants) > 0
	for _, participant := range participants {
		if !participant.Completed {
			allDone = false
		}
	}
	if allDone {
		if err := service.clanChallenges.MarkCompleted(ctx, challenge.ID); err != nil {
			return challenge, storeError("completing clan challenge", err)
		}
		challenge.Completed = true
		invalidate(service.cache, querycache.NewKey(KindClanChallenges, challenge.ClanID))
	}

	return challenge, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var unique []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
