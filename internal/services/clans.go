package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/querycache"
	"github.com/ItsHarshjsin/riseup-sub000/internal/repository"
)

// InviteLifetime is how long an invite stays acceptable.
const InviteLifetime = 7 * 24 * time.Hour

const codeLength = 8

type ClanService struct {
	clanRepo       repository.ClanRepository
	membershipRepo repository.MembershipRepository
	inviteRepo     repository.InviteRepository
	profileRepo    repository.ProfileRepository
	badges         *BadgeService
	cache          *querycache.Cache
	newCode        func() string
	now            func() time.Time
}

func NewClanService(
	clanRepo repository.ClanRepository,
	membershipRepo repository.MembershipRepository,
	inviteRepo repository.InviteRepository,
	profileRepo repository.ProfileRepository,
	badges *BadgeService,
	cache *querycache.Cache,
) (*ClanService, error) {
	newCode, err := NewCodeGenerator(codeLength)
	if err != nil {
		return nil, err
	}

	return &ClanService{
		clanRepo:       clanRepo,
		membershipRepo: membershipRepo,
		inviteRepo:     inviteRepo,
		profileRepo:    profileRepo,
		badges:         badges,
		cache:          cache,
		newCode:        newCode,
		now:            time.Now,
	}, nil
}

// membershipOf returns the caller's membership, or ok=false when the caller
// has no clan.
func (service *ClanService) membershipOf(ctx context.Context, userID string) (models.Membership, bool, error) {
	return findMembership(ctx, service.membershipRepo, userID)
}

func findMembership(ctx context.Context, membershipRepo repository.MembershipRepository, userID string) (models.Membership, bool, error) {
	membership, err := membershipRepo.FindByUserID(ctx, userID)
	if isNotFound(err) {
		return models.Membership{}, false, nil
	}
	if err != nil {
		return models.Membership{}, false, storeError("finding membership", err)
	}
	return membership, true, nil
}

// CreateClan inserts the clan and then the owner's membership. A failure
// between the two steps returns an *OrphanedClanError naming the clan.
func (service *ClanService) CreateClan(ctx context.Context, session Session, name string, description string) (models.Clan, error) {
	if err := requireSession(session); err != nil {
		return models.Clan{}, err
	}

	name = cleanLine(name)
	if name == "" {
		return models.Clan{}, fmt.Errorf("clan name is required: %w", ErrInvalidInput)
	}

	if _, inClan, err := service.membershipOf(ctx, session.UserID); err != nil {
		return models.Clan{}, err
	} else if inClan {
		return models.Clan{}, fmt.Errorf("already in a clan: %w", ErrConflict)
	}

	if _, err := service.clanRepo.FindByName(ctx, name); err == nil {
		return models.Clan{}, fmt.Errorf("clan name %q is taken: %w", name, ErrConflict)
	} else if !isNotFound(err) {
		return models.Clan{}, storeError("checking clan name", err)
	}

	clan, err := service.clanRepo.Create(ctx, models.Clan{
		Name:        name,
		Description: cleanText(description),
		OwnerID:     session.UserID,
		InviteCode:  service.newCode(),
	})
	if err != nil {
		return models.Clan{}, storeError("creating clan", err)
	}
	invalidate(service.cache, querycache.NewKey(KindClanLeaderboard))

	_, err = service.membershipRepo.Create(ctx, models.Membership{
		ClanID:   clan.ID,
		UserID:   session.UserID,
		Role:     models.MemberRoleOwner,
		JoinedAt: service.now(),
	})
	if err != nil {
		slog.Error("clan created without owner membership", "clan_id", clan.ID, "error", err)
		return clan, &OrphanedClanError{ClanID: clan.ID, Err: storeError("creating owner membership", err)}
	}
	invalidate(service.cache, userKey(KindClan, session.UserID))

	if _, err := service.badges.Award(ctx, session.UserID, BadgeClanFounder); err != nil {
		slog.Warn("awarding clan founder badge", "user_id", session.UserID, "error", err)
	}

	slog.Info("clan created", "clan_id", clan.ID, "owner_id", session.UserID)
	return clan, nil
}

// RepairOrphanedClans writes the missing owner membership for every clan left
// behind by an interrupted CreateClan. Owners who joined another clan in the
// meantime are skipped.
func (service *ClanService) RepairOrphanedClans(ctx context.Context) (int, error) {
	orphans, err := service.clanRepo.FindWithoutOwnerMembership(ctx)
	if err != nil {
		return 0, storeError("finding orphaned clans", err)
	}

	repaired := 0
	for _, clan := range orphans {
		if _, inClan, err := service.membershipOf(ctx, clan.OwnerID); err != nil {
			return repaired, err
		} else if inClan {
			slog.Warn("orphaned clan owner already in another clan", "clan_id", clan.ID, "owner_id", clan.OwnerID)
			continue
		}

		_, err := service.membershipRepo.Create(ctx, models.Membership{
			ClanID:   clan.ID,
			UserID:   clan.OwnerID,
			Role:     models.MemberRoleOwner,
			JoinedAt: service.now(),
		})
		if err != nil {
			return repaired, storeError("repairing owner membership", err)
		}
		invalidate(service.cache, userKey(KindClan, clan.OwnerID))
		repaired++
	}

	if repaired > 0 {
		slog.Info("repaired orphaned clans", "count", repaired)
	}
	return repaired, nil
}

// InviteUserToClan invites an email address to the caller's clan. Both
// duplicate checks read before the insert, so two concurrent invites to the
// same address can both succeed.
func (service *ClanService) InviteUserToClan(ctx context.Context, session Session, email string) (models.Invite, error) {
	if err := requireSession(session); err != nil {
		return models.Invite{}, err
	}

	address, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return models.Invite{}, fmt.Errorf("parsing email: %w", ErrInvalidInput)
	}
	email = strings.ToLower(address.Address)

	membership, inClan, err := service.membershipOf(ctx, session.UserID)
	if err != nil {
		return models.Invite{}, err
	}
	if !inClan {
		return models.Invite{}, fmt.Errorf("inviting without a clan: %w", ErrForbidden)
	}

	invitee, err := service.profileRepo.FindByEmail(ctx, email)
	if err == nil {
		existing, found, err := service.membershipOf(ctx, invitee.ID)
		if err != nil {
			return models.Invite{}, err
		}
		if found && existing.ClanID == membership.ClanID {
			return models.Invite{}, fmt.Errorf("%s is already a member: %w", email, ErrConflict)
		}
	} else if !isNotFound(err) {
		return models.Invite{}, storeError("finding invitee", err)
	}

	pending, err := service.inviteRepo.FindPendingByClanAndEmail(ctx, membership.ClanID, email)
	if err != nil {
		return models.Invite{}, storeError("finding pending invites", err)
	}
	if len(pending) > 0 {
		return models.Invite{}, fmt.Errorf("%s already has a pending invite: %w", email, ErrConflict)
	}

	invite, err := service.inviteRepo.Create(ctx, models.Invite{
		ClanID:    membership.ClanID,
		Email:     email,
		Code:      service.newCode(),
		Status:    models.InviteStatusPending,
		InvitedBy: session.UserID,
		ExpiresAt: service.now().Add(InviteLifetime),
	})
	if err != nil {
		return models.Invite{}, storeError("creating invite", err)
	}

	invalidate(service.cache, userKey(KindInvites, email))
	slog.Info("invite created", "invite_id", invite.ID, "clan_id", invite.ClanID)
	return invite, nil
}

func (service *ClanService) loadInviteFor(ctx context.Context, session Session, inviteID string) (models.Invite, error) {
	invite, err := service.inviteRepo.FindByID(ctx, inviteID)
	if err != nil {
		return models.Invite{}, storeError("finding invite", err)
	}
	if !strings.EqualFold(invite.Email, session.Email) {
		return models.Invite{}, fmt.Errorf("invite addressed to someone else: %w", ErrForbidden)
	}
	if invite.Status != models.InviteStatusPending {
		return models.Invite{}, fmt.Errorf("invite is %s: %w", invite.Status, ErrInvalidTransition)
	}
	return invite, nil
}

// AcceptClanInvite marks the invite accepted, adds the caller to the clan,
// then rejects the caller's other pending invites. A failure after the first
// step returns a *PartialAcceptError.
func (service *ClanService) AcceptClanInvite(ctx context.Context, session Session, inviteID string) (models.Membership, error) {
	if err := requireSession(session); err != nil {
		return models.Membership{}, err
	}

	invite, err := service.loadInviteFor(ctx, session, inviteID)
	if err != nil {
		return models.Membership{}, err
	}
	if !service.now().Before(invite.ExpiresAt) {
		return models.Membership{}, fmt.Errorf("invite expired at %s: %w", invite.ExpiresAt.Format(time.RFC3339), ErrInvalidTransition)
	}
	if _, inClan, err := service.membershipOf(ctx, session.UserID); err != nil {
		return models.Membership{}, err
	} else if inClan {
		return models.Membership{}, fmt.Errorf("already in a clan: %w", ErrConflict)
	}

	moved, err := service.inviteRepo.UpdateStatus(ctx, invite.ID, models.InviteStatusPending, models.InviteStatusAccepted)
	if err != nil {
		return models.Membership{}, storeError("accepting invite", err)
	}
	if !moved {
		return models.Membership{}, fmt.Errorf("invite changed while accepting: %w", ErrInvalidTransition)
	}
	invalidate(service.cache, userKey(KindInvites, strings.ToLower(invite.Email)))

	membership, err := service.membershipRepo.Create(ctx, models.Membership{
		ClanID:   invite.ClanID,
		UserID:   session.UserID,
		Role:     models.MemberRoleMember,
		JoinedAt: service.now(),
	})
	if err != nil {
		slog.Error("invite accepted without membership", "invite_id", invite.ID, "error", err)
		return models.Membership{}, &PartialAcceptError{InviteID: invite.ID, ClanID: invite.ClanID, Err: storeError("creating membership", err)}
	}
	invalidate(service.cache, querycache.NewKey(KindClan))

	rejected, err := service.inviteRepo.RejectOtherPending(ctx, invite.Email, invite.ID)
	if err != nil {
		return membership, &PartialAcceptError{InviteID: invite.ID, ClanID: invite.ClanID, Err: storeError("rejecting other invites", err)}
	}

	slog.Info("invite accepted", "invite_id", invite.ID, "clan_id", invite.ClanID, "other_rejected", rejected)
	return membership, nil
}

// AcceptInviteByCode accepts the invite carrying code, with the same checks
// and partial failure reporting as AcceptClanInvite.
func (service *ClanService) AcceptInviteByCode(ctx context.Context, session Session, code string) (models.Membership, error) {
	if err := requireSession(session); err != nil {
		return models.Membership{}, err
	}

	invite, err := service.inviteRepo.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return models.Membership{}, storeError("finding invite by code", err)
	}
	return service.AcceptClanInvite(ctx, session, invite.ID)
}

func (service *ClanService) RejectClanInvite(ctx context.Context, session Session, inviteID string) error {
	if err := requireSession(session); err != nil {
		return err
	}

	invite, err := service.loadInviteFor(ctx, session, inviteID)
	if err != nil {
		return err
	}

	moved, err := service.inviteRepo.UpdateStatus(ctx, invite.ID, models.InviteStatusPending, models.InviteStatusRejected)
	if err != nil {
		return storeError("rejecting invite", err)
	}
	if !moved {
		return fmt.Errorf("invite changed while rejecting: %w", ErrInvalidTransition)
	}

	invalidate(service.cache, userKey(KindInvites, strings.ToLower(invite.Email)))
	return nil
}

// JoinClanByCode adds the caller to the clan owning the shared invite code.
func (service *ClanService) JoinClanByCode(ctx context.Context, session Session, code string) (models.Membership, error) {
	if err := requireSession(session); err != nil {
		return models.Membership{}, err
	}

	clan, err := service.clanRepo.FindByInviteCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return models.Membership{}, storeError("finding clan by code", err)
	}
	if _, inClan, err := service.membershipOf(ctx, session.UserID); err != nil {
		return models.Membership{}, err
	} else if inClan {
		return models.Membership{}, fmt.Errorf("already in a clan: %w", ErrConflict)
	}

	membership, err := service.membershipRepo.Create(ctx, models.Membership{
		ClanID:   clan.ID,
		UserID:   session.UserID,
		Role:     models.MemberRoleMember,
		JoinedAt: service.now(),
	})
	if err != nil {
		return models.Membership{}, storeError("joining clan", err)
	}

	invalidate(service.cache, querycache.NewKey(KindClan))
	return membership, nil
}

// RepairAcceptedInvites writes the membership for every accepted invite whose
// invitee still has no clan, then rejects that invitee's other pending invites.
func (service *ClanService) RepairAcceptedInvites(ctx context.Context) (int, error) {
	invites, err := service.inviteRepo.FindAcceptedWithoutMembership(ctx)
	if err != nil {
		return 0, storeError("finding unapplied invites", err)
	}

	repaired := 0
	for _, invite := range invites {
		profile, err := service.profileRepo.FindByEmail(ctx, invite.Email)
		if err != nil {
			return repaired, storeError("finding invitee", err)
		}

		_, err = service.membershipRepo.Create(ctx, models.Membership{
			ClanID:   invite.ClanID,
			UserID:   profile.ID,
			Role:     models.MemberRoleMember,
			JoinedAt: service.now(),
		})
		if err != nil {
			return repaired, storeError("repairing membership", err)
		}
		if _, err := service.inviteRepo.RejectOtherPending(ctx, invite.Email, invite.ID); err != nil {
			return repaired, storeError("rejecting other invites", err)
		}

		invalidate(service.cache, querycache.NewKey(KindClan), userKey(KindInvites, strings.ToLower(invite.Email)))
		repaired++
	}

	if repaired > 0 {
		slog.Info("repaired accepted invites", "count", repaired)
	}
	return repaired, nil
}

// RunRepairs runs every repair pass, continuing past failures.
func (service *ClanService) RunRepairs(ctx context.Context) error {
	_, clanErr := service.RepairOrphanedClans(ctx)
	_, inviteErr := service.RepairAcceptedInvites(ctx)
	return errors.Join(clanErr, inviteErr)
}
