package services

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated     = errors.New("not signed in")
	ErrForbidden           = errors.New("not allowed")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrRemoteFailure       = errors.New("data store request failed")
	ErrOrphanedClan        = errors.New("clan created without owner membership")
	ErrPartialParticipants = errors.New("challenge created without all participants")
	ErrPartialAccept       = errors.New("invite accepted without membership")
	ErrInvalidInput        = errors.New("invalid input")
)

// OrphanedClanError reports a clan row whose owner membership could not be
// written. RepairOrphanedClans fixes it.
type OrphanedClanError struct {
	ClanID string
	Err    error
}

func (e *OrphanedClanError) Error() string {
	return fmt.Sprintf("clan %s: %v: %v", e.ClanID, ErrOrphanedClan, e.Err)
}

func (e *OrphanedClanError) Unwrap() []error {
	return []error{ErrOrphanedClan, e.Err}
}

// PartialParticipantsError reports a clan challenge missing some of the
// requested participants. RetryParticipants fills them in.
type PartialParticipantsError struct {
	ChallengeID string
	Missing     []string
	Err         error
}

func (e *PartialParticipantsError) Error() string {
	return fmt.Sprintf("challenge %s missing %d participants: %v", e.ChallengeID, len(e.Missing), e.Err)
}

func (e *PartialParticipantsError) Unwrap() []error {
	return []error{ErrPartialParticipants, e.Err}
}

// PartialAcceptError reports an invite marked accepted whose membership row
// was not written. RepairAcceptedInvites re-applies it.
type PartialAcceptError struct {
	InviteID string
	ClanID   string
	Err      error
}

func (e *PartialAcceptError) Error() string {
	return fmt.Sprintf("invite %s for clan %s: %v: %v", e.InviteID, e.ClanID, ErrPartialAccept, e.Err)
}

func (e *PartialAcceptError) Unwrap() []error {
	return []error{ErrPartialAccept, e.Err}
}

// storeError classifies a repository error. Missing rows become ErrNotFound,
// anything else ErrRemoteFailure.
func storeError(action string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", action, ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", action, ErrRemoteFailure, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
