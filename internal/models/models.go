package models

import "time"

type Category string

const (
	CategoryFitness      Category = "fitness"
	CategoryProductivity Category = "productivity"
	CategoryLearning     Category = "learning"
	CategoryMindfulness  Category = "mindfulness"
	CategoryCreativity   Category = "creativity"
	CategorySocial       Category = "social"
)

// Categories lists every task category in display order.
var Categories = []Category{
	CategoryFitness,
	CategoryProductivity,
	CategoryLearning,
	CategoryMindfulness,
	CategoryCreativity,
	CategorySocial,
}

func (category Category) Valid() bool {
	for _, known := range Categories {
		if category == known {
			return true
		}
	}
	return false
}

type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

type ChallengeStatus string

const (
	ChallengeStatusPending   ChallengeStatus = "pending"
	ChallengeStatusAccepted  ChallengeStatus = "accepted"
	ChallengeStatusRejected  ChallengeStatus = "rejected"
	ChallengeStatusCompleted ChallengeStatus = "completed"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)

// DateLayout is the storage format of calendar dates such as Task.TaskDate.
const DateLayout = "2006-01-02"

type Profile struct {
	ID          string     `json:"id"`
	OIDCSubject string     `json:"-"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	AvatarURL   *string    `json:"avatar_url"`
	Bio         string     `json:"bio"`
	Level       int        `json:"level"`
	Points      int        `json:"points"`
	Streak      int        `json:"streak"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Points      int        `json:"points"`
	Completed   bool       `json:"completed"`
	TaskDate    string     `json:"task_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Clan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	Points      int       `json:"points"`
	InviteCode  string    `json:"invite_code"`
	CreatedAt   time.Time `json:"created_at"`
}

type Membership struct {
	ClanID   string     `json:"clan_id"`
	UserID   string     `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

type ClanChallenge struct {
	ID          string    `json:"id"`
	ClanID      string    `json:"clan_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Points      int       `json:"points"`
	Deadline    time.Time `json:"deadline"`
	Completed   bool      `json:"completed"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`

	Participants []Participant `json:"participants,omitempty"`
}

type Participant struct {
	ChallengeID string     `json:"challenge_id"`
	UserID      string     `json:"user_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

type PeerChallenge struct {
	ID           string          `json:"id"`
	ChallengerID string          `json:"challenger_id"`
	ChallengedID string          `json:"challenged_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     Category        `json:"category"`
	Points       int             `json:"points"`
	Status       ChallengeStatus `json:"status"`
	Deadline     time.Time       `json:"deadline"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Invite struct {
	ID        string       `json:"id"`
	ClanID    string       `json:"clan_id"`
	Email     string       `json:"email"`
	Code      string       `json:"code"`
	Status    InviteStatus `json:"status"`
	InvitedBy string       `json:"invited_by"`
	ExpiresAt time.Time    `json:"expires_at"`
	CreatedAt time.Time    `json:"created_at"`
}

type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Icon        string `json:"icon"`
}

type UserBadge struct {
	UserID     string    `json:"user_id"`
	BadgeID    string    `json:"badge_id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

type CategoryMastery struct {
	UserID    string    `json:"user_id"`
	Category  Category  `json:"category"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}
