package booksurf

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is a regular library member
	RoleUser UserRole = "user"
	// RoleAdmin can approve accounts and manage the catalog
	RoleAdmin UserRole = "admin"
)

// UserStatus tracks the university-card review state of an account
type UserStatus = string

const (
	// StatusPending means the university card has not been reviewed yet
	StatusPending UserStatus = "pending"
	// StatusApproved means the account passed card review
	StatusApproved UserStatus = "approved"
	// StatusRejected means the card was rejected
	StatusRejected UserStatus = "rejected"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FullName       string     `bun:"full_name,notnull" json:"full_name,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	UniversityID   int64      `bun:"university_id,notnull,unique" json:"university_id,omitempty"`
	UniversityCard string     `bun:"university_card,notnull" json:"university_card,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"password_hash,omitempty"`
	Role           UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status         UserStatus `bun:"status,notnull" json:"status,omitempty"`
	// LastActivityDate has calendar-day granularity. It only ever advances
	// to "today" and is written at most once per user per day.
	LastActivityDate *time.Time `bun:"last_activity_date,nullzero" json:"last_activity_date,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt        *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureDefaults fills role, status, and the initial activity date for new records
func (u *User) EnsureDefaults(now time.Time) *User {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = StatusPending
	}
	if u.LastActivityDate == nil {
		day := DayOf(now)
		u.LastActivityDate = &day
	}
	return u
}

// ActiveToday reports whether the user's last activity date falls on the
// same calendar day as now
func (u *User) ActiveToday(now time.Time) bool {
	if u.LastActivityDate == nil {
		return false
	}
	return CalendarDate(*u.LastActivityDate) == CalendarDate(now)
}

// CalendarDate formats a timestamp as a calendar date (no time component), in UTC
func CalendarDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// DayOf truncates a timestamp to midnight UTC of its calendar day
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
