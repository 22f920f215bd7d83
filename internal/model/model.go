package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(value), true
	}
	return "", false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusRejected Status = "rejected"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusPending, StatusActive, StatusRejected:
		return Status(value), true
	}
	return "", false
}

// UserProfile is the durable record of a principal's role and approval
// lifecycle. Deletion is a tombstone: DeletedAt is set and the row is
// treated as absent by every read path.
type UserProfile struct {
	ID             string
	Email          string
	FullName       string
	PasswordHash   string
	Role           Role
	Approved       bool
	Status         Status
	Subject        *string
	CreatedAt      time.Time
	ApprovedAt     *time.Time
	RejectedAt     *time.Time
	ClaimsSyncedAt *time.Time
	DeletedAt      *time.Time
}

func (p UserProfile) Snapshot() *ProfileSnapshot {
	approved := p.Approved
	return &ProfileSnapshot{
		Role:     p.Role,
		Approved: &approved,
		Status:   p.Status,
		Subject:  p.Subject,
	}
}

// ProfileSnapshot is the loosely-typed profile view carried by sync
// events. Role and Status may be empty and Approved may be nil; only
// ResolveClaims decides what missing fields mean.
type ProfileSnapshot struct {
	Role     Role    `json:"role,omitempty"`
	Approved *bool   `json:"approved,omitempty"`
	Status   Status  `json:"status,omitempty"`
	Subject  *string `json:"subject,omitempty"`
}

// Claims are the authorization attributes embedded in issued
// credentials. They are derived from the latest profile snapshot and
// never mutated independently.
type Claims struct {
	Role     Role   `json:"role"`
	Approved bool   `json:"approved"`
	Status   Status `json:"status"`
}

// ResolveClaims maps a profile snapshot to claims. Missing fields
// default to the least-privileged values, and administrators are always
// approved and active regardless of what was written.
func ResolveClaims(snap *ProfileSnapshot) Claims {
	claims := Claims{
		Role:     RoleStudent,
		Approved: false,
		Status:   StatusPending,
	}
	if snap == nil {
		return claims
	}
	if role, ok := ParseRole(string(snap.Role)); ok {
		claims.Role = role
	}
	if snap.Approved != nil {
		claims.Approved = *snap.Approved
	}
	if status, ok := ParseStatus(string(snap.Status)); ok {
		claims.Status = status
	}
	if claims.Role == RoleAdmin {
		claims.Approved = true
		claims.Status = StatusActive
	}
	return claims
}

// SyncEvent is the unit of work consumed by the synchronizer. A nil
// Next signals that the profile was deleted.
type SyncEvent struct {
	PrincipalID string
	Previous    *ProfileSnapshot
	Next        *ProfileSnapshot
}
