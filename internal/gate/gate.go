// Package gate decides where an authenticated principal lands. It is a
// pure function of claims plus profile presence and never mutates
// state; transitions happen through administrator writes to the
// profile store.
package gate

import "github.com/mamounbq1/Info-Plat-sub004/internal/model"

type Destination string

const (
	DestinationProfileSetup     Destination = "profile_setup"
	DestinationPendingApproval  Destination = "pending_approval"
	DestinationRejected         Destination = "rejected"
	DestinationAdminDashboard   Destination = "admin_dashboard"
	DestinationTeacherDashboard Destination = "teacher_dashboard"
	DestinationStudentDashboard Destination = "student_dashboard"
)

// Route maps (role, approved, status, hasProfile) to a destination.
// Unknown combinations land on the pending screen rather than a
// dashboard.
func Route(role model.Role, approved bool, status model.Status, hasProfile bool) Destination {
	if !hasProfile {
		return DestinationProfileSetup
	}
	// Rejected wins over unapproved: reject and revoke both clear the
	// approval flag, and a rejected profile must not read as pending.
	if status == model.StatusRejected {
		return DestinationRejected
	}
	if status == model.StatusPending || (!approved && role != model.RoleAdmin) {
		return DestinationPendingApproval
	}
	if role == model.RoleAdmin {
		return DestinationAdminDashboard
	}
	if role == model.RoleTeacher && status == model.StatusActive {
		return DestinationTeacherDashboard
	}
	if role == model.RoleStudent && status == model.StatusActive {
		return DestinationStudentDashboard
	}
	return DestinationPendingApproval
}

// RouteClaims is Route applied to resolved claims.
func RouteClaims(claims model.Claims, hasProfile bool) Destination {
	return Route(claims.Role, claims.Approved, claims.Status, hasProfile)
}
