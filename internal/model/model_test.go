package model

import "testing"

func TestResolveClaimsDefaults(t *testing.T) {
	claims := ResolveClaims(nil)
	if claims.Role != RoleStudent || claims.Approved || claims.Status != StatusPending {
		t.Fatalf("expected least-privileged defaults, got %+v", claims)
	}

	claims = ResolveClaims(&ProfileSnapshot{})
	if claims.Role != RoleStudent || claims.Approved || claims.Status != StatusPending {
		t.Fatalf("expected empty snapshot to resolve to defaults, got %+v", claims)
	}
}

func TestResolveClaimsMalformedFields(t *testing.T) {
	claims := ResolveClaims(&ProfileSnapshot{Role: "superuser", Status: "enabled"})
	if claims.Role != RoleStudent {
		t.Fatalf("expected unknown role to default to student, got %s", claims.Role)
	}
	if claims.Status != StatusPending {
		t.Fatalf("expected unknown status to default to pending, got %s", claims.Status)
	}
}

func TestResolveClaimsAdminInvariant(t *testing.T) {
	approved := false
	claims := ResolveClaims(&ProfileSnapshot{Role: RoleAdmin, Approved: &approved, Status: StatusPending})
	if !claims.Approved {
		t.Fatalf("expected admin to be approved")
	}
	if claims.Status != StatusActive {
		t.Fatalf("expected admin status active, got %s", claims.Status)
	}
}

func TestResolveClaimsPassthrough(t *testing.T) {
	approved := true
	claims := ResolveClaims(&ProfileSnapshot{Role: RoleTeacher, Approved: &approved, Status: StatusActive})
	if claims.Role != RoleTeacher || !claims.Approved || claims.Status != StatusActive {
		t.Fatalf("expected teacher claims preserved, got %+v", claims)
	}
}

func TestParseRoleAndStatus(t *testing.T) {
	if _, ok := ParseRole("admin"); !ok {
		t.Fatalf("expected admin to be a valid role")
	}
	if _, ok := ParseRole("dev"); ok {
		t.Fatalf("expected dev to be rejected")
	}
	if _, ok := ParseStatus("rejected"); !ok {
		t.Fatalf("expected rejected to be a valid status")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatalf("expected empty status to be rejected")
	}
}
