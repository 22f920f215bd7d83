package claimsync

import (
	"context"
	"errors"

	"github.com/mamounbq1/Info-Plat-sub004/internal/metrics"
	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
	"github.com/mamounbq1/Info-Plat-sub004/internal/repository"
)

var (
	// ErrUnauthenticated is returned when no requester principal is
	// present.
	ErrUnauthenticated = errors.New("refresh requires an authenticated principal")
	// ErrPermissionDenied is returned for cross-principal refreshes by a
	// requester whose cached claims are not admin. No mutation happens.
	ErrPermissionDenied = errors.New("cross-principal refresh requires admin claims")
)

// ProfileReader loads the latest committed profile for a principal.
// Absence is reported with repository.ErrNotFound.
type ProfileReader interface {
	GetProfile(ctx context.Context, principalID string) (model.UserProfile, error)
}

// Requester identifies the caller of the refresh service along with the
// claims it currently holds. The cross-principal check trusts these
// cached claims; a requester demoted after its last refresh can still
// authorize one more privileged call inside that staleness window.
type Requester struct {
	PrincipalID string
	Claims      model.Claims
}

// RefreshService is the synchronous alternative to the event trigger:
// it re-reads the latest profile and pushes derived claims immediately,
// returning the result so callers can observe propagation.
type RefreshService struct {
	profiles ProfileReader
	sync     *Synchronizer
}

func NewRefreshService(profiles ProfileReader, sync *Synchronizer) *RefreshService {
	return &RefreshService{profiles: profiles, sync: sync}
}

// RefreshClaims recomputes and pushes claims for targetID, defaulting
// to the requester itself. Self-refresh is always allowed; refreshing
// another principal requires the requester's cached claims to be admin.
func (r *RefreshService) RefreshClaims(ctx context.Context, requester Requester, targetID string) (model.Claims, error) {
	if requester.PrincipalID == "" {
		metrics.RefreshRequests.WithLabelValues("unauthenticated").Inc()
		return model.Claims{}, ErrUnauthenticated
	}
	if targetID == "" {
		targetID = requester.PrincipalID
	}
	if targetID != requester.PrincipalID && requester.Claims.Role != model.RoleAdmin {
		metrics.RefreshRequests.WithLabelValues("denied").Inc()
		return model.Claims{}, ErrPermissionDenied
	}

	profile, err := r.profiles.GetProfile(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.RefreshRequests.WithLabelValues("not_found").Inc()
		} else {
			metrics.RefreshRequests.WithLabelValues("error").Inc()
		}
		return model.Claims{}, err
	}

	claims, err := r.sync.Push(ctx, targetID, profile.Snapshot())
	if err != nil {
		metrics.RefreshRequests.WithLabelValues("error").Inc()
		return model.Claims{}, err
	}
	metrics.RefreshRequests.WithLabelValues("ok").Inc()
	return claims, nil
}
