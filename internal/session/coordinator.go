// Package session keeps a client session's view of its claims in step
// with the issuer. State is session-scoped and threaded explicitly;
// there is no ambient current-user singleton.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mamounbq1/Info-Plat-sub004/internal/claimsync"
	"github.com/mamounbq1/Info-Plat-sub004/internal/gate"
	"github.com/mamounbq1/Info-Plat-sub004/internal/issuer"
	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
	"github.com/mamounbq1/Info-Plat-sub004/internal/repository"
)

// TokenSource mints a credential embedding the given claims.
type TokenSource interface {
	Mint(principalID string, claims model.Claims) (string, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, principalID string) (model.UserProfile, error)
}

type Refresher interface {
	RefreshClaims(ctx context.Context, requester claimsync.Requester, targetID string) (model.Claims, error)
}

// Credential is a freshly minted token plus the claims embedded in it.
type Credential struct {
	Token     string
	Claims    model.Claims
	IssuedAt  time.Time
	Principal string
}

// Coordinator guards one session. Every auth state transition forces a
// credential refresh before routing, so no consumer acts on claims
// older than the latest known profile state.
type Coordinator struct {
	principalID string
	claims      issuer.Issuer
	profiles    ProfileReader
	refresher   Refresher
	tokens      TokenSource

	mu          sync.Mutex
	cached      model.Claims
	refreshedAt time.Time
}

func NewCoordinator(principalID string, claims issuer.Issuer, profiles ProfileReader, refresher Refresher, tokens TokenSource) *Coordinator {
	return &Coordinator{
		principalID: principalID,
		claims:      claims,
		profiles:    profiles,
		refresher:   refresher,
		tokens:      tokens,
	}
}

// ForceRefresh unconditionally re-reads issuer claims, invalidates the
// session cache, and mints a fresh credential. A principal the issuer
// does not know resolves to least-privileged claims.
func (c *Coordinator) ForceRefresh(ctx context.Context) (Credential, error) {
	claims, err := c.claims.GetClaims(ctx, c.principalID)
	if errors.Is(err, issuer.ErrPrincipalNotFound) {
		claims = model.ResolveClaims(nil)
		err = nil
	}
	if err != nil {
		return Credential{}, err
	}

	token, err := c.tokens.Mint(c.principalID, claims)
	if err != nil {
		return Credential{}, err
	}

	now := time.Now().UTC()
	c.mu.Lock()
	c.cached = claims
	c.refreshedAt = now
	c.mu.Unlock()

	return Credential{Token: token, Claims: claims, IssuedAt: now, Principal: c.principalID}, nil
}

// Claims returns the session's cached claims and when they were last
// refreshed. ok is false before the first forced refresh; callers must
// refresh rather than act on nothing.
func (c *Coordinator) Claims() (claims model.Claims, refreshedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshedAt.IsZero() {
		return model.Claims{}, time.Time{}, false
	}
	return c.cached, c.refreshedAt, true
}

// AfterProfileChange pushes the caller's own profile to the issuer and
// then forces a refresh, closing the staleness window after a
// self-triggered profile change (e.g. completing registration).
func (c *Coordinator) AfterProfileChange(ctx context.Context) (Credential, error) {
	requester := claimsync.Requester{PrincipalID: c.principalID}
	if cached, _, ok := c.Claims(); ok {
		requester.Claims = cached
	}
	if _, err := c.refresher.RefreshClaims(ctx, requester, ""); err != nil {
		return Credential{}, err
	}
	return c.ForceRefresh(ctx)
}

// Route forces a refresh and evaluates the access gate against the
// fresh claims and current profile presence.
func (c *Coordinator) Route(ctx context.Context) (gate.Destination, Credential, error) {
	cred, err := c.ForceRefresh(ctx)
	if err != nil {
		return "", Credential{}, err
	}

	hasProfile := true
	if _, err := c.profiles.GetProfile(ctx, c.principalID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", Credential{}, err
		}
		hasProfile = false
	}
	return gate.RouteClaims(cred.Claims, hasProfile), cred, nil
}
