package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mamounbq1/Info-Plat-sub004/internal/auth"
	"github.com/mamounbq1/Info-Plat-sub004/internal/claimsync"
	"github.com/mamounbq1/Info-Plat-sub004/internal/config"
	"github.com/mamounbq1/Info-Plat-sub004/internal/crypto"
	"github.com/mamounbq1/Info-Plat-sub004/internal/gate"
	"github.com/mamounbq1/Info-Plat-sub004/internal/issuer"
	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
	"github.com/mamounbq1/Info-Plat-sub004/internal/repository"
)

// memStore is an in-memory Store that queues sync events the way the
// transactional outbox does, so tests can drive trigger delivery
// explicitly.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]model.UserProfile
	sessions map[string]repository.RefreshSession
	events   []model.SyncEvent
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]model.UserProfile{},
		sessions: map[string]repository.RefreshSession{},
	}
}

func (m *memStore) GetProfile(_ context.Context, id string) (model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.DeletedAt != nil {
		return model.UserProfile{}, repository.ErrNotFound
	}
	return profile, nil
}

func (m *memStore) GetProfileByEmail(_ context.Context, email string) (model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, profile := range m.profiles {
		if profile.Email == email && profile.DeletedAt == nil {
			return profile, nil
		}
	}
	return model.UserProfile{}, repository.ErrNotFound
}

func (m *memStore) ListProfiles(_ context.Context, filter repository.ListFilter) ([]model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserProfile
	for _, profile := range m.profiles {
		if profile.DeletedAt != nil {
			continue
		}
		if filter.Role != "" && profile.Role != filter.Role {
			continue
		}
		if filter.Status != "" && profile.Status != filter.Status {
			continue
		}
		out = append(out, profile)
	}
	return out, nil
}

func (m *memStore) CreateProfile(_ context.Context, profile model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = profile
	m.events = append(m.events, model.SyncEvent{PrincipalID: profile.ID, Next: profile.Snapshot()})
	return nil
}

func (m *memStore) UpdateProfile(_ context.Context, id, fullName string, subject *string) (model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.DeletedAt != nil {
		return model.UserProfile{}, repository.ErrNotFound
	}
	previous := profile.Snapshot()
	profile.FullName = fullName
	profile.Subject = subject
	m.profiles[id] = profile
	m.events = append(m.events, model.SyncEvent{PrincipalID: id, Previous: previous, Next: profile.Snapshot()})
	return profile, nil
}

func (m *memStore) Approve(_ context.Context, id string, at time.Time) (model.UserProfile, error) {
	return m.transition(id, model.StatusPending, model.StatusActive, true, at)
}

func (m *memStore) Reject(_ context.Context, id string, at time.Time) (model.UserProfile, error) {
	return m.transition(id, model.StatusPending, model.StatusRejected, false, at)
}

func (m *memStore) Revoke(_ context.Context, id string, at time.Time) (model.UserProfile, error) {
	return m.transition(id, model.StatusActive, model.StatusRejected, false, at)
}

func (m *memStore) transition(id string, from, to model.Status, approved bool, at time.Time) (model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.DeletedAt != nil {
		return model.UserProfile{}, repository.ErrNotFound
	}
	if profile.Status != from {
		return model.UserProfile{}, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, profile.Status, to)
	}
	previous := profile.Snapshot()
	profile.Status = to
	profile.Approved = approved
	if approved {
		profile.ApprovedAt = &at
	} else {
		profile.RejectedAt = &at
	}
	m.profiles[id] = profile
	m.events = append(m.events, model.SyncEvent{PrincipalID: id, Previous: previous, Next: profile.Snapshot()})
	return profile, nil
}

func (m *memStore) DeleteProfile(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.DeletedAt != nil {
		return repository.ErrNotFound
	}
	previous := profile.Snapshot()
	profile.DeletedAt = &at
	m.profiles[id] = profile
	m.events = append(m.events, model.SyncEvent{PrincipalID: id, Previous: previous})
	return nil
}

func (m *memStore) MarkClaimsSynced(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[id]
	if !ok || profile.DeletedAt != nil {
		return nil
	}
	profile.ClaimsSyncedAt = &at
	m.profiles[id] = profile
	return nil
}

func (m *memStore) GetOutboxSummary(context.Context) (repository.OutboxSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return repository.OutboxSummary{Pending: len(m.events)}, nil
}

func (m *memStore) CreateRefreshSession(_ context.Context, session repository.RefreshSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.TokenHash] = session
	return nil
}

func (m *memStore) GetRefreshSession(_ context.Context, tokenHash string) (repository.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok {
		return repository.RefreshSession{}, repository.ErrNotFound
	}
	return session, nil
}

func (m *memStore) RevokeRefreshSession(_ context.Context, sessionID string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, session := range m.sessions {
		if session.ID == sessionID {
			session.RevokedAt = &revokedAt
			m.sessions[hash] = session
		}
	}
	return nil
}

func (m *memStore) RevokeRefreshSessionsByUser(_ context.Context, userID string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, session := range m.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &revokedAt
			m.sessions[hash] = session
		}
	}
	return nil
}

// popEvents drains the queued sync events, simulating trigger delivery.
func (m *memStore) popEvents() []model.SyncEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events
	m.events = nil
	return events
}

type fixture struct {
	store *memStore
	iss   *issuer.RedisIssuer
	sync  *claimsync.Synchronizer
	cfg   config.Config
	app   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	iss := issuer.NewRedisIssuer(client)
	cfg := config.Config{
		JWTSecret:       "test-secret",
		JWTIssuer:       "test-issuer",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
	synchronizer := claimsync.NewSynchronizer(iss, store, claimsync.RetryPolicy{BaseDelay: time.Millisecond, MaxAttempts: 3})
	refresher := claimsync.NewRefreshService(store, synchronizer)
	server := NewServer(cfg, store, iss, refresher)
	app := httptest.NewServer(server.Router())
	t.Cleanup(app.Close)

	return &fixture{store: store, iss: iss, sync: synchronizer, cfg: cfg, app: app}
}

// deliverEvents runs queued sync events through the synchronizer, the
// way the outbox dispatcher would.
func (f *fixture) deliverEvents(t *testing.T) {
	t.Helper()
	for _, ev := range f.store.popEvents() {
		if err := f.sync.Handle(context.Background(), ev); err != nil {
			t.Fatalf("deliver event for %s: %v", ev.PrincipalID, err)
		}
	}
}

func (f *fixture) adminToken(t *testing.T) string {
	t.Helper()
	adminID := uuid.NewString()
	hash, err := crypto.HashPassword("admin-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	profile := model.UserProfile{
		ID:           adminID,
		Email:        "admin-" + adminID[:8] + "@example.local",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Approved:     true,
		Status:       model.StatusActive,
		CreatedAt:    now,
		ApprovedAt:   &now,
	}
	if err := f.store.CreateProfile(context.Background(), profile); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	f.deliverEvents(t)
	return f.mustToken(t, adminID, model.Claims{Role: model.RoleAdmin, Approved: true, Status: model.StatusActive})
}

func (f *fixture) mustToken(t *testing.T, userID string, claims model.Claims) string {
	t.Helper()
	token, err := auth.NewAccessToken(f.cfg.JWTSecret, f.cfg.JWTIssuer, 10*time.Minute, userID, claims)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func (f *fixture) doReq(t *testing.T, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.app.URL+path, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read error: %v", err)
	}
	return resp, out.Bytes()
}

func decodeAuthResponse(t *testing.T, body []byte) authResponse {
	t.Helper()
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

func TestSignupLandsOnPendingApproval(t *testing.T) {
	f := newFixture(t)

	resp, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
		"fullName": "Test Student",
		"role":     "student",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	reply := decodeAuthResponse(t, body)
	want := model.Claims{Role: model.RoleStudent, Approved: false, Status: model.StatusPending}
	if reply.Claims != want {
		t.Fatalf("expected pending claims, got %+v", reply.Claims)
	}
	if reply.Destination != gate.DestinationPendingApproval {
		t.Fatalf("expected pending approval destination, got %s", reply.Destination)
	}

	// Registration pushed claims synchronously; the issuer already
	// knows this principal.
	got, err := f.iss.GetClaims(context.Background(), reply.User.ID)
	if err != nil {
		t.Fatalf("issuer claims: %v", err)
	}
	if got != want {
		t.Fatalf("issuer has %+v, expected %+v", got, want)
	}
}

func TestSignupAdminStartsActive(t *testing.T) {
	f := newFixture(t)

	resp, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "principal@example.local",
		"password": "dev-password",
		"role":     "admin",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	reply := decodeAuthResponse(t, body)
	want := model.Claims{Role: model.RoleAdmin, Approved: true, Status: model.StatusActive}
	if reply.Claims != want {
		t.Fatalf("expected auto-active admin claims, got %+v", reply.Claims)
	}
	if reply.Destination != gate.DestinationAdminDashboard {
		t.Fatalf("expected admin dashboard, got %s", reply.Destination)
	}
	if reply.User.Status != string(model.StatusActive) || !reply.User.Approved {
		t.Fatalf("expected active approved profile, got %+v", reply.User)
	}
}

func TestApprovalThenLoginRoutesToDashboard(t *testing.T) {
	f := newFixture(t)
	adminToken := f.adminToken(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	studentID := decodeAuthResponse(t, body).User.ID

	resp, _ := f.doReq(t, http.MethodPost, "/users/"+studentID+"/approve", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", resp.StatusCode)
	}

	// Trigger delivery happens out of band.
	f.deliverEvents(t)

	resp, body = f.doReq(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.StatusCode, body)
	}
	reply := decodeAuthResponse(t, body)
	if reply.Destination != gate.DestinationStudentDashboard {
		t.Fatalf("expected student dashboard, got %s", reply.Destination)
	}
	if reply.Claims.Status != model.StatusActive || !reply.Claims.Approved {
		t.Fatalf("expected active approved claims, got %+v", reply.Claims)
	}
}

func TestRejectedUserRoutesToRejectedVariant(t *testing.T) {
	f := newFixture(t)
	adminToken := f.adminToken(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "rejected@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	rejectedID := decodeAuthResponse(t, body).User.ID

	resp, _ := f.doReq(t, http.MethodPost, "/users/"+rejectedID+"/reject", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", resp.StatusCode)
	}
	f.deliverEvents(t)

	resp, body = f.doReq(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "rejected@example.local",
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.StatusCode, body)
	}
	reply := decodeAuthResponse(t, body)
	if reply.Claims.Status != model.StatusRejected || reply.Claims.Approved {
		t.Fatalf("expected rejected unapproved claims, got %+v", reply.Claims)
	}
	if reply.Destination != gate.DestinationRejected {
		t.Fatalf("rejected profile routed to %s, expected the rejected variant", reply.Destination)
	}
}

func TestRevokedUserRoutesToRejectedVariant(t *testing.T) {
	f := newFixture(t)
	adminToken := f.adminToken(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "revoked@example.local",
		"password": "dev-password",
		"role":     "teacher",
	})
	revokedID := decodeAuthResponse(t, body).User.ID

	for _, action := range []string{"approve", "revoke"} {
		resp, _ := f.doReq(t, http.MethodPost, "/users/"+revokedID+"/"+action, adminToken, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", action, resp.StatusCode)
		}
		f.deliverEvents(t)
	}

	resp, body := f.doReq(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "revoked@example.local",
		"password": "dev-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", resp.StatusCode, body)
	}
	reply := decodeAuthResponse(t, body)
	if reply.Destination != gate.DestinationRejected {
		t.Fatalf("revoked profile routed to %s, expected the rejected variant", reply.Destination)
	}
}

func TestAdminRefreshClaimsBeatsTrigger(t *testing.T) {
	f := newFixture(t)
	adminToken := f.adminToken(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	studentID := decodeAuthResponse(t, body).User.ID

	resp, _ := f.doReq(t, http.MethodPost, "/users/"+studentID+"/approve", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", resp.StatusCode)
	}

	// The synchronous path returns active claims while the trigger
	// event is still queued.
	resp, body = f.doReq(t, http.MethodPost, "/claims/refresh", adminToken, map[string]string{"principalId": studentID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var refreshResp struct {
		Principal string       `json:"principal"`
		Claims    model.Claims `json:"claims"`
	}
	if err := json.Unmarshal(body, &refreshResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if refreshResp.Claims.Status != model.StatusActive {
		t.Fatalf("expected active claims before trigger delivery, got %+v", refreshResp.Claims)
	}

	// The late trigger converges to the same state.
	f.deliverEvents(t)
	got, err := f.iss.GetClaims(context.Background(), studentID)
	if err != nil {
		t.Fatalf("issuer claims: %v", err)
	}
	if got != refreshResp.Claims {
		t.Fatalf("trigger diverged from refresh: %+v vs %+v", got, refreshResp.Claims)
	}
}

func TestCrossPrincipalRefreshDenied(t *testing.T) {
	f := newFixture(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "a@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	victimID := decodeAuthResponse(t, body).User.ID
	victimBefore, err := f.iss.GetClaims(context.Background(), victimID)
	if err != nil {
		t.Fatalf("victim claims: %v", err)
	}

	attackerToken := f.mustToken(t, uuid.NewString(), model.Claims{Role: model.RoleStudent, Approved: true, Status: model.StatusActive})
	resp, _ := f.doReq(t, http.MethodPost, "/claims/refresh", attackerToken, map[string]string{"principalId": victimID})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	victimAfter, err := f.iss.GetClaims(context.Background(), victimID)
	if err != nil {
		t.Fatalf("victim claims: %v", err)
	}
	if victimAfter != victimBefore {
		t.Fatalf("victim claims mutated on denied refresh")
	}
}

func TestDeleteClearsClaimsAndMyClaimsGoesEmpty(t *testing.T) {
	f := newFixture(t)
	adminToken := f.adminToken(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "doomed@example.local",
		"password": "dev-password",
		"role":     "teacher",
	})
	userResp := decodeAuthResponse(t, body)
	userID := userResp.User.ID

	resp, _ := f.doReq(t, http.MethodDelete, "/users/"+userID, adminToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	f.deliverEvents(t)

	// A still-valid credential sees an empty claims map.
	resp, body = f.doReq(t, http.MethodGet, "/auth/me/claims", userResp.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me/claims: expected 200, got %d", resp.StatusCode)
	}
	var claimsResp struct {
		Principal string                 `json:"principal"`
		Claims    map[string]interface{} `json:"claims"`
	}
	if err := json.Unmarshal(body, &claimsResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(claimsResp.Claims) != 0 {
		t.Fatalf("expected empty claims map, got %+v", claimsResp.Claims)
	}

	// Duplicate delete delivery does not error.
	f.store.mu.Lock()
	f.store.events = append(f.store.events, model.SyncEvent{PrincipalID: userID})
	f.store.mu.Unlock()
	f.deliverEvents(t)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)

	f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	resp, _ := f.doReq(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAdminOnlyRoutes(t *testing.T) {
	f := newFixture(t)
	studentToken := f.mustToken(t, uuid.NewString(), model.Claims{Role: model.RoleStudent, Approved: true, Status: model.StatusActive})

	resp, _ := f.doReq(t, http.MethodGet, "/users/", studentToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("list users: expected 403, got %d", resp.StatusCode)
	}
	resp, _ = f.doReq(t, http.MethodGet, "/sync/outbox", studentToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outbox: expected 403, got %d", resp.StatusCode)
	}
}

func TestInvalidTransitionConflicts(t *testing.T) {
	f := newFixture(t)
	adminToken := f.adminToken(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	studentID := decodeAuthResponse(t, body).User.ID

	resp, _ := f.doReq(t, http.MethodPost, "/users/"+studentID+"/approve", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d", resp.StatusCode)
	}
	// A second approve is no longer pending -> active.
	resp, _ = f.doReq(t, http.MethodPost, "/users/"+studentID+"/approve", adminToken, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	// Revoking the now-active profile is allowed.
	resp, _ = f.doReq(t, http.MethodPost, "/users/"+studentID+"/revoke", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revoke: expected 200, got %d", resp.StatusCode)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newFixture(t)

	_, body := f.doReq(t, http.MethodPost, "/auth/signup", "", map[string]interface{}{
		"email":    "student@example.local",
		"password": "dev-password",
		"role":     "student",
	})
	first := decodeAuthResponse(t, body)

	resp, body := f.doReq(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", resp.StatusCode, body)
	}

	// The rotated-out token is no longer usable.
	resp, _ = f.doReq(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": first.RefreshToken})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on reused refresh token, got %d", resp.StatusCode)
	}
}
