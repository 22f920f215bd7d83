package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mamounbq1/Info-Plat-sub004/internal/auth"
	"github.com/mamounbq1/Info-Plat-sub004/internal/claimsync"
	"github.com/mamounbq1/Info-Plat-sub004/internal/config"
	"github.com/mamounbq1/Info-Plat-sub004/internal/crypto"
	"github.com/mamounbq1/Info-Plat-sub004/internal/gate"
	"github.com/mamounbq1/Info-Plat-sub004/internal/issuer"
	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
	"github.com/mamounbq1/Info-Plat-sub004/internal/repository"
	"github.com/mamounbq1/Info-Plat-sub004/internal/session"
)

// Store is the profile and session storage the server depends on.
// *repository.Store satisfies it; tests use an in-memory fake.
type Store interface {
	GetProfile(ctx context.Context, principalID string) (model.UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (model.UserProfile, error)
	ListProfiles(ctx context.Context, filter repository.ListFilter) ([]model.UserProfile, error)
	CreateProfile(ctx context.Context, profile model.UserProfile) error
	UpdateProfile(ctx context.Context, principalID string, fullName string, subject *string) (model.UserProfile, error)
	Approve(ctx context.Context, principalID string, at time.Time) (model.UserProfile, error)
	Reject(ctx context.Context, principalID string, at time.Time) (model.UserProfile, error)
	Revoke(ctx context.Context, principalID string, at time.Time) (model.UserProfile, error)
	DeleteProfile(ctx context.Context, principalID string, at time.Time) error
	GetOutboxSummary(ctx context.Context) (repository.OutboxSummary, error)

	CreateRefreshSession(ctx context.Context, session repository.RefreshSession) error
	GetRefreshSession(ctx context.Context, tokenHash string) (repository.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error
	RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error
}

type Server struct {
	cfg       config.Config
	store     Store
	issuer    issuer.Issuer
	refresher *claimsync.RefreshService
}

func NewServer(cfg config.Config, store Store, iss issuer.Issuer, refresher *claimsync.RefreshService) *Server {
	return &Server{cfg: cfg, store: store, issuer: iss, refresher: refresher}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)
	r.With(s.authMiddleware).Get("/auth/me", s.handleGetMe)
	r.With(s.authMiddleware).Get("/auth/me/claims", s.handleGetMyClaims)

	r.With(s.authMiddleware).Post("/claims/refresh", s.handleRefreshClaims)

	r.Route("/users", func(r chi.Router) {
		r.With(s.authMiddleware, s.requireAdmin).Get("/", s.handleListUsers)
		r.With(s.authMiddleware, s.requireAdmin).Post("/", s.handleCreateUser)
		r.With(s.authMiddleware).Get("/{userID}", s.handleGetUser)
		r.With(s.authMiddleware).Patch("/{userID}", s.handleUpdateUser)
		r.With(s.authMiddleware, s.requireAdmin).Post("/{userID}/approve", s.handleApproveUser)
		r.With(s.authMiddleware, s.requireAdmin).Post("/{userID}/reject", s.handleRejectUser)
		r.With(s.authMiddleware, s.requireAdmin).Post("/{userID}/revoke", s.handleRevokeUser)
		r.With(s.authMiddleware, s.requireAdmin).Delete("/{userID}", s.handleDeleteUser)
	})

	r.With(s.authMiddleware, s.requireAdmin).Get("/sync/outbox", s.handleOutboxSummary)

	return r
}

// newCoordinator builds the session coordinator for one authenticated
// principal. Each session gets its own; nothing is shared globally.
func (s *Server) newCoordinator(principalID string) *session.Coordinator {
	return session.NewCoordinator(principalID, s.issuer, s.store, s.refresher, s.tokenSource())
}

type tokenSource struct {
	secret string
	issuer string
	ttl    time.Duration
}

func (t tokenSource) Mint(principalID string, claims model.Claims) (string, error) {
	return auth.NewAccessToken(t.secret, t.issuer, t.ttl, principalID, claims)
}

func (s *Server) tokenSource() session.TokenSource {
	return tokenSource{secret: s.cfg.JWTSecret, issuer: s.cfg.JWTIssuer, ttl: s.cfg.AccessTokenTTL}
}

type signupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"fullName"`
	Role     string  `json:"role"`
	Subject  *string `json:"subject,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	User         profileSummary   `json:"user"`
	Claims       model.Claims     `json:"claims"`
	Destination  gate.Destination `json:"destination"`
}

type profileSummary struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"fullName"`
	Role           string  `json:"role"`
	Approved       bool    `json:"approved"`
	Status         string  `json:"status"`
	Subject        *string `json:"subject,omitempty"`
	CreatedAt      int64   `json:"createdAt"`
	ApprovedAt     *int64  `json:"approvedAt,omitempty"`
	RejectedAt     *int64  `json:"rejectedAt,omitempty"`
	ClaimsSyncedAt *int64  `json:"claimsSyncedAt,omitempty"`
}

func summarize(p model.UserProfile) profileSummary {
	return profileSummary{
		ID:             p.ID,
		Email:          p.Email,
		FullName:       p.FullName,
		Role:           string(p.Role),
		Approved:       p.Approved,
		Status:         string(p.Status),
		Subject:        p.Subject,
		CreatedAt:      p.CreatedAt.Unix(),
		ApprovedAt:     unixPtr(p.ApprovedAt),
		RejectedAt:     unixPtr(p.RejectedAt),
		ClaimsSyncedAt: unixPtr(p.ClaimsSyncedAt),
	}
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	value := t.Unix()
	return &value
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if role != model.RoleTeacher && req.Subject != nil {
		writeError(w, http.StatusBadRequest, "subject_requires_teacher")
		return
	}

	if _, err := s.store.GetProfileByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email_taken")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	now := time.Now().UTC()
	profile := model.UserProfile{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         role,
		Approved:     false,
		Status:       model.StatusPending,
		Subject:      req.Subject,
		CreatedAt:    now,
	}
	if role == model.RoleAdmin {
		// Admin principals skip the approval queue and start active.
		profile.Approved = true
		profile.Status = model.StatusActive
		profile.ApprovedAt = &now
	}
	if err := s.store.CreateProfile(r.Context(), profile); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Registration changed the caller's own profile: push claims and
	// refresh the credential before the client navigates.
	coordinator := s.newCoordinator(profile.ID)
	cred, err := coordinator.AfterProfileChange(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "claims_sync_failed")
		return
	}

	refreshToken, err := s.issueRefreshSession(r.Context(), profile.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{
		AccessToken:  cred.Token,
		RefreshToken: refreshToken,
		User:         summarize(profile),
		Claims:       cred.Claims,
		Destination:  gate.RouteClaims(cred.Claims, true),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	profile, err := s.store.GetProfileByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(profile.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	// Sign-in is an auth state transition: force one credential refresh
	// before the gate decides where this session lands.
	destination, cred, err := s.newCoordinator(profile.ID).Route(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "claims_refresh_failed")
		return
	}

	refreshToken, err := s.issueRefreshSession(r.Context(), profile.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  cred.Token,
		RefreshToken: refreshToken,
		User:         summarize(profile),
		Claims:       cred.Claims,
		Destination:  destination,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	tokenHash := crypto.HashToken(req.RefreshToken)
	stored, err := s.store.GetRefreshSession(r.Context(), tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if stored.RevokedAt != nil || stored.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	profile, err := s.store.GetProfile(r.Context(), stored.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}

	if err := s.store.RevokeRefreshSession(r.Context(), stored.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// App reload path: same forced refresh as sign-in.
	destination, cred, err := s.newCoordinator(profile.ID).Route(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "claims_refresh_failed")
		return
	}

	refreshToken, err := s.issueRefreshSession(r.Context(), profile.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  cred.Token,
		RefreshToken: refreshToken,
		User:         summarize(profile),
		Claims:       cred.Claims,
		Destination:  destination,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	profile, err := s.store.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"principal":   claims.UserID,
				"profile":     nil,
				"destination": gate.Route("", false, "", false),
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal":   claims.UserID,
		"profile":     summarize(profile),
		"destination": gate.RouteClaims(claims.AuthClaims(), true),
	})
}

func (s *Server) handleGetMyClaims(w http.ResponseWriter, r *http.Request) {
	requester := claimsFromContext(r.Context())
	if requester == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	claims, err := s.issuer.GetClaims(r.Context(), requester.UserID)
	if err != nil {
		if errors.Is(err, issuer.ErrPrincipalNotFound) {
			// Credential may outlive the profile; expose an empty claims
			// map rather than an error.
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"principal": requester.UserID,
				"claims":    map[string]interface{}{},
			})
			return
		}
		writeError(w, http.StatusBadGateway, "issuer_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal": requester.UserID,
		"claims":    claims,
	})
}

type refreshClaimsRequest struct {
	PrincipalID string `json:"principalId"`
}

func (s *Server) handleRefreshClaims(w http.ResponseWriter, r *http.Request) {
	tokenClaims := claimsFromContext(r.Context())
	if tokenClaims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req refreshClaimsRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
	}

	requester := claimsync.Requester{
		PrincipalID: tokenClaims.UserID,
		Claims:      tokenClaims.AuthClaims(),
	}
	claims, err := s.refresher.RefreshClaims(r.Context(), requester, req.PrincipalID)
	if err != nil {
		switch {
		case errors.Is(err, claimsync.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "unauthenticated")
		case errors.Is(err, claimsync.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, "permission_denied")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "profile_not_found")
		default:
			writeError(w, http.StatusBadGateway, "claims_sync_failed")
		}
		return
	}

	target := req.PrincipalID
	if target == "" {
		target = tokenClaims.UserID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal": target,
		"claims":    claims,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repository.ListFilter{
		Limit:  intQuery(query.Get("limit"), 50),
		Offset: intQuery(query.Get("offset"), 0),
	}
	if role, ok := model.ParseRole(query.Get("role")); ok {
		filter.Role = role
	}
	if status, ok := model.ParseStatus(query.Get("status")); ok {
		filter.Status = status
	}

	profiles, err := s.store.ListProfiles(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	summaries := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		summaries = append(summaries, summarize(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": summaries})
}

type createUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"fullName"`
	Role     string  `json:"role"`
	Subject  *string `json:"subject,omitempty"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	if _, err := s.store.GetProfileByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email_taken")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Accounts created by an administrator skip the approval queue.
	now := time.Now().UTC()
	profile := model.UserProfile{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: hash,
		Role:         role,
		Approved:     true,
		Status:       model.StatusActive,
		Subject:      req.Subject,
		CreatedAt:    now,
		ApprovedAt:   &now,
	}
	if err := s.store.CreateProfile(r.Context(), profile); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, summarize(profile))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if claims.UserID != userID && claims.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin_only")
		return
	}

	profile, err := s.store.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, summarize(profile))
}

type updateUserRequest struct {
	FullName string  `json:"fullName"`
	Subject  *string `json:"subject,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	userID := chi.URLParam(r, "userID")
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if claims.UserID != userID && claims.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin_only")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	profile, err := s.store.UpdateProfile(r.Context(), userID, strings.TrimSpace(req.FullName), req.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, summarize(profile))
}

func (s *Server) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.store.Approve)
}

func (s *Server) handleRejectUser(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.store.Reject)
}

func (s *Server) handleRevokeUser(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.store.Revoke)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, transition func(context.Context, string, time.Time) (model.UserProfile, error)) {
	userID := chi.URLParam(r, "userID")
	profile, err := transition(r.Context(), userID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "profile_not_found")
		case errors.Is(err, repository.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_transition")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, summarize(profile))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.store.DeleteProfile(r.Context(), userID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), userID, time.Now().UTC())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOutboxSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.GetOutboxSummary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"pending": summary.Pending,
		"dead":    summary.Dead,
	})
}

func (s *Server) issueRefreshSession(ctx context.Context, userID string) (string, error) {
	token, hash, err := crypto.NewRefreshToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	err = s.store.CreateRefreshSession(ctx, repository.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || claims.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func intQuery(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
