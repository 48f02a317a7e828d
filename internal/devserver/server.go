// Package devserver is an in-memory stand-in for the platform's identity
// endpoints. It exists for local development and tests only and is mounted
// solely when dev mode is enabled.
package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
	"github.com/aussiebroadwan/examadmin/pkg/cryptox"
	"github.com/aussiebroadwan/examadmin/pkg/httpx"
	"github.com/aussiebroadwan/examadmin/pkg/jwtx"
	"github.com/aussiebroadwan/examadmin/pkg/slogx"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pquerna/otp/totp"
)

const defaultIssuer = "examadmin-devserver"

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Issuer string

	// SigningSecret signs access tokens (HS256, at least 32 bytes). A random
	// one is generated when empty.
	SigningSecret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// LoginLimit throttles login and OTP attempts per identifier.
	LoginLimit httpx.RateLimitConfig
	// APILimit throttles the sample section API per caller.
	APILimit httpx.RateLimitConfig

	Logger *slog.Logger

	// Now drives refresh token and challenge expiry, for tests.
	Now func() time.Time
}

// Server serves the identity endpoints the console talks to.
type Server struct {
	issuer     string
	signer     *jwtx.HS256Signer
	accessTTL  time.Duration
	refreshTTL time.Duration
	loginLimit httpx.RateLimitConfig
	apiLimit   httpx.RateLimitConfig
	logger     *slog.Logger
	now        func() time.Time
	validate   *validator.Validate

	users    *directory
	sessions *sessions
}

// New creates a Server with no users.
func New(opts Options) (*Server, error) {
	secret := opts.SigningSecret
	if len(secret) == 0 {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		secret = []byte(generated)
	}

	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}

	s := &Server{
		issuer:     opts.Issuer,
		signer:     signer,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		loginLimit: opts.LoginLimit,
		apiLimit:   opts.APILimit,
		logger:     opts.Logger,
		now:        opts.Now,
		validate:   validator.New(),
		users:      newDirectory(),
		sessions:   newSessions(),
	}

	if s.issuer == "" {
		s.issuer = defaultIssuer
	}
	if s.accessTTL <= 0 {
		s.accessTTL = jwtx.DefaultAccessTokenTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	if s.loginLimit.RequestsPerWindow <= 0 {
		s.loginLimit = httpx.LoginLimit
	}
	if s.apiLimit.RequestsPerWindow <= 0 {
		s.apiLimit = httpx.APILimit
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// AddUser registers an operator and returns the profile the server will
// hand out for them.
func (s *Server) AddUser(spec UserSpec) (*authsdk.UserProfile, error) {
	u, err := s.users.add(spec)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dev user registered", "email", u.email, "role", u.role.Name, "two_factor", u.twoFactor())
	return u.profile(), nil
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(slogx.HTTPMiddleware(s.logger))

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httpx.RateLimitByJSONField(s.loginLimit, "identifier"))
			r.Post("/login", s.handleLogin)
			r.Post("/verify-otp", s.handleVerifyOTP)
		})
		r.Post("/refresh-token", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.With(httpx.AuthnMiddleware(s.signer)).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(httpx.AuthnMiddleware(s.signer), httpx.RateLimitBySubject(s.apiLimit))
		r.HandleFunc("/api/{section}", s.handleSection)
		r.HandleFunc("/api/{section}/*", s.handleSection)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// decode reads a JSON body into v and validates it, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.WriteError(w, http.StatusBadRequest, fieldErrs[0].Field()+" is required")
			return false
		}
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req authsdk.LoginRequest
	if !s.decode(w, r, &req) {
		return
	}

	u, ok := s.users.byIdentifier(req.Identifier)
	if !ok || cryptox.VerifySecret(req.Secret, u.secretHash) != nil {
		log.Info("login rejected")
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if u.twoFactor() {
		s.sessions.openChallenge(req.Identifier, u.id, s.now())
		log.Info("two-factor challenge opened", "user_id", u.id)
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
			RequiresTwoFactor: true,
			MobileNumber:      u.mobileMasked,
			Message:           "OTP sent",
		})
		return
	}

	access, refresh, err := s.issue(u, []string{"pwd"})
	if err != nil {
		log.Error("failed to issue tokens", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		User:         u.profile(),
	})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req authsdk.VerifyOTPRequest
	if !s.decode(w, r, &req) {
		return
	}

	userID, err := s.sessions.pendingChallenge(req.Identifier, s.now())
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "No pending verification")
		return
	}
	u, ok := s.users.get(userID.String())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "No pending verification")
		return
	}

	if !totp.Validate(req.Code, u.totpSecret) {
		log.Info("otp rejected", "user_id", u.id)
		httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyOTPResponse{Success: false, Message: "Invalid OTP"})
		return
	}
	s.sessions.closeChallenge(req.Identifier)

	access, refresh, err := s.issue(u, []string{"pwd", "otp"})
	if err != nil {
		log.Error("failed to issue tokens", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyOTPResponse{
		Success:      true,
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		User:         u.profile(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req authsdk.RefreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	rec, err := s.sessions.consumeRefresh(req.RefreshToken, s.now())
	if err != nil {
		log.Info("refresh rejected", "token_fp", cryptox.FingerprintToken(req.RefreshToken))
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	u, ok := s.users.get(rec.userID.String())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	amr := rec.amr
	if !slices.Contains(amr, "refresh") {
		amr = append(slices.Clone(amr), "refresh")
	}

	access, refresh, err := s.issue(u, amr)
	if err != nil {
		log.Error("failed to issue tokens", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RefreshResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req)

	if req.RefreshToken != "" && s.sessions.revokeRefresh(req.RefreshToken) {
		slogx.FromContext(r.Context()).Info("refresh token revoked", "token_fp", cryptox.FingerprintToken(req.RefreshToken))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.users.get(httpx.SubjectFromContext(r.Context()))
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Unknown user")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u.profile())
}

// handleSection is a sample protected resource. It checks the caller's role
// the same way the console does and echoes what it saw.
func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, ok := s.users.get(httpx.SubjectFromContext(ctx))
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	section := chi.URLParam(r, "section")
	action := httpx.ActionForMethod(r.Method)
	if !authsdk.Evaluate(u.profile(), section, authsdk.Action(action)) {
		slogx.FromContext(ctx).Info("section access denied", "section", section, "action", action)
		httpx.WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"section":   section,
		"action":    action,
		"path":      r.URL.Path,
		"subject":   u.id.String(),
		"requestId": slogx.RequestID(ctx),
	})
}

// issue signs an access token and stores a fresh refresh token. Access tokens
// use the wall clock because their verification does.
func (s *Server) issue(u *user, amr []string) (access, refresh string, err error) {
	claims := jwtx.NewAccessClaims(u.id.String(), u.email, u.role.Name, amr, s.accessTTL, s.issuer, time.Now())
	access, err = s.signer.Sign(claims)
	if err != nil {
		return "", "", err
	}

	refresh, err = s.sessions.issueRefresh(u.id, amr, s.now().Add(s.refreshTTL))
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return access, refresh, nil
}
