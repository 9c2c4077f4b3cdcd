package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/models"
	"github.com/teampulse/teampulse/internal/repository"
	"github.com/teampulse/teampulse/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refreshtoken"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during registration or login
	// BcryptHasher is used if not set
	Hasher PasswordHasher

	// Transport details for issued tokens
	// Defaults: Authorization header with Bearer scheme, 'refreshtoken' cookie
	AccessHeaderName  string
	AccessAuthScheme  string
	RefreshCookieName string

	// Drop the Secure cookie attribute, local development only
	InsecureCookies bool
}

// AuthService verifies credentials and moves token pairs over HTTP:
// access token in the Authorization header, refresh token in an HttpOnly
// SameSite=Strict cookie so it never shows up in request bodies or URLs.
type AuthService struct {
	token  *tokenmanager.TokenManager
	hasher PasswordHasher

	userRepo repository.UserRepo

	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string
	secureCookies     bool
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}

	return &AuthService{
		token:             token,
		hasher:            cfg.Hasher,
		userRepo:          userRepo,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		secureCookies:     !cfg.InsecureCookies,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, username string, fullName string, password string) (models.User, models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, username, fullName, hash)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	pair, err := s.token.IssueSession(ctx, models.Identity{UserID: user.ID, IsManager: user.IsManager})
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("error while issuing session. Err: %w", err)
	}

	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Burn a compare anyway so a missing user costs the same
			// as a wrong password
			_ = s.hasher.Compare("", password)
			return models.User{}, models.TokenPair{}, apperrors.ErrUserNotFound
		}
		return models.User{}, models.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, models.TokenPair{}, apperrors.ErrUserNotFound
	}

	// A deactivated account fails exactly like a bad password
	if !user.IsActive {
		return models.User{}, models.TokenPair{}, apperrors.ErrUserNotFound
	}

	pair, err := s.token.IssueSession(ctx, models.Identity{UserID: user.ID, IsManager: user.IsManager})
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("error while issuing session. Err: %w", err)
	}

	return user, pair, nil
}

// Refresh rotates the presented refresh bearer into a new pair
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	return s.token.Rotate(ctx, refresh)
}

// Logout revokes the presented refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, refresh string) error {
	return s.token.RevokeOne(ctx, refresh)
}

// LogoutAll revokes every refresh token of the user (all devices)
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.token.RevokeAll(ctx, userID)
}

// Authenticate extracts the access bearer from the request and verifies
// it. Stateless: middleware gets an identity without any storage call.
func (s *AuthService) Authenticate(r *http.Request) (models.Identity, error) {
	header := r.Header.Get(s.accessHeaderName)
	scheme, bearer, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return models.Identity{}, fmt.Errorf("%w: no bearer credentials", apperrors.ErrInvalidToken)
	}

	return s.token.Authorize(strings.TrimSpace(bearer))
}

// SetTokenPairToResponse writes the pair: access token to the auth
// header, refresh token to the cookie. Cookie max age runs to the
// refresh token's absolute expiry, so a rotated cookie never outlives
// its chain.
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
	http.SetCookie(w, s.refreshCookie(pair.Refresh))
}

// ClearRefreshCookie instructs the browser to drop the refresh cookie
func (s *AuthService) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetRefreshString reads the refresh bearer from the cookie. Cookie only:
// refresh tokens in bodies or query strings would leak into logs.
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", fmt.Errorf("%w: no refresh cookie", apperrors.ErrInvalidToken)
	}
	return cookie.Value, nil
}

// SetTokenPairToRequest attaches the pair to an outgoing request the same
// way a browser would. Test helper.
func (s *AuthService) SetTokenPairToRequest(r *http.Request, pair models.TokenPair) {
	r.Header.Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
	r.AddCookie(s.refreshCookie(pair.Refresh))
}

func (s *AuthService) refreshCookie(refresh models.IssuedToken) *http.Cookie {
	return &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}
