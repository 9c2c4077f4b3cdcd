package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/teampulse/teampulse/internal/handlers/identityctx"
	"github.com/teampulse/teampulse/internal/models"
)

// Allow to use a function as auth service
type authFunc func(r *http.Request) (models.Identity, error)

func (f authFunc) Authenticate(r *http.Request) (models.Identity, error) {
	return f(r)
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()

	// Handler that echoes the subject id from the request context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set identity or reject the request
		identity, ok := identityctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(identity.UserID.String()))
		require.NoError(t, err, "should write subject id to response")
	})

	t.Run("auth ok", func(t *testing.T) {
		middleware := AuthMiddleware(authFunc(func(r *http.Request) (models.Identity, error) {
			return models.Identity{UserID: userID}, nil
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, userID.String(), string(body), "should return subject id in response")
	})

	t.Run("auth fail", func(t *testing.T) {
		middleware := AuthMiddleware(authFunc(func(r *http.Request) (models.Identity, error) {
			return models.Identity{}, errors.New("no way")
		}))

		srv := httptest.NewServer(middleware(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck

		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", string(body))
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			string(body),
		)
	})
}

func TestRequireManager(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("manager area"))
	})

	authAs := func(identity models.Identity) func(http.Handler) http.Handler {
		return AuthMiddleware(authFunc(func(r *http.Request) (models.Identity, error) {
			return identity, nil
		}))
	}

	t.Run("manager passes", func(t *testing.T) {
		srv := httptest.NewServer(authAs(models.Identity{UserID: uuid.New(), IsManager: true})(RequireManager()(handler)))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("regular user gets 403", func(t *testing.T) {
		srv := httptest.NewServer(authAs(models.Identity{UserID: uuid.New()})(RequireManager()(handler)))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Forbidden"
			}`,
			string(body),
		)
	})

	t.Run("no identity in context gets 401", func(t *testing.T) {
		srv := httptest.NewServer(RequireManager()(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
