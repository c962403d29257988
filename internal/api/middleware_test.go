package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"

	"github.com/jmcardle/go-chatserver/internal/database"
	"github.com/jmcardle/go-chatserver/internal/types"
)

func TestAuthMiddleware(t *testing.T) {
	s := newTestApp(t, &database.MockChatRepository{})

	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := Identity(r.Context())
		assert.True(t, ok, "expected identity in context")
		assert.Equal(t, "alice", identity, "expected authenticated identity")
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSigningKey, jwt.MapClaims{
			"sub": "alice",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		r := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusOK, rr.Code, "expected handler to run")
		assert.NotEmpty(t, rr.Header().Get("Cache-Control"), "expected cache control header")
	})

	t.Run("no credential", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/chats", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401")
	})

	t.Run("invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401")
	})
}

func TestErrorHandler(t *testing.T) {
	s := newTestApp(t, &database.MockChatRepository{})

	t.Run("recovers from panic", func(t *testing.T) {
		handler := s.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(errors.New("boom"))
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected 500")
		assert.Equal(t, "close", rr.Header().Get("Connection"), "expected connection close")
	})

	t.Run("passes through", func(t *testing.T) {
		handler := s.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rr.Code, "expected handler status")
	})
}

func TestFromError(t *testing.T) {
	tt := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", types.NewNotFound("room not found"), http.StatusNotFound},
		{"unauthorized", types.NewUnauthorized("nope"), http.StatusUnauthorized},
		{"conflict", types.NewConflict("already exists"), http.StatusConflict},
		{"invalid argument", types.NewInvalidArgument("bad input"), http.StatusBadRequest},
		{"internal", types.NewInternal(errors.New("db down")), http.StatusInternalServerError},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FromError(tc.err).StatusCode, "expected status code")
		})
	}
}
