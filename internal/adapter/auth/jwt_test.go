package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/food-order-service/internal/domain"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier([]byte("secret"), "authenticated")
	want := domain.Identity{SubjectID: uuid.New(), Email: "a@example.com", IsAnonymous: false}

	tok, err := v.Sign(want, time.Hour)
	require.NoError(t, err)
	got, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier([]byte("secret"), "authenticated")
	id := domain.Identity{SubjectID: uuid.New()}

	expired, err := v.Sign(id, -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewVerifier([]byte("other"), "authenticated").Sign(id, time.Hour)
	require.NoError(t, err)
	otherAud, err := NewVerifier([]byte("secret"), "service_role").Sign(id, time.Hour)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":   expired,
		"wrong key": otherKey,
		"audience":  otherAud,
		"garbage":   "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier([]byte("secret"), "authenticated")
	id := domain.Identity{SubjectID: uuid.New(), Phone: "+1"}
	tok, err := v.Sign(id, time.Hour)
	require.NoError(t, err)

	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		require.Equal(t, id, got)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + tok, http.StatusNoContent, ""},
		{"missing", "", http.StatusForbidden, `{"detail":"invalid authorization code"}`},
		{"scheme", "Basic " + tok, http.StatusForbidden, `{"detail":"invalid authentication scheme"}`},
		{"bad token", "Bearer nope", http.StatusForbidden, `{"detail":"invalid token or expired token"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, tt.status, rr.Code)
			if tt.body != "" {
				require.JSONEq(t, tt.body, rr.Body.String())
			}
		})
	}
}
