package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"heelbid-auction-service/internal/adapters/memory"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound/mock"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func newTestVerifier(audience string) *Verifier {
	return NewVerifier(VerifierParams{Secret: testSecret, Audience: audience, Logger: zerolog.Nop()})
}

// sign mints a token the way the identity provider does
func sign(t *testing.T, secret, audience string, user *shared.User, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserMetadata: UserMetadata{DisplayName: user.DisplayName},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifier_Authenticate(t *testing.T) {
	user := &shared.User{ID: uuid.New(), DisplayName: "Dana"}
	valid := sign(t, testSecret, "authenticated", user, time.Hour)
	expired := sign(t, testSecret, "authenticated", user, -time.Minute)
	forged := sign(t, "another-secret", "authenticated", user, time.Hour)
	noAudience := sign(t, testSecret, "", user, time.Hour)
	nilSubject := sign(t, testSecret, "authenticated", &shared.User{ID: uuid.Nil}, time.Hour)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: user.ID.String()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		wantErr   bool
		wantCause error
	}{
		{name: "valid", token: valid},
		{name: "expired", token: expired, wantErr: true, wantCause: jwt.ErrTokenExpired},
		{name: "wrong_secret", token: forged, wantErr: true, wantCause: jwt.ErrTokenSignatureInvalid},
		{name: "wrong_audience", token: noAudience, wantErr: true},
		{name: "nil_subject", token: nilSubject, wantErr: true},
		{name: "garbage", token: "not.a.jwt", wantErr: true},
		{name: "unsigned", token: none, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestVerifier("authenticated").Authenticate(context.Background(), tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, shared.ErrUnauthenticated)
				if tt.wantCause != nil {
					require.ErrorIs(t, err, tt.wantCause)
				}
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, user.ID, got.ID)
			require.Equal(t, "Dana", got.DisplayName)
		})
	}
}

func TestVerifier_RecordsProfile(t *testing.T) {
	store := memory.NewStore()
	verifier := NewVerifier(VerifierParams{Secret: testSecret, Profiles: store.Profiles(), Logger: zerolog.Nop()})
	user := &shared.User{ID: uuid.New(), DisplayName: "Dana"}

	token := sign(t, testSecret, "", user, time.Hour)

	_, err := verifier.Authenticate(context.Background(), token)
	require.NoError(t, err)

	profile, err := store.Profiles().GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "Dana", profile.DisplayName)
}

func TestVerifier_ProfileFailureDoesNotReject(t *testing.T) {
	ctrl := gomock.NewController(t)
	profiles := mock.NewMockProfileRepository(ctrl)
	profiles.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("database unavailable"))

	verifier := NewVerifier(VerifierParams{Secret: testSecret, Profiles: profiles, Logger: zerolog.Nop()})
	user := &shared.User{ID: uuid.New()}
	token := sign(t, testSecret, "", user, time.Hour)

	got, err := verifier.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestVerifier_Middleware(t *testing.T) {
	verifier := newTestVerifier("")
	user := &shared.User{ID: uuid.New(), DisplayName: "Dana"}
	token := sign(t, testSecret, "", user, time.Hour)
	expired := sign(t, testSecret, "", user, -time.Minute)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantUser   bool
		wantBody   string
	}{
		{
			name:       "anonymous_passes_through",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer_header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantUser:   true,
		},
		{
			name: "query_parameter",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("access_token", token)
				r.URL.RawQuery = q.Encode()
			},
			wantStatus: http.StatusOK,
			wantUser:   true,
		},
		{
			name:       "invalid_token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"you must be logged in"}`,
		},
		{
			name:       "expired_token",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) },
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"error":"access token has expired"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawUser bool
			handler := verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, ok := shared.UserFromContext(r.Context())
				if ok {
					sawUser = true
					require.Equal(t, user.ID, got.ID)
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/me/notifications", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, tt.wantUser, sawUser)
			if tt.wantBody != "" {
				require.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?access_token=from-query", nil)
	require.Equal(t, "from-query", TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer from-header")
	require.Equal(t, "from-header", TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	require.Empty(t, TokenFromRequest(req))
}
