package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Claims are the access token claims issued by the identity provider
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

type UserMetadata struct {
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`
}

// Verifier resolves access tokens into users and records their profiles
type Verifier struct {
	secret   []byte
	audience string
	profiles outbound.ProfileRepository
	logger   zerolog.Logger
}

type VerifierParams struct {
	Secret   string
	Audience string
	Profiles outbound.ProfileRepository
	Logger   zerolog.Logger
}

func NewVerifier(params VerifierParams) *Verifier {
	return &Verifier{
		secret:   []byte(params.Secret),
		audience: params.Audience,
		profiles: params.Profiles,
		logger:   params.Logger.With().Str("component", "identity").Logger(),
	}
}

// Authenticate verifies tokenString and returns the user it names
func (v *Verifier) Authenticate(ctx context.Context, tokenString string) (*shared.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, shared.ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: subject is not a user id", shared.ErrUnauthenticated)
	}

	user := &shared.User{ID: userID, DisplayName: claims.UserMetadata.DisplayName}
	v.recordProfile(ctx, user, claims)
	return user, nil
}

// profile upserts are best effort; a failure never blocks the request
func (v *Verifier) recordProfile(ctx context.Context, user *shared.User, claims *Claims) {
	if v.profiles == nil {
		return
	}
	profile := &shared.Profile{
		ID:          user.ID,
		Username:    claims.UserMetadata.Username,
		DisplayName: claims.UserMetadata.DisplayName,
	}
	if err := v.profiles.Upsert(ctx, profile); err != nil {
		v.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to record profile")
	}
}

// Middleware attaches the verified user to the request context.
// Requests without a token pass through anonymously; a bad token is rejected with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := v.Authenticate(r.Context(), tokenString)
		if err != nil {
			v.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected access token")
			writeUnauthorized(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithUser(r.Context(), user)))
	})
}

// TokenFromRequest reads a bearer token, falling back to the access_token query parameter used by WebSocket clients
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	message := shared.ErrUnauthenticated.Error()
	if errors.Is(err, jwt.ErrTokenExpired) {
		message = "access token has expired"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
