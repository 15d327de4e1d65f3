package transporthttp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ttracx/vibeanalytics/internal/domain"
	spg "github.com/ttracx/vibeanalytics/internal/storage/postgres"
)

// Claims are issued by the identity provider. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Caller is the authenticated principal. Membership is nil for a user that
// belongs to no team.
type Caller struct {
	UserID     string
	Email      string
	Name       string
	Membership *domain.Membership
}

type ctxKey string

var callerCtxKey ctxKey = "caller"

func CallerFromContext(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerCtxKey).(*Caller)
	return c, ok
}

// Authenticate resolves X-API-Key or an HS256 bearer token into a Caller.
// Requests with neither, or with credentials that do not verify, get 401.
func (d *ServerDeps) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := d.resolveCaller(r)
		if err != nil {
			if errors.Is(err, errUnauthorized) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			writeInternal(w, r, "Failed to authenticate", err)
			return
		}
		ctx := context.WithValue(r.Context(), callerCtxKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errUnauthorized = errors.New("unauthorized")

func (d *ServerDeps) resolveCaller(r *http.Request) (*Caller, error) {
	ctx := r.Context()

	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		team, err := d.Store.TeamByAPIKey(ctx, key)
		if errors.Is(err, spg.ErrNotFound) {
			return nil, errUnauthorized
		}
		if err != nil {
			return nil, err
		}
		return &Caller{Membership: &domain.Membership{Role: domain.RoleAPI, Team: team}}, nil
	}

	raw, ok := bearerToken(r)
	if !ok || d.Cfg.JWTSecret == "" {
		return nil, errUnauthorized
	}
	claims, err := parseToken(raw, []byte(d.Cfg.JWTSecret))
	if err != nil {
		log.WithError(err).Debug("Rejected bearer token.")
		return nil, errUnauthorized
	}

	c := &Caller{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}
	m, err := d.Store.MembershipForUser(ctx, claims.Subject)
	switch {
	case errors.Is(err, spg.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		c.Membership = &m
	}
	return c, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
