// Package auth authenticates bearer tokens issued by the identity provider
// (the hosted auth service that also owns the user records).
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

const (
	RoleAuthenticated = "authenticated"
	RoleServiceRole   = "service_role"
)

// Identity is the verified subject of a token.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	Role     string
	UserType string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type Config struct {
	BaseURL        string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	Timeout        time.Duration
}

// NewVerifier verifies tokens locally when a signing secret is configured and
// asks the identity provider otherwise. The service-role key is always
// accepted as a server-to-server credential.
func NewVerifier(cfg Config) Verifier {
	var inner Verifier
	if cfg.JWTSecret != "" {
		inner = NewJWTVerifier(cfg.JWTSecret)
	} else {
		inner = NewRemoteVerifier(cfg.BaseURL, cfg.AnonKey, &http.Client{Timeout: cfg.Timeout})
	}
	return &serviceRoleVerifier{serviceRoleKey: cfg.ServiceRoleKey, next: inner}
}

type serviceRoleVerifier struct {
	serviceRoleKey string
	next           Verifier
}

func (v *serviceRoleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if v.serviceRoleKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(v.serviceRoleKey)) == 1 {
		return &Identity{Role: RoleServiceRole}, nil
	}
	return v.next.Verify(ctx, token)
}

type baasClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &baasClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return identityFromClaims(claims.Subject, claims.Email, claims.Role, claims.AppMetadata, claims.UserMetadata)
}

// RemoteVerifier asks the identity provider's user endpoint to vouch for a token.
type RemoteVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func NewRemoteVerifier(baseURL, anonKey string, client *http.Client) *RemoteVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

type remoteUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("auth provider returned %d: %s", resp.StatusCode, string(body))
	}

	var user remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth user: %w", err)
	}
	return identityFromClaims(user.ID, user.Email, user.Role, user.AppMetadata, user.UserMetadata)
}

// identityFromClaims prefers an application role (support, admin) over the
// provider's generic role.
func identityFromClaims(subject, email, role string, appMeta, userMeta map[string]interface{}) (*Identity, error) {
	identity := &Identity{Email: email, Role: role}
	if identity.Role == "" {
		identity.Role = RoleAuthenticated
	}
	if appRole, ok := appMeta["role"].(string); ok && appRole != "" {
		identity.Role = appRole
	}
	if userType, ok := userMeta["user_type"].(string); ok {
		identity.UserType = userType
	}

	if identity.Role == RoleServiceRole && subject == "" {
		return identity, nil
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	identity.UserID = userID
	return identity, nil
}
