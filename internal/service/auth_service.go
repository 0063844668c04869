package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"claimease/internal/config"
	"claimease/internal/domain"
)

// tokenAudience is the audience every API service token carries.
const tokenAudience = "claimease-api"

// Claims represents the JWT claims of a service token. Subject names the
// calling client.
type Claims struct {
	jwt.RegisteredClaims
}

// ServiceToken is a signed bearer token and its expiry.
type ServiceToken struct {
	Token     string    `json:"token"`
	Client    string    `json:"client"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService mints and validates API service tokens.
type AuthService interface {
	IssueToken(client string, ttl time.Duration) (*ServiceToken, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type authService struct {
	cfg config.AuthConfig
	now func() time.Time
}

// NewAuthService creates an AuthService signing with cfg.Secret (HS256).
func NewAuthService(cfg config.AuthConfig) AuthService {
	return &authService{cfg: cfg, now: time.Now}
}

// IssueToken signs a token for client. A zero ttl uses the configured expiry.
func (s *authService) IssueToken(client string, ttl time.Duration) (*ServiceToken, error) {
	client = strings.TrimSpace(client)
	if client == "" {
		return nil, domain.NewValidationError("client", "must not be empty")
	}
	if s.cfg.Secret == "" {
		return nil, fmt.Errorf("issuing token: auth secret is not configured")
	}
	if ttl <= 0 {
		ttl = s.cfg.TokenExpiry
	}

	now := s.now()
	expiry := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   client,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Audience:  jwt.ClaimStrings{tokenAudience},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &ServiceToken{Token: signed, Client: client, ExpiresAt: expiry}, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing token: %v", domain.ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
