package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/jwolfsohn/Atlas-Sentinel/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleOperator = "operator"
	tokenIssuer  = "atlas-sentinel"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOperatorDisabled   = errors.New("operator login is not configured")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService issues and checks operator tokens. There is one operator account and it
// lives in configuration as a bcrypt hash.
type AuthService struct {
	jwtSecret    []byte
	expiry       time.Duration
	operatorUser string
	operatorHash string
	parser       *jwt.Parser
}

func NewAuthService(cfg config.JWTConfig) *AuthService {
	return &AuthService{
		jwtSecret:    []byte(cfg.Secret),
		expiry:       time.Duration(cfg.ExpiryHours) * time.Hour,
		operatorUser: cfg.OperatorUser,
		operatorHash: cfg.OperatorPasswordHash,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Authenticate checks operator credentials and issues a token for them.
// Without a configured password hash every login is refused.
func (s *AuthService) Authenticate(username, password string) (string, error) {
	if s.operatorHash == "" {
		return "", ErrOperatorDisabled
	}
	if username != s.operatorUser || !CheckPassword(s.operatorHash, password) {
		return "", ErrInvalidCredentials
	}
	return s.GenerateToken(username, RoleOperator)
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsOperator() bool { return c.Role == RoleOperator }

func (s *AuthService) GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ValidateToken parses tokenStr and wraps every failure in ErrInvalidToken.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
