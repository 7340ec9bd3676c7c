package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	orderrepo "storefront/internal/repository/order"
	tokenrepo "storefront/internal/repository/token"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Credentials is the single configured operator account.
type Credentials struct {
	Email        string
	PasswordHash string
}

func (c Credentials) configured() bool {
	return c.Email != "" && c.PasswordHash != ""
}

type orderLister interface {
	List(ctx context.Context, filter orderrepo.ListFilter) ([]domain.Order, error)
}

type Service struct {
	creds     Credentials
	orders    orderLister
	tokens    *tokenManager
	accessTTL time.Duration
	log       *zap.Logger
}

func New(creds Credentials, orders orderLister, tokens tokenrepo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	return &Service{
		creds:     creds,
		orders:    orders,
		tokens:    newTokenManager(tokens),
		accessTTL: 24 * time.Hour,
		log:       logger.Named("admin"),
	}
}

// Login checks the operator password and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	if !s.creds.configured() {
		return "", time.Time{}, ErrInvalidCredentials
	}
	email = strings.ToLower(strings.TrimSpace(email))
	pwErr := bcrypt.CompareHashAndPassword([]byte(s.creds.PasswordHash), []byte(password))
	if email != s.creds.Email || pwErr != nil {
		s.log.Warn("admin login rejected", zap.String("email", email), zap.Bool("audit", true))
		return "", time.Time{}, ErrInvalidCredentials
	}
	if n, err := s.tokens.Prune(ctx); err != nil {
		s.log.Warn("prune expired admin tokens", zap.Error(err))
	} else if n > 0 {
		s.log.Debug("pruned expired admin tokens", zap.Int64("count", n))
	}
	return s.tokens.Issue(ctx, s.creds.Email, s.accessTTL)
}

// Authenticate returns the subject bound to a live token.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	subject, ok := s.tokens.Validate(ctx, token)
	if !ok || subject != s.creds.Email {
		return "", ErrInvalidToken
	}
	return subject, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// ListOrders returns orders newest first.
func (s *Service) ListOrders(ctx context.Context, filter orderrepo.ListFilter) ([]domain.Order, error) {
	return s.orders.List(ctx, filter)
}

// AccessTTLSeconds exposes the token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}
