package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/planix/backend/internal/domain"
	"github.com/planix/backend/internal/quota"
	"github.com/planix/backend/internal/repository"
)

// TokenTTL is the lifetime of issued session tokens.
const TokenTTL = 7 * 24 * time.Hour

const maxCodeAttempts = 5

// AuthService handles registration, login, JWT and account administration.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	accounts      repository.AccountRepository
	referrals     *ReferralService
	ledger        *quota.Ledger
	validate      *validator.Validate
	logger        *slog.Logger
	now           Clock
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	jwtSecret, adminEmail, adminPassword string,
	accounts repository.AccountRepository,
	referrals *ReferralService,
	ledger *quota.Ledger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    normalizeEmail(adminEmail),
		adminPassword: adminPassword,
		accounts:      accounts,
		referrals:     referrals,
		ledger:        ledger,
		validate:      newValidator(),
		logger:        logger,
		now:           ledger.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SeedAdmin creates the admin account if it doesn't exist. It is skipped
// when no admin password is configured.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	if s.adminEmail == "" || s.adminPassword == "" {
		s.logger.Info("admin seed skipped, no credentials configured")
		return nil
	}
	existing, err := s.accounts.FindAccountByEmail(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if existing != nil {
		s.logger.Info("admin account already exists", "email", s.adminEmail)
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin := domain.NewAccount(s.adminEmail, "Administrator", s.now())
	admin.PasswordHash = string(hash)
	admin.Role = domain.RoleAdmin
	if err := s.createWithCode(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	s.logger.Info("admin account created", "email", s.adminEmail)
	return nil
}

// Register creates an account, applies an optional referral code and
// returns a session token. A bad referral code never fails registration.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	existing, err := s.accounts.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check email", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("email already registered")
	}

	account := domain.NewAccount(req.Email, req.Name, s.now())
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, domain.ErrInternal("failed to hash password", err)
		}
		account.PasswordHash = string(hash)
	}

	if err := s.createWithCode(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrConflict("email already registered")
		}
		return nil, domain.ErrInternal("failed to create account", err)
	}
	s.logger.Info("account registered", "account_id", account.ID)

	var outcome *domain.ReferralOutcome
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		outcome = &domain.ReferralOutcome{}
		if _, err := s.referrals.Apply(ctx, account.ID, code); err != nil {
			outcome.Error = err.Error()
			if appErr, ok := domain.AsAppError(err); ok {
				outcome.Error = appErr.Message
			}
			s.logger.Info("referral at registration not applied", "account_id", account.ID, "error", outcome.Error)
		} else {
			outcome.Applied = true
		}
	}

	resp, err := s.authResponse(account)
	if err != nil {
		return nil, err
	}
	resp.Referral = outcome
	return resp, nil
}

// createWithCode inserts account with a fresh referral code, retrying when
// the code collides. An email collision is returned as ErrDuplicate.
func (s *AuthService) createWithCode(ctx context.Context, account *domain.Account) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		account.ReferralCode = NewReferralCode(account.ID)
		err := s.accounts.CreateAccount(ctx, account)
		if !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		taken, ferr := s.accounts.FindAccountByEmail(ctx, account.Email)
		if ferr != nil {
			return ferr
		}
		if taken != nil {
			return err
		}
	}
	return fmt.Errorf("could not allocate a unique referral code after %d attempts", maxCodeAttempts)
}

// Login validates credentials and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(formatValidationErrors(err))
	}

	account, err := s.accounts.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil || account.PasswordHash == "" {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	return s.authResponse(account)
}

func (s *AuthService) authResponse(a *domain.Account) (*domain.AuthResponse, error) {
	token, err := s.IssueToken(a)
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}
	resp := a.ToResponse()
	usage := s.ledger.Usage(a)
	resp.Usage = &usage
	return &domain.AuthResponse{Token: token, Account: resp}, nil
}

// IssueToken signs an HS256 session token for a.
func (s *AuthService) IssueToken(a *domain.Account) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   a.ID,
		"email": a.Email,
		"role":  a.Role,
		"exp":   now.Add(TokenTTL).Unix(),
		"iat":   now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtSecret))
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}
	sub := getClaimString(claims, "sub")
	if sub == "" {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:   sub,
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// Me returns the account summary with current usage (for /api/auth/me).
func (s *AuthService) Me(ctx context.Context, id string) (*domain.AccountResponse, error) {
	account, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound("account not found")
	}
	resp := account.ToResponse()
	usage := s.ledger.Usage(account)
	resp.Usage = &usage
	return resp, nil
}

// ListAccounts returns a page of accounts, newest first (admin only).
func (s *AuthService) ListAccounts(ctx context.Context, page, limit int) (domain.Page[*domain.AccountResponse], error) {
	page, limit = domain.ClampPage(page, limit)
	accounts, total, err := s.accounts.ListAccounts(ctx, limit, (page-1)*limit)
	if err != nil {
		return domain.Page[*domain.AccountResponse]{}, domain.ErrInternal("failed to list accounts", err)
	}

	out := make([]*domain.AccountResponse, len(accounts))
	for i, a := range accounts {
		out[i] = a.ToResponse()
		usage := s.ledger.Usage(a)
		out[i].Usage = &usage
	}
	return domain.NewPage(out, page, limit, total), nil
}

// DeleteAccount removes an account by ID (admin only).
func (s *AuthService) DeleteAccount(ctx context.Context, id string) error {
	account, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return domain.ErrNotFound("account not found")
	}
	if account.Role == domain.RoleAdmin {
		return domain.ErrBadRequest("cannot delete admin account")
	}
	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		return domain.ErrInternal("failed to delete account", err)
	}
	return nil
}

// ResetUsage zeroes an account's counters (admin only).
func (s *AuthService) ResetUsage(ctx context.Context, id string) (*domain.AccountResponse, error) {
	if err := s.ledger.ResetAll(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound("account not found")
		}
		return nil, domain.ErrInternal("failed to reset usage", err)
	}
	return s.Me(ctx, id)
}
