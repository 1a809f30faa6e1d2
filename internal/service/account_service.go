package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
)

var errInvalidCredentials = &domain.Error{Kind: domain.KindUnauthorized, Message: "invalid email or password"}

type AccountService struct {
	repo   AccountRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenManager
	logger *zap.Logger
	now    func() time.Time
}

func NewAccountService(repo AccountRepository, hasher *auth.PasswordHasher, tokens *auth.TokenManager, logger *zap.Logger) *AccountService {
	return &AccountService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

func (s *AccountService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Account, error) {
	email := domain.NormalizeEmail(req.Email)
	phone := domain.NormalizePhone(req.Phone)

	switch {
	case strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "":
		return nil, domain.Validationf("first and last name are required")
	case !strings.Contains(email, "@"):
		return nil, domain.Validationf("a valid email is required")
	case len(req.Password) < 6:
		return nil, domain.Validationf("password must be at least 6 characters")
	case len(req.Password) > auth.MaxPasswordBytes:
		return nil, domain.Validationf("password must be at most %d bytes", auth.MaxPasswordBytes)
	case phone == "":
		return nil, domain.Validationf("phone is required")
	case req.Age != nil && *req.Age < 0:
		return nil, domain.Validationf("age must not be negative")
	}

	if _, err := s.repo.GetAccountByEmail(ctx, email); err == nil {
		s.logger.Warn("Email already registered", zap.String("email", email))
		return nil, domain.Conflictf("email already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Phone:        phone,
		Age:          req.Age,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("User created successfully", zap.String("user_id", account.ID))

	out := account.Public()
	return &out, nil
}

// Authenticate checks credentials and issues a session token. Unknown email
// and wrong password produce the same error.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	email = domain.NormalizeEmail(email)

	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.CompareMissing(password)
			s.logger.Warn("Login failed", zap.String("email", email), zap.String("reason", "unknown email"))
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Compare(account.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("Login failed", zap.String("email", email), zap.String("reason", "password mismatch"))
		return nil, errInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", account.ID))
	return &domain.LoginResponse{User: account.Public(), Token: token}, nil
}

func (s *AccountService) Logout(ctx context.Context, id *auth.Identity) error {
	if err := s.tokens.Revoke(ctx, id); err != nil {
		return err
	}
	s.logger.Info("User logged out", zap.String("user_id", id.ID))
	return nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	out := account.Public()
	return &out, nil
}

func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i] = accounts[i].Public()
	}
	return accounts, nil
}

// Update applies a profile edit. Only the account holder may edit it.
func (s *AccountService) Update(ctx context.Context, callerID, id string, patch domain.AccountPatch) (*domain.Account, error) {
	if callerID != id {
		return nil, domain.Forbiddenf("you can only update your own profile")
	}

	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		if strings.TrimSpace(*patch.FirstName) == "" {
			return nil, domain.Validationf("first name must not be empty")
		}
		account.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		if strings.TrimSpace(*patch.LastName) == "" {
			return nil, domain.Validationf("last name must not be empty")
		}
		account.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Email != nil {
		email := domain.NormalizeEmail(*patch.Email)
		if !strings.Contains(email, "@") {
			return nil, domain.Validationf("a valid email is required")
		}
		account.Email = email
	}
	if patch.Phone != nil {
		phone := domain.NormalizePhone(*patch.Phone)
		if phone == "" {
			return nil, domain.Validationf("phone must not be empty")
		}
		account.Phone = phone
	}
	if patch.Age != nil {
		if *patch.Age < 0 {
			return nil, domain.Validationf("age must not be negative")
		}
		age := *patch.Age
		account.Age = &age
	}
	if patch.Password != nil {
		if len(*patch.Password) < 6 {
			return nil, domain.Validationf("password must be at least 6 characters")
		}
		if len(*patch.Password) > auth.MaxPasswordBytes {
			return nil, domain.Validationf("password must be at most %d bytes", auth.MaxPasswordBytes)
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}
	account.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("User updated", zap.String("user_id", id))
	out := account.Public()
	return &out, nil
}

func (s *AccountService) Delete(ctx context.Context, callerID, id string) error {
	if callerID != id {
		return domain.Forbiddenf("you can only delete your own account")
	}
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.String("user_id", id))
	return nil
}
