package service

import (
	"context"
	"errors"
	"strings"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/pkg/utils"
)

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = apperr.Authorization("invalid username or password")

// CreateUserInput carries a new account
type CreateUserInput struct {
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	FullName   string      `json:"full_name"`
	Email      string      `json:"email"`
	Department string      `json:"department"`
	Role       entity.Role `json:"role"`
}

// UserService manages accounts and sign-in
type UserService interface {
	// Authenticate never says which of username or password was wrong.
	Authenticate(ctx context.Context, username, password string) (*entity.User, error)
	Get(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context, actor entity.Actor) ([]*entity.User, error)
	Create(ctx context.Context, actor entity.Actor, in CreateUserInput) (*entity.User, error)
	SetActive(ctx context.Context, actor entity.Actor, id int64, active bool) error
	ResetPassword(ctx context.Context, actor entity.Actor, id int64, password string) error
	// EnsureBootstrapAdmin creates the superadmin account when the username is free.
	EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error)
}

type userServiceImpl struct {
	userRepo port.UserRepository
	hasher   port.PasswordHasher
	now      Clock
	logger   Logger
}

// NewUserService creates a new UserService
func NewUserService(userRepo port.UserRepository, hasher port.PasswordHasher, logger Logger) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		hasher:   hasher,
		now:      systemClock,
		logger:   logger,
	}
}

func (s *userServiceImpl) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.userRepo.GetByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		s.logger.Info("Login rejected", "username", username, "reason", "unknown user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.Active || !s.hasher.Verify(u.PasswordHash, password) {
		s.logger.Info("Login rejected", "username", username, "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.userRepo.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Error("Failed to record last login", "error", err, "user_id", u.ID)
	} else {
		u.LastLogin = &now
	}

	s.logger.Info("User logged in", "user_id", u.ID, "role", u.Role.String())
	return u, nil
}

func (s *userServiceImpl) Get(ctx context.Context, id int64) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userServiceImpl) List(ctx context.Context, actor entity.Actor) ([]*entity.User, error) {
	if err := requireRole(actor, entity.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.List(ctx)
}

func (s *userServiceImpl) Create(ctx context.Context, actor entity.Actor, in CreateUserInput) (*entity.User, error) {
	if err := requireRole(actor, entity.RoleSuperAdmin); err != nil {
		return nil, err
	}

	u, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		s.logger.Error("Failed to create user", "error", err, "username", u.Username)
		return nil, err
	}

	s.logger.Info("User created", "user_id", u.ID, "username", u.Username, "role", u.Role.String(), "by", actor.UserID)
	return u, nil
}

func (s *userServiceImpl) newUser(in CreateUserInput) (*entity.User, error) {
	u := &entity.User{
		Username:   strings.TrimSpace(in.Username),
		FullName:   utils.SanitizeString(in.FullName),
		Email:      strings.TrimSpace(in.Email),
		Department: utils.NormalizeDepartment(in.Department),
		Role:       in.Role,
		Active:     true,
		CreatedAt:  s.now(),
	}

	if u.Username == "" || u.FullName == "" {
		return nil, apperr.Validation("username and full name are required")
	}
	if err := utils.ValidateCode("username", u.Username); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	if !u.Role.IsValid() {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}
	if u.Email != "" {
		if err := utils.ValidateEmail(u.Email); err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
	}
	if u.Department != "" {
		if err := utils.ValidateCode("department", u.Department); err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	u.PasswordHash = hash
	return u, nil
}

func (s *userServiceImpl) SetActive(ctx context.Context, actor entity.Actor, id int64, active bool) error {
	if err := requireRole(actor, entity.RoleSuperAdmin); err != nil {
		return err
	}
	if id == actor.UserID && !active {
		return apperr.Conflict("you cannot deactivate your own account")
	}
	if err := s.userRepo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("User status changed", "user_id", id, "active", active, "by", actor.UserID)
	return nil
}

func (s *userServiceImpl) ResetPassword(ctx context.Context, actor entity.Actor, id int64, password string) error {
	if err := requireRole(actor, entity.RoleSuperAdmin); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	if err := s.userRepo.SetPasswordHash(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info("Password reset", "user_id", id, "by", actor.UserID)
	return nil
}

func (s *userServiceImpl) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}

	u, err := s.newUser(CreateUserInput{
		Username: username,
		Password: password,
		FullName: "System Administrator",
		Role:     entity.RoleSuperAdmin,
	})
	if err != nil {
		return false, err
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("Bootstrap administrator created", "user_id", u.ID, "username", u.Username)
	return true, nil
}
