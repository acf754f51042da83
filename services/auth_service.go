package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

const minPasswordLength = 8

type RegisterRefereeInput struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	GuildID    int64  `json:"guild_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`

	CanAnnulMatches    bool `json:"can_annul_matches"`
	CanModifyResults   bool `json:"can_modify_results"`
	CanResolveDisputes bool `json:"can_resolve_disputes"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthService interface {
	// RegisterReferee создаёт учётную запись судьи; вызывается только
	// администратором.
	RegisterReferee(ctx context.Context, input RegisterRefereeInput) (*models.Referee, error)
	Login(ctx context.Context, input LoginInput) (*models.Referee, error)
}

type authService struct {
	refereeRepo repositories.RefereeRepository
	logger      *slog.Logger
}

func NewAuthService(refereeRepo repositories.RefereeRepository, logger *slog.Logger) AuthService {
	return &authService{refereeRepo: refereeRepo, logger: logger}
}

func (s *authService) RegisterReferee(ctx context.Context, input RegisterRefereeInput) (*models.Referee, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	role := input.Role
	if role == "" {
		role = models.RoleReferee
	}
	if role != models.RoleReferee && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	referee := &models.Referee{
		ExternalID:         input.ExternalID,
		Username:           input.Username,
		GuildID:            input.GuildID,
		Email:              input.Email,
		PasswordHash:       string(hashed),
		Role:               role,
		IsActive:           true,
		CanAnnulMatches:    input.CanAnnulMatches,
		CanModifyResults:   input.CanModifyResults,
		CanResolveDisputes: input.CanResolveDisputes,
	}
	if err := s.refereeRepo.Create(ctx, referee); err != nil {
		if errors.Is(err, repositories.ErrRefereeEmailConflict) {
			return nil, ErrRefereeEmailTaken
		}
		return nil, fmt.Errorf("ошибка создания судьи: %w", err)
	}

	s.logger.Info("referee registered",
		slog.Int("referee_id", referee.ID),
		slog.String("role", referee.Role),
		slog.Int64("guild_id", referee.GuildID))
	referee.PasswordHash = ""
	return referee, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.Referee, error) {
	referee, err := s.refereeRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrRefereeNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find referee by email: %w", err)
	}
	if !referee.IsActive {
		return nil, ErrRefereeInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(referee.PasswordHash), []byte(input.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	referee.PasswordHash = ""
	return referee, nil
}
