package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsage/medsage-server/internal/api/validate"
	"github.com/medsage/medsage-server/internal/auth"
	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/store"
)

// TokenPair is an access/refresh token pair issued on register and login.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// UserService handles registration, authentication and profile operations.
type UserService struct {
	store      store.Store
	tokens     *auth.TokenManager
	bcryptCost int
	now        func() time.Time
}

func NewUserService(s store.Store, tm *auth.TokenManager, bcryptCost int) *UserService {
	return &UserService{store: s, tokens: tm, bcryptCost: bcryptCost, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates a new account and issues a fresh token pair.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*model.User, *TokenPair, error) {
	for _, err := range []error{validate.Username(username), validate.Email(email), validate.Password(password)} {
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", err.Error(), model.ErrValidation)
		}
	}

	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, nil, fmt.Errorf("email already registered: %w", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, nil, err
	}
	if _, err := s.store.Users().GetByUsername(ctx, username); err == nil {
		return nil, nil, fmt.Errorf("username already taken: %w", model.ErrConflict)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.store.Users().Create(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueAndRecord(ctx, created.ID, now)
	if err != nil {
		return nil, nil, err
	}
	created.LastLogin = &now
	return created, pair, nil
}

// Login authenticates by email and password. A missing user, a deactivated
// account and a wrong password are deliberately indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	u, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, model.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, nil, model.ErrInvalidCredentials
	}

	now := s.now()
	pair, err := s.issueAndRecord(ctx, u.ID, now)
	if err != nil {
		return nil, nil, err
	}
	u.LastLogin = &now
	return u, pair, nil
}

func (s *UserService) issueAndRecord(ctx context.Context, userID string, at time.Time) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Users().RecordLogin(ctx, userID, refresh, at); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout invalidates only the presented refresh token; other sessions keep
// their tokens. An absent token body is a no-op success.
func (s *UserService) Logout(ctx context.Context, userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.store.Users().RemoveRefreshToken(ctx, userID, refreshToken); err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().GetByID(ctx, userID)
}

// UpdateProfile changes the username and/or merges profile fields. A nil
// field leaves the current value untouched.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, username *string, profile *model.Profile) (*model.User, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	newUsername := u.Username
	if username != nil && *username != u.Username {
		if err := validate.Username(*username); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), model.ErrValidation)
		}
		newUsername = *username
	}

	merged := u.Profile
	if profile != nil {
		if err := validate.Gender(profile.Gender); err != nil {
			return nil, fmt.Errorf("%s: %w", err.Error(), model.ErrValidation)
		}
		mergeProfile(&merged, profile)
	}

	return s.store.Users().UpdateProfile(ctx, userID, newUsername, merged)
}

// mergeProfile overlays src's populated fields onto dst.
func mergeProfile(dst, src *model.Profile) {
	if src.FirstName != "" {
		dst.FirstName = src.FirstName
	}
	if src.LastName != "" {
		dst.LastName = src.LastName
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
	if src.DateOfBirth != nil {
		dst.DateOfBirth = src.DateOfBirth
	}
	if src.Gender != "" {
		dst.Gender = src.Gender
	}
	if src.MedicalHistory != nil {
		dst.MedicalHistory = src.MedicalHistory
	}
	if src.Allergies != nil {
		dst.Allergies = src.Allergies
	}
	if src.CurrentMedications != nil {
		dst.CurrentMedications = src.CurrentMedications
	}
}
