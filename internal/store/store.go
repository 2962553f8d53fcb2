package store

import (
	"context"
	"time"

	"github.com/medsage/medsage-server/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (e.g., mongostore).
type Store interface {
	Users() Users
	Sessions() Sessions
}

// SessionUpdate carries one consultation turn to append atomically.
// Messages are appended in order; Stage replaces the current stage.
// SpecialistInfo and Summary overwrite only when non-nil (sticky fields).
type SessionUpdate struct {
	Messages       []model.Message
	Stage          string
	SpecialistInfo *model.SpecialistInfo
	Summary        *model.SummaryDraft
}

type Users interface {
	// Create inserts a new user. Duplicate username or email yields
	// model.ErrConflict.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)

	// UpdateProfile replaces the user's username and profile subdocument.
	// A username taken by another user yields model.ErrConflict.
	UpdateProfile(ctx context.Context, userID, username string, p model.Profile) (*model.User, error)

	// RecordLogin sets lastLogin and appends a refresh token.
	RecordLogin(ctx context.Context, userID, refreshToken string, at time.Time) error

	// RemoveRefreshToken invalidates only the presented refresh token.
	RemoveRefreshToken(ctx context.Context, userID, refreshToken string) error

	// AppendConversation appends a promoted conversation to the user's
	// permanent history. A conversationId already present on the user
	// yields model.ErrConflict; promotion never overwrites.
	AppendConversation(ctx context.Context, userID string, conv *model.MedicalConversation) error
}

type Sessions interface {
	Create(ctx context.Context, s *model.TempConversation) (*model.TempConversation, error)

	// GetActive returns the session matching (sessionId, userId, isActive)
	// whose expiresAt has not passed. Missing, ended and TTL-expired
	// sessions are indistinguishable: all yield model.ErrNotFound.
	GetActive(ctx context.Context, userID, sessionID string) (*model.TempConversation, error)

	// AppendTurn conditionally appends a turn, keyed on the expected
	// version counter. An active session whose version moved yields
	// model.ErrOptimisticConflict; no active session yields
	// model.ErrNotFound. Returns the updated session.
	AppendTurn(ctx context.Context, userID, sessionID string, expectedVersion int64, upd SessionUpdate) (*model.TempConversation, error)

	// Deactivate marks the active session inactive. model.ErrNotFound if
	// no active session matches.
	Deactivate(ctx context.Context, userID, sessionID string) error
}
