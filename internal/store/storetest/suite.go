package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Unique test identifiers
	userID := "u-" + uuid.New().String()
	username := "user-" + uuid.New().String()[:8]
	email := userID + "@example.test"

	// Users
	u := &model.User{
		ID:           userID,
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$fakefakefakefakefakefake",
		Role:         model.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got, err := s.Users().GetByID(ctx, userID); err != nil || got == nil || got.Email != email {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got, err := s.Users().GetByEmail(ctx, email); err != nil || got == nil || got.ID != userID {
		t.Fatalf("GetByEmail: got=%v err=%v", got, err)
	}
	if got, err := s.Users().GetByUsername(ctx, username); err != nil || got == nil || got.ID != userID {
		t.Fatalf("GetByUsername: got=%v err=%v", got, err)
	}
	if _, err := s.Users().GetByEmail(ctx, "ghost@example.test"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByEmail missing: err=%v", err)
	}

	// Duplicate email or username conflicts
	dup := *u
	dup.ID = "u-" + uuid.New().String()
	if _, err := s.Users().Create(ctx, &dup); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("Create duplicate: err=%v", err)
	}

	// Login bookkeeping
	if err := s.Users().RecordLogin(ctx, userID, "refresh-1", now); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if err := s.Users().RecordLogin(ctx, userID, "refresh-2", now.Add(time.Minute)); err != nil {
		t.Fatalf("RecordLogin second: %v", err)
	}
	if got, _ := s.Users().GetByID(ctx, userID); len(got.RefreshTokens) != 2 || got.LastLogin == nil {
		t.Fatalf("RecordLogin state: %+v", got)
	}
	if err := s.Users().RemoveRefreshToken(ctx, userID, "refresh-1"); err != nil {
		t.Fatalf("RemoveRefreshToken: %v", err)
	}
	if got, _ := s.Users().GetByID(ctx, userID); len(got.RefreshTokens) != 1 || got.RefreshTokens[0] != "refresh-2" {
		t.Fatalf("RemoveRefreshToken state: %+v", got.RefreshTokens)
	}

	// Profile update
	updated, err := s.Users().UpdateProfile(ctx, userID, username, model.Profile{FirstName: "Ada", Gender: "female"})
	if err != nil || updated.Profile.FirstName != "Ada" {
		t.Fatalf("UpdateProfile: got=%+v err=%v", updated, err)
	}

	// Sessions
	sessionID := uuid.New().String()
	temp := &model.TempConversation{
		SessionID:    sessionID,
		UserID:       userID,
		BotSessionID: "bot-" + sessionID,
		Title:        "Consultation - test",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hello", Timestamp: now},
		},
		CurrentStage: model.StageHistoryTaking,
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
	if _, err := s.Sessions().Create(ctx, temp); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	got, err := s.Sessions().GetActive(ctx, userID, sessionID)
	if err != nil || got.BotSessionID != "bot-"+sessionID {
		t.Fatalf("GetActive: got=%+v err=%v", got, err)
	}
	if _, err := s.Sessions().GetActive(ctx, "other-user", sessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetActive wrong user: err=%v", err)
	}

	// Version-keyed append
	upd := store.SessionUpdate{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "more", Timestamp: now},
			{Role: model.RoleDoctor, Content: "noted", Timestamp: now},
		},
		Stage: model.StageHistoryTaking,
	}
	after, err := s.Sessions().AppendTurn(ctx, userID, sessionID, got.Version, upd)
	if err != nil || len(after.Messages) != 3 || after.Version != got.Version+1 {
		t.Fatalf("AppendTurn: got=%+v err=%v", after, err)
	}
	if _, err := s.Sessions().AppendTurn(ctx, userID, sessionID, got.Version, upd); !errors.Is(err, model.ErrOptimisticConflict) {
		t.Fatalf("AppendTurn stale version: err=%v", err)
	}

	// Sticky fields survive turns that do not set them
	withInfo := store.SessionUpdate{
		Stage:          model.StageSpecialistConsultation,
		Messages:       []model.Message{{Role: model.RoleSpecialist, Content: "assessment", Timestamp: now}},
		SpecialistInfo: &model.SpecialistInfo{Name: "Dr. Wilson", Specialty: "Cardiology", ClinicalSummary: "summary"},
	}
	after, err = s.Sessions().AppendTurn(ctx, userID, sessionID, after.Version, withInfo)
	if err != nil || after.SpecialistInfo == nil {
		t.Fatalf("AppendTurn specialist info: got=%+v err=%v", after, err)
	}
	after, err = s.Sessions().AppendTurn(ctx, userID, sessionID, after.Version, store.SessionUpdate{
		Stage:    model.StageSpecialistConsultation,
		Messages: []model.Message{{Role: model.RoleUser, Content: "thanks", Timestamp: now}},
	})
	if err != nil || after.SpecialistInfo == nil || after.SpecialistInfo.Name != "Dr. Wilson" {
		t.Fatalf("AppendTurn sticky info lost: got=%+v err=%v", after, err)
	}

	// History promotion, one-way
	completed := now.Add(time.Minute)
	conv := &model.MedicalConversation{
		ConversationID: sessionID,
		Title:          after.Title,
		Messages:       after.Messages,
		Status:         model.StatusCompleted,
		StartedAt:      now,
		CompletedAt:    &completed,
		Tags:           []string{"Cardiology"},
	}
	if err := s.Users().AppendConversation(ctx, userID, conv); err != nil {
		t.Fatalf("AppendConversation: %v", err)
	}
	if err := s.Users().AppendConversation(ctx, userID, conv); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("AppendConversation duplicate: err=%v", err)
	}
	if got, _ := s.Users().GetByID(ctx, userID); len(got.Conversations) != 1 {
		t.Fatalf("AppendConversation state: %d conversations", len(got.Conversations))
	}

	// Deactivation ends the session's visibility
	if err := s.Sessions().Deactivate(ctx, userID, sessionID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := s.Sessions().GetActive(ctx, userID, sessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetActive after deactivate: err=%v", err)
	}
	if err := s.Sessions().Deactivate(ctx, userID, sessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Deactivate twice: err=%v", err)
	}

	// Expired sessions are unreachable even before TTL deletion
	expiredID := uuid.New().String()
	expired := *temp
	expired.SessionID = expiredID
	expired.ExpiresAt = now.Add(-time.Minute)
	if _, err := s.Sessions().Create(ctx, &expired); err != nil {
		t.Fatalf("Create expired session: %v", err)
	}
	if _, err := s.Sessions().GetActive(ctx, userID, expiredID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetActive expired: err=%v", err)
	}
}
