package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestUserSerializationHidesCredentials(t *testing.T) {
	u := User{
		ID:            "u1",
		Username:      "patient1",
		Email:         "p1@example.com",
		PasswordHash:  "$2a$12$secret-hash",
		RefreshTokens: []string{"refresh-token-1"},
		Role:          UserRoleUser,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}

	raw, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "secret-hash") || strings.Contains(body, "passwordHash") {
		t.Fatalf("password hash leaked: %s", body)
	}
	if strings.Contains(body, "refresh-token-1") || strings.Contains(body, "refreshTokens") {
		t.Fatalf("refresh tokens leaked: %s", body)
	}
	if !strings.Contains(body, `"username":"patient1"`) {
		t.Fatalf("expected username in output: %s", body)
	}
}

func TestTempConversationSerializationHidesInternals(t *testing.T) {
	tc := TempConversation{
		SessionID:    "s1",
		UserID:       "u1",
		BotSessionID: "bot-internal-id",
		CurrentStage: StageHistoryTaking,
		Version:      3,
		IsActive:     true,
	}

	raw, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	if strings.Contains(body, "bot-internal-id") || strings.Contains(body, "botSessionId") {
		t.Fatalf("bot session id leaked: %s", body)
	}
	if strings.Contains(body, "version") {
		t.Fatalf("version counter leaked: %s", body)
	}
}

func TestValidStage(t *testing.T) {
	for _, s := range []string{
		StageHistoryTaking,
		StageSpecialistHandoff,
		StageSpecialistConsultation,
		StageConsultationComplete,
	} {
		if !ValidStage(s) {
			t.Fatalf("stage %q should be valid", s)
		}
	}
	for _, s := range []string{"", "triage", "HISTORY_TAKING"} {
		if ValidStage(s) {
			t.Fatalf("stage %q should be invalid", s)
		}
	}
}
