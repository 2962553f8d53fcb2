package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/medsage/medsage-server/internal/medbot"
	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/store"
)

func newConsultFixture(t *testing.T, bot *fakeBot) (*ConsultationService, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	fs.addUser(&model.User{ID: "u1", Username: "pat", Email: "pat@example.com", IsActive: true})
	svc := NewConsultationService(fs, bot, time.Hour, zerolog.Nop())
	return svc, fs
}

func startTurn() *medbot.Turn {
	return &medbot.Turn{
		SessionID:      "bot-session-1",
		Stage:          model.StageHistoryTaking,
		DoctorResponse: "Can you describe when the pain started?",
		IsQuestion:     true,
		QuestionCount:  1,
		MaxQuestions:   7,
	}
}

func TestStartConsultation(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn()}
	svc, fs := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	require.Equal(t, model.StageHistoryTaking, res.Session.CurrentStage)

	sess, err := fs.Sessions().GetActive(context.Background(), "u1", res.SessionID)
	require.NoError(t, err)
	require.Equal(t, "bot-session-1", sess.BotSessionID)
	require.True(t, sess.IsActive)
	require.Len(t, sess.Messages, 2)
	require.Equal(t, model.RoleUser, sess.Messages[0].Role)
	require.Equal(t, "I have chest pain", sess.Messages[0].Content)
	require.Equal(t, model.RoleDoctor, sess.Messages[1].Role)
	require.Equal(t, "Dr. Sarah Chen", sess.Messages[1].AgentName)
	require.Equal(t, "Primary Care Physician", sess.Messages[1].AgentSpecialty)
	require.Contains(t, sess.Title, "Consultation - ")
	require.True(t, sess.ExpiresAt.After(sess.CreatedAt))
}

func TestStartProxyFailurePersistsNothing(t *testing.T) {
	bot := &fakeBot{startErr: fmt.Errorf("connect refused: %w", model.ErrUpstream)}
	svc, fs := newConsultFixture(t, bot)

	_, err := svc.Start(context.Background(), "u1", "hello")
	require.ErrorIs(t, err, model.ErrUpstream)
	require.Empty(t, fs.sessions)
}

func TestStartEmptyMessage(t *testing.T) {
	svc, _ := newConsultFixture(t, &fakeBot{startTurn: startTurn()})

	_, err := svc.Start(context.Background(), "u1", "  ")
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestContinueUnknownSession(t *testing.T) {
	bot := &fakeBot{sendTurn: startTurn()}
	svc, _ := newConsultFixture(t, bot)

	_, err := svc.Continue(context.Background(), "u1", "no-such-session", "hi")
	require.ErrorIs(t, err, model.ErrNotFound)
	require.Empty(t, bot.sentSessionIDs, "proxy must not be called for unknown sessions")
}

func TestContinueRoutesToBotSession(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: &medbot.Turn{
		Stage:          model.StageHistoryTaking,
		DoctorResponse: "How long does it last?",
		IsQuestion:     true,
		QuestionCount:  2,
		MaxQuestions:   7,
	}}
	svc, _ := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	out, err := svc.Continue(context.Background(), "u1", res.SessionID, "a few minutes")
	require.NoError(t, err)
	require.Equal(t, []string{"bot-session-1"}, bot.sentSessionIDs)
	require.Len(t, out.Session.Messages, 4)
	require.Equal(t, model.RoleDoctor, out.Session.Messages[3].Role)
}

func TestContinueSpecialistStage(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: &medbot.Turn{
		Stage:           model.StageSpecialistConsultation,
		DoctorResponse:  "Your symptoms suggest angina.",
		SpecialistName:  "Dr. James Wilson (Cardiology)",
		ClinicalSummary: "Exertional chest pain, relieved by rest.",
		Recommendations: []string{"Schedule a stress test"},
		Medications:     []string{"Aspirin 81mg daily"},
	}}
	svc, _ := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	out, err := svc.Continue(context.Background(), "u1", res.SessionID, "it happens when I climb stairs")
	require.NoError(t, err)

	last := out.Session.Messages[len(out.Session.Messages)-1]
	require.Equal(t, model.RoleSpecialist, last.Role)
	require.Equal(t, "Dr. James Wilson (Cardiology)", last.AgentName)
	require.Equal(t, "Cardiology", last.AgentSpecialty)

	require.NotNil(t, out.Session.SpecialistInfo)
	require.Equal(t, "Cardiology", out.Session.SpecialistInfo.Specialty)
	require.NotNil(t, out.Session.Summary)
	// No explicit assessment in the turn, so the reply text stands in.
	require.Equal(t, "Your symptoms suggest angina.", out.Session.Summary.FinalAssessment)
}

func TestContinueStickySpecialistInfo(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: &medbot.Turn{
		Stage:           model.StageSpecialistConsultation,
		DoctorResponse:  "Your symptoms suggest angina.",
		SpecialistName:  "Dr. James Wilson (Cardiology)",
		ClinicalSummary: "Exertional chest pain.",
	}}
	svc, _ := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)
	_, err = svc.Continue(context.Background(), "u1", res.SessionID, "when I climb stairs")
	require.NoError(t, err)

	// Later turn carries no specialist data; the recorded info must survive.
	bot.sendTurn = &medbot.Turn{
		Stage:          model.StageSpecialistConsultation,
		DoctorResponse: "Avoid heavy exertion until the test.",
	}
	out, err := svc.Continue(context.Background(), "u1", res.SessionID, "anything I should avoid?")
	require.NoError(t, err)
	require.NotNil(t, out.Session.SpecialistInfo)
	require.Equal(t, "Dr. James Wilson (Cardiology)", out.Session.SpecialistInfo.Name)
}

func TestContinueConcurrentTurnConflict(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: &medbot.Turn{
		Stage:          model.StageHistoryTaking,
		DoctorResponse: "Noted.",
	}}
	svc, fs := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	// A racing writer appends a turn between our read and our append.
	bot.onSend = func() {
		sess := fs.sessions[res.SessionID]
		_, err := fs.Sessions().AppendTurn(context.Background(), "u1", res.SessionID, sess.Version, store.SessionUpdate{
			Stage:    sess.CurrentStage,
			Messages: []model.Message{{Role: model.RoleUser, Content: "racer", Timestamp: time.Now()}},
		})
		require.NoError(t, err)
		bot.onSend = nil
	}

	_, err = svc.Continue(context.Background(), "u1", res.SessionID, "hello")
	require.ErrorIs(t, err, model.ErrOptimisticConflict)
}

func TestEndPromotesToHistory(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), endRes: &medbot.EndResult{Summary: "Likely musculoskeletal pain."}}
	svc, fs := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	out, err := svc.End(context.Background(), "u1", res.SessionID)
	require.NoError(t, err)
	require.Equal(t, res.SessionID, out.ConversationID)
	require.Equal(t, "Likely musculoskeletal pain.", out.Summary)
	require.Equal(t, []string{"bot-session-1"}, bot.endSessionIDs)

	u, err := fs.Users().GetByID(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, u.Conversations, 1)
	conv := u.Conversations[0]
	require.Equal(t, res.SessionID, conv.ConversationID)
	require.Equal(t, model.StatusCompleted, conv.Status)
	require.Equal(t, []string{"General Consultation"}, conv.Tags)
	require.NotNil(t, conv.CompletedAt)

	// The session is gone once promoted; a second end finds nothing.
	_, err = svc.End(context.Background(), "u1", res.SessionID)
	require.ErrorIs(t, err, model.ErrNotFound)
	u, _ = fs.Users().GetByID(context.Background(), "u1")
	require.Len(t, u.Conversations, 1)
}

func TestEndSavesWhenBotUnavailable(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), endErr: errors.New("connection refused")}
	svc, fs := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	out, err := svc.End(context.Background(), "u1", res.SessionID)
	require.NoError(t, err)
	require.Equal(t, "Consultation completed", out.Summary)

	u, _ := fs.Users().GetByID(context.Background(), "u1")
	require.Len(t, u.Conversations, 1)
}

func TestEndTagsWithSpecialty(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: &medbot.Turn{
		Stage:           model.StageSpecialistConsultation,
		DoctorResponse:  "Your symptoms suggest angina.",
		SpecialistName:  "Dr. James Wilson (Cardiology)",
		ClinicalSummary: "Exertional chest pain.",
	}}
	svc, fs := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)
	_, err = svc.Continue(context.Background(), "u1", res.SessionID, "when I climb stairs")
	require.NoError(t, err)
	_, err = svc.End(context.Background(), "u1", res.SessionID)
	require.NoError(t, err)

	u, _ := fs.Users().GetByID(context.Background(), "u1")
	require.Equal(t, []string{"Cardiology"}, u.Conversations[0].Tags)
	require.Equal(t, "Dr. James Wilson (Cardiology)", u.Conversations[0].Summary.SpecialistConsulted)
}

func TestExpiredSessionUnreachable(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: startTurn()}
	svc, fs := newConsultFixture(t, bot)

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	// Jump past the TTL.
	fs.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = svc.GetActive(context.Background(), "u1", res.SessionID)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.Continue(context.Background(), "u1", res.SessionID, "still there?")
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.End(context.Background(), "u1", res.SessionID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestSessionIsolatedPerUser(t *testing.T) {
	bot := &fakeBot{startTurn: startTurn(), sendTurn: startTurn()}
	svc, fs := newConsultFixture(t, bot)
	fs.addUser(&model.User{ID: "u2", Username: "other", Email: "other@example.com", IsActive: true})

	res, err := svc.Start(context.Background(), "u1", "I have chest pain")
	require.NoError(t, err)

	_, err = svc.GetActive(context.Background(), "u2", res.SessionID)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.End(context.Background(), "u2", res.SessionID)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestHistoryPagination(t *testing.T) {
	svc, fs := newConsultFixture(t, &fakeBot{})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := fs.users["u1"]
	for i := 0; i < 15; i++ {
		u.Conversations = append(u.Conversations, model.MedicalConversation{
			ConversationID: fmt.Sprintf("conv-%02d", i),
			Title:          fmt.Sprintf("Consultation %d", i),
			Status:         model.StatusCompleted,
			StartedAt:      base.Add(time.Duration(i) * time.Hour),
		})
	}

	page1, err := svc.History(context.Background(), "u1", 1, 10)
	require.NoError(t, err)
	require.Len(t, page1.Conversations, 10)
	require.True(t, page1.Pagination.HasNext)
	require.False(t, page1.Pagination.HasPrev)
	require.Equal(t, 15, page1.Pagination.TotalConversations)
	require.Equal(t, 2, page1.Pagination.TotalPages)
	// Newest first.
	require.Equal(t, "conv-14", page1.Conversations[0].ConversationID)

	page2, err := svc.History(context.Background(), "u1", 2, 10)
	require.NoError(t, err)
	require.Len(t, page2.Conversations, 5)
	require.False(t, page2.Pagination.HasNext)
	require.True(t, page2.Pagination.HasPrev)
	require.Equal(t, "conv-00", page2.Conversations[4].ConversationID)

	// Out-of-range page is empty, not an error.
	page9, err := svc.History(context.Background(), "u1", 9, 10)
	require.NoError(t, err)
	require.Empty(t, page9.Conversations)

	// Defaults and clamps.
	defaulted, err := svc.History(context.Background(), "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, defaulted.Conversations, 10)
	clamped, err := svc.History(context.Background(), "u1", 1, 1000)
	require.NoError(t, err)
	require.Len(t, clamped.Conversations, 15)
}

func TestHistoryUnknownUser(t *testing.T) {
	svc, _ := newConsultFixture(t, &fakeBot{})
	_, err := svc.History(context.Background(), "ghost", 1, 10)
	require.ErrorIs(t, err, model.ErrNotFound)
}
