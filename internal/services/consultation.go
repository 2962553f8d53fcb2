package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsage/medsage-server/internal/api/validate"
	"github.com/medsage/medsage-server/internal/medbot"
	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/store"
)

// Defaults used when the consultation service omits agent attribution.
const (
	defaultDoctorName      = "Dr. Sarah Chen"
	defaultDoctorSpecialty = "Primary Care Physician"
	defaultTag             = "General Consultation"
	fallbackSummary        = "Consultation completed"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// StartResult is the outcome of starting a consultation.
type StartResult struct {
	SessionID string
	Turn      *medbot.Turn
	Session   *model.TempConversation
}

// TurnResult is the outcome of one continued consultation turn.
type TurnResult struct {
	Turn    *medbot.Turn
	Session *model.TempConversation
}

// EndOutcome is the result of ending and promoting a consultation.
type EndOutcome struct {
	Summary        string
	ConversationID string
	SavedAt        time.Time
}

// ConsultationService drives the consultation session lifecycle: staging
// turns in a TTL-expiring temp record and promoting it into the user's
// permanent history on end. Stage transitions are recorded from the
// consultation service's responses, never decided here.
type ConsultationService struct {
	store      store.Store
	bot        medbot.Client
	sessionTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewConsultationService(s store.Store, bot medbot.Client, sessionTTL time.Duration, log zerolog.Logger) *ConsultationService {
	return &ConsultationService{
		store:      s,
		bot:        bot,
		sessionTTL: sessionTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start begins a new consultation. The proxy call happens before anything is
// persisted: a failed call leaves no partial record behind.
func (s *ConsultationService) Start(ctx context.Context, userID, message string) (*StartResult, error) {
	if err := validate.NonEmpty("message", message); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), model.ErrValidation)
	}

	turn, err := s.bot.StartConsultation(ctx, message)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sessionID := uuid.New().String()
	doctorName := turn.DoctorName
	if doctorName == "" {
		doctorName = defaultDoctorName
	}

	temp := &model.TempConversation{
		SessionID:    sessionID,
		UserID:       userID,
		BotSessionID: turn.SessionID,
		Title:        "Consultation - " + now.Format("1/2/2006"),
		Messages: []model.Message{
			{Role: model.RoleUser, Content: message, Timestamp: now},
			{
				Role:           model.RoleDoctor,
				Content:        turn.DoctorResponse,
				Timestamp:      now,
				AgentName:      doctorName,
				AgentSpecialty: defaultDoctorSpecialty,
			},
		},
		CurrentStage: turn.Stage,
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
	}

	created, err := s.store.Sessions().Create(ctx, temp)
	if err != nil {
		return nil, err
	}
	return &StartResult{SessionID: sessionID, Turn: turn, Session: created}, nil
}

// Continue appends one turn to an active session. The append is conditional
// on the session version observed at read time, so a concurrent continue on
// the same session fails fast instead of silently dropping a message.
func (s *ConsultationService) Continue(ctx context.Context, userID, sessionID, message string) (*TurnResult, error) {
	if err := validate.NonEmpty("message", message); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), model.ErrValidation)
	}

	temp, err := s.store.Sessions().GetActive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	turn, err := s.bot.SendMessage(ctx, temp.BotSessionID, message)
	if err != nil {
		return nil, err
	}

	now := s.now()
	botMsg := model.Message{
		Role:      model.RoleDoctor,
		Content:   turn.DoctorResponse,
		Timestamp: now,
	}
	if turn.Stage == model.StageSpecialistConsultation {
		botMsg.Role = model.RoleSpecialist
	}
	if turn.SpecialistName != "" {
		botMsg.AgentName = turn.SpecialistName
		botMsg.AgentSpecialty = specialtyFromName(turn.SpecialistName)
	} else {
		botMsg.AgentName = defaultDoctorName
		botMsg.AgentSpecialty = defaultDoctorSpecialty
	}

	upd := store.SessionUpdate{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: message, Timestamp: now},
			botMsg,
		},
		Stage: turn.Stage,
	}
	// Sticky fields: written only when this turn supplied new data.
	if turn.SpecialistName != "" && turn.ClinicalSummary != "" {
		upd.SpecialistInfo = &model.SpecialistInfo{
			Name:            turn.SpecialistName,
			Specialty:       botMsg.AgentSpecialty,
			ClinicalSummary: turn.ClinicalSummary,
		}
	}
	if len(turn.Recommendations) > 0 || len(turn.Medications) > 0 {
		assessment := turn.SpecialistAssessment
		if assessment == "" {
			assessment = turn.DoctorResponse
		}
		upd.Summary = &model.SummaryDraft{
			Recommendations: turn.Recommendations,
			Medications:     turn.Medications,
			FinalAssessment: assessment,
		}
	}

	updated, err := s.store.Sessions().AppendTurn(ctx, userID, sessionID, temp.Version, upd)
	if err != nil {
		return nil, err
	}
	return &TurnResult{Turn: turn, Session: updated}, nil
}

// End closes the session and promotes its content into the user's permanent
// history. The remote end call is best-effort: the promotion proceeds even
// when it fails, because the terminal record must be saved regardless.
func (s *ConsultationService) End(ctx context.Context, userID, sessionID string) (*EndOutcome, error) {
	temp, err := s.store.Sessions().GetActive(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	summary := fallbackSummary
	if endRes, err := s.bot.EndConsultation(ctx, temp.BotSessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("end-consultation call failed, saving locally")
	} else if endRes.Summary != "" {
		summary = endRes.Summary
	}

	now := s.now()
	perm := promote(temp, now)
	if err := s.store.Users().AppendConversation(ctx, userID, perm); err != nil {
		return nil, err
	}

	if err := s.store.Sessions().Deactivate(ctx, userID, sessionID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	return &EndOutcome{Summary: summary, ConversationID: sessionID, SavedAt: now}, nil
}

// GetActive returns the in-progress session for read-only display.
func (s *ConsultationService) GetActive(ctx context.Context, userID, sessionID string) (*model.TempConversation, error) {
	return s.store.Sessions().GetActive(ctx, userID, sessionID)
}

// History returns one page of the user's permanent conversations, newest
// first by startedAt.
func (s *ConsultationService) History(ctx context.Context, userID string, page, limit int) (*model.HistoryPage, error) {
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	convs := make([]model.MedicalConversation, len(u.Conversations))
	copy(convs, u.Conversations)
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].StartedAt.After(convs[j].StartedAt)
	})

	total := len(convs)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	totalPages := (total + limit - 1) / limit
	return &model.HistoryPage{
		Conversations: convs[start:end],
		Pagination: model.Pagination{
			CurrentPage:        page,
			TotalPages:         totalPages,
			TotalConversations: total,
			HasNext:            end < total,
			HasPrev:            start > 0,
		},
	}, nil
}

// BotHealth probes the external consultation service.
func (s *ConsultationService) BotHealth(ctx context.Context) (*medbot.HealthReport, error) {
	return s.bot.Health(ctx)
}

// promote builds the permanent record from a staged session. The permanent
// conversationId equals the sessionId, keeping the identifier unique across
// the temporary and permanent spaces.
func promote(temp *model.TempConversation, completedAt time.Time) *model.MedicalConversation {
	summary := model.ConversationSummary{}
	tag := defaultTag
	if temp.SpecialistInfo != nil {
		summary.ClinicalSummary = temp.SpecialistInfo.ClinicalSummary
		summary.SpecialistConsulted = temp.SpecialistInfo.Name
		if temp.SpecialistInfo.Specialty != "" {
			tag = temp.SpecialistInfo.Specialty
		}
	}
	if temp.Summary != nil {
		summary.Recommendations = temp.Summary.Recommendations
		summary.Medications = temp.Summary.Medications
		summary.FinalDiagnosis = temp.Summary.FinalAssessment
	}

	return &model.MedicalConversation{
		ConversationID: temp.SessionID,
		Title:          temp.Title,
		Messages:       temp.Messages,
		Summary:        summary,
		Status:         model.StatusCompleted,
		StartedAt:      temp.CreatedAt,
		CompletedAt:    &completedAt,
		Tags:           []string{tag},
	}
}

// specialtyFromName extracts the parenthesized specialty from names like
// "Dr. James Wilson (Cardiology)".
func specialtyFromName(name string) string {
	open := strings.Index(name, "(")
	close_ := strings.Index(name, ")")
	if open >= 0 && close_ > open+1 {
		return name[open+1 : close_]
	}
	return "Specialist"
}
