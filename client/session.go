package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// failedSendNotice is appended as a system message when a send fails so the
// transcript records the outage. The failed user message is kept as-is.
const failedSendNotice = "Sorry, I'm having trouble connecting right now. Please try sending your message again."

// ChatSession holds local chat state for one consultation: the transcript
// with optimistic delivery states, the current stage, and question progress.
// Safe for concurrent use.
type ChatSession struct {
	c *Client

	mu            sync.Mutex
	sessionID     string
	stage         string
	questionCount int
	maxQuestions  int
	doctorName    string
	messages      []ChatMessage
	ended         bool
	summary       string
}

// NewSession creates an empty chat session. The backend session is created
// lazily by the first Send.
func (c *Client) NewSession() *ChatSession {
	return &ChatSession{c: c}
}

// ResumeSession wraps an existing backend session ID so Send continues it.
func (c *Client) ResumeSession(sessionID string) *ChatSession {
	return &ChatSession{c: c, sessionID: sessionID}
}

type turnWire struct {
	ID              string   `json:"id"`
	Stage           string   `json:"stage"`
	DoctorResponse  string   `json:"doctorResponse"`
	DoctorName      string   `json:"doctorName"`
	IsQuestion      bool     `json:"isQuestion"`
	QuestionCount   int      `json:"questionCount"`
	MaxQuestions    int      `json:"maxQuestions"`
	SpecialistName  string   `json:"specialistName"`
	HandoffMessage  string   `json:"handoffMessage"`
	Recommendations []string `json:"recommendations"`
	Medications     []string `json:"medications"`
	ClinicalSummary string   `json:"clinicalSummary"`
}

// Send appends the user message optimistically, delivers it, and on success
// confirms it and appends the doctor's reply. On failure the user message is
// marked failed and a system notice is appended; nothing is rolled back.
func (s *ChatSession) Send(ctx context.Context, text string) (*ChatMessage, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, fmt.Errorf("session already ended")
	}
	userMsg := ChatMessage{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   text,
		State:     StatePending,
		Timestamp: time.Now().UTC(),
	}
	s.messages = append(s.messages, userMsg)
	sessionID := s.sessionID
	s.mu.Unlock()

	turn, newSessionID, err := s.deliver(ctx, sessionID, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// Looked up by ID: Refresh may have replaced the transcript while
		// the request was in flight, dropping the optimistic entry.
		if i := s.indexOf(userMsg.ID); i >= 0 {
			s.messages[i].State = StateFailed
		}
		s.messages = append(s.messages, ChatMessage{
			ID:        uuid.NewString(),
			Role:      "system",
			Content:   failedSendNotice,
			State:     StateConfirmed,
			Timestamp: time.Now().UTC(),
		})
		return nil, err
	}

	if i := s.indexOf(userMsg.ID); i >= 0 {
		s.messages[i].State = StateConfirmed
	}
	if newSessionID != "" {
		s.sessionID = newSessionID
	}
	s.stage = turn.Stage
	if turn.QuestionCount > 0 {
		s.questionCount = turn.QuestionCount
	}
	if turn.MaxQuestions > 0 {
		s.maxQuestions = turn.MaxQuestions
	}
	if turn.DoctorName != "" {
		s.doctorName = turn.DoctorName
	}

	role := "doctor"
	if turn.Stage == "specialist_consultation" {
		role = "specialist"
	}
	reply := ChatMessage{
		ID:              uuid.NewString(),
		Role:            role,
		Content:         turn.DoctorResponse,
		State:           StateConfirmed,
		Timestamp:       time.Now().UTC(),
		SpecialistName:  turn.SpecialistName,
		HandoffMessage:  turn.HandoffMessage,
		Recommendations: turn.Recommendations,
		Medications:     turn.Medications,
		ClinicalSummary: turn.ClinicalSummary,
	}
	s.messages = append(s.messages, reply)
	return &reply, nil
}

// deliver posts to start or continue depending on whether a backend session
// exists yet, and returns the doctor turn plus the session ID when started.
func (s *ChatSession) deliver(ctx context.Context, sessionID, text string) (*turnWire, string, error) {
	body := map[string]string{"message": text}
	if sessionID == "" {
		var out struct {
			SessionID    string   `json:"sessionId"`
			Conversation turnWire `json:"conversation"`
		}
		if err := s.c.doJSON(ctx, http.MethodPost, "/api/conversations/start", body, http.StatusCreated, &out); err != nil {
			return nil, "", err
		}
		return &out.Conversation, out.SessionID, nil
	}
	var out struct {
		Conversation turnWire `json:"conversation"`
	}
	path := "/api/conversations/continue/" + sessionID
	if err := s.c.doJSON(ctx, http.MethodPost, path, body, http.StatusOK, &out); err != nil {
		return nil, "", err
	}
	return &out.Conversation, "", nil
}

// End archives the consultation. A second End returns ErrNotFound: the
// session is gone once promoted to history.
func (s *ChatSession) End(ctx context.Context) (*EndResult, error) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID == "" {
		return nil, fmt.Errorf("session not started")
	}

	var out struct {
		Summary        string `json:"summary"`
		ConversationID string `json:"conversationId"`
		SavedAt        string `json:"savedAt"`
	}
	path := "/api/conversations/end/" + sessionID
	if err := s.c.doJSON(ctx, http.MethodPost, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}

	res := &EndResult{Summary: out.Summary, ConversationID: out.ConversationID}
	if ts, err := time.Parse(time.RFC3339, out.SavedAt); err == nil {
		res.SavedAt = ts
	}

	s.mu.Lock()
	s.ended = true
	s.summary = out.Summary
	s.stage = "consultation_complete"
	s.mu.Unlock()
	return res, nil
}

// Refresh reloads the active session from the backend, replacing the local
// transcript with the persisted one.
func (s *ChatSession) Refresh(ctx context.Context) error {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID == "" {
		return fmt.Errorf("session not started")
	}

	var out struct {
		Conversation struct {
			SessionID    string              `json:"sessionId"`
			CurrentStage string              `json:"currentStage"`
			Messages     []TranscriptMessage `json:"messages"`
		} `json:"conversation"`
	}
	path := "/api/conversations/active/" + sessionID
	if err := s.c.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return err
	}

	// Build the replacement on a fresh backing array; truncating in place
	// would let an in-flight Send alias the loaded entries.
	msgs := make([]ChatMessage, 0, len(out.Conversation.Messages))
	for _, m := range out.Conversation.Messages {
		msgs = append(msgs, ChatMessage{
			ID:        uuid.NewString(),
			Role:      m.Role,
			Content:   m.Content,
			State:     StateConfirmed,
			Timestamp: m.Timestamp,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = out.Conversation.CurrentStage
	s.messages = msgs
	return nil
}

// indexOf returns the transcript index of the message with the given ID, or
// -1 when the transcript no longer holds it.
func (s *ChatSession) indexOf(id string) int {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// SessionID returns the backend session ID, empty until the first Send.
func (s *ChatSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Stage returns the current consultation stage.
func (s *ChatSession) Stage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// QuestionProgress returns the asked and maximum intake question counts.
func (s *ChatSession) QuestionProgress() (asked, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionCount, s.maxQuestions
}

// DoctorName returns the name of the current doctor.
func (s *ChatSession) DoctorName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doctorName
}

// Ended reports whether End completed successfully.
func (s *ChatSession) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Summary returns the archived summary, empty before End.
func (s *ChatSession) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Messages returns a copy of the transcript.
func (s *ChatSession) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}
