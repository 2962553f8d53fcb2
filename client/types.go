package client

import "time"

// MessageState tracks the delivery lifecycle of a locally appended message.
type MessageState string

const (
	// StatePending marks a user message appended locally but not yet
	// acknowledged by the backend.
	StatePending MessageState = "pending"
	// StateConfirmed marks a message the backend has accepted.
	StateConfirmed MessageState = "confirmed"
	// StateFailed marks a user message whose send failed. Failed messages
	// stay in the transcript; they are never rolled back.
	StateFailed MessageState = "failed"
)

// ChatMessage is one transcript entry held by a ChatSession.
type ChatMessage struct {
	ID        string
	Role      string // "user", "doctor", "specialist" or "system"
	Content   string
	State     MessageState
	Timestamp time.Time

	// Stage-specific extras, populated from doctor turns.
	SpecialistName  string
	HandoffMessage  string
	Recommendations []string
	Medications     []string
	ClinicalSummary string
}

// Profile mirrors the backend's user profile document.
type Profile struct {
	FirstName          string     `json:"firstName,omitempty"`
	LastName           string     `json:"lastName,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	DateOfBirth        *time.Time `json:"dateOfBirth,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	MedicalHistory     []string   `json:"medicalHistory,omitempty"`
	Allergies          []string   `json:"allergies,omitempty"`
	CurrentMedications []string   `json:"currentMedications,omitempty"`
}

// User is the backend's serialized user (credential material is never present).
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"isActive"`
	Profile   Profile    `json:"profile"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         User
	Token        string
	RefreshToken string
}

// ConversationSummary is the archived clinical outcome of a consultation.
type ConversationSummary struct {
	ClinicalSummary     string   `json:"clinicalSummary,omitempty"`
	SpecialistConsulted string   `json:"specialistConsulted,omitempty"`
	Recommendations     []string `json:"recommendations,omitempty"`
	Medications         []string `json:"medications,omitempty"`
	FinalDiagnosis      string   `json:"finalDiagnosis,omitempty"`
}

// TranscriptMessage is one persisted message of an archived consultation.
type TranscriptMessage struct {
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	AgentName      string    `json:"agentName,omitempty"`
	AgentSpecialty string    `json:"agentSpecialty,omitempty"`
}

// ConversationRecord is one completed consultation from history.
type ConversationRecord struct {
	ConversationID string              `json:"conversationId"`
	Title          string              `json:"title"`
	Messages       []TranscriptMessage `json:"messages"`
	Summary        ConversationSummary `json:"summary"`
	Status         string              `json:"status"`
	Tags           []string            `json:"tags,omitempty"`
	StartedAt      time.Time           `json:"startedAt"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
}

// HistoryPage is one page of completed consultations.
type HistoryPage struct {
	Conversations []ConversationRecord `json:"conversations"`
	Pagination    struct {
		CurrentPage        int  `json:"currentPage"`
		TotalPages         int  `json:"totalPages"`
		TotalConversations int  `json:"totalConversations"`
		HasNext            bool `json:"hasNext"`
		HasPrev            bool `json:"hasPrev"`
	} `json:"pagination"`
}

// EndResult is returned when a consultation is ended and archived.
type EndResult struct {
	Summary        string    `json:"summary"`
	ConversationID string    `json:"conversationId"`
	SavedAt        time.Time `json:"-"`
}
