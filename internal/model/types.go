package model

import "time"

// Consultation stages as reported by the external consultation service.
// Transitions are recorded from its per-turn responses, never decided locally.
const (
	StageHistoryTaking          = "history_taking"
	StageSpecialistHandoff      = "specialist_handoff"
	StageSpecialistConsultation = "specialist_consultation"
	StageConsultationComplete   = "consultation_complete"
)

// Message roles.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleDoctor     = "doctor"
	RoleSpecialist = "specialist"
)

// Conversation statuses for permanent records.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// User roles.
const (
	UserRoleUser  = "user"
	UserRoleAdmin = "admin"
)

// ValidStage reports whether s is one of the known consultation stages.
func ValidStage(s string) bool {
	switch s {
	case StageHistoryTaking, StageSpecialistHandoff, StageSpecialistConsultation, StageConsultationComplete:
		return true
	}
	return false
}

// Profile holds a user's demographic and medical background data.
type Profile struct {
	FirstName          string     `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName           string     `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Phone              string     `bson:"phone,omitempty" json:"phone,omitempty"`
	DateOfBirth        *time.Time `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Gender             string     `bson:"gender,omitempty" json:"gender,omitempty"`
	MedicalHistory     []string   `bson:"medicalHistory,omitempty" json:"medicalHistory,omitempty"`
	Allergies          []string   `bson:"allergies,omitempty" json:"allergies,omitempty"`
	CurrentMedications []string   `bson:"currentMedications,omitempty" json:"currentMedications,omitempty"`
}

// User is an account with its embedded permanent conversation history.
// PasswordHash and RefreshTokens are never serialized to JSON.
type User struct {
	ID            string                `bson:"_id" json:"id"`
	Username      string                `bson:"username" json:"username"`
	Email         string                `bson:"email" json:"email"`
	PasswordHash  string                `bson:"passwordHash" json:"-"`
	Profile       Profile               `bson:"profile,omitempty" json:"profile"`
	Conversations []MedicalConversation `bson:"conversations,omitempty" json:"conversations"`
	Role          string                `bson:"role" json:"role"`
	IsActive      bool                  `bson:"isActive" json:"isActive"`
	LastLogin     *time.Time            `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	RefreshTokens []string              `bson:"refreshTokens,omitempty" json:"-"`
	CreatedAt     time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time             `bson:"updatedAt" json:"updatedAt"`
}

// Message is a single chat turn inside a conversation.
type Message struct {
	Role           string    `bson:"role" json:"role"`
	Content        string    `bson:"content" json:"content"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	AgentName      string    `bson:"agentName,omitempty" json:"agentName,omitempty"`
	AgentSpecialty string    `bson:"agentSpecialty,omitempty" json:"agentSpecialty,omitempty"`
}

// ConversationSummary is the clinical summary attached to a completed conversation.
type ConversationSummary struct {
	ClinicalSummary     string   `bson:"clinicalSummary,omitempty" json:"clinicalSummary,omitempty"`
	SpecialistConsulted string   `bson:"specialistConsulted,omitempty" json:"specialistConsulted,omitempty"`
	Recommendations     []string `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	Medications         []string `bson:"medications,omitempty" json:"medications,omitempty"`
	FinalDiagnosis      string   `bson:"finalDiagnosis,omitempty" json:"finalDiagnosis,omitempty"`
}

// MedicalConversation is a permanent conversation record embedded in User.
// Immutable after promotion except for archival status.
type MedicalConversation struct {
	ConversationID string              `bson:"conversationId" json:"conversationId"`
	Title          string              `bson:"title" json:"title"`
	Messages       []Message           `bson:"messages" json:"messages"`
	Summary        ConversationSummary `bson:"summary" json:"summary"`
	Status         string              `bson:"status" json:"status"`
	StartedAt      time.Time           `bson:"startedAt" json:"startedAt"`
	CompletedAt    *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Tags           []string            `bson:"tags,omitempty" json:"tags,omitempty"`
}

// SpecialistInfo is recorded once the consultation service hands off to a specialist.
type SpecialistInfo struct {
	Name            string `bson:"name,omitempty" json:"name,omitempty"`
	Specialty       string `bson:"specialty,omitempty" json:"specialty,omitempty"`
	ClinicalSummary string `bson:"clinicalSummary,omitempty" json:"clinicalSummary,omitempty"`
}

// SummaryDraft accumulates summary data as the consultation progresses.
// Fields are sticky: overwritten when new data arrives, never cleared.
type SummaryDraft struct {
	Recommendations []string `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	Medications     []string `bson:"medications,omitempty" json:"medications,omitempty"`
	FinalAssessment string   `bson:"finalAssessment,omitempty" json:"finalAssessment,omitempty"`
}

// TempConversation is the TTL-expiring staging record for an in-progress
// consultation. It is the sole mutable area for session state; on end its
// content is promoted into a MedicalConversation and it is deactivated.
// Version guards conditional turn appends against concurrent writers.
type TempConversation struct {
	SessionID      string          `bson:"sessionId" json:"sessionId"`
	UserID         string          `bson:"userId" json:"userId"`
	BotSessionID   string          `bson:"botSessionId" json:"-"`
	Title          string          `bson:"title" json:"title"`
	Messages       []Message       `bson:"messages" json:"messages"`
	CurrentStage   string          `bson:"currentStage" json:"currentStage"`
	SpecialistInfo *SpecialistInfo `bson:"specialistInfo,omitempty" json:"specialistInfo,omitempty"`
	Summary        *SummaryDraft   `bson:"summary,omitempty" json:"summary,omitempty"`
	IsActive       bool            `bson:"isActive" json:"isActive"`
	Version        int64           `bson:"version" json:"-"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	ExpiresAt      time.Time       `bson:"expiresAt" json:"expiresAt"`
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	CurrentPage        int  `json:"currentPage"`
	TotalPages         int  `json:"totalPages"`
	TotalConversations int  `json:"totalConversations"`
	HasNext            bool `json:"hasNext"`
	HasPrev            bool `json:"hasPrev"`
}

// HistoryPage is one page of a user's permanent conversation history,
// sorted by startedAt descending.
type HistoryPage struct {
	Conversations []MedicalConversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}
