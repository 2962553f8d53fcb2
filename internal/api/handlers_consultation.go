package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medsage/medsage-server/internal/api/respond"
	"github.com/medsage/medsage-server/internal/auth"
	"github.com/medsage/medsage-server/internal/medbot"
	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/services"
)

type ConsultationHandler struct {
	svc    *services.ConsultationService
	botURL string
}

func NewConsultationHandler(svc *services.ConsultationService, botURL string) *ConsultationHandler {
	return &ConsultationHandler{svc: svc, botURL: botURL}
}

// turnPayload is the conversation fragment returned on start and continue.
// Stage-specific fields are present only when the stage supplied them.
type turnPayload struct {
	ID              string   `json:"id,omitempty"`
	Stage           string   `json:"stage"`
	DoctorResponse  string   `json:"doctorResponse"`
	DoctorName      string   `json:"doctorName,omitempty"`
	IsQuestion      bool     `json:"isQuestion"`
	QuestionCount   int      `json:"questionCount,omitempty"`
	MaxQuestions    int      `json:"maxQuestions,omitempty"`
	SpecialistName  string   `json:"specialistName,omitempty"`
	HandoffMessage  string   `json:"handoffMessage,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	Medications     []string `json:"medications,omitempty"`
	ClinicalSummary string   `json:"clinicalSummary,omitempty"`
}

func (h *ConsultationHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	var in struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	res, err := h.svc.Start(r.Context(), userID, in.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Consultation started successfully",
		"sessionId": res.SessionID,
		"conversation": turnPayload{
			ID:             res.SessionID,
			Stage:          res.Session.CurrentStage,
			DoctorResponse: res.Turn.DoctorResponse,
			DoctorName:     res.Turn.DoctorName,
			IsQuestion:     res.Turn.IsQuestion,
			QuestionCount:  res.Turn.QuestionCount,
			MaxQuestions:   res.Turn.MaxQuestions,
		},
	})
}

func (h *ConsultationHandler) Continue(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	sessionID := mux.Vars(r)["sessionId"]
	var in struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	res, err := h.svc.Continue(r.Context(), userID, sessionID, in.Message)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "Conversation session not found or expired")
			return
		}
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Message sent successfully",
		"conversation": continuePayload(res.Turn),
	})
}

// continuePayload enriches the base turn with stage-specific fields.
func continuePayload(turn *medbot.Turn) turnPayload {
	p := turnPayload{
		Stage:          turn.Stage,
		DoctorResponse: turn.DoctorResponse,
		IsQuestion:     turn.IsQuestion,
	}
	switch turn.Stage {
	case model.StageSpecialistHandoff:
		p.SpecialistName = turn.SpecialistName
		p.HandoffMessage = turn.HandoffMessage
	case model.StageSpecialistConsultation:
		p.SpecialistName = turn.SpecialistName
		p.Recommendations = turn.Recommendations
		p.Medications = turn.Medications
		p.ClinicalSummary = turn.ClinicalSummary
	}
	return p
}

func (h *ConsultationHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	sessionID := mux.Vars(r)["sessionId"]
	out, err := h.svc.End(r.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "Conversation session not found or expired")
			return
		}
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Consultation ended and saved successfully",
		"summary":        out.Summary,
		"conversationId": out.ConversationID,
		"savedAt":        out.SavedAt.Format(time.RFC3339),
	})
}

func (h *ConsultationHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	sessionID := mux.Vars(r)["sessionId"]
	temp, err := h.svc.GetActive(r.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "Active conversation not found")
			return
		}
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]*model.TempConversation{"conversation": temp})
}

func (h *ConsultationHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w, "authorization required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	histPage, err := h.svc.History(r.Context(), userID, page, limit)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			respond.WriteNotFound(w, "User not found")
			return
		}
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, histPage)
}

func (h *ConsultationHandler) BotHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.BotHealth(r.Context())
	if err != nil {
		respond.WriteInternalError(w, "Failed to check consultation service health")
		return
	}
	status := "unavailable"
	if report.Healthy {
		status = "healthy"
	}
	out := map[string]interface{}{
		"botService":   status,
		"botServerUrl": h.botURL,
	}
	for k, v := range report.Detail {
		out[k] = v
	}
	respond.WriteJSON(w, http.StatusOK, out)
}
