// Package medbot is the adapter for the external AI consultation service.
// It owns the request timeout and normalizes every transport, timeout and
// remote application error into model.ErrUpstream; responses are parsed
// into typed turns at this boundary so undefined upstream fields never
// propagate into the rest of the system.
package medbot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/medsage/medsage-server/internal/model"
)

// Turn is one validated reply from the consultation service. Stage-specific
// fields (specialist, handoff, summary data) are populated only when the
// upstream payload carried them.
type Turn struct {
	SessionID            string
	Stage                string
	DoctorResponse       string
	DoctorName           string
	IsQuestion           bool
	QuestionCount        int
	MaxQuestions         int
	SpecialistName       string
	HandoffMessage       string
	ClinicalSummary      string
	Recommendations      []string
	Medications          []string
	SpecialistAssessment string
}

// EndResult is the outcome of the remote end-consultation call.
type EndResult struct {
	Summary string
}

// HealthReport describes the upstream service's health probe response.
type HealthReport struct {
	Healthy bool
	Detail  map[string]interface{}
}

// Client is the consultation service boundary used by services.
type Client interface {
	StartConsultation(ctx context.Context, message string) (*Turn, error)
	SendMessage(ctx context.Context, sessionID, message string) (*Turn, error)
	EndConsultation(ctx context.Context, sessionID string) (*EndResult, error)
	SessionStatus(ctx context.Context, sessionID string) (map[string]interface{}, error)
	Health(ctx context.Context) (*HealthReport, error)
}

type restyClient struct {
	http *resty.Client
}

// New constructs a Client for the service at baseURL with a bounded request
// timeout. No retries: a failed turn is the caller's to repeat.
func New(baseURL string, timeout time.Duration) Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &restyClient{http: rc}
}

// turnWire mirrors the upstream JSON payload shape.
type turnWire struct {
	SessionID            string   `json:"session_id"`
	DoctorResponse       string   `json:"doctor_response"`
	DoctorName           string   `json:"doctor_name"`
	ConsultationStage    string   `json:"consultation_stage"`
	IsQuestion           bool     `json:"is_question"`
	QuestionCount        int      `json:"question_count"`
	MaxQuestions         int      `json:"max_questions"`
	SpecialistName       string   `json:"specialist_name"`
	HandoffMessage       string   `json:"handoff_message"`
	ClinicalSummary      string   `json:"clinical_summary"`
	Recommendations      []string `json:"recommendations"`
	Medications          []string `json:"medications"`
	SpecialistAssessment string   `json:"specialist_assessment"`
}

type errorWire struct {
	Error string `json:"error"`
}

func (c *restyClient) StartConsultation(ctx context.Context, message string) (*Turn, error) {
	body, err := c.post(ctx, "/api/start-consultation", map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	return parseTurn(body, model.StageHistoryTaking)
}

func (c *restyClient) SendMessage(ctx context.Context, sessionID, message string) (*Turn, error) {
	body, err := c.post(ctx, "/api/send-message", map[string]string{
		"session_id": sessionID,
		"message":    message,
	})
	if err != nil {
		return nil, err
	}
	return parseTurn(body, "")
}

func (c *restyClient) EndConsultation(ctx context.Context, sessionID string) (*EndResult, error) {
	body, err := c.post(ctx, "/api/end-consultation", map[string]string{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	var wire struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("end-consultation payload: %w", model.ErrUpstreamContract)
	}
	return &EndResult{Summary: wire.Summary}, nil
}

func (c *restyClient) SessionStatus(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/api/session-status/" + sessionID)
	if err != nil {
		return nil, fmt.Errorf("session status: %w", model.ErrUpstream)
	}
	if resp.IsError() {
		return nil, upstreamError(resp)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("session-status payload: %w", model.ErrUpstreamContract)
	}
	return out, nil
}

func (c *restyClient) Health(ctx context.Context) (*HealthReport, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/")
	if err != nil || resp.IsError() {
		return &HealthReport{Healthy: false}, nil
	}
	var detail map[string]interface{}
	_ = json.Unmarshal(resp.Body(), &detail)
	return &HealthReport{Healthy: true, Detail: detail}, nil
}

func (c *restyClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(path)
	if err != nil {
		// Timeout and connection failure are indistinguishable from a
		// remote application error to callers.
		return nil, fmt.Errorf("%s: %v: %w", path, err, model.ErrUpstream)
	}
	if resp.IsError() {
		return nil, upstreamError(resp)
	}
	return resp.Body(), nil
}

func upstreamError(resp *resty.Response) error {
	var wire errorWire
	if err := json.Unmarshal(resp.Body(), &wire); err == nil && wire.Error != "" {
		return fmt.Errorf("%s: %w", wire.Error, model.ErrUpstream)
	}
	return fmt.Errorf("status %d: %w", resp.StatusCode(), model.ErrUpstream)
}

// parseTurn validates the upstream payload into a Turn. defaultStage fills a
// missing consultation_stage (first turn only); any unknown stage value or a
// missing doctor_response rejects the payload.
func parseTurn(body []byte, defaultStage string) (*Turn, error) {
	var wire turnWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("turn payload: %w", model.ErrUpstreamContract)
	}
	if wire.DoctorResponse == "" {
		return nil, fmt.Errorf("doctor_response missing: %w", model.ErrUpstreamContract)
	}
	stage := wire.ConsultationStage
	if stage == "" {
		stage = defaultStage
	}
	if !model.ValidStage(stage) {
		return nil, fmt.Errorf("unknown consultation_stage %q: %w", wire.ConsultationStage, model.ErrUpstreamContract)
	}
	return &Turn{
		SessionID:            wire.SessionID,
		Stage:                stage,
		DoctorResponse:       wire.DoctorResponse,
		DoctorName:           wire.DoctorName,
		IsQuestion:           wire.IsQuestion,
		QuestionCount:        wire.QuestionCount,
		MaxQuestions:         wire.MaxQuestions,
		SpecialistName:       wire.SpecialistName,
		HandoffMessage:       wire.HandoffMessage,
		ClinicalSummary:      wire.ClinicalSummary,
		Recommendations:      wire.Recommendations,
		Medications:          wire.Medications,
		SpecialistAssessment: wire.SpecialistAssessment,
	}, nil
}
