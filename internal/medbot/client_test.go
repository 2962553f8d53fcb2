package medbot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medsage/medsage-server/internal/model"
)

func newStub(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestStartConsultation(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/start-consultation", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"session_id": "abc-123",
			"doctor_response": "When did the pain start?",
			"doctor_name": "Dr. Sarah Chen",
			"is_question": true,
			"question_count": 1,
			"max_questions": 7
		}`))
	})

	turn, err := c.StartConsultation(context.Background(), "I have chest pain")
	require.NoError(t, err)
	require.Equal(t, "abc-123", turn.SessionID)
	// A first turn without an explicit stage is history taking.
	require.Equal(t, model.StageHistoryTaking, turn.Stage)
	require.True(t, turn.IsQuestion)
	require.Equal(t, 1, turn.QuestionCount)
	require.Equal(t, 7, turn.MaxQuestions)
}

func TestSendMessageSpecialistTurn(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/send-message", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"doctor_response": "Your symptoms suggest angina.",
			"consultation_stage": "specialist_consultation",
			"specialist_name": "Dr. James Wilson (Cardiology)",
			"recommendations": ["Stress test"],
			"medications": ["Aspirin 81mg"],
			"clinical_summary": "Exertional chest pain."
		}`))
	})

	turn, err := c.SendMessage(context.Background(), "abc-123", "when I climb stairs")
	require.NoError(t, err)
	require.Equal(t, model.StageSpecialistConsultation, turn.Stage)
	require.Equal(t, "Dr. James Wilson (Cardiology)", turn.SpecialistName)
	require.Equal(t, []string{"Stress test"}, turn.Recommendations)
}

func TestTurnContractViolations(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing doctor_response", `{"session_id": "abc"}`},
		{"unknown stage", `{"doctor_response": "hi", "consultation_stage": "triage"}`},
		{"continued turn without stage", `{"doctor_response": "hi"}`},
		{"not json", `<html>gateway error</html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.SendMessage(context.Background(), "abc", "hello")
			require.ErrorIs(t, err, model.ErrUpstreamContract)
		})
	}
}

func TestRemoteApplicationError(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Session not found"}`))
	})

	_, err := c.SendMessage(context.Background(), "gone", "hello")
	require.ErrorIs(t, err, model.ErrUpstream)
	require.Contains(t, err.Error(), "Session not found")
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := New(srv.URL, time.Second)

	_, err := c.StartConsultation(context.Background(), "hello")
	require.ErrorIs(t, err, model.ErrUpstream)
}

func TestTimeoutIsUpstreamError(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	slow := c.(*restyClient)
	slow.http.SetTimeout(50 * time.Millisecond)

	_, err := c.StartConsultation(context.Background(), "hello")
	require.ErrorIs(t, err, model.ErrUpstream)
}

func TestEndConsultation(t *testing.T) {
	c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/end-consultation", r.URL.Path)
		_, _ = w.Write([]byte(`{"summary": "Likely musculoskeletal pain."}`))
	})

	res, err := c.EndConsultation(context.Background(), "abc-123")
	require.NoError(t, err)
	require.Equal(t, "Likely musculoskeletal pain.", res.Summary)
}

func TestHealth(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		c := newStub(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/", r.URL.Path)
			_, _ = w.Write([]byte(`{"service": "medical-ai", "status": "running"}`))
		})
		rep, err := c.Health(context.Background())
		require.NoError(t, err)
		require.True(t, rep.Healthy)
		require.Equal(t, "running", rep.Detail["status"])
	})

	t.Run("down is a report, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		c := New(srv.URL, time.Second)
		rep, err := c.Health(context.Background())
		require.NoError(t, err)
		require.False(t, rep.Healthy)
	})
}
