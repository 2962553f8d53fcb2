package services

import (
	"context"
	"sync"
	"time"

	"github.com/medsage/medsage-server/internal/medbot"
	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/store"
)

// --- Fakes ---

// fakeStore is an in-memory store.Store with the same conflict, TTL and
// version semantics as the Mongo implementation.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*model.User             // by ID
	sessions map[string]*model.TempConversation // by sessionID
	now      func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.TempConversation),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (f *fakeStore) Users() store.Users       { return &fakeUsers{f} }
func (f *fakeStore) Sessions() store.Sessions { return &fakeSessions{f} }

func (f *fakeStore) addUser(u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
}

type fakeUsers struct{ p *fakeStore }

func (u *fakeUsers) Create(_ context.Context, in *model.User) (*model.User, error) {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	for _, existing := range u.p.users {
		if existing.Email == in.Email || existing.Username == in.Username {
			return nil, model.ErrConflict
		}
	}
	cp := *in
	u.p.users[in.ID] = &cp
	out := cp
	return &out, nil
}

func (u *fakeUsers) GetByID(_ context.Context, userID string) (*model.User, error) {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	existing, ok := u.p.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *existing
	return &cp, nil
}

func (u *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	for _, existing := range u.p.users {
		if existing.Email == email {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (u *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	for _, existing := range u.p.users {
		if existing.Username == username {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (u *fakeUsers) UpdateProfile(_ context.Context, userID, username string, p model.Profile) (*model.User, error) {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	existing, ok := u.p.users[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	for id, other := range u.p.users {
		if id != userID && other.Username == username {
			return nil, model.ErrConflict
		}
	}
	existing.Username = username
	existing.Profile = p
	cp := *existing
	return &cp, nil
}

func (u *fakeUsers) RecordLogin(_ context.Context, userID, refreshToken string, at time.Time) error {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	existing, ok := u.p.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	t := at
	existing.LastLogin = &t
	existing.RefreshTokens = append(existing.RefreshTokens, refreshToken)
	return nil
}

func (u *fakeUsers) RemoveRefreshToken(_ context.Context, userID, refreshToken string) error {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	existing, ok := u.p.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	kept := existing.RefreshTokens[:0]
	for _, t := range existing.RefreshTokens {
		if t != refreshToken {
			kept = append(kept, t)
		}
	}
	existing.RefreshTokens = kept
	return nil
}

func (u *fakeUsers) AppendConversation(_ context.Context, userID string, conv *model.MedicalConversation) error {
	u.p.mu.Lock()
	defer u.p.mu.Unlock()
	existing, ok := u.p.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	for _, c := range existing.Conversations {
		if c.ConversationID == conv.ConversationID {
			return model.ErrConflict
		}
	}
	existing.Conversations = append(existing.Conversations, *conv)
	return nil
}

type fakeSessions struct{ p *fakeStore }

func (s *fakeSessions) Create(_ context.Context, in *model.TempConversation) (*model.TempConversation, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if _, ok := s.p.sessions[in.SessionID]; ok {
		return nil, model.ErrConflict
	}
	cp := *in
	s.p.sessions[in.SessionID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeSessions) active(userID, sessionID string) *model.TempConversation {
	sess, ok := s.p.sessions[sessionID]
	if !ok || sess.UserID != userID || !sess.IsActive || !sess.ExpiresAt.After(s.p.now()) {
		return nil
	}
	return sess
}

func (s *fakeSessions) GetActive(_ context.Context, userID, sessionID string) (*model.TempConversation, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	sess := s.active(userID, sessionID)
	if sess == nil {
		return nil, model.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeSessions) AppendTurn(_ context.Context, userID, sessionID string, expectedVersion int64, upd store.SessionUpdate) (*model.TempConversation, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	sess := s.active(userID, sessionID)
	if sess == nil {
		return nil, model.ErrNotFound
	}
	if sess.Version != expectedVersion {
		return nil, model.ErrOptimisticConflict
	}
	sess.Messages = append(sess.Messages, upd.Messages...)
	sess.CurrentStage = upd.Stage
	if upd.SpecialistInfo != nil {
		sess.SpecialistInfo = upd.SpecialistInfo
	}
	if upd.Summary != nil {
		sess.Summary = upd.Summary
	}
	sess.Version++
	cp := *sess
	return &cp, nil
}

func (s *fakeSessions) Deactivate(_ context.Context, userID, sessionID string) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	sess := s.active(userID, sessionID)
	if sess == nil {
		return model.ErrNotFound
	}
	sess.IsActive = false
	return nil
}

// fakeBot is a scripted medbot.Client.
type fakeBot struct {
	startTurn *medbot.Turn
	startErr  error
	sendTurn  *medbot.Turn
	sendErr   error
	endRes    *medbot.EndResult
	endErr    error

	sentSessionIDs []string
	endSessionIDs  []string

	// onSend runs inside SendMessage, before returning. Used to simulate a
	// concurrent writer racing the turn append.
	onSend func()
}

func (b *fakeBot) StartConsultation(context.Context, string) (*medbot.Turn, error) {
	if b.startErr != nil {
		return nil, b.startErr
	}
	cp := *b.startTurn
	return &cp, nil
}

func (b *fakeBot) SendMessage(_ context.Context, sessionID, _ string) (*medbot.Turn, error) {
	b.sentSessionIDs = append(b.sentSessionIDs, sessionID)
	if b.onSend != nil {
		b.onSend()
	}
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	cp := *b.sendTurn
	return &cp, nil
}

func (b *fakeBot) EndConsultation(_ context.Context, sessionID string) (*medbot.EndResult, error) {
	b.endSessionIDs = append(b.endSessionIDs, sessionID)
	if b.endErr != nil {
		return nil, b.endErr
	}
	if b.endRes == nil {
		return &medbot.EndResult{}, nil
	}
	cp := *b.endRes
	return &cp, nil
}

func (b *fakeBot) SessionStatus(context.Context, string) (map[string]interface{}, error) {
	return map[string]interface{}{"status": "ok"}, nil
}

func (b *fakeBot) Health(context.Context) (*medbot.HealthReport, error) {
	return &medbot.HealthReport{Healthy: true}, nil
}
