package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama-gateway/internal/models"
	apperrors "ollama-gateway/internal/pkg/errors"
	"ollama-gateway/internal/repository"
)

type fakeSessionRepo struct {
	sessions map[string]*models.ChatSession
	messages []models.ChatMessage
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.ChatSession)}
}

func (f *fakeSessionRepo) key(username, sessionID string) string {
	return username + "/" + sessionID
}

func (f *fakeSessionRepo) GetSession(ctx context.Context, username, sessionID string) (*models.ChatSession, error) {
	session, ok := f.sessions[f.key(username, sessionID)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, session *models.ChatSession) error {
	f.sessions[f.key(session.Username, session.SessionID)] = session
	return nil
}

func (f *fakeSessionRepo) UpdateTitle(ctx context.Context, username, sessionID, title string) error {
	if session, ok := f.sessions[f.key(username, sessionID)]; ok {
		session.Title = title
	}
	return nil
}

func (f *fakeSessionRepo) ListSessions(ctx context.Context, username string) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	for _, s := range f.sessions {
		if s.Username == username {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (f *fakeSessionRepo) CountSessions(ctx context.Context, username string) (int64, error) {
	var count int64
	for _, s := range f.sessions {
		if s.Username == username {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepo) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeSessionRepo) ListMessages(ctx context.Context, username, sessionID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	for _, m := range f.messages {
		if m.Username == username && m.SessionID == sessionID {
			messages = append(messages, m)
		}
	}
	return messages, nil
}

func (f *fakeSessionRepo) DeleteAll(ctx context.Context) error {
	f.sessions = make(map[string]*models.ChatSession)
	f.messages = nil
	return nil
}

type fakeRunner struct {
	reply   string
	err     error
	calls   int
	removed []string
}

func (f *fakeRunner) Chat(ctx context.Context, model, prompt string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeRunner) ListInstalled(ctx context.Context) ([]string, error) {
	return []string{"llama3"}, nil
}

func (f *fakeRunner) Remove(ctx context.Context, model string) error {
	f.removed = append(f.removed, model)
	return nil
}

func newChatFixture(user *models.User, runner *fakeRunner) (ChatService, *fakeSessionRepo, repository.UsageRepository) {
	ledger := repository.NewMemoryUsageRepository(nil)
	quota := NewQuotaService(newFakeUserRepo(user), ledger)
	sessions := newFakeSessionRepo()
	return NewChatService(quota, sessions, runner), sessions, ledger
}

func TestSendHappyPath(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: "hello there"}
	chat, sessions, ledger := newChatFixture(&models.User{Username: "u", DailyLimit: 10}, runner)

	reply, adm, err := chat.Send(ctx, "u", "s1", "llama3", "hi", testDay)
	require.NoError(t, err)
	assert.True(t, adm.Allowed())
	assert.Equal(t, "hello there", reply)

	// Session is created lazily, titled after the first prompt.
	session, err := sessions.GetSession(ctx, "u", "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", session.Title)

	messages, err := sessions.ListMessages(ctx, "u", "s1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, "hello there", messages[1].Content)

	total, err := ledger.Sum(ctx, "u", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSendDeniedSkipsDispatchAndTranscript(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: "unused"}
	chat, sessions, _ := newChatFixture(&models.User{Username: "u", DailyLimit: 1}, runner)

	_, adm, err := chat.Send(ctx, "u", "s1", "llama3", "first", testDay)
	require.NoError(t, err)
	require.True(t, adm.Allowed())

	reply, adm, err := chat.Send(ctx, "u", "s1", "llama3", "second", testDay)
	require.NoError(t, err)
	assert.Equal(t, models.AdmitDeniedPerUser, adm.Status)
	assert.Empty(t, reply)

	assert.Equal(t, 1, runner.calls, "denied request must not reach the model")
	messages, err := sessions.ListMessages(ctx, "u", "s1")
	require.NoError(t, err)
	assert.Len(t, messages, 2, "denied prompt must not enter the transcript")
}

func TestSendChargeStandsWhenDispatchFails(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{err: errors.New("model crashed")}
	chat, sessions, ledger := newChatFixture(&models.User{Username: "u", DailyLimit: 10}, runner)

	reply, adm, err := chat.Send(ctx, "u", "s1", "llama3", "hi", testDay)
	require.Error(t, err)
	assert.True(t, adm.Allowed())
	assert.Empty(t, reply)

	// The admission was charged before the dispatch and is not refunded.
	total, err := ledger.Sum(ctx, "u", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// The user message is kept; no assistant reply is stored.
	messages, listErr := sessions.ListMessages(ctx, "u", "s1")
	require.NoError(t, listErr)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleUser, messages[0].Role)
}

func TestSendValidatesInput(t *testing.T) {
	runner := &fakeRunner{}
	chat, _, _ := newChatFixture(&models.User{Username: "u", DailyLimit: 10}, runner)

	_, _, err := chat.Send(context.Background(), "u", "s1", "", "hi", testDay)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = chat.Send(context.Background(), "u", "s1", "llama3", "", testDay)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, runner.calls)
}

func TestSendReusesExistingSession(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{reply: "ok"}
	chat, sessions, _ := newChatFixture(&models.User{Username: "u", DailyLimit: 10}, runner)

	_, _, err := chat.Send(ctx, "u", "s1", "llama3", "first", testDay)
	require.NoError(t, err)
	_, _, err = chat.Send(ctx, "u", "s1", "llama3", "second", testDay)
	require.NoError(t, err)

	count, err := sessions.CountSessions(ctx, "u")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	session, err := sessions.GetSession(ctx, "u", "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", session.Title, "title keeps the first prompt")
}
