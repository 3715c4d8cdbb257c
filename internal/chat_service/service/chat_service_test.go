package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mnemochat/internal/config"
	"mnemochat/internal/models"
	"mnemochat/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init(logrus.ErrorLevel)
}

// scriptedLLM answers gate, title and chat requests differently, and
// records every request it saw.
type scriptedLLM struct {
	gateDecision string
	title        string
	reply        string
	chatErr      error
	requests     []*models.GenerateContentRequest
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	s.requests = append(s.requests, req)

	first := req.Content[0].Parts[0].Text
	switch {
	case strings.Contains(first, "retrieval of user-specific facts"):
		return textResponse(s.gateDecision), nil
	case strings.Contains(first, "give a title"):
		return textResponse(s.title), nil
	default:
		if s.chatErr != nil {
			return nil, s.chatErr
		}
		return textResponse(s.reply), nil
	}
}

func (s *scriptedLLM) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	ch := make(chan *models.GenerateContentResponse)
	close(ch)
	return ch, nil
}

// chatRequests returns the requests that were neither gate nor title calls.
func (s *scriptedLLM) chatRequests() []*models.GenerateContentRequest {
	var out []*models.GenerateContentRequest
	for _, r := range s.requests {
		first := r.Content[0].Parts[0].Text
		if strings.Contains(first, "retrieval of user-specific facts") || strings.Contains(first, "give a title") {
			continue
		}
		out = append(out, r)
	}
	return out
}

func textResponse(text string) *models.GenerateContentResponse {
	return &models.GenerateContentResponse{
		Content: []models.Content{models.NewTextContent(models.SpeakerAssistant, text)},
	}
}

type fakeConvStore struct {
	convs     map[string]*models.Conversation
	createErr error
	appendErr error
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{convs: map[string]*models.Conversation{}}
}

func (f *fakeConvStore) Create(ctx context.Context, conv *models.Conversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConvStore) Get(ctx context.Context, userID, convID string) (*models.Conversation, error) {
	conv := f.convs[convID]
	if conv == nil || conv.UserID != userID {
		return nil, nil
	}
	return conv, nil
}

func (f *fakeConvStore) ListByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, c := range f.convs {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConvStore) AppendMessages(ctx context.Context, userID, convID string, messages []models.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	conv := f.convs[convID]
	if conv == nil || conv.UserID != userID {
		return errors.New("conversation not found")
	}
	conv.Messages = append(conv.Messages, messages...)
	conv.UpdatedAt = time.Now()
	return nil
}

type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) Create(ctx context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeUsers) UpdateLastLogin(ctx context.Context, id string, t time.Time) error { return nil }

func (f *fakeUsers) UpdateSettings(ctx context.Context, id string, settings models.ChatSettings) error {
	if u := f.users[id]; u != nil {
		u.Settings = settings
	}
	return nil
}

type fakeRetriever struct {
	facts       []*models.Fact
	searchErr   error
	searchCalls int
}

func (f *fakeRetriever) Search(ctx context.Context, userID, query string, topK int) ([]*models.Fact, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.facts, nil
}

func (f *fakeRetriever) List(ctx context.Context, userID string, limit int) ([]*models.Fact, error) {
	if limit < len(f.facts) {
		return f.facts[:limit], nil
	}
	return f.facts, nil
}

type fakePublisher struct {
	events     []*models.TurnEvent
	publishErr error
}

func (f *fakePublisher) Publish(ctx context.Context, event *models.TurnEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	svc       *ChatService
	llm       *scriptedLLM
	convs     *fakeConvStore
	users     *fakeUsers
	retriever *fakeRetriever
	publisher *fakePublisher
}

func newFixture() *fixture {
	llm := &scriptedLLM{gateDecision: "SKIP", title: "Quick Chat", reply: "Hello there!"}
	convs := newFakeConvStore()
	users := &fakeUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "u1@example.com", Settings: models.DefaultChatSettings()},
	}}
	retriever := &fakeRetriever{}
	publisher := &fakePublisher{}
	cfg := config.MemoryConfig{TopK: 5, NoveltyThreshold: 0.1, MaxFactsPerUser: 100}
	svc := NewChatService(convs, users, retriever, publisher, llm, cfg, logger.New("chat_service_test", "", ""))
	return &fixture{svc: svc, llm: llm, convs: convs, users: users, retriever: retriever, publisher: publisher}
}

func TestChatStartsNewConversation(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Chat(context.Background(), "u1", "", "Hi!")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", res.Reply)
	assert.True(t, strings.HasPrefix(res.ConversationID, "u1_"))

	conv := f.convs.convs[res.ConversationID]
	require.NotNil(t, conv)
	assert.Contains(t, conv.Title, "Quick Chat - ")
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.SpeakerUser, conv.Messages[0].Role)
	assert.Equal(t, "Hi!", conv.Messages[0].Content)
	assert.Equal(t, models.SpeakerAssistant, conv.Messages[1].Role)
}

func TestChatAppendsToExistingConversation(t *testing.T) {
	f := newFixture()

	res1, err := f.svc.Chat(context.Background(), "u1", "", "Hi!")
	require.NoError(t, err)

	res2, err := f.svc.Chat(context.Background(), "u1", res1.ConversationID, "How are you?")
	require.NoError(t, err)
	assert.Equal(t, res1.ConversationID, res2.ConversationID)

	conv := f.convs.convs[res1.ConversationID]
	assert.Len(t, conv.Messages, 4)
}

func TestChatSendsHistoryToModel(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Chat(context.Background(), "u1", "", "My name is Alice")
	require.NoError(t, err)

	_, err = f.svc.Chat(context.Background(), "u1", res.ConversationID, "What did I just say?")
	require.NoError(t, err)

	chats := f.llm.chatRequests()
	require.Len(t, chats, 2)

	second := chats[1]
	// system + 2 history messages + new user message
	require.Len(t, second.Content, 4)
	assert.Equal(t, models.SpeakerSystem, second.Content[0].Role)
	assert.Equal(t, "My name is Alice", second.Content[1].Parts[0].Text)
	assert.Equal(t, "What did I just say?", second.Content[3].Parts[0].Text)
}

func TestChatUnknownConversation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Chat(context.Background(), "u1", "u1_missing", "Hi!")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestChatCannotReachAnotherUsersConversation(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Chat(context.Background(), "u1", "", "Hi!")
	require.NoError(t, err)

	_, err = f.svc.Chat(context.Background(), "u2", res.ConversationID, "Hi!")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestChatModelFailureLeavesNoTrace(t *testing.T) {
	f := newFixture()
	f.llm.chatErr = errors.New("model unavailable")

	_, err := f.svc.Chat(context.Background(), "u1", "", "Hi!")
	require.Error(t, err)

	assert.Empty(t, f.convs.convs)
	assert.Empty(t, f.publisher.events)
}

func TestChatRetrievesFactsWhenGateSaysRetrieve(t *testing.T) {
	f := newFixture()
	f.llm.gateDecision = "RETRIEVE"
	f.retriever.facts = []*models.Fact{
		{ID: "f1", UserID: "u1", Content: "Dietary preference: Vegetarian (Confidence: High)"},
	}

	_, err := f.svc.Chat(context.Background(), "u1", "", "What should I cook tonight?")
	require.NoError(t, err)
	assert.Equal(t, 1, f.retriever.searchCalls)

	chats := f.llm.chatRequests()
	require.Len(t, chats, 1)
	system := chats[0].Content[0].Parts[0].Text
	assert.Contains(t, system, "Dietary preference: Vegetarian")
}

func TestChatSkipsRetrievalWhenGateSaysSkip(t *testing.T) {
	f := newFixture()
	f.llm.gateDecision = "SKIP"

	_, err := f.svc.Chat(context.Background(), "u1", "", "What is the capital of France?")
	require.NoError(t, err)
	assert.Zero(t, f.retriever.searchCalls)

	chats := f.llm.chatRequests()
	require.Len(t, chats, 1)
	assert.Equal(t, defaultSystemPrompt, chats[0].Content[0].Parts[0].Text)
}

func TestChatDegradesWhenRetrievalFails(t *testing.T) {
	f := newFixture()
	f.llm.gateDecision = "RETRIEVE"
	f.retriever.searchErr = errors.New("index down")

	res, err := f.svc.Chat(context.Background(), "u1", "", "What should I cook?")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", res.Reply)

	chats := f.llm.chatRequests()
	assert.Equal(t, defaultSystemPrompt, chats[0].Content[0].Parts[0].Text)
}

func TestChatSurvivesPersistenceFailure(t *testing.T) {
	f := newFixture()
	f.convs.createErr = errors.New("database down")

	res, err := f.svc.Chat(context.Background(), "u1", "", "Hi!")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", res.Reply)

	// The turn event is still published for the memory pipeline.
	assert.Len(t, f.publisher.events, 1)
}

func TestChatPublishesTurnEvent(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Chat(context.Background(), "u1", "", "I'm vegetarian")
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, res.ConversationID, event.ConversationID)
	assert.Equal(t, "I'm vegetarian", event.UserMessage)
	assert.Equal(t, "Hello there!", event.AssistantReply)
}

func TestChatUsesStoredUserSettings(t *testing.T) {
	f := newFixture()
	f.users.users["u1"].Settings = models.ChatSettings{
		Model: "gpt-4o", Temperature: 1.2, TopP: 0.5, MaxTokens: 512,
	}

	_, err := f.svc.Chat(context.Background(), "u1", "", "Hi!")
	require.NoError(t, err)

	chats := f.llm.chatRequests()
	require.Len(t, chats, 1)
	require.NotNil(t, chats[0].Settings)
	assert.Equal(t, "gpt-4o", chats[0].Settings.Model)
	assert.InDelta(t, 1.2, chats[0].Settings.Temperature, 0.001)
}

func TestChatFallsBackToDefaultSettingsForUnknownUser(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Chat(context.Background(), "ghost", "", "Hi!")
	require.NoError(t, err)

	chats := f.llm.chatRequests()
	require.Len(t, chats, 1)
	assert.Equal(t, models.DefaultChatSettings(), *chats[0].Settings)
}

func TestUpdateSettingsValidation(t *testing.T) {
	f := newFixture()

	bad := []models.ChatSettings{
		{Model: "", Temperature: 0.7, TopP: 0.9, MaxTokens: 100},
		{Model: "gpt-4o-mini", Temperature: 3, TopP: 0.9, MaxTokens: 100},
		{Model: "gpt-4o-mini", Temperature: 0.7, TopP: 0, MaxTokens: 100},
		{Model: "gpt-4o-mini", Temperature: 0.7, TopP: 0.9, MaxTokens: 0},
		{Model: "gpt-4o-mini", Temperature: 0.7, TopP: 0.9, MaxTokens: 100, FrequencyPenalty: -3},
	}
	for _, s := range bad {
		assert.ErrorIs(t, f.svc.UpdateSettings(context.Background(), "u1", s), ErrInvalidSettings)
	}

	good := models.ChatSettings{Model: "gpt-4o", Temperature: 0.5, TopP: 0.8, MaxTokens: 1024}
	require.NoError(t, f.svc.UpdateSettings(context.Background(), "u1", good))

	stored, err := f.svc.GetSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, good, stored)
}

func TestListFactsUsesConfiguredCap(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		f.retriever.facts = append(f.retriever.facts, &models.Fact{ID: string(rune('a' + i)), UserID: "u1"})
	}

	facts, err := f.svc.ListFacts(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, facts, 3)
}
