package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mnemochat/internal/config"
	"mnemochat/internal/chat_service/store"
	"mnemochat/internal/llm"
	"mnemochat/internal/models"
	userstore "mnemochat/internal/user_service/store"
	"mnemochat/pkg/logger"
)

const defaultSystemPrompt = "You are a helpful assistant."

const retrievalGatePrompt = `**Task**: Analyze the conversation and determine if retrieval of user-specific facts is needed to answer the query.

**Decision Guidelines**:

1. **RETRIEVE** when:
   **Answering the query requires knowing additional information about the user**:
   - Demographics: Name, age, location, birthday
   - Preferences: Likes/dislikes, habits, routines
   - Professional: Job, education, skills, career goals
   - Health: Allergies, conditions, medications, fitness
   - Relationships: Family, friends, pets, status
   - Tech: Devices, apps, privacy preferences
   - Financial: Budgets, goals, spending habits
   - Travel: Frequent destinations, preferences

   **Verification Needed**:
   - References to past user statements ("As I mentioned before...")
   - Requests involving personal history

   **User explicitly asks about their own information**

2. **SKIP** when:
   - Query can be answered with general knowledge
   - Answer is present in the conversation
   - Follow-up to your previous response
   - Contains all needed information in the message
   - Is a clarification or rephrasing

**Special Cases**:
- If uncertain, default to SKIP
- Never retrieve for sensitive information requests

**Output Format**:
Respond with EXACTLY ONE of these:
- "RETRIEVE"
- "SKIP"`

const titlePrompt = "Your task is to give a title to the messages below. Make the title 3-4 words long. Messages: %s"

// ErrConversationNotFound is returned when the conversation does not
// exist or belongs to another user. The two cases are indistinguishable
// on purpose.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrInvalidSettings is returned when submitted chat settings fall
// outside the accepted parameter ranges.
var ErrInvalidSettings = errors.New("invalid chat settings")

// FactRetriever is the read side of the long-term memory index.
type FactRetriever interface {
	Search(ctx context.Context, userID, query string, topK int) ([]*models.Fact, error)
	List(ctx context.Context, userID string, limit int) ([]*models.Fact, error)
}

// TurnPublisher publishes a finished conversation turn for asynchronous
// fact extraction.
type TurnPublisher interface {
	Publish(ctx context.Context, event *models.TurnEvent) error
}

// ChatResult is the outcome of one conversation turn.
type ChatResult struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// ChatService orchestrates a conversation turn: retrieval gating, fact
// retrieval, prompt assembly, the model call, persistence and the turn
// event hand-off to the memory pipeline.
type ChatService struct {
	convs     store.ConversationStore
	users     userstore.UserStore
	facts     FactRetriever
	publisher TurnPublisher
	llm       llm.LLM
	cfg       config.MemoryConfig
	logger    *logger.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(convs store.ConversationStore, users userstore.UserStore, facts FactRetriever, publisher TurnPublisher, llmClient llm.LLM, cfg config.MemoryConfig, log *logger.Logger) *ChatService {
	return &ChatService{
		convs:     convs,
		users:     users,
		facts:     facts,
		publisher: publisher,
		llm:       llmClient,
		cfg:       cfg,
		logger:    log,
	}
}

// Chat runs one conversation turn. An empty convID starts a new
// conversation. Nothing is persisted when the model call fails; when
// persistence fails after a successful call, the reply is still
// returned and the failure is only logged.
func (s *ChatService) Chat(ctx context.Context, userID, convID, message string) (*ChatResult, error) {
	log := s.logger.WithUser(userID)

	settings := s.settingsFor(ctx, userID)

	var conv *models.Conversation
	if convID != "" {
		var err error
		conv, err = s.convs.Get(ctx, userID, convID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
	}

	var history []models.Message
	if conv != nil {
		history = conv.Messages
	}

	// Gate, then retrieve. Both degrade rather than fail the turn: a
	// broken memory index must not take the chat down with it.
	systemPrompt := defaultSystemPrompt
	if s.shouldRetrieve(ctx, history, message, settings) {
		facts, err := s.facts.Search(ctx, userID, message, s.cfg.TopK)
		if err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("fact retrieval failed, answering without context")
		} else if len(facts) > 0 {
			systemPrompt = contextSystemPrompt(facts)
		}
	}

	req := &models.GenerateContentRequest{
		Content:  buildTurnContents(systemPrompt, history, message),
		Settings: &settings,
	}
	resp, err := s.llm.GenerateContent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	reply := resp.Text()

	now := time.Now()
	turn := []models.Message{
		{Role: models.SpeakerUser, Content: message, CreatedAt: now},
		{Role: models.SpeakerAssistant, Content: reply, CreatedAt: now},
	}

	if conv == nil {
		conv = &models.Conversation{
			ID:        store.NewConversationID(userID),
			UserID:    userID,
			Title:     fmt.Sprintf("%s - %s", s.nameConversation(ctx, message, settings), now.Format("2006-01-02 15:04:05")),
			Messages:  turn,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to persist new conversation")
		}
	} else {
		if err := s.convs.AppendMessages(ctx, userID, conv.ID, turn); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to append messages")
		}
	}

	event := &models.TurnEvent{
		UserID:         userID,
		ConversationID: conv.ID,
		UserMessage:    message,
		AssistantReply: reply,
		CreatedAt:      now,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to publish turn event")
	}

	return &ChatResult{ConversationID: conv.ID, Reply: reply}, nil
}

// ListConversations returns the user's conversation history, newest
// activity first, without message bodies.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return s.convs.ListByUser(ctx, userID)
}

// GetConversation returns a single conversation with its messages.
func (s *ChatService) GetConversation(ctx context.Context, userID, convID string) (*models.Conversation, error) {
	conv, err := s.convs.Get(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// GetSettings returns the user's current chat settings.
func (s *ChatService) GetSettings(ctx context.Context, userID string) (models.ChatSettings, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.ChatSettings{}, err
	}
	if user == nil {
		return models.ChatSettings{}, errors.New("user not found")
	}
	return user.Settings, nil
}

// UpdateSettings validates and stores new chat settings for the user.
func (s *ChatService) UpdateSettings(ctx context.Context, userID string, settings models.ChatSettings) error {
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.users.UpdateSettings(ctx, userID, settings)
}

// ListFacts returns what the assistant remembers about the user.
func (s *ChatService) ListFacts(ctx context.Context, userID string) ([]*models.Fact, error) {
	return s.facts.List(ctx, userID, s.cfg.MaxFactsPerUser)
}

// settingsFor loads the user's chat settings, falling back to defaults
// when the user document cannot be read.
func (s *ChatService) settingsFor(ctx context.Context, userID string) models.ChatSettings {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		if err != nil {
			s.logger.WithUser(userID).WithError(models.ErrorInfo{Message: err.Error()}).Warn("failed to load user settings, using defaults")
		}
		return models.DefaultChatSettings()
	}
	if user.Settings.Model == "" {
		return models.DefaultChatSettings()
	}
	return user.Settings
}

// shouldRetrieve asks the gate model whether the query needs
// user-specific facts. Anything but an explicit RETRIEVE, including a
// gate failure, means skip.
func (s *ChatService) shouldRetrieve(ctx context.Context, history []models.Message, query string, settings models.ChatSettings) bool {
	gateSettings := settings
	if s.cfg.RetrievalGateModel != "" {
		gateSettings.Model = s.cfg.RetrievalGateModel
	}
	gateSettings.Temperature = 0

	var histText strings.Builder
	for _, m := range history {
		fmt.Fprintf(&histText, "%s: %s\n", m.Role, m.Content)
	}

	req := &models.GenerateContentRequest{
		Content: []models.Content{
			models.NewTextContent(models.SpeakerSystem, retrievalGatePrompt),
			models.NewTextContent(models.SpeakerUser, fmt.Sprintf("Current conversation: %s\n\nQuery to analyze: %s", histText.String(), query)),
		},
		Settings: &gateSettings,
	}

	resp, err := s.llm.GenerateContent(ctx, req)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("retrieval gate failed, skipping retrieval")
		return false
	}
	return strings.TrimSpace(resp.Text()) == "RETRIEVE"
}

// nameConversation asks the model for a 3-4 word title. A failed call
// falls back to a static title rather than failing the turn.
func (s *ChatService) nameConversation(ctx context.Context, message string, settings models.ChatSettings) string {
	req := &models.GenerateContentRequest{
		Content: []models.Content{
			models.NewTextContent(models.SpeakerUser, fmt.Sprintf(titlePrompt, message)),
		},
		Settings: &settings,
	}
	resp, err := s.llm.GenerateContent(ctx, req)
	if err != nil {
		s.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("failed to name conversation")
		return "New conversation"
	}
	title := strings.TrimSpace(strings.Trim(resp.Text(), "\"'"))
	if title == "" {
		return "New conversation"
	}
	return title
}

// contextSystemPrompt embeds retrieved facts into the system prompt.
func contextSystemPrompt(facts []*models.Fact) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant.\n")
	sb.WriteString("Please answer the question based on the context provided.\n")
	sb.WriteString("If no context is available, answer based on your knowledge.\n")
	sb.WriteString("If the context is not relevant, ignore it.\n")
	sb.WriteString("Context:\n")
	for _, f := range facts {
		sb.WriteString("- ")
		sb.WriteString(f.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// buildTurnContents lays out the model request: system prompt first,
// then the stored history in order, then the new user message.
func buildTurnContents(systemPrompt string, history []models.Message, message string) []models.Content {
	contents := make([]models.Content, 0, len(history)+2)
	contents = append(contents, models.NewTextContent(models.SpeakerSystem, systemPrompt))
	for _, m := range history {
		contents = append(contents, models.NewTextContent(m.Role, m.Content))
	}
	contents = append(contents, models.NewTextContent(models.SpeakerUser, message))
	return contents
}

// validateSettings checks the submitted parameters against the ranges
// the model providers accept.
func validateSettings(s models.ChatSettings) error {
	switch {
	case s.Model == "":
		return fmt.Errorf("%w: model must not be empty", ErrInvalidSettings)
	case s.Temperature < 0 || s.Temperature > 2:
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidSettings)
	case s.TopP <= 0 || s.TopP > 1:
		return fmt.Errorf("%w: top_p must be between 0 and 1", ErrInvalidSettings)
	case s.MaxTokens <= 0 || s.MaxTokens > 16384:
		return fmt.Errorf("%w: max_tokens must be between 1 and 16384", ErrInvalidSettings)
	case s.FrequencyPenalty < -2 || s.FrequencyPenalty > 2:
		return fmt.Errorf("%w: frequency_penalty must be between -2 and 2", ErrInvalidSettings)
	case s.PresencePenalty < -2 || s.PresencePenalty > 2:
		return fmt.Errorf("%w: presence_penalty must be between -2 and 2", ErrInvalidSettings)
	}
	return nil
}
