package extractor

import (
	"context"
	"errors"
	"testing"

	"mnemochat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLLM returns a canned reply and records the last request.
type fakeLLM struct {
	reply   string
	err     error
	lastReq *models.GenerateContentRequest
}

func (f *fakeLLM) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.GenerateContentResponse{
		Content: []models.Content{models.NewTextContent(models.SpeakerAssistant, f.reply)},
	}, nil
}

func (f *fakeLLM) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	ch := make(chan *models.GenerateContentResponse)
	close(ch)
	return ch, nil
}

func turn(userID, msg, reply string) *models.TurnEvent {
	return &models.TurnEvent{UserID: userID, UserMessage: msg, AssistantReply: reply}
}

func TestExtractParsesWellFormedFacts(t *testing.T) {
	f := &fakeLLM{reply: "Name: Alice (Confidence: High)\nDietary preference: Vegetarian (Confidence: Medium)"}
	e := NewLlmExtractor(f, "gpt-4o-mini")

	facts, err := e.Extract(context.Background(), turn("u1", "I'm Alice and I'm vegetarian", "Nice to meet you!"))
	require.NoError(t, err)
	require.Len(t, facts, 2)

	assert.Equal(t, "Name: Alice (Confidence: High)", facts[0].Content)
	assert.Equal(t, "Dietary preference: Vegetarian (Confidence: Medium)", facts[1].Content)
	assert.Equal(t, "u1", facts[0].UserID)
	assert.Equal(t, "conversation", facts[0].Source)
	assert.Equal(t, models.FactID("u1", facts[0].Content), facts[0].ID)
}

func TestExtractSentinelYieldsNoFacts(t *testing.T) {
	f := &fakeLLM{reply: "No facts to extract."}
	e := NewLlmExtractor(f, "")

	facts, err := e.Extract(context.Background(), turn("u1", "hello", "hi"))
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestExtractDropsMalformedLines(t *testing.T) {
	f := &fakeLLM{reply: "Here are the facts:\nOccupation: Software engineer (Confidence: High)\nThe weather is nice today"}
	e := NewLlmExtractor(f, "")

	facts, err := e.Extract(context.Background(), turn("u1", "I'm a software engineer", "Great!"))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Occupation: Software engineer (Confidence: High)", facts[0].Content)
}

func TestExtractTrimsBulletPrefixes(t *testing.T) {
	f := &fakeLLM{reply: "- Location: Lisbon (Confidence: High)"}
	e := NewLlmExtractor(f, "")

	facts, err := e.Extract(context.Background(), turn("u2", "I live in Lisbon", "Lovely city."))
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Location: Lisbon (Confidence: High)", facts[0].Content)
}

func TestExtractPropagatesTransportError(t *testing.T) {
	f := &fakeLLM{err: errors.New("connection refused")}
	e := NewLlmExtractor(f, "")

	_, err := e.Extract(context.Background(), turn("u1", "hello", "hi"))
	assert.Error(t, err)
}

func TestExtractSendsTurnAsConversation(t *testing.T) {
	f := &fakeLLM{reply: "No facts to extract."}
	e := NewLlmExtractor(f, "gpt-4o-mini")

	_, err := e.Extract(context.Background(), turn("u1", "I love hiking", "Sounds fun!"))
	require.NoError(t, err)
	require.NotNil(t, f.lastReq)
	require.Len(t, f.lastReq.Content, 2)

	assert.Equal(t, models.SpeakerSystem, f.lastReq.Content[0].Role)
	assert.Contains(t, f.lastReq.Content[1].Parts[0].Text, "I love hiking")
	assert.Contains(t, f.lastReq.Content[1].Parts[0].Text, "Sounds fun!")
	require.NotNil(t, f.lastReq.Settings)
	assert.Equal(t, "gpt-4o-mini", f.lastReq.Settings.Model)
	assert.Zero(t, f.lastReq.Settings.Temperature)
}

func TestFactIDStableAcrossWhitespaceAndCase(t *testing.T) {
	a := models.FactID("u1", "Dietary preference: Vegetarian (Confidence: Medium)")
	b := models.FactID("u1", "dietary  preference:   vegetarian (confidence: medium)")
	c := models.FactID("u2", "Dietary preference: Vegetarian (Confidence: Medium)")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
