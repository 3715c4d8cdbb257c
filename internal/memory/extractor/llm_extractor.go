package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"mnemochat/internal/llm"
	"mnemochat/internal/models"
)

// noFactsSentinel is the exact reply the model is instructed to produce
// when the turn carries nothing worth remembering.
const noFactsSentinel = "No facts to extract."

const factExtractionPrompt = `**Role**: You are an information extraction specialist. Analyze the conversation and identify ONLY permanent, verifiable facts about the user's:

**Core Categories**:
1. Personal Attributes:
   - Name, age, birth date
   - Location

2. Preferences & Lifestyle:
   - Hobbies
   - Likes/dislikes (food, activities, brands)
   - Daily habits and routines
   - Entertainment preferences (books, movies, music)
   - Shopping preferences

3. Professional Life:
   - Current job title and employer
   - Industry and specialization
   - Work history and education
   - Skills and certifications
   - Career goals and aspirations

4. Health & Wellness:
   - Allergies and dietary restrictions
   - Medical conditions and medications
   - Exercise and fitness routines
   - Sleep patterns
   - Health goals

5. Relationships & Social:
   - Family members (spouse, children, parents)
   - Relationship status
   - Close friends and colleagues
   - Pets and their details
   - Important dates (anniversaries, birthdays)

6. Technology & Digital:
   - Preferred devices and platforms
   - Frequently used apps/software
   - Tech skill level
   - Privacy preferences
   - Social media usage

7. Financial Context:
   - Budgeting habits
   - Financial goals
   - Investment interests
   - Spending patterns

8. Travel & Geography:
   - Frequent destinations
   - Travel preferences (hotels, airlines)
   - Languages spoken
   - Cultural interests
   - Future travel plans

**Rules**:
1. Extract ONLY direct statements about the user ("I prefer X") not general knowledge
2. Do not extract facts about others ("My friend likes X") or general observations
3. Ignore vague or ambiguous statements ("I like it") unless specific
4. Ignore non-factual statements ("I feel happy") unless they indicate a fact
5. DON'T extract facts that the user has not explicitly stated. Don't infer them or assume.
6. Ignore temporary states ("I'm tired today") unless health-related
7. Convert implied facts to explicit form:
   - "I always order oat milk" -> "Preference: oat milk in coffee"
8. Use this exact format for each fact:
   [Category]: [Fact detail] (Confidence: High/Medium/Low)

**Examples**:
Good:
Name: Alice (Confidence: High)
Dietary preference: Vegetarian (Confidence: Medium)
Occupation: Software engineer (Confidence: High)

Bad (rejected):
The weather is nice today (Not about user)
They talked about machine learning (Not a personal fact)
User seems tired (Temporary state)

**Output**:
Return only extracted facts in the specified format, one per line.
If you haven't found any facts, return exactly: No facts to extract.
Don't include any other text or explanations. Don't use bullet points or lists.
Don't use quotation marks.`

// factLine matches the required output format. Lines the model emits
// outside this format are dropped rather than treated as an error.
var factLine = regexp.MustCompile(`^(.+?:\s*.+?)\s*\(Confidence:\s*(High|Medium|Low)\)$`)

// LlmExtractor extracts facts from conversation turns with a language model.
type LlmExtractor struct {
	llm   llm.LLM
	model string
}

// NewLlmExtractor creates a new LlmExtractor. The model name may be empty,
// in which case the client's default model is used.
func NewLlmExtractor(llmClient llm.LLM, model string) *LlmExtractor {
	return &LlmExtractor{llm: llmClient, model: model}
}

// Extract asks the model for permanent user facts stated in the turn.
// A sentinel or unparseable reply yields zero facts, not an error;
// only transport failures propagate.
func (e *LlmExtractor) Extract(ctx context.Context, event *models.TurnEvent) ([]*models.Fact, error) {
	conversation := fmt.Sprintf("%s: %s\n%s: %s\n",
		models.SpeakerUser, event.UserMessage,
		models.SpeakerAssistant, event.AssistantReply,
	)

	req := &models.GenerateContentRequest{
		Content: []models.Content{
			models.NewTextContent(models.SpeakerSystem, factExtractionPrompt),
			models.NewTextContent(models.SpeakerUser, "Conversation:\n"+conversation),
		},
		Settings: &models.ChatSettings{Model: e.model, Temperature: 0, TopP: 1},
	}

	resp, err := e.llm.GenerateContent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fact extraction call failed: %w", err)
	}

	return parseFacts(event.UserID, resp.Text()), nil
}

// parseFacts converts the raw model reply into Fact records.
func parseFacts(userID, raw string) []*models.Fact {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == noFactsSentinel {
		return nil
	}

	now := time.Now()
	var facts []*models.Fact
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.Trim(line, "`")
		if line == "" || line == noFactsSentinel {
			continue
		}
		if !factLine.MatchString(line) {
			continue
		}
		facts = append(facts, &models.Fact{
			ID:        models.FactID(userID, line),
			UserID:    userID,
			Content:   line,
			Source:    "conversation",
			CreatedAt: now,
		})
	}
	return facts
}
