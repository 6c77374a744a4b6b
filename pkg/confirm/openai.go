package confirm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/solrun-hq/solrunner/pkg/apperr"
	"github.com/solrun-hq/solrunner/pkg/config"
)

const classifyPromptTemplate = `A user was asked to confirm the following operation:

%s

Here are the most recent conversation turns, oldest first:

%s

Decide whether the user's latest reply answers the confirmation request.
Respond with exactly one word:
- CONFIRMED if the user clearly agrees to proceed
- REJECTED if the user clearly declines or cancels
- PENDING if the reply is unrelated or ambiguous`

// OpenAIClassifier reads confirmation replies with a chat model.
type OpenAIClassifier struct {
	client openai.Client
	model  string
}

var _ Classifier = (*OpenAIClassifier)(nil)

func NewOpenAIClassifier(cfg config.LLMConfig) *OpenAIClassifier {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClassifier{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, proposal string, history []Message) (Outcome, error) {
	var transcript strings.Builder
	for _, m := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}
	prompt := fmt.Sprintf(classifyPromptTemplate, proposal, transcript.String())

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return OutcomePending, apperr.Wrap(apperr.CodeUnavailable, "confirmation classification failed", err)
	}
	if len(completion.Choices) == 0 {
		return OutcomePending, apperr.New(apperr.CodeUnavailable, "confirmation classifier returned no choices")
	}

	return parseOutcome(completion.Choices[0].Message.Content), nil
}

// parseOutcome maps model output to an outcome. Anything unrecognized is
// pending: the gate fails closed.
func parseOutcome(answer string) Outcome {
	switch strings.ToUpper(strings.TrimSpace(answer)) {
	case "CONFIRMED":
		return OutcomeConfirmed
	case "REJECTED":
		return OutcomeRejected
	}
	return OutcomePending
}
