package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type gptDateResponse struct {
	Date string `json:"date"`
}

// GPTExtractor asks a chat model for the due date implied by the text. Any
// failure falls through to the next extractor in the chain.
type GPTExtractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
	now         func() time.Time
}

func NewGPTExtractor(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTExtractor {
	return &GPTExtractor{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
		now:         time.Now,
	}
}

func (e *GPTExtractor) ExtractFutureDate(ctx context.Context, text string) (time.Time, bool) {
	today := dateOnly(e.now())

	prompt := fmt.Sprintf(`Today is %s. Extract the due date the following text implies, if any.

Return the response as a JSON object with this structure:
{
    "date": "YYYY-MM-DD"
}

Use null for the date when the text implies none.

Text: %s`, today.Format("2006-01-02"), text)

	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   e.maxTokens,
			Temperature: float32(e.temperature),
		},
	)
	if err != nil {
		e.logger.Error("Failed to get GPT response", zap.Error(err))
		return time.Time{}, false
	}

	var parsed gptDateResponse
	response := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		e.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return time.Time{}, false
	}
	if parsed.Date == "" {
		return time.Time{}, false
	}

	date, err := time.ParseInLocation("2006-01-02", parsed.Date, time.UTC)
	if err != nil {
		e.logger.Error("GPT returned an unparseable date",
			zap.Error(err),
			zap.String("date", parsed.Date))
		return time.Time{}, false
	}
	return rollForward(date, today), true
}
