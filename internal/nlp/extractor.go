package nlp

import (
	"context"
	"time"
)

// DateExtractor guesses a future due date from free text. Not finding one is
// a normal outcome, not an error; task creation proceeds without a due date.
type DateExtractor interface {
	ExtractFutureDate(ctx context.Context, text string) (time.Time, bool)
}

// Chain tries each extractor in order and returns the first hit.
type Chain struct {
	extractors []DateExtractor
}

func NewChain(extractors ...DateExtractor) *Chain {
	return &Chain{extractors: extractors}
}

func (c *Chain) ExtractFutureDate(ctx context.Context, text string) (time.Time, bool) {
	for _, e := range c.extractors {
		if date, ok := e.ExtractFutureDate(ctx, text); ok {
			return date, true
		}
	}
	return time.Time{}, false
}
