package prompt

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt sizes. When the encoding cannot be loaded it
// falls back to roughly four characters per token.
type TokenCounter struct {
	once sync.Once
	load func() (*tiktoken.Tiktoken, error)
	tkm  *tiktoken.Tiktoken
}

// NewTokenCounter uses the cl100k encoding.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{load: func() (*tiktoken.Tiktoken, error) {
		return tiktoken.EncodingForModel("gpt-4-0613")
	}}
}

// Count returns the estimated token count of text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c != nil && c.load != nil {
		c.once.Do(func() {
			tkm, err := c.load()
			if err != nil {
				slog.Warn("failed to load token encoding, using estimate", "error", err.Error())
				return
			}
			c.tkm = tkm
		})
		if c.tkm != nil {
			return len(c.tkm.Encode(text, nil, nil))
		}
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
