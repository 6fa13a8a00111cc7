package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// Chat framing overhead, per OpenAI's cookbook for cl100k/o200k models.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	assistantPriming = 3
)

// OpenAICounter counts tokens for OpenAI models using tiktoken.
type OpenAICounter struct {
	matcher *ModelMatcher
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewOpenAICounter creates a new OpenAI token counter.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{
		matcher: NewModelMatcher(
			[]string{"gpt-", "o1", "o3", "o4", "text-embedding", "chatgpt-"},
			nil,
		),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

func (c *OpenAICounter) getCodec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps model names to encoding names when tiktoken does not
// know the exact model.
//
// Encoding reference:
// - O200kBase: GPT-4o, GPT-4.1, GPT-5, o-series and newer models
// - Cl100kBase: GPT-4, GPT-3.5-turbo, text-embedding-*
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "text-embedding"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// CountText counts tokens for a plain text string.
func (c *OpenAICounter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountChat counts a chat prompt the way the chat completions API bills it.
func (c *OpenAICounter) CountChat(model string, turns []ports.ChatTurn) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, turn := range turns {
		total += tokensPerMessage + tokensPerRole
		ids, _, err := codec.Encode(turn.Content)
		if err != nil {
			return 0, err
		}
		total += len(ids)
	}
	return total + assistantPriming, nil
}

// SupportsModel returns true for OpenAI models.
func (c *OpenAICounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}
