package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"telegram-horoscope-bot/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter talks to any Chat Completions compatible endpoint
// (OpenAI itself, GigaChat or Metis gateways via baseURL).
type OpenAIAdapter struct {
	client openai.Client
	model  string
	maxOut int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewOpenAIAdapter(apiKey, baseURL, model string, maxOut int) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		maxOut: maxOut,
	}, nil
}

func (o *OpenAIAdapter) Provider() string { return "openai" }
func (o *OpenAIAdapter) Model() string    { return o.model }

func (o *OpenAIAdapter) Chat(ctx context.Context, messages []adapter.Message) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("openai: no messages")
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: toOpenAIMessages(messages),
	}
	if o.maxOut > 0 {
		params.MaxTokens = openai.Int(int64(o.maxOut))
	}

	res, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, fmt.Errorf("openai chat: %w", err)
	}

	var text string
	for _, c := range res.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			text = c.Message.Content
			break
		}
	}
	if text == "" {
		return "", adapter.Usage{}, errors.New("openai: no choice content")
	}

	u := adapter.Usage{
		PromptTokens:     int(res.Usage.PromptTokens),
		CompletionTokens: int(res.Usage.CompletionTokens),
		TotalTokens:      int(res.Usage.TotalTokens),
	}
	// some compatible gateways omit usage
	if u.TotalTokens == 0 {
		u.PromptTokens = o.countTokens(messages)
		u.CompletionTokens = o.countTokens([]adapter.Message{{Content: text}})
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return text, u, nil
}

func (o *OpenAIAdapter) countTokens(messages []adapter.Message) int {
	o.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(o.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err == nil {
			o.enc = enc
		}
	})
	n := 0
	for _, m := range messages {
		if o.enc != nil {
			n += len(o.enc.Encode(m.Content, nil, nil))
		} else {
			n += roughTokens(m.Content)
		}
	}
	return n
}

// roughTokens is used when no BPE table can be loaded: about 4 bytes per token.
func roughTokens(s string) int {
	if s == "" {
		return 0
	}
	return len(s)/4 + 1
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
