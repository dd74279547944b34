package summaries

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/ritzau/callflow/pkg/config"
	"github.com/ritzau/callflow/pkg/logging"
	"github.com/ritzau/callflow/pkg/model"
)

const systemPrompt = "You are a helpful assistant. Summarise the following Go function in one or two sentences without repeating the function name."

// ErrNoAPIKey is returned when summaries are enabled without credentials
var ErrNoAPIKey = errors.New("OPENAI_API_KEY is not set")

// Summarizer produces a short description of one function
type Summarizer interface {
	Summarize(ctx context.Context, source string) (string, error)
}

// ChatCompleter is the part of the OpenAI client used here
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI summarizes functions with a chat completion model
type OpenAI struct {
	client ChatCompleter
	model  string
}

// NewOpenAI creates a summarizer for the given model
func NewOpenAI(client ChatCompleter, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: client, model: model}
}

// FromConfig creates the configured summarizer, or nil when summaries are disabled
func FromConfig(cfg config.SummariesConfig) (*OpenAI, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewOpenAI(openai.NewClient(cfg.APIKey), cfg.Model), nil
}

// Summarize asks the model for a one or two sentence description of source
func (o *OpenAI) Summarize(ctx context.Context, source string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: source},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Fill summarizes every function with source code and no summary yet, storing the result in its Summary.
// Failures leave the summary empty; the number of summaries written is returned.
// Only a cancelled context is reported as an error.
func Fill(ctx context.Context, s Summarizer, funcs map[string]*model.FunctionInfo, concurrency int) (int, error) {
	if concurrency < 1 {
		concurrency = 4
	}

	names := make([]string, 0, len(funcs))
	for name, info := range funcs {
		if info.SourceCode != "" && info.Summary == "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var (
		mu      sync.Mutex
		written int
		failed  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, name := range names {
		info := funcs[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary, err := s.Summarize(gctx, info.SourceCode)

			mu.Lock()
			defer mu.Unlock()
			if err != nil || summary == "" {
				failed++
				logging.Debug("Summary failed", "function", name, "error", err)
				return nil
			}
			info.Summary = summary
			written++
			return nil
		})
	}

	err := g.Wait()
	if failed > 0 {
		logging.Warn("Some summaries could not be generated", "failed", failed, "written", written)
	}
	if err == nil {
		err = ctx.Err()
	}
	return written, err
}
