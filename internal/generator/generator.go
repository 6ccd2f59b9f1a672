// Package generator asks the text model for a batch of post ideas and turns
// its answer into exactly Count distinct idea texts.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/muse/internal/prompts"
	"github.com/JaimeStill/muse/pkg/formatting"
	"github.com/JaimeStill/muse/pkg/retry"
)

// Count is the number of ideas produced per run.
const Count = 5

// Completer sends one prompt to a text model and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// AgentCompleter returns a Completer that creates a go-agents agent per call
// and sends the prompt through Chat.
func AgentCompleter(cfg gaconfig.AgentConfig) Completer {
	return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		a, err := agent.New(&cfg)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrAgent, err)
		}
		resp, err := a.Chat(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("chat call: %w", err)
		}
		return resp.Content(), nil
	})
}

// System produces idea batches.
type System interface {
	// Generate returns exactly Count trimmed, distinct, non-empty ideas or an error.
	Generate(ctx context.Context) ([]string, error)
}

type generator struct {
	completer Completer
	brief     prompts.Brief
	policy    retry.Policy
	logger    *slog.Logger
}

// New creates a generator that prompts completer with brief, retrying
// failures that Transient accepts under policy.
func New(completer Completer, brief prompts.Brief, policy retry.Policy, logger *slog.Logger) System {
	return &generator{
		completer: completer,
		brief:     brief,
		policy:    policy,
		logger:    logger.With("system", "generator"),
	}
}

type ideasResponse struct {
	Ideas []string `json:"ideas"`
}

func (g *generator) Generate(ctx context.Context) ([]string, error) {
	prompt := prompts.Ideas(g.brief, Count)

	content, err := retry.Do(ctx, g.policy, g.logger, "generate ideas", func(ctx context.Context) (string, error) {
		content, err := g.completer.Complete(ctx, prompt)
		if err != nil && !Transient(err) {
			return "", retry.Permanent(err)
		}
		return content, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerate, err)
	}

	ideas, err := ParseIdeas(content, Count)
	if err != nil {
		g.logger.WarnContext(ctx, "unusable idea response", "error", err)
		return nil, err
	}

	g.logger.InfoContext(ctx, "ideas generated", "count", len(ideas))
	return ideas, nil
}

// ParseIdeas extracts count ideas from a model reply of the form
// {"ideas": [...]}, optionally wrapped in a fenced block or surrounding prose.
// Items are trimmed, empty items and case-insensitive duplicates are dropped,
// and the first count survivors are kept. Fewer survivors is ErrTooFewIdeas.
func ParseIdeas(content string, count int) ([]string, error) {
	parsed, err := formatting.Parse[ideasResponse](content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	seen := make(map[string]struct{}, len(parsed.Ideas))
	ideas := make([]string, 0, count)
	for _, raw := range parsed.Ideas {
		idea := strings.Join(strings.Fields(raw), " ")
		if idea == "" {
			continue
		}
		key := strings.ToLower(idea)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ideas = append(ideas, idea)
		if len(ideas) == count {
			return ideas, nil
		}
	}

	return nil, fmt.Errorf("%w: got %d usable of %d", ErrTooFewIdeas, len(ideas), count)
}
