package answer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

// Default model tiers and the per-call timeout.
const (
	DefaultCapableModel = "claude-sonnet-4-5-20250929"
	DefaultFastModel    = "claude-haiku-4-5-20251001"
	DefaultCallTimeout  = 30 * time.Second

	// fallbackMaxTokens clamps the output budget on the retry tier.
	fallbackMaxTokens = 4000

	completionTemperature = 0.1
)

// Dispatcher routes an assembled prompt to the completion backend: the
// capable model for heavyweight intents, the fast model otherwise, with a
// single clamped fallback to the fast model on any failure. Two tiers, no
// retry loop.
type Dispatcher struct {
	client       anthropic.Client
	capableModel string
	fastModel    string
	timeout      time.Duration
}

// NewDispatcher builds a dispatcher. Empty model names and a zero timeout
// select the defaults.
func NewDispatcher(client anthropic.Client, capableModel, fastModel string, timeout time.Duration) *Dispatcher {
	if capableModel == "" {
		capableModel = DefaultCapableModel
	}
	if fastModel == "" {
		fastModel = DefaultFastModel
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Dispatcher{
		client:       client,
		capableModel: capableModel,
		fastModel:    fastModel,
		timeout:      timeout,
	}
}

// Complete sends the prompt and returns the generated text. A timeout is
// treated like any other failure: one fallback on the fast model with a
// clamped budget, then the error surfaces.
func (d *Dispatcher) Complete(ctx context.Context, system string, msgs []anthropic.Message, tier Tier) (string, error) {
	model := d.fastModel
	if tier.Capable {
		model = d.capableModel
	}

	text, err := d.call(ctx, model, tier.MaxTokens, system, msgs)
	if err == nil {
		return text, nil
	}
	zap.L().Warn("completion failed, falling back to fast model",
		zap.String("model", model),
		zap.Error(err),
	)

	budget := tier.MaxTokens
	if budget > fallbackMaxTokens {
		budget = fallbackMaxTokens
	}
	text, fallbackErr := d.call(ctx, d.fastModel, budget, system, msgs)
	if fallbackErr != nil {
		return "", eris.Wrap(fallbackErr, "answer: completion fallback")
	}
	return text, nil
}

func (d *Dispatcher) call(ctx context.Context, model string, maxTokens int64, system string, msgs []anthropic.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	temp := completionTemperature
	resp, err := d.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system),
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(model, "answer")
	return resp.Text(), nil
}
