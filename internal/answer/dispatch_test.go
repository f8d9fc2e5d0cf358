package answer

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(new(mockAnthropicClient), "", "", 0)
	assert.Equal(t, DefaultCapableModel, d.capableModel)
	assert.Equal(t, DefaultFastModel, d.fastModel)
	assert.Equal(t, DefaultCallTimeout, d.timeout)
}

func TestComplete_RoutesByTier(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == DefaultCapableModel && req.MaxTokens == 8000
	})).Return(textResponse("risposta"), nil).Once()

	d := NewDispatcher(mc, "", "", 0)
	text, err := d.Complete(context.Background(), "system", nil, Tier{MaxTokens: 8000, Capable: true})
	require.NoError(t, err)
	assert.Equal(t, "risposta", text)
	mc.AssertExpectations(t)
}

func TestComplete_FastTierNeverTouchesCapableModel(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == DefaultFastModel
	})).Return(textResponse("veloce"), nil).Once()

	d := NewDispatcher(mc, "", "", 0)
	text, err := d.Complete(context.Background(), "system", nil, Tier{MaxTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, "veloce", text)
	mc.AssertExpectations(t)
}

func TestComplete_FallsBackWithClampedBudget(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == DefaultCapableModel && req.MaxTokens == 8000
	})).Return(nil, eris.New("overloaded")).Once()
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == DefaultFastModel && req.MaxTokens == fallbackMaxTokens
	})).Return(textResponse("ripiego"), nil).Once()

	d := NewDispatcher(mc, "", "", 0)
	text, err := d.Complete(context.Background(), "system", nil, Tier{MaxTokens: 8000, Capable: true})
	require.NoError(t, err)
	assert.Equal(t, "ripiego", text)
	mc.AssertExpectations(t)
}

func TestComplete_BothTiersFail(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("overloaded")).Twice()

	d := NewDispatcher(mc, "", "", 0)
	_, err := d.Complete(context.Background(), "system", nil, Tier{MaxTokens: 2000, Capable: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion fallback")
	mc.AssertExpectations(t)
}

func TestComplete_PassesSystemBlocksAndTemperature(t *testing.T) {
	mc := new(mockAnthropicClient)
	var got anthropic.MessageRequest
	mc.On("CreateMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(anthropic.MessageRequest)
	}).Return(textResponse("ok"), nil).Once()

	d := NewDispatcher(mc, "", "", 0)
	_, err := d.Complete(context.Background(), "istruzioni di sistema", []anthropic.Message{
		{Role: "user", Content: "domanda"},
	}, Tier{MaxTokens: 2000})
	require.NoError(t, err)

	require.Len(t, got.System, 1)
	assert.Equal(t, "istruzioni di sistema", got.System[0].Text)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, completionTemperature, *got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
}
