package answer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/store"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertArticles(ctx context.Context, articles []model.Article) (int, int, error) {
	args := m.Called(ctx, articles)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStore) SearchArticles(ctx context.Context, filter store.ArticleFilter) ([]model.Article, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Article), args.Error(1)
}

func (m *mockStore) CountArticles(ctx context.Context, filter store.ArticleFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Article), args.Error(1)
}

func (m *mockStore) UpdateArticle(ctx context.Context, article model.Article) error {
	args := m.Called(ctx, article)
	return args.Error(0)
}

func (m *mockStore) DeleteArticle(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) UpdateAnalysis(ctx context.Context, id string, tone model.Tone, topic string, risk model.RiskLevel) error {
	args := m.Called(ctx, id, tone, topic, risk)
	return args.Error(0)
}

func (m *mockStore) CreateClient(ctx context.Context, client model.Client) (*model.Client, error) {
	args := m.Called(ctx, client)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockStore) ListClients(ctx context.Context) ([]model.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Client), args.Error(1)
}

func (m *mockStore) GetClientByName(ctx context.Context, name string) (*model.Client, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockStore) DeleteClient(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) CreateSource(ctx context.Context, src model.MonitoredSource) (*model.MonitoredSource, error) {
	args := m.Called(ctx, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MonitoredSource), args.Error(1)
}

func (m *mockStore) ListSources(ctx context.Context, activeOnly bool) ([]model.MonitoredSource, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MonitoredSource), args.Error(1)
}

func (m *mockStore) SetSourceActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *mockStore) DeleteSource(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockStore) UpsertMentions(ctx context.Context, mentions []model.WebMention) (int, error) {
	args := m.Called(ctx, mentions)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListMentions(ctx context.Context, filter store.MentionFilter) ([]model.WebMention, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WebMention), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ anthropic.Client = (*mockAnthropicClient)(nil)
	_ store.Store      = (*mockStore)(nil)
)
