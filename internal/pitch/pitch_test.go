package pitch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/store"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

var fixedNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) SearchArticles(ctx context.Context, filter store.ArticleFilter) ([]model.Article, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Article), args.Error(1)
}

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
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

var (
	_ ArticleSearcher  = (*mockSearcher)(nil)
	_ anthropic.Client = (*mockClient)(nil)
)

const release = "Acme SpA annuncia un piano di investimenti da 500 milioni nel settore energia e rinnovabili."

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func energyCorpus() []model.Article {
	return []model.Article{
		{ID: "a1", Byline: "Mario Rossi", Source: "Il Sole 24 Ore", Title: "Il futuro dell'energia in Italia", Sectors: "Energia", PubDate: day(10)},
		{ID: "a2", Byline: "Mario Rossi", Source: "Il Sole 24 Ore", Title: "Rinnovabili in crescita", Sectors: "Energia, Ambiente", PubDate: day(20)},
		{ID: "a3", Byline: "Laura Bianchi", Source: "Repubblica", Title: "Il campionato riparte", Sectors: "Sport", PubDate: day(15)},
		{ID: "a4", Byline: "N.D.", Source: "Corriere", Title: "Energia e bollette", Sectors: "Energia", PubDate: day(12)},
	}
}

func TestAffinityScore(t *testing.T) {
	analysis := ReleaseAnalysis{
		Sectors:  []string{"Energia"},
		Keywords: []string{"rinnovabili", "investimenti"},
	}

	j := journalist{
		sectors:  []string{"Energia", "Ambiente"},
		titles:   " il futuro dell'energia rinnovabili in crescita",
		articles: make([]model.Article, 5),
	}
	// One sector match, one keyword hit, half a point of volume.
	assert.InDelta(t, 3.0+1.5+0.5, affinityScore(j, analysis), 0.001)

	// No sector or keyword overlap scores zero regardless of volume.
	off := journalist{sectors: []string{"Sport"}, titles: " il campionato", articles: make([]model.Article, 40)}
	assert.Zero(t, affinityScore(off, analysis))
}

func TestAffinityScore_SubstringSectorsAndVolumeCap(t *testing.T) {
	analysis := ReleaseAnalysis{Sectors: []string{"energia e utilities"}}
	j := journalist{sectors: []string{"Energia"}, articles: make([]model.Article, 50)}
	// Bidirectional substring match; volume bonus caps at 2.0.
	assert.InDelta(t, 3.0+2.0, affinityScore(j, analysis), 0.001)
}

func TestRankJournalists_OrdersByScoreThenName(t *testing.T) {
	analysis := ReleaseAnalysis{Sectors: []string{"Energia"}}
	js := []journalist{
		{name: "Zeta", sectors: []string{"Energia"}, articles: make([]model.Article, 10)},
		{name: "Alfa", sectors: []string{"Energia"}, articles: make([]model.Article, 10)},
		{name: "Fuori", sectors: []string{"Sport"}, articles: make([]model.Article, 10)},
	}
	ranked := rankJournalists(js, analysis)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Alfa", ranked[0].name)
	assert.Equal(t, "Zeta", ranked[1].name)
}

func TestLoadJournalists_SkipsUnsignedAndGroups(t *testing.T) {
	ms := new(mockSearcher)
	ms.On("SearchArticles", mock.MatchedBy(func(_ context.Context) bool { return true }),
		mock.MatchedBy(func(f store.ArticleFilter) bool {
			return f.To.Equal(fixedNow) && f.From.Equal(fixedNow.Add(-defaultLookback))
		})).Return(energyCorpus(), nil)

	a := New(ms, nil, "", 0, func() time.Time { return fixedNow })
	journalists, err := a.loadJournalists(context.Background())
	require.NoError(t, err)
	require.Len(t, journalists, 2)

	rossi := journalists[0]
	assert.Equal(t, "Mario Rossi", rossi.name)
	assert.Equal(t, "Il Sole 24 Ore", rossi.source)
	assert.Len(t, rossi.articles, 2)
	assert.ElementsMatch(t, []string{"Energia", "Ambiente"}, rossi.sectors)
	assert.Contains(t, rossi.titles, "rinnovabili in crescita")
}

func TestSuggest_RejectsShortRelease(t *testing.T) {
	a := New(new(mockSearcher), new(mockClient), "", 0, nil)
	_, err := a.Suggest(context.Background(), "troppo corto")
	assert.ErrorIs(t, err, ErrReleaseTooShort)
}

func TestSuggest_EndToEnd(t *testing.T) {
	ms := new(mockSearcher)
	ms.On("SearchArticles", mock.Anything, mock.Anything).Return(energyCorpus(), nil)

	mc := new(mockClient)
	// Analysis call: JSON contract, temperature pinned to zero.
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Temperature != nil && *req.Temperature == 0 &&
			len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Acme SpA")
	})).Return(textResponse(`{"tema": "Piano investimenti energia", "settori": ["Energia"], "keywords": ["rinnovabili"], "sintesi": "Acme investe."}`), nil).Once()
	// Explanation call for the single ranked journalist.
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Mario Rossi")
	})).Return(textResponse("Copre da mesi il settore energia sul Sole 24 Ore."), nil).Once()

	a := New(ms, mc, "", 0, func() time.Time { return fixedNow })
	result, err := a.Suggest(context.Background(), release)
	require.NoError(t, err)

	assert.Equal(t, "Piano investimenti energia", result.Analysis.Theme)
	require.Len(t, result.Suggestions, 1)

	s := result.Suggestions[0]
	assert.Equal(t, "Mario Rossi", s.Name)
	assert.Equal(t, "Il Sole 24 Ore", s.Source)
	assert.Equal(t, 2, s.Articles)
	// One sector match, one keyword hit, 0.2 volume.
	assert.InDelta(t, 3.0+1.5+0.2, s.Score, 0.001)
	assert.Equal(t, "Copre da mesi il settore energia sul Sole 24 Ore.", s.Explanation)
	// Recent evidence sorted newest first.
	require.Len(t, s.Recent, 2)
	assert.Equal(t, "a2", s.Recent[0].ID)
	mc.AssertExpectations(t)
}

func TestSuggest_ExplanationFallback(t *testing.T) {
	ms := new(mockSearcher)
	ms.On("SearchArticles", mock.Anything, mock.Anything).Return(energyCorpus(), nil)

	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Temperature != nil
	})).Return(textResponse(`{"tema": "Energia", "settori": ["Energia"], "keywords": [], "sintesi": ""}`), nil).Once()
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Temperature == nil
	})).Return(nil, assert.AnError)

	a := New(ms, mc, "", 0, func() time.Time { return fixedNow })
	result, err := a.Suggest(context.Background(), release)
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "Ha scritto 2 articoli su Energia, Ambiente.", result.Suggestions[0].Explanation)
}

func TestSuggest_NoJournalists(t *testing.T) {
	ms := new(mockSearcher)
	ms.On("SearchArticles", mock.Anything, mock.Anything).
		Return([]model.Article{{Byline: "Anonimo", Title: "Senza firma"}}, nil)

	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"tema": "Energia", "settori": ["Energia"], "keywords": [], "sintesi": ""}`), nil).Once()

	a := New(ms, mc, "", 0, func() time.Time { return fixedNow })
	_, err := a.Suggest(context.Background(), release)
	assert.ErrorContains(t, err, "no journalists")
}

func TestSuggest_BadAnalysisJSON(t *testing.T) {
	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse("non un json"), nil).Once()

	a := New(new(mockSearcher), mc, "", 0, nil)
	_, err := a.Suggest(context.Background(), release)
	assert.ErrorContains(t, err, "parse analysis json")
}

func TestSuggest_TopNCapsResults(t *testing.T) {
	corpus := []model.Article{
		{ID: "a1", Byline: "Uno", Source: "S1", Title: "Energia oggi", Sectors: "Energia", PubDate: day(1)},
		{ID: "a2", Byline: "Due", Source: "S2", Title: "Energia domani", Sectors: "Energia", PubDate: day(2)},
		{ID: "a3", Byline: "Tre", Source: "S3", Title: "Energia sempre", Sectors: "Energia", PubDate: day(3)},
	}
	ms := new(mockSearcher)
	ms.On("SearchArticles", mock.Anything, mock.Anything).Return(corpus, nil)

	mc := new(mockClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Temperature != nil
	})).Return(textResponse(`{"tema": "Energia", "settori": ["Energia"], "keywords": [], "sintesi": ""}`), nil).Once()
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Temperature == nil
	})).Return(textResponse("Adatto."), nil).Twice()

	a := New(ms, mc, "", 2, func() time.Time { return fixedNow })
	result, err := a.Suggest(context.Background(), release)
	require.NoError(t, err)
	assert.Len(t, result.Suggestions, 2)
	mc.AssertExpectations(t)
}
