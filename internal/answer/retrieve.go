package answer

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/query"
	"github.com/maim-pdmr/spiz/internal/store"
)

// Retriever fetches bounded, deduplicated article sets for the answer
// pipeline. A failing store is treated as an empty corpus: the error is
// logged and the caller sees no data, never a crash.
type Retriever struct {
	store store.Store
}

// NewRetriever wraps a Store.
func NewRetriever(st store.Store) *Retriever {
	return &Retriever{store: st}
}

// topic-search field weights: a hit in the headline is worth three body hits.
const (
	titleWeight  = 3
	kickerWeight = 2
	tagWeight    = 2
	bodyWeight   = 1
)

func baseFilter(dr query.DateRange, limit int) store.ArticleFilter {
	f := store.ArticleFilter{Limit: limit}
	if !dr.Archive {
		f.From = dr.From
		f.To = dr.To
	}
	return f
}

// Fetch returns the article set for a resolved question: byline-filtered for
// a journalist entity (with single-token widening on zero hits),
// relevance-ranked for a topic entity, otherwise the date-bounded set
// newest first. Results are deduplicated by ID.
func (r *Retriever) Fetch(ctx context.Context, dr query.DateRange, entity model.EntityMatch, limit int) []model.Article {
	switch entity.Kind {
	case model.EntityJournalist:
		return r.fetchByJournalist(ctx, dr, entity.Name, limit)
	case model.EntityTopic:
		return r.fetchByTopic(ctx, dr, entity.Name, limit)
	default:
		f := baseFilter(dr, limit)
		return dedupByID(r.search(ctx, f))
	}
}

func (r *Retriever) fetchByJournalist(ctx context.Context, dr query.DateRange, name string, limit int) []model.Article {
	f := baseFilter(dr, limit)
	f.Byline = name
	if found := r.search(ctx, f); len(found) > 0 {
		return dedupByID(found)
	}

	// Widen once: retry each name token alone to catch surname-only bylines.
	var widened []model.Article
	for _, token := range strings.Fields(name) {
		if len(token) < 3 {
			continue
		}
		f.Byline = token
		widened = append(widened, r.search(ctx, f)...)
	}
	widened = dedupByID(widened)
	sort.SliceStable(widened, func(i, j int) bool {
		return widened[i].PubDate.After(widened[j].PubDate)
	})
	if limit > 0 && len(widened) > limit {
		widened = widened[:limit]
	}
	return widened
}

func (r *Retriever) fetchByTopic(ctx context.Context, dr query.DateRange, topic string, limit int) []model.Article {
	// Over-fetch so the relevance ranking has something to reorder.
	f := baseFilter(dr, limit*4)
	f.Text = topic
	found := dedupByID(r.search(ctx, f))

	type scored struct {
		article model.Article
		score   int
	}
	ranked := make([]scored, 0, len(found))
	for _, a := range found {
		ranked = append(ranked, scored{a, topicScore(a, topic)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].article.PubDate.After(ranked[j].article.PubDate)
	})

	out := make([]model.Article, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.article)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// topicScore counts occurrences of the topic per field, weighted by where
// the hit lands. Ranking, not filtering: every fetched row already matched
// at least one field in SQL.
func topicScore(a model.Article, topic string) int {
	t := strings.ToLower(topic)
	score := strings.Count(strings.ToLower(a.Title), t) * titleWeight
	score += strings.Count(strings.ToLower(a.Kicker), t) * kickerWeight
	score += strings.Count(strings.ToLower(a.Subtitle), t) * kickerWeight
	score += strings.Count(strings.ToLower(a.Sectors), t) * tagWeight
	score += strings.Count(strings.ToLower(a.Topic), t) * tagWeight
	score += strings.Count(strings.ToLower(a.Body), t) * bodyWeight
	return score
}

func (r *Retriever) search(ctx context.Context, f store.ArticleFilter) []model.Article {
	found, err := r.store.SearchArticles(ctx, f)
	if err != nil {
		zap.L().Error("article fetch failed, treating as empty corpus",
			zap.Error(err),
			zap.String("byline", f.Byline),
			zap.String("text", f.Text),
		)
		return nil
	}
	return found
}

func dedupByID(articles []model.Article) []model.Article {
	seen := make(map[string]bool, len(articles))
	out := articles[:0:0]
	for _, a := range articles {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}
