package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/query"
	"github.com/maim-pdmr/spiz/internal/session"
	"github.com/maim-pdmr/spiz/internal/store"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

// ErrEmptyQuestion rejects questions shorter than two characters before any
// downstream work.
var ErrEmptyQuestion = eris.New("answer: question empty or too short")

// aiUnavailableMessage is the single user-facing string for an exhausted
// completion fallback.
const aiUnavailableMessage = "Il servizio di analisi non e' al momento disponibile. Riprova tra qualche minuto."

// statsFetchLimit caps the period-wide set used for corpus statistics.
const statsFetchLimit = 1000

// Request is one question to answer.
type Request struct {
	Question  string     `json:"question"`
	SessionID string     `json:"session_id,omitempty"`
	Client    string     `json:"client,omitempty"`
	Hint      query.Hint `json:"context,omitempty"`
}

// Response is the answer plus the resolution metadata the caller may want
// to display.
type Response struct {
	Answer   string       `json:"answer"`
	Intent   model.Intent `json:"intent"`
	IsReport bool         `json:"is_report"`
	From     time.Time    `json:"from,omitempty"`
	To       time.Time    `json:"to,omitempty"`
	Archive  bool         `json:"archive,omitempty"`
	Articles int          `json:"articles"`
}

// Service wires the resolution pipeline: temporal/intent/entity resolution,
// retrieval, direct resolvers and the completion dispatcher.
type Service struct {
	store      store.Store
	sessions   session.Store
	retriever  *Retriever
	dispatcher *Dispatcher
	rules      []query.IntentRule
	now        func() time.Time
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	CapableModel string
	FastModel    string
	CallTimeout  time.Duration
	IntentRules  []query.IntentRule
	Now          func() time.Time
}

// NewService builds the answer service.
func NewService(st store.Store, sessions session.Store, client anthropic.Client, opts Options) *Service {
	rules := opts.IntentRules
	if rules == nil {
		rules = query.DefaultIntentRules()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      st,
		sessions:   sessions,
		retriever:  NewRetriever(st),
		dispatcher: NewDispatcher(client, opts.CapableModel, opts.FastModel, opts.CallTimeout),
		rules:      rules,
		now:        now,
	}
}

// Ask answers one question. Input errors return ErrEmptyQuestion; every
// other failure path yields a user-facing Italian string in the response,
// never a raw error from a dependency.
func (s *Service) Ask(ctx context.Context, req Request) (Response, error) {
	question := strings.TrimSpace(req.Question)
	if len(question) < 2 {
		return Response{}, ErrEmptyQuestion
	}

	dr := query.ResolveTemporal(question, req.Hint, s.now())
	intent := query.ClassifyWith(s.rules, question)
	entity := query.ExtractEntity(question)
	tier := TierFor(intent)

	zap.L().Info("question resolved",
		zap.String("intent", string(intent)),
		zap.String("entity_kind", string(entity.Kind)),
		zap.String("entity", entity.Name),
		zap.Bool("archive", dr.Archive),
	)

	resp := Response{
		Intent:   intent,
		IsReport: intent == model.IntentReport,
		From:     dr.From,
		To:       dr.To,
		Archive:  dr.Archive,
	}

	// Period-wide set drives statistics and the empty-corpus short-circuit.
	corpus := s.retriever.Fetch(ctx, dr, model.EntityMatch{}, statsFetchLimit)
	corpus = s.filterByClient(ctx, corpus, req.Client)
	resp.Articles = len(corpus)
	if len(corpus) == 0 {
		resp.Answer = noArticlesMessage
		return s.remember(req, question, resp), nil
	}

	// Entity-bounded candidate set for the prompt or the direct resolver.
	candidates := corpus
	if entity.Kind != "" {
		candidates = s.retriever.Fetch(ctx, dr, entity, tier.MaxArticles)
		candidates = s.filterByClient(ctx, candidates, req.Client)
		if len(candidates) == 0 {
			if entity.Kind == model.EntityTopic {
				// Full-corpus fallback: the model decides relevance.
				candidates = capArticles(corpus, tier.MaxArticles)
			} else {
				resp.Answer = fmt.Sprintf(
					"Nessun articolo firmato da %q nel periodo. Il periodo contiene comunque %d articoli.",
					entity.Name, len(corpus))
				return s.remember(req, question, resp), nil
			}
		}
	} else {
		candidates = capArticles(corpus, tier.MaxArticles)
	}

	if text, ok := ResolveDirect(intent, candidates, question); ok {
		resp.Answer = text
		return s.remember(req, question, resp), nil
	}

	stats := Stats(corpus)
	history := s.history(req.SessionID)

	var answerText string
	var err error
	if intent == model.IntentReport && len(candidates) > reportBatchSize*2 {
		answerText, err = s.generateReport(ctx, question, candidates, stats, history)
	} else {
		built := BuildContext(candidates, tier)
		system, msgs := BuildPrompt(intent, question, stats, built, history)
		answerText, err = s.dispatcher.Complete(ctx, system, msgs, tier)
	}
	if err != nil {
		zap.L().Error("completion exhausted both tiers", zap.Error(err))
		resp.Answer = aiUnavailableMessage
		return resp, nil
	}

	resp.Answer = answerText
	return s.remember(req, question, resp), nil
}

// filterByClient keeps articles relevant to a watch subject: the stored
// match label or any configured keyword, computed at query time.
func (s *Service) filterByClient(ctx context.Context, articles []model.Article, clientName string) []model.Article {
	if clientName == "" || len(articles) == 0 {
		return articles
	}
	client, err := s.store.GetClientByName(ctx, clientName)
	if err != nil {
		zap.L().Warn("client lookup failed, skipping client filter",
			zap.String("client", clientName),
			zap.Error(err),
		)
		return articles
	}
	keywords := client.KeywordList()
	if len(keywords) == 0 {
		keywords = []string{strings.ToLower(client.Name)}
	}

	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if a.MatchedClient == client.Name || matchesAnyKeyword(a, keywords) {
			out = append(out, a)
		}
	}
	return out
}

func matchesAnyKeyword(a model.Article, keywords []string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		a.Title, a.Kicker, a.Subtitle, a.Body, a.Sectors, a.Topic,
	}, "\n"))
	for _, kw := range keywords {
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (s *Service) history(sessionID string) []session.Turn {
	if sessionID == "" || s.sessions == nil {
		return nil
	}
	return s.sessions.Get(sessionID)
}

// remember appends the exchange to the session and returns the response.
func (s *Service) remember(req Request, question string, resp Response) Response {
	if req.SessionID != "" && s.sessions != nil && resp.Answer != "" {
		s.sessions.Append(req.SessionID, session.Turn{Question: question, Answer: resp.Answer})
	}
	return resp
}

func capArticles(articles []model.Article, limit int) []model.Article {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
