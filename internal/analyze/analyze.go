// Package analyze retroactively labels stored articles with tone, dominant
// topic and reputational risk via bounded concurrent completion calls.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/store"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

// ArticleLabeler is the slice of the store the analyzer needs.
type ArticleLabeler interface {
	SearchArticles(ctx context.Context, filter store.ArticleFilter) ([]model.Article, error)
	UpdateAnalysis(ctx context.Context, id string, tone model.Tone, topic string, risk model.RiskLevel) error
}

const (
	defaultModel       = "claude-haiku-4-5-20251001"
	defaultConcurrency = 4
	defaultBatchLimit  = 200
	labelMaxTokens     = 200
	bodyExcerptChars   = 1500
	callTimeout        = 30 * time.Second
)

const labelInstructions = `Analizza questo articolo di stampa e restituisci SOLO un oggetto JSON:
{"tone": "Positive|Neutral|Negative", "dominant_topic": "una parola, es: Energia, Fisco", "reputational_risk": "None|Low|Medium|High"}
Nessun testo fuori dal JSON.`

// Analyzer labels unanalyzed articles.
type Analyzer struct {
	store       ArticleLabeler
	client      anthropic.Client
	model       string
	concurrency int
	limit       int
}

// New builds an analyzer. Empty model and non-positive bounds select
// defaults.
func New(st ArticleLabeler, client anthropic.Client, modelID string, concurrency, limit int) *Analyzer {
	if modelID == "" {
		modelID = defaultModel
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	return &Analyzer{store: st, client: client, model: modelID, concurrency: concurrency, limit: limit}
}

// Summary reports one analysis pass.
type Summary struct {
	Found   int `json:"found"`
	Labeled int `json:"labeled"`
	Failed  int `json:"failed"`
}

// labelResult is the JSON contract of one labeling call.
type labelResult struct {
	Tone             string `json:"tone"`
	DominantTopic    string `json:"dominant_topic"`
	ReputationalRisk string `json:"reputational_risk"`
}

// Run labels every unanalyzed article up to the batch limit. Individual
// failures are logged and skipped; the pass always completes.
func (a *Analyzer) Run(ctx context.Context) (Summary, error) {
	articles, err := a.store.SearchArticles(ctx, store.ArticleFilter{
		OnlyUnanalyzed: true,
		Limit:          a.limit,
	})
	if err != nil {
		return Summary{}, eris.Wrap(err, "analyze: fetch unanalyzed")
	}

	summary := Summary{Found: len(articles)}
	if len(articles) == 0 {
		return summary, nil
	}
	zap.L().Info("analysis pass started", zap.Int("articles", len(articles)))

	var labeled, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, art := range articles {
		g.Go(func() error {
			if err := a.labelOne(gctx, art); err != nil {
				failed.Add(1)
				zap.L().Warn("labeling failed, skipping article",
					zap.String("id", art.ID),
					zap.Error(err),
				)
				return nil
			}
			labeled.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.Labeled = int(labeled.Load())
	summary.Failed = int(failed.Load())
	return summary, nil
}

func (a *Analyzer) labelOne(ctx context.Context, art model.Article) error {
	body := excerpt(art.Body, bodyExcerptChars)
	prompt := fmt.Sprintf("%s\n\nTITOLO: %s\nTESTO: %s", labelInstructions, art.Title, body)

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp, err := a.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: labelMaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return eris.Wrap(err, "analyze: completion")
	}
	resp.Usage.LogCost(a.model, "analyze")

	var result labelResult
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &result); err != nil {
		return eris.Wrap(err, "analyze: parse label json")
	}

	tone, risk, err := validateLabels(result)
	if err != nil {
		return err
	}
	if err := a.store.UpdateAnalysis(ctx, art.ID, tone, strings.TrimSpace(result.DominantTopic), risk); err != nil {
		return eris.Wrap(err, "analyze: update row")
	}
	return nil
}

// excerpt cuts on a rune boundary; byte slicing would split accented
// characters.
func excerpt(s string, maxRunes int) string {
	if len(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}

// validateLabels rejects values outside the label enums rather than
// storing free text the query layer cannot filter on.
func validateLabels(r labelResult) (model.Tone, model.RiskLevel, error) {
	var tone model.Tone
	for _, t := range model.AllTones() {
		if strings.EqualFold(string(t), strings.TrimSpace(r.Tone)) {
			tone = t
		}
	}
	if tone == "" {
		return "", "", eris.Errorf("analyze: invalid tone %q", r.Tone)
	}

	var risk model.RiskLevel
	for _, rl := range model.AllRiskLevels() {
		if strings.EqualFold(string(rl), strings.TrimSpace(r.ReputationalRisk)) {
			risk = rl
		}
	}
	if risk == "" {
		return "", "", eris.Errorf("analyze: invalid risk %q", r.ReputationalRisk)
	}
	return tone, risk, nil
}
