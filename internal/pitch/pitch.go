// Package pitch suggests the journalists most likely to pick up a press
// release, scoring their recent coverage against an LLM analysis of the
// release text.
package pitch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/store"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

// ArticleSearcher is the slice of the store the advisor needs.
type ArticleSearcher interface {
	SearchArticles(ctx context.Context, filter store.ArticleFilter) ([]model.Article, error)
}

const (
	defaultModel       = "claude-haiku-4-5-20251001"
	defaultTopN        = 10
	defaultLookback    = 180 * 24 * time.Hour
	minReleaseChars    = 50
	releaseExcerpt     = 4000
	analysisMaxTokens  = 500
	explainMaxTokens   = 80
	explainConcurrency = 4
	callTimeout        = 30 * time.Second

	// Affinity weights.
	sectorWeight   = 3.0
	keywordWeight  = 1.5
	maxVolumeBonus = 2.0
)

// ErrReleaseTooShort rejects releases under the minimum length.
var ErrReleaseTooShort = eris.New("pitch: release too short")

const analysisInstructions = `Sei un esperto di comunicazione e media relations italiano.
Analizza il comunicato stampa e restituisci SOLO un JSON con questi campi:
- tema: stringa, tema principale del comunicato (max 10 parole)
- settori: lista di max 5 settori/macrosettori rilevanti
- keywords: lista di max 10 parole chiave importanti
- sintesi: stringa, sintesi del comunicato in 2 righe
Rispondi SOLO con il JSON, nessun testo aggiuntivo.`

const explainInstructions = `Sei un esperto di media relations. Scrivi UNA sola frase (max 25 parole)
che spiega perche' questo giornalista e' adatto per il comunicato.
Sii specifico e concreto. Solo la frase, nessun preambolo.`

// ReleaseAnalysis is the JSON contract of the release-analysis call.
type ReleaseAnalysis struct {
	Theme    string   `json:"tema"`
	Sectors  []string `json:"settori"`
	Keywords []string `json:"keywords"`
	Summary  string   `json:"sintesi"`
}

// Suggestion is one ranked journalist.
type Suggestion struct {
	Name        string          `json:"name"`
	Source      string          `json:"source"`
	Score       float64         `json:"score"`
	Articles    int             `json:"articles"`
	Sectors     []string        `json:"sectors"`
	Explanation string          `json:"explanation"`
	Recent      []model.Article `json:"recent"`
}

// Result is the full advisor output.
type Result struct {
	Analysis    ReleaseAnalysis `json:"analysis"`
	Suggestions []Suggestion    `json:"suggestions"`
}

// Advisor ranks journalists for a press release.
type Advisor struct {
	store  ArticleSearcher
	client anthropic.Client
	model  string
	topN   int
	now    func() time.Time
}

// New builds an advisor. Empty model, non-positive topN and nil clock
// select defaults.
func New(st ArticleSearcher, client anthropic.Client, modelID string, topN int, now func() time.Time) *Advisor {
	if modelID == "" {
		modelID = defaultModel
	}
	if topN <= 0 {
		topN = defaultTopN
	}
	if now == nil {
		now = time.Now
	}
	return &Advisor{store: st, client: client, model: modelID, topN: topN, now: now}
}

// Suggest analyzes a release and returns the top journalists by affinity.
func (a *Advisor) Suggest(ctx context.Context, release string) (Result, error) {
	if len(strings.TrimSpace(release)) < minReleaseChars {
		return Result{}, ErrReleaseTooShort
	}

	analysis, err := a.analyzeRelease(ctx, release)
	if err != nil {
		return Result{}, err
	}
	zap.L().Info("release analyzed",
		zap.String("theme", analysis.Theme),
		zap.Strings("sectors", analysis.Sectors),
	)

	journalists, err := a.loadJournalists(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(journalists) == 0 {
		return Result{}, eris.New("pitch: no journalists in archive")
	}

	ranked := rankJournalists(journalists, analysis)
	if len(ranked) > a.topN {
		ranked = ranked[:a.topN]
	}
	if len(ranked) == 0 {
		return Result{}, eris.New("pitch: no matching journalists")
	}

	suggestions := a.explainAll(ctx, ranked, analysis)
	return Result{Analysis: analysis, Suggestions: suggestions}, nil
}

func (a *Advisor) analyzeRelease(ctx context.Context, release string) (ReleaseAnalysis, error) {
	excerpt := release
	if len(excerpt) > releaseExcerpt {
		// Cut on a rune boundary so an accented character is never split.
		r := []rune(excerpt)
		if len(r) > releaseExcerpt {
			r = r[:releaseExcerpt]
		}
		excerpt = string(r)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	temp := 0.0
	resp, err := a.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   analysisMaxTokens,
		System:      []anthropic.SystemBlock{{Text: analysisInstructions}},
		Messages:    []anthropic.Message{{Role: "user", Content: excerpt}},
		Temperature: &temp,
	})
	if err != nil {
		return ReleaseAnalysis{}, eris.Wrap(err, "pitch: analyze release")
	}
	resp.Usage.LogCost(a.model, "pitch")

	var analysis ReleaseAnalysis
	if err := json.Unmarshal([]byte(anthropic.CleanJSON(resp.Text())), &analysis); err != nil {
		return ReleaseAnalysis{}, eris.Wrap(err, "pitch: parse analysis json")
	}
	return analysis, nil
}

// journalist aggregates one byline's recent coverage.
type journalist struct {
	name     string
	source   string
	sectors  []string
	titles   string // lowercased concatenation for keyword matching
	articles []model.Article
}

// loadJournalists groups recent signed articles by byline.
func (a *Advisor) loadJournalists(ctx context.Context) ([]journalist, error) {
	today := a.now()
	articles, err := a.store.SearchArticles(ctx, store.ArticleFilter{
		From: today.Add(-defaultLookback),
		To:   today,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pitch: load recent articles")
	}

	byName := make(map[string]*journalist)
	var order []string
	for _, art := range articles {
		if model.IsUnsigned(art.Byline) {
			continue
		}
		name := strings.TrimSpace(art.Byline)
		j := byName[name]
		if j == nil {
			j = &journalist{name: name, source: art.Source}
			byName[name] = j
			order = append(order, name)
		}
		j.articles = append(j.articles, art)
		j.titles += " " + strings.ToLower(art.Title)
		for _, s := range model.SplitSectors(art.Sectors) {
			if !containsFold(j.sectors, s) {
				j.sectors = append(j.sectors, s)
			}
		}
	}

	out := make([]journalist, 0, len(byName))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// affinityScore weighs sector overlap and keyword hits in recent
// headlines. Volume only breaks ties between journalists that already
// cover the topic, so it is a bonus capped well below one sector match.
func affinityScore(j journalist, analysis ReleaseAnalysis) float64 {
	var base float64
	for _, sector := range j.sectors {
		low := strings.ToLower(sector)
		for _, s := range analysis.Sectors {
			rs := strings.ToLower(strings.TrimSpace(s))
			if rs == "" {
				continue
			}
			if strings.Contains(low, rs) || strings.Contains(rs, low) {
				base += sectorWeight
			}
		}
	}
	for _, kw := range analysis.Keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(j.titles, kw) {
			base += keywordWeight
		}
	}
	if base == 0 {
		return 0
	}
	volume := float64(len(j.articles)) / 10
	if volume > maxVolumeBonus {
		volume = maxVolumeBonus
	}
	return base + volume
}

// rankJournalists scores and orders journalists, dropping zero-affinity
// entries. Ties break by name for a stable ranking.
func rankJournalists(journalists []journalist, analysis ReleaseAnalysis) []journalist {
	type scored struct {
		j     journalist
		score float64
	}
	ranked := make([]scored, 0, len(journalists))
	for _, j := range journalists {
		if s := affinityScore(j, analysis); s > 0 {
			ranked = append(ranked, scored{j, s})
		}
	}
	sort.SliceStable(ranked, func(i, k int) bool {
		if ranked[i].score != ranked[k].score {
			return ranked[i].score > ranked[k].score
		}
		return ranked[i].j.name < ranked[k].j.name
	})
	out := make([]journalist, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.j)
	}
	return out
}

// explainAll generates the one-line explanations concurrently. A failed
// call degrades to a fixed summary line instead of dropping the entry.
func (a *Advisor) explainAll(ctx context.Context, ranked []journalist, analysis ReleaseAnalysis) []Suggestion {
	suggestions := make([]Suggestion, len(ranked))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(explainConcurrency)
	for i, j := range ranked {
		g.Go(func() error {
			explanation, err := a.explainOne(gctx, j, analysis)
			if err != nil {
				zap.L().Warn("explanation call failed, using fallback",
					zap.String("journalist", j.name),
					zap.Error(err),
				)
				explanation = fallbackExplanation(j)
			}
			suggestions[i] = buildSuggestion(j, analysis, explanation)
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()
	return suggestions
}

func (a *Advisor) explainOne(ctx context.Context, j journalist, analysis ReleaseAnalysis) (string, error) {
	var titles []string
	for i, art := range j.articles {
		if i == 3 {
			break
		}
		titles = append(titles, art.Title)
	}
	prompt := fmt.Sprintf(
		"Comunicato su: %s\nSettori comunicato: %s\nGiornalista: %s (%s)\nScrive di: %s\nArticoli recenti: %s\nNumero articoli: %d",
		analysis.Theme, strings.Join(analysis.Sectors, ", "),
		j.name, j.source,
		strings.Join(capStrings(j.sectors, 5), ", "),
		strings.Join(titles, "; "), len(j.articles))

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp, err := a.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: explainMaxTokens,
		System:    []anthropic.SystemBlock{{Text: explainInstructions}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrap(err, "pitch: explain")
	}
	resp.Usage.LogCost(a.model, "pitch")
	return resp.Text(), nil
}

func fallbackExplanation(j journalist) string {
	sectors := strings.Join(capStrings(j.sectors, 2), ", ")
	if sectors == "" {
		sectors = "temi affini"
	}
	return fmt.Sprintf("Ha scritto %d articoli su %s.", len(j.articles), sectors)
}

func buildSuggestion(j journalist, analysis ReleaseAnalysis, explanation string) Suggestion {
	recent := make([]model.Article, len(j.articles))
	copy(recent, j.articles)
	sort.SliceStable(recent, func(i, k int) bool {
		return recent[i].PubDate.After(recent[k].PubDate)
	})
	if len(recent) > 3 {
		recent = recent[:3]
	}
	return Suggestion{
		Name:        j.name,
		Source:      j.source,
		Score:       affinityScore(j, analysis),
		Articles:    len(j.articles),
		Sectors:     capStrings(j.sectors, 5),
		Explanation: explanation,
		Recent:      recent,
	}
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
