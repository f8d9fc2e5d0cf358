// Package answer turns a classified question into a grounded reply: it
// retrieves a bounded article set, resolves statistics-only intents directly,
// and budgets everything else into a prompt for the completion backend.
package answer

import (
	"fmt"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
)

// Tier is the per-intent context/output budget. Reports get more articles
// and longer excerpts than quick answers; Capable selects the stronger model.
type Tier struct {
	MaxArticles  int   // candidate cap handed to the retriever
	BodyChars    int   // per-article body truncation
	ContextChars int   // whole-payload character budget
	MaxTokens    int64 // completion output budget
	Capable      bool
}

// tierTable keys budgets by intent. Direct intents never reach the model,
// so anything not listed falls back to the general tier.
var tierTable = map[model.Intent]Tier{
	model.IntentReport:       {MaxArticles: 80, BodyChars: 1500, ContextChars: 160000, MaxTokens: 8000, Capable: true},
	model.IntentAnalysis:     {MaxArticles: 50, BodyChars: 1200, ContextChars: 90000, MaxTokens: 4000, Capable: true},
	model.IntentQuantitative: {MaxArticles: 40, BodyChars: 600, ContextChars: 40000, MaxTokens: 2000, Capable: true},
	model.IntentRead:         {MaxArticles: 5, BodyChars: 6000, ContextChars: 40000, MaxTokens: 2000},
	model.IntentRisk:         {MaxArticles: 30, BodyChars: 800, ContextChars: 40000, MaxTokens: 2000},
	model.IntentGeneral:      {MaxArticles: 25, BodyChars: 800, ContextChars: 40000, MaxTokens: 2000},
}

// TierFor returns the budget tier for an intent.
func TierFor(intent model.Intent) Tier {
	if t, ok := tierTable[intent]; ok {
		return t
	}
	return tierTable[model.IntentGeneral]
}

// noArticlesMessage is the shared empty-corpus reply.
const noArticlesMessage = "Nessun articolo trovato nel periodo selezionato."

// BuildResult is a budgeted context payload. Included/Candidates disclose
// completeness so the prompt can state how much of the corpus the model sees.
type BuildResult struct {
	Text       string
	Included   int
	Candidates int
}

// BuildContext renders articles into fixed-shape blocks and accumulates
// whole blocks until the next one would exceed the tier's character budget.
// A block is never partially included; only the body text inside a block is
// truncated.
func BuildContext(articles []model.Article, tier Tier) BuildResult {
	res := BuildResult{Candidates: len(articles)}
	if len(articles) == 0 {
		res.Text = noArticlesMessage
		return res
	}

	var sb strings.Builder
	for _, a := range articles {
		block := renderBlock(a, tier.BodyChars)
		extra := len(block)
		if sb.Len() > 0 {
			extra += len(blockSeparator)
		}
		if sb.Len()+extra > tier.ContextChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(blockSeparator)
		}
		sb.WriteString(block)
		res.Included++
	}

	if res.Included == 0 {
		res.Text = ""
		return res
	}
	res.Text = sb.String()
	return res
}

const blockSeparator = "\n\n---\n\n"

func renderBlock(a model.Article, bodyChars int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s | Firma: %s | Tone: %s | Topic: %s | Settori: %s\nTITOLO: %s",
		a.DateString(), orDefault(a.Source, "N/D"), orDefault(a.Byline, "Anonimo"),
		a.Tone, a.Topic, a.Sectors, a.Title)
	if a.Kicker != "" {
		sb.WriteString("\nOCCHIELLO: ")
		sb.WriteString(a.Kicker)
	}
	if body := truncate(strings.TrimSpace(a.Body), bodyChars); body != "" {
		sb.WriteString("\nTESTO: ")
		sb.WriteString(body)
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// Cut on a rune boundary; byte slicing would split accented characters.
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
