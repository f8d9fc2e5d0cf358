package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maim-pdmr/spiz/internal/model"
)

func TestResolveDirect_SkipsModelIntents(t *testing.T) {
	for _, intent := range []model.Intent{model.IntentReport, model.IntentAnalysis, model.IntentGeneral} {
		_, ok := ResolveDirect(intent, []model.Article{sampleArticle("a1", "t")}, "domanda")
		assert.False(t, ok, string(intent))
	}
}

func TestResolveDirect_EmptyCorpus(t *testing.T) {
	text, ok := ResolveDirect(model.IntentCount, nil, "quanti articoli?")
	assert.True(t, ok)
	assert.Equal(t, noArticlesMessage, text)
}

func TestResolveCount(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Source: "Corriere", Byline: "mario rossi"},
		{ID: "2", Source: "Corriere", Byline: "redazione"},
		{ID: "3", Source: "Repubblica"},
	}

	text, ok := ResolveDirect(model.IntentCount, articles, "quanti articoli questa settimana?")
	assert.True(t, ok)
	assert.Contains(t, text, "Totale: 3 articoli.")
	assert.Contains(t, text, "- Corriere: 2")
	assert.Contains(t, text, "- Repubblica: 1")
	assert.NotContains(t, text, "Firmati:")
}

func TestResolveCount_SignatureSplit(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Byline: "mario rossi"},
		{ID: "2", Byline: "redazione"},
		{ID: "3", Byline: ""},
	}

	text, _ := ResolveDirect(model.IntentCount, articles, "quanti articoli firmati?")
	assert.Contains(t, text, "Firmati: 1, non firmati: 2.")
}

func TestResolveAuthor(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Byline: "anna neri", Title: "Primo", Source: "Corriere", PubDate: day("2026-08-01")},
		{ID: "2", Byline: "anna neri", Title: "Secondo", Source: "Corriere", PubDate: day("2026-08-02")},
		{ID: "3", Byline: "mario rossi", Title: "Terzo", Source: "Repubblica", PubDate: day("2026-08-03")},
		{ID: "4", Byline: "redazione", Title: "Quarto"},
	}

	text, ok := ResolveDirect(model.IntentAuthor, articles, "chi ha scritto nel periodo?")
	assert.True(t, ok)
	assert.Contains(t, text, "2 firme, 1 articoli non firmati")
	assert.Contains(t, text, "anna neri (2 articoli):")
	assert.Contains(t, text, "- [2026-08-01] Primo (Corriere)")
	assert.Contains(t, text, "mario rossi (1 articoli):")
	assert.NotContains(t, text, "Quarto")
}

func TestResolveAuthor_HeadlineCap(t *testing.T) {
	var articles []model.Article
	for i := 0; i < 5; i++ {
		articles = append(articles, model.Article{
			ID:      string(rune('a' + i)),
			Byline:  "anna neri",
			Title:   "Titolo",
			PubDate: day("2026-08-01"),
		})
	}
	text, _ := ResolveDirect(model.IntentAuthor, articles, "chi scrive?")
	assert.Contains(t, text, "anna neri (5 articoli):")
	assert.Equal(t, maxHeadlinesPerAuthor, countLines(text, "- ["))
}

func TestResolveAuthor_AllUnsigned(t *testing.T) {
	articles := []model.Article{{ID: "1", Byline: "redazione"}, {ID: "2"}}
	text, _ := ResolveDirect(model.IntentAuthor, articles, "chi scrive?")
	assert.Contains(t, text, "Nessuna firma nel periodo: 2 articoli, tutti non firmati.")
}

func TestResolveSource(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Source: "Corriere", Byline: "anna neri"},
		{ID: "2", Source: "Corriere", Byline: "mario rossi"},
		{ID: "3", Source: "Repubblica", Byline: "redazione"},
	}

	text, ok := ResolveDirect(model.IntentSource, articles, "su quali testate?")
	assert.True(t, ok)
	assert.Contains(t, text, "Testate nel periodo (2):")
	assert.Contains(t, text, "- Corriere: 2 articoli (firme: anna neri, mario rossi)")
	assert.Contains(t, text, "- Repubblica: 1 articoli")
	assert.NotContains(t, text, "Repubblica: 1 articoli (firme:")
}

func TestResolveValue(t *testing.T) {
	articles := []model.Article{
		{ID: "1", Title: "Caro", Source: "Corriere", PubDate: day("2026-08-01"), AVE: 1500.50},
		{ID: "2", Title: "Economico", Source: "Repubblica", PubDate: day("2026-08-02"), AVE: 300},
		{ID: "3", Title: "Senza valore"},
	}

	text, ok := ResolveDirect(model.IntentValue, articles, "qual e' l'AVE del mese?")
	assert.True(t, ok)
	assert.Contains(t, text, "Controvalore complessivo (AVE): EUR 1800.50 su 2 articoli valorizzati.")
	assert.Contains(t, text, "Esclusi dal totale: 1 articoli senza valore.")
	assert.Contains(t, text, "1. EUR 1500.50 - [2026-08-01] Caro (Corriere)")
	assert.Contains(t, text, "2. EUR 300.00 - [2026-08-02] Economico (Repubblica)")
}

func TestResolveValue_NoValuedArticles(t *testing.T) {
	articles := []model.Article{{ID: "1"}, {ID: "2", AVE: -5}}
	text, _ := ResolveDirect(model.IntentValue, articles, "AVE?")
	assert.Contains(t, text, "Nessun controvalore disponibile: 2 articoli senza AVE nel periodo.")
}

func countLines(text, prefix string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
