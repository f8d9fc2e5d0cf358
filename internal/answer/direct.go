package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
)

// maxHeadlinesPerAuthor bounds the sample titles listed under each byline.
const maxHeadlinesPerAuthor = 3

// maxValueRows bounds the AVE ranking table.
const maxValueRows = 50

// ResolveDirect answers statistics-only intents from the fetched rows, with
// zero completion calls. The bool reports whether the intent was handled.
func ResolveDirect(intent model.Intent, articles []model.Article, question string) (string, bool) {
	if !intent.Direct() {
		return "", false
	}
	if len(articles) == 0 {
		return noArticlesMessage, true
	}
	switch intent {
	case model.IntentTotal, model.IntentCount:
		return resolveCount(articles, question), true
	case model.IntentAuthor:
		return resolveAuthor(articles), true
	case model.IntentSource:
		return resolveSource(articles), true
	case model.IntentValue:
		return resolveValue(articles), true
	}
	return "", false
}

// mentionsSignature reports whether the question asks about authorship,
// which switches the count resolver to a signed/unsigned split.
func mentionsSignature(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range []string{"firma", "firmat", "sigl", "non firmati"} {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func resolveCount(articles []model.Article, question string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Totale: %d articoli.\n", len(articles))

	if mentionsSignature(question) {
		var signed, unsigned int
		for _, a := range articles {
			if model.IsUnsigned(a.Byline) {
				unsigned++
			} else {
				signed++
			}
		}
		fmt.Fprintf(&sb, "Firmati: %d, non firmati: %d.\n", signed, unsigned)
	}

	counts := make(map[string]int)
	for _, a := range articles {
		counts[orDefault(a.Source, "N/D")]++
	}
	sb.WriteString("\nPer testata:\n")
	for _, e := range sortedCounts(counts) {
		fmt.Fprintf(&sb, "- %s: %d\n", e.key, e.count)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func resolveAuthor(articles []model.Article) string {
	byAuthor := make(map[string][]model.Article)
	var unsigned int
	for _, a := range articles {
		if model.IsUnsigned(a.Byline) {
			unsigned++
			continue
		}
		key := strings.TrimSpace(a.Byline)
		byAuthor[key] = append(byAuthor[key], a)
	}
	if len(byAuthor) == 0 {
		return fmt.Sprintf("Nessuna firma nel periodo: %d articoli, tutti non firmati.", unsigned)
	}

	counts := make(map[string]int, len(byAuthor))
	for name, as := range byAuthor {
		counts[name] = len(as)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Giornalisti nel periodo (%d firme, %d articoli non firmati):\n", len(byAuthor), unsigned)
	for _, e := range sortedCounts(counts) {
		fmt.Fprintf(&sb, "\n%s (%d articoli):\n", e.key, e.count)
		for i, a := range byAuthor[e.key] {
			if i == maxHeadlinesPerAuthor {
				break
			}
			fmt.Fprintf(&sb, "- [%s] %s (%s)\n", a.DateString(), a.Title, orDefault(a.Source, "N/D"))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func resolveSource(articles []model.Article) string {
	type sourceGroup struct {
		count   int
		bylines map[string]bool
	}
	groups := make(map[string]*sourceGroup)
	for _, a := range articles {
		key := orDefault(a.Source, "N/D")
		g := groups[key]
		if g == nil {
			g = &sourceGroup{bylines: make(map[string]bool)}
			groups[key] = g
		}
		g.count++
		if !model.IsUnsigned(a.Byline) {
			g.bylines[strings.TrimSpace(a.Byline)] = true
		}
	}

	counts := make(map[string]int, len(groups))
	for name, g := range groups {
		counts[name] = g.count
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Testate nel periodo (%d):\n", len(groups))
	for _, e := range sortedCounts(counts) {
		g := groups[e.key]
		names := make([]string, 0, len(g.bylines))
		for n := range g.bylines {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, "- %s: %d articoli", e.key, g.count)
		if len(names) > 0 {
			fmt.Fprintf(&sb, " (firme: %s)", strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func resolveValue(articles []model.Article) string {
	valued := make([]model.Article, 0, len(articles))
	var missing int
	var total float64
	for _, a := range articles {
		if a.AVE <= 0 {
			missing++
			continue
		}
		valued = append(valued, a)
		total += a.AVE
	}
	if len(valued) == 0 {
		return fmt.Sprintf("Nessun controvalore disponibile: %d articoli senza AVE nel periodo.", missing)
	}

	sort.SliceStable(valued, func(i, j int) bool {
		if valued[i].AVE != valued[j].AVE {
			return valued[i].AVE > valued[j].AVE
		}
		return valued[i].ID < valued[j].ID
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Controvalore complessivo (AVE): EUR %.2f su %d articoli valorizzati.\n", total, len(valued))
	if missing > 0 {
		fmt.Fprintf(&sb, "Esclusi dal totale: %d articoli senza valore.\n", missing)
	}
	sb.WriteString("\nClassifica per valore:\n")
	for i, a := range valued {
		if i == maxValueRows {
			break
		}
		fmt.Fprintf(&sb, "%d. EUR %.2f - [%s] %s (%s)\n",
			i+1, a.AVE, a.DateString(), a.Title, orDefault(a.Source, "N/D"))
	}
	return strings.TrimRight(sb.String(), "\n")
}
