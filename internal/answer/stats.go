package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
)

// Stats renders the corpus-statistics block injected into every prompt:
// totals, covered period, top outlets/sectors/topics, sentiment shares and
// the monthly trend. Output is deterministic; ties sort alphabetically.
func Stats(articles []model.Article) string {
	if len(articles) == 0 {
		return "Nessun articolo."
	}

	sources := make(map[string]int)
	tones := make(map[string]int)
	topics := make(map[string]int)
	sectors := make(map[string]int)
	clients := make(map[string]int)
	monthly := make(map[string]int)
	var minDate, maxDate string

	for _, a := range articles {
		if a.Source != "" {
			sources[a.Source]++
		}
		if a.MatchedClient != "" {
			clients[a.MatchedClient]++
		}
		if a.Tone != "" {
			tones[string(a.Tone)]++
		}
		if a.Topic != "" {
			topics[a.Topic]++
		}
		for _, s := range model.SplitSectors(a.Sectors) {
			sectors[s]++
		}
		d := a.DateString()
		if d == "" {
			continue
		}
		monthly[d[:7]]++
		if minDate == "" || d < minDate {
			minDate = d
		}
		if d > maxDate {
			maxDate = d
		}
	}
	if minDate == "" {
		minDate, maxDate = "?", "?"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "TOTALE: %d articoli\n", len(articles))
	fmt.Fprintf(&sb, "PERIODO: %s -> %s\n", minDate, maxDate)
	fmt.Fprintf(&sb, "TESTATE: %s\n", topCounts(sources, 10))
	fmt.Fprintf(&sb, "MACROSETTORI: %s\n", topCounts(sectors, 10))
	fmt.Fprintf(&sb, "TOPIC DOMINANTI: %s\n", topCounts(topics, 10))
	if len(clients) > 0 {
		fmt.Fprintf(&sb, "CLIENTI: %s\n", topCounts(clients, 10))
	}
	fmt.Fprintf(&sb, "SENTIMENT: %s\n", tonePercentages(tones))
	fmt.Fprintf(&sb, "ANDAMENTO MENSILE: %s", monthlyTrend(monthly))
	return sb.String()
}

type countEntry struct {
	key   string
	count int
}

func sortedCounts(counts map[string]int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	return entries
}

func topCounts(counts map[string]int, n int) string {
	entries := sortedCounts(counts)
	if len(entries) > n {
		entries = entries[:n]
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s(%d)", e.key, e.count))
	}
	return strings.Join(parts, ", ")
}

func tonePercentages(tones map[string]int) string {
	total := 0
	for _, v := range tones {
		total += v
	}
	if total == 0 {
		return ""
	}
	entries := sortedCounts(tones)
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s: %d%%", e.key, int(float64(e.count)/float64(total)*100+0.5)))
	}
	return strings.Join(parts, ", ")
}

func monthlyTrend(monthly map[string]int) string {
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)
	parts := make([]string, 0, len(months))
	for _, m := range months {
		parts = append(parts, fmt.Sprintf("%s:%d", m, monthly[m]))
	}
	return strings.Join(parts, ", ")
}
