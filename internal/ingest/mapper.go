package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/maim-pdmr/spiz/internal/model"
)

// columnMapping maps normalized export headers to article fields. Keys are
// the provider's column names after header normalization; unknown columns
// are ignored.
var columnMapping = map[string]string{
	"testata":            "source",
	"data_testata":       "date",
	"pagina_testata":     "page",
	"autore":             "byline",
	"occhiello":          "kicker",
	"titolo":             "title",
	"sottotitolo":        "subtitle",
	"testo":              "body",
	"macrosettori":       "sectors",
	"tipologia_articolo": "article_type",
	"ave":                "ave",
	"tipo_fonte":         "source_type",
}

// normalizeHeader turns a raw column name into its canonical lookup key.
func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// headerIndex maps each recognized field to its column position.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(columnMapping))
	for i, h := range header {
		if field, ok := columnMapping[normalizeHeader(h)]; ok {
			idx[field] = i
		}
	}
	return idx
}

// dateLayouts tried in order. Exports are day-first; ISO appears in
// re-exported files.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2006-01-02",
	"02/01/06",
}

// parseDate parses a day-first date, defaulting to today when the value is
// blank or unparseable. A wrong date is worse than a late one here: an
// unparsed row must still land in the archive.
func parseDate(value string, now time.Time) time.Time {
	value = strings.TrimSpace(value)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if value == "" {
		return today
	}
	// XLSX cells sometimes carry a trailing time component.
	if i := strings.IndexByte(value, ' '); i > 0 {
		value = value[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return today
}

// parseAVE parses an advertising-value figure with Italian comma decimals
// ("1.234,56" or "1234,56"). Unparseable values mean no valuation, never an
// import failure.
func parseAVE(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	value = strings.ReplaceAll(value, " ", "")
	value = strings.TrimPrefix(value, "€")
	if strings.Contains(value, ",") {
		// Comma is the decimal separator; dots are thousands grouping.
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

// rowToArticle maps one export row to an article using the header index.
// Missing columns keep their defaults; the fingerprint is computed last.
func rowToArticle(idx map[string]int, row []string, now time.Time) model.Article {
	get := func(field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	a := model.Article{
		Source:      orFallback(get("source"), "N.D."),
		PubDate:     parseDate(get("date"), now),
		Page:        get("page"),
		Kicker:      get("kicker"),
		Title:       orFallback(get("title"), "Senza Titolo"),
		Subtitle:    get("subtitle"),
		Byline:      get("byline"),
		Body:        get("body"),
		Sectors:     model.NormalizeSectors(get("sectors")),
		ArticleType: get("article_type"),
		AVE:         parseAVE(get("ave")),
		SourceType:  get("source_type"),
	}
	a.Fingerprint = model.ComputeFingerprint(a)
	return a
}

func orFallback(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
