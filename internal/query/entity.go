package query

import (
	"regexp"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
)

// capture matches a run of one to four lowercase words (accented letters
// included). Captures commonly over-match into the following clause; the
// stop-word stripper below trims the overrun instead of rejecting the match.
const capture = `([a-zàèéìíòóùú']+(?:\s+[a-zàèéìíòóùú']+){0,3})`

// journalistPatterns are tried first: a hit yields EntityJournalist.
var journalistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:articoli|pezzi)\s+(?:di|scritt[io]\s+da|firmat[io]\s+da)\s+` + capture),
	regexp.MustCompile(`(?:scritt[io]|firmat[io])\s+da\s+` + capture),
	regexp.MustCompile(`(?:cosa|che\s+cosa)\s+ha\s+scritto\s+` + capture),
	regexp.MustCompile(`(?:cosa|che\s+cosa)\s+scrive\s+` + capture),
	regexp.MustCompile(`ultimi\s+\d*\s*articoli\s+(?:di|da)\s+` + capture),
}

// topicPatterns are tried only when no journalist pattern matched.
var topicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`report\s+(?:su|sul|sullo|sulla|sulle|sui|sugli)\s+` + capture),
	regexp.MustCompile(`notizie\s+(?:su|sul|sullo|sulla|sulle|sui|sugli|riguardo(?:\s+a)?|circa)\s+` + capture),
	regexp.MustCompile(`articoli\s+(?:su|sul|sullo|sulla|sulle|sui|sugli)\s+` + capture),
	regexp.MustCompile(`(?:parlano|si\s+parla)\s+di\s+` + capture),
	regexp.MustCompile(`a\s+proposito\s+di\s+` + capture),
	regexp.MustCompile(`copertura\s+(?:di|su)\s+` + capture),
}

// stopTokens are temporal/operational filler words that never belong to an
// entity name. A capture ending in them is trimmed from the right; a capture
// consisting only of them is rejected.
var stopTokens = map[string]bool{
	"ultimi": true, "ultime": true, "ultimo": true, "ultima": true,
	"articoli": true, "articolo": true, "pezzi": true, "uscite": true,
	"giorni": true, "giorno": true, "settimana": true, "settimane": true,
	"mese": true, "mesi": true, "anno": true, "anni": true,
	"trimestre": true, "semestre": true, "periodo": true,
	"oggi": true, "ieri": true, "recenti": true, "recente": true,
	"negli": true, "nelle": true, "nella": true, "nel": true, "nei": true,
	"degli": true, "delle": true, "della": true, "dei": true, "del": true,
	"di": true, "da": true, "in": true, "per": true, "con": true, "su": true,
	"questo": true, "questa": true, "questi": true, "queste": true,
	"fammi": true, "dammi": true, "crea": true, "scrivi": true, "fai": true,
	"realizza": true, "produci": true, "elabora": true, "redigi": true,
	"report": true, "analisi": true, "sentiment": true, "rassegna": true,
	"stampa": true, "copertura": true, "notizie": true, "tema": true, "temi": true,
}

// stripTrailingStopTokens drops filler tokens from the right edge of a
// capture. "mario rossi negli ultimi" becomes "mario rossi".
func stripTrailingStopTokens(capture string) string {
	tokens := strings.Fields(capture)
	for len(tokens) > 0 && stopTokens[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// ExtractEntity pulls a journalist name or a topic out of a question.
// Falling through to no-entity is acceptable; extracting filler as an
// entity is not, since a bad entity silently narrows the retrieved corpus.
func ExtractEntity(question string) model.EntityMatch {
	q := lower(question)

	for _, re := range journalistPatterns {
		if name, ok := captureEntity(re, q); ok {
			return model.EntityMatch{Kind: model.EntityJournalist, Name: name}
		}
	}
	for _, re := range topicPatterns {
		if name, ok := captureEntity(re, q); ok {
			return model.EntityMatch{Kind: model.EntityTopic, Name: name}
		}
	}
	return model.EntityMatch{}
}

func captureEntity(re *regexp.Regexp, q string) (string, bool) {
	m := re.FindStringSubmatch(q)
	if m == nil {
		return "", false
	}
	name := stripTrailingStopTokens(strings.TrimSpace(m[1]))
	if len(name) < 3 {
		return "", false
	}
	return name, true
}
