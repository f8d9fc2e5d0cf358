package query

import (
	"regexp"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
)

// IntentRule pairs an intent with the patterns that trigger it. Rules are
// evaluated in declared order; the first rule with a matching pattern wins,
// which is what disambiguates questions like "report sul sentiment" (both a
// report trigger and an analysis trigger) deterministically.
type IntentRule struct {
	Intent   model.Intent
	Patterns []string
	compiled []*regexp.Regexp
}

// NewIntentRule compiles an intent rule. Patterns are regular expressions
// matched against the lowercased question.
func NewIntentRule(intent model.Intent, patterns ...string) IntentRule {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return IntentRule{Intent: intent, Patterns: patterns, compiled: compiled}
}

func (r IntentRule) matches(q string) bool {
	for _, re := range r.compiled {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

// DefaultIntentRules returns the ordered trigger table. Priority order:
// report-type triggers before analysis triggers before count triggers
// before the general fallback.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		NewIntentRule(model.IntentReport,
			`\breport\b`, `analisi\s+completa`, `profilo\s+mediatico`,
			`sintesi\s+strategica`, `\brassegna\b`, `\bredigi\b`, `\belabora\b`,
			`\bproduci\b`, `\bdocumento\b`, `\bdossier\b`, `\bmonitoraggio\b`),
		NewIntentRule(model.IntentValue,
			`\bave\b`, `controvalore`, `valore\s+economico`,
			`equivalente\s+pubblicitario`, `quanto\s+val`),
		NewIntentRule(model.IntentRisk,
			`rischi\w*\s+reputazional\w*`, `\ba\s+rischio\b`, `\brischi\b`, `\brischio\b`),
		NewIntentRule(model.IntentAuthor,
			`quali\s+giornalist`, `chi\s+ha\s+scritto`, `chi\s+scrive`,
			`\bfirme\b`, `giornalisti\s+(?:più|piu)`, `top\s+giornalist`,
			`classifica\s+(?:dei\s+)?giornalist`),
		NewIntentRule(model.IntentSource,
			`quali\s+testate`, `su\s+quali\s+giornali`, `quali\s+quotidiani`,
			`top\s+testate`, `classifica\s+(?:delle\s+)?testate`, `per\s+testata`),
		NewIntentRule(model.IntentRead,
			`\bleggi\b`, `testo\s+completo`, `testo\s+integrale`,
			`mostrami\s+l'?articolo`, `fammi\s+leggere`),
		NewIntentRule(model.IntentAnalysis,
			`\banalisi\b`, `\banalizza\b`, `sentiment`, `\btono\b`,
			`criticit`, `reputazion`, `temi\s+ricorrenti`, `temi\s+longevi`,
			`governance`, `territorial`, `come\s+viene\s+percepit`, `narrativa`),
		NewIntentRule(model.IntentTotal,
			`in\s+totale`, `complessivamente`, `tutto\s+il\s+database`, `intero\s+archivio`),
		NewIntentRule(model.IntentCount,
			`quant[ie]\s+articoli`, `quante\s+uscite`, `numero\s+di\s+articoli`,
			`\bconteggio\b`, `quanti\s+pezzi`, `quanti\s+ne\s+sono`),
		NewIntentRule(model.IntentQuantitative,
			`statistiche`, `distribuzione`, `andamento`, `\btrend\b`, `percentual`),
	}
}

// Classify maps a question to an intent using the default trigger table.
// No trigger hit means the general fallback.
func Classify(question string) model.Intent {
	return ClassifyWith(DefaultIntentRules(), question)
}

// ClassifyWith classifies against an explicit rule table, first hit wins.
// The classifier is a pure function of (question, table).
func ClassifyWith(rules []IntentRule, question string) model.Intent {
	q := lower(question)
	for _, r := range rules {
		if r.matches(q) {
			return r.Intent
		}
	}
	return model.IntentGeneral
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
