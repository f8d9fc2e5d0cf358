package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maim-pdmr/spiz/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     model.Intent
	}{
		{"fammi un report degli ultimi 30 giorni", model.IntentReport},
		{"prepara un'analisi completa del rischio", model.IntentReport},
		{"redigi una rassegna stampa", model.IntentReport},
		{"qual è l'AVE del mese?", model.IntentValue},
		{"quanto vale la copertura ottenuta?", model.IntentValue},
		{"ci sono articoli a rischio reputazionale?", model.IntentRisk},
		{"chi ha scritto di noi questa settimana?", model.IntentAuthor},
		{"quali giornalisti ci seguono di più?", model.IntentAuthor},
		{"su quali giornali siamo usciti?", model.IntentSource},
		{"quali testate ci hanno citato?", model.IntentSource},
		{"leggi l'ultimo articolo", model.IntentRead},
		{"mostrami il testo completo", model.IntentRead},
		{"analizza il sentiment delle uscite", model.IntentAnalysis},
		{"com'è il tono della copertura?", model.IntentAnalysis},
		{"quanti articoli in totale?", model.IntentTotal},
		{"quanti articoli oggi?", model.IntentCount},
		{"quante uscite questa settimana?", model.IntentCount},
		{"dammi le statistiche per mese", model.IntentQuantitative},
		{"qual è l'andamento della distribuzione?", model.IntentQuantitative},
		{"ciao, come va?", model.IntentGeneral},
		{"", model.IntentGeneral},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.question), tc.question)
	}
}

// "report sul sentiment" triggers both the report and the analysis rules.
// Declared order makes the report rule win, deterministically.
func TestClassify_PriorityIsDeterministic(t *testing.T) {
	assert.Equal(t, model.IntentReport, Classify("report sul sentiment degli ultimi 30 giorni"))
	assert.Equal(t, model.IntentTotal, Classify("quanti articoli in totale?"),
		"total trigger outranks the count trigger")
	assert.Equal(t, model.IntentValue, Classify("analisi del controvalore del mese"),
		"specific value trigger outranks the generic analysis trigger")
	assert.Equal(t, model.IntentRisk, Classify("analisi dei rischi reputazionali"),
		"specific risk trigger outranks the generic analysis trigger")
}

// The AVE trigger is word-bounded: "avere" must not classify as value.
func TestClassify_ValueWordBoundary(t *testing.T) {
	assert.Equal(t, model.IntentGeneral, Classify("cosa possiamo avere da questa uscita"))
	assert.Equal(t, model.IntentValue, Classify("dammi l'ave complessivo"))
}

func TestClassifyWith_CustomTable(t *testing.T) {
	rules := []IntentRule{
		NewIntentRule(model.IntentRead, `\bapri\b`),
	}
	assert.Equal(t, model.IntentRead, ClassifyWith(rules, "apri il pezzo"))
	assert.Equal(t, model.IntentGeneral, ClassifyWith(rules, "fammi un report"))
}
