package answer

import (
	"fmt"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/session"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

// systemPreamble is the fixed grounding contract: the model answers only
// from the supplied corpus and cites outlet and date for every claim.
const systemPreamble = `Sei SPIZ, analista senior di media monitoring e relazioni pubbliche.

REGOLE ASSOLUTE:
1. Rispondi ESCLUSIVAMENTE usando gli articoli forniti nel corpus qui sotto.
2. Non usare MAI la tua conoscenza generale o inventare fatti.
3. Ogni affermazione deve citare testata e data dell'articolo da cui proviene.
4. Se un'informazione non e' nel corpus, dillo esplicitamente: "Non ho articoli su questo nel periodo."
5. Non inventare percentuali, dichiarazioni o dati non presenti.

STILE: Italiano professionale corporate. Nessuna emoji. Nessuna formula generica.`

// reportStructure is the mandatory section layout for structured reports.
const reportStructure = `PER REPORT STRUTTURATI usa esattamente:
## 1. PROFILO MEDIATICO
## 2. INTERVISTE E PRESENZA VERTICI
## 3. TEMI LONGEVI
## 4. NOTIZIE FINANZIARIE E CORPORATE
## 5. GOVERNANCE E MANAGEMENT
## 6. FOCUS TERRITORIALE
## 7. CRITICITA' REPUTAZIONALI
## 8. ANALISI DEL SENTIMENT
## 9. COMUNICAZIONE ISTITUZIONALE
## 10. SINTESI STRATEGICA

Per ogni sezione cita articoli specifici con testata e data.`

// intentInstructions returns the intent-specific formatting directions.
func intentInstructions(intent model.Intent) string {
	switch intent {
	case model.IntentReport:
		return reportStructure
	case model.IntentAnalysis:
		return "Produci un'analisi ragionata del corpus: tono prevalente, temi ricorrenti, criticita' reputazionali. Ogni osservazione deve citare articoli specifici."
	case model.IntentQuantitative:
		return "Rispondi con dati quantitativi: conteggi, distribuzioni e andamenti ricavati dalle statistiche e dagli articoli forniti. Niente stime."
	case model.IntentRead:
		return "Riporta fedelmente il contenuto degli articoli richiesti, indicando testata, data e firma. Non riassumere oltre il necessario."
	case model.IntentRisk:
		return "Evidenzia gli articoli con rischio reputazionale, dal piu' grave al meno grave, spiegando per ciascuno la natura del rischio."
	default:
		return "Rispondi in modo diretto e conciso alla domanda, citando sempre testata e data."
	}
}

// History trimming: the newest turns are kept under a character budget that
// shrinks as the corpus context grows, so total prompt size stays bounded.
const (
	historyMaxTurns = 10
	historyMaxChars = 20000
	historyMinChars = 2000
)

// historyBudget is the explicit context/history trade-off: every four
// characters of corpus context cost one character of history, floored.
func historyBudget(contextLen int) int {
	budget := historyMaxChars - contextLen/4
	if budget < historyMinChars {
		return historyMinChars
	}
	return budget
}

// TrimHistory drops oldest turns first until the remaining history fits the
// budget for the given context size, keeping at most historyMaxTurns turns.
func TrimHistory(history []session.Turn, contextLen int) []session.Turn {
	if len(history) > historyMaxTurns {
		history = history[len(history)-historyMaxTurns:]
	}
	budget := historyBudget(contextLen)

	total := 0
	for _, t := range history {
		total += len(t.Question) + len(t.Answer)
	}
	for len(history) > 0 && total > budget {
		total -= len(history[0].Question) + len(history[0].Answer)
		history = history[1:]
	}
	return history
}

// BuildPrompt assembles the system text and message sequence: preamble,
// intent instructions, statistics, budgeted corpus, trimmed history and the
// question last.
func BuildPrompt(intent model.Intent, question string, stats string, corpus BuildResult, history []session.Turn) (string, []anthropic.Message) {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\n")
	sb.WriteString(intentInstructions(intent))
	sb.WriteString("\n\n=== STATISTICHE DEL CORPUS ===\n")
	sb.WriteString(stats)
	fmt.Fprintf(&sb, "\n\n=== ARTICOLI PIU' RILEVANTI (%d inclusi su %d candidati) ===\n\n",
		corpus.Included, corpus.Candidates)
	sb.WriteString(corpus.Text)
	system := sb.String()

	trimmed := TrimHistory(history, len(corpus.Text))
	msgs := make([]anthropic.Message, 0, len(trimmed)*2+1)
	for _, t := range trimmed {
		msgs = append(msgs,
			anthropic.Message{Role: "user", Content: t.Question},
			anthropic.Message{Role: "assistant", Content: t.Answer},
		)
	}
	msgs = append(msgs, anthropic.Message{Role: "user", Content: question})
	return system, msgs
}
