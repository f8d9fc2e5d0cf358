package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/session"
	"github.com/maim-pdmr/spiz/pkg/anthropic"
)

const (
	// reportBatchSize articles per fact-extraction call.
	reportBatchSize = 10
	// reportConcurrency bounds parallel extraction calls.
	reportConcurrency = 4
	// extractMaxTokens bounds each map-phase response.
	extractMaxTokens = 1500
)

const extractInstructions = `Dal corpus qui sotto estrai i fatti salienti come elenco puntato.
Per ogni fatto indica testata e data tra parentesi. Nessun commento, solo fatti presenti negli articoli.`

// generateReport runs the scatter-gather document flow: articles are split
// into batches, facts are extracted from each batch concurrently, and a
// final synthesis call writes the structured report from the collected
// facts. A failed batch is logged and dropped; the report is built from
// whatever survived.
func (s *Service) generateReport(ctx context.Context, question string, articles []model.Article, stats string, history []session.Turn) (string, error) {
	tier := TierFor(model.IntentReport)

	batches := batchArticles(articles, reportBatchSize)
	// Results keyed by batch index keep the reduce deterministic.
	facts := make([]string, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			corpus := BuildContext(batch, tier)
			text, err := s.dispatcher.Complete(gctx, systemPreamble, []anthropic.Message{
				{Role: "user", Content: extractInstructions + "\n\n" + corpus.Text},
			}, Tier{MaxTokens: extractMaxTokens})
			if err != nil {
				zap.L().Warn("report batch extraction failed, dropping batch",
					zap.Int("batch", i),
					zap.Error(err),
				)
				return nil
			}
			facts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	kept := make([]string, 0, len(facts))
	for i, f := range facts {
		if strings.TrimSpace(f) == "" {
			continue
		}
		kept = append(kept, fmt.Sprintf("--- Blocco %d ---\n%s", i+1, f))
	}

	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\n")
	sb.WriteString(reportStructure)
	sb.WriteString("\n\n=== STATISTICHE DEL CORPUS ===\n")
	sb.WriteString(stats)
	fmt.Fprintf(&sb, "\n\n=== FATTI ESTRATTI (%d blocchi su %d) ===\n\n", len(kept), len(batches))
	sb.WriteString(strings.Join(kept, "\n\n"))
	system := sb.String()

	trimmed := TrimHistory(history, len(system))
	msgs := make([]anthropic.Message, 0, len(trimmed)*2+1)
	for _, t := range trimmed {
		msgs = append(msgs,
			anthropic.Message{Role: "user", Content: t.Question},
			anthropic.Message{Role: "assistant", Content: t.Answer},
		)
	}
	msgs = append(msgs, anthropic.Message{Role: "user", Content: question})

	return s.dispatcher.Complete(ctx, system, msgs, tier)
}

func batchArticles(articles []model.Article, size int) [][]model.Article {
	if size <= 0 {
		size = reportBatchSize
	}
	var batches [][]model.Article
	for start := 0; start < len(articles); start += size {
		end := start + size
		if end > len(articles) {
			end = len(articles)
		}
		batches = append(batches, articles[start:end])
	}
	return batches
}
