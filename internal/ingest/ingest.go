package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/model"
)

// ArticleUpserter is the slice of the store the importer needs.
type ArticleUpserter interface {
	UpsertArticles(ctx context.Context, articles []model.Article) (inserted, updated int, err error)
}

// Importer loads clipping exports into the article store.
type Importer struct {
	store ArticleUpserter
	now   func() time.Time
}

// NewImporter builds an importer. A nil clock means time.Now.
func NewImporter(store ArticleUpserter, now func() time.Time) *Importer {
	if now == nil {
		now = time.Now
	}
	return &Importer{store: store, now: now}
}

// Summary reports what one import did.
type Summary struct {
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"` // in-batch fingerprint duplicates
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
}

// Message renders the summary as the user-facing Italian confirmation line.
func (s Summary) Message() string {
	return fmt.Sprintf("Elaborati %d articoli (%d duplicati). Inseriti: %d. Aggiornati: %d.",
		s.Processed, s.Duplicates, s.Inserted, s.Updated)
}

// ImportFile loads a clipping export by path, dispatching on extension.
// CSV and TXT go through the sniffing CSV reader, XLSX through tealeg.
func (im *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv", ".txt", "":
		var raw []byte
		raw, err = os.ReadFile(path)
		if err != nil {
			return Summary{}, eris.Wrap(err, "ingest: read file")
		}
		rows, err = readCSV(raw)
	default:
		return Summary{}, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return Summary{}, err
	}
	return im.ImportRows(ctx, rows)
}

// ImportCSV loads a clipping export from an in-memory CSV payload, as
// received by the upload endpoint.
func (im *Importer) ImportCSV(ctx context.Context, raw []byte) (Summary, error) {
	rows, err := readCSV(raw)
	if err != nil {
		return Summary{}, err
	}
	return im.ImportRows(ctx, rows)
}

// ImportRows maps raw rows (header first) to articles, drops in-batch
// fingerprint duplicates keeping the first occurrence, and upserts the rest.
func (im *Importer) ImportRows(ctx context.Context, rows [][]string) (Summary, error) {
	if len(rows) < 2 {
		return Summary{}, eris.New("ingest: no data rows")
	}

	idx := headerIndex(rows[0])
	if len(idx) == 0 {
		return Summary{}, eris.New("ingest: no recognized columns in header")
	}

	now := im.now()
	seen := make(map[string]bool)
	articles := make([]model.Article, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		a := rowToArticle(idx, row, now)
		if seen[a.Fingerprint] {
			continue
		}
		seen[a.Fingerprint] = true
		articles = append(articles, a)
	}

	processed := countNonEmpty(rows[1:])
	if len(articles) == 0 {
		return Summary{}, eris.New("ingest: no valid records")
	}

	inserted, updated, err := im.store.UpsertArticles(ctx, articles)
	if err != nil {
		return Summary{}, eris.Wrap(err, "ingest: upsert articles")
	}

	summary := Summary{
		Processed:  processed,
		Duplicates: processed - len(articles),
		Inserted:   inserted,
		Updated:    updated,
	}
	zap.L().Info("import complete",
		zap.Int("processed", summary.Processed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
	)
	return summary, nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func countNonEmpty(rows [][]string) int {
	n := 0
	for _, row := range rows {
		if !emptyRow(row) {
			n++
		}
	}
	return n
}
