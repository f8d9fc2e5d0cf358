package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maim-pdmr/spiz/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func articleRowValues(a model.Article) []any {
	return []any{
		a.ID, a.Source, a.PubDate, a.Page, a.Kicker, a.Title, a.Subtitle,
		a.Byline, a.Body, a.Topic, a.Sectors, a.ArticleType, string(a.Tone),
		string(a.Risk), a.AVE, a.MatchedClient, a.SourceType, a.Fingerprint,
	}
}

func TestPostgresStore_GetArticle(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	want := model.Article{
		ID:          "a1",
		Source:      "Il Tempo",
		PubDate:     time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Title:       "Titolo",
		Byline:      "Mario Rossi",
		Tone:        model.ToneNeutral,
		Risk:        model.RiskNone,
		AVE:         1200.50,
		SourceType:  "press",
		Fingerprint: "fp1",
	}

	mock.ExpectQuery(`SELECT id, source, pub_date, .* FROM articles WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows(articleColumns).AddRow(articleRowValues(want)...))

	got, err := s.GetArticle(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetArticle_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, pub_date, .* FROM articles WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetArticle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchArticles_FilterClauses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := model.Article{
		ID: "a1", Source: "Il Tempo", Title: "Titolo",
		PubDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Fingerprint: "fp1",
	}
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM articles WHERE pub_date >= \$1 AND pub_date <= \$2 AND byline ILIKE \$3 ORDER BY pub_date DESC, id LIMIT 10`).
		WithArgs(from, to, "%rossi%").
		WillReturnRows(pgxmock.NewRows(articleColumns).AddRow(articleRowValues(a)...))

	got, err := s.SearchArticles(context.Background(), ArticleFilter{
		From: from, To: to, Byline: "rossi", Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchArticles_TextSearchesAllFields(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM articles WHERE \(title ILIKE \$1 OR kicker ILIKE \$2 OR subtitle ILIKE \$3 OR topic ILIKE \$4 OR sectors ILIKE \$5 OR body ILIKE \$6\)`).
		WithArgs("%energia%", "%energia%", "%energia%", "%energia%", "%energia%", "%energia%").
		WillReturnRows(pgxmock.NewRows(articleColumns))

	got, err := s.SearchArticles(context.Background(), ArticleFilter{Text: "energia"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountArticles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM articles WHERE tone = \$1`).
		WithArgs("").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	n, err := s.CountArticles(context.Background(), ArticleFilter{OnlyUnanalyzed: true})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertArticles_SplitsInsertedAndUpdated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	articles := []model.Article{
		{Title: "uno", Source: "A", PubDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{Title: "due", Source: "B", PubDate: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)},
		{Title: "tre", Source: "C", PubDate: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_articles"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_articles"}, articleColumns).
		WillReturnResult(3)
	mock.ExpectQuery(`INSERT INTO "articles" .* ON CONFLICT \("fingerprint"\) DO UPDATE SET .* RETURNING \(xmax = 0\)`).
		WillReturnRows(pgxmock.NewRows([]string{"inserted"}).
			AddRow(true).AddRow(true).AddRow(false))
	mock.ExpectCommit()

	inserted, updated, err := s.UpsertArticles(context.Background(), articles)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertArticles_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	inserted, updated, err := s.UpsertArticles(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Zero(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAnalysis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE articles SET tone = \$1, topic = \$2, risk = \$3 WHERE id = \$4`).
		WithArgs("Negative", "governance", "High", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateAnalysis(context.Background(), "missing", model.ToneNegative, "governance", model.RiskHigh)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteArticle(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM articles WHERE id = \$1`).
		WithArgs("a1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, s.DeleteArticle(context.Background(), "a1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertMentions_CountsOnlyNewRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	mentions := []model.WebMention{
		{Title: "nuova", URL: "https://a.example/1", PublishedAt: now, Fingerprint: "m1"},
		{Title: "vista", URL: "https://a.example/2", PublishedAt: now, Fingerprint: "m2"},
	}

	mock.ExpectExec(`INSERT INTO web_mentions .* ON CONFLICT \(fingerprint\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "", "", "nuova", "https://a.example/1", now, "", "", "", "", "", "m1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO web_mentions .* ON CONFLICT \(fingerprint\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "", "", "vista", "https://a.example/2", now, "", "", "", "", "", "m2").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.UpsertMentions(context.Background(), mentions)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetClientByName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, keywords, semantic_topic FROM clients WHERE lower\(name\) = lower\(\$1\)`).
		WithArgs("assente").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetClientByName(context.Background(), "assente")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
