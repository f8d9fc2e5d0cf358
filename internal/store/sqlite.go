package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/maim-pdmr/spiz/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// single-user deployment target; Postgres is the server target.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	pub_date       TEXT NOT NULL,
	page           TEXT NOT NULL DEFAULT '',
	kicker         TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL,
	subtitle       TEXT NOT NULL DEFAULT '',
	byline         TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	topic          TEXT NOT NULL DEFAULT '',
	sectors        TEXT NOT NULL DEFAULT '',
	article_type   TEXT NOT NULL DEFAULT '',
	tone           TEXT NOT NULL DEFAULT '',
	risk           TEXT NOT NULL DEFAULT '',
	ave            REAL NOT NULL DEFAULT 0,
	matched_client TEXT NOT NULL DEFAULT '',
	source_type    TEXT NOT NULL DEFAULT 'press',
	fingerprint    TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);
CREATE INDEX IF NOT EXISTS idx_articles_byline ON articles(byline);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);

CREATE TABLE IF NOT EXISTS clients (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL UNIQUE,
	keywords       TEXT NOT NULL DEFAULT '',
	semantic_topic TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS monitored_sources (
	id     TEXT PRIMARY KEY,
	name   TEXT NOT NULL,
	url    TEXT NOT NULL UNIQUE,
	type   TEXT NOT NULL DEFAULT 'rss',
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS web_mentions (
	id               TEXT PRIMARY KEY,
	source_name      TEXT NOT NULL,
	source_url       TEXT NOT NULL,
	title            TEXT NOT NULL,
	url              TEXT NOT NULL,
	published_at     DATETIME NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	matched_client   TEXT NOT NULL DEFAULT '',
	matched_keywords TEXT NOT NULL DEFAULT '',
	tone             TEXT NOT NULL DEFAULT '',
	risk             TEXT NOT NULL DEFAULT '',
	fingerprint      TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_web_mentions_published_at ON web_mentions(published_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteDateLayout = "2006-01-02"

func (s *SQLiteStore) UpsertArticles(ctx context.Context, articles []model.Article) (int, int, error) {
	if len(articles) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	var inserted, updated int
	for _, a := range articles {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Fingerprint == "" {
			a.Fingerprint = model.ComputeFingerprint(a)
		}

		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM articles WHERE fingerprint = ?`, a.Fingerprint,
		).Scan(&exists)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, sql.ErrNoRows):
			inserted++
		default:
			return inserted, updated, eris.Wrap(err, "sqlite: check fingerprint")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO articles
			 (id, source, pub_date, page, kicker, title, subtitle, byline, body,
			  topic, sectors, article_type, tone, risk, ave, matched_client,
			  source_type, fingerprint)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(fingerprint) DO UPDATE SET
			   source = excluded.source, pub_date = excluded.pub_date,
			   page = excluded.page, kicker = excluded.kicker,
			   title = excluded.title, subtitle = excluded.subtitle,
			   byline = excluded.byline, body = excluded.body,
			   topic = excluded.topic, sectors = excluded.sectors,
			   article_type = excluded.article_type, tone = excluded.tone,
			   risk = excluded.risk, ave = excluded.ave,
			   matched_client = excluded.matched_client,
			   source_type = excluded.source_type`,
			a.ID, a.Source, a.DateString(), a.Page, a.Kicker, a.Title,
			a.Subtitle, a.Byline, a.Body, a.Topic, a.Sectors, a.ArticleType,
			string(a.Tone), string(a.Risk), a.AVE, a.MatchedClient,
			a.SourceType, a.Fingerprint,
		)
		if err != nil {
			return inserted, updated, eris.Wrap(err, "sqlite: upsert article")
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, updated, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return inserted, updated, nil
}

// sqliteArticleWhere applies an ArticleFilter using lower() comparisons;
// SQLite's LIKE is only case-insensitive for ASCII and ILIKE does not exist.
func sqliteArticleWhere(qb sq.SelectBuilder, f ArticleFilter) sq.SelectBuilder {
	if !f.From.IsZero() {
		qb = qb.Where(sq.GtOrEq{"pub_date": f.From.Format(sqliteDateLayout)})
	}
	if !f.To.IsZero() {
		qb = qb.Where(sq.LtOrEq{"pub_date": f.To.Format(sqliteDateLayout)})
	}
	if f.Byline != "" {
		qb = qb.Where(sq.Expr("lower(byline) LIKE ?", likePattern(f.Byline)))
	}
	if f.Source != "" {
		qb = qb.Where(sq.Expr("lower(source) LIKE ?", likePattern(f.Source)))
	}
	if f.Client != "" {
		qb = qb.Where(sq.Eq{"matched_client": f.Client})
	}
	if f.Text != "" {
		pat := likePattern(f.Text)
		qb = qb.Where(sq.Or{
			sq.Expr("lower(title) LIKE ?", pat),
			sq.Expr("lower(kicker) LIKE ?", pat),
			sq.Expr("lower(subtitle) LIKE ?", pat),
			sq.Expr("lower(topic) LIKE ?", pat),
			sq.Expr("lower(sectors) LIKE ?", pat),
			sq.Expr("lower(body) LIKE ?", pat),
		})
	}
	if f.OnlyUnanalyzed {
		qb = qb.Where(sq.Eq{"tone": ""})
	}
	return qb
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

func (s *SQLiteStore) SearchArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error) {
	qb := sqliteArticleWhere(sq.Select(articleColumns...).From("articles"), filter).
		OrderBy("pub_date DESC", "id")

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	qb = qb.Limit(uint64(limit))
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build search query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search articles")
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		a, err := scanSQLiteArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, eris.Wrap(rows.Err(), "sqlite: search articles iterate")
}

func (s *SQLiteStore) CountArticles(ctx context.Context, filter ArticleFilter) (int, error) {
	query, args, err := sqliteArticleWhere(sq.Select("COUNT(*)").From("articles"), filter).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: build count query")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "sqlite: count articles")
	}
	return count, nil
}

func scanSQLiteArticle(row scanner) (model.Article, error) {
	var a model.Article
	var pubDate, tone, risk string
	err := row.Scan(
		&a.ID, &a.Source, &pubDate, &a.Page, &a.Kicker, &a.Title,
		&a.Subtitle, &a.Byline, &a.Body, &a.Topic, &a.Sectors,
		&a.ArticleType, &tone, &risk, &a.AVE, &a.MatchedClient,
		&a.SourceType, &a.Fingerprint,
	)
	if err != nil {
		return a, eris.Wrap(err, "sqlite: scan article")
	}
	a.Tone = model.Tone(tone)
	a.Risk = model.RiskLevel(risk)
	if pubDate != "" {
		a.PubDate, err = time.ParseInLocation(sqliteDateLayout, pubDate, time.UTC)
		if err != nil {
			return a, eris.Wrapf(err, "sqlite: parse pub_date %q", pubDate)
		}
	}
	return a, nil
}

func (s *SQLiteStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, pub_date, page, kicker, title, subtitle, byline,
		        body, topic, sectors, article_type, tone, risk, ave,
		        matched_client, source_type, fingerprint
		 FROM articles WHERE id = ?`,
		id,
	)
	a, err := scanSQLiteArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get article %s", id)
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateArticle(ctx context.Context, article model.Article) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET
		   source = ?, pub_date = ?, page = ?, kicker = ?, title = ?,
		   subtitle = ?, byline = ?, body = ?, topic = ?, sectors = ?,
		   article_type = ?, tone = ?, risk = ?, ave = ?, matched_client = ?,
		   source_type = ?
		 WHERE id = ?`,
		article.Source, article.DateString(), article.Page, article.Kicker,
		article.Title, article.Subtitle, article.Byline, article.Body,
		article.Topic, article.Sectors, article.ArticleType,
		string(article.Tone), string(article.Risk), article.AVE,
		article.MatchedClient, article.SourceType, article.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update article %s", article.ID)
	}
	return checkRowsAffected(res, "article", article.ID)
}

func (s *SQLiteStore) DeleteArticle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete article %s", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) UpdateAnalysis(ctx context.Context, id string, tone model.Tone, topic string, risk model.RiskLevel) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET tone = ?, topic = ?, risk = ? WHERE id = ?`,
		string(tone), topic, string(risk), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update analysis %s", id)
	}
	return checkRowsAffected(res, "article", id)
}

func (s *SQLiteStore) CreateClient(ctx context.Context, client model.Client) (*model.Client, error) {
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, keywords, semantic_topic) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET keywords = excluded.keywords,
		   semantic_topic = excluded.semantic_topic`,
		client.ID, client.Name, client.Keywords, client.SemanticTopic,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create client %s", client.Name)
	}
	return &client, nil
}

func (s *SQLiteStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, keywords, semantic_topic FROM clients ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list clients")
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Keywords, &c.SemanticTopic); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan client")
		}
		clients = append(clients, c)
	}
	return clients, eris.Wrap(rows.Err(), "sqlite: list clients iterate")
}

func (s *SQLiteStore) GetClientByName(ctx context.Context, name string) (*model.Client, error) {
	var c model.Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, keywords, semantic_topic FROM clients WHERE lower(name) = lower(?)`,
		name,
	).Scan(&c.ID, &c.Name, &c.Keywords, &c.SemanticTopic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get client %s", name)
	}
	return &c, nil
}

func (s *SQLiteStore) DeleteClient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete client %s", id)
	}
	return checkRowsAffected(res, "client", id)
}

func (s *SQLiteStore) CreateSource(ctx context.Context, src model.MonitoredSource) (*model.MonitoredSource, error) {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitored_sources (id, name, url, type, active) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET name = excluded.name,
		   type = excluded.type, active = excluded.active`,
		src.ID, src.Name, src.URL, src.Type, src.Active,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create source %s", src.URL)
	}
	return &src, nil
}

func (s *SQLiteStore) ListSources(ctx context.Context, activeOnly bool) ([]model.MonitoredSource, error) {
	query := `SELECT id, name, url, type, active FROM monitored_sources`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var sources []model.MonitoredSource
	for rows.Next() {
		var m model.MonitoredSource
		if err := rows.Scan(&m.ID, &m.Name, &m.URL, &m.Type, &m.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		sources = append(sources, m)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

func (s *SQLiteStore) SetSourceActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE monitored_sources SET active = ? WHERE id = ?`, active, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set source active %s", id)
	}
	return checkRowsAffected(res, "source", id)
}

func (s *SQLiteStore) DeleteSource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM monitored_sources WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete source %s", id)
	}
	return checkRowsAffected(res, "source", id)
}

func (s *SQLiteStore) UpsertMentions(ctx context.Context, mentions []model.WebMention) (int, error) {
	var inserted int
	for _, m := range mentions {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO web_mentions
			 (id, source_name, source_url, title, url, published_at, summary,
			  matched_client, matched_keywords, tone, risk, fingerprint)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(fingerprint) DO NOTHING`,
			m.ID, m.SourceName, m.SourceURL, m.Title, m.URL, m.PublishedAt,
			m.Summary, m.MatchedClient, joinKeywords(m.MatchedKeywords),
			string(m.Tone), string(m.Risk), m.Fingerprint,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert mention %s", m.URL)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: mention rows affected")
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListMentions(ctx context.Context, filter MentionFilter) ([]model.WebMention, error) {
	qb := sq.Select(
		"id", "source_name", "source_url", "title", "url", "published_at",
		"summary", "matched_client", "matched_keywords", "tone", "risk", "fingerprint",
	).From("web_mentions").OrderBy("published_at DESC")

	if filter.Client != "" {
		qb = qb.Where(sq.Eq{"matched_client": filter.Client})
	}
	if !filter.Since.IsZero() {
		qb = qb.Where(sq.GtOrEq{"published_at": filter.Since})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	qb = qb.Limit(uint64(limit))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list mentions query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mentions")
	}
	defer rows.Close()

	var mentions []model.WebMention
	for rows.Next() {
		var m model.WebMention
		var tone, risk, keywords string
		if err := rows.Scan(&m.ID, &m.SourceName, &m.SourceURL, &m.Title,
			&m.URL, &m.PublishedAt, &m.Summary, &m.MatchedClient,
			&keywords, &tone, &risk, &m.Fingerprint); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mention")
		}
		m.Tone = model.Tone(tone)
		m.Risk = model.RiskLevel(risk)
		m.MatchedKeywords = splitKeywords(keywords)
		mentions = append(mentions, m)
	}
	return mentions, eris.Wrap(rows.Err(), "sqlite: list mentions iterate")
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
