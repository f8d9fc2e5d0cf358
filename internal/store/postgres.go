package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/maim-pdmr/spiz/internal/db"
	"github.com/maim-pdmr/spiz/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// psql builds queries with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// articleColumns is the canonical column order used by every article
// query and by the bulk upsert.
var articleColumns = []string{
	"id", "source", "pub_date", "page", "kicker", "title", "subtitle",
	"byline", "body", "topic", "sectors", "article_type", "tone", "risk",
	"ave", "matched_client", "source_type", "fingerprint",
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_article":     `SELECT id, source, pub_date, page, kicker, title, subtitle, byline, body, topic, sectors, article_type, tone, risk, ave, matched_client, source_type, fingerprint FROM articles WHERE id = $1`,
	"update_analysis": `UPDATE articles SET tone = $1, topic = $2, risk = $3 WHERE id = $4`,
	"delete_article":  `DELETE FROM articles WHERE id = $1`,
	"insert_mention":  `INSERT INTO web_mentions (id, source_name, source_url, title, url, published_at, summary, matched_client, matched_keywords, tone, risk, fingerprint) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) ON CONFLICT (fingerprint) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source         TEXT NOT NULL,
	pub_date       DATE NOT NULL,
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
	ave            DOUBLE PRECISION NOT NULL DEFAULT 0,
	matched_client TEXT NOT NULL DEFAULT '',
	source_type    TEXT NOT NULL DEFAULT 'press',
	fingerprint    TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles(pub_date DESC);
CREATE INDEX IF NOT EXISTS idx_articles_byline ON articles(byline);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
CREATE INDEX IF NOT EXISTS idx_articles_matched_client ON articles(matched_client);
CREATE INDEX IF NOT EXISTS idx_articles_tone ON articles(tone);

CREATE TABLE IF NOT EXISTS clients (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name           TEXT NOT NULL UNIQUE,
	keywords       TEXT NOT NULL DEFAULT '',
	semantic_topic TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS monitored_sources (
	id     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name   TEXT NOT NULL,
	url    TEXT NOT NULL UNIQUE,
	type   TEXT NOT NULL DEFAULT 'rss',
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS web_mentions (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_name      TEXT NOT NULL,
	source_url       TEXT NOT NULL,
	title            TEXT NOT NULL,
	url              TEXT NOT NULL,
	published_at     TIMESTAMPTZ NOT NULL,
	summary          TEXT NOT NULL DEFAULT '',
	matched_client   TEXT NOT NULL DEFAULT '',
	matched_keywords TEXT NOT NULL DEFAULT '',
	tone             TEXT NOT NULL DEFAULT '',
	risk             TEXT NOT NULL DEFAULT '',
	fingerprint      TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_web_mentions_published_at ON web_mentions(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_web_mentions_matched_client ON web_mentions(matched_client);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertArticles(ctx context.Context, articles []model.Article) (int, int, error) {
	if len(articles) == 0 {
		return 0, 0, nil
	}

	rows := make([][]any, 0, len(articles))
	for _, a := range articles {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Fingerprint == "" {
			a.Fingerprint = model.ComputeFingerprint(a)
		}
		rows = append(rows, []any{
			a.ID, a.Source, a.PubDate, a.Page, a.Kicker, a.Title, a.Subtitle,
			a.Byline, a.Body, a.Topic, a.Sectors, a.ArticleType, string(a.Tone),
			string(a.Risk), a.AVE, a.MatchedClient, a.SourceType, a.Fingerprint,
		})
	}

	res, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "articles",
		Columns:      articleColumns,
		ConflictKeys: []string{"fingerprint"},
		// The row id is stable across re-imports of the same article.
		UpdateCols: []string{
			"source", "pub_date", "page", "kicker", "title", "subtitle",
			"byline", "body", "topic", "sectors", "article_type", "tone",
			"risk", "ave", "matched_client", "source_type",
		},
	}, rows)
	if err != nil {
		return 0, 0, eris.Wrap(err, "postgres: upsert articles")
	}
	return int(res.Inserted), int(res.Updated), nil
}

// articleWhere applies an ArticleFilter to a select builder.
func articleWhere(qb sq.SelectBuilder, f ArticleFilter) sq.SelectBuilder {
	if !f.From.IsZero() {
		qb = qb.Where(sq.GtOrEq{"pub_date": f.From})
	}
	if !f.To.IsZero() {
		qb = qb.Where(sq.LtOrEq{"pub_date": f.To})
	}
	if f.Byline != "" {
		qb = qb.Where(sq.ILike{"byline": "%" + f.Byline + "%"})
	}
	if f.Source != "" {
		qb = qb.Where(sq.ILike{"source": "%" + f.Source + "%"})
	}
	if f.Client != "" {
		qb = qb.Where(sq.Eq{"matched_client": f.Client})
	}
	if f.Text != "" {
		pat := "%" + f.Text + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"title": pat},
			sq.ILike{"kicker": pat},
			sq.ILike{"subtitle": pat},
			sq.ILike{"topic": pat},
			sq.ILike{"sectors": pat},
			sq.ILike{"body": pat},
		})
	}
	if f.OnlyUnanalyzed {
		qb = qb.Where(sq.Eq{"tone": ""})
	}
	return qb
}

func (s *PostgresStore) SearchArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error) {
	qb := articleWhere(psql.Select(articleColumns...).From("articles"), filter).
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
		return nil, eris.Wrap(err, "postgres: build search query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search articles")
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, eris.Wrap(rows.Err(), "postgres: search articles iterate")
}

func (s *PostgresStore) CountArticles(ctx context.Context, filter ArticleFilter) (int, error) {
	query, args, err := articleWhere(psql.Select("COUNT(*)").From("articles"), filter).ToSql()
	if err != nil {
		return 0, eris.Wrap(err, "postgres: build count query")
	}
	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "postgres: count articles")
	}
	return count, nil
}

// scanner covers pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (model.Article, error) {
	var a model.Article
	var tone, risk string
	err := row.Scan(
		&a.ID, &a.Source, &a.PubDate, &a.Page, &a.Kicker, &a.Title,
		&a.Subtitle, &a.Byline, &a.Body, &a.Topic, &a.Sectors,
		&a.ArticleType, &tone, &risk, &a.AVE, &a.MatchedClient,
		&a.SourceType, &a.Fingerprint,
	)
	if err != nil {
		return a, eris.Wrap(err, "postgres: scan article")
	}
	a.Tone = model.Tone(tone)
	a.Risk = model.RiskLevel(risk)
	return a, nil
}

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	a, err := scanArticle(s.pool.QueryRow(ctx,
		preparedStatements["get_article"], id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get article %s", id)
	}
	return &a, nil
}

func (s *PostgresStore) UpdateArticle(ctx context.Context, article model.Article) error {
	query, args, err := psql.Update("articles").
		Set("source", article.Source).
		Set("pub_date", article.PubDate).
		Set("page", article.Page).
		Set("kicker", article.Kicker).
		Set("title", article.Title).
		Set("subtitle", article.Subtitle).
		Set("byline", article.Byline).
		Set("body", article.Body).
		Set("topic", article.Topic).
		Set("sectors", article.Sectors).
		Set("article_type", article.ArticleType).
		Set("tone", string(article.Tone)).
		Set("risk", string(article.Risk)).
		Set("ave", article.AVE).
		Set("matched_client", article.MatchedClient).
		Set("source_type", article.SourceType).
		Where(sq.Eq{"id": article.ID}).
		ToSql()
	if err != nil {
		return eris.Wrap(err, "postgres: build update query")
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update article %s", article.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteArticle(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, preparedStatements["delete_article"], id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete article %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAnalysis(ctx context.Context, id string, tone model.Tone, topic string, risk model.RiskLevel) error {
	tag, err := s.pool.Exec(ctx,
		preparedStatements["update_analysis"],
		string(tone), topic, string(risk), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateClient(ctx context.Context, client model.Client) (*model.Client, error) {
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clients (id, name, keywords, semantic_topic) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET keywords = $3, semantic_topic = $4`,
		client.ID, client.Name, client.Keywords, client.SemanticTopic,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create client %s", client.Name)
	}
	return &client, nil
}

func (s *PostgresStore) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, keywords, semantic_topic FROM clients ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list clients")
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Keywords, &c.SemanticTopic); err != nil {
			return nil, eris.Wrap(err, "postgres: scan client")
		}
		clients = append(clients, c)
	}
	return clients, eris.Wrap(rows.Err(), "postgres: list clients iterate")
}

func (s *PostgresStore) GetClientByName(ctx context.Context, name string) (*model.Client, error) {
	var c model.Client
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, keywords, semantic_topic FROM clients WHERE lower(name) = lower($1)`,
		name,
	).Scan(&c.ID, &c.Name, &c.Keywords, &c.SemanticTopic)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get client %s", name)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteClient(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete client %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateSource(ctx context.Context, src model.MonitoredSource) (*model.MonitoredSource, error) {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitored_sources (id, name, url, type, active) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (url) DO UPDATE SET name = $2, type = $4, active = $5`,
		src.ID, src.Name, src.URL, src.Type, src.Active,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create source %s", src.URL)
	}
	return &src, nil
}

func (s *PostgresStore) ListSources(ctx context.Context, activeOnly bool) ([]model.MonitoredSource, error) {
	qb := psql.Select("id", "name", "url", "type", "active").
		From("monitored_sources").OrderBy("name")
	if activeOnly {
		qb = qb.Where(sq.Eq{"active": true})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list sources query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var sources []model.MonitoredSource
	for rows.Next() {
		var m model.MonitoredSource
		if err := rows.Scan(&m.ID, &m.Name, &m.URL, &m.Type, &m.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		sources = append(sources, m)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

func (s *PostgresStore) SetSourceActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitored_sources SET active = $1 WHERE id = $2`, active, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set source active %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSource(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM monitored_sources WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete source %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertMentions(ctx context.Context, mentions []model.WebMention) (int, error) {
	var inserted int
	for _, m := range mentions {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		tag, err := s.pool.Exec(ctx,
			preparedStatements["insert_mention"],
			m.ID, m.SourceName, m.SourceURL, m.Title, m.URL, m.PublishedAt,
			m.Summary, m.MatchedClient, joinKeywords(m.MatchedKeywords),
			string(m.Tone), string(m.Risk), m.Fingerprint,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert mention %s", m.URL)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) ListMentions(ctx context.Context, filter MentionFilter) ([]model.WebMention, error) {
	qb := psql.Select(
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
		return nil, eris.Wrap(err, "postgres: build list mentions query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mentions")
	}
	defer rows.Close()

	var mentions []model.WebMention
	for rows.Next() {
		var m model.WebMention
		var tone, risk, keywords string
		if err := rows.Scan(&m.ID, &m.SourceName, &m.SourceURL, &m.Title,
			&m.URL, &m.PublishedAt, &m.Summary, &m.MatchedClient,
			&keywords, &tone, &risk, &m.Fingerprint); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mention")
		}
		m.Tone = model.Tone(tone)
		m.Risk = model.RiskLevel(risk)
		m.MatchedKeywords = splitKeywords(keywords)
		mentions = append(mentions, m)
	}
	return mentions, eris.Wrap(rows.Err(), "postgres: list mentions iterate")
}
