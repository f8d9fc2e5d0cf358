package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/maim-pdmr/spiz/internal/model"
)

// ErrNotFound is returned by single-row lookups when nothing matches.
var ErrNotFound = eris.New("store: not found")

// ArticleFilter specifies criteria for searching press articles. Zero-value
// fields are not applied; a zero From/To pair means the whole archive.
type ArticleFilter struct {
	From           time.Time `json:"from,omitempty"`
	To             time.Time `json:"to,omitempty"`
	Byline         string    `json:"byline,omitempty"`
	Text           string    `json:"text,omitempty"`
	Source         string    `json:"source,omitempty"`
	Client         string    `json:"client,omitempty"`
	OnlyUnanalyzed bool      `json:"only_unanalyzed,omitempty"`
	Limit          int       `json:"limit,omitempty"`
	Offset         int       `json:"offset,omitempty"`
}

// MentionFilter specifies criteria for listing web mentions.
type MentionFilter struct {
	Client string    `json:"client,omitempty"`
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
}

// Store defines the persistence interface for the press archive.
type Store interface {
	// Articles. UpsertArticles overwrites rows sharing a fingerprint with
	// the incoming values (last write wins).
	UpsertArticles(ctx context.Context, articles []model.Article) (inserted, updated int, err error)
	SearchArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error)
	CountArticles(ctx context.Context, filter ArticleFilter) (int, error)
	GetArticle(ctx context.Context, id string) (*model.Article, error)
	UpdateArticle(ctx context.Context, article model.Article) error
	DeleteArticle(ctx context.Context, id string) error
	UpdateAnalysis(ctx context.Context, id string, tone model.Tone, topic string, risk model.RiskLevel) error

	// Clients
	CreateClient(ctx context.Context, client model.Client) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	GetClientByName(ctx context.Context, name string) (*model.Client, error)
	DeleteClient(ctx context.Context, id string) error

	// Monitored sources
	CreateSource(ctx context.Context, src model.MonitoredSource) (*model.MonitoredSource, error)
	ListSources(ctx context.Context, activeOnly bool) ([]model.MonitoredSource, error)
	SetSourceActive(ctx context.Context, id string, active bool) error
	DeleteSource(ctx context.Context, id string) error

	// Web mentions. UpsertMentions skips rows whose fingerprint is already
	// stored and reports how many were new.
	UpsertMentions(ctx context.Context, mentions []model.WebMention) (int, error)
	ListMentions(ctx context.Context, filter MentionFilter) ([]model.WebMention, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Matched keywords are stored as one comma-joined column.

func joinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
