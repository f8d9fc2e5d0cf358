// Package monitor polls configured web sources (RSS feeds and plain HTML
// pages) for mentions of watched clients and stores the hits.
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/maim-pdmr/spiz/internal/model"
)

// MentionStore is the slice of the store the monitor needs.
type MentionStore interface {
	ListSources(ctx context.Context, activeOnly bool) ([]model.MonitoredSource, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	UpsertMentions(ctx context.Context, mentions []model.WebMention) (int, error)
}

const (
	defaultFetchTimeout = 10 * time.Second
	defaultRatePerSec   = 2
	userAgent           = "spiz-monitor/1.0"
)

// Monitor runs one scan pass over all active sources.
type Monitor struct {
	store   MentionStore
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// New builds a monitor. Nil client and clock select defaults; ratePerSec
// non-positive selects the default fetch rate.
func New(store MentionStore, client *http.Client, ratePerSec float64, now func() time.Time) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if ratePerSec <= 0 {
		ratePerSec = defaultRatePerSec
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		store:   store,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		now:     now,
	}
}

// Summary reports one scan pass.
type Summary struct {
	Sources  int `json:"sources"`
	Matches  int `json:"matches"`
	Inserted int `json:"inserted"`
	Failed   int `json:"failed"`
}

// Run scans every active source once. A failing source is logged and
// skipped; the pass continues with the rest.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	sources, err := m.store.ListSources(ctx, true)
	if err != nil {
		return Summary{}, eris.Wrap(err, "monitor: list sources")
	}
	clients, err := m.store.ListClients(ctx)
	if err != nil {
		return Summary{}, eris.Wrap(err, "monitor: list clients")
	}

	summary := Summary{Sources: len(sources)}
	if len(sources) == 0 || len(clients) == 0 {
		zap.L().Info("monitor pass skipped",
			zap.Int("sources", len(sources)),
			zap.Int("clients", len(clients)),
		)
		return summary, nil
	}

	var all []model.WebMention
	for _, src := range sources {
		mentions, err := m.scanSource(ctx, src, clients)
		if err != nil {
			summary.Failed++
			zap.L().Warn("source scan failed",
				zap.String("source", src.Name),
				zap.String("url", src.URL),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("source scanned",
			zap.String("source", src.Name),
			zap.Int("matches", len(mentions)),
		)
		all = append(all, mentions...)
	}

	all = dedupMentions(all)
	summary.Matches = len(all)
	if len(all) == 0 {
		return summary, nil
	}

	inserted, err := m.store.UpsertMentions(ctx, all)
	if err != nil {
		return summary, eris.Wrap(err, "monitor: upsert mentions")
	}
	summary.Inserted = inserted
	return summary, nil
}

func (m *Monitor) scanSource(ctx context.Context, src model.MonitoredSource, clients []model.Client) ([]model.WebMention, error) {
	body, err := m.fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	if src.Type == "scrape" {
		return scrapeMentions(body, src, clients, m.now())
	}
	return rssMentions(body, src, clients, m.now())
}

// fetch downloads one URL under the shared rate limit.
func (m *Monitor) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "monitor: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: build request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "monitor: fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("monitor: %s returned %s", url, resp.Status)
	}
	return readBody(resp)
}

// maxBodyBytes caps a single fetched document.
const maxBodyBytes = 4 << 20

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "monitor: read body")
	}
	return body, nil
}

// Fingerprint identifies a mention by normalized title plus URL, so the
// same story seen on consecutive passes is stored once.
func Fingerprint(title, url string) string {
	key := cleanText(title) + "|" + strings.TrimSpace(url)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func dedupMentions(mentions []model.WebMention) []model.WebMention {
	seen := make(map[string]bool, len(mentions))
	out := mentions[:0:0]
	for _, mn := range mentions {
		if seen[mn.Fingerprint] {
			continue
		}
		seen[mn.Fingerprint] = true
		out = append(out, mn)
	}
	return out
}
