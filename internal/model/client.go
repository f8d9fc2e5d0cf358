package model

import (
	"strings"
	"time"
)

// Client is a watch subject: a named entity monitored through a keyword
// list. The association with articles is computed at query time, never
// stored.
type Client struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Keywords      string `json:"keywords,omitempty"` // comma-separated
	SemanticTopic string `json:"semantic_topic,omitempty"`
}

// KeywordList parses the comma- or newline-separated keyword field into
// lowercase trimmed keywords.
func (c Client) KeywordList() []string {
	return ParseKeywords(c.Keywords)
}

// ParseKeywords splits a raw keyword field into lowercase trimmed entries.
func ParseKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, "\n", ",")
	var out []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// MonitoredSource is a web source polled by the monitor (RSS feed or
// plain HTML page).
type MonitoredSource struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Type   string `json:"type"` // "rss" or "scrape"
	Active bool   `json:"active"`
}

// WebMention is a monitored-web hit matched to at least one client.
type WebMention struct {
	ID              string    `json:"id"`
	SourceName      string    `json:"source_name"`
	SourceURL       string    `json:"source_url"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	PublishedAt     time.Time `json:"published_at"`
	Summary         string    `json:"summary,omitempty"`
	MatchedClient   string    `json:"matched_client"`
	MatchedKeywords []string  `json:"matched_keywords,omitempty"`
	Tone            Tone      `json:"tone,omitempty"`
	Risk            RiskLevel `json:"risk,omitempty"`
	Fingerprint     string    `json:"fingerprint"`
}
