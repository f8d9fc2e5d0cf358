package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Tone is the coarse editorial valence attached to an article.
type Tone string

const (
	TonePositive Tone = "Positive"
	ToneNeutral  Tone = "Neutral"
	ToneNegative Tone = "Negative"
)

// AllTones lists the valid tone labels.
func AllTones() []Tone {
	return []Tone{TonePositive, ToneNeutral, ToneNegative}
}

// RiskLevel is the coarse reputational-risk severity of an article.
type RiskLevel string

const (
	RiskNone   RiskLevel = "None"
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// AllRiskLevels lists the valid risk labels.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh}
}

// Article is one press clipping. PubDate carries the calendar date only;
// the time component is always midnight UTC.
type Article struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`         // testata
	PubDate       time.Time `json:"pub_date"`       // calendar date
	Page          string    `json:"page,omitempty"` // page number within the outlet
	Kicker        string    `json:"kicker,omitempty"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle,omitempty"`
	Byline        string    `json:"byline,omitempty"`
	Body          string    `json:"body,omitempty"`
	Topic         string    `json:"topic,omitempty"`   // dominant topic
	Sectors       string    `json:"sectors,omitempty"` // comma-separated macro sectors
	ArticleType   string    `json:"article_type,omitempty"`
	Tone          Tone      `json:"tone,omitempty"`
	Risk          RiskLevel `json:"risk,omitempty"`
	AVE           float64   `json:"ave,omitempty"` // advertising value equivalent, 0 = unknown
	MatchedClient string    `json:"matched_client,omitempty"`
	SourceType    string    `json:"source_type,omitempty"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
}

// DateString renders the publication date as ISO calendar date.
func (a Article) DateString() string {
	if a.PubDate.IsZero() {
		return ""
	}
	return a.PubDate.Format("2006-01-02")
}

// unsignedBylines is the placeholder set that marks an article as unsigned.
// Centralized here so every resolver agrees on what counts as a signature.
var unsignedBylines = map[string]bool{
	"":                     true,
	"n.d.":                 true,
	"n/d":                  true,
	"nd":                   true,
	"redazione":            true,
	"anonimo":              true,
	"autore non indicato":  true,
	"non disponibile":      true,
}

// IsUnsigned reports whether a byline is empty or a known placeholder.
func IsUnsigned(byline string) bool {
	return unsignedBylines[strings.ToLower(strings.TrimSpace(byline))]
}

// SplitSectors splits a comma- or semicolon-separated sector tag list,
// trimming blanks and deduplicating case-insensitively. The first spelling
// of each tag wins; order of first appearance is preserved.
func SplitSectors(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ";", ",")
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// NormalizeSectors re-joins a raw sector list in canonical deduplicated form.
func NormalizeSectors(raw string) string {
	return strings.Join(SplitSectors(raw), ", ")
}

// ComputeFingerprint derives the content fingerprint used as the upsert key:
// a hash of normalized title, date, source, byline and a body prefix. Two
// articles with equal fingerprints are the same clipping.
func ComputeFingerprint(a Article) string {
	body := cleanForHash(a.Body)
	if len(body) > 500 {
		body = body[:500]
	}
	key := strings.Join([]string{
		cleanForHash(a.Title),
		a.DateString(),
		cleanForHash(a.Source),
		cleanForHash(a.Byline),
		body,
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// cleanForHash lowercases and collapses whitespace so cosmetic differences
// do not produce distinct fingerprints.
func cleanForHash(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
