package monitor

import (
	"encoding/xml"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/maim-pdmr/spiz/internal/model"
)

// rssFeed is the subset of RSS 2.0 the monitor reads.
type rssFeed struct {
	XMLName xml.Name  `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// maxSummaryChars bounds the stored mention summary.
const maxSummaryChars = 1000

// rssMentions parses a feed payload and keeps the entries matching at
// least one client.
func rssMentions(body []byte, src model.MonitoredSource, clients []model.Client, now time.Time) ([]model.WebMention, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, eris.Wrap(err, "monitor: parse rss")
	}

	var mentions []model.WebMention
	for _, item := range feed.Channel.Items {
		title := strings.TrimSpace(item.Title)
		summary := stripHTML(item.Description)

		names, keywords := matchClients(title+" "+summary, clients)
		if names == "" {
			continue
		}

		if len(summary) > maxSummaryChars {
			// Cut on a rune boundary so an accented character is never split.
			r := []rune(summary)
			if len(r) > maxSummaryChars {
				r = r[:maxSummaryChars]
			}
			summary = string(r)
		}
		mentions = append(mentions, model.WebMention{
			SourceName:      src.Name,
			SourceURL:       src.URL,
			Title:           title,
			URL:             strings.TrimSpace(item.Link),
			PublishedAt:     parsePubDate(item.PubDate, now),
			Summary:         summary,
			MatchedClient:   names,
			MatchedKeywords: keywords,
			Tone:            model.ToneNeutral,
			Risk:            model.RiskNone,
			Fingerprint:     Fingerprint(title, item.Link),
		})
	}
	return mentions, nil
}

// pubDateLayouts covers the formats feeds actually emit.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02",
}

func parsePubDate(value string, now time.Time) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return now
}

var tagExpr = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup from a feed description. Feeds embed anchors
// and formatting in summaries; only the text matters for matching.
func stripHTML(s string) string {
	return strings.Join(strings.Fields(tagExpr.ReplaceAllString(s, " ")), " ")
}
