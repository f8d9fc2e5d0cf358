package monitor

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/maim-pdmr/spiz/internal/model"
)

// minHeadlineChars filters out navigation links on scraped pages. Real
// headlines are longer than menu entries.
const minHeadlineChars = 20

// scrapeMentions extracts headline links from a plain HTML page and keeps
// the ones matching at least one client. Fallback for sources without a
// feed: every anchor with an absolute URL and a headline-length text is a
// candidate.
func scrapeMentions(body []byte, src model.MonitoredSource, clients []model.Client, now time.Time) ([]model.WebMention, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "monitor: parse html")
	}

	var mentions []model.WebMention
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Text())
		href, _ := sel.Attr("href")
		if len(title) < minHeadlineChars || !strings.HasPrefix(href, "http") {
			return
		}

		names, keywords := matchClients(title, clients)
		if names == "" {
			return
		}

		mentions = append(mentions, model.WebMention{
			SourceName:      src.Name,
			SourceURL:       src.URL,
			Title:           title,
			URL:             href,
			PublishedAt:     now,
			MatchedClient:   names,
			MatchedKeywords: keywords,
			Tone:            model.ToneNeutral,
			Risk:            model.RiskNone,
			Fingerprint:     Fingerprint(title, href),
		})
	})
	return mentions, nil
}
