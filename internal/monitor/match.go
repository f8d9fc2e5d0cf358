package monitor

import (
	"sort"
	"strings"

	"github.com/maim-pdmr/spiz/internal/model"
)

// matchClients checks a text against every client's keyword list and
// returns the matched client names comma-joined plus the deduplicated
// sorted keywords that hit. Empty names means no match.
func matchClients(text string, clients []model.Client) (names string, keywords []string) {
	low := strings.ToLower(text)

	var matched []string
	hitSet := make(map[string]bool)
	for _, c := range clients {
		kws := c.KeywordList()
		if len(kws) == 0 {
			continue
		}
		clientHit := false
		for _, kw := range kws {
			if strings.Contains(low, kw) {
				clientHit = true
				hitSet[kw] = true
			}
		}
		if clientHit {
			matched = append(matched, c.Name)
		}
	}
	if len(matched) == 0 {
		return "", nil
	}

	hits := make([]string, 0, len(hitSet))
	for kw := range hitSet {
		hits = append(hits, kw)
	}
	sort.Strings(hits)
	return strings.Join(matched, ", "), hits
}
