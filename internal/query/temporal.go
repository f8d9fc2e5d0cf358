package query

import (
	"regexp"
	"strconv"
	"time"
)

// Hint is the coarse time-context selector sent alongside a question
// (dashboard tab, API parameter). It only applies when the question itself
// contains no recognizable time phrase.
type Hint string

const (
	HintToday   Hint = "today"
	HintWeek    Hint = "week"
	HintMonth   Hint = "month"
	HintYear    Hint = "year"
	HintGeneral Hint = "general"
)

// defaultDays maps a hint to its lookback window. Unknown hints fall back
// to the general 90-day window; an unrecognized time phrase never means
// the whole archive.
func (h Hint) defaultDays() int {
	switch h {
	case HintToday:
		return 0
	case HintWeek:
		return 7
	case HintMonth:
		return 30
	case HintYear:
		return 365
	default:
		return 90
	}
}

// DateRange is an inclusive calendar-date window. Archive marks the
// "no temporal bound" sentinel: both dates are zero and every article
// qualifies.
type DateRange struct {
	From    time.Time
	To      time.Time
	Archive bool
}

// TemporalRule maps a question pattern to a date range. Rules are evaluated
// in declared order and the first match wins, so more specific patterns must
// precede generic ones.
type TemporalRule struct {
	Name    string
	re      *regexp.Regexp
	resolve func(now time.Time, match []string) DateRange
}

// wordNumbers maps spelled-out Italian quantities used in time phrases.
var wordNumbers = map[string]int{
	"un": 1, "uno": 1, "una": 1, "due": 2, "tre": 3, "quattro": 4,
	"cinque": 5, "sei": 6, "sette": 7, "otto": 8, "nove": 9,
	"dieci": 10, "dodici": 12,
}

// unitDays maps a captured unit prefix to its day multiplier.
func unitDays(unit string) int {
	switch {
	case len(unit) >= 4 && unit[:4] == "sett":
		return 7
	case len(unit) >= 3 && unit[:3] == "mes":
		return 30
	case len(unit) >= 3 && unit[:3] == "ann":
		return 365
	default:
		return 1
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// lookback builds a resolver for "last N days ending today".
func lookback(days int) func(time.Time, []string) DateRange {
	return func(now time.Time, _ []string) DateRange {
		today := dateOnly(now)
		return DateRange{From: today.AddDate(0, 0, -days), To: today}
	}
}

// DefaultTemporalRules returns the ordered rule table. The order is
// load-bearing: the unified numeric-unit rule must run before the bare
// "ultimi giorni" bucket or "ultimi 10 giorni" would resolve to the
// generic window. Covered by tests.
func DefaultTemporalRules() []TemporalRule {
	return []TemporalRule{
		{
			Name: "archive",
			re:   regexp.MustCompile(`tutt[io]\s+(?:gli\s+)?articoli|in\s+totale|intero\s+archivio|tutto\s+il\s+database|da\s+sempre`),
			resolve: func(time.Time, []string) DateRange {
				return DateRange{Archive: true}
			},
		},
		{
			Name:    "today",
			re:      regexp.MustCompile(`\boggi\b|odiern`),
			resolve: lookback(0),
		},
		{
			Name:    "yesterday",
			re:      regexp.MustCompile(`ultime?\s*24\s*ore|\bieri\b`),
			resolve: lookback(1),
		},
		{
			// Closed historical range: Monday through Sunday of the
			// previous week, both bounds in the past.
			Name: "last-week-closed",
			re:   regexp.MustCompile(`(?:la\s+)?(?:settimana\s+scorsa|scorsa\s+settimana)`),
			resolve: func(now time.Time, _ []string) DateRange {
				today := dateOnly(now)
				sinceMonday := (int(today.Weekday()) + 6) % 7
				thisMonday := today.AddDate(0, 0, -sinceMonday)
				return DateRange{From: thisMonday.AddDate(0, 0, -7), To: thisMonday.AddDate(0, 0, -1)}
			},
		},
		{
			Name: "this-week",
			re:   regexp.MustCompile(`questa\s+settimana`),
			resolve: func(now time.Time, _ []string) DateRange {
				today := dateOnly(now)
				sinceMonday := (int(today.Weekday()) + 6) % 7
				return DateRange{From: today.AddDate(0, 0, -sinceMonday), To: today}
			},
		},
		{
			Name: "this-month",
			re:   regexp.MustCompile(`questo\s+mese`),
			resolve: func(now time.Time, _ []string) DateRange {
				today := dateOnly(now)
				return DateRange{From: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), To: today}
			},
		},
		{
			// Unified numeric-unit parser: "ultimi N giorni/settimane/mesi/anni"
			// with N numeric or spelled out. Unambiguous by construction, so
			// no per-quantity special cases are needed.
			Name: "numeric-unit",
			re:   regexp.MustCompile(`ultim[ioe]\s+(\d+|` + wordNumberAlternation + `)\s+(giorn\w*|settiman\w*|mes[ei]|ann[oi])`),
			resolve: func(now time.Time, m []string) DateRange {
				n, err := strconv.Atoi(m[1])
				if err != nil {
					n = wordNumbers[m[1]]
				}
				if n <= 0 {
					n = 1
				}
				return lookback(n * unitDays(m[2]))(now, m)
			},
		},
		{
			Name:    "last-week",
			re:      regexp.MustCompile(`ultima\s+settimana|ultimi\s+giorni`),
			resolve: lookback(7),
		},
		{
			Name:    "two-weeks",
			re:      regexp.MustCompile(`due\s+settimane|quindici\s+giorni|quindicina`),
			resolve: lookback(15),
		},
		{
			Name:    "last-month",
			re:      regexp.MustCompile(`ultimo\s+mese|mese\s+scorso|ultime\s+settimane`),
			resolve: lookback(30),
		},
		{
			Name:    "last-quarter",
			re:      regexp.MustCompile(`ultimo\s+trimestre|ultimi\s+mesi`),
			resolve: lookback(90),
		},
		{
			Name:    "last-semester",
			re:      regexp.MustCompile(`ultimo\s+semestre|ultimi\s+sei\s+mesi`),
			resolve: lookback(180),
		},
		{
			Name:    "last-year",
			re:      regexp.MustCompile(`ultimo\s+anno|anno\s+scorso|ultimi\s+12\s+mesi`),
			resolve: lookback(365),
		},
	}
}

const wordNumberAlternation = `un|uno|una|due|tre|quattro|cinque|sei|sette|otto|nove|dieci|dodici`

// ResolveTemporal maps a free-text question plus a context hint to an
// inclusive date range. Pure: same inputs always produce the same range.
func ResolveTemporal(question string, hint Hint, now time.Time) DateRange {
	return resolveTemporalWith(DefaultTemporalRules(), question, hint, now)
}

func resolveTemporalWith(rules []TemporalRule, question string, hint Hint, now time.Time) DateRange {
	q := lower(question)
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(q); m != nil {
			return r.resolve(now, m)
		}
	}
	return lookback(hint.defaultDays())(now, nil)
}
