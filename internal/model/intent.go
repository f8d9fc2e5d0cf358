package model

// Intent is the classified purpose of a user question. It is transient:
// produced fresh for every question, never stored.
type Intent string

const (
	IntentTotal        Intent = "total"        // whole-archive count
	IntentCount        Intent = "count"        // count within a period
	IntentAuthor       Intent = "author"       // journalist rankings
	IntentSource       Intent = "source"       // outlet rankings
	IntentValue        Intent = "value"        // AVE / economic weight
	IntentRisk         Intent = "risk"         // reputational risk review
	IntentRead         Intent = "read"         // read article full text
	IntentAnalysis     Intent = "analysis"     // qualitative analysis
	IntentReport       Intent = "report"       // structured report document
	IntentQuantitative Intent = "quantitative" // statistics and trends
	IntentGeneral      Intent = "general"      // fallback
)

// Direct reports whether the intent is answerable from retrieved rows
// alone, with zero completion-service calls.
func (i Intent) Direct() bool {
	switch i {
	case IntentTotal, IntentCount, IntentAuthor, IntentSource, IntentValue:
		return true
	}
	return false
}

// EntityKind discriminates what, if anything, was extracted from a question.
type EntityKind string

const (
	EntityNone       EntityKind = ""
	EntityJournalist EntityKind = "journalist"
	EntityTopic      EntityKind = "topic"
)

// EntityMatch is the outcome of entity extraction: a journalist name, a
// topic, or nothing.
type EntityMatch struct {
	Kind EntityKind
	Name string
}
