// Package session keeps per-conversation dialogue history so follow-up
// questions can be answered with the preceding turns as context.
package session

// Turn is one question/answer exchange.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Store holds conversation histories keyed by session id. Implementations
// must be safe for concurrent use; the HTTP server appends and reads from
// multiple handlers at once.
type Store interface {
	// Get returns the history for a session, oldest turn first. An unknown
	// id returns an empty history, not an error.
	Get(id string) []Turn

	// Append records one exchange and trims the history to the retention
	// limit, dropping the oldest turns.
	Append(id string, turn Turn)

	// Reset discards the history for a session.
	Reset(id string)
}
