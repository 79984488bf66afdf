package domain

import "fmt"

// RepositoryError represents an error from the repository layer.
type RepositoryError struct {
	Op  string
	Err string
}

func (e *RepositoryError) Error() string {
	return e.Op + ": " + e.Err
}

// SearchEngineError represents an error from the search engine layer.
// Index and DocumentID are set when the failing call targeted them, so a caller
// can retry the idempotent write that failed.
type SearchEngineError struct {
	Op         string
	Index      string
	DocumentID string
	Err        error
}

func (e *SearchEngineError) Error() string {
	msg := e.Op
	if e.Index != "" {
		msg += " [" + e.Index
		if e.DocumentID != "" {
			msg += "/" + e.DocumentID
		}
		msg += "]"
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *SearchEngineError) Unwrap() error {
	return e.Err
}
