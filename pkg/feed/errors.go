package feed

import "fmt"

// FetchError indicates a network-level failure reaching the feed URL.
// Recoverable by retry, manual or on the next auto-refresh tick.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err) }

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error { return e.Err }

// ParseError indicates content at the URL is not a supported feed format.
// Retrying the same URL will fail identically.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse feed %s: %v", e.URL, e.Err) }

// Unwrap returns the underlying error
func (e *ParseError) Unwrap() error { return e.Err }
