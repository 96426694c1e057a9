package imaging

import "fmt"

// NetworkError indicates a remote fetch that failed before any image bytes
// could be decoded: transport failures and non-success HTTP statuses.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError indicates a source that could not be turned into an image:
// missing files, unreadable bytes, empty PDFs.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
