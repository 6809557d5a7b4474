package sources

import (
	"fmt"
	"github.com/pkg/errors"
)

var ErrMalformedPosting = errors.New("malformed posting")

// FetchError describes a failed request made by a source.
type FetchError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d, body: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
