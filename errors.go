package netboxapi

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for invalid mapper usage. Wrapped errors carry context;
// match them with errors.Is.
var (
	// ErrPassiveMapper is returned when Get, Post, Put or Delete is invoked
	// on a passive mapper, i.e. one whose existence could not be confirmed
	// after creation. Passive mappers only allow field reads.
	ErrPassiveMapper = errors.New("operation forbidden on passive mapper")

	// ErrForbiddenAsChild is returned when Delete is given an id that
	// differs from the id the mapper is already bound to. A bound mapper
	// cannot be redirected to delete a sibling.
	ErrForbiddenAsChild = errors.New("mapper is bound to another id")

	// ErrMissingID is returned when an operation needs a remote id that is
	// not there: Put on an unbound mapper, Delete with nothing to delete,
	// or a mapper without an id handed in as a foreign-key value.
	ErrMissingID = errors.New("mapper has no id")
)

// StatusError reports a non-2xx HTTP status from the Netbox API. The
// transport never turns statuses into errors itself; the mapper raises
// StatusError wherever a failed request cannot be handled locally.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("netbox: %s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a StatusError with status 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func statusError(method, url string, code int) error {
	return &StatusError{Method: method, URL: url, StatusCode: code}
}
