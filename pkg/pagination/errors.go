package pagination

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed page load.
type ErrorKind string

const (
	// KindMissingBody means a 2xx response carried no usable body.
	KindMissingBody ErrorKind = "missing_body"

	// KindHTTPStatus means the server rejected the request.
	KindHTTPStatus ErrorKind = "http_status"

	// KindConnectivity means the request never produced a response.
	KindConnectivity ErrorKind = "connectivity"

	// KindGeneric covers everything else, decoding failures included.
	KindGeneric ErrorKind = "generic"
)

// ErrMissingBody is wrapped by LoadError when a successful response has an
// absent, empty or null body.
var ErrMissingBody = errors.New("response body is missing")

// LoadError is returned by Source.Load for every failed page load.
type LoadError struct {
	Kind ErrorKind

	// Page is the cursor that failed to load.
	Page int

	// StatusCode is set for KindHTTPStatus.
	StatusCode int

	Err error
}

func (e *LoadError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus && e.Err != nil:
		return fmt.Sprintf("load page %d: http status %d: %v", e.Page, e.StatusCode, e.Err)
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("load page %d: http status %d", e.Page, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("load page %d: %s: %v", e.Page, e.Kind, e.Err)
	default:
		return fmt.Sprintf("load page %d: %s", e.Page, e.Kind)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the LoadError in err's chain, or KindGeneric.
func KindOf(err error) ErrorKind {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindGeneric
}

// statusCarrier is implemented by transport errors that know the HTTP status
// the server answered with.
type statusCarrier interface {
	HTTPStatus() int
}
