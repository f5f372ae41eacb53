// Package unsplash exposes the photo API's endpoints: one paginated source
// per list endpoint and plain methods for single-item operations.
package unsplash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/plashr/plashr/pkg/pagination"
	"github.com/plashr/plashr/pkg/report"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Requester sends API requests. *client.Client implements it.
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*http.Response, error)
	Post(ctx context.Context, path string, query url.Values, body any) (*http.Response, error)
	Put(ctx context.Context, path string, query url.Values, body any) (*http.Response, error)
	Delete(ctx context.Context, path string, query url.Values) (*http.Response, error)
}

// Options configures an API.
type Options struct {
	// PageSize is the default per_page of every source (default 30).
	PageSize int

	// Reporter receives failed loads and requests. Nil uses a log reporter.
	Reporter report.Reporter

	Logger *zerolog.Logger
}

// API is the entry point to the photo API.
type API struct {
	http     Requester
	pageSize int
	reporter report.Reporter
	logger   zerolog.Logger
	base     *zerolog.Logger
	validate *validator.Validate
}

// New creates an API on top of a requester.
func New(r Requester, opts Options) *API {
	logger := log.With().Str("component", "unsplash").Logger()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "unsplash").Logger()
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultConfig().PageSize
	}

	reporter := opts.Reporter
	if reporter == nil {
		reporter = report.NewLogReporter(logger)
	}

	return &API{
		http:     r,
		pageSize: pageSize,
		reporter: reporter,
		logger:   logger,
		base:     opts.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RequestError is returned by single-item operations. Kind uses the same
// classification as page loads.
type RequestError struct {
	Kind       pagination.ErrorKind
	Operation  string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Kind == pagination.KindHTTPStatus && e.Err != nil:
		return fmt.Sprintf("%s: http status %d: %v", e.Operation, e.StatusCode, e.Err)
	case e.Kind == pagination.KindHTTPStatus:
		return fmt.Sprintf("%s: http status %d", e.Operation, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Kind, e.Err)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the error body the API sends with 4xx responses.
type ErrorResponse struct {
	Errors []string `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	return strings.Join(e.Errors, "; ")
}

type statusCarrier interface {
	HTTPStatus() int
}

// call runs one request and decodes its body into out. A nil out accepts
// any 2xx response, including an empty one.
func (a *API) call(ctx context.Context, op string, out any, do func() (*http.Response, error)) error {
	reqErr := a.roundTrip(op, out, do)
	if reqErr == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		a.logger.Debug().Err(reqErr).Str("operation", op).Msg("Request abandoned")
		return reqErr
	}

	a.logger.Error().
		Err(reqErr.Err).
		Str("operation", op).
		Str("kind", string(reqErr.Kind)).
		Int("status", reqErr.StatusCode).
		Msg("Request failed")

	attrs := map[string]string{"kind": string(reqErr.Kind)}
	if reqErr.StatusCode != 0 {
		attrs["status"] = strconv.Itoa(reqErr.StatusCode)
	}
	a.reporter.Report(context.WithoutCancel(ctx), report.Failure{
		Component: "unsplash",
		Operation: op,
		Err:       reqErr,
		Attrs:     attrs,
	})
	return reqErr
}

func (a *API) roundTrip(op string, out any, do func() (*http.Response, error)) *RequestError {
	resp, err := do()
	if err != nil {
		var sc statusCarrier
		if errors.As(err, &sc) {
			return &RequestError{Kind: pagination.KindHTTPStatus, Operation: op, StatusCode: sc.HTTPStatus(), Err: err}
		}
		return &RequestError{Kind: pagination.KindConnectivity, Operation: op, Err: err}
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RequestError{Kind: pagination.KindConnectivity, Operation: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{Kind: pagination.KindHTTPStatus, Operation: op, StatusCode: resp.StatusCode}
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
			reqErr.Err = &apiErr
		}
		return reqErr
	}

	if out == nil {
		return nil
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &RequestError{Kind: pagination.KindMissingBody, Operation: op, StatusCode: resp.StatusCode, Err: pagination.ErrMissingBody}
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return &RequestError{Kind: pagination.KindGeneric, Operation: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (a *API) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return a.call(ctx, op, out, func() (*http.Response, error) {
		return a.http.Get(ctx, path, query)
	})
}

// newSource builds a paginated source for a list endpoint. query is copied
// per page so sources can be reused.
func newSource[T any](a *API, name, path string, query url.Values, decode pagination.Decoder[T]) *pagination.Source[T] {
	fetcher := pagination.FetcherFunc(func(ctx context.Context, page, perPage int) (*http.Response, error) {
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(perPage))
		return a.http.Get(ctx, path, q)
	})

	return pagination.NewSource(fetcher, decode, pagination.Config{
		Name:       name,
		StartIndex: 1,
		PageSize:   a.pageSize,
		Reporter:   a.reporter,
		Logger:     a.base,
	})
}

// decodeSearch unwraps the results of a search envelope.
func decodeSearch[T any](body []byte) ([]T, error) {
	var env SearchResult[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode search page: %w", err)
	}
	if env.Results == nil {
		return []T{}, nil
	}
	return env.Results, nil
}

func (a *API) check(what string, v any) error {
	if err := a.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s: %w", what, err)
	}
	return nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func pathID(id string) string {
	return url.PathEscape(id)
}
