package pagination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/plashr/plashr/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	pagesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plashr_pages_loaded_total",
		Help: "Total number of pages loaded successfully by source",
	}, []string{"source"})

	pageLoadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plashr_page_load_failures_total",
		Help: "Total number of failed page loads by source and kind",
	}, []string{"source", "kind"})

	pageLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plashr_page_load_duration_seconds",
		Help:    "Page load duration in seconds by source",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source"})
)

var tracer = otel.Tracer("github.com/plashr/plashr/pkg/pagination")

// Fetcher performs the request for one page of one endpoint.
type Fetcher interface {
	FetchPage(ctx context.Context, page, perPage int) (*http.Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, page, perPage int) (*http.Response, error)

// FetchPage calls fn.
func (fn FetcherFunc) FetchPage(ctx context.Context, page, perPage int) (*http.Response, error) {
	return fn(ctx, page, perPage)
}

// Decoder turns a response body into the page's records.
type Decoder[T any] func(body []byte) ([]T, error)

// DecodeArray decodes a JSON array body.
func DecodeArray[T any](body []byte) ([]T, error) {
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return items, nil
}

// LoadParams selects the page to load. A nil Key loads the first page.
type LoadParams struct {
	Key      *int
	LoadSize int
}

// Page is one loaded page of records.
type Page[T any] struct {
	Data []T

	// PrevKey is nil on the first page.
	PrevKey *int

	// NextKey is nil once the stream is exhausted.
	NextKey *int
}

// Config holds the settings of one paginated source.
type Config struct {
	// Name identifies the source in logs, metrics and reports.
	Name string

	// StartIndex is the cursor of the first page.
	StartIndex int

	// PageSize is used when LoadParams.LoadSize is not positive.
	PageSize int

	// Reporter receives every failure once. Nil uses a log reporter.
	Reporter report.Reporter

	// Logger defaults to the global logger with component=pagination.
	Logger *zerolog.Logger
}

// DefaultConfig returns the cursor conventions of the photo API.
func DefaultConfig() Config {
	return Config{
		Name:       "default",
		StartIndex: 1,
		PageSize:   30,
	}
}

// Source loads pages of a single endpoint.
type Source[T any] struct {
	fetcher  Fetcher
	decode   Decoder[T]
	config   Config
	reporter report.Reporter
	logger   zerolog.Logger
}

// NewSource creates a source for one endpoint.
func NewSource[T any](fetcher Fetcher, decode Decoder[T], config Config) *Source[T] {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.PageSize <= 0 {
		config.PageSize = 30
	}

	logger := log.With().Str("component", "pagination").Logger()
	if config.Logger != nil {
		logger = config.Logger.With().Str("component", "pagination").Logger()
	}
	logger = logger.With().Str("source", config.Name).Logger()

	reporter := config.Reporter
	if reporter == nil {
		reporter = report.NewLogReporter(logger)
	}

	return &Source[T]{
		fetcher:  fetcher,
		decode:   decode,
		config:   config,
		reporter: reporter,
		logger:   logger,
	}
}

// Name returns the source name.
func (s *Source[T]) Name() string {
	return s.config.Name
}

// StartIndex returns the cursor of the first page.
func (s *Source[T]) StartIndex() int {
	return s.config.StartIndex
}

// Load fetches and decodes the page selected by params.
//
// Any failure is returned as a *LoadError after being logged and reported.
// Cancellation of ctx is returned as a connectivity failure and is logged
// but not reported.
func (s *Source[T]) Load(ctx context.Context, params LoadParams) (*Page[T], error) {
	key := s.config.StartIndex
	if params.Key != nil {
		key = *params.Key
	}
	loadSize := params.LoadSize
	if loadSize <= 0 {
		loadSize = s.config.PageSize
	}

	ctx, span := tracer.Start(ctx, "pagination.Load", trace.WithAttributes(
		attribute.String("pagination.source", s.config.Name),
		attribute.Int("pagination.page", key),
		attribute.Int("pagination.load_size", loadSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		pageLoadDuration.WithLabelValues(s.config.Name).Observe(time.Since(start).Seconds())
	}()

	data, loadErr := s.load(ctx, key, loadSize)
	if loadErr != nil {
		s.fail(ctx, loadErr)
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, string(loadErr.Kind))
		return nil, loadErr
	}

	page := &Page[T]{Data: data}
	if len(data) >= loadSize {
		next := key + 1
		page.NextKey = &next
	}
	if key != s.config.StartIndex {
		prev := key - 1
		page.PrevKey = &prev
	}

	pagesLoaded.WithLabelValues(s.config.Name).Inc()
	span.SetAttributes(attribute.Int("pagination.items", len(data)))

	s.logger.Debug().
		Int("page", key).
		Int("per_page", loadSize).
		Int("items", len(data)).
		Bool("has_next", page.NextKey != nil).
		Msg("Page loaded")

	return page, nil
}

func (s *Source[T]) load(ctx context.Context, key, loadSize int) ([]T, *LoadError) {
	resp, err := s.fetcher.FetchPage(ctx, key, loadSize)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		var sc statusCarrier
		if errors.As(err, &sc) && ctx.Err() == nil {
			return nil, &LoadError{Kind: KindHTTPStatus, Page: key, StatusCode: sc.HTTPStatus(), Err: err}
		}
		return nil, &LoadError{Kind: KindConnectivity, Page: key, Err: err}
	}
	if resp == nil {
		return nil, &LoadError{Kind: KindMissingBody, Page: key, Err: ErrMissingBody}
	}
	if resp.Body == nil {
		resp.Body = http.NoBody
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &LoadError{Kind: KindHTTPStatus, Page: key, StatusCode: resp.StatusCode}
	}

	if resp.Body == http.NoBody {
		return nil, &LoadError{Kind: KindMissingBody, Page: key, StatusCode: resp.StatusCode, Err: ErrMissingBody}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Kind: KindConnectivity, Page: key, Err: fmt.Errorf("read body: %w", err)}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &LoadError{Kind: KindMissingBody, Page: key, StatusCode: resp.StatusCode, Err: ErrMissingBody}
	}

	data, err := s.decode(trimmed)
	if err != nil {
		return nil, &LoadError{Kind: KindGeneric, Page: key, Err: err}
	}
	if data == nil {
		data = []T{}
	}
	return data, nil
}

func (s *Source[T]) fail(ctx context.Context, loadErr *LoadError) {
	pageLoadFailures.WithLabelValues(s.config.Name, string(loadErr.Kind)).Inc()

	ev := s.logger.Error()
	cancelled := errors.Is(ctx.Err(), context.Canceled)
	if cancelled {
		ev = s.logger.Debug()
	}
	ev.Err(loadErr.Err).
		Int("page", loadErr.Page).
		Str("kind", string(loadErr.Kind)).
		Int("status", loadErr.StatusCode).
		Msg("Page load failed")

	if cancelled {
		return
	}

	attrs := map[string]string{
		"source": s.config.Name,
		"page":   strconv.Itoa(loadErr.Page),
		"kind":   string(loadErr.Kind),
	}
	if loadErr.StatusCode != 0 {
		attrs["status"] = strconv.Itoa(loadErr.StatusCode)
	}
	s.reporter.Report(context.WithoutCancel(ctx), report.Failure{
		Component: "pagination",
		Operation: s.config.Name,
		Err:       loadErr,
		Attrs:     attrs,
	})
}
