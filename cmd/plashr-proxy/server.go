package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/plashr/plashr/pkg/message"
	"github.com/plashr/plashr/pkg/metrics"
	"github.com/plashr/plashr/pkg/pagination"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const maxPerPage = 30

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the paginated sources as JSON pages.
type Server struct {
	http.Handler

	api      *unsplash.API
	ready    Pinger
	pageSize int
	logger   zerolog.Logger
}

// pageResponse is the JSON document of one page.
type pageResponse[T any] struct {
	Items    []T  `json:"items"`
	PrevPage *int `json:"prev_page"`
	NextPage *int `json:"next_page"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// NewServer builds the router. allowedOrigins configures CORS.
func NewServer(api *unsplash.API, ready Pinger, pageSize int, allowedOrigins []string, logger zerolog.Logger) *Server {
	s := &Server{
		api:      api,
		ready:    ready,
		pageSize: pageSize,
		logger:   logger.With().Str("component", "proxy").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(jsonHeaders)
	apiRouter.HandleFunc("/photos", s.handlePhotos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/topics", s.handleTopics).Methods(http.MethodGet)
	apiRouter.HandleFunc("/topics/{slug}/photos", s.handleTopicPhotos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/collections", s.handleCollections).Methods(http.MethodGet)
	apiRouter.HandleFunc("/collections/{id}/photos", s.handleCollectionPhotos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{username}/photos", s.handleUserPhotos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/search/photos", s.handleSearchPhotos).Methods(http.MethodGet)
	apiRouter.HandleFunc("/search/collections", s.handleSearchCollections).Methods(http.MethodGet)
	apiRouter.HandleFunc("/search/users", s.handleSearchUsers).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Accept-Language"},
	})
	s.Handler = c.Handler(r)
	return s
}

func jsonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.ready.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.PhotosSource(r.URL.Query().Get("order_by"))
	servePage(s, w, r, src, err)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.TopicsSource(r.URL.Query().Get("order_by"))
	servePage(s, w, r, src, err)
}

func (s *Server) handleTopicPhotos(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.TopicPhotosSource(mux.Vars(r)["slug"], photoListOptions(r))
	servePage(s, w, r, src, err)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	servePage(s, w, r, s.api.CollectionsSource(), nil)
}

func (s *Server) handleCollectionPhotos(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.CollectionPhotosSource(mux.Vars(r)["id"], photoListOptions(r))
	servePage(s, w, r, src, err)
}

func (s *Server) handleUserPhotos(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.UserPhotosSource(mux.Vars(r)["username"], photoListOptions(r))
	servePage(s, w, r, src, err)
}

func (s *Server) handleSearchPhotos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	src, err := s.api.SearchPhotosSource(q.Get("query"), unsplash.SearchFilter{
		OrderBy:       q.Get("order_by"),
		Color:         q.Get("color"),
		Orientation:   q.Get("orientation"),
		ContentFilter: q.Get("content_filter"),
	})
	servePage(s, w, r, src, err)
}

func (s *Server) handleSearchCollections(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.SearchCollectionsSource(r.URL.Query().Get("query"))
	servePage(s, w, r, src, err)
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	src, err := s.api.SearchUsersSource(r.URL.Query().Get("query"))
	servePage(s, w, r, src, err)
}

func photoListOptions(r *http.Request) unsplash.PhotoListOptions {
	q := r.URL.Query()
	return unsplash.PhotoListOptions{
		OrderBy:     q.Get("order_by"),
		Orientation: q.Get("orientation"),
	}
}

// servePage loads the page selected by the page and per_page parameters.
// srcErr is the error of building the source, if any.
func servePage[T any](s *Server, w http.ResponseWriter, r *http.Request, src *pagination.Source[T], srcErr error) {
	if srcErr != nil {
		s.writeError(w, r, srcErr)
		return
	}

	params, err := s.loadParams(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	page, err := src.Load(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, pageResponse[T]{
		Items:    page.Data,
		PrevPage: page.PrevKey,
		NextPage: page.NextKey,
	})
}

func (s *Server) loadParams(r *http.Request) (pagination.LoadParams, error) {
	params := pagination.LoadParams{LoadSize: s.pageSize}
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, errors.New("page must be a positive integer")
		}
		params.Key = &page
	}
	if v := q.Get("per_page"); v != "" {
		perPage, err := strconv.Atoi(v)
		if err != nil || perPage < 1 || perPage > maxPerPage {
			return params, errors.New("per_page must be between 1 and 30")
		}
		params.LoadSize = perPage
	}
	return params, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away.
		return
	}

	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Upstream request failed")
	}

	p := message.ForAcceptLanguage(r.Header.Get("Accept-Language"))
	s.writeJSON(w, status, errorResponse{Error: p.Format(err), Kind: kind})
}

// statusFor maps a failure onto the status the proxy answers with. Client
// errors of the upstream API pass through; everything else is a gateway
// failure.
func statusFor(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, ""
	}

	kind, code := message.Classify(err)
	switch {
	case kind == pagination.KindHTTPStatus && code >= 400 && code < 500:
		return code, string(kind)
	case kind == pagination.KindConnectivity && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, string(kind)
	default:
		return http.StatusBadGateway, string(kind)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write response")
	}
}
