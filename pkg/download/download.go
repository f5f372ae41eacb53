// Package download saves photos to disk at a chosen quality, registering
// each download with the API as the provider requires.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/plashr/plashr/pkg/settings"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plashr_downloads_total",
		Help: "Total photo downloads by quality and result",
	}, []string{"quality", "result"})

	downloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plashr_download_bytes_total",
		Help: "Total bytes written by photo downloads",
	})
)

var (
	// ErrUnknownQuality is returned for qualities other than raw, full, regular and small.
	ErrUnknownQuality = errors.New("unknown download quality")

	// ErrNoURL is returned when the photo has no URL for the quality.
	ErrNoURL = errors.New("photo has no url for quality")
)

// Tracker registers a download with the API. *unsplash.API implements it.
type Tracker interface {
	TrackDownload(ctx context.Context, id string) (*unsplash.DownloadLink, error)
}

// Config holds downloader configuration.
type Config struct {
	// Workers bounds parallel downloads in DownloadAll.
	Workers int

	// Timeout per photo.
	Timeout time.Duration

	Logger *zerolog.Logger
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
		Timeout: 2 * time.Minute,
	}
}

// Result describes one saved photo. Err is set by DownloadAll for photos
// that failed.
type Result struct {
	PhotoID string
	Path    string
	Bytes   int64
	Err     error
}

// Downloader saves photos.
type Downloader struct {
	tracker    Tracker
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a downloader. A nil httpClient uses http.DefaultClient.
func New(tracker Tracker, httpClient *http.Client, config Config) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	logger := log.With().Str("component", "download").Logger()
	if config.Logger != nil {
		logger = config.Logger.With().Str("component", "download").Logger()
	}

	return &Downloader{
		tracker:    tracker,
		httpClient: httpClient,
		config:     config,
		logger:     logger,
	}
}

// URLFor returns the photo's URL for a quality.
func URLFor(photo unsplash.Photo, quality string) (string, error) {
	var u string
	switch quality {
	case settings.QualityRaw:
		u = photo.URLs.Raw
	case settings.QualityFull:
		u = photo.URLs.Full
	case settings.QualityRegular:
		u = photo.URLs.Regular
	case settings.QualitySmall:
		u = photo.URLs.Small
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQuality, quality)
	}
	if u == "" {
		return "", fmt.Errorf("%w %s", ErrNoURL, quality)
	}
	return u, nil
}

// FileName returns the name a photo is saved under.
func FileName(photoID, quality string) string {
	return fmt.Sprintf("%s-%s.jpg", photoID, quality)
}

// Download tracks the download, then streams the photo to
// <dir>/<photo-id>-<quality>.jpg.
func (d *Downloader) Download(ctx context.Context, photo unsplash.Photo, quality, dir string) (*Result, error) {
	res, err := d.download(ctx, photo, quality, dir)
	if err != nil {
		downloadsTotal.WithLabelValues(quality, "error").Inc()
		d.logger.Error().Err(err).Str("photo_id", photo.ID).Str("quality", quality).Msg("Download failed")
		return nil, err
	}

	downloadsTotal.WithLabelValues(quality, "success").Inc()
	downloadBytes.Add(float64(res.Bytes))
	d.logger.Info().
		Str("photo_id", photo.ID).
		Str("quality", quality).
		Str("path", res.Path).
		Str("size", humanize.Bytes(uint64(res.Bytes))).
		Msg("Photo downloaded")
	return res, nil
}

func (d *Downloader) download(ctx context.Context, photo unsplash.Photo, quality, dir string) (*Result, error) {
	src, err := URLFor(photo, quality)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	if _, err := d.tracker.TrackDownload(ctx, photo.ID); err != nil {
		return nil, fmt.Errorf("track download: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch photo: unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".plashr-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write photo: %w", err)
	}

	path := filepath.Join(dir, FileName(photo.ID, quality))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("move photo into place: %w", err)
	}

	return &Result{PhotoID: photo.ID, Path: path, Bytes: n}, nil
}

// DownloadAll downloads photos with a bounded worker pool. Results are in
// input order; the returned error is the first failure, if any.
func (d *Downloader) DownloadAll(ctx context.Context, photos []unsplash.Photo, quality, dir string) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(photos))

	queue := make(chan int, len(photos))
	for i := range photos {
		queue <- i
	}
	close(queue)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for w := 0; w < min(d.config.Workers, len(photos)); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range queue {
				photo := photos[idx]
				if err := ctx.Err(); err != nil {
					results[idx] = Result{PhotoID: photo.ID, Err: err}
					continue
				}

				res, err := d.Download(ctx, photo, quality, dir)
				if err != nil {
					results[idx] = Result{PhotoID: photo.ID, Err: err}
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("download %s: %w", photo.ID, err)
					}
					mu.Unlock()
					continue
				}
				results[idx] = *res
			}
			d.logger.Debug().Int("worker_id", workerID).Msg("Worker completed")
		}(w)
	}
	wg.Wait()

	if firstErr == nil {
		firstErr = ctx.Err()
	}

	var total int64
	for _, r := range results {
		total += r.Bytes
	}
	d.logger.Info().
		Int("photos", len(photos)).
		Str("size", humanize.Bytes(uint64(total))).
		Dur("duration", time.Since(start)).
		Msg("Batch download complete")

	return results, firstErr
}
