package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of streams loaded in parallel.
	MaxConcurrency int

	// Timeout per page load.
	Timeout time.Duration
}

// DefaultBatchConfig returns a configuration that stays well inside the
// hourly request budget.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// BatchRequest asks for Pages pages of one stream starting at Params.
type BatchRequest[T any] struct {
	Source *Source[T]
	Params LoadParams

	// Pages defaults to 1.
	Pages int
}

// BatchResult holds what one request produced. Err is the load failure
// that ended the stream early, if any.
type BatchResult[T any] struct {
	Request BatchRequest[T]
	Pages   []*Page[T]
	Err     error
}

// BatchFetcher loads several independent streams concurrently. Pages of
// one request are always loaded in order by a single worker.
type BatchFetcher[T any] struct {
	config BatchConfig
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher[T any](config BatchConfig) *BatchFetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &BatchFetcher[T]{config: config}
}

// FetchAll runs every request and returns results in request order.
// Requests naming the same Source are run one after another.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, requests []BatchRequest[T]) []BatchResult[T] {
	start := time.Now()
	results := make([]BatchResult[T], len(requests))

	// one queue entry per source keeps each stream sequential
	groups := make(map[*Source[T]][]int)
	var order []*Source[T]
	for i, req := range requests {
		results[i].Request = req
		if _, ok := groups[req.Source]; !ok {
			order = append(order, req.Source)
		}
		groups[req.Source] = append(groups[req.Source], i)
	}

	queue := make(chan []int, len(order))
	for _, src := range order {
		queue <- groups[src]
	}
	close(queue)

	workers := min(bf.config.MaxConcurrency, len(order))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, queue, results, &wg, i)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	log.Info().
		Str("component", "pagination").
		Int("streams", len(order)).
		Int("requests", len(requests)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

// worker processes groups from the queue. Each index is written by exactly
// one worker, so results needs no lock.
func (bf *BatchFetcher[T]) worker(ctx context.Context, queue <-chan []int, results []BatchResult[T], wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for group := range queue {
		for _, idx := range group {
			if err := ctx.Err(); err != nil {
				results[idx].Err = err
				continue
			}
			bf.fetch(ctx, &results[idx])
			processed++
		}
	}

	log.Debug().
		Str("component", "pagination").
		Int("worker_id", workerID).
		Int("requests_processed", processed).
		Msg("Worker completed")
}

func (bf *BatchFetcher[T]) fetch(ctx context.Context, result *BatchResult[T]) {
	req := result.Request
	pages := req.Pages
	if pages <= 0 {
		pages = 1
	}

	params := req.Params
	for i := 0; i < pages; i++ {
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		page, err := req.Source.Load(pageCtx, params)
		cancel()

		if err != nil {
			result.Err = err
			return
		}
		result.Pages = append(result.Pages, page)
		if page.NextKey == nil {
			return
		}
		params.Key = page.NextKey
	}
}
