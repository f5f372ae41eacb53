package pagination

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher[record](BatchConfig{})
	assert.Equal(t, 4, bf.config.MaxConcurrency)
	assert.Equal(t, 15*time.Second, bf.config.Timeout)
}

func TestBatchFetcher_IndependentStreams(t *testing.T) {
	short, _ := newTestSource(t, &datasetFetcher{total: 5, start: 1})
	long, _ := newTestSource(t, &datasetFetcher{total: 100, start: 1})

	results := NewBatchFetcher[record](DefaultBatchConfig()).FetchAll(context.Background(), []BatchRequest[record]{
		{Source: short, Params: LoadParams{LoadSize: 10}, Pages: 3},
		{Source: long, Params: LoadParams{LoadSize: 10}, Pages: 3},
	})

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)

	// a short first page ends the stream early
	assert.Len(t, results[0].Pages, 1)
	assert.Len(t, results[1].Pages, 3)
	assert.Equal(t, 21, results[1].Pages[2].Data[0].ID)
}

func TestBatchFetcher_FailureIsPerRequest(t *testing.T) {
	good, _ := newTestSource(t, &datasetFetcher{total: 100, start: 1})
	bad, rep := newTestSource(t, staticFetcher(response(http.StatusForbidden, ""), nil))

	results := NewBatchFetcher[record](DefaultBatchConfig()).FetchAll(context.Background(), []BatchRequest[record]{
		{Source: bad, Params: LoadParams{LoadSize: 10}},
		{Source: good, Params: LoadParams{LoadSize: 10}},
	})

	assert.Equal(t, KindHTTPStatus, KindOf(results[0].Err))
	assert.Empty(t, results[0].Pages)
	assert.NoError(t, results[1].Err)
	assert.Len(t, results[1].Pages, 1)
	assert.Equal(t, 1, rep.count())
}

func TestBatchFetcher_SameSourceStaysSequential(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	var mu sync.Mutex
	inner := &datasetFetcher{total: 100, start: 1}

	fetcher := FetcherFunc(func(ctx context.Context, page, perPage int) (*http.Response, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		mu.Lock()
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return inner.FetchPage(ctx, page, perPage)
	})
	src, _ := newTestSource(t, fetcher)

	requests := make([]BatchRequest[record], 4)
	for i := range requests {
		key := i*2 + 1
		requests[i] = BatchRequest[record]{Source: src, Params: LoadParams{Key: &key, LoadSize: 10}, Pages: 2}
	}

	results := NewBatchFetcher[record](BatchConfig{MaxConcurrency: 4}).FetchAll(context.Background(), requests)

	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Len(t, r.Pages, 2)
		assert.Equal(t, i*20+1, r.Pages[0].Data[0].ID)
	}
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestBatchFetcher_CancelledContext(t *testing.T) {
	src, rep := newTestSource(t, &datasetFetcher{total: 100, start: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewBatchFetcher[record](DefaultBatchConfig()).FetchAll(ctx, []BatchRequest[record]{
		{Source: src, Params: LoadParams{LoadSize: 10}},
	})

	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Zero(t, rep.count())
}

func TestBatchFetcher_Empty(t *testing.T) {
	results := NewBatchFetcher[record](DefaultBatchConfig()).FetchAll(context.Background(), nil)
	assert.Empty(t, results)
}
