package pagination

import (
	"context"
	"errors"
	"iter"
)

// ErrExhausted is returned by Pager.Next after the last page.
var ErrExhausted = errors.New("pagination: no more pages")

// Pager walks one Source forward, one page at a time.
// It is not safe for concurrent use.
type Pager[T any] struct {
	source   *Source[T]
	loadSize int

	next    *int
	done    bool
	lastErr error
}

// NewPager starts a pager at the source's first page.
func NewPager[T any](source *Source[T], loadSize int) *Pager[T] {
	return &Pager[T]{source: source, loadSize: loadSize}
}

// NewPagerAt starts a pager at the given cursor.
func NewPagerAt[T any](source *Source[T], key, loadSize int) *Pager[T] {
	return &Pager[T]{source: source, loadSize: loadSize, next: &key}
}

// HasNext reports whether Next may return another page.
func (p *Pager[T]) HasNext() bool {
	return !p.done && p.lastErr == nil
}

// NextKey returns the cursor Next will load, or nil once the stream is
// exhausted. Before the first load of a NewPager it is also nil.
func (p *Pager[T]) NextKey() *int {
	if p.done {
		return nil
	}
	return p.next
}

// Err returns the failure that stopped the pager, if any.
func (p *Pager[T]) Err() error {
	return p.lastErr
}

// Next loads the next page. A failure stops the pager until Retry.
func (p *Pager[T]) Next(ctx context.Context) (*Page[T], error) {
	if p.lastErr != nil {
		return nil, p.lastErr
	}
	if p.done {
		return nil, ErrExhausted
	}

	page, err := p.source.Load(ctx, LoadParams{Key: p.next, LoadSize: p.loadSize})
	if err != nil {
		p.lastErr = err
		return nil, err
	}

	p.next = page.NextKey
	if page.NextKey == nil {
		p.done = true
	}
	return page, nil
}

// Retry reloads the page whose load failed.
func (p *Pager[T]) Retry(ctx context.Context) (*Page[T], error) {
	p.lastErr = nil
	return p.Next(ctx)
}

// All yields pages until the stream ends or a load fails. The failure is
// yielded once and ends the sequence.
func (p *Pager[T]) All(ctx context.Context) iter.Seq2[*Page[T], error] {
	return func(yield func(*Page[T], error) bool) {
		for p.HasNext() {
			page, err := p.Next(ctx)
			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}

// Collect loads up to maxPages pages (all when maxPages <= 0) and returns
// their records in order. On failure the records loaded so far are
// returned with the error.
func (p *Pager[T]) Collect(ctx context.Context, maxPages int) ([]T, error) {
	var items []T
	pages := 0
	for page, err := range p.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, page.Data...)
		pages++
		if maxPages > 0 && pages >= maxPages {
			break
		}
	}
	return items, nil
}
