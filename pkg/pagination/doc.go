// Package pagination loads page-numbered REST listings one page at a time.
//
// A Source pairs a Fetcher (one per endpoint) with a Decoder and turns a
// page cursor into a Page carrying the records plus the neighbouring
// cursors:
//
//	photos := pagination.NewSource(fetcher, pagination.DecodeArray[unsplash.Photo], cfg)
//	page, err := photos.Load(ctx, pagination.LoadParams{LoadSize: 30})
//
// The next cursor is absent once a page comes back shorter than requested;
// the previous cursor is absent on the first page. Every failure is a
// *LoadError of one of four kinds (missing_body, http_status, connectivity,
// generic), logged and handed to a report.Reporter once before it is
// returned. Nothing is retried here; that is the consumer's decision.
//
// A Pager walks one stream sequentially. BatchFetcher loads pages of
// several independent streams concurrently while keeping each stream
// sequential.
package pagination
