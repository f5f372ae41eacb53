package cli

import (
	"fmt"

	"github.com/plashr/plashr/pkg/pagination"
	"github.com/spf13/cobra"
)

type pageOptions struct {
	page    int
	pages   int
	perPage int
}

func addPageFlags(cmd *cobra.Command, opts *pageOptions) {
	cmd.Flags().IntVar(&opts.page, PageFlag, 1, "page to start at")
	cmd.Flags().IntVar(&opts.pages, PagesFlag, 1, "number of pages to load (0 loads all)")
	cmd.Flags().IntVar(&opts.perPage, PerPageFlag, 0, "records per page, 1-30 (default from config)")
}

func (o pageOptions) validate() error {
	if o.page < 1 {
		return fmt.Errorf("--%s must be at least 1", PageFlag)
	}
	if o.pages < 0 {
		return fmt.Errorf("--%s must not be negative", PagesFlag)
	}
	if o.perPage < 0 || o.perPage > 30 {
		return fmt.Errorf("--%s must be between 1 and 30", PerPageFlag)
	}
	return nil
}

// loadPages walks src from the requested page and prints a hint for the
// next page to stderr when the stream continues.
func loadPages[T any](cmd *cobra.Command, s *session, src *pagination.Source[T], opts pageOptions) ([]T, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	spin := newSpinner(cmd, s)
	spin.start()
	pager := pagination.NewPagerAt(src, opts.page, opts.perPage)
	items, err := pager.Collect(cmd.Context(), opts.pages)
	spin.stop()

	if err != nil {
		if len(items) == 0 {
			return nil, err
		}
		// Show what arrived before the failure.
		fmt.Fprintln(cmd.ErrOrStderr(), describe(s.messages(), err))
		return items, nil
	}

	if next := pager.NextKey(); next != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "more: --%s %d\n", PageFlag, *next)
	}
	return items, nil
}
