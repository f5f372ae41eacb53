package cli

import (
	"fmt"
	"math"

	"github.com/plashr/plashr/pkg/message"
	"github.com/plashr/plashr/pkg/pagination"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/spf13/cobra"
)

func newTopicsCmd(s *session) *cobra.Command {
	var (
		order string
		pages pageOptions
	)

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			src, err := api.TopicsSource(order)
			if err != nil {
				return err
			}
			topics, err := loadPages(cmd, s, src, pages)
			if err != nil {
				return err
			}
			return printTopics(cmd.OutOrStdout(), s.format, topics)
		},
	}

	cmd.Flags().StringVar(&order, OrderFlag, "", "order: featured, latest, oldest, position")
	addPageFlags(cmd, &pages)
	return cmd
}

func newTopicCmd(s *session) *cobra.Command {
	var (
		listOpts unsplash.PhotoListOptions
		pages    pageOptions
	)

	cmd := &cobra.Command{
		Use:   "topic SLUG...",
		Short: "List the photos of one or more topics",
		Long: `List the photos of one or more topics. Several topics are loaded
concurrently; each topic's pages are still loaded in order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			if err := pages.validate(); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}

			slugs := uniqueSlugs(args)
			requests := make([]pagination.BatchRequest[unsplash.Photo], 0, len(slugs))
			for _, slug := range slugs {
				src, err := api.TopicPhotosSource(slug, listOpts)
				if err != nil {
					return err
				}
				start := pages.page
				requests = append(requests, pagination.BatchRequest[unsplash.Photo]{
					Source: src,
					Params: pagination.LoadParams{Key: &start, LoadSize: pages.perPage},
					Pages:  pageCount(pages.pages),
				})
			}

			spin := newSpinner(cmd, s)
			spin.start()
			results := pagination.NewBatchFetcher[unsplash.Photo](pagination.DefaultBatchConfig()).
				FetchAll(cmd.Context(), requests)
			spin.stop()

			return printTopicResults(cmd, s, slugs, results)
		},
	}

	cmd.Flags().StringVar(&listOpts.OrderBy, OrderFlag, "", "order: latest, oldest, popular")
	cmd.Flags().StringVar(&listOpts.Orientation, OrientFlag, "", "landscape, portrait or squarish")
	addPageFlags(cmd, &pages)
	return cmd
}

func printTopicResults(cmd *cobra.Command, s *session, slugs []string, results []pagination.BatchResult[unsplash.Photo]) error {
	p := s.messages()
	out := cmd.OutOrStdout()

	if s.format == FormatJSON {
		byTopic := make(map[string][]unsplash.Photo, len(results))
		for i, r := range results {
			byTopic[slugs[i]] = flatten(r.Pages)
		}
		if err := writeJSON(out, byTopic); err != nil {
			return err
		}
	}

	failed := 0
	for i, r := range results {
		photos := flatten(r.Pages)
		if s.format == FormatTable {
			fmt.Fprintf(out, "== %s: %s\n", slugs[i], p.Sprintf(message.MsgPhotoCount, len(photos)))
			if len(photos) > 0 {
				if err := printPhotos(out, FormatTable, photos); err != nil {
					return err
				}
			}
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", slugs[i], describe(p, r.Err))
		}
	}

	// Partial results are not a failure.
	if failed == len(results) {
		return fmt.Errorf("none of the %d topics could be loaded", failed)
	}
	return nil
}

// pageCount maps the "0 loads all" flag onto a batch page count.
func pageCount(pages int) int {
	if pages == 0 {
		return math.MaxInt
	}
	return pages
}

func flatten[T any](pages []*pagination.Page[T]) []T {
	var items []T
	for _, page := range pages {
		items = append(items, page.Data...)
	}
	return items
}

// uniqueSlugs drops repeated slugs, keeping the first occurrence.
func uniqueSlugs(args []string) []string {
	seen := make(map[string]struct{}, len(args))
	out := make([]string, 0, len(args))
	for _, slug := range args {
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}
