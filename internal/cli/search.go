package cli

import (
	"strings"

	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/spf13/cobra"
)

func newSearchCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search photos, collections or users",
	}

	cmd.AddCommand(
		newSearchPhotosCmd(s),
		newSearchCollectionsCmd(s),
		newSearchUsersCmd(s),
	)
	return cmd
}

func newSearchPhotosCmd(s *session) *cobra.Command {
	var (
		filter unsplash.SearchFilter
		pages  pageOptions
	)

	cmd := &cobra.Command{
		Use:   "photos QUERY...",
		Short: "Search photos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			src, err := api.SearchPhotosSource(strings.Join(args, " "), filter)
			if err != nil {
				return err
			}
			photos, err := loadPages(cmd, s, src, pages)
			if err != nil {
				return err
			}
			return printPhotos(cmd.OutOrStdout(), s.format, photos)
		},
	}

	cmd.Flags().StringVar(&filter.OrderBy, OrderFlag, "", "relevant or latest")
	cmd.Flags().StringVar(&filter.Color, "color", "", "color filter, e.g. black_and_white, blue")
	cmd.Flags().StringVar(&filter.Orientation, OrientFlag, "", "landscape, portrait or squarish")
	cmd.Flags().StringVar(&filter.ContentFilter, "content-filter", "", "low or high")
	addPageFlags(cmd, &pages)
	return cmd
}

func newSearchCollectionsCmd(s *session) *cobra.Command {
	var pages pageOptions

	cmd := &cobra.Command{
		Use:   "collections QUERY...",
		Short: "Search collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			src, err := api.SearchCollectionsSource(strings.Join(args, " "))
			if err != nil {
				return err
			}
			collections, err := loadPages(cmd, s, src, pages)
			if err != nil {
				return err
			}
			return printCollections(cmd.OutOrStdout(), s.format, collections)
		},
	}
	addPageFlags(cmd, &pages)
	return cmd
}

func newSearchUsersCmd(s *session) *cobra.Command {
	var pages pageOptions

	cmd := &cobra.Command{
		Use:   "users QUERY...",
		Short: "Search users",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			src, err := api.SearchUsersSource(strings.Join(args, " "))
			if err != nil {
				return err
			}
			users, err := loadPages(cmd, s, src, pages)
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), s.format, users)
		},
	}
	addPageFlags(cmd, &pages)
	return cmd
}
