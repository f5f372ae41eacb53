package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/spf13/cobra"
)

func newUserCmd(s *session) *cobra.Command {
	var (
		likes       bool
		collections bool
		listOpts    unsplash.PhotoListOptions
		pages       pageOptions
	)

	cmd := &cobra.Command{
		Use:   "user USERNAME",
		Short: "List a user's photos, likes or collections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			if likes && collections {
				return fmt.Errorf("--likes and --collections are mutually exclusive")
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}

			username := args[0]
			if collections {
				items, err := loadPages(cmd, s, api.UserCollectionsSource(username), pages)
				if err != nil {
					return err
				}
				return printCollections(cmd.OutOrStdout(), s.format, items)
			}

			source := api.UserPhotosSource
			if likes {
				source = api.UserLikesSource
			}
			src, err := source(username, listOpts)
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

	cmd.Flags().BoolVar(&likes, "likes", false, "list photos the user liked")
	cmd.Flags().BoolVar(&collections, "collections", false, "list the user's collections")
	cmd.Flags().StringVar(&listOpts.OrderBy, OrderFlag, "", "order: latest, oldest, popular, views, downloads")
	cmd.Flags().StringVar(&listOpts.Orientation, OrientFlag, "", "landscape, portrait or squarish")
	addPageFlags(cmd, &pages)
	return cmd
}

func newMeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your profile (requires login)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			u, err := api.Me(cmd.Context())
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), u)
			}
			printUserDetail(cmd, u)
			return nil
		},
	}
}

func printUserDetail(cmd *cobra.Command, u *unsplash.User) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Username:    %s\n", u.Username)
	if u.Name != "" {
		fmt.Fprintf(w, "Name:        %s\n", u.Name)
	}
	if u.Location != "" {
		fmt.Fprintf(w, "Location:    %s\n", u.Location)
	}
	fmt.Fprintf(w, "Photos:      %s\n", humanize.Comma(int64(u.TotalPhotos)))
	fmt.Fprintf(w, "Likes:       %s\n", humanize.Comma(int64(u.TotalLikes)))
	fmt.Fprintf(w, "Collections: %s\n", humanize.Comma(int64(u.TotalCollections)))
	if u.Bio != "" {
		fmt.Fprintf(w, "Bio:         %s\n", u.Bio)
	}
}
