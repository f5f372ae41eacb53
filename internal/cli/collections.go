package cli

import (
	"fmt"

	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/spf13/cobra"
)

func newCollectionsCmd(s *session) *cobra.Command {
	var pages pageOptions

	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection"},
		Short:   "List featured collections and manage your own",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			collections, err := loadPages(cmd, s, api.CollectionsSource(), pages)
			if err != nil {
				return err
			}
			return printCollections(cmd.OutOrStdout(), s.format, collections)
		},
	}
	addPageFlags(cmd, &pages)

	cmd.AddCommand(
		newCollectionPhotosCmd(s),
		newCollectionRelatedCmd(s),
		newCollectionCreateCmd(s),
		newCollectionUpdateCmd(s),
		newCollectionDeleteCmd(s),
		newCollectionAddCmd(s),
		newCollectionRemoveCmd(s),
	)
	return cmd
}

func newCollectionPhotosCmd(s *session) *cobra.Command {
	var (
		listOpts unsplash.PhotoListOptions
		pages    pageOptions
	)

	cmd := &cobra.Command{
		Use:   "photos ID",
		Short: "List the photos of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			src, err := api.CollectionPhotosSource(args[0], listOpts)
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

	cmd.Flags().StringVar(&listOpts.Orientation, OrientFlag, "", "landscape, portrait or squarish")
	addPageFlags(cmd, &pages)
	return cmd
}

func newCollectionRelatedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "related ID",
		Short: "List collections related to a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			collections, err := api.RelatedCollections(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCollections(cmd.OutOrStdout(), s.format, collections)
		},
	}
}

type collectionFlags struct {
	title       string
	description string
	private     bool
}

func (f *collectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "collection title")
	cmd.Flags().StringVar(&f.description, "description", "", "collection description")
	cmd.Flags().BoolVar(&f.private, "private", false, "make the collection private")
}

// input only sets Private when the flag was given, so updates leave it alone.
func (f *collectionFlags) input(cmd *cobra.Command) unsplash.CollectionInput {
	in := unsplash.CollectionInput{Title: f.title, Description: f.description}
	if cmd.Flags().Changed("private") {
		private := f.private
		in.Private = &private
	}
	return in
}

func newCollectionCreateCmd(s *session) *cobra.Command {
	var flags collectionFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a collection (requires login)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			c, err := api.CreateCollection(cmd.Context(), flags.input(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created collection %s %q\n", c.ID, c.Title)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCollectionUpdateCmd(s *session) *cobra.Command {
	var flags collectionFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a collection (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			c, err := api.UpdateCollection(cmd.Context(), args[0], flags.input(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated collection %s %q\n", c.ID, c.Title)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCollectionDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a collection (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			if err := api.DeleteCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", args[0])
			return nil
		},
	}
}

func newCollectionAddCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "add COLLECTION_ID PHOTO_ID",
		Short: "Add a photo to a collection (requires login)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			if _, err := api.AddToCollection(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to collection %s\n", args[1], args[0])
			return nil
		},
	}
}

func newCollectionRemoveCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "remove COLLECTION_ID PHOTO_ID",
		Short: "Remove a photo from a collection (requires login)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			if _, err := api.RemoveFromCollection(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s from collection %s\n", args[1], args[0])
			return nil
		},
	}
}
