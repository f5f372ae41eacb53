package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/plashr/plashr/pkg/download"
	"github.com/plashr/plashr/pkg/message"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/spf13/cobra"
)

func newFeedCmd(s *session) *cobra.Command {
	var (
		order string
		pages pageOptions
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List the editorial photo feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			src, err := api.PhotosSource(order)
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

	cmd.Flags().StringVar(&order, OrderFlag, "", "order: latest, oldest, popular")
	addPageFlags(cmd, &pages)
	return cmd
}

func newPhotoCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "photo ID",
		Short: "Show a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			photo, err := api.Photo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), photo)
			}
			printPhotoDetail(cmd, photo)
			return nil
		},
	}
}

func printPhotoDetail(cmd *cobra.Command, p *unsplash.Photo) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:          %s\n", p.ID)
	fmt.Fprintf(w, "Size:        %dx%d\n", p.Width, p.Height)
	if d := describePhoto(*p); d != "" {
		fmt.Fprintf(w, "Description: %s\n", d)
	}
	if p.User != nil {
		fmt.Fprintf(w, "Author:      %s (%s)\n", p.User.Name, p.User.Username)
	}
	if p.CreatedAt != nil {
		fmt.Fprintf(w, "Created:     %s\n", humanize.Time(*p.CreatedAt))
	}
	fmt.Fprintf(w, "Likes:       %s\n", humanize.Comma(int64(p.Likes)))
	if p.Downloads > 0 {
		fmt.Fprintf(w, "Downloads:   %s\n", humanize.Comma(int64(p.Downloads)))
	}
	if p.Location != nil && p.Location.Name != "" {
		fmt.Fprintf(w, "Location:    %s\n", p.Location.Name)
	}
	if p.Exif != nil && p.Exif.Model != "" {
		fmt.Fprintf(w, "Camera:      %s %s\n", p.Exif.Make, p.Exif.Model)
	}
	if len(p.Tags) > 0 {
		tags := make([]string, 0, len(p.Tags))
		for _, t := range p.Tags {
			tags = append(tags, t.Title)
		}
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(tags, ", "))
	}
	if p.Links.HTML != "" {
		fmt.Fprintf(w, "Link:        %s\n", p.Links.HTML)
	}
}

func newRandomCmd(s *session) *cobra.Command {
	var opts unsplash.RandomOptions

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Show random photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(s.format); err != nil {
				return err
			}
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			photos, err := api.RandomPhotos(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printPhotos(cmd.OutOrStdout(), s.format, photos)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of photos, 1-30")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "limit to photos matching a search term")
	cmd.Flags().StringVar(&opts.Username, "user", "", "limit to a user's photos")
	cmd.Flags().StringVar(&opts.Orientation, OrientFlag, "", "landscape, portrait or squarish")
	cmd.Flags().StringVar(&opts.ContentFilter, "content-filter", "", "low or high")
	cmd.Flags().StringSliceVar(&opts.Topics, "topics", nil, "topic ids")
	cmd.Flags().StringSliceVar(&opts.Collections, "collections", nil, "collection ids")
	return cmd
}

func newLikeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "like ID",
		Short: "Like a photo (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			res, err := api.LikePhoto(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLike(cmd, "liked", args[0], res)
			return nil
		},
	}
}

func newUnlikeCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "unlike ID",
		Short: "Remove a like (requires login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			res, err := api.UnlikePhoto(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLike(cmd, "unliked", args[0], res)
			return nil
		},
	}
}

func printLike(cmd *cobra.Command, verb, id string, res *unsplash.LikeResult) {
	if res.Photo == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, id)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s likes)\n", verb, res.Photo.ID, humanize.Comma(int64(res.Photo.Likes)))
}

func newDownloadCmd(s *session) *cobra.Command {
	var (
		quality string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "download ID...",
		Short: "Download photos",
		Long: `Download photos into a directory. The quality defaults to the
download_quality setting and the directory to download.dir.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := s.api(cmd)
			if err != nil {
				return err
			}
			a := s.app
			ctx := cmd.Context()

			if quality == "" {
				st, err := a.Settings.Get(ctx)
				if err != nil {
					return err
				}
				quality = st.DownloadQuality
			}
			if dir == "" {
				dir = a.Config.Download.Dir
			}

			spin := newSpinner(cmd, s)
			spin.start()
			photos := make([]unsplash.Photo, 0, len(args))
			for _, id := range args {
				photo, err := api.Photo(ctx, id)
				if err != nil {
					spin.stop()
					return err
				}
				photos = append(photos, *photo)
			}

			cfg := download.DefaultConfig()
			cfg.Workers = a.Config.Download.Workers
			cfg.Logger = &a.Logger
			results, err := download.New(api, nil, cfg).DownloadAll(ctx, photos, quality, dir)
			spin.stop()

			p := s.messages()
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", r.PhotoID, describe(p, r.Err))
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.Sprintf(message.MsgSaved, r.Path, humanize.Bytes(uint64(r.Bytes))))
			}
			if err != nil && failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(results))
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&quality, "quality", "q", "", "raw, full, regular or small")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "target directory")
	return cmd
}
