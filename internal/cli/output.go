package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/spf13/cobra"
)

const (
	spinnerDuration = 150 * time.Millisecond
	loadingPrefix   = "Loading... "
	descWidth       = 48
	ellipsis        = "..."
)

type spinnerState struct {
	spinner *spinner.Spinner
	enabled bool
}

func newSpinner(cmd *cobra.Command, s *session) *spinnerState {
	spin := spinner.New(spinner.CharSets[39], spinnerDuration, spinner.WithWriter(cmd.ErrOrStderr()))
	spin.Prefix = loadingPrefix

	return &spinnerState{spinner: spin, enabled: !s.noSpinner}
}

func (st *spinnerState) start() {
	if st.enabled {
		st.spinner.Start()
	}
}

func (st *spinnerState) stop() {
	if st.enabled && st.spinner.Active() {
		st.spinner.Stop()
	}
}

func newTable(w io.Writer) *tablewriter.Table {
	symbols := tw.NewSymbolCustom("Plain").
		WithRow("").
		WithColumn("").
		WithTopLeft("").
		WithTopMid("").
		WithTopRight("").
		WithMidLeft("").
		WithCenter("").
		WithMidRight("").
		WithBottomLeft("").
		WithBottomMid("").
		WithBottomRight("")

	return tablewriter.NewTable(w,
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Symbols: symbols,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader:     tw.Off,
					ShowFooter:     tw.Off,
					BetweenRows:    tw.Off,
					BetweenColumns: tw.Off,
				},
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  ", Overwrite: true}),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string) error {
	if format != FormatTable && format != FormatJSON {
		return fmt.Errorf("invalid output format %q (want %s or %s)", format, FormatTable, FormatJSON)
	}
	return nil
}

func printPhotos(w io.Writer, format string, photos []unsplash.Photo) error {
	if format == FormatJSON {
		return writeJSON(w, photos)
	}

	table := newTable(w)
	table.Append([]string{"ID", "SIZE", "LIKES", "AUTHOR", "DESCRIPTION"}) //nolint:errcheck
	for _, p := range photos {
		table.Append([]string{
			p.ID,
			fmt.Sprintf("%dx%d", p.Width, p.Height),
			strconv.Itoa(p.Likes),
			author(p.User),
			ellipsize(describePhoto(p), descWidth),
		}) //nolint:errcheck
	}
	return table.Render()
}

func printCollections(w io.Writer, format string, collections []unsplash.Collection) error {
	if format == FormatJSON {
		return writeJSON(w, collections)
	}

	table := newTable(w)
	table.Append([]string{"ID", "TITLE", "PHOTOS", "PRIVATE", "AUTHOR"}) //nolint:errcheck
	for _, c := range collections {
		table.Append([]string{
			c.ID,
			ellipsize(c.Title, descWidth),
			strconv.Itoa(c.TotalPhotos),
			strconv.FormatBool(c.Private),
			author(c.User),
		}) //nolint:errcheck
	}
	return table.Render()
}

func printTopics(w io.Writer, format string, topics []unsplash.Topic) error {
	if format == FormatJSON {
		return writeJSON(w, topics)
	}

	table := newTable(w)
	table.Append([]string{"SLUG", "TITLE", "PHOTOS", "FEATURED"}) //nolint:errcheck
	for _, t := range topics {
		table.Append([]string{
			t.Slug,
			ellipsize(t.Title, descWidth),
			strconv.Itoa(t.TotalPhotos),
			strconv.FormatBool(t.Featured),
		}) //nolint:errcheck
	}
	return table.Render()
}

func printUsers(w io.Writer, format string, users []unsplash.User) error {
	if format == FormatJSON {
		return writeJSON(w, users)
	}

	table := newTable(w)
	table.Append([]string{"USERNAME", "NAME", "PHOTOS", "LIKES", "COLLECTIONS"}) //nolint:errcheck
	for _, u := range users {
		table.Append([]string{
			u.Username,
			u.Name,
			strconv.Itoa(u.TotalPhotos),
			strconv.Itoa(u.TotalLikes),
			strconv.Itoa(u.TotalCollections),
		}) //nolint:errcheck
	}
	return table.Render()
}

func author(u *unsplash.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}

func describePhoto(p unsplash.Photo) string {
	if p.Description != "" {
		return p.Description
	}
	return p.AltDescription
}

func ellipsize(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= max {
		return text
	}
	return string([]rune(text)[:max-len(ellipsis)]) + ellipsis
}
