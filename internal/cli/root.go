// Package cli implements the plashr command line client.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/plashr/plashr/internal/app"
	"github.com/plashr/plashr/internal/config"
	"github.com/plashr/plashr/pkg/auth"
	"github.com/plashr/plashr/pkg/client"
	"github.com/plashr/plashr/pkg/message"
	"github.com/plashr/plashr/pkg/pagination"
	"github.com/plashr/plashr/pkg/unsplash"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	ConfigFlag    = "config"
	FormatFlag    = "format"
	NoSpinnerFlag = "no-spinner"
	PageFlag      = "page"
	PagesFlag     = "pages"
	PerPageFlag   = "per-page"
	OrderFlag     = "order"
	OrientFlag    = "orientation"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// session carries the state shared by the commands of one invocation.
type session struct {
	configPath string
	format     string
	noSpinner  bool

	app     *app.App
	printer *message.Printer
}

// open loads the configuration and wires the app on first use.
func (s *session) open(cmd *cobra.Command) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}

	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, err
	}

	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	s.app = a
	s.printer = a.Printer(cmd.Context())
	return a, nil
}

// api returns a connected API.
func (s *session) api(cmd *cobra.Command) (*unsplash.API, error) {
	a, err := s.open(cmd)
	if err != nil {
		return nil, err
	}
	if a.API == nil {
		if err := a.Connect(cmd.Context()); err != nil {
			return nil, err
		}
	}
	return a.API, nil
}

func (s *session) close() {
	if s.app == nil {
		return
	}
	if err := s.app.Close(); err != nil {
		log.Debug().Err(err).Msg("Close failed")
	}
	s.app = nil
}

func (s *session) messages() *message.Printer {
	if s.printer == nil {
		return message.NewPrinter("en")
	}
	return s.printer
}

// NewRootCmd builds the plashr command tree.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "plashr",
		Short: "Browse, search and download photos from the command line",
		Long: `plashr pages through the photo API's feeds, topics, collections,
users and search results. Responses are cached in Redis and the hourly
request budget is tracked there too.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			s.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.configPath, ConfigFlag, "", "config file (default: ./plashr.yaml or ~/.config/plashr/plashr.yaml)")
	flags.StringVarP(&s.format, FormatFlag, "f", FormatTable, "output format: table, json")
	flags.BoolVar(&s.noSpinner, NoSpinnerFlag, false, "do not show a spinner while loading")

	rootCmd.AddCommand(
		newFeedCmd(s),
		newPhotoCmd(s),
		newRandomCmd(s),
		newLikeCmd(s),
		newUnlikeCmd(s),
		newDownloadCmd(s),
		newTopicsCmd(s),
		newTopicCmd(s),
		newCollectionsCmd(s),
		newUserCmd(s),
		newMeCmd(s),
		newSearchCmd(s),
		newSettingsCmd(s),
		newLoginCmd(s),
		newLogoutCmd(s),
	)

	return rootCmd, s
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	rootCmd, s := newRootCmd()
	defer s.close()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), describe(s.messages(), err))
		return 1
	}
	return 0
}

// describe turns API failures into localized text and passes other errors
// (flags, configuration) through.
func describe(p *message.Printer, err error) string {
	log.Debug().Err(err).Msg("Command failed")

	var (
		loadErr *pagination.LoadError
		reqErr  *unsplash.RequestError
		apiErr  *client.APIError
		verrs   validator.ValidationErrors
	)
	switch {
	case errors.As(err, &loadErr), errors.As(err, &reqErr), errors.As(err, &apiErr),
		errors.As(err, &verrs), errors.Is(err, client.ErrRateLimited), errors.Is(err, context.Canceled):
		return p.Format(err)
	case errors.Is(err, auth.ErrNotLoggedIn):
		return p.Sprintf(message.MsgUnauthorized)
	default:
		return "Error: " + err.Error()
	}
}
