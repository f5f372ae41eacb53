package cli

import (
	"fmt"

	"github.com/plashr/plashr/pkg/settings"
	"github.com/spf13/cobra"
)

func newSettingsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}
			st, err := a.Settings.Get(cmd.Context())
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}

			table := newTable(cmd.OutOrStdout())
			for _, key := range settings.Keys() {
				value, _ := st.Value(key)
				table.Append([]string{key, value}) //nolint:errcheck
			}
			return table.Render()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:       "get KEY",
			Short:     "Print one setting",
			Args:      cobra.ExactArgs(1),
			ValidArgs: settings.Keys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := s.open(cmd)
				if err != nil {
					return err
				}
				st, err := a.Settings.Get(cmd.Context())
				if err != nil {
					return err
				}
				value, err := st.Value(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one setting",
			Long: `Change one setting. Keys and values:
  theme             system, light, dark
  layout            card, list, grid
  download_quality  raw, full, regular, small
  locale            a language tag such as en or de`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := s.open(cmd)
				if err != nil {
					return err
				}
				return a.Settings.Set(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the defaults",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := s.open(cmd)
				if err != nil {
					return err
				}
				return a.Settings.Reset(cmd.Context())
			},
		},
	)
	return cmd
}
