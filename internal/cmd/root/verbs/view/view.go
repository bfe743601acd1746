package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/kong/rosterctl/internal/campaign"
	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	"github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/cmd/output/tableview"
	"github.com/kong/rosterctl/internal/cmd/root/verbs"
	"github.com/kong/rosterctl/internal/log"
	"github.com/kong/rosterctl/internal/meta"
	"github.com/kong/rosterctl/internal/screens"
	"github.com/kong/rosterctl/internal/theme"
	"github.com/kong/rosterctl/internal/util/i18n"
	"github.com/kong/rosterctl/internal/util/normalizers"
	"github.com/spf13/cobra"
)

const (
	Verb = verbs.View
)

var (
	viewUse = fmt.Sprintf("%s SCREEN", Verb)

	viewShort = i18n.T("root.verbs.view.viewShort", "Browse a screen interactively")

	viewLong = normalizers.LongDesc(i18n.T("root.verbs.view.viewLong",
		`Open an interactive table for a screen.

Use / to search, f and c to open the filter and column panels, 1-9 to
sort by a column, space to select rows and e to send the campaign email
to the selection. When the output is not a terminal the first page is
printed instead.`))

	viewExamples = normalizers.Examples(i18n.T("root.verbs.view.viewExamples",
		fmt.Sprintf(`
		# Browse the email recipients
		%[1]s view recipients
		# Browse candidates with a custom accent color
		%[1]s view candidates --color-theme "#7b2cbf"
		`, meta.CLIName)))
)

// NewViewCmd creates the view command which launches the interactive table.
func NewViewCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:       viewUse,
		Short:     viewShort,
		Long:      viewLong,
		Example:   viewExamples,
		Aliases:   []string{"v", "V"},
		Args:      verbs.ExactlyOneScreen(screens.Names()),
		ValidArgs: screens.Names(),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(context.WithValue(cmd.Context(), verbs.Verb, Verb))
		},
		PreRunE: func(c *cobra.Command, args []string) error {
			cfg, err := cmdpkg.BuildHelper(c, args).GetConfig()
			if err != nil {
				return err
			}
			return cfg.BindFlag(common.ColorThemeConfigPath, c.Flags().Lookup(common.ColorThemeFlagName))
		},
		RunE: func(c *cobra.Command, args []string) error {
			return run(cmdpkg.BuildHelper(c, args))
		},
	}

	cmd.Flags().String(common.ColorThemeFlagName, "",
		fmt.Sprintf(`Color theme name, or a #rrggbb accent color applied to the default theme.
- Config path: [ %s ]
- Themes     : [ %s ]`, common.ColorThemeConfigPath, strings.Join(theme.Available(), "|")))
	cmdpkg.AddQueryFlags(cmd.Flags())

	return cmd, nil
}

// applyTheme activates a named theme or derives one from an accent color.
func applyTheme(value string) error {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "#") {
		return theme.SetCurrentAccent(value)
	}
	return theme.SetCurrent(value)
}

func run(helper cmdpkg.Helper) error {
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	if err := applyTheme(cfg.GetString(common.ColorThemeConfigPath)); err != nil {
		return &cmdpkg.ConfigurationError{Err: err}
	}

	session, err := cmdpkg.OpenScreen(helper)
	if err != nil {
		return err
	}
	if err := cmdpkg.ApplyQueryFlags(helper.GetCmd().Flags(), session.Controller); err != nil {
		return err
	}

	streams := helper.GetStreams()
	ctx := helper.GetContext()
	if !streams.IsInteractive() {
		if err := session.Controller.Refresh(ctx); err != nil {
			return cmdpkg.FetchError(helper, err)
		}
		return tableview.RenderStatic(streams.Out, session.Screen.Title,
			session.Controller.Snapshot(), streams.TerminalWidth())
	}

	opts := []tableview.Option{
		tableview.WithLogger(session.Logger),
		tableview.WithPalette(theme.Current()),
	}
	if session.Screen.HasBulkAction() {
		cp, err := campaign.Compile(campaign.FromConfig(cfg))
		if err != nil {
			session.Logger.Warn("campaign unavailable, sending without a template", "error", err)
		} else {
			opts = append(opts, tableview.WithCampaign(cp))
		}
	}

	// errors are shown in the table status line while the program owns the terminal
	log.DisableErrorMirroring()
	defer log.EnableErrorMirroring()
	if err := tableview.Run(ctx, streams, session.Controller, session.Screen, opts...); err != nil {
		return cmdpkg.PrepareExecutionErrorFromErr(helper, err)
	}
	return nil
}
