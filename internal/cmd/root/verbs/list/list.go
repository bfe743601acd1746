package list

import (
	"context"
	"fmt"
	"strings"

	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	"github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/cmd/output/jmespath"
	"github.com/kong/rosterctl/internal/cmd/output/jq"
	"github.com/kong/rosterctl/internal/cmd/output/tableview"
	"github.com/kong/rosterctl/internal/cmd/root/verbs"
	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/meta"
	"github.com/kong/rosterctl/internal/screens"
	"github.com/kong/rosterctl/internal/util"
	"github.com/kong/rosterctl/internal/util/i18n"
	"github.com/kong/rosterctl/internal/util/normalizers"
	"github.com/segmentio/cli"
	"github.com/spf13/cobra"
)

const (
	Verb = verbs.List

	PageFlagName     = "page"
	PageSizeFlagName = "page-size"
	ColumnsFlagName  = "columns"
)

var (
	listUse = fmt.Sprintf("%s SCREEN", Verb)

	listShort = i18n.T("root.verbs.list.listShort", "Print one page of a screen")

	listLong = normalizers.LongDesc(i18n.T("root.verbs.list.listLong",
		`Use list to print one page of a list screen.

Search, filters and sort are sent to the backend. When the backend returns
the whole collection instead of a page, the rows are searched, filtered,
sorted and paginated locally.`))

	listExamples = normalizers.Examples(i18n.T("root.verbs.list.listExamples",
		fmt.Sprintf(`
		# First page of employees
		%[1]s list employees
		# Second page of engineers, ten per page, as JSON
		%[1]s list employees --filter department=Engineering --page 2 --page-size 10 -o json
		# Candidate emails that were not sent yet
		%[1]s list candidates --filter emailSent=false -o json --jq '.rows[].email' -r
	# Names on the current page, selected with JMESPath
	%[1]s list employees -o yaml --jmespath 'rows[].name'
		`, meta.CLIName)))
)

// Result is the structured output of the list command.
type Result struct {
	Screen     string                    `json:"screen" yaml:"screen"`
	Pagination datatable.PaginationState `json:"pagination" yaml:"pagination"`
	View       datatable.ViewSnapshot    `json:"view" yaml:"view"`
	Selected   []datatable.ID            `json:"selected,omitempty" yaml:"selected,omitempty"`
	Rows       []map[string]any          `json:"rows" yaml:"rows"`
}

func NewListCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     listUse,
		Short:   listShort,
		Long:    listLong,
		Example: listExamples,
		Aliases: []string{"ls", "l"},
		Args:    verbs.ExactlyOneScreen(screens.Names()),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(context.WithValue(cmd.Context(), verbs.Verb, Verb))
		},
		PreRunE: bindFlags,
		RunE: func(c *cobra.Command, args []string) error {
			helper := cmdpkg.BuildHelper(c, args)
			if err := validate(helper); err != nil {
				return err
			}
			return run(helper)
		},
		ValidArgs: screens.Names(),
	}

	cmdpkg.AddQueryFlags(cmd.Flags())
	cmd.Flags().Int(PageFlagName, 1, "Page to print, starting at 1.")
	cmd.Flags().Int(PageSizeFlagName, datatable.DefaultPageSize,
		fmt.Sprintf(`Rows per page.
- Config path: [ %s ]`, config.PageSizeConfigPath))
	cmd.Flags().StringSlice(ColumnsFlagName, nil,
		"Comma separated field keys to show, replacing the screen's visible columns.\n"+columnsHelp())
	jq.AddFlags(cmd.Flags())
	jmespath.AddFlags(cmd.Flags())

	return cmd, nil
}

func bindFlags(c *cobra.Command, args []string) error {
	helper := cmdpkg.BuildHelper(c, args)
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	if f := c.Flags().Lookup(PageSizeFlagName); f != nil {
		if err := cfg.BindFlag(config.PageSizeConfigPath, f); err != nil {
			return err
		}
	}
	return jq.BindFlags(cfg, c.Flags())
}

func validate(helper cmdpkg.Helper) error {
	page, err := helper.GetCmd().Flags().GetInt(PageFlagName)
	if err != nil {
		return err
	}
	if page < 1 {
		return &cmdpkg.ConfigurationError{Err: fmt.Errorf("--%s must be at least 1", PageFlagName)}
	}
	size, err := helper.GetCmd().Flags().GetInt(PageSizeFlagName)
	if err != nil {
		return err
	}
	if size < 1 {
		return &cmdpkg.ConfigurationError{Err: fmt.Errorf("--%s must be at least 1", PageSizeFlagName)}
	}
	return nil
}

func run(helper cmdpkg.Helper) error {
	outType, err := helper.GetOutputFormat()
	if err != nil {
		return err
	}
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	jqSettings, err := jq.ResolveSettings(helper.GetCmd(), cfg)
	if err != nil {
		return err
	}
	if err := jqSettings.Validate(outType); err != nil {
		return err
	}
	selector, err := jmespath.Expression(helper.GetCmd().Flags())
	if err != nil {
		return err
	}
	if err := jmespath.Validate(selector, outType, jqSettings); err != nil {
		return err
	}

	session, err := cmdpkg.OpenScreen(helper)
	if err != nil {
		return err
	}
	ctrl := session.Controller
	flags := helper.GetCmd().Flags()
	if err := cmdpkg.ApplyQueryFlags(flags, ctrl); err != nil {
		return err
	}
	if flags.Changed(PageSizeFlagName) {
		size, _ := flags.GetInt(PageSizeFlagName)
		ctrl.SetPageSize(size)
	}
	page, _ := flags.GetInt(PageFlagName)
	ctrl.SetPage(page - 1)

	if err := ctrl.Refresh(helper.GetContext()); err != nil {
		return cmdpkg.FetchError(helper, err)
	}
	if cols, _ := flags.GetStringSlice(ColumnsFlagName); len(cols) > 0 {
		ctrl.SetColumnsVisible(util.SplitList(cols...))
	}

	snap := ctrl.Snapshot()
	session.Logger.Debug("listed screen", "screen", snap.Name, "mode", snap.Pagination.Mode,
		"page", snap.Pagination.Page, "rows", len(snap.Rows))

	out := helper.GetStreams().Out
	if outType == common.TEXT {
		return tableview.RenderStatic(out, session.Screen.Title, snap, helper.GetStreams().TerminalWidth())
	}

	value, err := jmespath.Apply(NewResult(snap), selector)
	if err != nil {
		return cmdpkg.PrepareExecutionErrorFromErr(helper, err)
	}
	value, written, err := jqSettings.Apply(value, outType, out)
	if err != nil {
		return cmdpkg.PrepareExecutionErrorFromErr(helper, err)
	}
	if written {
		return nil
	}
	p, err := cli.Format(outType.String(), out)
	if err != nil {
		return err
	}
	defer p.Flush()
	p.Print(value)
	return nil
}

// NewResult projects the visible rows of snap onto the visible columns.
// The row id is always kept.
func NewResult(snap datatable.Snapshot) Result {
	rows := make([]map[string]any, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		m := make(map[string]any, len(snap.Columns)+1)
		if v, ok := r[datatable.FieldID]; ok {
			m[datatable.FieldID] = v
		}
		for _, col := range snap.Columns {
			if v, ok := r[col.Key]; ok {
				m[col.Key] = v
			}
		}
		rows = append(rows, m)
	}
	return Result{
		Screen:     snap.Name,
		Pagination: snap.Pagination,
		View:       snap.View,
		Selected:   snap.Selection,
		Rows:       rows,
	}
}

// columnsHelp lists the column keys of every screen.
func columnsHelp() string {
	var b strings.Builder
	for _, name := range screens.Names() {
		s, _ := screens.Lookup(name)
		keys := make([]string, len(s.Columns))
		for i, c := range s.Columns {
			keys[i] = c.Key
		}
		fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(keys, ", "))
	}
	return b.String()
}
