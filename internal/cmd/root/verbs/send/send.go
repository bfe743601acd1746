package send

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kong/rosterctl/internal/campaign"
	cmdpkg "github.com/kong/rosterctl/internal/cmd"
	"github.com/kong/rosterctl/internal/cmd/common"
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
	Verb = verbs.Send

	IDsFlagName         = "ids"
	AllMatchingFlagName = "all-matching"
	DryRunFlagName      = "dry-run"
	YesFlagName         = "yes"
	SubjectFlagName     = "subject"
	TemplateFlagName    = "template"

	// maxPages bounds the walk over a paginated screen
	maxPages = 1000
)

var (
	sendUse = fmt.Sprintf("%s SCREEN", Verb)

	sendShort = i18n.T("root.verbs.send.sendShort", "Send the campaign email to rows of a screen")

	sendLong = normalizers.LongDesc(i18n.T("root.verbs.send.sendLong",
		`Use send to run the bulk email action of a screen.

Recipients are picked by id, or every row matching the search and filters
is picked. The campaign subject and body are Go templates with the sprig
functions, rendered against each row. Use --dry-run to preview the
rendered messages without sending.`))

	sendExamples = normalizers.Examples(i18n.T("root.verbs.send.sendExamples",
		fmt.Sprintf(`
		# Preview the campaign for two candidates
		%[1]s send candidates --ids C-101,C-102 --dry-run
		# Send to every recipient that was not emailed yet, without prompting
		%[1]s send recipients --all-matching --filter emailStatus="Not Sent" --yes
		`, meta.CLIName)))
)

type preview struct {
	Messages []campaign.Message `json:"messages" yaml:"messages"`
	Missing  []datatable.ID     `json:"missing,omitempty" yaml:"missing,omitempty"`
}

func NewSendCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:       sendUse,
		Short:     sendShort,
		Long:      sendLong,
		Example:   sendExamples,
		Args:      verbs.ExactlyOneScreen(screens.Names()),
		ValidArgs: screens.Names(),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(context.WithValue(cmd.Context(), verbs.Verb, Verb))
		},
		PreRunE: bindFlags,
		RunE: func(c *cobra.Command, args []string) error {
			if yes, _ := c.Flags().GetBool(YesFlagName); yes {
				cmdpkg.SetAutoApprove(c, true)
			}
			helper := cmdpkg.BuildHelper(c, args)
			if err := validate(helper); err != nil {
				return err
			}
			return run(helper)
		},
	}

	cmd.Flags().StringSlice(IDsFlagName, nil, "Comma separated ids of the rows to email.")
	cmd.Flags().Bool(AllMatchingFlagName, false, "Email every row matching --search and --filter.")
	cmd.Flags().Bool(DryRunFlagName, false, "Render the messages without sending them.")
	cmd.Flags().BoolP(YesFlagName, "y", false, "Skip the confirmation prompt.")
	cmd.Flags().String(SubjectFlagName, "",
		fmt.Sprintf(`Subject template of the campaign.
- Config path: [ %s ]`, config.CampaignSubjectPath))
	cmd.Flags().String(TemplateFlagName, "",
		fmt.Sprintf(`Body template of the campaign.
- Config path: [ %s ]`, config.CampaignTemplatePath))
	cmdpkg.AddQueryFlags(cmd.Flags())

	return cmd, nil
}

func bindFlags(c *cobra.Command, args []string) error {
	helper := cmdpkg.BuildHelper(c, args)
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	for flag, path := range map[string]string{
		SubjectFlagName:  config.CampaignSubjectPath,
		TemplateFlagName: config.CampaignTemplatePath,
	} {
		if err := cfg.BindFlag(path, c.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

func validate(helper cmdpkg.Helper) error {
	flags := helper.GetCmd().Flags()
	ids, _ := flags.GetStringSlice(IDsFlagName)
	all, _ := flags.GetBool(AllMatchingFlagName)
	switch {
	case len(util.SplitList(ids...)) == 0 && !all:
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("one of --%s or --%s is required", IDsFlagName, AllMatchingFlagName),
		}
	case len(ids) > 0 && all:
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s and --%s are mutually exclusive", IDsFlagName, AllMatchingFlagName),
		}
	}
	return nil
}

func run(helper cmdpkg.Helper) error {
	outType, err := helper.GetOutputFormat()
	if err != nil {
		return err
	}
	session, err := cmdpkg.OpenScreen(helper)
	if err != nil {
		return err
	}
	if !session.Screen.HasBulkAction() {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("screen %s has no bulk email action", session.Screen.Name),
		}
	}
	cp, err := campaign.Compile(campaign.FromConfig(session.Config))
	if err != nil {
		return &cmdpkg.ConfigurationError{Err: err}
	}

	flags := helper.GetCmd().Flags()
	ctrl := session.Controller
	if err := cmdpkg.ApplyQueryFlags(flags, ctrl); err != nil {
		return err
	}
	ctx := helper.GetContext()
	rows, err := collectRows(ctx, ctrl)
	if err != nil {
		return cmdpkg.FetchError(helper, err)
	}

	rawIDs, _ := flags.GetStringSlice(IDsFlagName)
	targets, missing := pick(rows, util.SplitList(rawIDs...))
	if len(missing) > 0 {
		session.Logger.Warn("ids not found in screen", "screen", session.Screen.Name, "ids", joinIDs(missing))
	}

	if dry, _ := flags.GetBool(DryRunFlagName); dry {
		messages, err := cp.RenderAll(targets)
		if err != nil {
			return cmdpkg.PrepareExecutionErrorFromErr(helper, err)
		}
		return printPreview(helper, outType, preview{Messages: messages, Missing: missing})
	}

	if len(targets) == 0 {
		return cmdpkg.PrepareExecutionErrorMsg(helper, "no matching rows to email")
	}
	ids := datatable.IDs(targets)
	description := fmt.Sprintf("send %q to %d %s", cp.Template().Subject, len(ids), session.Screen.Name)
	var notes []string
	if len(missing) > 0 {
		notes = append(notes, fmt.Sprintf("Skipping unknown ids: %s", joinIDs(missing)))
	}
	if err := cmdpkg.Confirm(helper, description, notes...); err != nil {
		return err
	}

	summary, err := ctrl.RunBulkAction(ctx, ids, cp.Template())
	if err != nil {
		return cmdpkg.PrepareExecutionErrorWithHelper(helper, summary.Message, err)
	}
	if err := printSummary(helper, outType, summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return cmdpkg.PrepareExecutionErrorMsg(helper,
			fmt.Sprintf("%d of %d emails failed", summary.Failed, len(ids)),
			"failed", summary.Failed)
	}
	return nil
}

// collectRows fetches every page of the current query.
func collectRows(ctx context.Context, ctrl *datatable.Controller) ([]datatable.Row, error) {
	if err := ctrl.Refresh(ctx); err != nil {
		return nil, err
	}
	var rows []datatable.Row
	for i := 0; i < maxPages; i++ {
		snap := ctrl.Snapshot()
		rows = append(rows, snap.Rows...)
		if !snap.Pagination.HasNext() {
			break
		}
		if ctrl.NextPage() {
			if err := ctrl.Refresh(ctx); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

// pick returns the rows whose id is in ids and the ids that matched
// no row. Without ids every row is picked.
func pick(rows []datatable.Row, ids []string) ([]datatable.Row, []datatable.ID) {
	if len(ids) == 0 {
		return rows, nil
	}
	byID := make(map[datatable.ID]datatable.Row, len(rows))
	for _, r := range rows {
		if id, ok := r.ID(); ok {
			byID[id] = r
		}
	}
	var picked []datatable.Row
	var missing []datatable.ID
	seen := map[datatable.ID]bool{}
	for _, raw := range ids {
		id := datatable.ID(raw)
		if seen[id] {
			continue
		}
		seen[id] = true
		if r, ok := byID[id]; ok {
			picked = append(picked, r)
			continue
		}
		missing = append(missing, id)
	}
	return picked, missing
}

func joinIDs(ids []datatable.ID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = string(id)
	}
	sort.Strings(s)
	return strings.Join(s, ", ")
}

func printPreview(helper cmdpkg.Helper, outType common.OutputFormat, p preview) error {
	out := helper.GetStreams().Out
	if outType != common.TEXT {
		return printStructured(out, outType, p)
	}
	for i, m := range p.Messages {
		if i > 0 {
			fmt.Fprintln(out, "---")
		}
		fmt.Fprintf(out, "To: %s\nSubject: %s\n\n%s\n", m.To, m.Subject, strings.TrimRight(m.Body, "\n"))
	}
	if len(p.Missing) > 0 {
		fmt.Fprintf(out, "Unknown ids: %s\n", joinIDs(p.Missing))
	}
	_, err := fmt.Fprintf(out, "%d messages would be sent\n", len(p.Messages))
	return err
}

func printSummary(helper cmdpkg.Helper, outType common.OutputFormat, s datatable.BulkSummary) error {
	out := helper.GetStreams().Out
	if outType != common.TEXT {
		return printStructured(out, outType, s)
	}
	fmt.Fprintln(out, s.Message)
	for _, f := range s.Failures {
		fmt.Fprintf(out, "  %s: %s\n", f.ID, f.Error)
	}
	if s.OmittedFailures > 0 {
		fmt.Fprintf(out, "  ... and %d more\n", s.OmittedFailures)
	}
	return nil
}

func printStructured(out io.Writer, outType common.OutputFormat, v any) error {
	p, err := cli.Format(outType.String(), out)
	if err != nil {
		return err
	}
	defer p.Flush()
	p.Print(v)
	return nil
}
