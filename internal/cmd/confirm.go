package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

type confirmContextKey string

const autoApproveContextKey confirmContextKey = "rosterctl-auto-approve"

// SetAutoApprove stores the --yes flag state on the command context so that
// nested handlers can read it without rebinding flags.
func SetAutoApprove(cmd *cobra.Command, approved bool) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, autoApproveContextKey, approved))
}

// AutoApproveEnabled reports whether the user opted to skip confirmation prompts.
func AutoApproveEnabled(helper Helper) bool {
	if helper == nil || helper.GetCmd() == nil {
		return false
	}
	ctx := helper.GetCmd().Context()
	if ctx == nil {
		return false
	}
	approved, _ := ctx.Value(autoApproveContextKey).(bool)
	return approved
}

// Confirm asks the user to type 'yes' before an outward facing action such
// as a bulk email, unless auto approval is enabled.
func Confirm(helper Helper, description string, notes ...string) error {
	if AutoApproveEnabled(helper) {
		return nil
	}

	streams := helper.GetStreams()
	fmt.Fprintf(streams.Out, "\nYou are about to %s\n", description)
	for _, note := range notes {
		if strings.TrimSpace(note) != "" {
			fmt.Fprintln(streams.Out, note)
		}
	}
	fmt.Fprint(streams.Out, "\nDo you want to continue? Type 'yes' to confirm: ")

	input := streams.In
	if f, ok := input.(*os.File); ok && f.Fd() == os.Stdin.Fd() {
		if tty, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0); err == nil {
			defer tty.Close()
			input = tty
		}
	}

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(input).ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	ctx := helper.GetContext()
	if ctx == nil {
		ctx = context.Background()
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
	case <-errCh:
	case line := <-lineCh:
		if strings.ToLower(strings.TrimSpace(line)) == "yes" {
			return nil
		}
	}
	return PrepareExecutionErrorMsg(helper, "cancelled")
}
