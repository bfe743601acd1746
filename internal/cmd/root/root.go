package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kong/rosterctl/internal/backend"
	"github.com/kong/rosterctl/internal/build"
	"github.com/kong/rosterctl/internal/cmd"
	"github.com/kong/rosterctl/internal/cmd/common"
	"github.com/kong/rosterctl/internal/cmd/root/verbs/list"
	"github.com/kong/rosterctl/internal/cmd/root/verbs/send"
	"github.com/kong/rosterctl/internal/cmd/root/verbs/serve"
	"github.com/kong/rosterctl/internal/cmd/root/verbs/view"
	"github.com/kong/rosterctl/internal/cmd/root/version"
	"github.com/kong/rosterctl/internal/config"
	"github.com/kong/rosterctl/internal/iostreams"
	"github.com/kong/rosterctl/internal/log"
	"github.com/kong/rosterctl/internal/meta"
	"github.com/kong/rosterctl/internal/util"
	"github.com/kong/rosterctl/internal/util/i18n"
	"github.com/kong/rosterctl/internal/util/normalizers"
	"github.com/segmentio/cli"
	"github.com/spf13/cobra"
)

var (
	rootLong = normalizers.LongDesc(i18n.T("root.rootLong", `
  rosterctl browses the employee, candidate and email recipient lists of
  the admin backend and sends bulk campaign emails to selected rows.`))

	rootShort = i18n.T("root/rootShort", fmt.Sprintf("%s manages staff records and bulk email", meta.CLIName))

	rootCmd *cobra.Command

	// Stores the global runtime value for the Configuration file path,
	configFilePath = config.ExpandDefaultConfigFilePath()
	currProfile    = config.DefaultProfile

	currConfig   config.Hook
	streams      *iostreams.IOStreams
	outputFormat = cmd.NewEnum([]string{"json", "yaml", "text"}, common.DefaultOutputFormat)
	logLevel     = cmd.NewEnum([]string{"trace", "debug", "info", "warn", "error"}, common.DefaultLogLevel)

	buildInfo *build.Info
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   meta.CLIName,
		Short: rootShort,
		Long:  rootLong,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			logger, closer, err := log.New(log.Options{
				Level:  currConfig.GetString(common.LogLevelConfigPath),
				File:   currConfig.GetString(common.LogFileConfigPath),
				ErrOut: streams.ErrOut,
			})
			if err != nil {
				return &cmd.ConfigurationError{Err: err}
			}
			logCloser = closer

			ctx := context.WithValue(c.Context(), config.ConfigKey, currConfig)
			ctx = context.WithValue(ctx, iostreams.StreamsKey, streams)
			ctx = context.WithValue(ctx, build.InfoKey, buildInfo)
			ctx = context.WithValue(ctx, backend.ClientFactoryKey, backend.ClientFactory(backend.DefaultClientFactory))
			ctx = log.WithLogger(ctx, logger)
			c.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	// parses all flags not just the target command
	rootCmd.TraverseChildren = true

	rootCmd.PersistentFlags().StringVar(&configFilePath, common.ConfigFilePathFlagName,
		config.ExpandDefaultConfigFilePath(),
		i18n.T("root."+common.ConfigFilePathFlagName, "Path to the configuration file to load."))

	rootCmd.PersistentFlags().StringVarP(&currProfile, common.ProfileFlagName, common.ProfileFlagShort,
		config.DefaultProfile,
		fmt.Sprintf(`Specify the profile to use for this command.
- Env var: [ %s_PROFILE ]`, meta.EnvPrefix))

	rootCmd.PersistentFlags().VarP(outputFormat, common.OutputFlagName, common.OutputFlagShort,
		fmt.Sprintf(`Configures the output format.
- Config path: [ %s ]
- Allowed    : [ %s ]`,
			common.OutputConfigPath, strings.Join(outputFormat.Allowed, "|")))

	rootCmd.PersistentFlags().Var(logLevel, common.LogLevelFlagName,
		fmt.Sprintf(`Configures the logging level.
- Config path: [ %s ]
- Allowed    : [ %s ]`,
			common.LogLevelConfigPath, strings.Join(logLevel.Allowed, "|")))

	rootCmd.PersistentFlags().String(common.LogFileFlagName, "",
		fmt.Sprintf(`Write logs to this file. Errors are always mirrored to stderr.
- Config path: [ %s ]`, common.LogFileConfigPath))

	rootCmd.PersistentFlags().String(common.BaseURLFlagName, "",
		fmt.Sprintf(`Base URL of the admin backend API.
- Config path: [ %s ]
- Default    : [ %s ]`, common.BaseURLConfigPath, config.DefaultBaseURL))

	return rootCmd
}

// addCommands adds the root subcommands to the command.
func addCommands() error {
	rootCmd.AddCommand(version.NewVersionCmd())
	for _, newCmd := range []func() (*cobra.Command, error){
		list.NewListCmd,
		view.NewViewCmd,
		send.NewSendCmd,
		serve.NewServeCmd,
	} {
		c, err := newCmd()
		if err != nil {
			return err
		}
		rootCmd.AddCommand(c)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd = newRootCmd()
	err := addCommands()
	util.CheckError(err)

	// Because the profile is not part of the configuration, we can't use viper
	// to read it following it's built in priorities.  So here we look for a well known
	// profile variable and set our package level variable if it's set before
	// continuing to process the command run.  This creates a ENV_VAR < CLI_FLAG priority
	profileEnvVar, found := os.LookupEnv(fmt.Sprintf("%s_PROFILE", meta.EnvPrefix))
	if found {
		currProfile = profileEnvVar
	}
}

func initConfig() {
	cfg, err := config.GetConfig(configFilePath, currProfile, config.ExpandDefaultConfigFilePath())
	util.CheckError(err)
	currConfig = cfg

	for flag, path := range map[string]string{
		common.OutputFlagName:   common.OutputConfigPath,
		common.LogLevelFlagName: common.LogLevelConfigPath,
		common.LogFileFlagName:  common.LogFileConfigPath,
		common.BaseURLFlagName:  common.BaseURLConfigPath,
	} {
		f := rootCmd.PersistentFlags().Lookup(flag)
		util.CheckError(cfg.BindFlag(path, f))
	}
}

func Execute(ctx context.Context, s *iostreams.IOStreams, bi *build.Info) {
	buildInfo = bi
	cobra.EnableTraverseRunHooks = true
	streams = s
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	var executionError *cmd.ExecutionError
	if errors.As(err, &executionError) {
		if printer, perr := cli.Format(outputFormat.String(), s.ErrOut); perr == nil {
			printer.Print(errorReport(executionError))
			printer.Flush()
		} else {
			fmt.Fprintln(s.ErrOut, executionError.Msg)
		}
	}
	os.Exit(1)
}

// errorReport flattens an ExecutionError and its attributes into one map.
// Attributes decoded from a JSON formatted cause are included too.
func errorReport(e *cmd.ExecutionError) map[string]any {
	report := map[string]any{"error": e.Msg}
	attrs := append([]any(nil), e.Attrs...)
	if e.Err != nil {
		report["details"] = e.Err.Error()
		attrs = append(attrs, cmd.TryConvertErrorToAttrs(e.Err)...)
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok || key == "error" || key == "details" {
			continue
		}
		report[key] = attrs[i+1]
	}
	return report
}
