package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/jelapi/faults"
	"github.com/crmarques/jelapi/internal/cli/call"
	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/internal/cli/config"
	"github.com/crmarques/jelapi/internal/cli/env"
	"github.com/crmarques/jelapi/internal/cli/group"
	"github.com/crmarques/jelapi/internal/cli/node"
	"github.com/crmarques/jelapi/internal/cli/nodegroup"
	"github.com/crmarques/jelapi/internal/cli/version"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

func NewRootCommand(deps Dependencies) *cobra.Command {
	root, _ := newRootCommand(deps)
	return root
}

// newRootCommand also returns the root flags, bound once the command line is
// parsed.
func newRootCommand(deps Dependencies) (*cobra.Command, *common.GlobalFlags) {
	commandDeps := deps.commandDependencies()
	globalFlags := &common.GlobalFlags{}

	root := &cobra.Command{
		Use:   "jelctl",
		Short: "Manage environments of a Jelastic platform",
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(command *cobra.Command, _ []string) error {
			if err := common.ValidateOutputFormat(globalFlags.Output); err != nil {
				return err
			}
			if err := common.ValidateOutputFormatForCommandPath(command.CommandPath(), globalFlags.Output); err != nil {
				return err
			}

			commandContext := command.Context()
			if commandContext == nil {
				commandContext = context.Background()
			}
			logger := common.NewLogger(command.ErrOrStderr(), globalFlags.Debug).WithName("jelctl")
			commandContext = common.WithContextName(commandContext, globalFlags.Context)
			commandContext = logr.NewContext(commandContext, logger)
			command.SetContext(commandContext)

			logger.V(1).Info(
				"root flags",
				"context", globalFlags.Context,
				"output", globalFlags.Output,
				"noStatus", globalFlags.NoStatus,
				"noColor", globalFlags.NoColor,
				"command", command.CommandPath(),
			)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	common.BindGlobalFlags(root, globalFlags)
	root.PersistentFlags().BoolP("help", "h", false, "help for command")

	root.AddGroup(
		&cobra.Group{ID: "basic", Title: "Basic Commands:"},
		&cobra.Group{ID: "other", Title: "Other Commands:"},
	)

	basicCommands := []*cobra.Command{
		env.NewCommand(commandDeps, globalFlags),
		nodegroup.NewCommand(commandDeps, globalFlags),
		node.NewCommand(commandDeps, globalFlags),
		group.NewCommand(commandDeps, globalFlags),
		config.NewCommand(commandDeps, globalFlags),
	}
	for _, command := range basicCommands {
		command.GroupID = "basic"
		root.AddCommand(command)
	}

	otherCommands := []*cobra.Command{
		call.NewCommand(commandDeps, globalFlags),
		version.NewCommand(globalFlags),
	}
	for _, command := range otherCommands {
		command.GroupID = "other"
		root.AddCommand(command)
	}
	root.SetCompletionCommandGroupID("other")

	wrapUsageForMissingPositionalParameterErrors(root)

	return root, globalFlags
}

// wrapUsageForMissingPositionalParameterErrors prints the usage of a command
// that failed because a required positional argument was omitted.
func wrapUsageForMissingPositionalParameterErrors(command *cobra.Command) {
	command.Args = withUsageOnMissingArgument(command.Args)
	command.RunE = withUsageOnMissingArgument(command.RunE)
	for _, child := range command.Commands() {
		wrapUsageForMissingPositionalParameterErrors(child)
	}
}

func withUsageOnMissingArgument(handler func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	if handler == nil {
		return nil
	}
	return func(command *cobra.Command, args []string) error {
		err := handler(command, args)
		if len(args) == 0 && isMissingArgumentError(command, err) {
			if usage := strings.TrimRight(command.UsageString(), "\n"); usage != "" {
				_, _ = fmt.Fprintln(command.ErrOrStderr(), usage)
			}
		}
		return err
	}
}

func isMissingArgumentError(command *cobra.Command, err error) bool {
	if err == nil || !strings.ContainsAny(command.Use, "[<") {
		return false
	}

	message := strings.ToLower(strings.TrimSpace(err.Error()))
	if !faults.IsCategory(err, faults.ValidationError) {
		return strings.Contains(message, "arg(s)") && strings.Contains(message, "received 0")
	}
	for _, unrelated := range []string{"input is required", "interactive terminal is required", "value is required", "rerun with --yes"} {
		if strings.Contains(message, unrelated) {
			return false
		}
	}
	return !strings.HasPrefix(message, "flag ") && strings.Contains(message, " is required")
}
