package env

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/crmarques/jelapi/internal/app/apply"
	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "env",
		Short: "Inspect and change environments",
		Args:  cobra.NoArgs,
	}

	command.AddCommand(
		newListCommand(deps, globalFlags),
		newGetCommand(deps, globalFlags),
		newApplyCommand(deps, globalFlags),
		newStatusCommand(deps, "start", "Start an environment", (*jelastic.Environment).Start),
		newStatusCommand(deps, "stop", "Stop a running environment", (*jelastic.Environment).Stop),
		newStatusCommand(deps, "sleep", "Put an environment to sleep", (*jelastic.Environment).Sleep),
		newCloneCommand(deps, globalFlags),
		newStatsCommand(deps, globalFlags),
	)

	return command
}

func newListCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			client, err := common.RequireClient(deps)
			if err != nil {
				return err
			}
			environments, err := client.Environments(command.Context())
			if err != nil {
				return err
			}

			views := make([]common.EnvironmentView, 0, len(environments))
			for _, name := range slices.Sorted(maps.Keys(environments)) {
				views = append(views, common.NewEnvironmentView(environments[name]))
			}
			return common.WriteOutput(command, globalFlags.Output, views, common.RenderEnvironmentList)
		},
	}
}

func newGetCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var envName string
	var jq string

	command := &cobra.Command{
		Use:   "get [env-name]",
		Short: "Show an environment with its node groups and nodes",
		Example: strings.Join([]string{
			"  jelctl env get shop",
			"  jelctl env get shop --jq '.nodeGroups[].name'",
		}, "\n"),
		Args: cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			env, err := loadEnvironment(command, deps, envName, args)
			if err != nil {
				return err
			}

			view := common.NewEnvironmentView(env)
			if strings.TrimSpace(jq) == "" {
				return common.WriteOutput(command, globalFlags.Output, view, common.RenderEnvironment)
			}
			filtered, err := common.FilterJQ(command.Context(), view, jq)
			if err != nil {
				return err
			}
			return common.WriteJSONDocument(command, globalFlags.Output, filtered)
		},
	}
	common.BindEnvFlag(command, &envName)
	command.Flags().StringVar(&jq, "jq", "", "jq expression applied to the environment")
	return command
}

func newApplyCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var input common.InputFlags
	var dryRun bool

	command := &cobra.Command{
		Use:   "apply",
		Short: "Converge an environment to a desired state document",
		Example: strings.Join([]string{
			"  jelctl env apply --payload shop.yaml",
			"  cat shop.yaml | jelctl env apply --dry-run",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			client, err := common.RequireClient(deps)
			if err != nil {
				return err
			}
			data, err := common.ReadInput(command, input)
			if err != nil {
				return err
			}
			document, err := apply.Decode(data)
			if err != nil {
				return err
			}

			changes, err := apply.Execute(
				command.Context(),
				apply.Dependencies{Client: client},
				document,
				apply.ExecuteOptions{DryRun: dryRun},
			)
			if err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, changes, renderChanges(dryRun))
		},
	}
	common.BindInputFlags(command, &input)
	command.Flags().BoolVar(&dryRun, "dry-run", false, "report the changes without saving them")
	return command
}

func renderChanges(dryRun bool) func(io.Writer, apply.Changes) error {
	return func(w io.Writer, changes apply.Changes) error {
		if len(changes) == 0 {
			_, err := fmt.Fprintln(w, "no changes")
			return err
		}
		verb := "changed"
		if dryRun {
			verb = "would change"
		}
		for _, change := range changes {
			if _, err := fmt.Fprintf(w, "%s %s: %s\n", change.Resource, verb, strings.Join(change.Fields, ", ")); err != nil {
				return err
			}
		}
		return nil
	}
}

func newStatusCommand(
	deps common.CommandDependencies,
	use string,
	short string,
	action func(*jelastic.Environment, context.Context) error,
) *cobra.Command {
	var envName string

	command := &cobra.Command{
		Use:   use + " [env-name]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			env, err := loadEnvironment(command, deps, envName, args)
			if err != nil {
				return err
			}
			return action(env, command.Context())
		},
	}
	common.BindEnvFlag(command, &envName)
	return command
}

func newCloneCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <env-name> <new-env-name>",
		Short: "Clone an environment under a new name",
		Args:  cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			env, err := loadEnvironment(command, deps, "", args[:1])
			if err != nil {
				return err
			}
			cloned, err := env.Clone(command.Context(), args[1])
			if err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, common.NewEnvironmentView(cloned), common.RenderEnvironment)
		},
	}
}

func newStatsCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var envName string
	var duration time.Duration

	command := &cobra.Command{
		Use:   "stats [env-name]",
		Short: "Show summary resource usage of an environment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			if duration <= 0 {
				return common.ValidationError("--duration must be positive", nil)
			}
			env, err := loadEnvironment(command, deps, envName, args)
			if err != nil {
				return err
			}
			stats, err := env.SumStats(command.Context(), duration)
			if err != nil {
				return err
			}
			return common.WriteJSONDocument(command, globalFlags.Output, stats)
		},
	}
	common.BindEnvFlag(command, &envName)
	command.Flags().DurationVar(&duration, "duration", time.Hour, "period covered by the statistics")
	return command
}

func loadEnvironment(command *cobra.Command, deps common.CommandDependencies, envFlag string, args []string) (*jelastic.Environment, error) {
	client, err := common.RequireClient(deps)
	if err != nil {
		return nil, err
	}
	envName, err := common.ResolveNameInput("environment", envFlag, args, true)
	if err != nil {
		return nil, err
	}
	return client.Environment(command.Context(), envName)
}
