package nodegroup

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:     "nodegroup",
		Aliases: []string{"ng"},
		Short:   "Operate on node groups",
		Args:    cobra.NoArgs,
	}

	command.AddCommand(
		newReadFileCommand(deps),
		newRedeployCommand(deps),
		newEnvVarsCommand(deps, globalFlags),
	)

	return command
}

func newReadFileCommand(deps common.CommandDependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "read-file <env-name> <node-group> <path>",
		Short: "Print a file from the master node of a node group",
		Args:  cobra.ExactArgs(3),
		RunE: func(command *cobra.Command, args []string) error {
			group, err := loadNodeGroup(command, deps, args[0], args[1])
			if err != nil {
				return err
			}
			body, err := group.ReadFile(command.Context(), args[2])
			if err != nil {
				return err
			}
			_, err = io.WriteString(command.OutOrStdout(), body)
			return err
		},
	}
}

func newRedeployCommand(deps common.CommandDependencies) *cobra.Command {
	var tag string

	command := &cobra.Command{
		Use:   "redeploy <env-name> <node-group>",
		Short: "Redeploy the containers of a node group",
		Args:  cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			group, err := loadNodeGroup(command, deps, args[0], args[1])
			if err != nil {
				return err
			}
			return group.Redeploy(command.Context(), tag)
		},
	}
	command.Flags().StringVar(&tag, "tag", "latest", "docker image tag")
	return command
}

func newEnvVarsCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "env-vars",
		Short: "Read and change container environment variables",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(
		newEnvVarsGetCommand(deps, globalFlags),
		newEnvVarsSetCommand(deps, globalFlags),
	)
	return command
}

func newEnvVarsGetCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <env-name> <node-group>",
		Short: "Show the environment variables of a node group",
		Args:  cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			group, err := loadNodeGroup(command, deps, args[0], args[1])
			if err != nil {
				return err
			}
			vars, err := group.EnvVars(command.Context())
			if err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, vars, renderEnvVars)
		},
	}
}

func newEnvVarsSetCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var unset []string

	command := &cobra.Command{
		Use:   "set <env-name> <node-group> [KEY=VALUE...]",
		Short: "Set or unset environment variables of a node group",
		Example: strings.Join([]string{
			"  jelctl nodegroup env-vars set shop cp MODE=prod WORKERS=4",
			"  jelctl nodegroup env-vars set shop cp --unset DEBUG",
		}, "\n"),
		Args: cobra.MinimumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) == 2 && len(unset) == 0 {
				return common.ValidationError("provide KEY=VALUE pairs or --unset", nil)
			}
			assignments, err := parseEnvVarAssignments(args[2:])
			if err != nil {
				return err
			}

			group, err := loadNodeGroup(command, deps, args[0], args[1])
			if err != nil {
				return err
			}
			vars, err := group.EnvVars(command.Context())
			if err != nil {
				return err
			}
			maps.Copy(vars, assignments)
			for _, key := range unset {
				delete(vars, strings.TrimSpace(key))
			}
			group.SetEnvVars(vars)

			if err := group.Save(command.Context()); err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, vars, renderEnvVars)
		},
	}
	command.Flags().StringArrayVar(&unset, "unset", nil, "variable to remove, repeatable")
	return command
}

func parseEnvVarAssignments(items []string) (map[string]string, error) {
	assignments := make(map[string]string, len(items))
	for _, item := range items {
		key, value, ok := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, common.ValidationError(fmt.Sprintf("invalid variable %q: expected KEY=VALUE", item), nil)
		}
		assignments[key] = value
	}
	return assignments, nil
}

func renderEnvVars(w io.Writer, vars map[string]string) error {
	for _, key := range slices.Sorted(maps.Keys(vars)) {
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, vars[key]); err != nil {
			return err
		}
	}
	return nil
}

func loadNodeGroup(command *cobra.Command, deps common.CommandDependencies, envName string, name string) (*jelastic.NodeGroup, error) {
	client, err := common.RequireClient(deps)
	if err != nil {
		return nil, err
	}
	env, err := client.Environment(command.Context(), envName)
	if err != nil {
		return nil, err
	}
	return common.LookupNodeGroup(env, name)
}
