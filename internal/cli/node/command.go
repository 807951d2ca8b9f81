package node

import (
	"fmt"
	"io"
	"strings"

	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "node",
		Short: "Operate on single nodes",
		Args:  cobra.NoArgs,
	}

	command.AddCommand(
		newExecCommand(deps, globalFlags),
		newCloudletsCommand(deps, globalFlags),
		newReadFileCommand(deps),
	)

	return command
}

func newExecCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var commands []string

	command := &cobra.Command{
		Use:   "exec <env-name> <node-id> [command...]",
		Short: "Run shell commands on a node",
		Example: strings.Join([]string{
			"  jelctl node exec shop 11 -- uptime",
			"  jelctl node exec shop 11 --cmd 'df -h' --cmd 'free -m'",
		}, "\n"),
		Args: cobra.MinimumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			node, err := loadNode(command, deps, args[0], args[1])
			if err != nil {
				return err
			}

			batch := append([]string{}, commands...)
			if len(args) > 2 {
				batch = append(batch, strings.Join(args[2:], " "))
			}
			if len(batch) == 0 {
				return common.ValidationError("at least one command is required", nil)
			}

			responses, err := node.ExecuteCommands(command.Context(), batch...)
			if err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, responses, renderResponses)
		},
	}
	command.Flags().StringArrayVar(&commands, "cmd", nil, "command to run, repeatable")
	return command
}

func renderResponses(w io.Writer, responses []jelastic.CommandResponse) error {
	for _, response := range responses {
		if response.Out != "" {
			if _, err := fmt.Fprintln(w, strings.TrimRight(response.Out, "\n")); err != nil {
				return err
			}
		}
		if response.ErrOut != "" {
			if _, err := fmt.Fprintln(w, strings.TrimRight(response.ErrOut, "\n")); err != nil {
				return err
			}
		}
		if response.Result != 0 {
			if _, err := fmt.Fprintf(w, "exit result %d\n", response.Result); err != nil {
				return err
			}
		}
	}
	return nil
}

func newCloudletsCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var fixed int
	var flexible int
	var assumeYes bool

	command := &cobra.Command{
		Use:   "cloudlets <env-name> <node-id>",
		Short: "Change the cloudlet limits of a node",
		Example: strings.Join([]string{
			"  jelctl node cloudlets shop 11 --flexible 16",
			"  jelctl node cloudlets shop 11 --fixed 2 --flexible 4 --yes",
		}, "\n"),
		Args: cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			if !command.Flags().Changed("fixed") && !command.Flags().Changed("flexible") {
				return common.ValidationError("set --fixed or --flexible", nil)
			}
			node, err := loadNode(command, deps, args[0], args[1])
			if err != nil {
				return err
			}

			if command.Flags().Changed("fixed") {
				node.SetFixedCloudlets(fixed)
			}
			if command.Flags().Changed("flexible") {
				if flexible < node.FlexibleCloudlets() {
					confirmed, err := common.ConfirmAction(
						command,
						common.ResolvePrompter(deps),
						fmt.Sprintf("Reduce flexible cloudlets of node %d from %d to %d?", node.ID(), node.FlexibleCloudlets(), flexible),
						assumeYes,
					)
					if err != nil {
						return err
					}
					if !confirmed {
						return common.WriteText(command, common.OutputText, "cloudlet change canceled")
					}
					node.AllowFlexibleCloudletsReduction()
				}
				node.SetFlexibleCloudlets(flexible)
			}

			if err := node.Save(command.Context()); err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, common.NewNodeView(node), func(w io.Writer, view common.NodeView) error {
				_, err := fmt.Fprintf(w, "node %d: %d fixed, %d flexible cloudlets\n", view.ID, view.FixedCloudlets, view.FlexibleCloudlets)
				return err
			})
		},
	}
	command.Flags().IntVar(&fixed, "fixed", 0, "reserved cloudlets")
	command.Flags().IntVar(&flexible, "flexible", 0, "dynamic cloudlet limit")
	command.Flags().BoolVarP(&assumeYes, "yes", "y", false, "confirm a flexible cloudlet reduction")
	return command
}

func newReadFileCommand(deps common.CommandDependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "read-file <env-name> <node-id> <path>",
		Short: "Print a file of a node",
		Args:  cobra.ExactArgs(3),
		RunE: func(command *cobra.Command, args []string) error {
			node, err := loadNode(command, deps, args[0], args[1])
			if err != nil {
				return err
			}
			body, err := node.ReadFile(command.Context(), args[2])
			if err != nil {
				return err
			}
			_, err = io.WriteString(command.OutOrStdout(), body)
			return err
		},
	}
}

func loadNode(command *cobra.Command, deps common.CommandDependencies, envName string, rawID string) (*jelastic.Node, error) {
	id, err := common.ParseNodeID(rawID)
	if err != nil {
		return nil, err
	}
	client, err := common.RequireClient(deps)
	if err != nil {
		return nil, err
	}
	env, err := client.Environment(command.Context(), envName)
	if err != nil {
		return nil, err
	}
	return common.LookupNode(env, id)
}
