package call

import (
	"maps"
	"strings"

	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/spf13/cobra"
)

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var input common.InputFlags
	var jq string

	command := &cobra.Command{
		Use:   "call <Group.Class.Function> [key=value...]",
		Short: "Call a remote function and print its reply",
		Example: strings.Join([]string{
			"  jelctl call Environment.Control.GetEnvInfo envName=shop",
			"  jelctl call Environment.Control.GetEnvs --jq '.infos[].env.envName'",
			"  jelctl call Environment.Control.ChangeTopology envName=shop 'env:={\"sslstate\":true}'",
		}, "\n"),
		Args: cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			caller, err := common.RequireCaller(deps)
			if err != nil {
				return err
			}
			function, err := connector.ParseFunction(args[0])
			if err != nil {
				return err
			}

			callArgs := map[string]any{}
			if strings.TrimSpace(input.Payload) != "" {
				payload, err := common.DecodeInput[map[string]any](command, input)
				if err != nil {
					return err
				}
				maps.Copy(callArgs, payload)
			}
			if err := common.ApplyAssignments(callArgs, args[1:]); err != nil {
				return err
			}

			reply, err := caller.Call(command.Context(), function.String(), callArgs)
			if err != nil {
				return err
			}
			filtered, err := common.FilterJQ(command.Context(), reply, jq)
			if err != nil {
				return err
			}
			return common.WriteJSONDocument(command, globalFlags.Output, filtered)
		},
	}
	common.BindInputFlags(command, &input)
	command.Flags().StringVar(&jq, "jq", "", "jq expression applied to the reply")
	return command
}
