package group

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/jelastic"
	"github.com/spf13/cobra"
)

type groupView struct {
	ID         int    `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Color      string `json:"color,omitempty" yaml:"color,omitempty"`
	Isolated   bool   `json:"isolated" yaml:"isolated"`
	Visibility string `json:"visibility" yaml:"visibility"`
}

func newGroupView(group *jelastic.EnvGroup) groupView {
	return groupView{
		ID:         group.ID(),
		Name:       group.Name(),
		Color:      group.Color(),
		Isolated:   group.Isolated(),
		Visibility: group.Visibility().String(),
	}
}

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "group",
		Short: "Manage environment groups",
		Args:  cobra.NoArgs,
	}

	command.AddCommand(
		newListCommand(deps, globalFlags),
		newCreateCommand(deps, globalFlags),
		newDeleteCommand(deps),
	)

	return command
}

func newListCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var parent string

	command := &cobra.Command{
		Use:   "list",
		Short: "List environment groups",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			client, err := common.RequireClient(deps)
			if err != nil {
				return err
			}

			var groups map[string]*jelastic.EnvGroup
			if strings.TrimSpace(parent) == "" {
				groups, err = client.EnvGroups(command.Context())
			} else {
				var parentGroup *jelastic.EnvGroup
				parentGroup, err = client.EnvGroup(command.Context(), parent)
				if err == nil {
					groups, err = parentGroup.Children(command.Context())
				}
			}
			if err != nil {
				return err
			}

			views := make([]groupView, 0, len(groups))
			for _, name := range slices.Sorted(maps.Keys(groups)) {
				views = append(views, newGroupView(groups[name]))
			}
			return common.WriteOutput(command, globalFlags.Output, views, renderGroups)
		},
	}
	command.Flags().StringVar(&parent, "parent", "", "list only groups nested under this one")
	return command
}

func renderGroups(w io.Writer, views []groupView) error {
	table := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(table, "NAME\tCOLOR\tISOLATED\tVISIBILITY"); err != nil {
		return err
	}
	for _, view := range views {
		if _, err := fmt.Fprintf(table, "%s\t%s\t%t\t%s\n", view.Name, view.Color, view.Isolated, view.Visibility); err != nil {
			return err
		}
	}
	return table.Flush()
}

func newCreateCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var color string
	var isolated bool
	var visibility string

	command := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an environment group",
		Example: strings.Join([]string{
			"  jelctl group create team",
			"  jelctl group create team/backend --color '#00ff00' --visibility hide",
		}, "\n"),
		Args: cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			client, err := common.RequireClient(deps)
			if err != nil {
				return err
			}

			group := client.NewEnvGroup(args[0])
			if err := group.SetColor(color); err != nil {
				return err
			}
			group.SetIsolated(isolated)
			if strings.TrimSpace(visibility) != "" {
				parsed, err := jelastic.ParseVisibility(visibility)
				if err != nil {
					return common.ValidationError("invalid --visibility", err)
				}
				group.SetVisibility(parsed)
			}

			if err := group.Save(command.Context()); err != nil {
				return err
			}
			return common.WriteOutput(command, globalFlags.Output, newGroupView(group), func(w io.Writer, view groupView) error {
				_, err := fmt.Fprintf(w, "group %s created\n", view.Name)
				return err
			})
		},
	}
	command.Flags().StringVar(&color, "color", "", "hex color, e.g. #aabbcc")
	command.Flags().BoolVar(&isolated, "isolated", false, "isolate the network of the group")
	command.Flags().StringVar(&visibility, "visibility", "", "show|hide|show-if-not-empty")
	return command
}

func newDeleteCommand(deps common.CommandDependencies) *cobra.Command {
	var assumeYes bool

	command := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an environment group",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			client, err := common.RequireClient(deps)
			if err != nil {
				return err
			}
			group, err := client.EnvGroup(command.Context(), args[0])
			if err != nil {
				return err
			}

			confirmed, err := common.ConfirmAction(
				command,
				common.ResolvePrompter(deps),
				fmt.Sprintf("Delete environment group %q?", group.Name()),
				assumeYes,
			)
			if err != nil {
				return err
			}
			if !confirmed {
				return common.WriteText(command, common.OutputText, "delete canceled")
			}
			return group.Delete(command.Context())
		},
	}
	command.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return command
}
