package config

import (
	"fmt"
	"io"
	"slices"
	"strings"

	configdomain "github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/faults"
	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/spf13/cobra"
)

const redactedValue = "<redacted>"

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Manage contexts",
		Args:  cobra.NoArgs,
	}

	command.AddCommand(
		newInitCommand(deps),
		newListCommand(deps, globalFlags),
		newUseCommand(deps),
		newShowCommand(deps, globalFlags),
		newDeleteCommand(deps),
		newCheckCommand(deps, globalFlags),
	)

	return command
}

type initFlags struct {
	apiURL          string
	hosterDomain    string
	token           string
	tokenFile       string
	platformVersion string
	timeout         string
	setCurrent      bool
}

func newInitCommand(deps common.CommandDependencies) *cobra.Command {
	var flags initFlags

	command := &cobra.Command{
		Use:   "init [name]",
		Short: "Create a context from flags or interactive prompts",
		Example: strings.Join([]string{
			"  jelctl config init",
			"  jelctl config init prod --hoster-domain jelastic.example.com --token-file ~/.jelapi/prod.token --set-current",
		}, "\n"),
		Args: cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}
			cfg, err := resolveInitContext(command, common.ResolvePrompter(deps), flags, args)
			if err != nil {
				return err
			}
			if err := contexts.Validate(command.Context(), cfg); err != nil {
				return err
			}
			if err := contexts.Create(command.Context(), cfg); err != nil {
				return err
			}

			setCurrent := flags.setCurrent
			if !setCurrent && !command.Flags().Changed("set-current") {
				current, currentErr := contexts.GetCurrent(command.Context())
				setCurrent = currentErr != nil || current.Name == ""
			}
			if setCurrent {
				return contexts.SetCurrent(command.Context(), cfg.Name)
			}
			return nil
		},
	}
	command.Flags().StringVar(&flags.apiURL, "api-url", "", "API base url, e.g. https://app.example.com/1.0/")
	command.Flags().StringVar(&flags.hosterDomain, "hoster-domain", "", "hoster domain used to derive the API url")
	command.Flags().StringVar(&flags.token, "token", "", "session or personal access token")
	command.Flags().StringVar(&flags.tokenFile, "token-file", "", "file holding the token")
	command.Flags().StringVar(&flags.platformVersion, "platform-version", "", "platform version of the hoster")
	command.Flags().StringVar(&flags.timeout, "timeout", "", "request timeout, e.g. 30s")
	command.Flags().BoolVar(&flags.setCurrent, "set-current", false, "make the new context current")
	return command
}

func resolveInitContext(command *cobra.Command, prompter common.Prompter, flags initFlags, args []string) (configdomain.Context, error) {
	cfg := configdomain.Context{
		HosterDomain:    strings.TrimSpace(flags.hosterDomain),
		PlatformVersion: strings.TrimSpace(flags.platformVersion),
		API: configdomain.API{
			URL:       strings.TrimSpace(flags.apiURL),
			Token:     strings.TrimSpace(flags.token),
			TokenFile: strings.TrimSpace(flags.tokenFile),
			Timeout:   strings.TrimSpace(flags.timeout),
		},
	}
	if len(args) > 0 {
		cfg.Name = strings.TrimSpace(args[0])
	}

	interactive := prompter.IsInteractive(command)
	var err error
	if cfg.Name == "" {
		if !interactive {
			return configdomain.Context{}, common.ValidationError("context name is required", nil)
		}
		if cfg.Name, err = prompter.Input(command, "Context name:", true); err != nil {
			return configdomain.Context{}, err
		}
	}
	if cfg.API.URL == "" && cfg.HosterDomain == "" {
		if !interactive {
			return configdomain.Context{}, common.ValidationError("--api-url or --hoster-domain is required", nil)
		}
		if cfg.HosterDomain, err = prompter.Input(command, "Hoster domain (e.g. jelastic.example.com):", true); err != nil {
			return configdomain.Context{}, err
		}
	}
	if cfg.API.Token == "" && cfg.API.TokenFile == "" {
		if !interactive {
			return configdomain.Context{}, common.ValidationError("--token or --token-file is required", nil)
		}
		if cfg.API.Token, err = prompter.Secret(command, "API token:"); err != nil {
			return configdomain.Context{}, err
		}
	}
	return cfg, nil
}

func newListCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contexts",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}
			items, err := contexts.List(command.Context())
			if err != nil {
				return err
			}
			currentName := ""
			if current, err := contexts.GetCurrent(command.Context()); err == nil {
				currentName = current.Name
			}

			items = slices.Clone(items)
			for idx := range items {
				items[idx] = redact(items[idx])
			}
			return common.WriteOutput(command, globalFlags.Output, items, func(w io.Writer, value []configdomain.Context) error {
				for _, item := range value {
					marker := " "
					if item.Name == currentName {
						marker = "*"
					}
					if _, writeErr := fmt.Fprintf(w, "%s %s\n", marker, item.Name); writeErr != nil {
						return writeErr
					}
				}
				return nil
			})
		},
	}
}

func newUseCommand(deps common.CommandDependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "use [name]",
		Short: "Set current context (interactive when name is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}

			name := ""
			if len(args) > 0 {
				name = args[0]
			} else {
				name, err = selectContext(command, deps, "use")
				if err != nil {
					return err
				}
			}
			return contexts.SetCurrent(command.Context(), name)
		},
	}
}

func newShowCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	var showSecrets bool

	command := &cobra.Command{
		Use:   "show",
		Short: "Show the effective context from --context or the current one",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}

			shown, err := contexts.ResolveContext(
				command.Context(),
				configdomain.ContextSelection{Name: common.SelectedContextName(globalFlags)},
			)
			if err != nil {
				return err
			}
			if !showSecrets {
				shown = redact(shown)
			}
			return common.WriteOutput(command, common.OutputYAML, shown, nil)
		},
	}
	command.Flags().BoolVar(&showSecrets, "show-secrets", false, "print the token in clear")
	return command
}

func newDeleteCommand(deps common.CommandDependencies) *cobra.Command {
	var assumeYes bool

	command := &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a context (interactive when name is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}

			name := ""
			if len(args) > 0 {
				name = args[0]
			} else {
				name, err = selectContext(command, deps, "delete")
				if err != nil {
					return err
				}
			}
			confirmed, err := common.ConfirmAction(command, common.ResolvePrompter(deps), fmt.Sprintf("Delete context %q?", name), assumeYes)
			if err != nil {
				return err
			}
			if !confirmed {
				return common.WriteText(command, common.OutputText, "delete canceled")
			}
			return contexts.Delete(command.Context(), name)
		},
	}
	command.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return command
}

type checkReport struct {
	Context string `json:"context" yaml:"context"`
	URL     string `json:"url" yaml:"url"`
	Status  string `json:"status" yaml:"status"`
	Account string `json:"account,omitempty" yaml:"account,omitempty"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func newCheckCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the context reaches the control plane",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			contexts, err := common.RequireContexts(deps)
			if err != nil {
				return err
			}
			client, err := common.RequireClient(deps)
			if err != nil {
				return err
			}
			resolved, err := contexts.ResolveContext(
				command.Context(),
				configdomain.ContextSelection{Name: common.SelectedContextName(globalFlags)},
			)
			if err != nil {
				return err
			}

			report := checkReport{Context: resolved.Name, URL: resolved.API.URL, Status: "ok"}
			info, callErr := client.UserInfo(command.Context())
			if callErr != nil {
				report.Status = "failed"
				report.Detail = callErr.Error()
			} else if email, ok := info["email"].(string); ok {
				report.Account = email
			}

			if err := common.WriteOutput(command, globalFlags.Output, report, renderCheck); err != nil {
				return err
			}
			if callErr != nil {
				category, _ := faults.CategoryOf(callErr)
				if category == "" {
					category = faults.TransportError
				}
				return faults.NewTypedError(category, "context check failed", callErr)
			}
			return nil
		},
	}
}

func renderCheck(w io.Writer, report checkReport) error {
	line := fmt.Sprintf("%s (%s): %s", report.Context, report.URL, report.Status)
	if report.Account != "" {
		line += " as " + report.Account
	}
	if report.Detail != "" {
		line += ": " + report.Detail
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func selectContext(command *cobra.Command, deps common.CommandDependencies, action string) (string, error) {
	prompter := common.ResolvePrompter(deps)
	if !prompter.IsInteractive(command) {
		return "", common.ValidationError("context name is required", nil)
	}
	contexts, err := common.RequireContexts(deps)
	if err != nil {
		return "", err
	}
	items, err := contexts.List(command.Context())
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return "", common.NotFoundError("no contexts configured")
	}
	return prompter.Select(command, fmt.Sprintf("Select context to %s:", action), names)
}

func redact(cfg configdomain.Context) configdomain.Context {
	if cfg.API.Token != "" {
		cfg.API.Token = redactedValue
	}
	return cfg
}
