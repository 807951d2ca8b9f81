package common

import (
	"strings"

	"github.com/spf13/cobra"
)

type GlobalFlags struct {
	Context  string
	Debug    bool
	NoStatus bool
	NoColor  bool
	Output   string
}

type InputFlags struct {
	Payload string
	Format  string
}

func BindGlobalFlags(command *cobra.Command, flags *GlobalFlags) {
	command.PersistentFlags().StringVarP(&flags.Context, "context", "c", "", "context name")
	command.PersistentFlags().BoolVarP(&flags.Debug, "debug", "d", false, "log remote calls and saves to stderr")
	command.PersistentFlags().BoolVarP(&flags.NoStatus, "no-status", "n", false, "hide status output")
	command.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable color output")
	command.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputAuto, "output format: auto|text|json|yaml")
	RegisterOutputFlagCompletion(command)
}

func BindInputFlags(command *cobra.Command, flags *InputFlags) {
	command.Flags().StringVarP(&flags.Payload, "payload", "f", "", "payload file path (use '-' to read from stdin)")
	command.Flags().StringVarP(&flags.Format, "format", "i", "", "input format: json|yaml (default from the payload extension, else yaml)")
	_ = command.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{OutputJSON, OutputYAML},
		cobra.ShellCompDirectiveNoFileComp,
	))
}

// BindEnvFlag binds --env, which can also be given as the first positional
// argument.
func BindEnvFlag(command *cobra.Command, env *string) {
	command.Flags().StringVarP(env, "env", "e", "", "environment name")
}

func RegisterOutputFlagCompletion(command *cobra.Command) {
	_ = command.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(
		[]string{OutputAuto, OutputText, OutputJSON, OutputYAML},
		cobra.ShellCompDirectiveNoFileComp,
	))
}

func SelectedContextName(flags *GlobalFlags) string {
	if flags == nil {
		return ""
	}
	return strings.TrimSpace(flags.Context)
}

func SelectedOutputFormat(flags *GlobalFlags) string {
	if flags == nil || strings.TrimSpace(flags.Output) == "" {
		return OutputAuto
	}
	return flags.Output
}
