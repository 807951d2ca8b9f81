package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/core"
	"github.com/crmarques/jelapi/internal/cli"
	"github.com/crmarques/jelapi/internal/cli/common"
	"github.com/crmarques/jelapi/internal/cli/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := core.BootstrapConfig{
		UserAgent: version.UserAgent(),
		Logger:    common.NewLogger(os.Stderr, debugFromArgs(args)).WithName("bootstrap"),
	}
	deps := cli.Dependencies{
		Contexts: core.NewContextService(bootstrap),
	}
	if !shouldSkipContextBootstrap(args) {
		jelapiContext, err := core.NewJelapiContext(
			ctx,
			bootstrap,
			config.ContextSelection{Name: contextNameFromArgs(args)},
		)
		if err != nil {
			if !isShellCompletionInvocation(args) {
				_, _ = fmt.Fprintln(os.Stderr, err)
				return exitCodeForError(err)
			}
		} else {
			deps = cli.Dependencies{
				Contexts: jelapiContext.Contexts,
				Caller:   jelapiContext.Caller,
				Client:   jelapiContext.Client,
			}
		}
	}

	if err := cli.Execute(ctx, deps); err != nil {
		return exitCodeForError(err)
	}
	return 0
}

func exitCodeForError(err error) int {
	return cli.ExitCodeForError(err)
}

func contextNameFromArgs(args []string) string {
	for idx := 0; idx < len(args); idx++ {
		current := args[idx]
		if current == "--" {
			break
		}

		if current == "--context" || current == "-c" {
			if idx+1 < len(args) {
				return args[idx+1]
			}
			return ""
		}
		if strings.HasPrefix(current, "--context=") {
			return strings.TrimPrefix(current, "--context=")
		}
	}

	return ""
}

func debugFromArgs(args []string) bool {
	for _, current := range args {
		if current == "--" {
			break
		}
		if current == "--debug" || current == "-d" || current == "--debug=true" {
			return true
		}
	}
	return false
}

func isHelpInvocation(args []string) bool {
	if len(args) == 0 {
		return true
	}
	if args[0] == "help" {
		return true
	}

	for _, current := range args {
		if current == "--" {
			break
		}
		if current == "--help" || current == "-h" {
			return true
		}
	}

	return false
}

func isCompletionInvocation(args []string) bool {
	return isCompletionScriptInvocation(args) || isShellCompletionInvocation(args)
}

func isCompletionScriptInvocation(args []string) bool {
	if len(args) == 0 {
		return false
	}
	return args[0] == "completion"
}

func isShellCompletionInvocation(args []string) bool {
	if len(args) == 0 {
		return false
	}
	return args[0] == "__complete" || args[0] == "__completeNoDesc"
}

func shellCompletionRequiresContextBootstrap(args []string) bool {
	if !isShellCompletionInvocation(args) || len(args) <= 1 {
		return false
	}

	// The last token is the word being completed.
	targetArgs := args[1 : len(args)-1]
	if len(targetArgs) == 0 {
		return false
	}

	commandPath, ok := resolveCompletionCommandPath(targetArgs)
	if !ok {
		return false
	}

	return requiresContextBootstrap(commandPath)
}

func resolveCompletionCommandPath(args []string) (string, bool) {
	probe := cli.NewRootCommand(cli.Dependencies{})
	command, _, err := probe.Find(args)
	if err != nil || command == nil || !command.Runnable() {
		return "", false
	}
	return strings.TrimSpace(command.CommandPath()), true
}

func shouldSkipContextBootstrap(args []string) bool {
	if isHelpInvocation(args) {
		return true
	}
	if isCompletionScriptInvocation(args) {
		return true
	}
	if isShellCompletionInvocation(args) {
		return !shellCompletionRequiresContextBootstrap(args)
	}

	commandPath, ok := resolveRunnableCommandPath(args)
	if !ok {
		return true
	}

	return !requiresContextBootstrap(commandPath)
}

func isHelpFallbackInvocation(args []string) bool {
	_, ok := resolveRunnableCommandPath(args)
	return !ok
}

func resolveRunnableCommandPath(args []string) (string, bool) {
	probe := cli.NewRootCommand(cli.Dependencies{})
	command, remainingArgs, err := probe.Find(args)
	if err != nil || command == nil || !command.Runnable() {
		return "", false
	}

	if err := command.ParseFlags(remainingArgs); err != nil {
		return "", false
	}
	if err := command.ValidateArgs(command.Flags().Args()); err != nil {
		return "", false
	}

	return strings.TrimSpace(command.CommandPath()), true
}

func requiresContextBootstrap(commandPath string) bool {
	return cli.RequiresContextBootstrapPath(commandPath)
}
